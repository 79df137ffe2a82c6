// internal/core/domain/errors.go
package domain

import "errors"

// Errores de dominio comunes.
var (
	// Target errors
	ErrEmptyTargetID      = errors.New("target id cannot be empty")
	ErrNoTargetAttributes = errors.New("target has no identifying attributes")
	ErrInvalidAttribute   = errors.New("invalid target attribute")

	// Asset errors
	ErrInvalidAssetType = errors.New("invalid asset type")
	ErrEmptyAssetValue  = errors.New("asset value cannot be empty")
	ErrInvalidValue     = errors.New("value does not canonicalize")
	ErrAssetKeyMismatch = errors.New("cannot merge assets with different keys")

	// Relationship errors
	ErrInvalidRelationship = errors.New("invalid relationship")
	ErrSelfRelationship    = errors.New("relationship endpoints must differ")

	// Run errors
	ErrInvalidTransition = errors.New("invalid run status transition")
	ErrUnknownConnector  = errors.New("connector not part of this run")
)
