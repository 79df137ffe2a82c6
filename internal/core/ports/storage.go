// internal/core/ports/storage.go
package ports

import (
	"context"

	"baykus/internal/core/domain"
)

// Storage es el colaborador de persistencia del grafo.
// Cualquier error devuelto se trata como StorageError y es fatal para el run.
type Storage interface {
	// LoadGraph devuelve los assets y relaciones actuales del target.
	LoadGraph(ctx context.Context, targetID string) (*domain.Graph, error)

	// SaveAssetMerge persiste el estado fusionado de un asset. Debe ser atómico por clave.
	SaveAssetMerge(ctx context.Context, targetID string, asset *domain.Asset) (*domain.Asset, error)

	// SaveRelationship persiste una relación nueva o actualizada.
	SaveRelationship(ctx context.Context, targetID string, rel *domain.Relationship) (*domain.Relationship, error)

	// SaveRunJobStatus persiste el estado de un run.
	SaveRunJobStatus(ctx context.Context, job domain.RunJob) error
}

// ResultArchive guarda los ConnectorResult crudos para auditoría.
type ResultArchive interface {
	Archive(ctx context.Context, result *domain.ConnectorResult) error
}
