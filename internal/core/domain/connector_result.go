// internal/core/domain/connector_result.go
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ConnectorKind agrupa connectors por la familia de servicio que consultan.
type ConnectorKind string

const (
	ConnectorSocialMedia    ConnectorKind = "social_media"
	ConnectorSearchEngine   ConnectorKind = "search_engine"
	ConnectorDomainInfo     ConnectorKind = "domain_info"
	ConnectorEmailVerify    ConnectorKind = "email_verify"
	ConnectorPastebin       ConnectorKind = "pastebin"
	ConnectorUsernameSearch ConnectorKind = "username_search"
	ConnectorThreatIntel    ConnectorKind = "threat_intel"
	ConnectorWebArchive     ConnectorKind = "web_archive"
)

// Link es evidencia explícita que un connector reporta entre el finding y otro asset.
type Link struct {
	Kind       RelationshipKind `json:"kind"`
	ToType     AssetType        `json:"to_type"`
	ToValue    string           `json:"to_value"`
	Confidence float64          `json:"confidence,omitempty"` // 0 = confianza base de la regla
}

// Finding es un asset crudo dentro del payload de un connector.
type Finding struct {
	Type       AssetType      `json:"type"`
	Value      string         `json:"value"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Links      []Link         `json:"links,omitempty"`
}

// ConnectorResult es el payload inmutable de una invocación de un connector.
// Lo consume el normalizer una vez; después solo sirve de auditoría.
type ConnectorResult struct {
	ID        string          `json:"id"`
	Connector string          `json:"connector"`
	TargetID  string          `json:"target_id"`
	RunID     string          `json:"run_id,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	Findings  []Finding       `json:"findings,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// NewConnectorResult crea un resultado exitoso vacío.
func NewConnectorResult(connector, targetID string) *ConnectorResult {
	return &ConnectorResult{
		ID:        uuid.NewString(),
		Connector: connector,
		TargetID:  targetID,
		FetchedAt: time.Now().UTC(),
		Success:   true,
	}
}

// Add añade un finding. Solo debe usarse mientras el connector construye el resultado.
func (r *ConnectorResult) Add(f Finding) {
	r.Findings = append(r.Findings, f)
}
