// internal/core/domain/relationship.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RelationshipKind es el conjunto cerrado de tipos de arista.
type RelationshipKind string

const (
	RelSameOwner     RelationshipKind = "same_owner"
	RelCoOccurrence  RelationshipKind = "co_occurrence"
	RelSubdomainOf   RelationshipKind = "subdomain_of"
	RelLinkedAccount RelationshipKind = "linked_account"
	RelResolvesTo    RelationshipKind = "resolves_to"
	RelMailHandledBy RelationshipKind = "mail_handled_by"
)

// IsValid verifica si el kind pertenece al conjunto cerrado.
func (k RelationshipKind) IsValid() bool {
	switch k {
	case RelSameOwner, RelCoOccurrence, RelSubdomainOf, RelLinkedAccount, RelResolvesTo, RelMailHandledBy:
		return true
	}
	return false
}

// Directed indica si (a, b) y (b, a) son aristas distintas.
func (k RelationshipKind) Directed() bool {
	switch k {
	case RelSubdomainOf, RelResolvesTo, RelMailHandledBy:
		return true
	}
	return false
}

// Evidence es una pieza de soporte para una arista.
// (Rule, Basis) identifica la evidencia: reevaluar la misma regla sobre
// el mismo dato no la duplica.
type Evidence struct {
	Rule       string    `json:"rule"`
	Basis      string    `json:"basis"`
	Connector  string    `json:"connector,omitempty"`
	ResultID   string    `json:"result_id,omitempty"`
	Confidence float64   `json:"confidence"`
	ObservedAt time.Time `json:"observed_at"`
}

// CombineFunc combina las confianzas de varias evidencias en una.
type CombineFunc func(confidences []float64) float64

// CombineIndependent es 1 - Π(1 - cᵢ), acotado a [0, 1].
func CombineIndependent(confidences []float64) float64 {
	remaining := 1.0
	for _, c := range confidences {
		remaining *= 1 - clamp01(c)
	}
	return clamp01(1 - remaining)
}

// CombineMax usa la evidencia más fuerte.
func CombineMax(confidences []float64) float64 {
	best := 0.0
	for _, c := range confidences {
		if c > best {
			best = c
		}
	}
	return clamp01(best)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Relationship es una arista entre dos assets del mismo target.
// Invariante: un único registro por (source, target, kind); para kinds no dirigidos
// los extremos se guardan ordenados.
type Relationship struct {
	ID            string           `json:"id"`
	TargetID      string           `json:"target_id"`
	SourceID      string           `json:"source_id"`
	TargetAssetID string           `json:"target_asset_id"`
	Kind          RelationshipKind `json:"kind"`
	Directed      bool             `json:"directed"`
	Confidence    float64          `json:"confidence"`
	Evidence      []Evidence       `json:"evidence"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

var relationshipNamespace = uuid.MustParse("0b8c5a3d-41e2-4f7a-9c6e-2d1a8f4b7e90")

// RelationshipKey normaliza los extremos según el kind y devuelve la clave única.
func RelationshipKey(kind RelationshipKind, from, to string) (key, source, target string) {
	if !kind.Directed() && to < from {
		from, to = to, from
	}
	return string(kind) + "|" + from + "|" + to, from, to
}

// NewRelationship crea una arista sin evidencia. El ID es estable por clave.
func NewRelationship(targetID string, kind RelationshipKind, from, to string) (*Relationship, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidRelationship, kind)
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: empty endpoint", ErrInvalidRelationship)
	}
	if from == to {
		return nil, ErrSelfRelationship
	}
	key, source, target := RelationshipKey(kind, from, to)
	return &Relationship{
		ID:            uuid.NewSHA1(relationshipNamespace, []byte(targetID+"|"+key)).String(),
		TargetID:      targetID,
		SourceID:      source,
		TargetAssetID: target,
		Kind:          kind,
		Directed:      kind.Directed(),
	}, nil
}

// Key retorna la clave única de la arista.
func (r *Relationship) Key() string {
	key, _, _ := RelationshipKey(r.Kind, r.SourceID, r.TargetAssetID)
	return key
}

// Other devuelve el extremo opuesto a assetID.
func (r *Relationship) Other(assetID string) string {
	if r.SourceID == assetID {
		return r.TargetAssetID
	}
	return r.SourceID
}

// AddEvidence añade evidencia y recalcula la confianza con combine.
// Una misma (rule, basis) cuenta una sola vez: si ya existe solo se sustituye
// por una de mayor confianza. Devuelve false si la arista no cambió.
func (r *Relationship) AddEvidence(e Evidence, combine CombineFunc) bool {
	idx := -1
	for i, ev := range r.Evidence {
		if ev.Rule == e.Rule && ev.Basis == e.Basis {
			idx = i
			break
		}
	}
	switch {
	case idx < 0:
		r.Evidence = append(r.Evidence, e)
	case e.Confidence > r.Evidence[idx].Confidence:
		r.Evidence[idx] = e
	default:
		return false
	}
	if combine == nil {
		combine = CombineIndependent
	}
	confs := make([]float64, len(r.Evidence))
	for i, ev := range r.Evidence {
		confs[i] = ev.Confidence
	}
	r.Confidence = combine(confs)
	if r.CreatedAt.IsZero() || e.ObservedAt.Before(r.CreatedAt) {
		r.CreatedAt = e.ObservedAt
	}
	if e.ObservedAt.After(r.UpdatedAt) {
		r.UpdatedAt = e.ObservedAt
	}
	return true
}

// Clone hace una copia profunda.
func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	c := *r
	c.Evidence = append([]Evidence(nil), r.Evidence...)
	return &c
}
