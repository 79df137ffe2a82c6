// internal/core/domain/asset.go
package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// AssetType clasifica una entidad digital descubierta.
type AssetType string

const (
	AssetEmail        AssetType = "email"
	AssetDomain       AssetType = "domain"
	AssetIP           AssetType = "ip"
	AssetAccount      AssetType = "account"
	AssetUsername     AssetType = "username"
	AssetPhone        AssetType = "phone"
	AssetDocument     AssetType = "document"
	AssetURL          AssetType = "url"
	AssetPerson       AssetType = "person"
	AssetOrganization AssetType = "organization"
)

// AllAssetTypes lista los tipos soportados. Cada uno tiene canonicalizador.
var AllAssetTypes = []AssetType{
	AssetEmail, AssetDomain, AssetIP, AssetAccount, AssetUsername,
	AssetPhone, AssetDocument, AssetURL, AssetPerson, AssetOrganization,
}

// IsValid verifica si el tipo tiene canonicalizador registrado.
func (t AssetType) IsValid() bool {
	_, ok := canonicalizers[t]
	return ok
}

// assetNamespace deriva IDs deterministas: el mismo (target, type, value) siempre produce el mismo ID.
var assetNamespace = uuid.MustParse("6f1c2a4e-9b7d-4c1e-8a53-0d2f7e9b1c44")

// AssetID devuelve el ID estable de un asset dentro de un target.
func AssetID(targetID string, t AssetType, value string) string {
	return uuid.NewSHA1(assetNamespace, []byte(targetID+"|"+AssetKey(t, value))).String()
}

// AssetKey es la identidad canónica (type:value).
func AssetKey(t AssetType, value string) string {
	return string(t) + ":" + value
}

// Provenance registra qué connector aportó un dato, en qué resultado y con qué confianza.
type Provenance struct {
	Connector  string    `json:"connector"`
	ResultID   string    `json:"result_id"`
	RunID      string    `json:"run_id,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	Confidence float64   `json:"confidence"`
}

// Asset es una entidad del grafo de un target.
// Invariante: (Type, Value) es único por target; Value ya está canonicalizado.
type Asset struct {
	ID         string         `json:"id"`
	TargetID   string         `json:"target_id"`
	Type       AssetType      `json:"type"`
	Value      string         `json:"value"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Provenance []Provenance   `json:"provenance"`
	RiskScore  *float64       `json:"risk_score,omitempty"`
	RiskLevel  RiskLevel      `json:"risk_level,omitempty"`
	FirstSeen  time.Time      `json:"first_seen"`
	LastSeen   time.Time      `json:"last_seen"`
	Version    int64          `json:"version"`
}

// Candidate es un asset propuesto por el normalizer, aún no fusionado.
type Candidate struct {
	Type       AssetType
	Value      string
	Attributes map[string]any
	Confidence float64
}

// Key retorna la identidad del candidato.
func (c Candidate) Key() string {
	return AssetKey(c.Type, c.Value)
}

// NewAsset crea un asset vacío para la clave dada.
func NewAsset(targetID string, t AssetType, value string) *Asset {
	return &Asset{
		ID:         AssetID(targetID, t, value),
		TargetID:   targetID,
		Type:       t,
		Value:      value,
		Attributes: make(map[string]any),
	}
}

// Key retorna la identidad del asset (type:value).
func (a *Asset) Key() string {
	return AssetKey(a.Type, a.Value)
}

// HasContribution indica si el resultado ya fue fusionado en este asset.
func (a *Asset) HasContribution(connector, resultID string) bool {
	for _, p := range a.Provenance {
		if p.Connector == connector && p.ResultID == resultID {
			return true
		}
	}
	return false
}

// Merge aplica un candidato: atributos last-writer-wins por clave, provenance acumulada.
// Devuelve false si este resultado ya había contribuido (merge idempotente).
func (a *Asset) Merge(c Candidate, p Provenance) (bool, error) {
	if c.Key() != a.Key() {
		return false, fmt.Errorf("%w: %s != %s", ErrAssetKeyMismatch, a.Key(), c.Key())
	}
	if a.HasContribution(p.Connector, p.ResultID) {
		return false, nil
	}

	if a.Attributes == nil {
		a.Attributes = make(map[string]any, len(c.Attributes))
	}
	for k, v := range c.Attributes {
		a.Attributes[k] = v
	}

	if p.Confidence == 0 {
		p.Confidence = c.Confidence
	}
	a.Provenance = append(a.Provenance, p)

	if a.FirstSeen.IsZero() || p.ObservedAt.Before(a.FirstSeen) {
		a.FirstSeen = p.ObservedAt
	}
	if p.ObservedAt.After(a.LastSeen) {
		a.LastSeen = p.ObservedAt
	}
	a.Version++
	return true, nil
}

// Sources devuelve los connectors distintos que corroboran el asset, ordenados.
func (a *Asset) Sources() []string {
	seen := make(map[string]struct{}, len(a.Provenance))
	out := make([]string, 0, len(a.Provenance))
	for _, p := range a.Provenance {
		if _, ok := seen[p.Connector]; ok {
			continue
		}
		seen[p.Connector] = struct{}{}
		out = append(out, p.Connector)
	}
	sort.Strings(out)
	return out
}

// Confidence es la confianza máxima observada.
func (a *Asset) Confidence() float64 {
	best := 0.0
	for _, p := range a.Provenance {
		if p.Confidence > best {
			best = p.Confidence
		}
	}
	return best
}

// Attr devuelve un atributo como string ("" si no existe o no es string).
func (a *Asset) Attr(key string) string {
	s, _ := a.Attributes[key].(string)
	return s
}

// Score devuelve el riesgo, o 0 si aún no se ha puntuado.
func (a *Asset) Score() float64 {
	if a.RiskScore == nil {
		return 0
	}
	return *a.RiskScore
}

// Clone hace una copia profunda para entregarla fuera del lock.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	c.Attributes = cloneAttributes(a.Attributes)
	c.Provenance = append([]Provenance(nil), a.Provenance...)
	if a.RiskScore != nil {
		s := *a.RiskScore
		c.RiskScore = &s
	}
	return &c
}

func cloneAttributes(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case map[string]any:
		return cloneAttributes(t)
	default:
		return v
	}
}

// String retorna una representación legible del asset.
func (a *Asset) String() string {
	return fmt.Sprintf("[%s] %s (sources: %d, score: %.1f)", a.Type, a.Value, len(a.Sources()), a.Score())
}
