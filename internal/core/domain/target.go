// internal/core/domain/target.go
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttributeType es el tipo de un dato identificativo aportado por el usuario.
// Los connectors declaran qué tipos consumen.
type AttributeType string

const (
	AttributeEmail    AttributeType = "email"
	AttributeDomain   AttributeType = "domain"
	AttributeUsername AttributeType = "username"
	AttributeIP       AttributeType = "ip"
	AttributePhone    AttributeType = "phone"
	AttributeName     AttributeType = "name"
	AttributeURL      AttributeType = "url"
)

// IsValid verifica si el tipo de atributo es conocido.
func (a AttributeType) IsValid() bool {
	switch a {
	case AttributeEmail, AttributeDomain, AttributeUsername, AttributeIP,
		AttributePhone, AttributeName, AttributeURL:
		return true
	}
	return false
}

// AssetType devuelve el tipo de asset equivalente, usado para canonicalizar.
func (a AttributeType) AssetType() AssetType {
	switch a {
	case AttributeEmail:
		return AssetEmail
	case AttributeDomain:
		return AssetDomain
	case AttributeUsername:
		return AssetUsername
	case AttributeIP:
		return AssetIP
	case AttributePhone:
		return AssetPhone
	case AttributeURL:
		return AssetURL
	default:
		return AssetPerson
	}
}

// TargetKind clasifica al sujeto investigado.
type TargetKind string

const (
	TargetPerson       TargetKind = "person"
	TargetOrganization TargetKind = "organization"
	TargetDomainKind   TargetKind = "domain"
	TargetIPKind       TargetKind = "ip"
	TargetOther        TargetKind = "other"
)

// TargetStatus refleja la última investigación del target.
type TargetStatus string

const (
	TargetPending   TargetStatus = "pending"
	TargetRunning   TargetStatus = "running"
	TargetCompleted TargetStatus = "completed"
	TargetFailed    TargetStatus = "failed"
)

// Target es el sujeto de una investigación OSINT. Es dueño de su grafo de assets.
type Target struct {
	ID         string                      `json:"id" yaml:"id"`
	Name       string                      `json:"name" yaml:"name"`
	Kind       TargetKind                  `json:"kind" yaml:"kind"`
	Attributes map[AttributeType][]string  `json:"attributes" yaml:"attributes"`
	Tags       []string                    `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt  time.Time                   `json:"created_at" yaml:"created_at"`
	Status     TargetStatus                `json:"status" yaml:"status"`
}

// NewTarget crea un target pendiente con un ID aleatorio.
func NewTarget(name string, kind TargetKind) *Target {
	if kind == "" {
		kind = TargetOther
	}
	return &Target{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(name),
		Kind:       kind,
		Attributes: make(map[AttributeType][]string),
		CreatedAt:  time.Now().UTC(),
		Status:     TargetPending,
	}
}

// AddAttribute añade un valor canonicalizado, sin duplicados.
func (t *Target) AddAttribute(attr AttributeType, value string) error {
	if !attr.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAttribute, attr)
	}
	canon, err := Canonicalize(attr.AssetType(), value)
	if err != nil {
		return err
	}
	if t.Attributes == nil {
		t.Attributes = make(map[AttributeType][]string)
	}
	for _, v := range t.Attributes[attr] {
		if v == canon {
			return nil
		}
	}
	t.Attributes[attr] = append(t.Attributes[attr], canon)
	return nil
}

// Has indica si el target aporta al menos un valor del tipo dado.
func (t *Target) Has(attr AttributeType) bool {
	return len(t.Attributes[attr]) > 0
}

// Values devuelve los valores de un tipo de atributo.
func (t *Target) Values(attr AttributeType) []string {
	return t.Attributes[attr]
}

// AttributeTypes devuelve los tipos presentes, ordenados.
func (t *Target) AttributeTypes() []AttributeType {
	out := make([]AttributeType, 0, len(t.Attributes))
	for k, v := range t.Attributes {
		if len(v) > 0 {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate verifica que el target sea investigable.
func (t *Target) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyTargetID
	}
	if len(t.AttributeTypes()) == 0 {
		return ErrNoTargetAttributes
	}
	for attr, values := range t.Attributes {
		if !attr.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidAttribute, attr)
		}
		for _, v := range values {
			if _, err := Canonicalize(attr.AssetType(), v); err != nil {
				return err
			}
		}
	}
	return nil
}

// String retorna una representación legible del target.
func (t *Target) String() string {
	return fmt.Sprintf("Target{id=%s, name=%s, kind=%s, attributes=%v}", t.ID, t.Name, t.Kind, t.AttributeTypes())
}
