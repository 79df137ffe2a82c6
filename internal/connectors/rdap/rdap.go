// Package rdap implements a RDAP (Registration Data Access Protocol) connector.
// It queries RDAP servers for domain registration data: registrar, contacts,
// nameservers and important dates.
package rdap

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/cache"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/httpclient"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/registry"
	"baykus/internal/platform/validator"
)

// Auto-registro del connector al importar el package
func init() {
	registry.Global().MustRegister(Descriptor, func(cfg ports.ConnectorConfig, deps ports.Deps) (ports.Connector, error) {
		return New(cfg, deps.Logger), nil
	})
}

const (
	connectorName = "rdap"

	// rdap.org hace de bootstrap y redirige al servidor autoritativo
	defaultBaseURL = "https://rdap.org"

	cacheTTL = 24 * time.Hour
)

// Descriptor describe el connector en el registry.
var Descriptor = ports.ConnectorDescriptor{
	Name:             connectorName,
	Kind:             domain.ConnectorDomainInfo,
	Description:      "RDAP domain registration data (registrar, registrant, dates)",
	Version:          "1.0.0",
	Capabilities:     []domain.AttributeType{domain.AttributeDomain, domain.AttributeEmail},
	RequiresAuth:     false,
	DefaultRateLimit: 1,
	Priority:         8,
}

// RDAP implements ports.Connector.
type RDAP struct {
	client *httpclient.Client
	cache  *cache.Cache[*rdapResponse]
	logger logx.Logger
	now    func() time.Time
}

// rdapResponse representa la respuesta de RDAP (simplificada)
type rdapResponse struct {
	ObjectClassName string           `json:"objectClassName"`
	Handle          string           `json:"handle"`
	LDHName         string           `json:"ldhName"`
	Status          []string         `json:"status"`
	Entities        []rdapEntity     `json:"entities"`
	Nameservers     []rdapNameserver `json:"nameservers"`
	Events          []rdapEvent      `json:"events"`
	SecureDNS       struct {
		DelegationSigned bool `json:"delegationSigned"`
	} `json:"secureDNS"`
}

// rdapEntity representa una entidad (registrar, contacto)
type rdapEntity struct {
	Handle     string   `json:"handle"`
	Roles      []string `json:"roles"` // registrar, registrant, administrative, technical...
	VCardArray []any    `json:"vcardArray"`
	PublicIDs  []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"publicIds"`
	Entities []rdapEntity `json:"entities"`
}

type rdapNameserver struct {
	LDHName string `json:"ldhName"`
}

type rdapEvent struct {
	EventAction string `json:"eventAction"`
	EventDate   string `json:"eventDate"`
}

// New creates a new RDAP connector.
func New(cfg ports.ConnectorConfig, logger logx.Logger) *RDAP {
	if logger == nil {
		logger = logx.Discard()
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &RDAP{
		client: httpclient.New(httpclient.Config{
			Connector: connectorName,
			BaseURL:   base,
			Timeout:   cfg.Timeout,
			UserAgent: "Baykus/1.0 RDAP Client",
		}, logger),
		cache:  cache.New[*rdapResponse](1000, cacheTTL),
		logger: logger.With("connector", connectorName),
		now:    time.Now,
	}
}

func (r *RDAP) Name() string                         { return connectorName }
func (r *RDAP) Kind() domain.ConnectorKind           { return Descriptor.Kind }
func (r *RDAP) Capabilities() []domain.AttributeType { return Descriptor.Capabilities }

// Fetch consulta el dominio registrable de cada dominio y email del target.
func (r *RDAP) Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error) {
	result := domain.NewConnectorResult(connectorName, target.ID)

	domains := registrableDomains(target)
	if len(domains) == 0 {
		return nil, errors.Permanent(connectorName, errors.Wrap(errors.ErrInvalidInput, "no domain to query"))
	}

	var raw []json.RawMessage
	for _, name := range domains {
		data, body, err := r.query(ctx, name)
		if err != nil {
			// un dominio sin registro RDAP no invalida al resto
			if errors.Is(err, errors.ErrConnectorPermanent) && len(domains) > 1 {
				r.logger.Debug("rdap lookup skipped", "domain", name, "error", err.Error())
				continue
			}
			return nil, err
		}
		if body != nil {
			raw = append(raw, body)
		}
		r.extractFindings(result, data, name)
	}

	if len(raw) > 0 {
		result.Raw, _ = json.Marshal(raw)
	}
	r.logger.Debug("rdap query completed", "domains", len(domains), "findings", len(result.Findings))
	return result, nil
}

// Ping comprueba que el servidor RDAP responde.
func (r *RDAP) Ping(ctx context.Context) error {
	_, _, err := r.query(ctx, "example.com")
	return err
}

func (r *RDAP) query(ctx context.Context, name string) (*rdapResponse, json.RawMessage, error) {
	if cached, ok := r.cache.Get(name); ok {
		r.logger.Debug("rdap response found in cache", "domain", name)
		return cached, nil, nil
	}

	var data rdapResponse
	body, err := r.client.GetJSON(ctx, "/domain/"+url.PathEscape(name), &data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "rdap query failed for %s", name)
	}
	r.cache.Set(name, &data)
	return &data, body, nil
}

// extractFindings convierte la respuesta en un finding de dominio más un
// finding por cada email de contacto.
func (r *RDAP) extractFindings(result *domain.ConnectorResult, data *rdapResponse, name string) {
	attrs := map[string]any{
		"dnssec": data.SecureDNS.DelegationSigned,
	}
	if len(data.Status) > 0 {
		attrs["status"] = append([]string(nil), data.Status...)
	}

	for _, ev := range data.Events {
		switch strings.ToLower(ev.EventAction) {
		case "registration":
			attrs["created"] = ev.EventDate
			if t, err := time.Parse(time.RFC3339, ev.EventDate); err == nil {
				attrs["domain_age_days"] = int64(r.now().Sub(t).Hours() / 24)
			}
		case "last changed":
			attrs["updated"] = ev.EventDate
		case "expiration":
			attrs["expires"] = ev.EventDate
		}
	}

	var nameservers []string
	for _, ns := range data.Nameservers {
		if ns.LDHName != "" {
			nameservers = append(nameservers, strings.ToLower(ns.LDHName))
		}
	}
	if len(nameservers) > 0 {
		attrs["nameservers"] = nameservers
	}

	var contacts []domain.Finding
	walkEntities(data.Entities, func(e rdapEntity) {
		switch {
		case hasRole(e.Roles, "registrar"):
			if fn := vcardField(e.VCardArray, "fn"); fn != "" {
				attrs["registrar"] = fn
			}
			for _, id := range e.PublicIDs {
				if id.Type == "IANA Registrar ID" {
					attrs["registrar_iana"] = id.Identifier
				}
			}
		case hasRole(e.Roles, "registrant"):
			if org := vcardField(e.VCardArray, "org"); org != "" {
				attrs["registrant_org"] = org
			}
			if email := vcardField(e.VCardArray, "email"); validator.IsEmail(email) {
				attrs["registrant_email"] = email
			}
		case hasRole(e.Roles, "administrative"):
			if email := vcardField(e.VCardArray, "email"); validator.IsEmail(email) {
				attrs["admin_email"] = email
			}
		}

		email := vcardField(e.VCardArray, "email")
		if !validator.IsEmail(email) {
			return
		}
		contacts = append(contacts, domain.Finding{
			Type:  domain.AssetEmail,
			Value: email,
			Attributes: map[string]any{
				"contact_roles": append([]string(nil), e.Roles...),
				"contact_name":  vcardField(e.VCardArray, "fn"),
			},
			Confidence: domain.ConfidenceHigh,
		})
	})

	result.Add(domain.Finding{
		Type:       domain.AssetDomain,
		Value:      name,
		Attributes: attrs,
		Confidence: domain.ConfidenceHigh,
	})
	for _, c := range contacts {
		result.Add(c)
	}
	if org, ok := attrs["registrant_org"].(string); ok && org != "" {
		result.Add(domain.Finding{
			Type:       domain.AssetOrganization,
			Value:      org,
			Confidence: domain.ConfidenceMedium,
			Links:      []domain.Link{{Kind: domain.RelSameOwner, ToType: domain.AssetDomain, ToValue: name}},
		})
	}
}

// registrableDomains devuelve los dominios registrables (eTLD+1) del target,
// sin duplicados. Los emails aportan su dominio.
func registrableDomains(target domain.Target) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(d string) {
		d = validator.RegistrableDomain(strings.ToLower(strings.TrimSpace(d)))
		if d == "" || seen[d] {
			return
		}
		seen[d] = true
		out = append(out, d)
	}
	for _, d := range target.Values(domain.AttributeDomain) {
		add(d)
	}
	for _, e := range target.Values(domain.AttributeEmail) {
		add(validator.EmailDomain(e))
	}
	return out
}

func walkEntities(entities []rdapEntity, fn func(rdapEntity)) {
	for _, e := range entities {
		fn(e)
		walkEntities(e.Entities, fn)
	}
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// vcardField extrae un campo de un jCard:
// ["vcard", [["version", {}, "text", "4.0"], ["fn", {}, "text", "John Doe"], ...]]
func vcardField(vcardArray []any, fieldName string) string {
	if len(vcardArray) < 2 {
		return ""
	}
	vcard, ok := vcardArray[1].([]any)
	if !ok {
		return ""
	}
	for _, item := range vcard {
		field, ok := item.([]any)
		if !ok || len(field) < 4 {
			continue
		}
		name, ok := field[0].(string)
		if !ok || !strings.EqualFold(name, fieldName) {
			continue
		}
		if value, ok := field[3].(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
