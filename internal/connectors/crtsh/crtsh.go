// internal/connectors/crtsh/crtsh.go
package crtsh

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
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
	connectorName  = "crtsh"
	defaultBaseURL = "https://crt.sh"

	defaultMaxSubdomains = 500
)

var Descriptor = ports.ConnectorDescriptor{
	Name:         connectorName,
	Kind:         domain.ConnectorDomainInfo,
	Description:  "Certificate Transparency log search via crt.sh",
	Version:      "1.0.0",
	Capabilities: []domain.AttributeType{domain.AttributeDomain, domain.AttributeEmail},
	// crt.sh no documenta límites; ser respetuoso
	DefaultRateLimit: 0.5,
	Priority:         5,
}

// CRT consulta crt.sh para descubrir subdominios a partir de certificados.
type CRT struct {
	client        *httpclient.Client
	maxSubdomains int
	logger        logx.Logger
}

// certRecord representa un registro de certificado de crt.sh.
type certRecord struct {
	IssuerName   string `json:"issuer_name"`
	NameValue    string `json:"name_value"`
	NotAfter     string `json:"not_after"`
	NotBefore    string `json:"not_before"`
	SerialNumber string `json:"serial_number"`
}

// host agrega los certificados vistos para un nombre.
type host struct {
	name     string
	wildcard bool
	issuer   string
	notAfter string
	certs    int
}

func New(cfg ports.ConnectorConfig, logger logx.Logger) *CRT {
	if logger == nil {
		logger = logx.Discard()
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &CRT{
		client: httpclient.New(httpclient.Config{
			Connector: connectorName,
			BaseURL:   base,
			Timeout:   cfg.Timeout,
			UserAgent: "Baykus/1.0 (certificate transparency lookup)",
		}, logger),
		maxSubdomains: registry.GetIntConfig(cfg.Custom, "max_subdomains", defaultMaxSubdomains),
		logger:        logger.With("connector", connectorName),
	}
}

func (c *CRT) Name() string                         { return connectorName }
func (c *CRT) Kind() domain.ConnectorKind           { return Descriptor.Kind }
func (c *CRT) Capabilities() []domain.AttributeType { return Descriptor.Capabilities }

func (c *CRT) Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error) {
	result := domain.NewConnectorResult(connectorName, target.ID)

	roots := rootDomains(target)
	if len(roots) == 0 {
		return nil, errors.Permanent(connectorName, errors.Wrap(errors.ErrInvalidInput, "no domain to query"))
	}

	for _, root := range roots {
		records, err := c.query(ctx, root)
		if err != nil {
			return nil, err
		}
		hosts := collectHosts(records, root)
		if len(hosts) > c.maxSubdomains {
			c.logger.Warn("subdomain list truncated", "domain", root, "found", len(hosts), "max", c.maxSubdomains)
			hosts = hosts[:c.maxSubdomains]
		}
		for _, h := range hosts {
			attrs := map[string]any{
				"has_ssl":          true,
				"ssl_certificates": int64(h.certs),
			}
			if h.issuer != "" {
				attrs["ssl_issuer"] = h.issuer
			}
			if h.notAfter != "" {
				attrs["ssl_valid_until"] = h.notAfter
			}
			if h.wildcard {
				attrs["ssl_wildcard"] = true
			}
			result.Add(domain.Finding{Type: domain.AssetDomain, Value: h.name, Attributes: attrs, Confidence: domain.ConfidenceMedium})
		}
	}

	c.logger.Debug("crtsh query completed", "domains", len(roots), "findings", len(result.Findings))
	return result, nil
}

// Ping comprueba que crt.sh responde.
func (c *CRT) Ping(ctx context.Context) error {
	_, err := c.query(ctx, "example.com")
	return err
}

func (c *CRT) query(ctx context.Context, root string) ([]certRecord, error) {
	var records []certRecord
	// %25 = '%', comodín de crt.sh
	path := "/?q=" + url.QueryEscape("%."+root) + "&output=json"
	if _, err := c.client.GetJSON(ctx, path, &records); err != nil {
		return nil, errors.Wrapf(err, "crtsh query failed for %s", root)
	}
	return records, nil
}

// collectHosts extrae los nombres en scope de los certificados, uno por
// nombre, ordenados. Los comodines cuentan para su dominio base.
func collectHosts(records []certRecord, root string) []*host {
	byName := make(map[string]*host)
	for _, rec := range records {
		for _, name := range strings.Split(rec.NameValue, "\n") {
			name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
			wildcard := strings.HasPrefix(name, "*.")
			name = strings.TrimPrefix(name, "*.")
			if name == "" || !inScope(name, root) || !validator.IsDomain(name) {
				continue
			}

			h, ok := byName[name]
			if !ok {
				h = &host{name: name}
				byName[name] = h
			}
			h.certs++
			h.wildcard = h.wildcard || wildcard
			// el certificado que caduca más tarde es el vigente
			if rec.NotAfter > h.notAfter {
				h.notAfter = rec.NotAfter
				h.issuer = rec.IssuerName
			}
		}
	}

	out := make([]*host, 0, len(byName))
	for _, h := range byName {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func inScope(name, root string) bool {
	return name == root || strings.HasSuffix(name, "."+root)
}

// rootDomains devuelve los dominios registrables de dominios y emails del target.
func rootDomains(target domain.Target) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(d string) {
		if r := validator.RegistrableDomain(d); r != "" && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, d := range target.Values(domain.AttributeDomain) {
		add(d)
	}
	for _, e := range target.Values(domain.AttributeEmail) {
		add(validator.EmailDomain(e))
	}
	return out
}
