// Package dnsrecords implements the "dns" connector: A, AAAA, MX, NS and TXT
// lookups for every domain of the target, plus SPF/DMARC posture.
package dnsrecords

import (
	"context"
	"strings"

	"github.com/miekg/dns"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/dnsclient"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/registry"
	"baykus/internal/platform/validator"
)

func init() {
	registry.Global().MustRegister(Descriptor, func(cfg ports.ConnectorConfig, deps ports.Deps) (ports.Connector, error) {
		return New(cfg, deps.Logger), nil
	})
}

const connectorName = "dns"

var Descriptor = ports.ConnectorDescriptor{
	Name:             connectorName,
	Kind:             domain.ConnectorDomainInfo,
	Description:      "DNS records (A/AAAA/MX/NS/TXT) and mail posture",
	Version:          "1.0.0",
	Capabilities:     []domain.AttributeType{domain.AttributeDomain, domain.AttributeEmail},
	DefaultRateLimit: 10,
	Priority:         10,
}

// Connector resuelve los dominios del target.
type Connector struct {
	resolver *dnsclient.Resolver
	logger   logx.Logger
}

// New crea el connector. Custom "server" elige el resolver (host:port).
func New(cfg ports.ConnectorConfig, logger logx.Logger) *Connector {
	if logger == nil {
		logger = logx.Discard()
	}
	server := registry.GetStringConfig(cfg.Custom, "server", cfg.BaseURL)
	return &Connector{
		resolver: dnsclient.New(dnsclient.Config{
			Connector: connectorName,
			Server:    server,
			Timeout:   registry.GetDurationConfig(cfg.Custom, "query_timeout", 0),
		}, logger),
		logger: logger.With("connector", connectorName),
	}
}

func (c *Connector) Name() string                         { return connectorName }
func (c *Connector) Kind() domain.ConnectorKind           { return Descriptor.Kind }
func (c *Connector) Capabilities() []domain.AttributeType { return Descriptor.Capabilities }

func (c *Connector) Ping(ctx context.Context) error { return c.resolver.Ping(ctx) }

func (c *Connector) Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error) {
	names := domainsOf(target)
	if len(names) == 0 {
		return nil, errors.Permanent(connectorName, errors.Wrap(errors.ErrInvalidInput, "no domain to resolve"))
	}

	result := domain.NewConnectorResult(connectorName, target.ID)
	for _, name := range names {
		if err := c.resolve(ctx, result, name); err != nil {
			return nil, err
		}
	}
	c.logger.Debug("dns lookup completed", "domains", len(names), "findings", len(result.Findings))
	return result, nil
}

func (c *Connector) resolve(ctx context.Context, result *domain.ConnectorResult, name string) error {
	attrs := make(map[string]any)
	values := make(map[uint16][]string)

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA, dns.TypeMX, dns.TypeNS, dns.TypeTXT} {
		vs, err := c.resolver.Values(ctx, name, qtype)
		if err != nil {
			return err
		}
		values[qtype] = vs
		if len(vs) > 0 {
			attrs[strings.ToLower(dns.TypeToString[qtype])] = vs
		}
	}

	if len(attrs) == 0 {
		// el dominio no existe o no tiene registros: nada que aportar
		return nil
	}

	attrs["spf"] = hasPrefix(values[dns.TypeTXT], "v=spf1")
	dmarc, err := c.resolver.Values(ctx, "_dmarc."+name, dns.TypeTXT)
	if err != nil {
		return err
	}
	attrs["dmarc"] = hasPrefix(dmarc, "v=DMARC1")
	if len(values[dns.TypeMX]) > 0 && !attrs["spf"].(bool) {
		attrs["mail_spoofable"] = !attrs["dmarc"].(bool)
	}

	result.Add(domain.Finding{Type: domain.AssetDomain, Value: name, Attributes: attrs, Confidence: domain.ConfidenceHigh})

	for _, ip := range append(values[dns.TypeA], values[dns.TypeAAAA]...) {
		result.Add(domain.Finding{Type: domain.AssetIP, Value: ip, Confidence: domain.ConfidenceHigh})
	}
	for _, mx := range values[dns.TypeMX] {
		if validator.IsDomain(mx) {
			result.Add(domain.Finding{Type: domain.AssetDomain, Value: mx, Attributes: map[string]any{"mail_server": true}, Confidence: domain.ConfidenceHigh})
		}
	}
	return nil
}

// domainsOf devuelve los dominios del target y los de sus emails, sin duplicados.
func domainsOf(target domain.Target) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(d string) {
		d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
		if !validator.IsDomain(d) || seen[d] {
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

func hasPrefix(values []string, prefix string) bool {
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}
