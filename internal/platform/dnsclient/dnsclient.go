// Package dnsclient is the DNS resolver shared by the DNS-based connectors.
// Answers are cached by (name, type) for the minimum TTL of the answer set.
// Like httpclient it does not retry; it maps failures onto the error taxonomy.
package dnsclient

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"baykus/internal/platform/cache"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
)

const (
	DefaultServer = "1.1.1.1:53"

	// negativeTTL cachea respuestas vacías (NXDOMAIN / NODATA)
	negativeTTL = 5 * time.Minute
	maxTTL      = time.Hour
)

// Config del resolver.
type Config struct {
	// Connector nombre usado en los errores
	Connector string

	// Server host:port del resolver recursivo. Default: DefaultServer
	Server string

	// Timeout por consulta. Default: 5 seconds
	Timeout time.Duration

	// CacheSize entradas máximas. Default: 2048
	CacheSize int
}

// Resolver consulta un único servidor recursivo con caché.
type Resolver struct {
	client *dns.Client
	cfg    Config
	cache  *cache.Cache[[]dns.RR]
	logger logx.Logger
}

func New(cfg Config, logger logx.Logger) *Resolver {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if _, _, err := net.SplitHostPort(cfg.Server); err != nil {
		cfg.Server = net.JoinHostPort(cfg.Server, "53")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 2048
	}
	if logger == nil {
		logger = logx.Discard()
	}
	return &Resolver{
		client: &dns.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		cache:  cache.New[[]dns.RR](cfg.CacheSize, maxTTL),
		logger: logger.With("component", "dnsclient", "connector", cfg.Connector),
	}
}

// Server devuelve la dirección del resolver.
func (r *Resolver) Server() string { return r.cfg.Server }

// Lookup devuelve los registros de tipo qtype para name. NXDOMAIN y NODATA
// devuelven una lista vacía sin error.
func (r *Resolver) Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	fqdn := dns.Fqdn(strings.ToLower(name))
	key := fqdn + "|" + dns.TypeToString[qtype]
	if rrs, ok := r.cache.Get(key); ok {
		return rrs, nil
	}

	m := new(dns.Msg)
	m.SetQuestion(fqdn, qtype)
	m.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, m, r.cfg.Server)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Transient(r.cfg.Connector, errors.Wrapf(err, "dns %s %s", dns.TypeToString[qtype], fqdn))
	}
	// UDP truncado: repetir por TCP
	if resp.Truncated {
		tcp := &dns.Client{Net: "tcp", Timeout: r.cfg.Timeout}
		if resp, _, err = tcp.ExchangeContext(ctx, m, r.cfg.Server); err != nil {
			return nil, errors.Transient(r.cfg.Connector, errors.Wrapf(err, "dns tcp %s", fqdn))
		}
	}

	switch resp.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
	case dns.RcodeServerFailure:
		return nil, errors.Transient(r.cfg.Connector, errors.Errorf("dns %s %s: SERVFAIL", dns.TypeToString[qtype], fqdn))
	default:
		return nil, errors.Permanent(r.cfg.Connector, errors.Errorf("dns %s %s: %s", dns.TypeToString[qtype], fqdn, dns.RcodeToString[resp.Rcode]))
	}

	var rrs []dns.RR
	ttl := maxTTL
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype != qtype {
			continue // CNAME intermedios
		}
		rrs = append(rrs, rr)
		if d := time.Duration(rr.Header().Ttl) * time.Second; d < ttl {
			ttl = d
		}
	}
	if len(rrs) == 0 {
		ttl = negativeTTL
	}
	if ttl > 0 {
		r.cache.SetWithTTL(key, rrs, ttl)
	}

	r.logger.Debug("dns answer", "name", fqdn, "type", dns.TypeToString[qtype], "records", len(rrs), "rcode", dns.RcodeToString[resp.Rcode])
	return rrs, nil
}

// Values devuelve los registros como strings: IP para A/AAAA, host para
// MX/NS/CNAME (sin punto final) y texto concatenado para TXT.
func (r *Resolver) Values(ctx context.Context, name string, qtype uint16) ([]string, error) {
	rrs, err := r.Lookup(ctx, name, qtype)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		if v := Value(rr); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// Value extrae el dato de un RR.
func Value(rr dns.RR) string {
	switch v := rr.(type) {
	case *dns.A:
		return v.A.String()
	case *dns.AAAA:
		return v.AAAA.String()
	case *dns.MX:
		return strings.TrimSuffix(strings.ToLower(v.Mx), ".")
	case *dns.NS:
		return strings.TrimSuffix(strings.ToLower(v.Ns), ".")
	case *dns.CNAME:
		return strings.TrimSuffix(strings.ToLower(v.Target), ".")
	case *dns.TXT:
		return strings.Join(v.Txt, "")
	}
	return ""
}

// Ping consulta los NS de la raíz.
func (r *Resolver) Ping(ctx context.Context) error {
	m := new(dns.Msg)
	m.SetQuestion(".", dns.TypeNS)
	if _, _, err := r.client.ExchangeContext(ctx, m, r.cfg.Server); err != nil {
		return errors.Transient(r.cfg.Connector, errors.Wrap(err, "dns ping"))
	}
	return nil
}
