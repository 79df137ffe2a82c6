// Package pastebin scrapes a paste-search frontend for mentions of a
// target's emails, domains and usernames.
package pastebin

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(Descriptor, func(cfg ports.ConnectorConfig, deps ports.Deps) (ports.Connector, error) {
		return New(cfg, deps.Logger), nil
	})
}

const connectorName = "pastebin"

var Descriptor = ports.ConnectorDescriptor{
	Name:         connectorName,
	Kind:         domain.ConnectorPastebin,
	Description:  "Paste site mentions of emails, domains and usernames",
	Version:      "1.0.0",
	Capabilities: []domain.AttributeType{domain.AttributeEmail, domain.AttributeDomain, domain.AttributeUsername},
	// scraping: una petición cada dos segundos
	DefaultRateLimit: 0.5,
	Priority:         4,
}

const (
	defaultBaseURL    = "https://psbdmp.ws"
	defaultMaxResults = 100
	defaultMaxPages   = 3
	defaultUserAgent  = "Mozilla/5.0 (compatible; Baykus/1.0)"
)

// credentialPattern detecta fragmentos con pinta de credenciales.
var credentialPattern = regexp.MustCompile(`(?i)\b(password|passwd|pwd|pass|api[_-]?key|secret|token)\s*[:=]\s*\S+`)

// Selectors describe el marcado de la página de resultados.
type Selectors struct {
	Result    string
	Link      string
	Title     string
	Date      string
	Highlight string
	Next      string
}

// DefaultSelectors coinciden con el frontend por defecto.
func DefaultSelectors() Selectors {
	return Selectors{
		Result:    "div.paste",
		Link:      "a.paste-link",
		Title:     "a.paste-link",
		Date:      ".paste-date",
		Highlight: "pre.highlight",
		Next:      "a[rel=next]",
	}
}

// Paste es una entrada de la página de resultados.
type Paste struct {
	ID        string
	URL       string
	Title     string
	Date      string
	Highlight string
}

// HasCredentials indica si el fragmento visible contiene credenciales.
func (p Paste) HasCredentials() bool {
	return credentialPattern.MatchString(p.Highlight)
}

// Scraper implementa ports.Connector sobre colly.
type Scraper struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	maxResults int
	maxPages   int
	selectors  Selectors
	transport  http.RoundTripper
	logger     logx.Logger
}

// New crea el scraper. Custom acepta "user_agent", "max_results", "max_pages" y
// "selector_*" para adaptar el marcado de otro frontend.
func New(cfg ports.ConnectorConfig, logger logx.Logger) *Scraper {
	if logger == nil {
		logger = logx.Discard()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	ua := registry.GetStringConfig(cfg.Custom, "user_agent", defaultUserAgent)

	sel := DefaultSelectors()
	sel.Result = registry.GetStringConfig(cfg.Custom, "selector_result", sel.Result)
	sel.Link = registry.GetStringConfig(cfg.Custom, "selector_link", sel.Link)
	sel.Title = registry.GetStringConfig(cfg.Custom, "selector_title", sel.Title)
	sel.Date = registry.GetStringConfig(cfg.Custom, "selector_date", sel.Date)
	sel.Highlight = registry.GetStringConfig(cfg.Custom, "selector_highlight", sel.Highlight)
	sel.Next = registry.GetStringConfig(cfg.Custom, "selector_next", sel.Next)

	return &Scraper{
		baseURL:    base,
		userAgent:  ua,
		timeout:    cfg.Timeout,
		maxResults: registry.GetIntConfig(cfg.Custom, "max_results", defaultMaxResults),
		maxPages:   registry.GetIntConfig(cfg.Custom, "max_pages", defaultMaxPages),
		selectors:  sel,
		transport:  http.DefaultTransport,
		logger:     logger.With("connector", connectorName),
	}
}

func (s *Scraper) Name() string                         { return connectorName }
func (s *Scraper) Kind() domain.ConnectorKind           { return Descriptor.Kind }
func (s *Scraper) Capabilities() []domain.AttributeType { return Descriptor.Capabilities }

// Ping busca un término común y sólo comprueba que la página responde.
func (s *Scraper) Ping(ctx context.Context) error {
	_, err := s.Search(ctx, "password")
	return err
}

func (s *Scraper) Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error) {
	result := domain.NewConnectorResult(connectorName, target.ID)

	queried := 0
	for _, attr := range Descriptor.Capabilities {
		for _, value := range target.Values(attr) {
			queried++
			pastes, err := s.Search(ctx, value)
			if err != nil {
				return nil, err
			}
			s.addFindings(result, attr.AssetType(), value, pastes)
		}
	}
	if queried == 0 {
		return nil, errors.Permanent(connectorName, errors.New("target has no email, domain or username"))
	}

	s.logger.Debug("paste search completed", "queries", queried, "findings", len(result.Findings))
	return result, nil
}

func (s *Scraper) addFindings(result *domain.ConnectorResult, t domain.AssetType, value string, pastes []Paste) {
	if len(pastes) == 0 {
		return
	}

	exposed := false
	for _, p := range pastes {
		attrs := map[string]any{"query": value}
		setIf(attrs, "title", p.Title)
		setIf(attrs, "posted", p.Date)
		setIf(attrs, "paste_id", p.ID)
		if p.HasCredentials() {
			attrs["contains_credentials"] = true
			exposed = true
		}
		result.Add(domain.Finding{
			Type:       domain.AssetURL,
			Value:      p.URL,
			Attributes: attrs,
			Confidence: domain.ConfidenceMedium,
			Links:      []domain.Link{{Kind: domain.RelCoOccurrence, ToType: t, ToValue: value, Confidence: domain.ConfidenceMedium}},
		})
	}

	attrs := map[string]any{"paste_mentions": int64(len(pastes))}
	if exposed {
		attrs["exposed_credentials"] = true
	}
	result.Add(domain.Finding{Type: t, Value: value, Attributes: attrs, Confidence: domain.ConfidenceMedium})
}

// Search recorre las páginas de resultados de una consulta. Cada llamada
// usa su propio collector; colly no acepta context, así que el transporte
// ata cada petición a ctx.
func (s *Scraper) Search(ctx context.Context, query string) ([]Paste, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
	)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}
	c.WithTransport(ctxTransport{ctx: ctx, next: s.transport})

	var (
		pastes  []Paste
		seen    = make(map[string]bool)
		pages   int
		failure error
	)

	c.OnRequest(func(r *colly.Request) {
		pages++
	})

	c.OnHTML(s.selectors.Result, func(e *colly.HTMLElement) {
		if len(pastes) >= s.maxResults {
			return
		}
		href := e.ChildAttr(s.selectors.Link, "href")
		if href == "" {
			return
		}
		link := e.Request.AbsoluteURL(href)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		id := e.Attr("data-id")
		if id == "" {
			id = pasteID(link)
		}
		pastes = append(pastes, Paste{
			ID:        id,
			URL:       link,
			Title:     strings.TrimSpace(e.ChildText(s.selectors.Title)),
			Date:      strings.TrimSpace(e.ChildText(s.selectors.Date)),
			Highlight: strings.TrimSpace(e.ChildText(s.selectors.Highlight)),
		})
	})

	c.OnHTML(s.selectors.Next, func(e *colly.HTMLElement) {
		if pages >= s.maxPages || len(pastes) >= s.maxResults {
			return
		}
		if next := e.Attr("href"); next != "" {
			_ = e.Request.Visit(next)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if failure != nil {
			return
		}
		if r != nil && r.StatusCode >= 400 {
			failure = errors.FromStatus(connectorName, r.StatusCode)
			return
		}
		failure = errors.Transient(connectorName, err)
	})

	err := c.Visit(s.searchURL(query))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if failure != nil {
		return nil, failure
	}
	if err != nil {
		return nil, errors.Transient(connectorName, err)
	}
	return pastes, nil
}

func (s *Scraper) searchURL(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", strconv.Itoa(s.maxResults))
	return s.baseURL + "/search?" + v.Encode()
}

// pasteID toma el último segmento de la ruta.
func pasteID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}

func setIf(attrs map[string]any, key, value string) {
	if value != "" {
		attrs[key] = value
	}
}

type ctxTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req.WithContext(t.ctx))
}
