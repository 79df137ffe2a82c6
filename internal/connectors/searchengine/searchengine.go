// Package searchengine runs search-engine dorks for a target's domains,
// emails, usernames and names through Google Custom Search or Bing Web Search.
package searchengine

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/httpclient"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(Descriptor, func(cfg ports.ConnectorConfig, deps ports.Deps) (ports.Connector, error) {
		return New(cfg, deps.Logger)
	})
}

const connectorName = "search"

var Descriptor = ports.ConnectorDescriptor{
	Name:        connectorName,
	Kind:        domain.ConnectorSearchEngine,
	Description: "Search engine dorks (Google Custom Search, Bing Web Search)",
	Version:     "1.0.0",
	Capabilities: []domain.AttributeType{
		domain.AttributeDomain, domain.AttributeEmail, domain.AttributeUsername, domain.AttributeName,
	},
	RequiresAuth: true,
	// las cuotas gratuitas son de ~100 consultas/día
	DefaultRateLimit: 1,
	Priority:         2,
}

const (
	EngineGoogle = "google"
	EngineBing   = "bing"

	defaultGoogleURL = "https://www.googleapis.com"
	defaultBingURL   = "https://api.bing.microsoft.com"

	defaultResultsPerDork = 10
	maxGoogleResults      = 10
	maxBingResults        = 50
)

// Categorías de dork cuyos resultados cuentan como exposición.
const (
	CategoryDocuments = "exposed_documents"
	CategoryConfig    = "config_exposure"
	CategoryListing   = "directory_listing"
	CategoryMentions  = "mentions"
	CategoryProfiles  = "profiles"
	CategoryCustom    = "custom"
)

// Dork es una consulta plantilla. Template contiene un placeholder
// {domain}, {email}, {username} o {name} que se sustituye por el valor.
type Dork struct {
	Name     string
	Category string
	Template string
	Requires domain.AttributeType
}

// Query sustituye el placeholder por value.
func (d Dork) Query(value string) string {
	return strings.ReplaceAll(d.Template, "{"+string(d.Requires)+"}", value)
}

// Sensitive indica si un resultado del dork es una exposición.
func (d Dork) Sensitive() bool {
	switch d.Category {
	case CategoryDocuments, CategoryConfig, CategoryListing:
		return true
	}
	return false
}

// DefaultDorks devuelve el catálogo por defecto, ordenado por nombre.
func DefaultDorks() []Dork {
	return []Dork{
		{Name: "config_files", Category: CategoryConfig, Requires: domain.AttributeDomain,
			Template: `site:{domain} (ext:env OR ext:ini OR ext:conf OR ext:cfg OR ext:yml OR ext:sql)`},
		{Name: "directory_listing", Category: CategoryListing, Requires: domain.AttributeDomain,
			Template: `site:{domain} intitle:"index of"`},
		{Name: "documents", Category: CategoryDocuments, Requires: domain.AttributeDomain,
			Template: `site:{domain} (filetype:pdf OR filetype:doc OR filetype:docx OR filetype:xls OR filetype:xlsx)`},
		{Name: "email_mentions", Category: CategoryMentions, Requires: domain.AttributeEmail,
			Template: `"{email}" -site:linkedin.com`},
		{Name: "name_profiles", Category: CategoryProfiles, Requires: domain.AttributeName,
			Template: `"{name}" (site:linkedin.com/in OR site:twitter.com OR site:github.com)`},
		{Name: "username_mentions", Category: CategoryMentions, Requires: domain.AttributeUsername,
			Template: `"{username}"`},
	}
}

// ParseDork construye un dork personalizado a partir de una plantilla.
// El tipo requerido es el primer placeholder presente.
func ParseDork(index int, template string) (Dork, error) {
	for _, attr := range Descriptor.Capabilities {
		if strings.Contains(template, "{"+string(attr)+"}") {
			return Dork{
				Name:     "custom_" + strconv.Itoa(index+1),
				Category: CategoryCustom,
				Template: template,
				Requires: attr,
			}, nil
		}
	}
	return Dork{}, errors.Wrapf(errors.ErrInvalidInput, "dork %q has no {domain}, {email}, {username} or {name} placeholder", template)
}

// Hit es un resultado de búsqueda.
type Hit struct {
	Title       string
	Link        string
	Snippet     string
	DisplayLink string
}

// DorkResult agrupa los resultados de un dork para un valor.
type DorkResult struct {
	Dork         Dork
	Value        string
	Query        string
	TotalResults int64
	Hits         []Hit
}

// Engine implementa ports.Connector sobre la API de un buscador.
type Engine struct {
	engine  string
	client  *httpclient.Client
	apiKey  string
	cx      string
	perDork int
	dorks   []Dork
	logger  logx.Logger
}

// New crea el connector. Custom acepta "engine" (google|bing), "cx" (id del
// buscador de Google, obligatorio con google), "results_per_dork" y "dorks"
// (plantillas que sustituyen al catálogo por defecto).
func New(cfg ports.ConnectorConfig, logger logx.Logger) (*Engine, error) {
	if logger == nil {
		logger = logx.Discard()
	}
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "search connector requires an api key")
	}

	e := &Engine{
		engine:  strings.ToLower(registry.GetStringConfig(cfg.Custom, "engine", EngineGoogle)),
		apiKey:  cfg.APIKey,
		cx:      registry.GetStringConfig(cfg.Custom, "cx", ""),
		perDork: registry.GetIntConfig(cfg.Custom, "results_per_dork", defaultResultsPerDork),
		logger:  logger.With("connector", connectorName),
	}

	var base string
	switch e.engine {
	case EngineGoogle:
		if e.cx == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "google custom search requires custom.cx")
		}
		base = defaultGoogleURL
		e.perDork = clamp(e.perDork, maxGoogleResults)
	case EngineBing:
		base = defaultBingURL
		e.perDork = clamp(e.perDork, maxBingResults)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown search engine %q", e.engine)
	}
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}

	templates := registry.GetSliceConfig(cfg.Custom, "dorks", nil)
	if len(templates) == 0 {
		e.dorks = DefaultDorks()
	}
	for i, tpl := range templates {
		d, err := ParseDork(i, tpl)
		if err != nil {
			return nil, err
		}
		e.dorks = append(e.dorks, d)
	}

	// la credencial va en la query (google) o en una cabecera propia (bing)
	e.client = httpclient.New(httpclient.Config{
		Connector: connectorName,
		BaseURL:   base,
		Timeout:   cfg.Timeout,
		UserAgent: "Baykus/1.0 (search dorks)",
	}, logger)
	return e, nil
}

func (e *Engine) Name() string                         { return connectorName }
func (e *Engine) Kind() domain.ConnectorKind           { return Descriptor.Kind }
func (e *Engine) Capabilities() []domain.AttributeType { return Descriptor.Capabilities }

// Dorks devuelve el catálogo activo.
func (e *Engine) Dorks() []Dork { return e.dorks }

// Ping lanza una consulta de un resultado.
func (e *Engine) Ping(ctx context.Context) error {
	_, _, err := e.Search(ctx, "test", 1)
	return err
}

// Search ejecuta una consulta en el buscador configurado.
func (e *Engine) Search(ctx context.Context, query string, n int) (int64, []Hit, error) {
	if e.engine == EngineBing {
		return e.searchBing(ctx, query, n)
	}
	return e.searchGoogle(ctx, query, n)
}

type googleResponse struct {
	SearchInformation struct {
		TotalResults string `json:"totalResults"`
	} `json:"searchInformation"`
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Snippet     string `json:"snippet"`
		DisplayLink string `json:"displayLink"`
	} `json:"items"`
}

func (e *Engine) searchGoogle(ctx context.Context, query string, n int) (int64, []Hit, error) {
	q := url.Values{}
	q.Set("key", e.apiKey)
	q.Set("cx", e.cx)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(n))

	var resp googleResponse
	if _, err := e.client.GetJSON(ctx, "/customsearch/v1?"+q.Encode(), &resp); err != nil {
		return 0, nil, err
	}
	total, _ := strconv.ParseInt(resp.SearchInformation.TotalResults, 10, 64)
	hits := make([]Hit, 0, len(resp.Items))
	for _, it := range resp.Items {
		hits = append(hits, Hit{Title: it.Title, Link: it.Link, Snippet: it.Snippet, DisplayLink: it.DisplayLink})
	}
	return total, hits, nil
}

type bingResponse struct {
	WebPages struct {
		TotalEstimatedMatches int64 `json:"totalEstimatedMatches"`
		Value                 []struct {
			Name       string `json:"name"`
			URL        string `json:"url"`
			Snippet    string `json:"snippet"`
			DisplayURL string `json:"displayUrl"`
		} `json:"value"`
	} `json:"webPages"`
}

func (e *Engine) searchBing(ctx context.Context, query string, n int) (int64, []Hit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(n))

	var resp bingResponse
	headers := map[string]string{"Ocp-Apim-Subscription-Key": e.apiKey}
	if _, err := e.client.GetJSONWithHeaders(ctx, "/v7.0/search?"+q.Encode(), headers, &resp); err != nil {
		return 0, nil, err
	}
	hits := make([]Hit, 0, len(resp.WebPages.Value))
	for _, v := range resp.WebPages.Value {
		hits = append(hits, Hit{Title: v.Name, Link: v.URL, Snippet: v.Snippet, DisplayLink: v.DisplayURL})
	}
	return resp.WebPages.TotalEstimatedMatches, hits, nil
}

// Run ejecuta los dorks aplicables a target.
func (e *Engine) Run(ctx context.Context, target domain.Target) ([]DorkResult, error) {
	var out []DorkResult
	for _, d := range e.dorks {
		for _, value := range target.Values(d.Requires) {
			query := d.Query(value)
			total, hits, err := e.Search(ctx, query, e.perDork)
			if err != nil {
				return nil, errors.Wrapf(err, "dork %s", d.Name)
			}
			out = append(out, DorkResult{Dork: d, Value: value, Query: query, TotalResults: total, Hits: hits})
		}
	}
	return out, nil
}

// queried acumula los resultados de un valor del target.
type queried struct {
	attr      domain.AttributeType
	value     string
	hits      map[string]bool
	sensitive map[string]bool
	total     int64
	dorks     int
}

func (e *Engine) Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error) {
	applicable := false
	for _, d := range e.dorks {
		if len(target.Values(d.Requires)) > 0 {
			applicable = true
			break
		}
	}
	if !applicable {
		return nil, errors.Permanent(connectorName, errors.Wrap(errors.ErrInvalidInput, "no dork applies to target"))
	}

	runs, err := e.Run(ctx, target)
	if err != nil {
		return nil, err
	}

	result := domain.NewConnectorResult(connectorName, target.ID)
	byLink := make(map[string]int)
	var order []string
	assets := make(map[string]*queried)

	for _, run := range runs {
		key := string(run.Dork.Requires) + ":" + run.Value
		q, ok := assets[key]
		if !ok {
			q = &queried{attr: run.Dork.Requires, value: run.Value, hits: make(map[string]bool), sensitive: make(map[string]bool)}
			assets[key] = q
			order = append(order, key)
		}
		q.total += run.TotalResults
		q.dorks++

		for _, h := range run.Hits {
			link, err := domain.Canonicalize(domain.AssetURL, h.Link)
			if err != nil {
				e.logger.Debug("search hit skipped", "link", h.Link, "error", err.Error())
				continue
			}
			if q.hits[link] {
				continue
			}
			q.hits[link] = true
			if run.Dork.Sensitive() {
				q.sensitive[link] = true
			}

			to := domain.Link{Kind: domain.RelCoOccurrence, ToType: run.Dork.Requires.AssetType(), ToValue: run.Value, Confidence: domain.ConfidenceLow}
			if i, seen := byLink[link]; seen {
				result.Findings[i].Links = append(result.Findings[i].Links, to)
				continue
			}

			attrs := map[string]any{
				"engine":        e.engine,
				"dork":          run.Dork.Name,
				"dork_category": run.Dork.Category,
				"query":         run.Query,
			}
			setIf(attrs, "title", h.Title)
			setIf(attrs, "snippet", h.Snippet)
			setIf(attrs, "display_link", h.DisplayLink)
			if run.Dork.Sensitive() {
				attrs["sensitive"] = true
			}
			byLink[link] = len(result.Findings)
			result.Add(domain.Finding{
				Type:       domain.AssetURL,
				Value:      link,
				Attributes: attrs,
				Confidence: domain.ConfidenceLow,
				Links:      []domain.Link{to},
			})
		}
	}

	sort.Strings(order)
	for _, key := range order {
		q := assets[key]
		result.Add(domain.Finding{
			Type:  q.attr.AssetType(),
			Value: q.value,
			Attributes: map[string]any{
				"search_engine":       e.engine,
				"dorks_run":           int64(q.dorks),
				"dork_hits":           int64(len(q.hits)),
				"sensitive_dork_hits": int64(len(q.sensitive)),
				"estimated_results":   q.total,
			},
			Confidence: domain.ConfidenceMedium,
		})
	}

	e.logger.Debug("dorks completed", "runs", len(runs), "findings", len(result.Findings))
	return result, nil
}

func clamp(n, limit int) int {
	if n <= 0 {
		return defaultResultsPerDork
	}
	if n > limit {
		return limit
	}
	return n
}

func setIf(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}
