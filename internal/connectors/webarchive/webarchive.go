// internal/connectors/webarchive/webarchive.go
package webarchive

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/httpclient"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/registry"
	"baykus/internal/platform/validator"
)

func init() {
	registry.Global().MustRegister(Descriptor, func(cfg ports.ConnectorConfig, deps ports.Deps) (ports.Connector, error) {
		return New(cfg, deps.Logger), nil
	})
}

const (
	connectorName     = "webarchive"
	defaultBaseURL    = "https://web.archive.org"
	snapshotURLPrefix = "https://web.archive.org/web/"
	cdxFields         = "timestamp,original,mimetype,statuscode,length"
	cdxTimeLayout     = "20060102150405"

	defaultLimit   = 2000
	defaultMaxURLs = 100
)

var Descriptor = ports.ConnectorDescriptor{
	Name:             connectorName,
	Kind:             domain.ConnectorWebArchive,
	Description:      "Wayback Machine snapshots via the CDX API",
	Version:          "1.0.0",
	Capabilities:     []domain.AttributeType{domain.AttributeDomain, domain.AttributeEmail},
	DefaultRateLimit: 0.5,
	Priority:         3,
}

// Snapshot es una captura del índice CDX.
type Snapshot struct {
	Timestamp  string
	Original   string
	MimeType   string
	StatusCode string
	Length     int64
}

// ArchiveURL devuelve la URL de reproducción de la captura.
func (s Snapshot) ArchiveURL() string {
	return snapshotURLPrefix + s.Timestamp + "/" + s.Original
}

// Time parsea el timestamp CDX (UTC). Cero si no es válido.
func (s Snapshot) Time() time.Time {
	t, err := time.Parse(cdxTimeLayout, s.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Archive consulta el índice CDX del Wayback Machine.
type Archive struct {
	client  *httpclient.Client
	limit   int
	maxURLs int
	logger  logx.Logger
}

// New crea el connector. Custom acepta "limit" (filas CDX por dominio) y
// "max_urls" (URLs clasificadas que se emiten como asset).
func New(cfg ports.ConnectorConfig, logger logx.Logger) *Archive {
	if logger == nil {
		logger = logx.Discard()
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Archive{
		client: httpclient.New(httpclient.Config{
			Connector: connectorName,
			BaseURL:   base,
			Timeout:   cfg.Timeout,
			UserAgent: "Baykus/1.0 (web archive lookup)",
		}, logger),
		limit:   registry.GetIntConfig(cfg.Custom, "limit", defaultLimit),
		maxURLs: registry.GetIntConfig(cfg.Custom, "max_urls", defaultMaxURLs),
		logger:  logger.With("connector", connectorName),
	}
}

func (a *Archive) Name() string                         { return connectorName }
func (a *Archive) Kind() domain.ConnectorKind           { return Descriptor.Kind }
func (a *Archive) Capabilities() []domain.AttributeType { return Descriptor.Capabilities }

// Snapshots devuelve las capturas de root y sus subdominios.
func (a *Archive) Snapshots(ctx context.Context, root string) ([]Snapshot, error) {
	q := url.Values{}
	q.Set("url", root)
	q.Set("matchType", "domain")
	q.Set("output", "json")
	q.Set("fl", cdxFields)
	q.Set("limit", strconv.Itoa(a.limit))

	var rows [][]string
	if _, err := a.client.GetJSON(ctx, "/cdx/search/cdx?"+q.Encode(), &rows); err != nil {
		return nil, errors.Wrapf(err, "cdx query failed for %s", root)
	}
	return parseRows(rows), nil
}

// parseRows convierte la respuesta CDX (cabecera + filas) en capturas.
// Las filas más cortas que la cabecera se descartan.
func parseRows(rows [][]string) []Snapshot {
	if len(rows) < 2 {
		return nil
	}
	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[h] = i
	}
	field := func(row []string, name string) string {
		if i, ok := idx[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	out := make([]Snapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(rows[0]) {
			continue
		}
		s := Snapshot{
			Timestamp:  field(row, "timestamp"),
			Original:   field(row, "original"),
			MimeType:   field(row, "mimetype"),
			StatusCode: field(row, "statuscode"),
		}
		s.Length, _ = strconv.ParseInt(field(row, "length"), 10, 64)
		if s.Timestamp == "" || s.Original == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// archivedURL agrega las capturas de una misma URL.
type archivedURL struct {
	url      string
	analysis Analysis
	first    Snapshot
	last     Snapshot
	captures int
}

// archivedHost agrega las capturas de un host.
type archivedHost struct {
	name        string
	urls        map[string]bool
	first, last string
}

func (a *Archive) Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error) {
	result := domain.NewConnectorResult(connectorName, target.ID)

	roots := rootDomains(target)
	if len(roots) == 0 {
		return nil, errors.Permanent(connectorName, errors.Wrap(errors.ErrInvalidInput, "no domain to query"))
	}

	for _, root := range roots {
		snaps, err := a.Snapshots(ctx, root)
		if err != nil {
			return nil, err
		}
		if len(snaps) == 0 {
			continue
		}
		a.addFindings(result, root, snaps)
	}

	a.logger.Debug("web archive query completed", "domains", len(roots), "findings", len(result.Findings))
	return result, nil
}

// addFindings emite las URLs clasificadas, los subdominios archivados y por
// último el dominio consultado con sus totales.
func (a *Archive) addFindings(result *domain.ConnectorResult, root string, snaps []Snapshot) {
	urls := make(map[string]*archivedURL)
	hosts := make(map[string]*archivedHost)
	first, last := "", ""
	captured := 0

	for _, s := range snaps {
		u, err := url.Parse(s.Original)
		if err != nil || u.Host == "" {
			continue
		}
		canon, err := domain.Canonicalize(domain.AssetURL, s.Original)
		if err != nil {
			continue
		}
		an := Analyze(u)
		hostName, err := domain.Canonicalize(domain.AssetDomain, an.Host)
		if err != nil || !inScope(hostName, root) {
			continue
		}
		captured++
		if first == "" || s.Timestamp < first {
			first = s.Timestamp
		}
		if s.Timestamp > last {
			last = s.Timestamp
		}

		h, ok := hosts[hostName]
		if !ok {
			h = &archivedHost{name: hostName, urls: make(map[string]bool)}
			hosts[hostName] = h
		}
		h.urls[canon] = true
		if h.first == "" || s.Timestamp < h.first {
			h.first = s.Timestamp
		}
		if s.Timestamp > h.last {
			h.last = s.Timestamp
		}

		au, ok := urls[canon]
		if !ok {
			au = &archivedURL{url: canon, analysis: an, first: s, last: s}
			urls[canon] = au
		}
		au.captures++
		if s.Timestamp < au.first.Timestamp {
			au.first = s
		}
		if s.Timestamp > au.last.Timestamp {
			au.last = s
		}
	}
	if len(hosts) == 0 {
		return
	}

	interesting := make([]*archivedURL, 0)
	sensitive := 0
	for _, au := range urls {
		if len(au.analysis.Categories) == 0 {
			continue
		}
		if au.analysis.Sensitive() {
			sensitive++
		}
		interesting = append(interesting, au)
	}
	sort.Slice(interesting, func(i, j int) bool { return interesting[i].url < interesting[j].url })
	if len(interesting) > a.maxURLs {
		a.logger.Warn("archived url list truncated", "domain", root, "found", len(interesting), "max", a.maxURLs)
		interesting = interesting[:a.maxURLs]
	}

	for _, au := range interesting {
		attrs := map[string]any{
			"archive_url":    au.last.ArchiveURL(),
			"captures":       int64(au.captures),
			"first_archived": archiveDate(au.first.Timestamp),
			"last_archived":  archiveDate(au.last.Timestamp),
			"categories":     au.analysis.Categories,
		}
		if au.last.MimeType != "" {
			attrs["mime_type"] = au.last.MimeType
		}
		if au.last.StatusCode != "" {
			attrs["status_code"] = au.last.StatusCode
		}
		if au.analysis.Technology != "" {
			attrs["technology"] = au.analysis.Technology
		}
		if au.analysis.Sensitive() {
			attrs["sensitive"] = true
		}
		result.Add(domain.Finding{Type: domain.AssetURL, Value: au.url, Attributes: attrs, Confidence: domain.ConfidenceLow})
	}

	names := make([]string, 0, len(hosts))
	for name := range hosts {
		if name != root {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		h := hosts[name]
		result.Add(domain.Finding{Type: domain.AssetDomain, Value: name, Confidence: domain.ConfidenceLow, Attributes: map[string]any{
			"archived_urls":  int64(len(h.urls)),
			"first_archived": archiveDate(h.first),
			"last_archived":  archiveDate(h.last),
		}})
	}

	attrs := map[string]any{
		"archived_snapshots": int64(captured),
		"archived_urls":      int64(len(urls)),
		"archived_hosts":     int64(len(hosts)),
		"first_archived":     archiveDate(first),
		"last_archived":      archiveDate(last),
	}
	if sensitive > 0 {
		attrs["archived_sensitive_files"] = int64(sensitive)
	}
	result.Add(domain.Finding{Type: domain.AssetDomain, Value: root, Attributes: attrs, Confidence: domain.ConfidenceMedium})
}

// Ping consulta una única captura de example.com.
func (a *Archive) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("url", "example.com")
	q.Set("output", "json")
	q.Set("limit", "1")
	var rows [][]string
	_, err := a.client.GetJSON(ctx, "/cdx/search/cdx?"+q.Encode(), &rows)
	return err
}

// archiveDate reduce un timestamp CDX a fecha ISO.
func archiveDate(ts string) string {
	t, err := time.Parse(cdxTimeLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02")
}

func inScope(host, root string) bool {
	return host == root || strings.HasSuffix(host, "."+root)
}

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
