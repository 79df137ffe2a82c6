// internal/connectors/webarchive/webarchive_test.go
package webarchive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
	"baykus/internal/testutil"
)

const sampleCDX = `[
  ["timestamp","original","mimetype","statuscode","length"],
  ["20190101120000","http://example.com/","text/html","200","1234"],
  ["20200315080000","http://example.com/","text/html","200","1300"],
  ["20180505000000","https://api.example.com/v1/users","application/json","200","99"],
  ["20210707000000","http://www.example.com/.env","text/plain","200","50"],
  ["20170101000000","http://dev.example.com/backup.sql","application/octet-stream","200","5000"],
  ["20220101000000","http://evil.net/x.bak","text/plain","200","1"],
  ["20220101000000","http://example.com/short"]
]`

func newTestConnector(t *testing.T, handler http.HandlerFunc, custom map[string]any) *Archive {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := ports.DefaultConnectorConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = time.Second
	cfg.Custom = custom
	return New(cfg, logx.NewSilent())
}

func domainTarget(d string) domain.Target {
	tg := domain.NewTarget("acme", domain.TargetOrganization)
	_ = tg.AddAttribute(domain.AttributeDomain, d)
	return *tg
}

func serveCDX(body string, query *url.Values) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if query != nil {
			*query = r.URL.Query()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestFetch_Snapshots(t *testing.T) {
	var query url.Values
	c := newTestConnector(t, serveCDX(sampleCDX, &query), nil)

	res, err := c.Fetch(context.Background(), domainTarget("www.example.com"))
	testutil.RequireNoError(t, err, "fetch")
	testutil.AssertEqual(t, query.Get("url"), "example.com", "registrable domain")
	testutil.AssertEqual(t, query.Get("matchType"), "domain", "subdomains included")
	testutil.AssertEqual(t, query.Get("output"), "json", "json output")

	values := make([]string, 0, len(res.Findings))
	for _, f := range res.Findings {
		values = append(values, f.Value)
	}
	testutil.AssertEqual(t, values, []string{
		"http://dev.example.com/backup.sql",
		"http://www.example.com/.env",
		"https://api.example.com/v1/users",
		"api.example.com",
		"dev.example.com",
		"example.com",
	}, "classified urls, subdomains, root last")

	backup := res.Findings[0]
	testutil.AssertEqual(t, backup.Type, domain.AssetURL, "url asset")
	testutil.AssertEqual(t, backup.Attributes["categories"], []string{CategoryBackup}, "backup category")
	testutil.AssertEqual(t, backup.Attributes["archive_url"], "https://web.archive.org/web/20170101000000/http://dev.example.com/backup.sql", "replay url")
	testutil.AssertEqual(t, backup.Attributes["first_archived"], "2017-01-01", "iso date")
	testutil.AssertEqual(t, backup.Attributes["sensitive"], true, "sensitive")

	api := res.Findings[2]
	_, sensitive := api.Attributes["sensitive"]
	testutil.AssertFalse(t, sensitive, "api endpoints are not sensitive files")

	root := res.Findings[5]
	testutil.AssertEqual(t, root.Type, domain.AssetDomain, "domain asset")
	testutil.AssertEqual(t, root.Attributes["archived_snapshots"], int64(5), "out of scope and short rows dropped")
	testutil.AssertEqual(t, root.Attributes["archived_urls"], int64(4), "distinct urls")
	testutil.AssertEqual(t, root.Attributes["archived_hosts"], int64(3), "www folds into root")
	testutil.AssertEqual(t, root.Attributes["first_archived"], "2017-01-01", "earliest")
	testutil.AssertEqual(t, root.Attributes["last_archived"], "2021-07-07", "latest")
	testutil.AssertEqual(t, root.Attributes["archived_sensitive_files"], int64(2), "env and backup")
}

func TestFetch_NoSnapshots(t *testing.T) {
	c := newTestConnector(t, serveCDX(`[]`, nil), nil)
	res, err := c.Fetch(context.Background(), domainTarget("example.com"))
	testutil.RequireNoError(t, err, "fetch")
	testutil.AssertLen(t, res.Findings, 0, "nothing archived")
}

func TestFetch_MaxURLs(t *testing.T) {
	c := newTestConnector(t, serveCDX(sampleCDX, nil), map[string]any{"max_urls": 1})
	res, err := c.Fetch(context.Background(), domainTarget("example.com"))
	testutil.RequireNoError(t, err, "fetch")

	urls := 0
	for _, f := range res.Findings {
		if f.Type == domain.AssetURL {
			urls++
		}
	}
	testutil.AssertEqual(t, urls, 1, "truncated")
	root := res.Findings[len(res.Findings)-1]
	testutil.AssertEqual(t, root.Attributes["archived_sensitive_files"], int64(2), "counted before truncation")
}

func TestFetch_EmailDomain(t *testing.T) {
	var query url.Values
	c := newTestConnector(t, serveCDX(`[]`, &query), map[string]any{"limit": 50})
	tg := domain.NewTarget("jane", domain.TargetPerson)
	_ = tg.AddAttribute(domain.AttributeEmail, "jane@mail.example.org")

	_, err := c.Fetch(context.Background(), *tg)
	testutil.RequireNoError(t, err, "fetch")
	testutil.AssertEqual(t, query.Get("url"), "example.org", "email domain")
	testutil.AssertEqual(t, query.Get("limit"), "50", "custom limit")
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"service unavailable", http.StatusServiceUnavailable, "", errors.ErrConnectorTransient},
		{"rate limited", http.StatusTooManyRequests, "", errors.ErrConnectorTransient},
		{"html instead of json", http.StatusOK, "<html>maintenance</html>", errors.ErrNormalization},
		{"forbidden", http.StatusForbidden, "", errors.ErrConnectorPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConnector(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil)
			_, err := c.Fetch(context.Background(), domainTarget("example.com"))
			testutil.AssertErrorIs(t, err, tt.wantErr, "classified")
		})
	}
}

func TestFetch_NoDomain(t *testing.T) {
	c := newTestConnector(t, func(http.ResponseWriter, *http.Request) {}, nil)
	tg := domain.NewTarget("octo", domain.TargetPerson)
	_ = tg.AddAttribute(domain.AttributeUsername, "octocat")
	_, err := c.Fetch(context.Background(), *tg)
	testutil.AssertErrorIs(t, err, errors.ErrConnectorPermanent, "nothing to query")
}

func TestPing(t *testing.T) {
	var query url.Values
	c := newTestConnector(t, serveCDX(`[]`, &query), nil)
	testutil.RequireNoError(t, c.Ping(context.Background()), "ping")
	testutil.AssertEqual(t, query.Get("limit"), "1", "single capture")
}

func TestParseRows(t *testing.T) {
	rows := [][]string{
		{"original", "timestamp", "length"},
		{"http://example.com/a", "20200101000000", "42"},
		{"http://example.com/b"},
		{"", "20200101000000", "1"},
	}
	snaps := parseRows(rows)
	testutil.AssertLen(t, snaps, 1, "short and empty rows dropped")
	testutil.AssertEqual(t, snaps[0].Original, "http://example.com/a", "columns by header")
	testutil.AssertEqual(t, snaps[0].Length, int64(42), "length")
	testutil.AssertTrue(t, snaps[0].Time().Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), "cdx time")

	testutil.AssertLen(t, parseRows(nil), 0, "empty response")
	testutil.AssertLen(t, parseRows([][]string{{"timestamp"}}), 0, "header only")
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		raw        string
		categories []string
		tech       string
		sensitive  bool
	}{
		{"http://example.com/", nil, "", false},
		{"http://example.com/about.html", nil, "", false},
		{"http://example.com/.env", []string{CategorySensitive}, "", true},
		{"http://example.com/db/dump.sql.gz", []string{CategoryBackup}, "", true},
		{"http://example.com/.git/config", []string{CategoryRepository}, "", true},
		{"http://example.com/.git", []string{CategoryRepository}, "", true},
		{"http://example.com/api/v2/users", []string{CategoryAPI}, "", false},
		{"http://example.com/wp-admin/index.php", []string{CategoryAdmin}, "WordPress", false},
		{"http://example.com/admin/backup.zip", []string{CategoryAdmin, CategoryBackup}, "", true},
		{"http://EXAMPLE.com/Wp-Config.PHP", []string{CategorySensitive}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			testutil.RequireNoError(t, err, "parse")
			a := Analyze(u)
			testutil.AssertEqual(t, a.Host, "example.com", "host lowercased")
			testutil.AssertEqual(t, a.Categories, tt.categories, "categories")
			testutil.AssertEqual(t, a.Technology, tt.tech, "technology")
			testutil.AssertEqual(t, a.Sensitive(), tt.sensitive, "sensitive")
		})
	}
}
