// internal/adapters/output/json_test.go
package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"baykus/internal/core/domain"
	"baykus/internal/testutil"
)

func TestEncodeJSON_Golden(t *testing.T) {
	var buf bytes.Buffer
	testutil.RequireNoError(t, EncodeJSON(&buf, fixtureReport(), true), "encode")

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden.json"))
	g.Assert(t, "report", buf.Bytes())
}

func TestBuildGraphSummary(t *testing.T) {
	r := fixtureReport()
	s := r.Summary

	testutil.AssertEqual(t, s.TotalAssets, 2, "assets")
	testutil.AssertEqual(t, s.AssetsByType, map[string]int{"domain": 1, "ip": 1}, "by type")
	testutil.AssertEqual(t, s.RelationsByKind, map[string]int{"resolves_to": 1}, "by kind")
	testutil.AssertLen(t, s.TopRisks, 1, "low risks are not listed")
	testutil.AssertEqual(t, s.TopRisks[0].Asset, "domain:example.com", "top risk")
	testutil.AssertEqual(t, r.Graph.Assets[0].ID, "a1", "graph sorted by key")
}

func TestNewReport_NilGraph(t *testing.T) {
	r := NewReport(domain.Target{ID: "t1", Name: "x"}, domain.RunSummary{}, nil)
	testutil.AssertEqual(t, r.Summary.TotalAssets, 0, "empty")
	testutil.AssertEqual(t, r.Graph.TargetID, "t1", "target id")
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(dir, fixtureReport())
	testutil.RequireNoError(t, err, "write")

	testutil.AssertEqual(t, filepath.Dir(path), filepath.Join(dir, "acme"), "per-target directory")
	testutil.AssertEqual(t, filepath.Base(path), "baykus_acme_20240301_120002.json", "timestamp from run end")

	data, err := os.ReadFile(path)
	testutil.RequireNoError(t, err, "read")
	var decoded Report
	testutil.RequireNoError(t, json.Unmarshal(data, &decoded), "decode")
	testutil.AssertEqual(t, decoded.Run.RunID, "r1", "run")
	testutil.AssertLen(t, decoded.Graph.Assets, 2, "assets")
	testutil.AssertTrue(t, strings.Contains(string(data), "\n  "), "indented")
}

func TestSanitizeName(t *testing.T) {
	testutil.AssertEqual(t, sanitizeName("ACME Corp."), "acme_corp_", "spaces and dots")
	testutil.AssertEqual(t, sanitizeName("example-1"), "example-1", "kept")
}
