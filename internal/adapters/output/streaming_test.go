// internal/adapters/output/streaming_test.go
package output

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"

	"baykus/internal/core/domain"
	"baykus/internal/testutil"
)

func TestStreamingWriter_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	w, err := NewStreamingWriter(dir, "ACME", nil)
	testutil.RequireNoError(t, err, "open")
	w.now = func() time.Time { return testutil.FixtureTime }

	w.OnProgress(domain.RunJob{ID: "r1", TargetID: "t1", Status: domain.RunRunning})
	w.OnAssetChanged("t1", *domain.NewAsset("t1", domain.AssetDomain, "example.com"))
	w.OnAlert(domain.Alert{TargetID: "t1", AssetKey: "domain:example.com", Severity: domain.RiskHigh})
	w.OnRunCompleted("t1", domain.RunSummary{RunID: "r1"})
	testutil.RequireNoError(t, w.Close(), "close")

	f, err := os.Open(w.Path())
	testutil.RequireNoError(t, err, "reopen")
	defer f.Close()

	var kinds []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev StreamEvent
		testutil.RequireNoError(t, json.Unmarshal(sc.Bytes(), &ev), "line is json")
		testutil.AssertEqual(t, ev.TargetID, "t1", "target")
		testutil.AssertTrue(t, ev.At.Equal(testutil.FixtureTime), "clock")
		kinds = append(kinds, ev.Kind)
	}
	testutil.AssertEqual(t, kinds, []string{"progress", "asset", "alert", "summary"}, "order")
}
