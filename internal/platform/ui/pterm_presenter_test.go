// internal/platform/ui/pterm_presenter_test.go
package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"

	"baykus/internal/core/domain"
	"baykus/internal/testutil"
)

func TestPTermPresenter_ReportsEachConnectorOnce(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	p := NewPTermPresenterWriter(&buf)

	job := domain.RunJob{Connectors: []domain.ConnectorRun{
		{Name: "dns", Status: domain.ConnectorSucceeded, Attempts: 1, Findings: 3},
		{Name: "rdap", Status: domain.ConnectorRunning},
	}}
	p.OnProgress(job)
	p.OnProgress(job)

	job.Connectors[1] = domain.ConnectorRun{Name: "rdap", Status: domain.ConnectorFailed, Attempts: 3, Reason: "rate_limited"}
	p.OnProgress(job)

	out := buf.String()
	testutil.AssertEqual(t, strings.Count(out, "dns"), 1, "dns reported once")
	testutil.AssertContains(t, out, "reason=rate_limited", "failure reason shown")
	testutil.AssertTrue(t, !strings.Contains(out, "running"), "unresolved connectors are not printed")
}

func TestPTermPresenter_SummaryAndAlerts(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	p := NewPTermPresenterWriter(&buf)

	p.OnAssetChanged("t1", domain.Asset{ID: "a1", Type: domain.AssetEmail})
	p.OnAssetChanged("t1", domain.Asset{ID: "a1", Type: domain.AssetEmail})
	p.OnAssetChanged("t1", domain.Asset{ID: "a2", Type: domain.AssetDomain})
	p.OnAlert(domain.Alert{AssetKey: "email:x@example.com", Severity: domain.RiskHigh, Previous: 10, Current: 55, Reasons: []string{"breached"}})

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p.OnRunCompleted("t1", domain.RunSummary{
		RunID:         "run-1",
		Status:        domain.RunCompleted,
		Assets:        2,
		Relationships: 1,
		Connectors:    []domain.ConnectorRun{{Name: "dns", Status: domain.ConnectorSucceeded, Attempts: 1, Findings: 2}},
		StartedAt:     start,
		EndedAt:       start.Add(1500 * time.Millisecond),
	})
	testutil.AssertNoError(t, p.Close(), "close")

	out := buf.String()
	testutil.AssertContains(t, out, "HIGH email:x@example.com 10.0 -> 55.0 (breached)", "alert line")
	testutil.AssertContains(t, out, "Run run-1: completed in 1.5s", "run line")
	testutil.AssertContains(t, out, "domain=1 email=1", "assets by type")
}

func TestNew_Quiet(t *testing.T) {
	p := New(true)
	_, ok := p.(NoopPresenter)
	testutil.AssertTrue(t, ok, "quiet gives noop")
	p.OnAlert(domain.Alert{})
	testutil.AssertNoError(t, p.Close(), "noop close")
}
