// internal/core/domain/runjob_test.go
package domain

import (
	"errors"
	"testing"

	"baykus/internal/testutil"
)

func TestRunStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to RunStatus
		ok       bool
	}{
		{RunPending, RunRunning, true},
		{RunPending, RunCancelled, true},
		{RunPending, RunCompleted, false},
		{RunRunning, RunCompleted, true},
		{RunRunning, RunFailed, true},
		{RunRunning, RunCancelled, true},
		{RunRunning, RunPending, false},
		{RunCompleted, RunRunning, false},
		{RunCancelled, RunCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			testutil.AssertEqual(t, tt.from.CanTransition(tt.to), tt.ok, "transition allowed")
		})
	}
}

func TestRunTracker_Lifecycle(t *testing.T) {
	tr := NewRunTracker("t1")
	tr.Dispatch("dns", "rdap", "github")

	snap := tr.Snapshot()
	testutil.AssertEqual(t, snap.Status, RunPending, "starts pending")
	testutil.AssertEqual(t, snap.Progress, 0.0, "no progress")
	testutil.AssertLen(t, snap.Connectors, 3, "three connectors")

	testutil.RequireNoError(t, tr.Transition(RunRunning, nil), "start run")
	testutil.AssertNoError(t, tr.Start("dns"), "start dns")
	testutil.AssertNoError(t, tr.Attempt("dns"), "attempt dns")
	testutil.AssertNoError(t, tr.Succeed("dns", 4), "dns ok")
	testutil.AssertNoError(t, tr.Fail("rdap", errors.New("401"), "permanent"), "rdap failed")
	testutil.AssertFalse(t, tr.AllResolved(), "github pending")

	tr.SkipPending("cancelled")
	testutil.AssertTrue(t, tr.AllResolved(), "all resolved")
	testutil.RequireNoError(t, tr.Transition(RunCompleted, nil), "complete")
	testutil.AssertErrorIs(t, tr.Transition(RunRunning, nil), ErrInvalidTransition, "terminal is final")

	snap = tr.Snapshot()
	testutil.AssertEqual(t, snap.Progress, 1.0, "fully resolved")
	testutil.AssertEqual(t, snap.Connectors[0].Name, "dns", "sorted by name")

	dns, _ := snap.Connector("dns")
	testutil.AssertEqual(t, dns.Findings, 4, "findings recorded")
	testutil.AssertEqual(t, dns.Attempts, 1, "attempts recorded")
	gh, _ := snap.Connector("github")
	testutil.AssertEqual(t, gh.Status, ConnectorSkipped, "github skipped")
	testutil.AssertLen(t, snap.Failed(), 1, "one failure")
	testutil.AssertFalse(t, snap.EndedAt.IsZero(), "end time set")
}

func TestRunTracker_UnknownConnector(t *testing.T) {
	tr := NewRunTracker("t1")
	testutil.AssertErrorIs(t, tr.Start("nope"), ErrUnknownConnector, "unknown connector")
}

func TestRunTracker_SnapshotIsCopy(t *testing.T) {
	tr := NewRunTracker("t1")
	tr.Dispatch("dns")
	snap := tr.Snapshot()
	snap.Connectors[0].Status = ConnectorFailed

	again := tr.Snapshot()
	testutil.AssertEqual(t, again.Connectors[0].Status, ConnectorPending, "snapshot does not alias tracker state")
}
