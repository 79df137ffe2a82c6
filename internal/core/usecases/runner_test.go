// internal/core/usecases/runner_test.go
package usecases

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/resilience"
	"baykus/internal/platform/telemetry"
	"baykus/internal/testutil"
)

func testConfig() ports.ConnectorConfig {
	cfg := ports.DefaultConnectorConfig()
	cfg.RateLimit = 0
	cfg.Timeout = time.Second
	cfg.MaxAttempts = 3
	return cfg
}

func newTestRunner(configs map[string]ports.ConnectorConfig, breakers *resilience.Breakers) *Runner {
	return NewRunner(RunnerOptions{
		Configs:     configs,
		Retry:       resilience.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond},
		Breakers:    breakers,
		GracePeriod: 20 * time.Millisecond,
		Tracer:      telemetry.NoopTracer(),
	})
}

func collect(ch <-chan *domain.ConnectorResult) []*domain.ConnectorResult {
	var out []*domain.ConnectorResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func runSingle(t *testing.T, r *Runner, c ports.Connector, target *domain.Target) ([]*domain.ConnectorResult, domain.ConnectorRun) {
	t.Helper()
	tracker := domain.NewRunTracker(target.ID)
	results := collect(r.Run(context.Background(), tracker, *target, []ports.Connector{c}, nil))
	run, ok := tracker.Snapshot().Connector(c.Name())
	testutil.AssertTrue(t, ok, "connector dispatched")
	return results, run
}

func TestRunner_RetriesTransientFailures(t *testing.T) {
	var n atomic.Int32
	c := newMockConnector("flaky", func(_ context.Context, target domain.Target) (*domain.ConnectorResult, error) {
		if n.Add(1) < 3 {
			return nil, errors.Transient("flaky", errors.New("connection reset"))
		}
		return domain.NewConnectorResult("flaky", target.ID), nil
	})
	r := newTestRunner(map[string]ports.ConnectorConfig{"flaky": testConfig()}, nil)
	target := newTarget("example.com", "")

	results, run := runSingle(t, r, c, target)

	testutil.AssertLen(t, results, 1, "one result")
	testutil.AssertEqual(t, run.Status, domain.ConnectorSucceeded, "status")
	testutil.AssertEqual(t, run.Attempts, 3, "attempts")
	testutil.AssertEqual(t, results[0].TargetID, target.ID, "target stamped")
	testutil.AssertTrue(t, results[0].RunID != "", "run id stamped")
}

func TestRunner_PermanentFailureIsNotRetried(t *testing.T) {
	c := newMockConnector("denied", func(context.Context, domain.Target) (*domain.ConnectorResult, error) {
		return nil, errors.FromStatus("denied", 403)
	})
	r := newTestRunner(map[string]ports.ConnectorConfig{"denied": testConfig()}, nil)

	results, run := runSingle(t, r, c, newTarget("example.com", ""))

	testutil.AssertLen(t, results, 0, "no results")
	testutil.AssertEqual(t, run.Status, domain.ConnectorFailed, "status")
	testutil.AssertEqual(t, run.Attempts, 1, "single attempt")
	testutil.AssertEqual(t, int(c.calls.Load()), 1, "calls")
}

func TestRunner_RateLimitedExhaustsAttempts(t *testing.T) {
	c := newMockConnector("busy", func(context.Context, domain.Target) (*domain.ConnectorResult, error) {
		return nil, errors.FromStatus("busy", 429)
	})
	r := newTestRunner(map[string]ports.ConnectorConfig{"busy": testConfig()}, nil)

	_, run := runSingle(t, r, c, newTarget("example.com", ""))

	testutil.AssertEqual(t, run.Status, domain.ConnectorFailed, "status")
	testutil.AssertEqual(t, run.Reason, "rate_limited", "reason")
	testutil.AssertEqual(t, run.Attempts, 3, "all attempts used")
}

func TestRunner_TimeoutIsTransient(t *testing.T) {
	c := newMockConnector("slow", func(ctx context.Context, _ domain.Target) (*domain.ConnectorResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.MaxAttempts = 2
	r := newTestRunner(map[string]ports.ConnectorConfig{"slow": cfg}, nil)

	_, run := runSingle(t, r, c, newTarget("example.com", ""))

	testutil.AssertEqual(t, run.Status, domain.ConnectorFailed, "status")
	testutil.AssertEqual(t, run.Reason, ReasonTimeout, "reason")
	testutil.AssertEqual(t, run.Attempts, 2, "timeout retried")
}

func TestRunner_AbandonsConnectorIgnoringCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newMockConnector("stuck", func(context.Context, domain.Target) (*domain.ConnectorResult, error) {
		<-release
		return nil, nil
	})
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.MaxAttempts = 1
	r := newTestRunner(map[string]ports.ConnectorConfig{"stuck": cfg}, nil)

	start := time.Now()
	_, run := runSingle(t, r, c, newTarget("example.com", ""))

	testutil.AssertEqual(t, run.Status, domain.ConnectorFailed, "status")
	testutil.AssertTrue(t, time.Since(start) < time.Second, "abandoned after grace period")
}

func TestRunner_PanicBecomesFailure(t *testing.T) {
	c := newMockConnector("broken", func(context.Context, domain.Target) (*domain.ConnectorResult, error) {
		panic("nil map")
	})
	r := newTestRunner(map[string]ports.ConnectorConfig{"broken": testConfig()}, nil)

	_, run := runSingle(t, r, c, newTarget("example.com", ""))

	testutil.AssertEqual(t, run.Status, domain.ConnectorFailed, "status")
	testutil.AssertEqual(t, run.Reason, ReasonPanic, "reason")
	testutil.AssertEqual(t, run.Attempts, 1, "panic not retried")
}

func TestRunner_UnsuccessfulResultIsPermanent(t *testing.T) {
	c := newMockConnector("sad", func(_ context.Context, target domain.Target) (*domain.ConnectorResult, error) {
		res := domain.NewConnectorResult("sad", target.ID)
		res.Success = false
		res.Error = "quota exceeded"
		return res, nil
	})
	r := newTestRunner(map[string]ports.ConnectorConfig{"sad": testConfig()}, nil)

	results, run := runSingle(t, r, c, newTarget("example.com", ""))

	testutil.AssertLen(t, results, 0, "no results")
	testutil.AssertEqual(t, run.Attempts, 1, "not retried")
	testutil.AssertContains(t, run.Error, "quota exceeded", "error kept")
}

func TestRunner_CircuitOpenSkipsConnector(t *testing.T) {
	c := newMockConnector("down", func(context.Context, domain.Target) (*domain.ConnectorResult, error) {
		return nil, errors.FromStatus("down", 401)
	})
	breakers := resilience.NewBreakers(resilience.BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour})
	r := newTestRunner(map[string]ports.ConnectorConfig{"down": testConfig()}, breakers)
	target := newTarget("example.com", "")

	_, first := runSingle(t, r, c, target)
	testutil.AssertEqual(t, first.Status, domain.ConnectorFailed, "first run fails")

	_, second := runSingle(t, r, c, target)
	testutil.AssertEqual(t, second.Status, domain.ConnectorSkipped, "second run skipped")
	testutil.AssertEqual(t, second.Reason, ReasonCircuitOpen, "reason")
	testutil.AssertEqual(t, int(c.calls.Load()), 1, "no call while open")
}

func TestRunner_SkipsNotApplicable(t *testing.T) {
	c := newMockConnector("github", findings("github"))
	c.caps = []domain.AttributeType{domain.AttributeUsername}
	r := newTestRunner(nil, nil)

	_, run := runSingle(t, r, c, newTarget("example.com", ""))

	testutil.AssertEqual(t, run.Status, domain.ConnectorSkipped, "status")
	testutil.AssertEqual(t, run.Reason, ReasonNotApplicable, "reason")
	testutil.AssertEqual(t, int(c.calls.Load()), 0, "never called")
}

func TestRunner_CancelledBeforeDispatch(t *testing.T) {
	a := newMockConnector("a", findings("a"))
	b := newMockConnector("b", findings("b"))
	r := newTestRunner(map[string]ports.ConnectorConfig{"a": testConfig(), "b": testConfig()}, nil)
	target := newTarget("example.com", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tracker := domain.NewRunTracker(target.ID)
	results := collect(r.Run(ctx, tracker, *target, []ports.Connector{a, b}, nil))

	testutil.AssertLen(t, results, 0, "no results")
	for _, c := range tracker.Snapshot().Connectors {
		testutil.AssertEqual(t, c.Status, domain.ConnectorSkipped, c.Name)
		testutil.AssertEqual(t, c.Reason, ReasonCancelled, c.Name)
	}
	testutil.AssertTrue(t, tracker.AllResolved(), "all resolved")
}

func TestRunner_ConcurrencyBoundAcrossRuns(t *testing.T) {
	var inFlight, peak atomic.Int32
	c := newMockConnector("bounded", func(_ context.Context, target domain.Target) (*domain.ConnectorResult, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return domain.NewConnectorResult("bounded", target.ID), nil
	})
	cfg := testConfig()
	cfg.MaxConcurrency = 2
	r := newTestRunner(map[string]ports.ConnectorConfig{"bounded": cfg}, nil)
	target := newTarget("example.com", "")

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker := domain.NewRunTracker(target.ID)
			collect(r.Run(context.Background(), tracker, *target, []ports.Connector{c}, nil))
		}()
	}
	wg.Wait()

	testutil.AssertEqual(t, int(c.calls.Load()), 6, "all runs called")
	testutil.AssertTrue(t, peak.Load() <= 2, "never more than MaxConcurrency in flight")
}

func TestFailureReason(t *testing.T) {
	testutil.AssertEqual(t, failureReason(errors.FromStatus("x", 429)), "rate_limited", "connector reason")
	testutil.AssertEqual(t, failureReason(errors.Transient("x", errors.New("eof"))), "transient", "class fallback")
	testutil.AssertEqual(t, failureReason(errors.Wrap(errors.ErrCancellationRequested, "stop")), ReasonCancelled, "cancelled")
}
