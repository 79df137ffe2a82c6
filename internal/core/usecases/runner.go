// internal/core/usecases/runner.go
package usecases

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/rate"
	"baykus/internal/platform/resilience"
	"baykus/internal/platform/telemetry"
)

// Razones con las que se cierra un ConnectorRun que no tuvo éxito.
const (
	ReasonCancelled     = "cancelled"
	ReasonCircuitOpen   = "circuit open"
	ReasonNotApplicable = "not applicable"
	ReasonTimeout       = "timeout"
	ReasonPanic         = "panic"
)

// RunnerOptions configura el Runner.
type RunnerOptions struct {
	// Configs por nombre de connector; los ausentes usan DefaultConnectorConfig
	Configs map[string]ports.ConnectorConfig

	// Retry política base; MaxAttempts de cada connector la sobreescribe
	Retry resilience.RetryPolicy

	// Breakers compartidos entre runs (nil = sin circuit breaker)
	Breakers *resilience.Breakers

	// Gates compartidos entre runs (nil = set propio del runner)
	Gates *rate.Set

	// GracePeriod tiempo que se espera a un connector que ignora la cancelación
	GracePeriod time.Duration

	Logger logx.Logger
	Tracer trace.Tracer
}

// Runner ejecuta connectors con token bucket y semáforo propios, reintentos
// con backoff y timeout por llamada. Los limiters y breakers persisten entre
// runs; cada Run tiene su propio stream y contabilidad.
type Runner struct {
	configs  map[string]ports.ConnectorConfig
	retry    resilience.RetryPolicy
	breakers *resilience.Breakers
	gates    *rate.Set
	grace    time.Duration
	logger   logx.Logger
	tracer   trace.Tracer
}

// NewRunner crea un runner.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Logger == nil {
		opts.Logger = logx.Discard()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer()
	}
	if opts.Gates == nil {
		opts.Gates = rate.NewSet()
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 5 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = resilience.DefaultRetryPolicy()
	}
	if opts.Configs == nil {
		opts.Configs = map[string]ports.ConnectorConfig{}
	}

	return &Runner{
		configs:  opts.Configs,
		retry:    opts.Retry,
		breakers: opts.Breakers,
		gates:    opts.Gates,
		grace:    opts.GracePeriod,
		logger:   opts.Logger.With("component", "runner"),
		tracer:   opts.Tracer,
	}
}

func (r *Runner) config(name string) ports.ConnectorConfig {
	if cfg, ok := r.configs[name]; ok {
		return cfg
	}
	return ports.DefaultConnectorConfig()
}

// Run despacha los connectors contra target y devuelve un stream con un
// resultado por connector exitoso, en orden de finalización. El canal se
// cierra cuando todos los connectors están resueltos en tracker.
// onProgress (opcional) se invoca tras cada cambio de estado de un connector.
func (r *Runner) Run(ctx context.Context, tracker *domain.RunTracker, target domain.Target, connectors []ports.Connector, onProgress func()) <-chan *domain.ConnectorResult {
	if onProgress == nil {
		onProgress = func() {}
	}

	ordered := make([]ports.Connector, len(connectors))
	copy(ordered, connectors)
	sort.SliceStable(ordered, func(i, j int) bool {
		return r.config(ordered[i].Name()).Priority > r.config(ordered[j].Name()).Priority
	})

	names := make([]string, len(ordered))
	for i, c := range ordered {
		names[i] = c.Name()
	}
	tracker.Dispatch(names...)
	onProgress()

	out := make(chan *domain.ConnectorResult, len(ordered))
	var wg sync.WaitGroup
	for _, c := range ordered {
		if !ports.Applicable(c.Capabilities(), target) {
			_ = tracker.Skip(c.Name(), ReasonNotApplicable)
			onProgress()
			continue
		}
		wg.Add(1)
		go func(c ports.Connector) {
			defer wg.Done()
			if res := r.runOne(ctx, tracker, target, c, onProgress); res != nil {
				out <- res
			}
		}(c)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// runOne resuelve un connector: lo marca succeeded, failed o skipped y
// devuelve el resultado solo si tuvo éxito.
func (r *Runner) runOne(ctx context.Context, tracker *domain.RunTracker, target domain.Target, c ports.Connector, onProgress func()) *domain.ConnectorResult {
	name := c.Name()
	cfg := r.config(name)
	log := r.logger.With("connector", name)
	defer onProgress()

	if ctx.Err() != nil {
		_ = tracker.Skip(name, ReasonCancelled)
		return nil
	}

	var breaker *resilience.CircuitBreaker
	if r.breakers != nil {
		breaker = r.breakers.Get(name)
		if !breaker.Allow() {
			log.Warn("circuit open, skipping connector")
			_ = tracker.Skip(name, ReasonCircuitOpen)
			return nil
		}
	}

	gate := r.gates.Get(name, rate.GateConfig{Rate: cfg.RateLimit, Burst: cfg.Burst, MaxConcurrent: cfg.MaxConcurrency})
	policy := r.retry
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}

	_ = tracker.Start(name)
	onProgress()

	var result *domain.ConnectorResult
	attempts, err := resilience.Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		release, err := gate.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("%w: waiting for %s: %w", errors.ErrCancellationRequested, name, err)
		}
		defer release()

		_ = tracker.Attempt(name)
		res, err := r.call(ctx, c, target, cfg.Timeout, attempt)
		if err != nil {
			return err
		}
		result = res
		return nil
	}, func(a resilience.Attempt) {
		log.Debug("connector attempt failed", "attempt", a.Number, "error", a.Err.Error(), "retry_in", a.Delay.String())
	})

	if err == nil {
		result = r.stamp(result, tracker, name, target)
		_ = tracker.Succeed(name, len(result.Findings))
		if breaker != nil {
			breaker.RecordSuccess()
		}
		log.Debug("connector succeeded", "attempts", attempts, "findings", len(result.Findings))
		return result
	}

	reason := failureReason(err)
	if reason == ReasonCancelled {
		_ = tracker.Fail(name, err, reason)
		log.Debug("connector cancelled", "attempts", attempts)
		return nil
	}

	_ = tracker.Fail(name, err, reason)
	if breaker != nil {
		breaker.RecordFailure()
	}
	log.Warn("connector failed", "attempts", attempts, "reason", reason, "error", err.Error())
	return nil
}

type fetchOutcome struct {
	res *domain.ConnectorResult
	err error
}

// call invoca Fetch con timeout. Si el connector no vuelve tras el timeout
// (o la cancelación) más el grace period, la llamada se abandona.
func (r *Runner) call(ctx context.Context, c ports.Connector, target domain.Target, timeout time.Duration, attempt int) (*domain.ConnectorResult, error) {
	name := c.Name()
	if timeout <= 0 {
		timeout = ports.DefaultConnectorConfig().Timeout
	}

	ctx, span := r.tracer.Start(ctx, "connector.fetch", trace.WithAttributes(
		attribute.String("connector", name),
		attribute.Int("attempt", attempt),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fetchOutcome{err: &errors.ConnectorError{Connector: name, Reason: ReasonPanic, Cause: fmt.Errorf("%v", p)}}
			}
		}()
		res, err := c.Fetch(callCtx, target)
		done <- fetchOutcome{res: res, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		grace := time.NewTimer(r.grace)
		select {
		case out = <-done:
			grace.Stop()
		case <-grace.C:
			r.logger.Warn("connector ignored cancellation, abandoning call", "connector", name, "grace", r.grace.String())
			out = fetchOutcome{err: callCtx.Err()}
		}
	}

	err := r.classify(ctx, callCtx, name, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, failureReason(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("findings", len(out.res.Findings)))
	return out.res, nil
}

// classify traduce el desenlace de Fetch a la taxonomía de errores.
func (r *Runner) classify(parent, callCtx context.Context, name string, out fetchOutcome) error {
	switch {
	case parent.Err() != nil:
		// cancelación del run: un resultado que llegó completo se conserva
		if out.err == nil && out.res != nil {
			return nil
		}
		return fmt.Errorf("%w: %w", errors.ErrCancellationRequested, parent.Err())
	case out.err != nil && callCtx.Err() == context.DeadlineExceeded:
		return &errors.ConnectorError{Connector: name, Temporary: true, Reason: ReasonTimeout, Cause: out.err}
	case out.err != nil:
		return out.err
	case out.res == nil:
		return errors.Permanent(name, errors.New("connector returned no result"))
	case !out.res.Success:
		msg := out.res.Error
		if msg == "" {
			msg = "connector reported failure"
		}
		return errors.Permanent(name, errors.New(msg))
	}
	return nil
}

// stamp completa los metadatos que el connector pudo omitir.
func (r *Runner) stamp(res *domain.ConnectorResult, tracker *domain.RunTracker, name string, target domain.Target) *domain.ConnectorResult {
	if res.ID == "" {
		res.ID = domain.NewConnectorResult(name, target.ID).ID
	}
	if res.Connector == "" {
		res.Connector = name
	}
	if res.TargetID == "" {
		res.TargetID = target.ID
	}
	if res.FetchedAt.IsZero() {
		res.FetchedAt = time.Now().UTC()
	}
	res.RunID = tracker.ID()
	return res
}

// failureReason devuelve la razón visible en el RunJob.
func failureReason(err error) string {
	var ce *errors.ConnectorError
	if errors.As(err, &ce) && ce.Reason != "" {
		return ce.Reason
	}
	return errors.Classify(err).String()
}
