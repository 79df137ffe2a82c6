// internal/core/usecases/orchestrator.go
package usecases

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/keylock"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/telemetry"
	"baykus/internal/platform/workerpool"
)

// ReasonNormalization marca un connector cuyo payload no se pudo normalizar.
const ReasonNormalization = "normalization"

// OrchestratorOptions configura el Orchestrator.
type OrchestratorOptions struct {
	// Connectors ya instanciados. Si está vacío se construyen desde Registry
	// con ConnectorConfigs.
	Connectors       []ports.Connector
	Registry         ports.Registry
	ConnectorConfigs map[string]ports.ConnectorConfig

	Storage ports.Storage

	// Archive guarda cada ConnectorResult antes de normalizarlo (opcional)
	Archive ports.ResultArchive

	// Sink recibe los eventos del run (nil = NopSink)
	Sink ports.EventSink

	// Runner compartido entre runs (nil = runner por defecto)
	Runner *Runner

	Inference InferenceOptions
	Scoring   ScoringOptions

	// MergeWorkers tamaño del pool de merge (default 8)
	MergeWorkers int

	Logger logx.Logger
	Tracer trace.Tracer
}

// Orchestrator coordina una investigación completa: connectors, merge,
// inferencia, scoring y reconciliación final.
type Orchestrator struct {
	connectors []ports.Connector
	store      ports.Storage
	archive    ports.ResultArchive
	sink       ports.EventSink
	runner     *Runner
	workers    int
	logger     logx.Logger
	tracer     trace.Tracer

	graphs     *Graphs
	normalizer *Normalizer
	dedup      *Deduplicator
	inference  *InferenceEngine
	scoring    *ScoringEngine

	mu   sync.Mutex
	runs map[string]context.CancelFunc
}

// NewOrchestrator crea un orchestrator.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Storage == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "orchestrator requires a storage")
	}
	if opts.Logger == nil {
		opts.Logger = logx.Discard()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer()
	}
	if opts.Sink == nil {
		opts.Sink = ports.NopSink{}
	}
	if opts.MergeWorkers <= 0 {
		opts.MergeWorkers = 8
	}
	if opts.Runner == nil {
		opts.Runner = NewRunner(RunnerOptions{Logger: opts.Logger, Tracer: opts.Tracer})
	}
	if opts.Inference.Logger == nil {
		opts.Inference.Logger = opts.Logger
	}
	if opts.Scoring.Logger == nil {
		opts.Scoring.Logger = opts.Logger
	}

	if len(opts.Connectors) == 0 && opts.Registry != nil {
		built, err := opts.Registry.Build(opts.ConnectorConfigs, ports.Deps{Logger: opts.Logger})
		if err != nil {
			return nil, errors.Wrap(errors.Join(errors.ErrInvalidInput, err), "build connectors")
		}
		opts.Connectors = built
	}

	graphs := NewGraphs(opts.Storage)
	locks := keylock.New()
	scoring, err := NewScoringEngine(graphs, opts.Storage, locks, opts.Scoring)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		connectors: opts.Connectors,
		store:      opts.Storage,
		archive:    opts.Archive,
		sink:       opts.Sink,
		runner:     opts.Runner,
		workers:    opts.MergeWorkers,
		logger:     opts.Logger.With("component", "orchestrator"),
		tracer:     opts.Tracer,
		graphs:     graphs,
		normalizer: NewNormalizer(opts.Logger),
		dedup:      NewDeduplicator(graphs, opts.Storage, locks, opts.Logger),
		inference:  NewInferenceEngine(graphs, opts.Storage, locks, opts.Inference),
		scoring:    scoring,
		runs:       make(map[string]context.CancelFunc),
	}, nil
}

// Investigate ejecuta un run completo sobre target y devuelve su RunJob final.
// Solo devuelve error si el target es inválido o el run terminó en failed;
// un run cancelado devuelve el job en estado cancelled sin error.
func (o *Orchestrator) Investigate(ctx context.Context, target *domain.Target) (*domain.RunJob, error) {
	if target == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nil target")
	}
	if err := target.Validate(); err != nil {
		return nil, errors.Wrap(errors.Join(errors.ErrInvalidInput, err), "investigate")
	}

	tracker := domain.NewRunTracker(target.ID)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.register(tracker.ID(), cancel)
	defer o.unregister(tracker.ID())

	runCtx, span := o.tracer.Start(runCtx, "investigation.run", trace.WithAttributes(
		attribute.String("target.id", target.ID),
		attribute.String("run.id", tracker.ID()),
	))
	defer span.End()

	r := &run{
		o:       o,
		tracker: tracker,
		target:  target,
		cancel:  cancel,
		bg:      context.WithoutCancel(runCtx),
		logger:  o.logger.With("run", tracker.ID(), "target", target.ID),
	}
	job, err := r.execute(runCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(job.Status))
	}
	span.SetAttributes(attribute.String("run.status", string(job.Status)))
	return job, err
}

// Cancel solicita la cancelación cooperativa de un run en curso.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.Lock()
	cancel, ok := o.runs[runID]
	o.mu.Unlock()
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "run %s", runID)
	}
	cancel()
	return nil
}

// Graph devuelve la foto actual del grafo de un target.
func (o *Orchestrator) Graph(ctx context.Context, targetID string) (*domain.Graph, error) {
	g, err := o.graphs.Open(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return g.Snapshot(), nil
}

// Connectors devuelve los connectors configurados.
func (o *Orchestrator) Connectors() []ports.Connector {
	return append([]ports.Connector(nil), o.connectors...)
}

func (o *Orchestrator) register(runID string, cancel context.CancelFunc) {
	o.mu.Lock()
	o.runs[runID] = cancel
	o.mu.Unlock()
}

func (o *Orchestrator) unregister(runID string) {
	o.mu.Lock()
	delete(o.runs, runID)
	o.mu.Unlock()
}

// run es el estado de una investigación en curso.
type run struct {
	o       *Orchestrator
	tracker *domain.RunTracker
	target  *domain.Target
	cancel  context.CancelFunc
	// bg hereda valores del run pero no su cancelación; se usa para
	// persistir estados después de cancelar
	bg     context.Context
	logger logx.Logger

	progressMu sync.Mutex

	mu     sync.Mutex
	fatal  error
	alerts []domain.Alert
}

func (r *run) execute(ctx context.Context) (*domain.RunJob, error) {
	r.progress()
	r.target.Status = domain.TargetRunning

	if _, err := r.o.graphs.Open(ctx, r.target.ID); err != nil {
		r.fail(err)
		return r.finish(ctx)
	}
	if err := r.tracker.Transition(domain.RunRunning, nil); err != nil {
		r.fail(errors.Wrap(errors.Join(errors.ErrInvariant, err), "start run"))
		return r.finish(ctx)
	}
	r.logger.Info("investigation started", "connectors", len(r.o.connectors))
	r.progress()

	pool := workerpool.New(workerpool.Config{
		Workers:   r.o.workers,
		QueueSize: r.o.workers * 4,
		Logger:    r.o.logger,
		OnResult: func(tr workerpool.TaskResult) {
			if tr.Error != nil {
				r.taskError(tr.Task.Name(), tr.Error)
			}
		},
	})
	pool.Start(ctx)

	results := r.o.runner.Run(ctx, r.tracker, *r.target, r.o.connectors, r.progress)
	for res := range results {
		// tras cancelar se drena el stream sin encolar más trabajo
		if ctx.Err() != nil {
			continue
		}
		res := res
		task := workerpool.Func{
			TaskName: res.Connector,
			Fn:       func(ctx context.Context) error { return r.process(ctx, res) },
		}
		if err := pool.Submit(ctx, task); err != nil {
			r.logger.Debug("result discarded", "connector", res.Connector, "error", err.Error())
		}
	}
	pool.Close()

	if r.fatalErr() == nil && ctx.Err() == nil {
		r.reconcile(ctx)
	}
	return r.finish(ctx)
}

// process archiva, normaliza y fusiona un ConnectorResult. Cada merge
// dispara su inferencia y su scoring incremental.
func (r *run) process(ctx context.Context, res *domain.ConnectorResult) error {
	ctx, span := r.o.tracer.Start(ctx, "merge.batch", trace.WithAttributes(
		attribute.String("connector", res.Connector),
		attribute.String("result.id", res.ID),
	))
	defer span.End()

	if r.o.archive != nil {
		if err := r.o.archive.Archive(ctx, res); err != nil {
			r.logger.Warn("archive failed", "connector", res.Connector, "result", res.ID, "error", err.Error())
		}
	}

	n, err := r.o.normalizer.Normalize(res)
	if err != nil {
		r.logger.Warn("malformed connector payload", "connector", res.Connector, "error", err.Error())
		_ = r.tracker.Fail(res.Connector, err, ReasonNormalization)
		r.progress()
		return nil
	}
	if err := r.o.inference.RegisterLinks(ctx, r.target.ID, n); err != nil {
		return err
	}

	merged := 0
	for _, c := range n.Candidates {
		if ctx.Err() != nil {
			return nil
		}
		out, err := r.o.dedup.Merge(ctx, r.target.ID, c, n.Provenance(c))
		if err != nil {
			return err
		}
		if !out.Changed {
			continue
		}
		merged++
		r.o.sink.OnAssetChanged(r.target.ID, *out.Asset)

		if _, err := r.o.inference.Infer(ctx, r.target.ID, out.Asset); err != nil {
			return err
		}
		updates, err := r.o.scoring.Score(ctx, r.target.ID, out.Asset)
		if err != nil {
			return err
		}
		r.emit(updates)
	}
	span.SetAttributes(attribute.Int("candidates", len(n.Candidates)), attribute.Int("merged", merged))
	return nil
}

// reconcile hace la pasada completa de inferencia y scoring.
func (r *run) reconcile(ctx context.Context) {
	ctx, span := r.o.tracer.Start(ctx, "investigation.reconcile")
	defer span.End()

	if _, err := r.o.inference.Reconcile(ctx, r.target.ID); err != nil {
		r.taskError("reconcile", err)
		return
	}
	updates, err := r.o.scoring.Reconcile(ctx, r.target.ID)
	r.emit(updates)
	if err != nil {
		r.taskError("reconcile", err)
	}
}

func (r *run) emit(updates []ScoreUpdate) {
	for _, u := range updates {
		r.o.sink.OnAssetChanged(r.target.ID, *u.Asset)
		if u.Alert == nil {
			continue
		}
		r.mu.Lock()
		r.alerts = append(r.alerts, *u.Alert)
		r.mu.Unlock()
		r.o.sink.OnAlert(*u.Alert)
	}
}

// progress persiste y publica la foto actual del run.
func (r *run) progress() {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()

	job := r.tracker.Snapshot()
	if err := r.o.store.SaveRunJobStatus(r.bg, job); err != nil {
		r.fail(storageErr(err, "save run %s", job.ID))
	}
	r.o.sink.OnProgress(job)
}

// taskError decide si un error de merge aborta el run.
func (r *run) taskError(task string, err error) {
	switch {
	case errors.IsFatal(err):
		r.fail(err)
	case errors.Classify(err) == errors.ClassCancelled:
		r.logger.Debug("task cancelled", "task", task)
	default:
		r.logger.Err(err, "task", task)
	}
}

// fail registra el primer error fatal y cancela el run.
func (r *run) fail(err error) {
	r.mu.Lock()
	if r.fatal == nil {
		r.fatal = err
		r.logger.Err(err, "msg", "run aborted")
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *run) fatalErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

// finish fija el estado terminal, persiste el job y publica el resumen.
func (r *run) finish(ctx context.Context) (*domain.RunJob, error) {
	fatal := r.fatalErr()
	switch {
	case fatal != nil:
		r.tracker.SkipPending(ReasonCancelled)
		_ = r.tracker.Transition(domain.RunFailed, fatal)
		r.target.Status = domain.TargetFailed
	case ctx.Err() != nil:
		r.tracker.SkipPending(ReasonCancelled)
		_ = r.tracker.Transition(domain.RunCancelled, nil)
		r.target.Status = domain.TargetPending
	default:
		_ = r.tracker.Transition(domain.RunCompleted, nil)
		r.target.Status = domain.TargetCompleted
	}

	job := r.tracker.Snapshot()
	if err := r.o.store.SaveRunJobStatus(r.bg, job); err != nil {
		r.logger.Err(err, "msg", "final run status not persisted")
	}
	r.o.sink.OnProgress(job)

	summary := domain.RunSummary{
		RunID:      job.ID,
		TargetID:   job.TargetID,
		Status:     job.Status,
		Connectors: job.Connectors,
		StartedAt:  job.StartedAt,
		EndedAt:    job.EndedAt,
		Error:      job.Error,
	}
	if g, err := r.o.graphs.Open(r.bg, r.target.ID); err == nil {
		summary.Assets, summary.Relationships = g.Counts()
	}
	r.mu.Lock()
	summary.Alerts = append([]domain.Alert(nil), r.alerts...)
	r.mu.Unlock()
	r.o.sink.OnRunCompleted(r.target.ID, summary)

	r.logger.Info("investigation finished",
		"status", string(job.Status),
		"assets", summary.Assets,
		"relationships", summary.Relationships,
		"alerts", len(summary.Alerts),
		"duration", summary.Duration().String(),
	)

	if fatal != nil {
		return &job, errors.Wrapf(fatal, "run %s failed", job.ID)
	}
	return &job, nil
}
