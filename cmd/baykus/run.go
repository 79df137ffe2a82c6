// cmd/baykus/run.go
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"baykus/internal/adapters/archive"
	"baykus/internal/adapters/events"
	"baykus/internal/adapters/output"
	"baykus/internal/adapters/storage/memory"
	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/core/usecases"
	"baykus/internal/platform/config"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/rate"
	"baykus/internal/platform/registry"
	"baykus/internal/platform/resilience"
	"baykus/internal/platform/rules"
	"baykus/internal/platform/telemetry"
	"baykus/internal/platform/ui"
)

type runOptions struct {
	name      string
	kind      string
	domains   []string
	emails    []string
	usernames []string
	phones    []string
	names     []string
	noTable   bool
	jsonOut   bool
}

func newRunCmd(flags *config.Flags) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an investigation against a target",
		Example: `  baykus run --name acme --kind organization --domain acme.io --email ops@acme.io
  baykus run -n octo --username octocat --disable pastebin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInvestigation(cmd.Context(), flags, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.name, "name", "n", "", "Target name (required)")
	f.StringVar(&opts.kind, "kind", string(domain.TargetPerson), "person|organization")
	f.StringSliceVarP(&opts.domains, "domain", "d", nil, "Domain attribute (repeatable)")
	f.StringSliceVarP(&opts.emails, "email", "e", nil, "Email attribute (repeatable)")
	f.StringSliceVarP(&opts.usernames, "username", "u", nil, "Username attribute (repeatable)")
	f.StringSliceVar(&opts.phones, "phone", nil, "Phone attribute (repeatable)")
	f.StringSliceVar(&opts.names, "full-name", nil, "Full name attribute (repeatable)")
	f.BoolVar(&opts.noTable, "no-table", false, "Do not print the summary table")
	f.BoolVar(&opts.jsonOut, "json", false, "Print the JSON report to stdout")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// buildTarget arma el target a partir de los flags.
func (o *runOptions) buildTarget() (*domain.Target, error) {
	target := domain.NewTarget(o.name, domain.TargetKind(o.kind))
	attrs := []struct {
		attr   domain.AttributeType
		values []string
	}{
		{domain.AttributeDomain, o.domains},
		{domain.AttributeEmail, o.emails},
		{domain.AttributeUsername, o.usernames},
		{domain.AttributePhone, o.phones},
		{domain.AttributeName, o.names},
	}
	for _, a := range attrs {
		for _, v := range a.values {
			if err := target.AddAttribute(a.attr, v); err != nil {
				return nil, err
			}
		}
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return target, nil
}

func runInvestigation(parent context.Context, flags *config.Flags, opts *runOptions) error {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return err
	}
	target, err := opts.buildTarget()
	if err != nil {
		return usageError(err)
	}

	ctx, cancel := rootContextWithSignals(parent, cfg.Timeout)
	defer cancel()

	// storage y cierres usan un contexto que sobrevive a la cancelación
	bg := context.WithoutCancel(ctx)

	shutdown, err := initTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(bg); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err.Error())
		}
	}()

	// eventos: presenter + log + jsonl, detrás de un único dispatcher
	presenter := ui.New(cfg.Quiet)
	stream, err := output.NewStreamingWriter(cfg.OutputDir, target.Name, logger)
	if err != nil {
		return err
	}
	summaries := &summarySink{}
	dispatcher := events.NewDispatcher(cfg.Orchestrator.EventBuffer, logger,
		presenter, events.NewLogSink(logger), stream, summaries)

	orch, err := buildOrchestrator(ctx, cfg, logger, dispatcher)
	if err == nil && len(orch.Connectors()) == 0 {
		err = usageError(errors.New("no connectors enabled"))
	}
	if err != nil {
		_ = dispatcher.Close()
		_ = stream.Close()
		if errors.Is(err, errors.ErrInvalidInput) {
			return usageError(err)
		}
		return err
	}
	connectors := orch.Connectors()
	defer closeConnectors(connectors, logger)

	names := make([]string, 0, len(connectors))
	for _, c := range connectors {
		names = append(names, c.Name())
	}
	presenter.Start(*target, names)

	logger.Info("Baykus starting",
		"version", version,
		"target", target.Name,
		"connectors", len(connectors),
	)

	job, runErr := orch.Investigate(ctx, target)

	// vaciar eventos antes de escribir el informe
	_ = dispatcher.Close()
	_ = presenter.Close()
	if err := stream.Close(); err != nil {
		logger.Warn("events file not closed cleanly", "error", err.Error())
	}

	if job == nil {
		return runErr
	}

	g, err := orch.Graph(bg, target.ID)
	if err != nil {
		return errors.Join(runErr, err)
	}
	summary, ok := summaries.Last()
	if !ok {
		summary = domain.RunSummary{RunID: job.ID, TargetID: job.TargetID, Status: job.Status, Connectors: job.Connectors, StartedAt: job.StartedAt, EndedAt: job.EndedAt, Error: job.Error}
	}
	report := output.NewReport(*target, summary, g)

	if err := writeOutputs(cfg, opts, report, logger); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func buildOrchestrator(ctx context.Context, cfg config.Config, logger logx.Logger, sink ports.EventSink) (*usecases.Orchestrator, error) {
	engine, err := rules.NewEngine(cfg.Scoring.Indicators)
	if err != nil {
		return nil, usageError(fmt.Errorf("scoring indicators: %w", err))
	}

	var breakers *resilience.Breakers
	if cfg.Runner.BreakerEnabled {
		breakers = resilience.NewBreakers(cfg.Runner.Breaker)
	}
	tracer := telemetry.NoopTracer()
	if cfg.Telemetry.Enabled {
		tracer = telemetry.Tracer()
	}

	runner := usecases.NewRunner(usecases.RunnerOptions{
		Configs:     cfg.Connectors,
		Retry:       cfg.Runner.Retry,
		Breakers:    breakers,
		Gates:       rate.NewSet(),
		GracePeriod: cfg.Runner.GracePeriod,
		Logger:      logger,
		Tracer:      tracer,
	})

	opts := usecases.OrchestratorOptions{
		Registry:         registry.Global(),
		ConnectorConfigs: cfg.Connectors,
		Storage:          memory.New(),
		Sink:             sink,
		Runner:           runner,
		Inference: usecases.InferenceOptions{
			Confidences: inferenceConfidences(cfg.Inference),
			Combine:     combineFunc(cfg.Inference.Combine),
			Logger:      logger,
		},
		Scoring: usecases.ScoringOptions{
			Rules:             engine,
			PropagationFactor: cfg.Scoring.PropagationFactor,
			NoPropagation:     cfg.Scoring.PropagationFactor == 0,
			Damping:           cfg.Scoring.Damping,
			Logger:            logger,
		},
		MergeWorkers: cfg.Orchestrator.MergeWorkers,
		Logger:       logger,
		Tracer:       tracer,
	}

	arch, err := archive.Open(ctx, cfg.Archive, logger)
	if err != nil {
		return nil, err
	}
	if arch != nil {
		opts.Archive = arch
	}
	return usecases.NewOrchestrator(opts)
}

func inferenceConfidences(c config.Inference) map[domain.RelationshipKind]float64 {
	out := usecases.DefaultConfidences()
	for kind, v := range c.Confidences {
		out[domain.RelationshipKind(kind)] = v
	}
	return out
}

func combineFunc(name string) domain.CombineFunc {
	if name == "max" {
		return domain.CombineMax
	}
	return domain.CombineIndependent
}

func initTelemetry(ctx context.Context, cfg config.Config, logger logx.Logger) (telemetry.ShutdownFunc, error) {
	if !cfg.Telemetry.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	logger.Debug("tracing enabled", "endpoint", cfg.Telemetry.Endpoint)
	return shutdown, nil
}

// writeOutputs escribe el informe JSON y, si procede, la tabla y el JSON por stdout.
func writeOutputs(cfg config.Config, opts *runOptions, report *output.Report, logger logx.Logger) error {
	path, err := output.WriteJSON(cfg.OutputDir, report)
	if err != nil {
		return fmt.Errorf("json output: %w", err)
	}
	logger.Info("report written", "path", path)

	if opts.jsonOut {
		return output.EncodeJSON(os.Stdout, report, true)
	}
	if !opts.noTable {
		if err := output.WriteTable(os.Stdout, report); err != nil {
			return fmt.Errorf("table output: %w", err)
		}
	}
	return nil
}

func closeConnectors(connectors []ports.Connector, logger logx.Logger) {
	for _, c := range connectors {
		closer, ok := c.(ports.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close connector", "connector", c.Name(), "error", err.Error())
		}
	}
}

// summarySink se queda con el último resumen publicado.
type summarySink struct {
	ports.NopSink

	mu      sync.Mutex
	summary *domain.RunSummary
}

func (s *summarySink) OnRunCompleted(_ string, summary domain.RunSummary) {
	s.mu.Lock()
	s.summary = &summary
	s.mu.Unlock()
}

func (s *summarySink) Last() (domain.RunSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return domain.RunSummary{}, false
	}
	return *s.summary, true
}
