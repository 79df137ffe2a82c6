// internal/core/usecases/mocks_test.go
package usecases

import (
	"context"
	"sync"
	"sync/atomic"

	"baykus/internal/adapters/storage/memory"
	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/keylock"
)

// mockConnector es un connector configurable para tests.
type mockConnector struct {
	name  string
	kind  domain.ConnectorKind
	caps  []domain.AttributeType
	fetch func(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error)

	calls atomic.Int32
}

func newMockConnector(name string, fetch func(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error)) *mockConnector {
	return &mockConnector{
		name:  name,
		kind:  domain.ConnectorDomainInfo,
		caps:  []domain.AttributeType{domain.AttributeDomain, domain.AttributeEmail},
		fetch: fetch,
	}
}

func (m *mockConnector) Name() string                         { return m.name }
func (m *mockConnector) Kind() domain.ConnectorKind           { return m.kind }
func (m *mockConnector) Capabilities() []domain.AttributeType { return m.caps }

func (m *mockConnector) Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error) {
	m.calls.Add(1)
	return m.fetch(ctx, target)
}

// findings devuelve un fetch que siempre produce los findings dados.
func findings(name string, fs ...domain.Finding) func(context.Context, domain.Target) (*domain.ConnectorResult, error) {
	return func(_ context.Context, target domain.Target) (*domain.ConnectorResult, error) {
		res := domain.NewConnectorResult(name, target.ID)
		for _, f := range fs {
			res.Add(f)
		}
		return res, nil
	}
}

// faultyStore envuelve el store en memoria y falla bajo demanda.
type faultyStore struct {
	*memory.Store
	failAssets atomic.Bool
	failRuns   atomic.Bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.New()}
}

func (s *faultyStore) SaveAssetMerge(ctx context.Context, targetID string, a *domain.Asset) (*domain.Asset, error) {
	if s.failAssets.Load() {
		return nil, errors.New("disk full")
	}
	return s.Store.SaveAssetMerge(ctx, targetID, a)
}

func (s *faultyStore) SaveRunJobStatus(ctx context.Context, job domain.RunJob) error {
	if s.failRuns.Load() {
		return errors.New("disk full")
	}
	return s.Store.SaveRunJobStatus(ctx, job)
}

var _ ports.Storage = (*faultyStore)(nil)

// recordingSink guarda los eventos recibidos.
type recordingSink struct {
	mu        sync.Mutex
	progress  []domain.RunJob
	changed   []domain.Asset
	alerts    []domain.Alert
	summaries []domain.RunSummary

	onProgress func(domain.RunJob)
}

func (s *recordingSink) OnProgress(job domain.RunJob) {
	s.mu.Lock()
	s.progress = append(s.progress, job)
	fn := s.onProgress
	s.mu.Unlock()
	if fn != nil {
		fn(job)
	}
}

func (s *recordingSink) OnAssetChanged(_ string, a domain.Asset) {
	s.mu.Lock()
	s.changed = append(s.changed, a)
	s.mu.Unlock()
}

func (s *recordingSink) OnRunCompleted(_ string, summary domain.RunSummary) {
	s.mu.Lock()
	s.summaries = append(s.summaries, summary)
	s.mu.Unlock()
}

func (s *recordingSink) OnAlert(a domain.Alert) {
	s.mu.Lock()
	s.alerts = append(s.alerts, a)
	s.mu.Unlock()
}

func (s *recordingSink) Alerts() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Alert(nil), s.alerts...)
}

func (s *recordingSink) Summaries() []domain.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RunSummary(nil), s.summaries...)
}

// newTarget crea un target con un dominio y un email.
func newTarget(domainValue, email string) *domain.Target {
	t := domain.NewTarget("acme", domain.TargetOrganization)
	if domainValue != "" {
		_ = t.AddAttribute(domain.AttributeDomain, domainValue)
	}
	if email != "" {
		_ = t.AddAttribute(domain.AttributeEmail, email)
	}
	return t
}

// pipeline agrupa los componentes de merge sobre un store para tests de
// dedup, inferencia y scoring sin pasar por el orchestrator.
type pipeline struct {
	store      *faultyStore
	graphs     *Graphs
	normalizer *Normalizer
	dedup      *Deduplicator
	inference  *InferenceEngine
	scoring    *ScoringEngine
}

func newPipeline(t interface{ Fatalf(string, ...any) }) *pipeline {
	store := newFaultyStore()
	graphs := NewGraphs(store)
	locks := keylock.New()
	scoring, err := NewScoringEngine(graphs, store, locks, ScoringOptions{PropagationFactor: 0.5})
	if err != nil {
		t.Fatalf("scoring engine: %v", err)
	}
	return &pipeline{
		store:      store,
		graphs:     graphs,
		normalizer: NewNormalizer(nil),
		dedup:      NewDeduplicator(graphs, store, locks, nil),
		inference:  NewInferenceEngine(graphs, store, locks, InferenceOptions{}),
		scoring:    scoring,
	}
}

// ingest normaliza, fusiona e infiere un resultado completo.
func (p *pipeline) ingest(ctx context.Context, res *domain.ConnectorResult) error {
	n, err := p.normalizer.Normalize(res)
	if err != nil {
		return err
	}
	if err := p.inference.RegisterLinks(ctx, res.TargetID, n); err != nil {
		return err
	}
	for _, c := range n.Candidates {
		out, err := p.dedup.Merge(ctx, res.TargetID, c, n.Provenance(c))
		if err != nil {
			return err
		}
		if !out.Changed {
			continue
		}
		if _, err := p.inference.Infer(ctx, res.TargetID, out.Asset); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) snapshot(ctx context.Context, targetID string) *domain.Graph {
	g, err := p.graphs.Open(ctx, targetID)
	if err != nil {
		return &domain.Graph{}
	}
	return g.Snapshot()
}

func result(connector, targetID string, fs ...domain.Finding) *domain.ConnectorResult {
	res := domain.NewConnectorResult(connector, targetID)
	for _, f := range fs {
		res.Add(f)
	}
	return res
}
