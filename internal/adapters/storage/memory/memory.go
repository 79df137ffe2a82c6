// internal/adapters/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"

	"baykus/internal/core/domain"
	"baykus/internal/platform/errors"
)

type targetGraph struct {
	assets map[string]*domain.Asset        // key -> asset
	rels   map[string]*domain.Relationship // rel key -> relationship
}

// Store es un ports.Storage en memoria. Guarda copias y es seguro para uso
// concurrente; sirve para la CLI y para tests.
type Store struct {
	mu      sync.RWMutex
	targets map[string]*targetGraph
	jobs    map[string][]domain.RunJob // run id -> historial de estados
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		targets: make(map[string]*targetGraph),
		jobs:    make(map[string][]domain.RunJob),
	}
}

func (s *Store) graph(targetID string) *targetGraph {
	g, ok := s.targets[targetID]
	if !ok {
		g = &targetGraph{
			assets: make(map[string]*domain.Asset),
			rels:   make(map[string]*domain.Relationship),
		}
		s.targets[targetID] = g
	}
	return g
}

// LoadGraph devuelve una foto ordenada del grafo. Un target desconocido
// tiene grafo vacío.
func (s *Store) LoadGraph(ctx context.Context, targetID string) (*domain.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &domain.Graph{TargetID: targetID}
	g, ok := s.targets[targetID]
	if !ok {
		return out, nil
	}
	for _, a := range g.assets {
		out.Assets = append(out.Assets, a.Clone())
	}
	for _, r := range g.rels {
		out.Relationships = append(out.Relationships, r.Clone())
	}
	out.Sort()
	return out, nil
}

// SaveAssetMerge reemplaza el asset con la misma clave.
func (s *Store) SaveAssetMerge(ctx context.Context, targetID string, asset *domain.Asset) (*domain.Asset, error) {
	if asset == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nil asset")
	}
	if asset.TargetID != "" && asset.TargetID != targetID {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "asset %s belongs to target %s", asset.Key(), asset.TargetID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := asset.Clone()
	s.graph(targetID).assets[c.Key()] = c
	return c.Clone(), nil
}

// SaveRelationship reemplaza la relación con la misma clave.
func (s *Store) SaveRelationship(ctx context.Context, targetID string, rel *domain.Relationship) (*domain.Relationship, error) {
	if rel == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nil relationship")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := rel.Clone()
	s.graph(targetID).rels[c.Key()] = c
	return c.Clone(), nil
}

// SaveRunJobStatus añade la foto al historial del run.
func (s *Store) SaveRunJobStatus(ctx context.Context, job domain.RunJob) error {
	if job.ID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "run job without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Connectors = append([]domain.ConnectorRun(nil), job.Connectors...)
	s.jobs[job.ID] = append(s.jobs[job.ID], job)
	return nil
}

// RunJob devuelve el último estado persistido de un run.
func (s *Store) RunJob(runID string) (domain.RunJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.jobs[runID]
	if len(h) == 0 {
		return domain.RunJob{}, errors.Wrapf(errors.ErrNotFound, "run %s", runID)
	}
	return h[len(h)-1], nil
}

// RunHistory devuelve todos los estados persistidos de un run, en orden.
func (s *Store) RunHistory(runID string) []domain.RunJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RunJob(nil), s.jobs[runID]...)
}

// Targets lista los targets con grafo, ordenados.
func (s *Store) Targets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.targets))
	for id := range s.targets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
