// internal/core/usecases/scoring.go
package usecases

import (
	"context"
	"math"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/keylock"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/rules"
)

const (
	maxScore                 = 100.0
	defaultPropagationFactor = 0.5
)

// ScoringOptions configura el motor de riesgo.
type ScoringOptions struct {
	// Rules indicadores intrínsecos compilados (nil = rules.DefaultIndicators)
	Rules *rules.Engine

	// PropagationFactor atenúa el riesgo que llega por una arista.
	// 0 = default 0.5; para desactivar la propagación usar NoPropagation.
	PropagationFactor float64

	// NoPropagation puntúa solo con los indicadores intrínsecos
	NoPropagation bool

	// Damping suaviza los cambios incrementales según el número de fuentes
	Damping bool

	Logger logx.Logger
}

// ScoreUpdate es el resultado de puntuar un asset.
type ScoreUpdate struct {
	Asset *domain.Asset
	Alert *domain.Alert
}

// ScoringEngine calcula el riesgo de los assets de un target.
type ScoringEngine struct {
	graphs  *Graphs
	store   ports.Storage
	locks   *keylock.Map
	rules   *rules.Engine
	factor  float64
	damping bool
	logger  logx.Logger
}

// NewScoringEngine crea el motor. Solo falla si hay que compilar los
// indicadores por defecto y no compilan.
func NewScoringEngine(graphs *Graphs, store ports.Storage, locks *keylock.Map, opts ScoringOptions) (*ScoringEngine, error) {
	if opts.Rules == nil {
		eng, err := rules.NewEngine(rules.DefaultIndicators())
		if err != nil {
			return nil, errors.Wrap(err, "compile default indicators")
		}
		opts.Rules = eng
	}
	if opts.PropagationFactor < 0 || opts.PropagationFactor > 1 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "propagation factor %v out of [0,1]", opts.PropagationFactor)
	}
	switch {
	case opts.NoPropagation:
		opts.PropagationFactor = 0
	case opts.PropagationFactor == 0:
		opts.PropagationFactor = defaultPropagationFactor
	}
	if opts.Logger == nil {
		opts.Logger = logx.Discard()
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &ScoringEngine{
		graphs:  graphs,
		store:   store,
		locks:   locks,
		rules:   opts.Rules,
		factor:  opts.PropagationFactor,
		damping: opts.Damping,
		logger:  opts.Logger.With("component", "scoring"),
	}, nil
}

// Score recalcula changed y sus vecinos directos.
func (s *ScoringEngine) Score(ctx context.Context, targetID string, changed *domain.Asset) ([]ScoreUpdate, error) {
	g, err := s.graphs.Open(ctx, targetID)
	if err != nil {
		return nil, err
	}
	a, ok := g.Asset(changed.Key())
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvariant, "scoring unknown asset %s", changed.Key())
	}

	keys := []string{a.Key()}
	seen := map[string]bool{a.Key(): true}
	for _, rel := range g.RelationshipsOf(a.ID) {
		if n, ok := g.AssetByID(rel.Other(a.ID)); ok && !seen[n.Key()] {
			seen[n.Key()] = true
			keys = append(keys, n.Key())
		}
	}
	return s.scoreKeys(ctx, targetID, g, keys, s.damping)
}

// Reconcile recalcula todos los assets sin damping.
func (s *ScoringEngine) Reconcile(ctx context.Context, targetID string) ([]ScoreUpdate, error) {
	g, err := s.graphs.Open(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return s.scoreKeys(ctx, targetID, g, g.AssetKeys(), false)
}

func (s *ScoringEngine) scoreKeys(ctx context.Context, targetID string, g *AssetGraph, keys []string, damping bool) ([]ScoreUpdate, error) {
	var out []ScoreUpdate
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return out, errors.Wrapf(errors.ErrCancellationRequested, "scoring %s: %v", key, err)
		}
		upd, err := s.update(ctx, targetID, g, key, damping)
		if err != nil {
			return out, err
		}
		if upd != nil {
			out = append(out, *upd)
		}
	}
	return out, nil
}

// update puntúa un asset dentro de su lock. Devuelve nil si no cambió.
func (s *ScoringEngine) update(ctx context.Context, targetID string, g *AssetGraph, key string, damping bool) (*ScoreUpdate, error) {
	unlock, err := s.locks.Lock(ctx, assetLockKey(targetID, key))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCancellationRequested, "score %s: %v", key, err)
	}
	defer unlock()

	a, ok := g.Asset(key)
	if !ok {
		return nil, nil
	}

	intrinsic, reasons := s.Intrinsic(a)
	propagated, from := s.propagated(g, a)
	raw := clampScore(intrinsic + propagated)
	if propagated > 0 && from != "" {
		reasons = append(reasons, "propagated from "+from)
	}

	next := raw
	if damping && a.RiskScore != nil {
		if n := len(a.Sources()); n > 1 {
			prev := *a.RiskScore
			next = prev + (raw-prev)/float64(n)
		}
	}
	next = round(next)
	level := domain.LevelFor(next)

	if a.RiskScore != nil && *a.RiskScore == next && a.RiskLevel == level {
		return nil, nil
	}

	prevScore, prevLevel := a.Score(), a.RiskLevel
	a.RiskScore = &next
	a.RiskLevel = level
	a.Version++

	saved, err := s.store.SaveAssetMerge(context.WithoutCancel(ctx), targetID, a)
	if err != nil {
		return nil, storageErr(err, "save score %s", key)
	}
	if saved == nil {
		saved = a
	}
	g.PutAsset(saved)

	upd := &ScoreUpdate{Asset: saved.Clone()}
	// low es el nivel base: solo se alerta al subir por encima
	if level.Rank() > prevLevel.Rank() && level != domain.RiskLow {
		upd.Alert = &domain.Alert{
			TargetID: targetID,
			AssetID:  saved.ID,
			AssetKey: key,
			Severity: level,
			Previous: prevScore,
			Current:  next,
			Reasons:  reasons,
		}
		s.logger.Info("risk level raised", "asset", key, "from", string(prevLevel), "to", string(level), "score", next)
	}
	return upd, nil
}

// Intrinsic es la suma de los pesos de los indicadores que hacen match,
// acotada a 100, y los nombres de esos indicadores.
func (s *ScoringEngine) Intrinsic(a *domain.Asset) (float64, []string) {
	matches, err := s.rules.Evaluate(rules.Input{
		AssetType: string(a.Type),
		Value:     a.Value,
		Attrs:     a.Attributes,
		Sources:   len(a.Sources()),
	})
	if err != nil {
		s.logger.Debug("indicator evaluation failed", "asset", a.Key(), "error", err.Error())
	}
	total := 0.0
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		total += m.Weight
		names = append(names, m.Rule)
	}
	return clampScore(total), names
}

// propagated usa el riesgo intrínseco de los vecinos, no su score final,
// para que el resultado no dependa del orden de evaluación.
func (s *ScoringEngine) propagated(g *AssetGraph, a *domain.Asset) (float64, string) {
	best, from := 0.0, ""
	for _, rel := range g.RelationshipsOf(a.ID) {
		n, ok := g.AssetByID(rel.Other(a.ID))
		if !ok {
			continue
		}
		intrinsic, _ := s.Intrinsic(n)
		if v := intrinsic * rel.Confidence * s.factor; v > best {
			best, from = v, n.Key()
		}
	}
	return best, from
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(maxScore, v))
}

// round a 4 decimales para que 70*0.7*0.5 sea exactamente 24.5.
func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
