// internal/core/usecases/deduplicator.go
package usecases

import (
	"context"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/keylock"
	"baykus/internal/platform/logx"
)

// MergeOutcome describe el efecto de un merge.
type MergeOutcome struct {
	Asset   *domain.Asset
	Created bool
	// Changed es false cuando el resultado ya había contribuido al asset
	Changed bool
}

// Deduplicator fusiona candidatos en el grafo del target.
// Merges de la misma clave se serializan; claves distintas van en paralelo.
type Deduplicator struct {
	graphs *Graphs
	store  ports.Storage
	locks  *keylock.Map
	logger logx.Logger
}

// NewDeduplicator crea un deduplicator. locks debe ser compartido con el
// scoring para que ambos escriban el mismo asset en exclusión mutua.
func NewDeduplicator(graphs *Graphs, store ports.Storage, locks *keylock.Map, logger logx.Logger) *Deduplicator {
	if locks == nil {
		locks = keylock.New()
	}
	if logger == nil {
		logger = logx.Discard()
	}
	return &Deduplicator{graphs: graphs, store: store, locks: locks, logger: logger.With("component", "dedup")}
}

func assetLockKey(targetID, key string) string {
	return "asset|" + targetID + "|" + key
}

// Merge aplica c con provenance p al asset (type, value) del target y
// persiste el estado fusionado dentro del lock de la clave.
// La espera por el lock respeta ctx; una vez dentro, el merge no se interrumpe.
func (d *Deduplicator) Merge(ctx context.Context, targetID string, c domain.Candidate, p domain.Provenance) (MergeOutcome, error) {
	if !c.Type.IsValid() || c.Value == "" {
		return MergeOutcome{}, errors.Wrapf(errors.ErrInvariant, "merge of non canonical candidate %q", c.Key())
	}

	g, err := d.graphs.Open(ctx, targetID)
	if err != nil {
		return MergeOutcome{}, err
	}

	unlock, err := d.locks.Lock(ctx, assetLockKey(targetID, c.Key()))
	if err != nil {
		return MergeOutcome{}, errors.Wrapf(errors.ErrCancellationRequested, "merge %s: %v", c.Key(), err)
	}
	defer unlock()

	asset, exists := g.Asset(c.Key())
	if !exists {
		asset = domain.NewAsset(targetID, c.Type, c.Value)
	}

	changed, err := asset.Merge(c, p)
	if err != nil {
		return MergeOutcome{}, errors.Wrap(errors.Join(errors.ErrInvariant, err), "merge")
	}
	if !changed {
		return MergeOutcome{Asset: asset, Changed: false}, nil
	}

	saved, err := d.store.SaveAssetMerge(context.WithoutCancel(ctx), targetID, asset)
	if err != nil {
		return MergeOutcome{}, storageErr(err, "save asset %s", c.Key())
	}
	if saved == nil {
		saved = asset
	}
	g.PutAsset(saved)

	d.logger.Debug("asset merged", "key", c.Key(), "connector", p.Connector, "created", !exists, "version", saved.Version)
	return MergeOutcome{Asset: saved.Clone(), Created: !exists, Changed: true}, nil
}
