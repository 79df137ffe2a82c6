// internal/core/usecases/graph.go
package usecases

import (
	"context"
	"sort"
	"sync"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
)

// pendingLink es un Link explícito cuyo destino puede no existir todavía.
type pendingLink struct {
	kind       domain.RelationshipKind
	fromKey    string
	toKey      string
	confidence float64
	connector  string
	resultID   string
}

// AssetGraph es la vista en memoria del grafo de un target.
// Guarda copias: nadie fuera del paquete recibe punteros internos.
// Las mutaciones de un asset o relación las serializa el llamador con
// el lock por clave; el mutex interno solo protege los mapas.
type AssetGraph struct {
	targetID string

	mu       sync.RWMutex
	assets   map[string]*domain.Asset // key -> asset
	keyByID  map[string]string
	rels     map[string]*domain.Relationship // rel key -> relationship
	adj      map[string]map[string]struct{}  // asset id -> rel keys
	index    map[string]map[string]struct{}  // index key -> asset ids
	assetIdx map[string][]string             // asset id -> index keys
	linksTo  map[string][]pendingLink        // destino -> links
	linksOut map[string][]pendingLink        // origen -> links
}

// NewAssetGraph construye el grafo a partir de la foto de storage.
func NewAssetGraph(g *domain.Graph) *AssetGraph {
	ag := &AssetGraph{
		targetID: g.TargetID,
		assets:   make(map[string]*domain.Asset, len(g.Assets)),
		keyByID:  make(map[string]string, len(g.Assets)),
		rels:     make(map[string]*domain.Relationship, len(g.Relationships)),
		adj:      make(map[string]map[string]struct{}),
		index:    make(map[string]map[string]struct{}),
		assetIdx: make(map[string][]string),
		linksTo:  make(map[string][]pendingLink),
		linksOut: make(map[string][]pendingLink),
	}
	for _, a := range g.Assets {
		ag.PutAsset(a)
	}
	for _, r := range g.Relationships {
		ag.PutRelationship(r)
	}
	return ag
}

// TargetID del grafo.
func (g *AssetGraph) TargetID() string { return g.targetID }

// Asset devuelve una copia del asset con esa clave.
func (g *AssetGraph) Asset(key string) (*domain.Asset, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.assets[key]
	return a.Clone(), ok
}

// AssetByID devuelve una copia del asset con ese ID.
func (g *AssetGraph) AssetByID(id string) (*domain.Asset, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	key, ok := g.keyByID[id]
	if !ok {
		return nil, false
	}
	return g.assets[key].Clone(), true
}

// PutAsset guarda una copia y reindexa el asset.
func (g *AssetGraph) PutAsset(a *domain.Asset) {
	c := a.Clone()
	keys := indexKeys(c)

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, k := range g.assetIdx[c.ID] {
		if set := g.index[k]; set != nil {
			delete(set, c.ID)
			if len(set) == 0 {
				delete(g.index, k)
			}
		}
	}
	for _, k := range keys {
		set := g.index[k]
		if set == nil {
			set = make(map[string]struct{})
			g.index[k] = set
		}
		set[c.ID] = struct{}{}
	}
	g.assetIdx[c.ID] = keys
	g.assets[c.Key()] = c
	g.keyByID[c.ID] = c.Key()
}

// Lookup devuelve los IDs indexados bajo key, ordenados.
func (g *AssetGraph) Lookup(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.index[key]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Relationship devuelve una copia de la arista con esa clave.
func (g *AssetGraph) Relationship(key string) (*domain.Relationship, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rels[key]
	return r.Clone(), ok
}

// PutRelationship guarda una copia de la arista.
func (g *AssetGraph) PutRelationship(r *domain.Relationship) {
	c := r.Clone()
	key := c.Key()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.rels[key] = c
	for _, id := range []string{c.SourceID, c.TargetAssetID} {
		set := g.adj[id]
		if set == nil {
			set = make(map[string]struct{})
			g.adj[id] = set
		}
		set[key] = struct{}{}
	}
}

// RelationshipsOf devuelve copias de las aristas que tocan assetID, ordenadas por clave.
func (g *AssetGraph) RelationshipsOf(assetID string) []*domain.Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]string, 0, len(g.adj[assetID]))
	for k := range g.adj[assetID] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*domain.Relationship, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.rels[k].Clone())
	}
	return out
}

// AddLink registra un link explícito. Duplicados (mismo origen, destino,
// kind y resultado) se ignoran.
func (g *AssetGraph) AddLink(l pendingLink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.linksOut[l.fromKey] {
		if e.kind == l.kind && e.toKey == l.toKey && e.resultID == l.resultID {
			return
		}
	}
	g.linksOut[l.fromKey] = append(g.linksOut[l.fromKey], l)
	g.linksTo[l.toKey] = append(g.linksTo[l.toKey], l)
}

// LinksFrom devuelve los links cuyo origen es key.
func (g *AssetGraph) LinksFrom(key string) []pendingLink {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]pendingLink(nil), g.linksOut[key]...)
}

// LinksTo devuelve los links cuyo destino es key.
func (g *AssetGraph) LinksTo(key string) []pendingLink {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]pendingLink(nil), g.linksTo[key]...)
}

// AssetKeys devuelve todas las claves ordenadas.
func (g *AssetGraph) AssetKeys() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]string, 0, len(g.assets))
	for k := range g.assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Counts devuelve el número de assets y relaciones.
func (g *AssetGraph) Counts() (assets, relationships int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.assets), len(g.rels)
}

// Snapshot devuelve una foto ordenada e independiente del grafo.
func (g *AssetGraph) Snapshot() *domain.Graph {
	g.mu.RLock()
	out := &domain.Graph{
		TargetID:      g.targetID,
		Assets:        make([]*domain.Asset, 0, len(g.assets)),
		Relationships: make([]*domain.Relationship, 0, len(g.rels)),
	}
	for _, a := range g.assets {
		out.Assets = append(out.Assets, a.Clone())
	}
	for _, r := range g.rels {
		out.Relationships = append(out.Relationships, r.Clone())
	}
	g.mu.RUnlock()

	out.Sort()
	return out
}

// Graphs mantiene un AssetGraph por target, cargado de storage la primera vez.
// Todas las escrituras posteriores pasan por este proceso, así que la vista
// en memoria y el storage no divergen.
type Graphs struct {
	store ports.Storage

	mu sync.Mutex
	m  map[string]*AssetGraph
}

// NewGraphs crea el registro de grafos.
func NewGraphs(store ports.Storage) *Graphs {
	return &Graphs{store: store, m: make(map[string]*AssetGraph)}
}

// Open devuelve el grafo del target, cargándolo si hace falta.
func (g *Graphs) Open(ctx context.Context, targetID string) (*AssetGraph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ag, ok := g.m[targetID]; ok {
		return ag, nil
	}
	snap, err := g.store.LoadGraph(ctx, targetID)
	if err != nil {
		return nil, storageErr(err, "load graph %s", targetID)
	}
	if snap == nil {
		snap = &domain.Graph{}
	}
	snap.TargetID = targetID
	ag := NewAssetGraph(snap)
	g.m[targetID] = ag
	return ag, nil
}

// Evict descarta la vista en memoria de un target.
func (g *Graphs) Evict(targetID string) {
	g.mu.Lock()
	delete(g.m, targetID)
	g.mu.Unlock()
}

// storageErr envuelve err como ErrStorage salvo que ya lo sea.
func storageErr(err error, format string, args ...any) error {
	if errors.Is(err, errors.ErrStorage) {
		return errors.Wrapf(err, format, args...)
	}
	return errors.Wrapf(errors.Join(errors.ErrStorage, err), format, args...)
}
