// internal/core/domain/graph.go
package domain

import "sort"

// Graph es una foto del grafo de un target tal como lo devuelve storage.
type Graph struct {
	TargetID      string          `json:"target_id"`
	Assets        []*Asset        `json:"assets"`
	Relationships []*Relationship `json:"relationships"`
}

// Sort ordena assets por clave y relaciones por clave, para salidas deterministas.
func (g *Graph) Sort() {
	sort.Slice(g.Assets, func(i, j int) bool { return g.Assets[i].Key() < g.Assets[j].Key() })
	sort.Slice(g.Relationships, func(i, j int) bool { return g.Relationships[i].Key() < g.Relationships[j].Key() })
}

// FindAsset busca un asset por tipo y valor canónico.
func (g *Graph) FindAsset(t AssetType, value string) *Asset {
	key := AssetKey(t, value)
	for _, a := range g.Assets {
		if a.Key() == key {
			return a
		}
	}
	return nil
}

// RelationshipsOf devuelve las aristas de un kind entre dos assets cualesquiera.
func (g *Graph) RelationshipsOf(kind RelationshipKind) []*Relationship {
	var out []*Relationship
	for _, r := range g.Relationships {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
