// internal/adapters/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"baykus/internal/core/domain"
)

// Report es el documento final de una investigación.
type Report struct {
	Target  domain.Target     `json:"target"`
	Run     domain.RunSummary `json:"run"`
	Summary GraphSummary      `json:"summary"`
	Graph   *domain.Graph     `json:"graph"`
}

// GraphSummary resume el grafo de un target.
type GraphSummary struct {
	TotalAssets        int            `json:"total_assets"`
	TotalRelationships int            `json:"total_relationships"`
	AssetsByType       map[string]int `json:"assets_by_type"`
	RelationsByKind    map[string]int `json:"relations_by_kind"`
	RiskByLevel        map[string]int `json:"risk_by_level"`
	TopRisks           []RiskEntry    `json:"top_risks,omitempty"`
}

// RiskEntry es un asset puntuado dentro del resumen.
type RiskEntry struct {
	Asset string           `json:"asset"`
	Score float64          `json:"score"`
	Level domain.RiskLevel `json:"level"`
}

const topRisks = 10

// NewReport construye el informe ordenando el grafo para que la salida sea estable.
func NewReport(target domain.Target, run domain.RunSummary, g *domain.Graph) *Report {
	if g == nil {
		g = &domain.Graph{TargetID: target.ID}
	}
	g.Sort()
	return &Report{
		Target:  target,
		Run:     run,
		Summary: BuildGraphSummary(g),
		Graph:   g,
	}
}

// BuildGraphSummary cuenta assets, relaciones y niveles de riesgo.
func BuildGraphSummary(g *domain.Graph) GraphSummary {
	s := GraphSummary{
		TotalAssets:        len(g.Assets),
		TotalRelationships: len(g.Relationships),
		AssetsByType:       make(map[string]int),
		RelationsByKind:    make(map[string]int),
		RiskByLevel:        make(map[string]int),
	}

	var scored []RiskEntry
	for _, a := range g.Assets {
		s.AssetsByType[string(a.Type)]++
		if a.RiskScore == nil {
			continue
		}
		s.RiskByLevel[string(a.RiskLevel)]++
		scored = append(scored, RiskEntry{Asset: a.Key(), Score: a.Score(), Level: a.RiskLevel})
	}
	for _, r := range g.Relationships {
		s.RelationsByKind[string(r.Kind)]++
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Asset < scored[j].Asset
	})
	for _, e := range scored {
		if len(s.TopRisks) == topRisks || e.Level == domain.RiskLow {
			break
		}
		s.TopRisks = append(s.TopRisks, e)
	}
	return s
}

// sanitizeName convierte el nombre del target en un nombre de carpeta válido.
// Ejemplo: "ACME Corp." -> "acme_corp_"
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, strings.ToLower(name))
}

// WriteJSON guarda el informe en <dir>/<target>/baykus_<target>_<ts>.json y
// devuelve la ruta.
func WriteJSON(dir string, r *Report) (string, error) {
	if dir == "" {
		dir = "."
	}
	name := sanitizeName(r.Target.Name)
	fullDir := filepath.Join(dir, name)
	if err := os.MkdirAll(fullDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	ts := r.Run.EndedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	path := filepath.Join(fullDir, fmt.Sprintf("baykus_%s_%s.json", name, ts.UTC().Format("20060102_150405")))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := EncodeJSON(f, r, true); err != nil {
		return "", err
	}
	return path, nil
}

// EncodeJSON escribe el informe en w.
func EncodeJSON(w io.Writer, r *Report, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
