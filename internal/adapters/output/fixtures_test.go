// internal/adapters/output/fixtures_test.go
package output

import (
	"time"

	"baykus/internal/core/domain"
	"baykus/internal/testutil"
)

func score(v float64) *float64 { return &v }

// fixtureReport construye un informe con IDs y tiempos fijos.
func fixtureReport() *Report {
	at := testutil.FixtureTime
	prov := []domain.Provenance{{Connector: "dns", ResultID: "res1", ObservedAt: at, Confidence: 0.9}}

	target := domain.Target{
		ID:         "t1",
		Name:       "ACME",
		Kind:       domain.TargetOrganization,
		Attributes: map[domain.AttributeType][]string{domain.AttributeDomain: {"example.com"}},
		CreatedAt:  at,
		Status:     domain.TargetCompleted,
	}
	// orden inverso a propósito: NewReport ordena
	g := &domain.Graph{
		TargetID: "t1",
		Assets: []*domain.Asset{
			{ID: "a2", TargetID: "t1", Type: domain.AssetIP, Value: "192.0.2.10", Provenance: prov, RiskScore: score(0), RiskLevel: domain.RiskLow, FirstSeen: at, LastSeen: at, Version: 2},
			{ID: "a1", TargetID: "t1", Type: domain.AssetDomain, Value: "example.com", Provenance: prov, RiskScore: score(70), RiskLevel: domain.RiskHigh, FirstSeen: at, LastSeen: at, Version: 2},
		},
		Relationships: []*domain.Relationship{{
			ID:            "rel1",
			TargetID:      "t1",
			SourceID:      "a1",
			TargetAssetID: "a2",
			Kind:          domain.RelResolvesTo,
			Directed:      true,
			Confidence:    0.9,
			Evidence:      []domain.Evidence{{Rule: "resolves_to", Basis: "a:192.0.2.10", Connector: "dns", ResultID: "res1", Confidence: 0.9, ObservedAt: at}},
			CreatedAt:     at,
			UpdatedAt:     at,
		}},
	}
	run := domain.RunSummary{
		RunID:         "r1",
		TargetID:      "t1",
		Status:        domain.RunCompleted,
		Assets:        2,
		Relationships: 1,
		Connectors: []domain.ConnectorRun{
			{Name: "dns", Status: domain.ConnectorSucceeded, Attempts: 1, Findings: 2, StartedAt: at, EndedAt: at.Add(time.Second)},
		},
		StartedAt: at,
		EndedAt:   at.Add(2 * time.Second),
	}
	return NewReport(target, run, g)
}
