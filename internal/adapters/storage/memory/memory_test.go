// internal/adapters/storage/memory/memory_test.go
package memory

import (
	"context"
	"testing"

	"baykus/internal/core/domain"
	"baykus/internal/platform/errors"
	"baykus/internal/testutil"
)

func TestStore_AssetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := domain.NewAsset("t1", domain.AssetDomain, "example.com")
	a.Attributes["registrar"] = "ACME"
	_, err := s.SaveAssetMerge(ctx, "t1", a)
	testutil.RequireNoError(t, err, "save")

	// mutar el original no afecta a lo guardado
	a.Attributes["registrar"] = "changed"

	g, err := s.LoadGraph(ctx, "t1")
	testutil.RequireNoError(t, err, "load")
	testutil.AssertLen(t, g.Assets, 1, "one asset")
	testutil.AssertEqual(t, g.Assets[0].Attr("registrar"), "ACME", "stored copy")

	empty, err := s.LoadGraph(ctx, "unknown")
	testutil.RequireNoError(t, err, "unknown target")
	testutil.AssertLen(t, empty.Assets, 0, "empty graph")
}

func TestStore_RejectsForeignAsset(t *testing.T) {
	s := New()
	a := domain.NewAsset("t1", domain.AssetEmail, "a@example.com")
	_, err := s.SaveAssetMerge(context.Background(), "t2", a)
	testutil.AssertErrorIs(t, err, errors.ErrInvalidInput, "wrong target")
}

func TestStore_RelationshipUpsert(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := domain.NewAsset("t1", domain.AssetEmail, "a@example.com")
	b := domain.NewAsset("t1", domain.AssetDomain, "example.com")

	rel, err := domain.NewRelationship("t1", domain.RelMailHandledBy, a.ID, b.ID)
	testutil.RequireNoError(t, err, "new rel")
	rel.AddEvidence(domain.Evidence{Rule: "mail_handled_by", Basis: "mail:example.com", Confidence: 0.5}, nil)
	_, err = s.SaveRelationship(ctx, "t1", rel)
	testutil.RequireNoError(t, err, "save 1")

	rel.AddEvidence(domain.Evidence{Rule: "mail_handled_by", Basis: "other", Confidence: 0.5}, nil)
	_, err = s.SaveRelationship(ctx, "t1", rel)
	testutil.RequireNoError(t, err, "save 2")

	g, _ := s.LoadGraph(ctx, "t1")
	testutil.AssertLen(t, g.Relationships, 1, "single record per key")
	testutil.AssertInDelta(t, g.Relationships[0].Confidence, 0.75, 1e-9, "updated confidence")
}

func TestStore_RunHistory(t *testing.T) {
	s := New()
	ctx := context.Background()

	testutil.AssertErrorIs(t, s.SaveRunJobStatus(ctx, domain.RunJob{}), errors.ErrInvalidInput, "id required")

	_ = s.SaveRunJobStatus(ctx, domain.RunJob{ID: "r1", Status: domain.RunPending})
	_ = s.SaveRunJobStatus(ctx, domain.RunJob{ID: "r1", Status: domain.RunRunning})

	job, err := s.RunJob("r1")
	testutil.RequireNoError(t, err, "latest")
	testutil.AssertEqual(t, job.Status, domain.RunRunning, "latest status")
	testutil.AssertLen(t, s.RunHistory("r1"), 2, "history")

	_, err = s.RunJob("missing")
	testutil.AssertErrorIs(t, err, errors.ErrNotFound, "missing run")
}
