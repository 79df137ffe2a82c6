// internal/core/domain/asset_test.go
package domain

import (
	"testing"
	"time"

	"baykus/internal/testutil"
)

func prov(connector, result string, at time.Time) Provenance {
	return Provenance{Connector: connector, ResultID: result, ObservedAt: at, Confidence: ConfidenceHigh}
}

func TestAssetID_Stable(t *testing.T) {
	a := AssetID("t1", AssetDomain, "example.com")
	b := AssetID("t1", AssetDomain, "example.com")
	c := AssetID("t2", AssetDomain, "example.com")

	testutil.AssertEqual(t, a, b, "same key same id")
	testutil.AssertNotEqual(t, a, c, "different target different id")
}

func TestAsset_Merge(t *testing.T) {
	now := testutil.FixtureTime
	a := NewAsset("t1", AssetDomain, "example.com")

	changed, err := a.Merge(Candidate{
		Type: AssetDomain, Value: "example.com",
		Attributes: map[string]any{"registrar": "A", "created": "2001"},
	}, prov("rdap", "r1", now))
	testutil.RequireNoError(t, err, "first merge")
	testutil.AssertTrue(t, changed, "first merge changes the asset")

	changed, err = a.Merge(Candidate{
		Type: AssetDomain, Value: "example.com",
		Attributes: map[string]any{"registrar": "B"},
	}, prov("dns", "r2", now.Add(time.Minute)))
	testutil.RequireNoError(t, err, "second merge")
	testutil.AssertTrue(t, changed, "second merge changes the asset")

	testutil.AssertEqual(t, a.Attributes["registrar"], "B", "last writer wins per key")
	testutil.AssertEqual(t, a.Attributes["created"], "2001", "other keys are kept")
	testutil.AssertLen(t, a.Provenance, 2, "provenance accumulates")
	testutil.AssertEqual(t, a.Sources(), []string{"dns", "rdap"}, "sorted distinct sources")
	testutil.AssertEqual(t, a.FirstSeen, now, "first seen")
	testutil.AssertEqual(t, a.LastSeen, now.Add(time.Minute), "last seen")
	testutil.AssertEqual(t, a.Version, int64(2), "version counts applied merges")
}

func TestAsset_MergeIsIdempotentPerResult(t *testing.T) {
	a := NewAsset("t1", AssetEmail, "x@example.com")
	c := Candidate{Type: AssetEmail, Value: "x@example.com", Attributes: map[string]any{"breached": true}}
	p := prov("hibp", "r1", testutil.FixtureTime)

	_, _ = a.Merge(c, p)
	before := a.Clone()

	changed, err := a.Merge(c, p)
	testutil.AssertNoError(t, err, "re-merge")
	testutil.AssertFalse(t, changed, "same result does not contribute twice")
	testutil.AssertEqual(t, a, before, "state unchanged")
}

func TestAsset_MergeRejectsOtherKey(t *testing.T) {
	a := NewAsset("t1", AssetEmail, "x@example.com")
	_, err := a.Merge(Candidate{Type: AssetDomain, Value: "example.com"}, prov("c", "r", testutil.FixtureTime))
	testutil.AssertErrorIs(t, err, ErrAssetKeyMismatch, "key mismatch")
}

func TestAsset_CloneIsDeep(t *testing.T) {
	score := 40.0
	a := NewAsset("t1", AssetDomain, "example.com")
	a.Attributes["ns"] = []any{"ns1.example.com"}
	a.RiskScore = &score

	c := a.Clone()
	c.Attributes["ns"].([]any)[0] = "changed"
	*c.RiskScore = 90

	testutil.AssertEqual(t, a.Attributes["ns"].([]any)[0], "ns1.example.com", "nested slice copied")
	testutil.AssertEqual(t, a.Score(), 40.0, "score pointer copied")
}
