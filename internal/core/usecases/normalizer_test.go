// internal/core/usecases/normalizer_test.go
package usecases

import (
	"testing"

	"baykus/internal/core/domain"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
	"baykus/internal/testutil"
)

func TestNormalize_CanonicalizesAndCoalesces(t *testing.T) {
	res := domain.NewConnectorResult("rdap", "t1")
	res.Add(domain.Finding{Type: domain.AssetDomain, Value: "WWW.Example.COM.", Attributes: map[string]any{"registrar": "ACME"}, Confidence: 0.5})
	res.Add(domain.Finding{Type: domain.AssetDomain, Value: "www.example.com", Attributes: map[string]any{"age": 12}, Confidence: 0.9})
	res.Add(domain.Finding{Type: domain.AssetEmail, Value: "Admin@Example.com"})

	n, err := NewNormalizer(logx.Discard()).Normalize(res)
	testutil.RequireNoError(t, err, "normalize")

	testutil.AssertLen(t, n.Candidates, 2, "duplicates coalesced")
	d := n.Candidates[0]
	testutil.AssertEqual(t, d.Key(), "domain:example.com", "canonical domain")
	testutil.AssertEqual(t, d.Attributes["registrar"], "ACME", "first attrs kept")
	testutil.AssertEqual(t, d.Attributes["age"], int64(12), "ints widened")
	testutil.AssertEqual(t, d.Confidence, 0.9, "max confidence")

	e := n.Candidates[1]
	testutil.AssertEqual(t, e.Value, "admin@example.com", "canonical email")
	testutil.AssertEqual(t, e.Confidence, domain.ConfidenceMedium, "default confidence")

	p := n.Provenance(e)
	testutil.AssertEqual(t, p.Connector, "rdap", "provenance connector")
	testutil.AssertEqual(t, p.ResultID, res.ID, "provenance result")
}

func TestNormalize_DropsUncanonicalValues(t *testing.T) {
	res := domain.NewConnectorResult("dns", "t1")
	res.Add(domain.Finding{Type: domain.AssetIP, Value: "999.1.1.1"})
	res.Add(domain.Finding{Type: domain.AssetIP, Value: "192.0.2.10"})

	n, err := NewNormalizer(nil).Normalize(res)
	testutil.RequireNoError(t, err, "normalize")
	testutil.AssertLen(t, n.Candidates, 1, "valid ip kept")
	testutil.AssertEqual(t, n.Dropped, 1, "invalid dropped")
}

func TestNormalize_MalformedPayload(t *testing.T) {
	unknownType := domain.NewConnectorResult("x", "t1")
	unknownType.Add(domain.Finding{Type: "spaceship", Value: "enterprise"})

	badLink := domain.NewConnectorResult("x", "t1")
	badLink.Add(domain.Finding{Type: domain.AssetEmail, Value: "a@example.com", Links: []domain.Link{{Kind: "knows", ToType: domain.AssetDomain, ToValue: "example.com"}}})

	badAttr := domain.NewConnectorResult("x", "t1")
	badAttr.Add(domain.Finding{Type: domain.AssetEmail, Value: "a@example.com", Attributes: map[string]any{"ch": make(chan int)}})

	noID := domain.NewConnectorResult("x", "t1")
	noID.ID = ""

	tests := []struct {
		name string
		res  *domain.ConnectorResult
	}{
		{"nil result", nil},
		{"unknown asset type", unknownType},
		{"unknown link kind", badLink},
		{"unsupported attribute", badAttr},
		{"missing id", noID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNormalizer(nil).Normalize(tt.res)
			testutil.AssertErrorIs(t, err, errors.ErrNormalization, "normalization error")
		})
	}
}

func TestNormalize_Links(t *testing.T) {
	res := domain.NewConnectorResult("rdap", "t1")
	res.Add(domain.Finding{
		Type:  domain.AssetEmail,
		Value: "X@Example.com",
		Links: []domain.Link{{Kind: domain.RelSameOwner, ToType: domain.AssetDomain, ToValue: "Example.com"}},
	})

	n, err := NewNormalizer(nil).Normalize(res)
	testutil.RequireNoError(t, err, "normalize")
	testutil.AssertLen(t, n.Links, 1, "link kept")
	testutil.AssertEqual(t, n.Links[0].From.Key(), "email:x@example.com", "from canonical")
	testutil.AssertEqual(t, n.Links[0].ToKey(), "domain:example.com", "to canonical")
}
