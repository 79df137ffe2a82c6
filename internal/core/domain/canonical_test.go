// internal/core/domain/canonical_test.go
package domain

import (
	"testing"

	"baykus/internal/testutil"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		typ     AssetType
		raw     string
		want    string
		wantErr bool
	}{
		{"email lowercased", AssetEmail, "  X@Example.com ", "x@example.com", false},
		{"email mailto", AssetEmail, "mailto:Admin@Example.com", "admin@example.com", false},
		{"email invalid", AssetEmail, "not-an-email", "", true},
		{"domain plain", AssetDomain, "Example.COM", "example.com", false},
		{"domain from url", AssetDomain, "https://WWW.example.com:443/login?x=1", "example.com", false},
		{"domain wildcard", AssetDomain, "*.api.example.com.", "api.example.com", false},
		{"domain public suffix", AssetDomain, "co.uk", "", true},
		{"domain ip rejected", AssetDomain, "10.0.0.1", "", true},
		{"ip v4", AssetIP, " 8.8.8.8", "8.8.8.8", false},
		{"ip v6", AssetIP, "2001:DB8:0::1", "2001:db8::1", false},
		{"ip invalid", AssetIP, "999.1.1.1", "", true},
		{"username at", AssetUsername, "@OctoCat", "octocat", false},
		{"username invalid", AssetUsername, "bad name", "", true},
		{"account", AssetAccount, "GitHub:@OctoCat", "github:octocat", false},
		{"account missing platform", AssetAccount, "octocat", "", true},
		{"phone", AssetPhone, "+34 600-111-222", "+34600111222", false},
		{"phone letters", AssetPhone, "+34 600 CALL ME", "", true},
		{"url", AssetURL, "HTTPS://Example.com:443/Path#frag", "https://example.com/Path", false},
		{"url relative", AssetURL, "/just/a/path", "", true},
		{"person whitespace", AssetPerson, "  John   DOE ", "john doe", false},
		{"empty", AssetEmail, "   ", "", true},
		{"unknown type", AssetType("bogus"), "x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.typ, tt.raw)
			if tt.wantErr {
				testutil.AssertError(t, err, "expected canonicalization error")
				return
			}
			testutil.AssertNoError(t, err, "canonicalize")
			testutil.AssertEqual(t, got, tt.want, "canonical value")
		})
	}
}

func TestCanonicalize_Deterministic(t *testing.T) {
	for _, typ := range AllAssetTypes {
		testutil.AssertTrue(t, typ.IsValid(), "every asset type has a canonicalizer: "+string(typ))
	}
	a, _ := Canonicalize(AssetDomain, "HTTP://Sub.Example.com/")
	b, _ := Canonicalize(AssetDomain, a)
	testutil.AssertEqual(t, b, a, "canonical form is a fixed point")
}
