// internal/platform/validator/validator_test.go
package validator

import (
	"testing"

	"baykus/internal/testutil"
)

func TestIsDomain(t *testing.T) {
	for _, d := range testutil.FixtureDomains {
		testutil.AssertTrue(t, IsDomain(d), "valid domain "+d)
	}
	for _, d := range testutil.FixtureInvalidDomains {
		testutil.AssertFalse(t, IsDomain(d), "invalid domain "+d)
	}
	testutil.AssertFalse(t, IsDomain("localhost"), "single label is not a domain")
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"example.com", "example.com"},
		{"a.b.example.com", "example.com"},
		{"shop.example.co.uk", "example.co.uk"},
		{"co.uk", ""},
		{"com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			testutil.AssertEqual(t, RegistrableDomain(tt.in), tt.want, "registrable domain")
		})
	}
}

func TestParentDomain(t *testing.T) {
	testutil.AssertEqual(t, ParentDomain("api.dev.example.com"), "dev.example.com", "strip one label")
	testutil.AssertEqual(t, ParentDomain("www.example.co.uk"), "example.co.uk", "stop at registrable")
	testutil.AssertEqual(t, ParentDomain("example.com"), "", "registrable has no parent")
	testutil.AssertEqual(t, ParentDomain("localhost"), "", "no dot")
}

func TestIsSubdomain(t *testing.T) {
	testutil.AssertTrue(t, IsSubdomain("api.example.com", "example.com"), "child")
	testutil.AssertFalse(t, IsSubdomain("example.com", "example.com"), "same")
	testutil.AssertFalse(t, IsSubdomain("badexample.com", "example.com"), "suffix without dot")
}

func TestEmailParts(t *testing.T) {
	for _, e := range testutil.FixtureEmails {
		testutil.AssertTrue(t, IsEmail(e), "valid email "+e)
	}
	testutil.AssertFalse(t, IsEmail("no-at-sign"), "missing @")
	testutil.AssertEqual(t, EmailDomain("admin@example.com"), "example.com", "domain part")
	testutil.AssertEqual(t, EmailLocalPart("admin@example.com"), "admin", "local part")
	testutil.AssertEqual(t, EmailDomain("broken@"), "", "empty domain")
}

func TestNormalizeIP(t *testing.T) {
	testutil.AssertEqual(t, NormalizeIP(" 8.8.8.8 "), "8.8.8.8", "v4")
	testutil.AssertEqual(t, NormalizeIP("2001:DB8::1"), "2001:db8::1", "v6 lowercased")
	testutil.AssertEqual(t, NormalizeIP("::ffff:10.0.0.1"), "10.0.0.1", "mapped v4")
	testutil.AssertEqual(t, NormalizeIP("nope"), "", "invalid")
}

func TestIsUsername(t *testing.T) {
	for _, u := range testutil.FixtureUsernames {
		testutil.AssertTrue(t, IsUsername(u), "valid username "+u)
	}
	testutil.AssertFalse(t, IsUsername("has space"), "space")
	testutil.AssertFalse(t, IsUsername("abcdefghijklmnopqrstuvwxyz012345"), "too long")
	testutil.AssertFalse(t, IsUsername(""), "empty")
}

func TestIsPhone(t *testing.T) {
	testutil.AssertTrue(t, IsPhone("+34600111222"), "e164")
	testutil.AssertFalse(t, IsPhone("12"), "too short")
}
