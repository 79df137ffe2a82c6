package errors

import (
	"context"
	"fmt"
	"testing"

	"baykus/internal/testutil"
)

func TestWrap(t *testing.T) {
	t.Run("wraps error with context", func(t *testing.T) {
		baseErr := New("base error")
		wrapped := Wrap(baseErr, "additional context")

		testutil.AssertNotNil(t, wrapped, "wrapped error should not be nil")
		testutil.AssertTrue(t, Is(wrapped, baseErr), "should be able to unwrap to base error")
		testutil.AssertEqual(t, wrapped.Error(), "additional context: base error", "error message should include context")
	})

	t.Run("returns nil when wrapping nil", func(t *testing.T) {
		testutil.AssertTrue(t, Wrap(nil, "context") == nil, "wrapping nil should return nil")
		testutil.AssertTrue(t, Wrapf(nil, "context %s", "x") == nil, "wrapping nil should return nil")
	})

	t.Run("multiple wraps preserve chain", func(t *testing.T) {
		baseErr := New("base")
		wrapped := Wrapf(Wrap(baseErr, "layer 1"), "layer %d", 2)

		testutil.AssertTrue(t, Is(wrapped, baseErr), "should unwrap to base error")
		testutil.AssertEqual(t, wrapped.Error(), "layer 2: layer 1: base", "should show full chain")
	})
}

func TestConnectorError(t *testing.T) {
	t.Run("transient matches sentinel", func(t *testing.T) {
		err := Transient("dns", New("i/o timeout"))
		testutil.AssertErrorIs(t, err, ErrConnectorTransient, "transient sentinel")
		testutil.AssertFalse(t, Is(err, ErrConnectorPermanent), "not permanent")
		testutil.AssertContains(t, err.Error(), "connector dns: transient failure", "message")
	})

	t.Run("permanent matches sentinel", func(t *testing.T) {
		err := Permanent("github", New("bad credentials"))
		testutil.AssertErrorIs(t, err, ErrConnectorPermanent, "permanent sentinel")
		testutil.AssertFalse(t, IsRetryable(err), "permanent is not retryable")
	})

	t.Run("survives wrapping", func(t *testing.T) {
		err := fmt.Errorf("fetch: %w", Transient("rdap", nil))
		var ce *ConnectorError
		testutil.AssertTrue(t, As(err, &ce), "As should find ConnectorError")
		testutil.AssertEqual(t, ce.Connector, "rdap", "connector name")
	})
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantNil   bool
		transient bool
		reason    string
	}{
		{status: 200, wantNil: true},
		{status: 304, wantNil: true},
		{status: 429, transient: true, reason: "rate_limited"},
		{status: 408, transient: true, reason: "Request Timeout"},
		{status: 503, transient: true, reason: "Service Unavailable"},
		{status: 401, reason: "Unauthorized"},
		{status: 403, reason: "Forbidden"},
		{status: 404, reason: "Not Found"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := FromStatus("x", tt.status)
			if tt.wantNil {
				testutil.AssertNoError(t, err, "2xx/3xx should not fail")
				return
			}
			var ce *ConnectorError
			testutil.AssertTrue(t, As(err, &ce), "should be ConnectorError")
			testutil.AssertEqual(t, ce.Temporary, tt.transient, "temporary flag")
			testutil.AssertEqual(t, ce.Reason, tt.reason, "reason")
			testutil.AssertEqual(t, ce.StatusCode, tt.status, "status code")
		})
	}

	testutil.AssertErrorIs(t, FromStatus("x", 429), ErrRateLimited, "429 matches ErrRateLimited")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassNone},
		{"transient", Transient("a", nil), ClassTransient},
		{"permanent", Permanent("a", nil), ClassPermanent},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"canceled", context.Canceled, ClassCancelled},
		{"cancellation requested", Wrap(ErrCancellationRequested, "run"), ClassCancelled},
		{"normalization", Wrap(ErrNormalization, "bad payload"), ClassNormalization},
		{"storage", Wrap(ErrStorage, "disk full"), ClassStorage},
		{"invariant", ErrInvariant, ClassInvariant},
		{"unknown defaults to transient", New("boom"), ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, Classify(tt.err), tt.want, "class")
		})
	}
}

func TestIsFatal(t *testing.T) {
	testutil.AssertTrue(t, IsFatal(Wrap(ErrStorage, "x")), "storage is fatal")
	testutil.AssertTrue(t, IsFatal(ErrInvariant), "invariant is fatal")
	testutil.AssertFalse(t, IsFatal(Transient("a", nil)), "transient is not fatal")
	testutil.AssertFalse(t, IsFatal(ErrNormalization), "normalization is not fatal")
	testutil.AssertEqual(t, ClassCancelled.String(), "cancelled", "class string")
}
