package geoip

import (
	"errors"
	"testing"
)

func TestLookupInvalidAddressNeverTouchesDatabase(t *testing.T) {
	resetEmbeddedForTest()

	r := NewResolver("", 0)
	before := EmbeddedInitCount()

	_, err := r.LookupCountryCode("?.?.?.?")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if EmbeddedInitCount() != before {
		t.Fatalf("expected embedded init count unchanged by an invalid lookup, was %d now %d", before, EmbeddedInitCount())
	}
}

func TestLookupCountryCodeIdempotentOnCache(t *testing.T) {
	resetEmbeddedForTest()

	r := NewResolver("", 0)
	addr := "8.8.8.8:443"

	cc1, err := r.LookupCountryCode(addr)
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	initCountAfterFirst := EmbeddedInitCount()

	// Second call must not re-touch the database: simulate by clearing
	// the table reference on the resolver's copy is not possible (it's
	// unexported and intentional), so instead assert the embedded init
	// count — which only increments on the table's first materialization
	// — does not change, and the returned value is identical.
	cc2, err := r.LookupCountryCode(addr)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if cc1 != cc2 {
		t.Fatalf("expected idempotent lookup, got %q then %q", cc1, cc2)
	}
	if EmbeddedInitCount() != initCountAfterFirst {
		t.Fatalf("expected no additional embedded init on cached lookup")
	}
}

func TestLookupCountryCodeNotFound(t *testing.T) {
	resetEmbeddedForTest()
	r := NewResolver("", 0)

	if _, err := r.LookupCountryCode("203.0.113.1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an address with no range entry, got %v", err)
	}
}

func TestNewResolverFallsBackOnUnreadableDir(t *testing.T) {
	resetEmbeddedForTest()
	r := NewResolver("/nonexistent/geoip/dir/that/does/not/exist", 0)

	if _, err := r.LookupCountryCode("8.8.8.8"); err != nil {
		t.Fatalf("expected fallback to embedded table to succeed, got %v", err)
	}
	if EmbeddedInitCount() != 1 {
		t.Fatalf("expected embedded table materialized exactly once, got %d", EmbeddedInitCount())
	}
}

func TestParseAddrSocketAddress(t *testing.T) {
	ip, err := parseAddr("1.2.3.4:9050")
	if err != nil {
		t.Fatalf("parseAddr: %v", err)
	}
	if ip.String() != "1.2.3.4" {
		t.Fatalf("parseAddr() = %v, want 1.2.3.4", ip)
	}
}

func TestParseAddrBareIPv4(t *testing.T) {
	ip, err := parseAddr("1.2.3.4")
	if err != nil {
		t.Fatalf("parseAddr: %v", err)
	}
	if ip.String() != "1.2.3.4" {
		t.Fatalf("parseAddr() = %v, want 1.2.3.4", ip)
	}
}
