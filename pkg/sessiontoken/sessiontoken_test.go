package sessiontoken

import (
	"testing"
	"time"
)

func TestCreateSessionProducesUniqueThirtyTwoCharTokens(t *testing.T) {
	m := NewManager(time.Minute)

	a := m.CreateSession()
	b := m.CreateSession()

	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("token lengths = %d, %d, want 32", len(a), len(b))
	}
	if a == b {
		t.Fatal("expected distinct tokens from successive CreateSession calls")
	}
}

func TestValidateAcceptsUnexpiredToken(t *testing.T) {
	m := NewManager(time.Minute)
	tok := m.CreateSession()

	if !m.Validate(tok) {
		t.Fatal("expected freshly created token to validate")
	}
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	m := NewManager(time.Minute)

	if m.Validate("not-a-real-token") {
		t.Fatal("expected unknown token to fail validation")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := NewManager(time.Millisecond)
	tok := m.CreateSession()

	time.Sleep(5 * time.Millisecond)

	if m.Validate(tok) {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestValidateSweepsExpiredEntries(t *testing.T) {
	m := NewManager(time.Millisecond)
	expired := m.CreateSession()

	time.Sleep(5 * time.Millisecond)

	m.Validate(expired)
	if m.Size() != 0 {
		t.Fatalf("Size() = %d after sweep, want 0", m.Size())
	}
}

func TestRevokeRemovesTokenImmediately(t *testing.T) {
	m := NewManager(time.Minute)
	tok := m.CreateSession()

	m.Revoke(tok)
	if m.Validate(tok) {
		t.Fatal("expected revoked token to fail validation")
	}
}
