// Package sessiontoken issues short-lived random tokens that gate access
// to the command facade. Each token carries an absolute expiry instant;
// validation sweeps expired entries before checking membership.
package sessiontoken

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the lifetime a session token is valid for after creation
// when callers use NewManager's default.
const DefaultTTL = 30 * time.Minute

// Manager issues and validates session tokens.
type Manager struct {
	mu     sync.Mutex
	ttl    time.Duration
	expiry map[string]time.Time
}

// NewManager constructs a Manager. ttl <= 0 uses DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		ttl:    ttl,
		expiry: make(map[string]time.Time),
	}
}

// CreateSession mints a new token and records its expiry as now + ttl.
// The token is a UUIDv4 with its hyphens stripped: 32 hex characters
// drawn from an audited random source rather than a hand-rolled
// alphanumeric sampler.
func (m *Manager) CreateSession() string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[token] = time.Now().Add(m.ttl)
	return token
}

// Validate reports whether token is present and unexpired. It sweeps
// every expired entry first, so no token is ever returned as valid past
// its expiry regardless of how long it has sat unvalidated.
func (m *Manager) Validate(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.sweepExpiredLocked(now)

	exp, ok := m.expiry[token]
	if !ok {
		return false
	}
	return now.Before(exp)
}

// Revoke removes token immediately, regardless of its expiry.
func (m *Manager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expiry, token)
}

// Size returns the number of tokens currently tracked, including any not
// yet swept past expiry.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expiry)
}

func (m *Manager) sweepExpiredLocked(now time.Time) {
	for token, exp := range m.expiry {
		if !now.Before(exp) {
			delete(m.expiry, token)
		}
	}
}
