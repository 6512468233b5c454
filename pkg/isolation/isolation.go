// Package isolation maintains a per-origin registry of stream isolation
// tokens with size-bounded LRU eviction and a periodic age-based sweep.
package isolation

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/google/uuid"

	"github.com/opd-ai/go-tor/pkg/logger"
)

// MaxIsolationTokens is the hard ceiling on registry size; on insert
// overflow the least-recently-used entry is evicted.
const MaxIsolationTokens = 100

// SweepInterval is how often the background sweep task runs.
const SweepInterval = 10 * time.Minute

// MaxEntryAge is the age past which a sweep drops an entry regardless
// of registry occupancy.
const MaxEntryAge = 1 * time.Hour

type tokenEntry struct {
	token    string
	lastUsed time.Time
}

// Registry maps an origin string to an isolation token, evicting by
// least-recently-used order once MaxIsolationTokens is exceeded and by
// age on a background sweep. golang-lru supplies the size-bounded LRU
// mechanics; the age sweep is layered on top since the library has no
// TTL concept of its own.
type Registry struct {
	mu     sync.Mutex
	cache  *lru.Cache
	log    *logger.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRegistry constructs a Registry and starts its background sweep
// task. The task runs for the lifetime of the process unless Stop is
// called.
func NewRegistry(log *logger.Logger) *Registry {
	cache, err := lru.New(MaxIsolationTokens)
	if err != nil {
		// lru.New only errors on a non-positive size, which never
		// happens here; a zero-capacity cache would still be safe to
		// use, just useless, so this is unreachable in practice.
		cache, _ = lru.New(1)
	}

	r := &Registry{
		cache:  cache,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// TokenFor returns the isolation token for origin, creating one on
// first use and refreshing its last-used timestamp on every call.
// Repeated calls for the same origin return the same token until that
// origin is evicted.
func (r *Registry) TokenFor(origin string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(origin); ok {
		e := v.(*tokenEntry)
		e.lastUsed = time.Now()
		return e.token
	}

	e := &tokenEntry{token: newToken(), lastUsed: time.Now()}
	r.cache.Add(origin, e)
	return e.token
}

// Size returns the current number of registry entries.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

// Stop terminates the background sweep task. Production callers need
// not call this; it exists for clean test teardown.
func (r *Registry) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Registry) sweepLoop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweepExpired()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) sweepExpired() {
	defer func() {
		if rec := recover(); rec != nil && r.log != nil {
			r.log.Error("isolation registry sweep recovered from panic", "error", rec)
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, k := range r.cache.Keys() {
		v, ok := r.cache.Peek(k)
		if !ok {
			continue
		}
		if now.Sub(v.(*tokenEntry).lastUsed) > MaxEntryAge {
			r.cache.Remove(k)
		}
	}
}

func newToken() string {
	return uuid.New().String()
}
