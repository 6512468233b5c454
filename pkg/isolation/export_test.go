package isolation

import "time"

// forceSweepForTest runs one sweep pass synchronously instead of
// waiting for the ticker, so tests don't need to sleep ten minutes.
func (r *Registry) forceSweepForTest() {
	r.sweepExpired()
}

// backdateForTest rewrites an entry's last-used timestamp so age-based
// eviction can be exercised deterministically.
func (r *Registry) backdateForTest(origin string, age time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Peek(origin); ok {
		v.(*tokenEntry).lastUsed = time.Now().Add(-age)
	}
}
