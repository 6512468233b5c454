package geoip

import (
	"sync"
	"sync/atomic"
)

// resetEmbeddedForTest clears the process-wide embedded-table memoization
// so tests can observe fresh initialization counts. Production callers
// never need this; it exists only for test isolation.
func resetEmbeddedForTest() {
	embeddedOnce = sync.Once{}
	embeddedTable = nil
	atomic.StoreInt64(&embeddedInitCount, 0)
}
