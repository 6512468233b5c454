package geoip

import (
	"embed"
	"strings"
	"sync"
	"sync/atomic"
)

//go:embed embedded_geoip.fallback embedded_geoip6.fallback
var embeddedFS embed.FS

var (
	embeddedOnce      sync.Once
	embeddedTable     *rangeTable
	embeddedInitCount int64
)

// embeddedRangeTable returns the process-wide fallback range table,
// parsing the embedded fixture at most once per process.
func embeddedRangeTable() *rangeTable {
	embeddedOnce.Do(func() {
		atomic.AddInt64(&embeddedInitCount, 1)
		embeddedTable = parseEmbedded()
	})
	return embeddedTable
}

// EmbeddedInitCount reports how many times the embedded fallback table
// has been parsed in this process. It is exported so callers (and
// tests) can assert the "materialized at most once" invariant.
func EmbeddedInitCount() int64 {
	return atomic.LoadInt64(&embeddedInitCount)
}

func parseEmbedded() *rangeTable {
	v4, _ := parseEmbeddedFile("embedded_geoip.fallback")
	v6, _ := parseEmbeddedFile("embedded_geoip6.fallback")
	return &rangeTable{v4: v4, v6: v6}
}

func parseEmbeddedFile(name string) ([]ipRange, error) {
	data, err := embeddedFS.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return parseRangeLines(strings.NewReader(string(data)))
}
