// Package geoip resolves an address string to an ISO-3166 alpha-2
// country code, backed by a legacy geoip/geoip6 directory or, failing
// that, a small embedded fallback table.
package geoip

import (
	"net"
	"os"
	"strings"
	"sync"
)

// EnvDBPath is the environment variable consulted for the legacy geoip
// directory when no explicit path is supplied to NewResolver.
const EnvDBPath = "GEOIP_DB_PATH"

// DefaultCountryCacheCap is the recommended eviction ceiling for the
// resolution cache; the specification leaves this unbounded by
// contract but recommends capping it.
const DefaultCountryCacheCap = 10000

// Resolver maps address strings to country codes, caching on the raw
// input string so repeated calls with the same literal input are cheap
// even if that literal doesn't normalize uniquely.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]string
	table *rangeTable
	cap   int
}

// NewResolver builds a Resolver. dbPath, if non-empty, names a
// directory containing "geoip" and "geoip6" legacy range files; if
// empty, EnvDBPath is consulted. When neither yields a usable
// directory, the resolver falls back to the embedded table.
// cacheCap <= 0 uses DefaultCountryCacheCap.
func NewResolver(dbPath string, cacheCap int) *Resolver {
	if dbPath == "" {
		dbPath = os.Getenv(EnvDBPath)
	}

	var table *rangeTable
	if dbPath != "" {
		if t, err := loadRangeTableDir(dbPath); err == nil {
			table = t
		}
	}
	if table == nil {
		table = embeddedRangeTable()
	}

	if cacheCap <= 0 {
		cacheCap = DefaultCountryCacheCap
	}

	return &Resolver{
		cache: make(map[string]string),
		table: table,
		cap:   cacheCap,
	}
}

// LookupCountryCode resolves addr to an ISO-3166 alpha-2 country code.
// The cache key is the raw input string, not a normalized address, so
// identical calls are idempotent and the second call never touches the
// database.
func (r *Resolver) LookupCountryCode(addr string) (string, error) {
	if strings.Contains(addr, "?") {
		return "", ErrInvalidAddress
	}

	r.mu.RLock()
	if cc, ok := r.cache[addr]; ok {
		r.mu.RUnlock()
		return cc, nil
	}
	r.mu.RUnlock()

	ip, err := parseAddr(addr)
	if err != nil {
		return "", err
	}

	cc, ok := r.table.lookup(ip)
	if !ok {
		return "", ErrNotFound
	}

	r.mu.Lock()
	if len(r.cache) >= r.cap {
		for k := range r.cache {
			delete(r.cache, k)
			break
		}
	}
	r.cache[addr] = cc
	r.mu.Unlock()

	return cc, nil
}

// parseAddr parses addr as a socket address (host:port) first; failing
// that, it takes the substring before the first ':' and parses the
// remainder as an IPv4 or IPv6 literal.
func parseAddr(addr string) (net.IP, error) {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip, nil
		}
		return nil, ErrInvalidAddress
	}

	host := addr
	if idx := strings.IndexByte(addr, ':'); idx >= 0 {
		host = addr[:idx]
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, ErrInvalidAddress
	}
	return ip, nil
}
