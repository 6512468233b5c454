// Package torclient defines the Tor client capability the session
// manager drives, and the realizations of it: EngineCapability, a
// production binding that controls a real tor process through
// cretz/bine, and Mock, an in-memory test double with queued outcomes.
package torclient

import (
	"context"
	"time"

	"github.com/opd-ai/go-tor/pkg/config"
)

// ProgressFunc receives bootstrap progress updates. Percentages are
// monotonically non-decreasing and the final call is always (100,
// "done").
type ProgressFunc func(percent int, message string)

// Hop is one relay of a built circuit, as reported by the capability.
// Country is resolved by the caller via the geoip resolver, not by the
// capability itself.
type Hop struct {
	Nickname  string
	IPAddress string
}

// Circuit is a built circuit's identity and path.
type Circuit struct {
	ID   uint64
	Hops []Hop
}

// StreamPrefs carries the stream-level preferences attached to a
// GetOrLaunchExit call — currently just the exit country, mirrored
// from the session manager's exit-country state.
type StreamPrefs struct {
	ExitCountry string
}

// TrafficStats is the running byte count of a connected client.
type TrafficStats struct {
	BytesSent     uint64
	BytesReceived uint64
}

// Introspection is the optional circuit-accounting surface. Capability
// realizations that cannot provide it return ok=false from Introspect,
// and the session manager falls back to a degraded metrics mode.
type Introspection struct {
	Count          int
	OldestAge      time.Duration
	AvgCreateTime  time.Duration
	FailedAttempts int
	CircuitIDs     []uint64
}

// Capability is the polymorphism seam the session manager drives. It
// never constructs a Tor client outside this contract; test doubles
// implement the same interface.
type Capability interface {
	// CreateBootstrapped builds a client and runs bootstrap to
	// completion.
	CreateBootstrapped(ctx context.Context, cfg *config.TorrcConfig) error

	// CreateBootstrappedWithProgress is as CreateBootstrapped but
	// invokes cb with monotonically non-decreasing percentages, ending
	// at (100, "done").
	CreateBootstrappedWithProgress(ctx context.Context, cfg *config.TorrcConfig, cb ProgressFunc) error

	// Reconfigure applies new configuration to a live client.
	Reconfigure(ctx context.Context, cfg *config.TorrcConfig) error

	// RetireAllCircuits invalidates every currently open circuit.
	RetireAllCircuits(ctx context.Context) error

	// BuildNewCircuit launches a fresh circuit through the directory,
	// discarding the result.
	BuildNewCircuit(ctx context.Context) error

	// TrafficStats returns running bytes written/read.
	TrafficStats(ctx context.Context) (TrafficStats, error)

	// GetOrLaunchExit obtains a circuit matching the given isolation
	// token and stream preferences.
	GetOrLaunchExit(ctx context.Context, isolationToken string, prefs StreamPrefs) (Circuit, error)

	// Introspect returns circuit-accounting data when available.
	// ok is false when the realization has no introspection capability.
	Introspect(ctx context.Context) (Introspection, bool)

	// Close tears down the client. It is the client's shutdown signal.
	Close() error
}
