package torclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/go-tor/pkg/config"
)

// Mock is an in-memory Capability test double with queued outcomes,
// grounded on the original implementation's dummy-client test fixture:
// callers preload a sequence of bootstrap/build-circuit errors and a
// sequence of circuits to return from GetOrLaunchExit, then assert on
// the call counters below.
type Mock struct {
	mu sync.Mutex

	BootstrapOutcomes   []error
	BuildCircuitOutcomes []error
	ExitCircuits         []Circuit

	TrafficStatsValue  TrafficStats
	IntrospectionValue Introspection
	IntrospectionOK    bool

	RetireAllCallCount    int
	BuildCircuitCallCount int
	ReconfigureCallCount  int
	CloseCallCount        int
}

// NewMock constructs an empty Mock; callers populate the outcome queues
// before use.
func NewMock() *Mock {
	return &Mock{}
}

// CreateBootstrapped pops the next queued bootstrap outcome (nil if the
// queue is empty).
func (m *Mock) CreateBootstrapped(ctx context.Context, cfg *config.TorrcConfig) error {
	return m.CreateBootstrappedWithProgress(ctx, cfg, nil)
}

// CreateBootstrappedWithProgress pops the next queued bootstrap outcome
// and, when cb is non-nil, reports a minimal (0, "starting") / (100,
// "done") progress sequence.
func (m *Mock) CreateBootstrappedWithProgress(ctx context.Context, cfg *config.TorrcConfig, cb ProgressFunc) error {
	m.mu.Lock()
	var err error
	if len(m.BootstrapOutcomes) > 0 {
		err = m.BootstrapOutcomes[0]
		m.BootstrapOutcomes = m.BootstrapOutcomes[1:]
	}
	m.mu.Unlock()

	if cb != nil {
		cb(0, "starting")
		cb(100, "done")
	}
	return err
}

// Reconfigure records the call and always succeeds.
func (m *Mock) Reconfigure(ctx context.Context, cfg *config.TorrcConfig) error {
	m.mu.Lock()
	m.ReconfigureCallCount++
	m.mu.Unlock()
	return nil
}

// RetireAllCircuits records the call and always succeeds.
func (m *Mock) RetireAllCircuits(ctx context.Context) error {
	m.mu.Lock()
	m.RetireAllCallCount++
	m.mu.Unlock()
	return nil
}

// BuildNewCircuit pops the next queued build outcome (nil if the queue
// is empty) and always records the call.
func (m *Mock) BuildNewCircuit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BuildCircuitCallCount++
	if len(m.BuildCircuitOutcomes) > 0 {
		err := m.BuildCircuitOutcomes[0]
		m.BuildCircuitOutcomes = m.BuildCircuitOutcomes[1:]
		return err
	}
	return nil
}

// TrafficStats returns the preloaded TrafficStatsValue.
func (m *Mock) TrafficStats(ctx context.Context) (TrafficStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TrafficStatsValue, nil
}

// GetOrLaunchExit returns the next queued circuit. While more than one
// remains queued, each call consumes one; once only one remains, it is
// returned repeatedly (modeling a capability that keeps producing the
// same shape of circuit, as scenario 5 requires).
func (m *Mock) GetOrLaunchExit(ctx context.Context, isolationToken string, prefs StreamPrefs) (Circuit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ExitCircuits) == 0 {
		return Circuit{}, fmt.Errorf("mock: no queued circuits")
	}
	c := m.ExitCircuits[0]
	if len(m.ExitCircuits) > 1 {
		m.ExitCircuits = m.ExitCircuits[1:]
	}
	return c, nil
}

// Introspect returns the preloaded IntrospectionValue/IntrospectionOK.
func (m *Mock) Introspect(ctx context.Context) (Introspection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IntrospectionValue, m.IntrospectionOK
}

// Close records the call and always succeeds.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.CloseCallCount++
	m.mu.Unlock()
	return nil
}
