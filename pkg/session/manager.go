// Package session implements the core Tor session manager: connection
// lifecycle with backoff, circuit country policy enforcement, per-origin
// stream isolation, and traffic/circuit metrics. It owns no wire protocol
// of its own — all Tor connectivity is driven through the torclient
// Capability contract.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/opd-ai/go-tor/pkg/config"
	serrors "github.com/opd-ai/go-tor/pkg/errors"
	"github.com/opd-ai/go-tor/pkg/geoip"
	"github.com/opd-ai/go-tor/pkg/isolation"
	"github.com/opd-ai/go-tor/pkg/logger"
	"github.com/opd-ai/go-tor/pkg/policy"
	"github.com/opd-ai/go-tor/pkg/ratelimit"
	"github.com/opd-ai/go-tor/pkg/torclient"
)

const (
	// DefaultMaxRetries bounds connect_with_backoff's retry count when the
	// caller uses Connect's defaults.
	DefaultMaxRetries = 5
	// DefaultBudget bounds connect_with_backoff's total elapsed time when
	// the caller uses Connect's defaults.
	DefaultBudget = 2 * time.Minute

	initialBackoffDelay = 1 * time.Second
	maxBackoffDelay      = 30 * time.Second

	prewarmAttempts = 3
)

// OnProgressFunc receives bootstrap progress during connect.
type OnProgressFunc = torclient.ProgressFunc

// OnRetryFunc receives a RetryInfo each time a connect attempt fails and
// another is about to be scheduled.
type OnRetryFunc func(RetryInfo)

// RetryInfo describes one failed connect attempt.
type RetryInfo struct {
	Attempt uint32
	Delay   time.Duration
	Err     error
}

// CircuitMetrics is the result of CircuitMetrics(): full introspection
// data when the capability supports it, or a degraded view backed by the
// isolation registry's size when it doesn't.
type CircuitMetrics struct {
	Count          int
	OldestAgeSecs  float64
	AvgCreateMs    float64
	FailedAttempts int
	Complete       bool
}

// CapabilityFactory constructs a fresh, unstarted Capability. Production
// callers pass a factory that returns torclient.NewEngineCapability; tests
// pass one that returns torclient.NewMock.
type CapabilityFactory func() torclient.Capability

// Manager is the session manager. Every mutable field lives behind its
// own lock; capMu additionally serializes every operation that touches
// the live capability, matching the holding order "client first, then
// field" when both are needed.
type Manager struct {
	factory CapabilityFactory
	geo     *geoip.Resolver
	base    *config.Config
	log     *logger.Logger

	isolation *isolation.Registry

	connectLimiter *ratelimit.Limiter
	circuitLimiter *ratelimit.Limiter

	capMu sync.Mutex
	cap   torclient.Capability

	state State

	entry  countryBox
	middle countryBox
	exit   countryBox

	bridges bridgesBox
	torrc   stringBox
}

// NewManager constructs a Manager. factory produces the concrete
// Capability connect installs; geo resolves relay IPs to country codes
// for the policy loop.
func NewManager(factory CapabilityFactory, geo *geoip.Resolver, base *config.Config, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Manager{
		factory:        factory,
		geo:            geo,
		base:           base,
		log:            log,
		isolation:      isolation.NewRegistry(log),
		connectLimiter: ratelimit.NewLimiter("connect", base.ConnectLimiterPerMinute),
		circuitLimiter: ratelimit.NewLimiter("circuit", base.CircuitLimiterPerMinute),
	}
}

// State reports the manager's current lifecycle state.
func (m *Manager) State() State {
	return m.loadState()
}

// Connect runs connect_with_backoff with the package defaults and no
// callbacks.
func (m *Manager) Connect(ctx context.Context) error {
	return m.ConnectWithBackoff(ctx, DefaultMaxRetries, DefaultBudget, nil, nil)
}

// ConnectWithBackoff builds a client and bootstraps it, retrying on
// failure with exponential backoff (1s doubling to a 30s cap) until
// maxRetries is exceeded or budget elapses. It holds the client mutex for
// the whole attempt sequence, matching the concurrency model's "client
// mutex held across I/O" rule: connect calls serialize against each
// other and against every other client-touching operation.
func (m *Manager) ConnectWithBackoff(ctx context.Context, maxRetries int, budget time.Duration, onRetry OnRetryFunc, onProgress OnProgressFunc) error {
	if err := m.connectLimiter.Take(); err != nil {
		return err
	}

	m.capMu.Lock()
	defer m.capMu.Unlock()

	if m.cap != nil {
		return serrors.AlreadyConnected()
	}
	m.storeState(StateConnecting)

	delay := initialBackoffDelay
	start := time.Now()
	var attempt uint32

	for {
		step := serrors.StepBuildConfig
		torrcCfg, err := config.BuildTorrcConfig(m.base, m.torrc.get(), m.countryPrefs().Exit, m.bridges.get())
		if err == nil {
			step = serrors.StepBootstrap
			cand := m.factory()
			err = cand.CreateBootstrappedWithProgress(ctx, torrcCfg, onProgress)
			if err == nil {
				m.cap = cand
				m.storeState(StateConnected)
				go m.prewarm(context.Background())
				return nil
			}
		}

		attempt++
		if onRetry != nil {
			onRetry(RetryInfo{Attempt: attempt, Delay: delay, Err: err})
		}

		elapsed := time.Since(start)
		if attempt > uint32(maxRetries) || elapsed+delay > budget {
			m.storeState(StateIdle)
			return serrors.ConnectionFailed(step, "connect attempts exhausted", err)
		}

		select {
		case <-ctx.Done():
			m.storeState(StateIdle)
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxBackoffDelay {
			delay = maxBackoffDelay
		}
	}
}

// Disconnect tears down the live client. Dropping the capability handle
// is its shutdown signal; the caller is never asked to confirm shutdown
// completed.
func (m *Manager) Disconnect() error {
	m.capMu.Lock()
	defer m.capMu.Unlock()

	if m.cap == nil {
		return serrors.NotConnected()
	}
	m.storeState(StateDisconnecting)
	live := m.cap
	m.cap = nil
	err := live.Close()
	m.storeState(StateIdle)
	return err
}

// NewIdentity rebuilds config, reconfigures the live client, retires all
// circuits, and launches a fresh one. A failure at any stage is surfaced
// to the caller without evicting the client from Connected.
func (m *Manager) NewIdentity(ctx context.Context) error {
	if err := m.circuitLimiter.Take(); err != nil {
		return err
	}

	m.capMu.Lock()
	defer m.capMu.Unlock()

	if m.cap == nil {
		return serrors.NotConnected()
	}

	torrcCfg, err := config.BuildTorrcConfig(m.base, m.torrc.get(), m.countryPrefs().Exit, m.bridges.get())
	if err != nil {
		return serrors.ConnectionFailed(serrors.StepBuildConfig, "rebuild config", err)
	}

	if err := m.cap.Reconfigure(ctx, torrcCfg); err != nil {
		return serrors.ConnectionFailed(serrors.StepReconfigure, "reconfigure", err)
	}

	if err := m.cap.RetireAllCircuits(ctx); err != nil {
		return serrors.CircuitError("retire all circuits", err)
	}

	if err := m.cap.BuildNewCircuit(ctx); err != nil {
		return serrors.ConnectionFailed(serrors.StepBuildCircuit, "build new circuit", err)
	}

	return nil
}

// BuildCircuit launches one new circuit through the directory.
func (m *Manager) BuildCircuit(ctx context.Context) error {
	if err := m.circuitLimiter.Take(); err != nil {
		return err
	}

	m.capMu.Lock()
	defer m.capMu.Unlock()

	if m.cap == nil {
		return serrors.NotConnected()
	}
	if err := m.cap.BuildNewCircuit(ctx); err != nil {
		return serrors.ConnectionFailed(serrors.StepBuildCircuit, "build circuit", err)
	}
	return nil
}

// CloseAllCircuits invalidates every currently open circuit.
func (m *Manager) CloseAllCircuits(ctx context.Context) error {
	m.capMu.Lock()
	defer m.capMu.Unlock()

	if m.cap == nil {
		return serrors.NotConnected()
	}
	if err := m.cap.RetireAllCircuits(ctx); err != nil {
		return serrors.CircuitError("close all circuits", err)
	}
	return nil
}

// TrafficStats returns the live client's running byte counters.
func (m *Manager) TrafficStats(ctx context.Context) (torclient.TrafficStats, error) {
	m.capMu.Lock()
	defer m.capMu.Unlock()

	if m.cap == nil {
		return torclient.TrafficStats{}, serrors.NotConnected()
	}
	stats, err := m.cap.TrafficStats(ctx)
	if err != nil {
		return torclient.TrafficStats{}, serrors.CircuitError("traffic stats", err)
	}
	return stats, nil
}

// CircuitMetrics returns full introspection data when the capability
// supports it, or a degraded view (count = isolation registry size,
// complete = false) when it doesn't.
func (m *Manager) CircuitMetrics(ctx context.Context) (CircuitMetrics, error) {
	m.capMu.Lock()
	defer m.capMu.Unlock()

	if m.cap == nil {
		return CircuitMetrics{}, serrors.NotConnected()
	}

	intro, ok := m.cap.Introspect(ctx)
	if !ok {
		return CircuitMetrics{Count: m.isolation.Size(), Complete: false}, nil
	}

	return CircuitMetrics{
		Count:          intro.Count,
		OldestAgeSecs:  intro.OldestAge.Seconds(),
		AvgCreateMs:    float64(intro.AvgCreateTime.Milliseconds()),
		FailedAttempts: intro.FailedAttempts,
		Complete:       true,
	}, nil
}

// SetEntryCountry sets or (on empty string) unsets the entry-hop country
// preference.
func (m *Manager) SetEntryCountry(cc string) error {
	v, err := validateCountryCode(cc)
	if err != nil {
		return err
	}
	m.entry.set(v)
	return nil
}

// SetMiddleCountry sets or unsets the middle-hop country preference.
func (m *Manager) SetMiddleCountry(cc string) error {
	v, err := validateCountryCode(cc)
	if err != nil {
		return err
	}
	m.middle.set(v)
	return nil
}

// SetExitCountry sets or unsets the exit-hop country preference.
func (m *Manager) SetExitCountry(cc string) error {
	v, err := validateCountryCode(cc)
	if err != nil {
		return err
	}
	m.exit.set(v)
	return nil
}

// SetBridges replaces the bridge list. Takes effect on the next connect.
func (m *Manager) SetBridges(list []string) {
	m.bridges.set(list)
}

// SetTorrcConfig replaces the raw torrc text. Takes effect on the next
// connect.
func (m *Manager) SetTorrcConfig(text string) {
	m.torrc.set(text)
}

func (m *Manager) countryPrefs() policy.CountryPrefs {
	return policy.CountryPrefs{
		Entry:  m.entry.get(),
		Middle: m.middle.get(),
		Exit:   m.exit.get(),
	}
}

func (m *Manager) prewarm(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("circuit prewarm panic recovered", "panic", r)
		}
	}()

	for i := 0; i < prewarmAttempts; i++ {
		m.capMu.Lock()
		live := m.cap
		m.capMu.Unlock()
		if live == nil {
			return
		}
		if err := live.BuildNewCircuit(ctx); err != nil {
			m.log.Debug("circuit prewarm stopped", "attempt", i, "error", err)
			return
		}
	}
}

func (m *Manager) loadState() State {
	m.capMu.Lock()
	defer m.capMu.Unlock()
	return m.state
}

func (m *Manager) storeState(s State) {
	m.state = s
}
