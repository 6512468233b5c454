// Package facade implements the single process-scoped command surface
// collaborators (desktop shell, mobile bridge, CLI) drive: connection
// lifecycle commands, status/metrics pass-throughs, log administration,
// and session-token-gated access, with every command's status changes
// pushed to an optional EventSink.
package facade

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	serrors "github.com/opd-ai/go-tor/pkg/errors"
	"github.com/opd-ai/go-tor/pkg/logger"
	"github.com/opd-ai/go-tor/pkg/policy"
	"github.com/opd-ai/go-tor/pkg/ratelimit"
	"github.com/opd-ai/go-tor/pkg/session"
	"github.com/opd-ai/go-tor/pkg/sessiontoken"
	"github.com/opd-ai/go-tor/pkg/torclient"
)

// Config carries the façade's own knobs, distinct from the session
// manager's config but sourced from the same config.Config in practice.
type Config struct {
	LogFilePath        string
	MaxLogLines        int
	MaxMemoryMB        int
	MaxCircuits        int
	ConnectLimitPerMin int
	LogLimitPerMin     int
	SessionTokenTTL    time.Duration
}

// Facade is the process-scoped façade described in the session manager's
// command surface. It owns no Tor connectivity itself; every connection
// operation is delegated to the wrapped *session.Manager.
type Facade struct {
	mgr *session.Manager
	log *logger.Logger
	cfg Config

	logMu sync.Mutex

	retryCount atomic.Uint32

	connectLimiter *ratelimit.Limiter
	logLimiter     *ratelimit.Limiter

	invocations *ratelimit.InvocationCounters
	tokens      *sessiontoken.Manager

	sink EventSink

	warnMu      sync.Mutex
	trayWarning string
}

// New constructs a Facade around mgr. sink may be nil.
func New(mgr *session.Manager, cfg Config, log *logger.Logger, sink EventSink) *Facade {
	if log == nil {
		log = logger.NewDefault()
	}
	if cfg.MaxLogLines <= 0 {
		cfg.MaxLogLines = 1000
	}
	if cfg.ConnectLimitPerMin <= 0 {
		cfg.ConnectLimitPerMin = 3
	}
	if cfg.LogLimitPerMin <= 0 {
		cfg.LogLimitPerMin = 10
	}

	return &Facade{
		mgr:            mgr,
		log:            log,
		cfg:            cfg,
		connectLimiter: ratelimit.NewLimiter("facade_connect", cfg.ConnectLimitPerMin),
		logLimiter:     ratelimit.NewLimiter("facade_logs", cfg.LogLimitPerMin),
		invocations:    ratelimit.NewInvocationCounters(),
		tokens:         sessiontoken.NewManager(cfg.SessionTokenTTL),
	}
}

// Tokens exposes the façade's session-token manager so collaborators
// (the mobile bridge, a future desktop IPC layer) can mint and validate
// access tokens without reaching into façade internals.
func (f *Facade) Tokens() *sessiontoken.Manager { return f.tokens }

// Connect spawns a detached task that drives connect_with_backoff to
// completion, emitting CONNECTING, any number of RETRYING events, and a
// terminal CONNECTED or ERROR event. It returns immediately; the caller
// observes the outcome through the event sink, not the return value.
func (f *Facade) Connect() {
	f.invocations.Record("connect")
	if err := f.connectLimiter.Take(); err != nil {
		f.emit(Event{Status: StatusRateLimit, ErrorMessage: err.Error()})
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.log.Error("facade connect task panic recovered", "panic", r)
			}
		}()

		f.emit(Event{Status: StatusConnecting})

		onProgress := func(pct int, msg string) {
			f.emit(Event{Status: StatusConnecting, BootstrapProgress: pct, BootstrapMessage: msg})
		}
		onRetry := func(info session.RetryInfo) {
			f.retryCount.Add(1)
			f.appendLogLine("warn", fmt.Sprintf("connect attempt %d failed, retrying in %s: %v",
				info.Attempt, info.Delay, info.Err))
			f.emit(Event{
				Status:       StatusRetrying,
				RetryCount:   info.Attempt,
				RetryDelay:   info.Delay.Seconds(),
				ErrorMessage: info.Err.Error(),
			})
		}

		err := f.mgr.ConnectWithBackoff(context.Background(), session.DefaultMaxRetries, session.DefaultBudget, onRetry, onProgress)
		if err != nil {
			f.emit(Event{Status: StatusError, ErrorMessage: err.Error()})
			return
		}
		f.emit(Event{Status: StatusConnected})
	}()
}

// Disconnect tears down the live client synchronously.
func (f *Facade) Disconnect(ctx context.Context) error {
	f.invocations.Record("disconnect")
	f.emit(Event{Status: StatusDisconnecting})
	err := f.mgr.Disconnect()
	if err != nil {
		f.emit(Event{Status: StatusError, ErrorMessage: err.Error()})
		return err
	}
	f.emit(Event{Status: StatusDisconnected})
	return nil
}

// GetStatus reports the coarse connected/disconnected view collaborators
// poll (e.g. the mobile bridge's GET /status).
func (f *Facade) GetStatus() string {
	f.invocations.Record("get_status")
	if f.mgr.State() == session.StateConnected {
		return string(StatusConnected)
	}
	return string(StatusDisconnected)
}

// GetActiveCircuit is a thin pass-through to the session manager.
func (f *Facade) GetActiveCircuit(ctx context.Context) ([]policy.RelayInfo, error) {
	f.invocations.Record("get_active_circuit")
	return f.mgr.GetActiveCircuit(ctx)
}

// GetIsolatedCircuit is a thin pass-through to the session manager.
func (f *Facade) GetIsolatedCircuit(ctx context.Context, origin string) ([]policy.RelayInfo, error) {
	f.invocations.Record("get_isolated_circuit")
	return f.mgr.GetIsolatedCircuit(ctx, origin)
}

// SetExitCountry is a thin pass-through to the session manager.
func (f *Facade) SetExitCountry(cc string) error {
	f.invocations.Record("set_exit_country")
	return f.mgr.SetExitCountry(cc)
}

// SetBridges is a thin pass-through to the session manager.
func (f *Facade) SetBridges(list []string) {
	f.invocations.Record("set_bridges")
	f.mgr.SetBridges(list)
}

// GetTrafficStats is a thin pass-through to the session manager.
func (f *Facade) GetTrafficStats(ctx context.Context) (torclient.TrafficStats, error) {
	f.invocations.Record("get_traffic_stats")
	return f.mgr.TrafficStats(ctx)
}

// GetMetrics samples process resource usage alongside the session
// manager's circuit metrics, records a warning log entry and sets the
// tray warning string when memory or circuit-count ceilings are
// exceeded.
func (f *Facade) GetMetrics(ctx context.Context) (ResourceMetrics, error) {
	f.invocations.Record("get_metrics")

	circuitMetrics, err := f.mgr.CircuitMetrics(ctx)
	if err != nil {
		return ResourceMetrics{}, err
	}

	memMB, memErr := sampleMemoryMB()
	if memErr != nil {
		f.log.Debug("memory sample failed", "error", memErr)
	}

	metrics := ResourceMetrics{
		CircuitMetrics: circuitMetrics,
		MemoryMB:       memMB,
		CPUPercent:     f.cpuPercent(),
	}

	f.checkResourceCeilings(metrics)
	return metrics, nil
}

func (f *Facade) checkResourceCeilings(m ResourceMetrics) {
	var warnings []string
	if f.cfg.MaxMemoryMB > 0 && m.MemoryMB > float64(f.cfg.MaxMemoryMB) {
		warnings = append(warnings, fmt.Sprintf("memory usage %.1fMB exceeds ceiling %dMB", m.MemoryMB, f.cfg.MaxMemoryMB))
	}
	if f.cfg.MaxCircuits > 0 && m.Count > f.cfg.MaxCircuits {
		warnings = append(warnings, fmt.Sprintf("circuit count %d exceeds ceiling %d", m.Count, f.cfg.MaxCircuits))
	}

	if len(warnings) == 0 {
		f.setTrayWarning("")
		return
	}
	for _, w := range warnings {
		f.appendLogLine("warn", w)
	}
	f.setTrayWarning(warnings[0])
}

func (f *Facade) setTrayWarning(s string) {
	f.warnMu.Lock()
	f.trayWarning = s
	f.warnMu.Unlock()
}

// TrayWarning returns the current tray warning string, empty when no
// ceiling is currently exceeded.
func (f *Facade) TrayWarning() string {
	f.warnMu.Lock()
	defer f.warnMu.Unlock()
	return f.trayWarning
}

// NewIdentity is a thin pass-through that additionally emits
// NEW_IDENTITY on success.
func (f *Facade) NewIdentity(ctx context.Context) error {
	f.invocations.Record("new_identity")
	if err := f.mgr.NewIdentity(ctx); err != nil {
		f.emit(Event{Status: StatusError, ErrorMessage: err.Error()})
		return err
	}
	f.emit(Event{Status: StatusNewIdentity})
	return nil
}

// GetLogs returns the log file's contents, gated by the log-read rate
// limiter.
func (f *Facade) GetLogs() (string, error) {
	f.invocations.Record("get_logs")
	if err := f.logLimiter.Take(); err != nil {
		f.emit(Event{Status: StatusRateLimit, ErrorMessage: err.Error()})
		return "", err
	}

	f.logMu.Lock()
	defer f.logMu.Unlock()

	data, err := os.ReadFile(f.cfg.LogFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", serrors.IOError("read log file", err)
	}
	return string(data), nil
}

// ClearLogs truncates the log file.
func (f *Facade) ClearLogs() error {
	f.invocations.Record("clear_logs")
	f.logMu.Lock()
	defer f.logMu.Unlock()

	if f.cfg.LogFilePath == "" {
		return nil
	}
	if err := os.Truncate(f.cfg.LogFilePath, 0); err != nil && !os.IsNotExist(err) {
		return serrors.IOError("clear log file", err)
	}
	return nil
}

// GetLogFilePath returns the configured log file path.
func (f *Facade) GetLogFilePath() string {
	f.invocations.Record("get_log_file_path")
	return f.cfg.LogFilePath
}

// RetryCount returns the number of connect retries observed so far.
func (f *Facade) RetryCount() uint32 {
	return f.retryCount.Load()
}
