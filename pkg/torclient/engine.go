package torclient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cretz/bine/control"
	"github.com/cretz/bine/tor"

	"github.com/opd-ai/go-tor/pkg/config"
	"github.com/opd-ai/go-tor/pkg/logger"
)

// bootstrapPollInterval is how often CreateBootstrappedWithProgress polls
// the control port for bootstrap progress while EnableNetwork blocks.
const bootstrapPollInterval = 500 * time.Millisecond

// circuitBuildPollInterval and circuitBuildTimeout bound GetOrLaunchExit's
// wait for a freshly extended circuit to reach the BUILT state.
const (
	circuitBuildPollInterval = 250 * time.Millisecond
	circuitBuildTimeout      = 30 * time.Second
)

// EngineCapability is the production Capability realization. It drives a
// real Tor process through cretz/bine rather than reimplementing the wire
// protocol: bootstrap, circuit building, reconfiguration, and traffic
// accounting all go through Tor's own control port, the way pkg/bine's
// hidden-service support already used cretz/bine in the teacher repo.
type EngineCapability struct {
	mu  sync.Mutex
	log *logger.Logger
	t   *tor.Tor
}

// NewEngineCapability constructs an EngineCapability with no Tor process
// running.
func NewEngineCapability(log *logger.Logger) *EngineCapability {
	if log == nil {
		log = logger.NewDefault()
	}
	return &EngineCapability{log: log}
}

// CreateBootstrapped starts a Tor process and blocks until bootstrap
// completes.
func (e *EngineCapability) CreateBootstrapped(ctx context.Context, cfg *config.TorrcConfig) error {
	return e.CreateBootstrappedWithProgress(ctx, cfg, nil)
}

// CreateBootstrappedWithProgress starts a Tor process against a torrc
// file rendered from cfg, then polls the control port's bootstrap-phase
// info while cretz/bine's EnableNetwork blocks until bootstrap finishes.
func (e *EngineCapability) CreateBootstrappedWithProgress(ctx context.Context, cfg *config.TorrcConfig, cb ProgressFunc) error {
	report := func(pct int, msg string) {
		if cb != nil {
			cb(pct, msg)
		}
	}
	report(0, "starting tor process")

	if err := config.EnsureDataDir(cfg.DataDirectory); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	torrcPath, err := writeTorrcFile(cfg)
	if err != nil {
		return fmt.Errorf("write torrc: %w", err)
	}

	t, err := tor.Start(ctx, &tor.StartConf{
		DataDir:           cfg.DataDirectory,
		TorrcFile:         torrcPath,
		RetainTempDataDir: true,
		NoAutoSocksPort:   true,
	})
	if err != nil {
		return fmt.Errorf("start tor process: %w", err)
	}

	stop := make(chan struct{})
	go pollBootstrapProgress(t.Control, cb, stop)

	if err := t.EnableNetwork(ctx, true); err != nil {
		close(stop)
		t.Close()
		return fmt.Errorf("enable network: %w", err)
	}
	close(stop)

	e.mu.Lock()
	e.t = t
	e.mu.Unlock()

	report(100, "done")
	return nil
}

func pollBootstrapProgress(conn *control.Conn, cb ProgressFunc, stop <-chan struct{}) {
	if cb == nil {
		return
	}
	ticker := time.NewTicker(bootstrapPollInterval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			kvs, err := conn.GetInfo("status/bootstrap-phase")
			if err != nil || len(kvs) == 0 {
				continue
			}
			pct, tag := parseBootstrapPhase(kvs[0].Val)
			if pct > last {
				last = pct
				cb(pct, tag)
			}
		}
	}
}

// parseBootstrapPhase extracts PROGRESS and TAG from a Tor control
// "status/bootstrap-phase" reply line, e.g.
// "NOTICE BOOTSTRAP PROGRESS=40 TAG=handshake_dir SUMMARY=...".
func parseBootstrapPhase(line string) (percent int, tag string) {
	for _, field := range strings.Fields(line) {
		if v, ok := strings.CutPrefix(field, "PROGRESS="); ok {
			percent, _ = strconv.Atoi(v)
		}
		if v, ok := strings.CutPrefix(field, "TAG="); ok {
			tag = v
		}
	}
	return percent, tag
}

// Reconfigure applies cfg's exit-country, bridge, and raw torrc settings
// to the live process via SETCONF. The Tor control protocol has no
// "reload this torrc file" verb, so each setting is pushed individually.
func (e *EngineCapability) Reconfigure(ctx context.Context, cfg *config.TorrcConfig) error {
	t := e.engine()
	if t == nil {
		return fmt.Errorf("engine not started")
	}
	if err := t.Control.SetConf(confKeyVals(cfg)...); err != nil {
		return fmt.Errorf("set conf: %w", err)
	}
	return nil
}

func confKeyVals(cfg *config.TorrcConfig) []*control.KeyVal {
	kvs := []*control.KeyVal{
		{Key: "UseBridges", Val: boolDigit(cfg.UseBridges)},
	}
	if cfg.ExitCountry != "" {
		kvs = append(kvs,
			&control.KeyVal{Key: "ExitNodes", Val: "{" + strings.ToLower(cfg.ExitCountry) + "}"},
			&control.KeyVal{Key: "StrictNodes", Val: "1"},
		)
	} else {
		kvs = append(kvs,
			&control.KeyVal{Key: "ExitNodes", Val: ""},
			&control.KeyVal{Key: "StrictNodes", Val: "0"},
		)
	}
	for k, v := range cfg.Raw {
		kvs = append(kvs, &control.KeyVal{Key: k, Val: fmt.Sprint(v)})
	}
	return kvs
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// RetireAllCircuits invalidates every currently open circuit by closing
// each one the control port reports in "circuit-status", rather than
// tearing down and restarting the whole Tor process.
func (e *EngineCapability) RetireAllCircuits(ctx context.Context) error {
	t := e.engine()
	if t == nil {
		return fmt.Errorf("engine not started")
	}

	for _, id := range circuitIDs(t.Control) {
		if _, err := t.Control.SendRequest("CLOSECIRCUIT %s", id); err != nil {
			e.log.Warn("close circuit failed", "circuit", id, "error", err)
		}
	}
	return nil
}

func circuitIDs(conn *control.Conn) []string {
	var ids []string
	for _, line := range circuitStatusLines(conn) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		ids = append(ids, fields[0])
	}
	return ids
}

func circuitStatusLines(conn *control.Conn) []string {
	kvs, err := conn.GetInfo("circuit-status")
	if err != nil {
		return nil
	}
	var lines []string
	for _, kv := range kvs {
		for _, line := range strings.Split(kv.Val, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// BuildNewCircuit asks the control port to extend a fresh circuit through
// the directory and discards the result.
func (e *EngineCapability) BuildNewCircuit(ctx context.Context) error {
	t := e.engine()
	if t == nil {
		return fmt.Errorf("engine not started")
	}
	_, err := extendCircuit(t.Control)
	return err
}

func extendCircuit(conn *control.Conn) (string, error) {
	resp, err := conn.SendRequest("EXTENDCIRCUIT 0 purpose=general")
	if err != nil {
		return "", fmt.Errorf("extend circuit: %w", err)
	}
	if err := resp.Err(); err != nil {
		return "", fmt.Errorf("extend circuit: %w", err)
	}
	id := parseExtendedCircuitID(resp.Reply)
	if id == "" {
		return "", fmt.Errorf("extend circuit: no circuit id in reply %q", resp.Reply)
	}
	return id, nil
}

func parseExtendedCircuitID(reply string) string {
	fields := strings.Fields(reply)
	for i, f := range fields {
		if f == "EXTENDED" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// TrafficStats reports the process's running bandwidth counters via
// GETINFO traffic/read and traffic/written.
func (e *EngineCapability) TrafficStats(ctx context.Context) (TrafficStats, error) {
	t := e.engine()
	if t == nil {
		return TrafficStats{}, fmt.Errorf("engine not started")
	}

	kvs, err := t.Control.GetInfo("traffic/read", "traffic/written")
	if err != nil {
		return TrafficStats{}, fmt.Errorf("traffic stats: %w", err)
	}

	var stats TrafficStats
	for _, kv := range kvs {
		switch kv.Key {
		case "traffic/read":
			stats.BytesReceived, _ = strconv.ParseUint(kv.Val, 10, 64)
		case "traffic/written":
			stats.BytesSent, _ = strconv.ParseUint(kv.Val, 10, 64)
		}
	}
	return stats, nil
}

// GetOrLaunchExit extends a fresh circuit and waits for it to reach the
// BUILT state, then resolves its path to nickname/address hops. The
// isolation token and exit-country preference are not pushed into the
// control-level path selection: country enforcement and circuit
// rejection happen in the session manager's policy loop one layer up,
// and stream-level isolation is applied by the SOCKS listener Tor itself
// exposes, not this capability.
func (e *EngineCapability) GetOrLaunchExit(ctx context.Context, isolationToken string, prefs StreamPrefs) (Circuit, error) {
	t := e.engine()
	if t == nil {
		return Circuit{}, fmt.Errorf("engine not started")
	}

	id, err := extendCircuit(t.Control)
	if err != nil {
		return Circuit{}, err
	}

	deadline := time.Now().Add(circuitBuildTimeout)
	for {
		circ, built, err := lookupBuiltCircuit(t.Control, id)
		if err != nil {
			return Circuit{}, err
		}
		if built {
			return circ, nil
		}
		if time.Now().After(deadline) {
			return Circuit{}, fmt.Errorf("circuit %s did not build before timeout", id)
		}
		select {
		case <-ctx.Done():
			return Circuit{}, ctx.Err()
		case <-time.After(circuitBuildPollInterval):
		}
	}
}

func lookupBuiltCircuit(conn *control.Conn, id string) (Circuit, bool, error) {
	for _, line := range circuitStatusLines(conn) {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != id {
			continue
		}
		if fields[1] != "BUILT" {
			return Circuit{}, false, nil
		}
		cid, _ := strconv.ParseUint(id, 10, 64)
		return Circuit{ID: cid, Hops: hopsFromPath(conn, fields[2])}, true, nil
	}
	return Circuit{}, false, nil
}

func hopsFromPath(conn *control.Conn, path string) []Hop {
	var hops []Hop
	for _, seg := range strings.Split(path, ",") {
		fingerprint, nickname := splitPathSegment(seg)
		hops = append(hops, Hop{Nickname: nickname, IPAddress: relayAddress(conn, fingerprint)})
	}
	return hops
}

// splitPathSegment parses one "$FINGERPRINT~Nickname" (or bare
// "$FINGERPRINT") element of a circuit-status PATH field.
func splitPathSegment(seg string) (fingerprint, nickname string) {
	seg = strings.TrimPrefix(seg, "$")
	parts := strings.SplitN(seg, "~", 2)
	fingerprint = parts[0]
	if len(parts) == 2 {
		nickname = parts[1]
	}
	if nickname == "" {
		nickname = fingerprint
	}
	return fingerprint, nickname
}

// relayAddress resolves a relay fingerprint to its router-status IP
// address via GETINFO ns/id/<fingerprint>, whose "r" line follows
// dir-spec's router-status-entry format: "r nickname identity digest
// YYYY-MM-DD HH:MM:SS address orport dirport".
func relayAddress(conn *control.Conn, fingerprint string) string {
	kvs, err := conn.GetInfo("ns/id/" + fingerprint)
	if err != nil || len(kvs) == 0 {
		return ""
	}
	for _, line := range strings.Split(kvs[0].Val, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 7 && fields[0] == "r" {
			return fields[6]
		}
	}
	return ""
}

// Introspect always reports ok=false: the control protocol this
// capability drives exposes circuit-status listings but not build-time
// or failure-count accounting, so the session manager's degraded metrics
// mode (count = isolation registry size, complete = false) is the
// honest answer rather than a partially-populated full report.
func (e *EngineCapability) Introspect(ctx context.Context) (Introspection, bool) {
	return Introspection{}, false
}

// Close stops the Tor process.
func (e *EngineCapability) Close() error {
	e.mu.Lock()
	t := e.t
	e.t = nil
	e.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close()
}

func (e *EngineCapability) engine() *tor.Tor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t
}

// writeTorrcFile renders cfg as line-oriented torrc text (Tor's own
// config-file syntax, not TOML) and writes it under cfg.DataDirectory
// for tor.Start's TorrcFile to load.
func writeTorrcFile(cfg *config.TorrcConfig) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "DataDirectory %s\n", cfg.DataDirectory)
	if cfg.SocksPort != 0 {
		fmt.Fprintf(&b, "SocksPort %d\n", cfg.SocksPort)
	}
	if cfg.ControlPort != 0 {
		fmt.Fprintf(&b, "ControlPort %d\n", cfg.ControlPort)
	}
	if cfg.ExitCountry != "" {
		fmt.Fprintf(&b, "ExitNodes {%s}\nStrictNodes 1\n", strings.ToLower(cfg.ExitCountry))
	}
	if cfg.UseBridges {
		b.WriteString("UseBridges 1\n")
		for _, line := range cfg.Bridges {
			fmt.Fprintf(&b, "Bridge %s\n", line)
		}
	}
	for k, v := range cfg.Raw {
		fmt.Fprintf(&b, "%s %v\n", k, v)
	}

	path := filepath.Join(cfg.DataDirectory, "torwell.torrc")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return "", fmt.Errorf("write torrc file: %w", err)
	}
	return path, nil
}
