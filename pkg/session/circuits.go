package session

import (
	"context"
	"time"

	serrors "github.com/opd-ai/go-tor/pkg/errors"
	"github.com/opd-ai/go-tor/pkg/policy"
	"github.com/opd-ai/go-tor/pkg/torclient"
)

const countryPolicyRetryDelay = policy.CountryPolicyRetryDelayMillis * time.Millisecond

// GetActiveCircuit runs the country-policy loop with no stream isolation.
func (m *Manager) GetActiveCircuit(ctx context.Context) ([]policy.RelayInfo, error) {
	return m.circuitWithPolicy(ctx, "")
}

// GetIsolatedCircuit runs the country-policy loop for a circuit isolated
// to origin: the same origin always receives the same isolation token
// for as long as that token stays in the registry.
func (m *Manager) GetIsolatedCircuit(ctx context.Context, origin string) ([]policy.RelayInfo, error) {
	return m.circuitWithPolicy(ctx, origin)
}

// circuitWithPolicy obtains a circuit and retries while it violates the
// current country preferences, up to policy.MaxCountryMatchAttempts,
// retiring every rejected circuit before asking for another.
func (m *Manager) circuitWithPolicy(ctx context.Context, origin string) ([]policy.RelayInfo, error) {
	m.capMu.Lock()
	defer m.capMu.Unlock()

	if m.cap == nil {
		return nil, serrors.NotConnected()
	}

	prefs := m.countryPrefs()

	var isolationToken string
	if origin != "" {
		isolationToken = m.isolation.TokenFor(origin)
	}
	streamPrefs := torclient.StreamPrefs{ExitCountry: prefs.Exit}

	for attempt := 0; attempt < policy.MaxCountryMatchAttempts; attempt++ {
		circ, err := m.cap.GetOrLaunchExit(ctx, isolationToken, streamPrefs)
		if err != nil {
			return nil, serrors.CircuitError("get or launch exit", err)
		}

		relays := m.describeHops(circ.Hops)
		if prefs.Matches(relays) {
			return relays, nil
		}

		m.log.Warn("circuit country policy miss", "attempt", attempt, "hops", len(relays))
		if err := m.cap.RetireAllCircuits(ctx); err != nil {
			m.log.Warn("retire circuits after policy miss failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(countryPolicyRetryDelay):
		}
	}

	return nil, serrors.PreferenceUnsatisfiable()
}

// describeHops resolves each hop's country via the geoip resolver and
// formats its nickname as a '$' followed by the hop's Nickname exactly
// as the capability reports it, or "$unknown" when that is empty. The
// value is not shortened: EngineCapability reports the relay's nickname,
// or its full fingerprint when the circuit path carries no nickname.
func (m *Manager) describeHops(hops []torclient.Hop) []policy.RelayInfo {
	out := make([]policy.RelayInfo, 0, len(hops))
	for _, h := range hops {
		nickname := h.Nickname
		if nickname == "" {
			nickname = "unknown"
		}

		ip := h.IPAddress
		if ip == "" {
			ip = "?.?.?.?"
		}

		country := "??"
		if resolved, err := m.geo.LookupCountryCode(ip); err == nil {
			country = resolved
		}

		out = append(out, policy.RelayInfo{
			Nickname:  "$" + nickname,
			IPAddress: ip,
			Country:   country,
		})
	}
	return out
}
