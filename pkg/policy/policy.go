// Package policy expresses and evaluates circuit country constraints
// against a realized circuit path.
package policy

import "strings"

// MaxCountryMatchAttempts bounds the policy retry loop the session
// manager runs when a built circuit doesn't satisfy CountryPrefs.
const MaxCountryMatchAttempts = 5

// CountryPolicyRetryDelayMillis is the fixed delay between policy-loop
// retries, in milliseconds.
const CountryPolicyRetryDelayMillis = 250

// RelayInfo describes one hop of a built circuit.
type RelayInfo struct {
	Nickname  string
	IPAddress string
	Country   string
}

// CountryPrefs holds optional entry/middle/exit country constraints.
// All comparisons against a built circuit are case-insensitive ISO
// alpha-2.
type CountryPrefs struct {
	Entry  string
	Middle string
	Exit   string
}

// Restricted reports whether any of entry, middle, or exit is set.
func (p CountryPrefs) Restricted() bool {
	return p.Entry != "" || p.Middle != "" || p.Exit != ""
}

// Matches evaluates relays against the preferences. An unrestricted
// policy always matches; an empty relay list never matches a
// restricted policy.
func (p CountryPrefs) Matches(relays []RelayInfo) bool {
	if !p.Restricted() {
		return true
	}
	if len(relays) == 0 {
		return false
	}

	if p.Entry != "" && !equalCountry(relays[0].Country, p.Entry) {
		return false
	}
	if p.Exit != "" && !equalCountry(relays[len(relays)-1].Country, p.Exit) {
		return false
	}
	if p.Middle != "" {
		if len(relays) < 3 {
			return false
		}
		for _, hop := range relays[1 : len(relays)-1] {
			if !equalCountry(hop.Country, p.Middle) {
				return false
			}
		}
	}
	return true
}

func equalCountry(a, b string) bool {
	return strings.EqualFold(a, b)
}
