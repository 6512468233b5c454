package config

import (
	"strings"

	"github.com/BurntSushi/toml"

	serrors "github.com/opd-ai/go-tor/pkg/errors"
)

// TorrcConfig is the fully assembled configuration handed to the Tor
// client capability's bootstrap calls. It layers the operator's torrc
// text with the session manager's exit-country and bridge state.
type TorrcConfig struct {
	DataDirectory string
	SocksPort     int
	ControlPort   int

	// Raw holds the decoded torrc key/value pairs, re-exposed so the
	// production capability can render them back into torrc lines.
	Raw map[string]interface{}

	ExitCountry string
	UseBridges  bool
	Bridges     []string
}

// BuildTorrcConfig parses torrcText (if non-empty) as TOML, then layers
// exitCountry and bridges on top, matching the session manager's
// connect-time config assembly: torrc text first, then exit country,
// then an explicitly-enabled bridges section when bridges are present.
//
// A blank torrcText is valid: bootstrap proceeds with only the base
// config and whatever country/bridge state is layered on.
func BuildTorrcConfig(base *Config, torrcText string, exitCountry string, bridges []string) (*TorrcConfig, error) {
	raw := make(map[string]interface{})
	if strings.TrimSpace(torrcText) != "" {
		if _, err := toml.Decode(torrcText, &raw); err != nil {
			return nil, serrors.ConfigError("parse torrc", err)
		}
	}

	cfg := &TorrcConfig{
		DataDirectory: base.DataDirectory,
		SocksPort:     base.SocksPort,
		ControlPort:   base.ControlPort,
		Raw:           raw,
	}

	if exitCountry != "" {
		cfg.ExitCountry = strings.ToUpper(exitCountry)
		raw["ExitNodes"] = "{" + cfg.ExitCountry + "}"
		raw["StrictNodes"] = true
	}

	if len(bridges) > 0 {
		cfg.UseBridges = true
		cfg.Bridges = append([]string{}, bridges...)
		raw["UseBridges"] = true
		raw["Bridge"] = cfg.Bridges
	}

	return cfg, nil
}
