// Package bridge loads named bundles of Tor bridge lines from a JSON
// preset document.
package bridge

import (
	"encoding/json"
	"io"

	serrors "github.com/opd-ai/go-tor/pkg/errors"
)

// Preset is one named bundle of bridge lines.
type Preset struct {
	Name    string   `json:"name"`
	Bridges []string `json:"bridges"`
}

// document is the on-wire shape of a preset file. Unknown fields are
// ignored by encoding/json by default.
type document struct {
	Presets []Preset `json:"presets"`
}

// ParsePresets parses a preset document from r into a list of Presets.
// An empty "presets" field yields an empty, non-nil slice rather than
// an error.
func ParsePresets(r io.Reader) ([]Preset, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, serrors.IOError("parse bridge preset document", err)
	}
	if doc.Presets == nil {
		return []Preset{}, nil
	}
	return doc.Presets, nil
}

// Marshal re-serializes presets to the same JSON document shape
// ParsePresets consumes, so that parse -> marshal -> parse round-trips.
func Marshal(presets []Preset) ([]byte, error) {
	doc := document{Presets: presets}
	return json.Marshal(doc)
}

// FindPreset returns the preset with the given name, if present.
func FindPreset(presets []Preset, name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
