package bridge

import (
	"strings"
	"testing"
)

func TestParsePresetsEmpty(t *testing.T) {
	presets, err := ParsePresets(strings.NewReader(`{"presets":[]}`))
	if err != nil {
		t.Fatalf("ParsePresets: %v", err)
	}
	if len(presets) != 0 {
		t.Fatalf("expected empty preset list, got %d", len(presets))
	}
}

func TestParsePresetsIgnoresUnknownFields(t *testing.T) {
	doc := `{"presets":[{"name":"default","bridges":["obfs4 1.2.3.4:443 cert=x"]}],"extra":"ignored"}`
	presets, err := ParsePresets(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParsePresets: %v", err)
	}
	if len(presets) != 1 || presets[0].Name != "default" {
		t.Fatalf("unexpected presets: %+v", presets)
	}
}

func TestParsePresetsMalformed(t *testing.T) {
	if _, err := ParsePresets(strings.NewReader(`not json`)); err == nil {
		t.Fatal("expected error for malformed document")
	}
}

func TestRoundTrip(t *testing.T) {
	original := []Preset{
		{Name: "a", Bridges: []string{"obfs4 1.2.3.4:443 cert=x", "obfs4 5.6.7.8:443 cert=y"}},
		{Name: "b", Bridges: []string{}},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	reparsed, err := ParsePresets(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("ParsePresets: %v", err)
	}

	if len(reparsed) != len(original) {
		t.Fatalf("round trip changed preset count: got %d want %d", len(reparsed), len(original))
	}
	for i := range original {
		if reparsed[i].Name != original[i].Name {
			t.Errorf("preset %d name = %q, want %q", i, reparsed[i].Name, original[i].Name)
		}
		if len(reparsed[i].Bridges) != len(original[i].Bridges) {
			t.Errorf("preset %d bridge count = %d, want %d", i, len(reparsed[i].Bridges), len(original[i].Bridges))
		}
	}
}

func TestFindPreset(t *testing.T) {
	presets := []Preset{{Name: "x", Bridges: []string{"b1"}}}
	if _, ok := FindPreset(presets, "missing"); ok {
		t.Fatal("expected FindPreset to report false for a missing name")
	}
	p, ok := FindPreset(presets, "x")
	if !ok || len(p.Bridges) != 1 {
		t.Fatalf("FindPreset returned unexpected preset: %+v", p)
	}
}
