package control

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleControl = `
version: 1
locked_modules: [security]
proposals:
  - name: initial
    stage: initial
    mode: installation, autoinstallation
    kind: initial
    label: Installation Settings
    enable_skip: false
    modules:
      - network
      - name: storage
        presentation_order: 10
        config:
          filesystem: btrfs
    locked_modules: [network]
    tabs:
      - label: Overview
        modules: [storage, network]
      - label: Expert
        modules: [storage, network, bootloader]
  - name: fallback
    modules: [network]
`

func TestParseYAMLDecodesScalarAndMappingEntries(t *testing.T) {
	doc, err := ParseYAML([]byte(sampleControl))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	key := Key{Stage: "initial", Mode: "autoinstallation", Kind: "initial"}
	mods, err := doc.ActiveModules(key)
	if err != nil {
		t.Fatalf("active modules: %v", err)
	}
	if len(mods) != 2 || mods[0].Name != "network" || mods[1].Name != "storage" {
		t.Fatalf("unexpected modules %+v", mods)
	}
	if mods[0].Priority() != DefaultPresentationOrder {
		t.Fatalf("expected default priority, got %d", mods[0].Priority())
	}
	if mods[1].Priority() != 10 || mods[1].Config["filesystem"] != "btrfs" {
		t.Fatalf("unexpected storage entry %+v", mods[1])
	}
	tabs, _ := doc.Tabs(key)
	if len(tabs) != 2 || tabs[1].Modules[2] != "bootloader" {
		t.Fatalf("unexpected tabs %+v", tabs)
	}
	locked, _ := doc.LockedModules(key)
	if strings.Join(locked, ",") != "security,network" {
		t.Fatalf("unexpected locked %v", locked)
	}
	settings, _ := doc.Settings(key)
	if settings.EnableSkip || settings.Label != "Installation Settings" {
		t.Fatalf("unexpected settings %+v", settings)
	}
}

func TestLookupFallsThroughToWildcard(t *testing.T) {
	doc, err := ParseYAML([]byte(sampleControl))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	def, ok := doc.Lookup(Key{Stage: "continue", Mode: "update", Kind: "network"})
	if !ok || def.Name != "fallback" {
		t.Fatalf("expected fallback proposal, got %+v", def)
	}
	settings, _ := doc.Settings(Key{Stage: "continue"})
	if !settings.EnableSkip {
		t.Fatalf("skip defaults to enabled")
	}
}

func TestUnmatchedKeyYieldsNoModules(t *testing.T) {
	doc, err := ParseYAML([]byte(`
proposals:
  - name: only
    stage: initial
    modules: [network]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mods, err := doc.ActiveModules(Key{Stage: "continue"})
	if err != nil || mods != nil {
		t.Fatalf("expected no modules, got %+v (%v)", mods, err)
	}
}

func TestValidateRejectsBrokenDefinitions(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"no proposals":   `version: 1`,
		"no name":        "proposals:\n  - modules: [a]\n",
		"no modules":     "proposals:\n  - name: x\n",
		"duplicate":      "proposals:\n  - name: x\n    modules: [a, a]\n",
		"negative order": "proposals:\n  - name: x\n    modules:\n      - name: a\n        presentation_order: -1\n",
		"tab label":      "proposals:\n  - name: x\n    modules: [a]\n    tabs:\n      - modules: [a]\n",
		"tab duplicate":  "proposals:\n  - name: x\n    modules: [a]\n    tabs:\n      - label: t\n        modules: [a, a]\n",
		"dup proposal":   "proposals:\n  - name: x\n    modules: [a]\n  - name: x\n    modules: [b]\n",
	}
	for name, payload := range cases {
		if _, err := ParseYAML([]byte(payload)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadFileAndDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(DefaultYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Proposals) != len(Default().Proposals) {
		t.Fatalf("expected default proposals to round trip")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
