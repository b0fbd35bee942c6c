package plugins

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDefinition = `id: welcome
title: Welcome
help: Greets the user in the selected language.
proposal:
  raw_proposal:
    - "Language: {{.language}}"
    - "Message: {{.config.motd}}"
  links: [welcome--language]
ask:
  language: de_DE
config:
  motd: hello
`

func TestParseDefinitionYAML(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(sampleDefinition))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.ID != "welcome" || def.Ask.Language != "de_DE" || def.Config["motd"] != "hello" {
		t.Fatalf("unexpected definition: %+v", def)
	}
}

func TestParseDefinitionYAMLErrors(t *testing.T) {
	if _, err := ParseDefinitionYAML([]byte("")); err == nil {
		t.Fatalf("expected empty payload to fail validation")
	}
	if _, err := ParseDefinitionYAML([]byte("id: [")); err == nil {
		t.Fatalf("expected malformed payload to fail")
	}
}

func TestLoadDefinitionDir(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "welcome.yaml")
	if err := os.WriteFile(path, []byte(sampleDefinition), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}
	defs, err := LoadDefinitionDir(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if defs[0].Path != path || defs[0].Script != nil {
		t.Fatalf("unexpected definition file %+v", defs[0])
	}
}

func TestLoadDefinitionFileRejectsProposalFunc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripted.yaml")
	payload := "id: scripted\ntitle: Scripted\nproposal_func: Propose\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadDefinitionFile(path); err == nil || !strings.Contains(err.Error(), "Go plugins") {
		t.Fatalf("expected proposal_func rejection, got %v", err)
	}
}

func TestLoadDefinitionDirMissing(t *testing.T) {
	defs, err := LoadDefinitionDir(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if defs != nil {
		t.Fatalf("expected nil slice for missing dir, got %v", defs)
	}
}
