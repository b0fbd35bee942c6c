package plugins

import (
	"os"
	"path/filepath"
	"testing"
)

const goPluginSource = `package main

import "fmt"

func ModuleDefinitions() ([]map[string]any, error) {
	return []map[string]any{
		{
			"id":            "kdump",
			"title":         "Kdump",
			"help":          "Configures crash dumps.",
			"proposal_func": "KdumpProposal",
		},
	}, nil
}

func KdumpProposal(env map[string]any) (map[string]any, error) {
	shared, _ := env["shared"].(map[string]any)
	size, _ := shared["storage.root_size_gb"].(int)
	if size < 20 {
		return map[string]any{
			"raw_proposal":  []string{"Kdump disabled"},
			"warning":       fmt.Sprintf("A %d GiB root partition is too small for crash dumps.", size),
			"warning_level": "warning",
		}, nil
	}
	return map[string]any{
		"preformatted_proposal": "<ul><li>Kdump: <a href=\"kdump--memory\">256 MiB</a></li></ul>",
		"links":                 []string{"kdump--memory"},
		"shared":                map[string]any{"kdump.enabled": true},
	}, nil
}
`

func writePlugin(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
}

func TestLoadGoDefinitionDir(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "kdump.go", goPluginSource)
	defs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		t.Fatalf("load go defs: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if defs[0].Definition.ID != "kdump" || defs[0].Script == nil {
		t.Fatalf("unexpected definition: %+v", defs[0])
	}
	fn, err := defs[0].Script.Proposal("KdumpProposal")
	if err != nil {
		t.Fatalf("proposal func: %v", err)
	}
	out, err := fn(map[string]any{"shared": map[string]any{"storage.root_size_gb": 10}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out["warning_level"] != "warning" {
		t.Fatalf("unexpected script result %+v", out)
	}
}

func TestLoadGoDefinitionDirMissingFunc(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "broken.go", "package main\n")
	if _, err := LoadGoDefinitionDir(dir); err == nil {
		t.Fatalf("expected error for missing ModuleDefinitions function")
	}
}

func TestLoadGoDefinitionDirMissingProposalFunc(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "partial.go", `package main

func ModuleDefinitions() []map[string]any {
	return []map[string]any{{"id": "partial", "title": "Partial", "proposal_func": "Nope"}}
}
`)
	if _, err := LoadGoDefinitionDir(dir); err == nil {
		t.Fatalf("expected error for undefined proposal function")
	}
}
