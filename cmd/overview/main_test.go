package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/overview/internal/bridge"
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/session"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInitCreatesOverviewDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "--project", dir, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, name := range []string{"config.yaml", "control.yaml", "logs", "modules", "exports"} {
		if _, err := os.Stat(filepath.Join(dir, ".overview", name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestRunWritesSettings(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "--project", dir, "run", "--write")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, string(session.StatusFinished)) {
		t.Fatalf("expected finished session, got:\n%s", out)
	}
	for _, id := range []string{"storage", "bootloader", "software", "network", "security"} {
		if _, err := os.Stat(filepath.Join(dir, ".overview", "target", id+".yaml")); err != nil {
			t.Fatalf("%s not written: %v", id, err)
		}
	}
}

func TestRunPrintsJSONView(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "--project", dir, "run", "--json", "--activate", "security--firewall")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	var view bridge.View
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode view: %v\n%s", err, out)
	}
	if view.Status != session.StatusIdle {
		t.Fatalf("unexpected status %s", view.Status)
	}
	if !strings.Contains(view.Text, "Firewall will be disabled") {
		t.Fatalf("activating the firewall link should disable it:\n%s", view.Text)
	}
}

func TestModuleProposeUsesOverrides(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "--project", dir, "module", "propose", "security", "--set", "firewall=false")
	if err != nil {
		t.Fatalf("module propose: %v\n%s", err, out)
	}
	var got proposalOutput
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Module != "security" || got.WarningLevel != "warning" || got.Warning != "The firewall is disabled." {
		t.Fatalf("unexpected proposal %+v", got)
	}
}

func TestModuleUnknownID(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "--project", dir, "module", "describe", "nope", "--config-file", filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, module.ErrUnknown) {
		t.Fatalf("expected unknown module error, got %v", err)
	}
	if !strings.Contains(err.Error(), `"nope"`) {
		t.Fatalf("error should name the id: %v", err)
	}
}

type recordingHandler struct {
	actions []proposal.Action
	failOn  string
}

func (r *recordingHandler) Handle(action proposal.Action) error {
	r.actions = append(r.actions, action)
	if proposal.ActionName(action) == r.failOn {
		return proposal.ErrBlocked
	}
	return nil
}

func TestApplyRunActionsOrder(t *testing.T) {
	h := &recordingHandler{}
	ro := &runOptions{tab: 1, activate: []string{"a", "b"}, skip: true, export: true, write: true}
	if err := applyRunActions(h, ro); err != nil {
		t.Fatalf("apply: %v", err)
	}
	var names []string
	for _, action := range h.actions {
		names = append(names, proposal.ActionName(action))
	}
	want := "tab,link,link,toggle_skip,export,proceed"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestApplyRunActionsStopsOnError(t *testing.T) {
	h := &recordingHandler{failOn: "link"}
	ro := &runOptions{tab: proposal.NoTab, activate: []string{"a", "b"}, write: true}
	err := applyRunActions(h, ro)
	if !errors.Is(err, proposal.ErrBlocked) {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if len(h.actions) != 1 {
		t.Fatalf("expected to stop after the failing action, got %d", len(h.actions))
	}
}

func TestBuildModuleConfigParsesScalars(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(file, []byte("timeout: 3\nloader: grub2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	kv := keyValueFlag{}
	for _, raw := range []string{"secure_boot=false", "loader=systemd-boot"} {
		if err := kv.Set(raw); err != nil {
			t.Fatalf("set %s: %v", raw, err)
		}
	}
	cfg, err := buildModuleConfig(file, kv)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg["timeout"] != 3 || cfg["secure_boot"] != false || cfg["loader"] != "systemd-boot" {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if err := kv.Set("broken"); err == nil {
		t.Fatalf("expected error for missing '='")
	}
}
