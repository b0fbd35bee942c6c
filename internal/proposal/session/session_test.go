package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/overview/internal/control"
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/aggregate"
	"github.com/kingrea/overview/internal/proposal/dispatch"
	"github.com/kingrea/overview/internal/proposal/resolver"
)

type fakeModule struct {
	title     string
	help      string
	proposals []module.Proposal
	calls     int
	requests  []module.ProposalRequest
	askFn     func(*module.Context, module.AskRequest) module.AskResult
	asked     []module.AskRequest
	writeFail bool
	writes    *[]string
	id        string
	export    map[string]any
	onPropose func(ctx *module.Context, call int)
}

func (m *fakeModule) Description(*module.Context) (module.Description, error) {
	return module.Description{Title: m.title, Help: m.help}, nil
}

func (m *fakeModule) MakeProposal(ctx *module.Context, req module.ProposalRequest) (module.Proposal, error) {
	m.calls++
	m.requests = append(m.requests, req)
	if m.onPropose != nil {
		m.onPropose(ctx, m.calls)
	}
	if len(m.proposals) == 0 {
		return module.Proposal{Raw: []string{m.title + " defaults"}}, nil
	}
	idx := m.calls - 1
	if idx >= len(m.proposals) {
		idx = len(m.proposals) - 1
	}
	return m.proposals[idx], nil
}

func (m *fakeModule) AskUser(ctx *module.Context, req module.AskRequest) (module.AskResult, error) {
	m.asked = append(m.asked, req)
	if m.askFn != nil {
		return m.askFn(ctx, req), nil
	}
	return module.AskResult{Sequence: module.SequenceNext}, nil
}

func (m *fakeModule) Write(*module.Context) (module.WriteResult, error) {
	if m.writes != nil {
		*m.writes = append(*m.writes, m.id)
	}
	if m.writeFail {
		return module.WriteResult{Failed: true, Message: "disk is read-only"}, nil
	}
	return module.WriteResult{}, nil
}

func (m *fakeModule) Export(*module.Context) (map[string]any, error) {
	return m.export, nil
}

func newSession(t *testing.T, controlYAML string, mods map[string]*fakeModule, opts ...Option) *Session {
	t.Helper()
	doc, err := control.ParseYAML([]byte(controlYAML))
	if err != nil {
		t.Fatalf("parse control: %v", err)
	}
	reg := module.NewRegistry()
	for id, mod := range mods {
		m := mod
		m.id = id
		reg.MustRegister(id, func(module.Config) (module.Module, error) { return m, nil })
	}
	d := dispatch.New(nil)
	res, err := resolver.New(doc, reg, d)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	sess, err := New(res, d, module.NewContext("initial", "installation", "initial", nil), opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess
}

func mustStart(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
}

const netStorage = `
proposals:
  - name: initial
    modules: [net, storage]
`

func TestBlockedScenarioRequiresSkipOrFix(t *testing.T) {
	storage := &fakeModule{
		title: "Storage",
		proposals: []module.Proposal{
			{Warning: "disk full", WarningLevel: module.LevelBlocker},
			{Raw: []string{"Use /dev/sda2 as root"}},
		},
	}
	var writes []string
	storage.writes = &writes
	net := &fakeModule{title: "Network", proposals: []module.Proposal{{Preformatted: "<b>ok</b>"}}, writes: &writes}
	s := newSession(t, netStorage, map[string]*fakeModule{"net": net, "storage": storage})
	mustStart(t, s)

	st := s.State()
	if !st.Document.HaveBlocker || !strings.Contains(st.Document.Markup, "Network") || !strings.Contains(st.Document.Markup, "Storage") {
		t.Fatalf("unexpected document: %+v", st.Document)
	}
	if err := s.Handle(proposal.Proceed{}); !errors.Is(err, proposal.ErrBlocked) {
		t.Fatalf("expected proceed to be refused, got %v", err)
	}
	if len(writes) != 0 {
		t.Fatalf("nothing may be written while blocked")
	}

	if err := s.Handle(proposal.ActivateLink{ID: "storage"}); err != nil {
		t.Fatalf("activate storage: %v", err)
	}
	if len(storage.asked) != 1 || storage.asked[0].ChosenID != "" {
		t.Fatalf("heading activation should ask without a chosen id: %+v", storage.asked)
	}
	if s.State().Document.HaveBlocker {
		t.Fatalf("fixed storage proposal should clear the blocker")
	}
	if err := s.Handle(proposal.Proceed{}); err != nil {
		t.Fatalf("proceed: %v", err)
	}
	if strings.Join(writes, ",") != "net,storage" {
		t.Fatalf("writes should follow execution order, got %v", writes)
	}
	if s.State().Status != StatusFinished {
		t.Fatalf("expected finished, got %s", s.State().Status)
	}
}

func TestSkipOverridesBlockerAndWritesNothing(t *testing.T) {
	var writes []string
	storage := &fakeModule{title: "Storage", proposals: []module.Proposal{{Warning: "disk full", WarningLevel: module.LevelBlocker}}, writes: &writes}
	net := &fakeModule{title: "Network", writes: &writes}
	s := newSession(t, netStorage, map[string]*fakeModule{"net": net, "storage": storage})
	mustStart(t, s)
	calls := storage.calls

	if err := s.Handle(proposal.ToggleSkip{}); err != nil {
		t.Fatalf("toggle skip: %v", err)
	}
	st := s.State()
	if !st.SkipRequested || !strings.Contains(st.Document.Markup, "will not be applied") {
		t.Fatalf("skip should be reflected in markup")
	}
	if storage.calls != calls {
		t.Fatalf("toggling skip must not recompute proposals")
	}
	if err := s.Handle(proposal.Proceed{}); err != nil {
		t.Fatalf("proceed with skip: %v", err)
	}
	if len(writes) != 0 {
		t.Fatalf("skipped screen must not write, got %v", writes)
	}
	if err := s.Handle(proposal.Back{}); !errors.Is(err, proposal.ErrSessionClosed) {
		t.Fatalf("expected closed session, got %v", err)
	}
}

func TestSkipDisabledByControlFile(t *testing.T) {
	s := newSession(t, `
proposals:
  - name: initial
    enable_skip: false
    modules: [net]
`, map[string]*fakeModule{"net": {title: "Network"}})
	mustStart(t, s)
	if err := s.Handle(proposal.ToggleSkip{}); !errors.Is(err, proposal.ErrSkipDisabled) {
		t.Fatalf("expected skip disabled, got %v", err)
	}
}

func TestWriteFailuresAreAggregated(t *testing.T) {
	var writes []string
	mods := map[string]*fakeModule{
		"one":   {title: "One", writes: &writes},
		"two":   {title: "Two", writes: &writes, writeFail: true},
		"three": {title: "Three", writes: &writes},
	}
	var notices []string
	s := newSession(t, "proposals:\n  - name: x\n    modules: [one, two, three]\n", mods,
		WithNotifier(func(msg string) { notices = append(notices, msg) }))
	mustStart(t, s)

	err := s.Handle(proposal.Proceed{})
	if !errors.Is(err, proposal.ErrWriteFailed) {
		t.Fatalf("expected write failure, got %v", err)
	}
	if strings.Join(writes, ",") != "one,two,three" {
		t.Fatalf("every module must be written, got %v", writes)
	}
	if len(notices) != 1 || !strings.Contains(notices[0], "Two") {
		t.Fatalf("expected one summary notice naming Two, got %v", notices)
	}
	if s.State().Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", s.State().Status)
	}
}

func TestProposingIsIdempotent(t *testing.T) {
	mods := map[string]*fakeModule{
		"net":     {title: "Network", proposals: []module.Proposal{{Raw: []string{"DHCP on eth0"}, Links: []string{"net--toggle"}}}},
		"storage": {title: "Storage", proposals: []module.Proposal{{Warning: "small disk", WarningLevel: module.LevelWarning}}},
	}
	s := newSession(t, netStorage, mods)
	mustStart(t, s)
	first := s.State().Document.Markup
	if err := s.propose(aggregate.PassRequest{}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if second := s.State().Document.Markup; second != first {
		t.Fatalf("markup changed between identical passes:\n%s\n%s", first, second)
	}
}

func TestResetForcesEveryModule(t *testing.T) {
	net := &fakeModule{title: "Network"}
	storage := &fakeModule{title: "Storage"}
	s := newSession(t, netStorage, map[string]*fakeModule{"net": net, "storage": storage})
	mustStart(t, s)
	if err := s.Handle(proposal.Reset{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for _, m := range []*fakeModule{net, storage} {
		last := m.requests[len(m.requests)-1]
		if !last.ForceReset {
			t.Fatalf("%s was not reset", m.title)
		}
		if m.requests[0].ForceReset {
			t.Fatalf("initial pass must not reset")
		}
	}
}

func TestCancelledDialogDoesNotRecompute(t *testing.T) {
	net := &fakeModule{title: "Network", askFn: func(*module.Context, module.AskRequest) module.AskResult {
		return module.AskResult{Sequence: module.SequenceCancel}
	}}
	storage := &fakeModule{title: "Storage"}
	s := newSession(t, netStorage, map[string]*fakeModule{"net": net, "storage": storage})
	mustStart(t, s)
	if err := s.Handle(proposal.ActivateLink{ID: "net"}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if net.calls != 1 || storage.calls != 1 {
		t.Fatalf("cancel must not recompute, calls net=%d storage=%d", net.calls, storage.calls)
	}
}

func TestTabSwitchAfterRecompute(t *testing.T) {
	a := &fakeModule{title: "A"}
	b := &fakeModule{title: "B", proposals: []module.Proposal{
		{Raw: []string{"fine"}},
		{Warning: "conflict", WarningLevel: module.LevelError},
	}}
	s := newSession(t, `
proposals:
  - name: initial
    modules: [a, b]
    tabs:
      - label: First
        modules: [a]
      - label: Second
        modules: [b]
`, map[string]*fakeModule{"a": a, "b": b})
	mustStart(t, s)
	if s.State().CurrentTab != 0 {
		t.Fatalf("expected initial tab 0")
	}
	if err := s.Handle(proposal.ActivateLink{ID: "a"}); err != nil {
		t.Fatalf("activate a: %v", err)
	}
	st := s.State()
	if st.CurrentTab != 1 || !st.Decision.Switched {
		t.Fatalf("expected automatic switch to the tab with the error, got %+v", st.Decision)
	}
	if err := s.Handle(proposal.SelectTab{Index: 0}); err != nil {
		t.Fatalf("select tab: %v", err)
	}
	if s.State().CurrentTab != 0 {
		t.Fatalf("manual selection must stick")
	}
	if err := s.Handle(proposal.SelectTab{Index: 5}); !errors.Is(err, proposal.ErrUnknownTab) {
		t.Fatalf("expected unknown tab, got %v", err)
	}
	if b.calls != 2 {
		t.Fatalf("tab switches must not recompute, b calls = %d", b.calls)
	}
}

func TestLanguageChangeRestartsAreBounded(t *testing.T) {
	lang := &fakeModule{title: "Language", proposals: []module.Proposal{{Raw: []string{"English"}, LanguageChanged: true}}}
	later := &fakeModule{title: "Later"}
	s := newSession(t, "proposals:\n  - name: x\n    modules: [lang, later]\n", map[string]*fakeModule{"lang": lang, "later": later})
	mustStart(t, s)
	if lang.calls != maxRestarts+1 {
		t.Fatalf("expected %d language passes, got %d", maxRestarts+1, lang.calls)
	}
	if later.calls != 1 || !later.requests[0].LanguageChanged {
		t.Fatalf("later module should run once with the new language, got %+v", later.requests)
	}
}

func TestLanguageChangeRefreshesContext(t *testing.T) {
	lang := &fakeModule{title: "Language", askFn: func(ctx *module.Context, _ module.AskRequest) module.AskResult {
		ctx.Shared.Set(module.SharedLanguage, "de_DE")
		return module.AskResult{Sequence: module.SequenceNext, LanguageChanged: true}
	}}
	s := newSession(t, "proposals:\n  - name: x\n    modules: [lang]\n", map[string]*fakeModule{"lang": lang})
	mustStart(t, s)
	if err := s.Handle(proposal.ActivateLink{ID: "lang"}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if s.State().Language != "de_DE" {
		t.Fatalf("language not refreshed: %q", s.State().Language)
	}
	if !lang.requests[1].LanguageChanged {
		t.Fatalf("recompute should carry the language flag")
	}
}

const upgradeControl = `
proposals:
  - name: upgrade
    mode: upgrade
    modules: [net, extra]
  - name: initial
    mode: installation
    modules: [net]
`

func TestProposalModeChangeReresolvesPlan(t *testing.T) {
	net := &fakeModule{
		title: "Network",
		proposals: []module.Proposal{
			{Raw: []string{"switching to upgrade"}, ModeChanged: true},
			{Raw: []string{"eth0 via DHCP"}},
		},
		onPropose: func(ctx *module.Context, call int) {
			if call == 1 {
				ctx.Shared.Set(module.SharedMode, "upgrade")
			}
		},
	}
	extra := &fakeModule{title: "Extra"}
	s := newSession(t, upgradeControl, map[string]*fakeModule{"net": net, "extra": extra})
	mustStart(t, s)
	st := s.State()
	if st.Key.Mode != "upgrade" {
		t.Fatalf("expected upgrade mode, got %q", st.Key.Mode)
	}
	if got := strings.Join(st.Plan.IDs(), ","); got != "net,extra" {
		t.Fatalf("plan not re-resolved, got %s", got)
	}
	if net.calls != 2 || extra.calls != 1 {
		t.Fatalf("expected a second pass over the new plan, net=%d extra=%d", net.calls, extra.calls)
	}
	if st.Status != StatusIdle {
		t.Fatalf("unexpected status %s", st.Status)
	}
}

func TestProposalModeChangeRestartsAreBounded(t *testing.T) {
	net := &fakeModule{title: "Network", proposals: []module.Proposal{{Raw: []string{"again"}, ModeChanged: true}}}
	s := newSession(t, upgradeControl, map[string]*fakeModule{"net": net, "extra": {title: "Extra"}})
	mustStart(t, s)
	if net.calls != maxRestarts+1 {
		t.Fatalf("expected %d passes, got %d", maxRestarts+1, net.calls)
	}
}

func TestProposalModeChangeToUnknownModeFails(t *testing.T) {
	net := &fakeModule{
		title:     "Network",
		proposals: []module.Proposal{{Raw: []string{"x"}, ModeChanged: true}},
		onPropose: func(ctx *module.Context, _ int) {
			ctx.Shared.Set(module.SharedMode, "rescue")
		},
	}
	s := newSession(t, upgradeControl, map[string]*fakeModule{"net": net, "extra": {title: "Extra"}})
	if err := s.Start(); !errors.Is(err, proposal.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if s.State().Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", s.State().Status)
	}
}

func TestModeChangeReresolvesPlan(t *testing.T) {
	mode := &fakeModule{title: "Mode", askFn: func(ctx *module.Context, _ module.AskRequest) module.AskResult {
		ctx.Shared.Set(module.SharedMode, "update")
		return module.AskResult{Sequence: module.SequenceNext, ModeChanged: true}
	}}
	mods := map[string]*fakeModule{
		"mode":     mode,
		"storage":  {title: "Storage"},
		"packages": {title: "Update Packages"},
	}
	s := newSession(t, `
proposals:
  - name: install
    mode: installation
    modules: [mode, storage]
  - name: update
    mode: update
    modules: [mode, packages]
`, mods)
	mustStart(t, s)
	if err := s.Handle(proposal.ActivateLink{ID: "mode"}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	st := s.State()
	if st.Key.Mode != "update" || strings.Join(st.Plan.IDs(), ",") != "mode,packages" {
		t.Fatalf("plan not re-resolved: %s %v", st.Key, st.Plan.IDs())
	}
	if _, ok := st.Results["storage"]; ok {
		t.Fatalf("results of removed modules must be dropped")
	}
	if !strings.Contains(st.Document.Markup, "Update Packages") {
		t.Fatalf("new module missing from document")
	}
}

func TestAbortNeedsConfirmation(t *testing.T) {
	s := newSession(t, netStorage, map[string]*fakeModule{"net": {title: "Network"}, "storage": {title: "Storage"}})
	mustStart(t, s)
	if err := s.Handle(proposal.Abort{}); !errors.Is(err, proposal.ErrConfirmationRequired) {
		t.Fatalf("expected confirmation required, got %v", err)
	}
	if err := s.Handle(proposal.Abort{Confirmed: true}); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if s.State().Status != StatusAborted {
		t.Fatalf("expected aborted status")
	}
	if err := s.Handle(proposal.Reset{}); !errors.Is(err, proposal.ErrSessionClosed) {
		t.Fatalf("expected closed session, got %v", err)
	}
}

func TestModuleAbortEndsSession(t *testing.T) {
	net := &fakeModule{title: "Network", askFn: func(*module.Context, module.AskRequest) module.AskResult {
		return module.AskResult{Sequence: module.SequenceAbort}
	}}
	s := newSession(t, "proposals:\n  - name: x\n    modules: [net]\n", map[string]*fakeModule{"net": net})
	mustStart(t, s)
	if err := s.Handle(proposal.ActivateLink{ID: "net"}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if s.State().Status != StatusAborted {
		t.Fatalf("expected aborted, got %s", s.State().Status)
	}
}

func TestLinksLockedAndUnknown(t *testing.T) {
	net := &fakeModule{title: "Network", proposals: []module.Proposal{{Raw: []string{"eth0"}, Links: []string{"net--disable"}}}}
	s := newSession(t, `
locked_modules: [storage]
proposals:
  - name: x
    modules: [net, storage]
`, map[string]*fakeModule{"net": net, "storage": {title: "Storage"}})
	mustStart(t, s)
	if err := s.Handle(proposal.ActivateLink{ID: "net--disable"}); err != nil {
		t.Fatalf("activate link: %v", err)
	}
	if net.asked[0].ChosenID != "net--disable" {
		t.Fatalf("chosen id not passed: %+v", net.asked)
	}
	if err := s.Handle(proposal.ActivateLink{ID: "storage"}); !errors.Is(err, proposal.ErrLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	if err := s.Handle(proposal.ActivateLink{ID: "nowhere"}); !errors.Is(err, proposal.ErrUnknownLink) {
		t.Fatalf("expected unknown link, got %v", err)
	}
	st := s.State()
	if len(st.Locked) != 1 || st.Locked[0] != "storage" {
		t.Fatalf("unexpected locked set %v", st.Locked)
	}
	if !strings.Contains(st.Document.Markup, "Storage (locked)") {
		t.Fatalf("locked module should still be displayed")
	}
}

func TestFailingAskBecomesFatalResult(t *testing.T) {
	net := &fakeModule{title: "Network", askFn: func(*module.Context, module.AskRequest) module.AskResult {
		panic("dialog crashed")
	}}
	s := newSession(t, "proposals:\n  - name: x\n    modules: [net]\n", map[string]*fakeModule{"net": net})
	mustStart(t, s)
	if err := s.Handle(proposal.ActivateLink{ID: "net"}); err != nil {
		t.Fatalf("failures must not propagate: %v", err)
	}
	if lvl := s.State().Results["net"].Level(); lvl != module.LevelFatal {
		t.Fatalf("expected fatal result, got %s", lvl)
	}
}

func TestBusyTextDistinguishesFirstRun(t *testing.T) {
	var busy []string
	s := newSession(t, "proposals:\n  - name: x\n    modules: [net]\n", map[string]*fakeModule{"net": {title: "Network"}},
		WithBusy(func(msg string) { busy = append(busy, msg) }))
	mustStart(t, s)
	if err := s.Handle(proposal.Reset{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(busy) != 2 || busy[0] != "Analyzing Network..." || busy[1] != "Adapting Network..." {
		t.Fatalf("unexpected busy text %v", busy)
	}
}

func TestExportWritesYAML(t *testing.T) {
	dir := t.TempDir()
	mods := map[string]*fakeModule{
		"net":     {title: "Network", export: map[string]any{"hostname": "install"}},
		"storage": {title: "Storage"},
	}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t, netStorage, mods, WithExportDir(dir), WithID("sess-1"), WithClock(func() time.Time { return fixed }))
	mustStart(t, s)
	if err := s.Handle(proposal.Export{}); err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(dir, "sess-1.yaml")
	if s.State().ExportPath != path {
		t.Fatalf("unexpected export path %s", s.State().ExportPath)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var out struct {
		Session string                    `yaml:"session"`
		Modules map[string]map[string]any `yaml:"modules"`
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if out.Session != "sess-1" || out.Modules["net"]["hostname"] != "install" {
		t.Fatalf("unexpected export %+v", out)
	}
	if _, ok := out.Modules["storage"]; ok {
		t.Fatalf("modules without data must be omitted")
	}
	if s.State().Status != StatusIdle {
		t.Fatalf("export must not leave the screen")
	}
}

func TestStartReportsConfigurationError(t *testing.T) {
	s := newSession(t, "proposals:\n  - name: x\n    modules: [ghost]\n", map[string]*fakeModule{})
	if err := s.Start(); !errors.Is(err, proposal.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := s.Handle(proposal.Proceed{}); !errors.Is(err, proposal.ErrSessionClosed) {
		t.Fatalf("failed session must be closed, got %v", err)
	}
}

func TestHelpFollowsPresentationOrder(t *testing.T) {
	mods := map[string]*fakeModule{
		"net":     {title: "Network", help: "Configure interfaces."},
		"storage": {title: "Storage", help: "Partitioning."},
	}
	s := newSession(t, `
proposals:
  - name: x
    modules:
      - net
      - name: storage
        presentation_order: 10
`, mods)
	mustStart(t, s)
	help := s.Help()
	if strings.Index(help, "Partitioning.") > strings.Index(help, "Configure interfaces.") {
		t.Fatalf("storage help should come first: %q", help)
	}
}
