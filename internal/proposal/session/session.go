// Package session owns the interactive overview loop: the initial proposal
// pass, user actions coming from a display surface, the write phase and the
// terminal transitions. A Session is not safe for concurrent use; display
// drivers serialize actions.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/overview/internal/control"
	"github.com/kingrea/overview/internal/logbook"
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/aggregate"
	"github.com/kingrea/overview/internal/proposal/arbiter"
	"github.com/kingrea/overview/internal/proposal/dispatch"
)

// maxRestarts bounds how often one pass restarts after a module changed the
// language or the mode.
const maxRestarts = 3

// Planner resolves the module plan for a key. *resolver.Resolver implements it.
type Planner interface {
	Resolve(ctx *module.Context, key control.Key) (proposal.Plan, error)
}

// Session drives one overview screen.
type Session struct {
	planner    Planner
	dispatcher *dispatch.Dispatcher
	aggregator *aggregate.Aggregator
	ctx        *module.Context
	logbook    *logbook.Logbook
	busy       func(string)
	notify     func(string)
	exportDir  string
	clock      func() time.Time
	state      State
}

// Option customizes a Session.
type Option func(*Session)

// WithBusy registers a callback receiving busy text ahead of each module call.
func WithBusy(fn func(string)) Option {
	return func(s *Session) {
		s.busy = fn
	}
}

// WithNotifier registers the callback used for user-facing notices such as
// the write failure summary.
func WithNotifier(fn func(string)) Option {
	return func(s *Session) {
		s.notify = fn
	}
}

// WithExportDir sets the directory export files are written to.
func WithExportDir(dir string) Option {
	return func(s *Session) {
		s.exportDir = dir
	}
}

// WithID fixes the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		if strings.TrimSpace(id) != "" {
			s.state.ID = id
		}
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New wires a session. The module context supplies the stage, mode and kind
// the plan is resolved for, plus the logbook.
func New(planner Planner, dispatcher *dispatch.Dispatcher, ctx *module.Context, opts ...Option) (*Session, error) {
	if planner == nil {
		return nil, fmt.Errorf("session: planner is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("session: dispatcher is required")
	}
	if ctx == nil {
		return nil, fmt.Errorf("session: module context is required")
	}
	if ctx.Shared == nil {
		ctx.Shared = module.NewShared()
	}
	s := &Session{
		planner:    planner,
		dispatcher: dispatcher,
		aggregator: aggregate.New(dispatcher),
		ctx:        ctx,
		logbook:    ctx.Logbook,
		clock:      time.Now,
		state: State{
			ID:              uuid.NewString(),
			Status:          StatusInitializing,
			CurrentTab:      proposal.NoTab,
			AlreadyComputed: map[string]bool{},
			Results:         map[string]proposal.Result{},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.state.ID
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	return s.state.clone()
}

// Start resolves the plan and runs the initial proposal pass. A configuration
// error leaves the session failed.
func (s *Session) Start() error {
	if s.state.Status != StatusInitializing {
		return fmt.Errorf("session: already started")
	}
	if err := s.resolve(); err != nil {
		return err
	}
	s.state.CurrentTab = s.state.Plan.InitialTab()
	s.state.Language = s.ctx.Language
	s.logbook.Info("session %s: started %s with %d modules", s.state.ID, s.state.Key, len(s.state.Plan.Modules))
	if err := s.propose(aggregate.PassRequest{}); err != nil {
		return err
	}
	s.state.Status = StatusIdle
	return nil
}

// Handle applies one user action.
func (s *Session) Handle(action proposal.Action) error {
	if s.state.Status.Terminal() {
		return proposal.ErrSessionClosed
	}
	if s.state.Status == StatusInitializing {
		return fmt.Errorf("session: not started")
	}
	s.logbook.Info("session %s: action %s", s.state.ID, proposal.ActionName(action))
	switch a := action.(type) {
	case proposal.SelectTab:
		return s.selectTab(a.Index)
	case proposal.ActivateLink:
		return s.activate(a.ID)
	case proposal.Proceed:
		return s.proceed()
	case proposal.Back:
		s.finish(StatusBack)
		return nil
	case proposal.Abort:
		if !a.Confirmed && len(s.state.AlreadyComputed) > 0 {
			return proposal.ErrConfirmationRequired
		}
		s.finish(StatusAborted)
		return nil
	case proposal.Reset:
		return s.refresh(arbiter.ForAction(a), aggregate.PassRequest{})
	case proposal.Export:
		_, err := s.export()
		return err
	case proposal.ToggleSkip:
		if !s.state.Plan.Settings.EnableSkip {
			return proposal.ErrSkipDisabled
		}
		s.state.SkipRequested = !s.state.SkipRequested
		s.rebuild(false)
		return nil
	default:
		return fmt.Errorf("session: unsupported action %T", action)
	}
}

// Help joins the help text of the visible modules in presentation order.
func (s *Session) Help() string {
	var parts []string
	for _, id := range s.state.Plan.Visible(s.state.CurrentTab) {
		entry, ok := s.state.Plan.Lookup(id)
		if !ok {
			continue
		}
		help := s.state.Results[id].Proposal.Help
		if strings.TrimSpace(help) == "" {
			help = entry.Help
		}
		if strings.TrimSpace(help) == "" {
			continue
		}
		parts = append(parts, entry.Title+"\n"+strings.TrimSpace(help))
	}
	return strings.Join(parts, "\n\n")
}

func (s *Session) selectTab(idx int) error {
	plan := s.state.Plan
	if !plan.HasTabs() || idx == proposal.NoTab || !plan.ValidTab(idx) {
		return fmt.Errorf("%w: %d", proposal.ErrUnknownTab, idx)
	}
	s.state.CurrentTab = idx
	s.rebuild(false)
	return nil
}

func (s *Session) activate(link string) error {
	owner, ok := s.state.Document.Resolve(link)
	if !ok {
		return fmt.Errorf("%w: %s", proposal.ErrUnknownLink, link)
	}
	entry, ok := s.state.Plan.Lookup(owner)
	if !ok {
		return fmt.Errorf("%w: %s", proposal.ErrUnknownLink, link)
	}
	if entry.Locked {
		return fmt.Errorf("%w: %s", proposal.ErrLocked, owner)
	}
	chosen := link
	if link == owner {
		chosen = ""
	}
	res, err := s.dispatcher.Ask(s.ctx, owner, entry.Module, module.AskRequest{ChosenID: chosen})
	if err != nil {
		s.state.Results[owner] = dispatch.Failed(owner, err)
		s.rebuild(false)
		return nil
	}
	if res.Sequence == module.SequenceAbort {
		s.finish(StatusAborted)
		return nil
	}
	refresh := arbiter.AfterAsk(res)
	if refresh != arbiter.RefreshNone {
		s.logbook.Info("session %s: %s answered %s, refresh %s", s.state.ID, owner, res.Sequence, refresh)
	}
	if err := s.refresh(refresh, aggregate.PassRequest{LanguageChanged: res.LanguageChanged}); err != nil {
		return err
	}
	if res.Sequence == module.SequenceFinish {
		return s.proceed()
	}
	return nil
}

func (s *Session) refresh(kind arbiter.Refresh, req aggregate.PassRequest) error {
	switch kind {
	case arbiter.RefreshResolve:
		if err := s.resolve(); err != nil {
			s.finish(StatusFailed)
			return err
		}
	case arbiter.RefreshReset:
		req.ForceReset = true
	case arbiter.RefreshPass:
	default:
		return nil
	}
	if err := s.propose(req); err != nil {
		s.finish(StatusFailed)
		return err
	}
	return nil
}

// resolve (re)builds the plan for the current context. Results of modules
// that are no longer part of the plan are dropped.
func (s *Session) resolve() error {
	if mode := s.ctx.Shared.String(module.SharedMode); mode != "" && mode != s.ctx.Mode {
		s.logbook.Info("session %s: mode changed from %s to %s", s.state.ID, s.ctx.Mode, mode)
		s.ctx.Mode = mode
	}
	key := control.Key{Stage: s.ctx.Stage, Mode: s.ctx.Mode, Kind: s.ctx.Kind}
	plan, err := s.planner.Resolve(s.ctx, key)
	if err != nil {
		s.state.Status = StatusFailed
		s.state.Notice = err.Error()
		s.logbook.Error("session %s: %v", s.state.ID, err)
		return err
	}
	s.state.Key = key
	s.state.Plan = plan
	s.state.Locked = lockedIDs(plan)
	for id := range s.state.Results {
		if _, ok := plan.Lookup(id); !ok {
			delete(s.state.Results, id)
		}
	}
	if !plan.ValidTab(s.state.CurrentTab) || (plan.HasTabs() && s.state.CurrentTab == proposal.NoTab) {
		s.state.CurrentTab = plan.InitialTab()
	}
	return nil
}

// propose runs a full pass, restarting on language changes and re-resolving
// the plan on mode changes, then rebuilds the document. Results of modules
// the pass did not reach keep their last known value. An error means the
// plan could not be re-resolved and the session failed.
func (s *Session) propose(req aggregate.PassRequest) error {
	if req.LanguageChanged {
		s.syncLanguage()
	}
	for restarts := 0; ; restarts++ {
		pass := s.aggregator.Pass(s.ctx, s.state.Plan, req, s.announce)
		for _, id := range pass.Computed {
			s.state.Results[id] = pass.Results[id]
			s.state.AlreadyComputed[id] = true
		}
		if (!pass.LanguageChanged && !pass.ModeChanged) || req.Continue {
			break
		}
		if pass.LanguageChanged {
			s.syncLanguage()
			s.logbook.Info("session %s: %s changed the language, restarting pass", s.state.ID, pass.ChangedBy)
			req.LanguageChanged = true
		}
		if pass.ModeChanged {
			s.logbook.Info("session %s: %s changed the mode, re-resolving", s.state.ID, pass.ChangedBy)
			if err := s.resolve(); err != nil {
				return err
			}
		}
		if restarts+1 >= maxRestarts {
			s.logbook.Warn("session %s: pass restarted %d times, finishing without restart", s.state.ID, restarts+1)
			req.Continue = true
		}
	}
	s.rebuild(true)
	return nil
}

func (s *Session) syncLanguage() {
	if lang := s.ctx.Shared.String(module.SharedLanguage); lang != "" {
		s.ctx.Language = lang
	}
	s.state.Language = s.ctx.Language
}

func (s *Session) announce(entry proposal.Entry) {
	if s.busy == nil {
		return
	}
	if s.state.AlreadyComputed[entry.ID] {
		s.busy(fmt.Sprintf("Adapting %s...", entry.Title))
		return
	}
	s.busy(fmt.Sprintf("Analyzing %s...", entry.Title))
}

func (s *Session) rebuild(allowSwitch bool) {
	dec := arbiter.Decide(arbiter.Input{
		Plan:        s.state.Plan,
		Current:     s.state.CurrentTab,
		Results:     s.state.Results,
		Skip:        s.state.SkipRequested,
		AllowSwitch: allowSwitch,
	})
	if dec.Switched {
		s.logbook.Info("session %s: switching to tab %d (%s)", s.state.ID, dec.Tab, dec.Tabs[dec.Tab].Worst)
	}
	s.state.CurrentTab = dec.Tab
	doc := aggregate.Build(aggregate.Input{
		Plan:    s.state.Plan,
		Tab:     dec.Tab,
		Results: s.state.Results,
		Skip:    s.state.SkipRequested,
	})
	if !sameConflicts(doc.Conflicts, s.state.Document.Conflicts) {
		for _, c := range doc.Conflicts {
			s.logbook.Warn("session %s: %v: %q claimed by %s and %s, %s wins", s.state.ID, proposal.ErrDuplicateLink, c.ID, c.First, c.Second, c.Second)
		}
	}
	s.state.Decision = dec
	s.state.Document = doc
}

func (s *Session) proceed() error {
	if err := s.state.Decision.MayProceed(); err != nil {
		s.state.Notice = "Resolve the reported problems or skip this screen before proceeding."
		s.logbook.Warn("session %s: proceed refused, %v", s.state.ID, err)
		return err
	}
	if s.state.SkipRequested {
		s.logbook.Info("session %s: skipping, nothing written", s.state.ID)
		s.finish(StatusFinished)
		return nil
	}
	s.state.Status = StatusWriting
	var failed []string
	for _, entry := range s.state.Plan.Modules {
		if s.busy != nil {
			s.busy(fmt.Sprintf("Writing %s...", entry.Title))
		}
		res, err := s.dispatcher.Write(s.ctx, entry.ID, entry.Module)
		if err == nil && !res.Failed {
			continue
		}
		msg := res.Message
		if err != nil {
			msg = err.Error()
		}
		s.logbook.Error("session %s: write %s failed: %s", s.state.ID, entry.ID, msg)
		failed = append(failed, entry.Title)
	}
	if len(failed) > 0 {
		s.state.Notice = "Writing the settings failed for: " + strings.Join(failed, ", ")
		s.logbook.Error("session %s: %s", s.state.ID, s.state.Notice)
		if s.notify != nil {
			s.notify(s.state.Notice)
		}
		s.finish(StatusFailed)
		return fmt.Errorf("%w: %s", proposal.ErrWriteFailed, strings.Join(failed, ", "))
	}
	s.logbook.Info("session %s: wrote %d modules", s.state.ID, len(s.state.Plan.Modules))
	s.finish(StatusFinished)
	return nil
}

func (s *Session) finish(status Status) {
	s.state.Status = status
	s.logbook.Info("session %s: %s", s.state.ID, status)
}

type exportFile struct {
	Session    string                    `yaml:"session"`
	Stage      string                    `yaml:"stage,omitempty"`
	Mode       string                    `yaml:"mode,omitempty"`
	Kind       string                    `yaml:"kind,omitempty"`
	ExportedAt time.Time                 `yaml:"exported_at"`
	Modules    map[string]map[string]any `yaml:"modules"`
}

// export writes every exporter's data as YAML and returns the file path.
func (s *Session) export() (string, error) {
	if strings.TrimSpace(s.exportDir) == "" {
		return "", errors.New("session: export directory is not configured")
	}
	file := exportFile{
		Session:    s.state.ID,
		Stage:      s.state.Key.Stage,
		Mode:       s.state.Key.Mode,
		Kind:       s.state.Key.Kind,
		ExportedAt: s.clock().UTC(),
		Modules:    map[string]map[string]any{},
	}
	for _, entry := range s.state.Plan.Modules {
		data, ok, err := s.dispatcher.Export(s.ctx, entry.ID, entry.Module)
		if err != nil {
			s.logbook.Warn("session %s: export %s skipped: %v", s.state.ID, entry.ID, err)
			continue
		}
		if ok && data != nil {
			file.Modules[entry.ID] = data
		}
	}
	payload, err := yaml.Marshal(file)
	if err != nil {
		return "", fmt.Errorf("session: encode export: %w", err)
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("session: create export dir: %w", err)
	}
	path := filepath.Join(s.exportDir, s.state.ID+".yaml")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("session: write export: %w", err)
	}
	s.state.ExportPath = path
	s.state.Notice = "Configuration exported to " + path
	s.logbook.Info("session %s: exported %d modules to %s", s.state.ID, len(file.Modules), path)
	return path, nil
}

func sameConflicts(a, b []aggregate.LinkConflict) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
