// internal/tui/app.go
//
// This is the interactive display for the installation overview.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the last session snapshot plus UI state (selected link, tab)
// 2. Update: key presses become session actions, run as commands
// 3. View: the aggregated proposal rendered with the markup theme
//
// Session actions run off the UI goroutine; the snapshot shown is only
// replaced once an action completes.

package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/kingrea/overview/internal/logbook"
	"github.com/kingrea/overview/internal/markup"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/session"
)

// Driver is the session surface the display needs. *session.Session
// implements it.
type Driver interface {
	Handle(action proposal.Action) error
	State() session.State
	Help() string
}

// actionDoneMsg carries the snapshot taken after an action completed.
type actionDoneMsg struct {
	action proposal.Action
	state  session.State
	help   string
	err    error
}

// busyMsg carries the busy text reported while an action runs.
type busyMsg string

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogbook records UI level events.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithTheme overrides the markup theme.
func WithTheme(theme markup.Theme) AppOption {
	return func(a *App) {
		a.theme = theme
	}
}

// App is the overview model.
type App struct {
	driver  Driver
	logbook *logbook.Logbook
	theme   markup.Theme

	state    session.State
	helpText string
	links    []markup.Link
	selected int

	running  bool
	busy     string
	busyCh   chan string
	showHelp bool
	notice   string
	err      error

	confirm      *huh.Form
	confirmAbort bool
	quitting     bool

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// NewApp creates the overview model for a started session.
func NewApp(driver Driver, opts ...AppOption) *App {
	spin := spinner.New(spinner.WithSpinner(spinner.Dot))
	spin.Style = statusStyle
	app := &App{
		driver:   driver,
		theme:    markup.DefaultTheme(),
		busyCh:   make(chan string, 8),
		keys:     defaultKeyMap(),
		help:     help.New(),
		spinner:  spin,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   24,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.apply(driver.State(), driver.Help())
	return app
}

// BusyFunc returns the callback to register with session.WithBusy. It never
// blocks; busy text is dropped when the display falls behind.
func (a *App) BusyFunc() func(string) {
	return func(text string) {
		select {
		case a.busyCh <- text:
		default:
		}
	}
}

// Result returns the last known session status.
func (a *App) Result() session.Status {
	return a.state.Status
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.listenBusy())
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.confirm != nil {
		switch msg.(type) {
		case actionDoneMsg, busyMsg, spinner.TickMsg, tea.WindowSizeMsg:
		default:
			return a, a.updateConfirm(msg)
		}
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = max(20, msg.Width-2)
		a.viewport.Height = max(3, msg.Height-chromeHeight)
		a.help.Width = msg.Width
		a.refreshContent()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case busyMsg:
		a.busy = string(msg)
		return a, a.listenBusy()

	case actionDoneMsg:
		return a, a.finishAction(msg)

	case tea.KeyMsg:
		return a, a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, a.keys.Quit) {
		a.quitting = true
		return tea.Quit
	}
	if a.running {
		return nil
	}
	switch {
	case key.Matches(msg, a.keys.Help):
		a.showHelp = !a.showHelp
		a.help.ShowAll = a.showHelp
		a.refreshContent()
		return nil
	case key.Matches(msg, a.keys.Down):
		a.moveSelection(1)
		return nil
	case key.Matches(msg, a.keys.Up):
		a.moveSelection(-1)
		return nil
	case key.Matches(msg, a.keys.NextTab):
		return a.switchTab(1)
	case key.Matches(msg, a.keys.PrevTab):
		return a.switchTab(-1)
	case key.Matches(msg, a.keys.Activate):
		if link, ok := a.selectedLink(); ok {
			return a.dispatch(proposal.ActivateLink{ID: link.ID})
		}
		return nil
	case key.Matches(msg, a.keys.Proceed):
		return a.dispatch(proposal.Proceed{})
	case key.Matches(msg, a.keys.Back):
		return a.dispatch(proposal.Back{})
	case key.Matches(msg, a.keys.Abort):
		return a.dispatch(proposal.Abort{})
	case key.Matches(msg, a.keys.Reset):
		return a.dispatch(proposal.Reset{})
	case key.Matches(msg, a.keys.Export):
		return a.dispatch(proposal.Export{})
	case key.Matches(msg, a.keys.Skip):
		return a.dispatch(proposal.ToggleSkip{})
	}
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return cmd
}

// dispatch runs action against the session in a command.
func (a *App) dispatch(action proposal.Action) tea.Cmd {
	a.running = true
	a.busy = ""
	a.logInfo("tui: %s", proposal.ActionName(action))
	driver := a.driver
	return func() tea.Msg {
		err := driver.Handle(action)
		return actionDoneMsg{action: action, state: driver.State(), help: driver.Help(), err: err}
	}
}

func (a *App) finishAction(msg actionDoneMsg) tea.Cmd {
	a.running = false
	a.busy = ""
	a.err = msg.err
	a.apply(msg.state, msg.help)
	if msg.err != nil {
		if _, isAbort := msg.action.(proposal.Abort); isAbort && errors.Is(msg.err, proposal.ErrConfirmationRequired) {
			a.err = nil
			return a.openConfirm()
		}
		a.logWarn("tui: %s failed: %v", proposal.ActionName(msg.action), msg.err)
	}
	if a.state.Status.Terminal() {
		a.quitting = true
		return tea.Quit
	}
	return nil
}

func (a *App) openConfirm() tea.Cmd {
	a.confirmAbort = false
	a.confirm = huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Abort the installation?").
			Description("Nothing has been written to the system yet.").
			Affirmative("Abort").
			Negative("Continue").
			Value(&a.confirmAbort),
	)).WithShowHelp(false)
	return a.confirm.Init()
}

func (a *App) updateConfirm(msg tea.Msg) tea.Cmd {
	model, cmd := a.confirm.Update(msg)
	if form, ok := model.(*huh.Form); ok {
		a.confirm = form
	}
	switch a.confirm.State {
	case huh.StateCompleted:
		return a.resolveConfirm(a.confirmAbort)
	case huh.StateAborted:
		return a.resolveConfirm(false)
	}
	return cmd
}

// resolveConfirm closes the abort dialog, dispatching the confirmed abort
// when the user agreed.
func (a *App) resolveConfirm(abort bool) tea.Cmd {
	a.confirm = nil
	if !abort {
		return nil
	}
	return a.dispatch(proposal.Abort{Confirmed: true})
}

func (a *App) switchTab(delta int) tea.Cmd {
	tabs := len(a.state.Plan.Tabs)
	if tabs < 2 {
		return nil
	}
	next := ((a.state.CurrentTab+delta)%tabs + tabs) % tabs
	return a.dispatch(proposal.SelectTab{Index: next})
}

func (a *App) moveSelection(delta int) {
	if len(a.links) == 0 {
		return
	}
	a.selected = ((a.selected+delta)%len(a.links) + len(a.links)) % len(a.links)
	a.refreshContent()
}

func (a *App) selectedLink() (markup.Link, bool) {
	if a.selected < 0 || a.selected >= len(a.links) {
		return markup.Link{}, false
	}
	return a.links[a.selected], true
}

// apply installs a new snapshot, keeping the selected link when it survives.
func (a *App) apply(st session.State, helpText string) {
	previous, hadSelection := a.selectedLink()
	a.state = st
	a.helpText = helpText
	a.notice = st.Notice
	a.links = markup.Links(st.Document.Markup)
	a.selected = 0
	if hadSelection {
		for idx, link := range a.links {
			if link.ID == previous.ID {
				a.selected = idx
				break
			}
		}
	}
	a.refreshContent()
}

func (a *App) refreshContent() {
	if a.showHelp {
		text := strings.TrimSpace(a.helpText)
		if text == "" {
			text = "No help available."
		}
		a.viewport.SetContent(a.theme.Render(text, markup.Options{Width: a.viewport.Width}))
		return
	}
	selected := ""
	if link, ok := a.selectedLink(); ok {
		selected = link.ID
	}
	a.viewport.SetContent(a.theme.Render(a.state.Document.Markup, markup.Options{Width: a.viewport.Width, Selected: selected}))
}

func (a *App) listenBusy() tea.Cmd {
	ch := a.busyCh
	return func() tea.Msg {
		return busyMsg(<-ch)
	}
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func statusLine(st session.State) string {
	switch st.Status {
	case session.StatusFinished:
		return "Settings applied."
	case session.StatusAborted:
		return "Installation aborted."
	case session.StatusBack:
		return "Returned to the previous screen."
	case session.StatusFailed:
		return "Writing the settings failed."
	default:
		return fmt.Sprintf("%d modules", len(st.Plan.Modules))
	}
}
