package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal/arbiter"
)

// chromeHeight is the number of lines around the proposal viewport.
const chromeHeight = 8

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	tabStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")).Padding(0, 1)
	tabActiveStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	noticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	blockedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	skipStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	markerWarning   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Render("!")
	markerQualified = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true).Render("!!")
	boxStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444"))
)

// View renders the current UI.
func (a *App) View() string {
	if a.quitting {
		return statusStyle.Render(statusLine(a.state)) + "\n"
	}
	var sections []string
	sections = append(sections, a.renderHeader())
	if tabs := a.renderTabs(); tabs != "" {
		sections = append(sections, tabs)
	}
	if a.confirm != nil {
		sections = append(sections, boxStyle.Render(a.confirm.View()))
	} else {
		sections = append(sections, boxStyle.Render(a.viewport.View()))
	}
	sections = append(sections, a.renderStatus())
	sections = append(sections, a.help.View(a.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderHeader() string {
	label := strings.TrimSpace(a.state.Plan.Settings.Label)
	if label == "" {
		label = "Installation Settings"
	}
	if a.showHelp {
		label += " - Help"
	}
	return titleStyle.Render(label)
}

func (a *App) renderTabs() string {
	tabs := a.state.Plan.Tabs
	if len(tabs) == 0 {
		return ""
	}
	parts := make([]string, len(tabs))
	for idx, tab := range tabs {
		text := tab.Label
		if marker := tabMarker(a.state.Decision.Tabs, idx); marker != "" {
			text += " " + marker
		}
		if idx == a.state.CurrentTab {
			parts[idx] = tabActiveStyle.Render(text)
			continue
		}
		parts[idx] = tabStyle.Render(text)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func tabMarker(tabs []arbiter.TabSeverity, idx int) string {
	for _, tab := range tabs {
		if tab.Index != idx {
			continue
		}
		switch {
		case tab.Worst.Qualifying():
			return markerQualified
		case tab.Worst >= module.LevelWarning:
			return markerWarning
		}
	}
	return ""
}

func (a *App) renderStatus() string {
	var lines []string
	switch {
	case a.running:
		text := a.busy
		if text == "" {
			text = "Working..."
		}
		lines = append(lines, a.spinner.View()+" "+statusStyle.Render(text))
	case a.err != nil:
		lines = append(lines, errorStyle.Render(a.err.Error()))
	case a.notice != "":
		lines = append(lines, noticeStyle.Render(a.notice))
	default:
		lines = append(lines, statusStyle.Render(statusLine(a.state)))
	}
	if a.state.Decision.Blocked {
		lines = append(lines, blockedStyle.Render("Resolve the highlighted problems before installing."))
	}
	if a.state.Plan.Settings.EnableSkip && a.state.SkipRequested {
		lines = append(lines, skipStyle.Render(fmt.Sprintf("Screen skip requested (press %s to undo).", a.keys.Skip.Help().Key)))
	}
	return strings.Join(lines, "\n")
}
