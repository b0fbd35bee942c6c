package aggregate

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/kingrea/overview/internal/module"
)

// NoProposal is the fallback body for modules that rendered nothing.
const NoProposal = "No proposal."

// SkipNotice is prepended while the user skips the screen.
const SkipNotice = "The settings on this screen will not be applied."

func heading(b Block) string {
	title := html.EscapeString(b.Title)
	if b.Locked {
		title += " (locked)"
	}
	if b.Linked && !b.Locked {
		return `<h3><a href="` + html.EscapeString(b.ModuleID) + `">` + title + `</a></h3>`
	}
	return "<h3>" + title + "</h3>"
}

func body(prop module.Proposal) string {
	if strings.TrimSpace(prop.Preformatted) != "" {
		return prop.Preformatted
	}
	lines := prop.Raw
	if len(lines) == 0 {
		lines = []string{NoProposal}
	}
	var sb strings.Builder
	sb.WriteString("<ul>")
	for _, line := range lines {
		sb.WriteString("<li>")
		sb.WriteString(html.EscapeString(line))
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul>")
	return sb.String()
}

// styleWarning applies severity styling to a warning text.
func styleWarning(level module.WarningLevel, text string) string {
	escaped := html.EscapeString(strings.TrimSpace(text))
	if escaped == "" {
		return ""
	}
	switch {
	case level.Blocking():
		return `<p><font color="red"><b>` + escaped + `</b></font></p>`
	case level == module.LevelWarning || level == module.LevelError:
		return `<p><font color="red">` + escaped + `</font></p>`
	case level == module.LevelNotice:
		return `<p><i>` + escaped + `</i></p>`
	default:
		return "<p>" + escaped + "</p>"
	}
}

func menuLinks(b Block) string {
	if len(b.MenuEntries) == 0 || b.Locked {
		return ""
	}
	var parts []string
	for _, entry := range b.MenuEntries {
		parts = append(parts, `<a href="`+html.EscapeString(entry.ID)+`">`+html.EscapeString(entry.Title)+`</a>`)
	}
	return "<p>" + strings.Join(parts, " | ") + "</p>"
}
