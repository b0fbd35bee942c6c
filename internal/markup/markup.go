// Package markup turns the rich-text subset produced by the aggregator
// (h3, p, ul/li, a, b, i, font color, br) into terminal text.
package markup

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"
)

// Link is an activatable anchor found in the markup, in document order.
type Link struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Theme styles each markup construct.
type Theme struct {
	Heading   lipgloss.Style
	Link      lipgloss.Style
	Selected  lipgloss.Style
	Emphasis  lipgloss.Style
	Attention lipgloss.Style
	Strong    lipgloss.Style
	Bullet    string
}

// DefaultTheme matches the overview palette.
func DefaultTheme() Theme {
	return Theme{
		Heading:   lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
		Link:      lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Underline(true),
		Selected:  lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#F7B801")),
		Emphasis:  lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0")).Italic(true),
		Attention: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		Strong:    lipgloss.NewStyle().Bold(true),
		Bullet:    "• ",
	}
}

// PlainTheme renders without any styling, for logs and headless output.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{Heading: plain, Link: plain, Selected: plain, Emphasis: plain, Attention: plain, Strong: plain, Bullet: "* "}
}

// Options tune a single render.
type Options struct {
	// Width wraps the output when > 0.
	Width int
	// Selected highlights the link with this id.
	Selected string
}

// Render renders markup with the theme.
func (t Theme) Render(markup string, opts Options) string {
	r := renderer{theme: t, selected: opts.Selected}
	r.run(markup)
	out := strings.TrimRight(collapseBlankLines(r.out.String()), "\n")
	if opts.Width > 0 {
		out = lipgloss.NewStyle().Width(opts.Width).Render(out)
	}
	return out
}

// Render renders markup with DefaultTheme.
func Render(markup string, width int) string {
	return DefaultTheme().Render(markup, Options{Width: width})
}

// Plain renders markup as unstyled text.
func Plain(markup string) string {
	return PlainTheme().Render(markup, Options{})
}

// Links lists the anchors of markup in document order.
func Links(markup string) []Link {
	var links []Link
	z := html.NewTokenizer(strings.NewReader(markup))
	var current *Link
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links
		case html.StartTagToken:
			tok := z.Token()
			if tok.Data == "a" {
				current = &Link{ID: attr(tok, "href")}
			}
		case html.TextToken:
			if current != nil {
				current.Text += string(z.Text())
			}
		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == "a" && current != nil {
				if current.ID != "" {
					links = append(links, *current)
				}
				current = nil
			}
		}
	}
}

type renderer struct {
	theme    Theme
	selected string
	out      strings.Builder

	heading  int
	bold     int
	italic   int
	red      int
	fonts    []bool
	link     string
	inLink   bool
	lineOpen bool
}

func (r *renderer) run(markup string) {
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.TextToken:
			r.text(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			r.open(z.Token())
		case html.EndTagToken:
			r.close(z.Token())
		}
	}
}

func (r *renderer) open(tok html.Token) {
	switch tok.Data {
	case "h1", "h2", "h3", "h4":
		r.block()
		r.heading++
	case "p", "ul", "ol":
		r.block()
	case "li":
		r.newline()
		r.out.WriteString(r.theme.Bullet)
		r.lineOpen = true
	case "br":
		r.newline()
	case "b", "strong":
		r.bold++
	case "i", "em":
		r.italic++
	case "font":
		red := strings.EqualFold(attr(tok, "color"), "red")
		r.fonts = append(r.fonts, red)
		if red {
			r.red++
		}
	case "a":
		r.inLink = true
		r.link = attr(tok, "href")
	}
}

func (r *renderer) close(tok html.Token) {
	switch tok.Data {
	case "h1", "h2", "h3", "h4":
		if r.heading > 0 {
			r.heading--
		}
		r.newline()
	case "p", "ul", "ol":
		r.newline()
	case "b", "strong":
		if r.bold > 0 {
			r.bold--
		}
	case "i", "em":
		if r.italic > 0 {
			r.italic--
		}
	case "font":
		if n := len(r.fonts); n > 0 {
			if r.fonts[n-1] && r.red > 0 {
				r.red--
			}
			r.fonts = r.fonts[:n-1]
		}
	case "a":
		r.inLink = false
		r.link = ""
	}
}

func (r *renderer) text(raw string) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return
	}
	if strings.HasPrefix(raw, " ") && r.lineOpen {
		text = " " + text
	}
	if strings.HasSuffix(raw, " ") {
		text += " "
	}
	r.out.WriteString(r.style().Render(text))
	r.lineOpen = true
}

func (r *renderer) style() lipgloss.Style {
	style := lipgloss.NewStyle()
	switch {
	case r.inLink && r.link != "" && r.link == r.selected:
		style = r.theme.Selected
	case r.inLink:
		style = r.theme.Link
	case r.heading > 0:
		style = r.theme.Heading
	case r.red > 0:
		style = r.theme.Attention
	case r.italic > 0:
		style = r.theme.Emphasis
	}
	if r.bold > 0 {
		style = style.Inherit(r.theme.Strong)
	}
	return style
}

func (r *renderer) newline() {
	if r.lineOpen {
		r.out.WriteString("\n")
		r.lineOpen = false
	}
}

// block starts a new paragraph separated by a blank line.
func (r *renderer) block() {
	r.newline()
	if r.out.Len() > 0 {
		r.out.WriteString("\n")
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimLeft(s, "\n")
}
