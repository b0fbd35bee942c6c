package module

import (
	"fmt"
	"strings"
)

// MenuEntry is one labeled entry point into a module. Its ID is activatable
// like any hyperlink the module renders.
type MenuEntry struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Description is the static identity a module reports once per plan
// resolution. A zero Description means the module is not available.
type Description struct {
	// ID overrides the identifier the module was registered under.
	ID string
	// Title is rendered as an activatable heading.
	Title string
	// RawTitle is rendered verbatim without a link. Used only when Title is empty.
	RawTitle    string
	MenuTitle   string
	MenuEntries []MenuEntry
	Help        string
}

// Empty reports whether the module declined to describe itself.
func (d Description) Empty() bool {
	return strings.TrimSpace(d.Title) == "" &&
		strings.TrimSpace(d.RawTitle) == "" &&
		strings.TrimSpace(d.MenuTitle) == "" &&
		len(d.MenuEntries) == 0
}

// Heading returns the best available title for the module.
func (d Description) Heading() string {
	if title := strings.TrimSpace(d.Title); title != "" {
		return title
	}
	if title := strings.TrimSpace(d.RawTitle); title != "" {
		return title
	}
	return strings.TrimSpace(d.MenuTitle)
}

// Linked reports whether the heading should be activatable.
func (d Description) Linked() bool {
	return strings.TrimSpace(d.Title) != ""
}

// ProposalRequest carries the MakeProposal arguments.
type ProposalRequest struct {
	// ForceReset discards cached module state and recomputes defaults.
	ForceReset      bool
	LanguageChanged bool
}

// Proposal is the result of MakeProposal. Preformatted and Raw are mutually
// exclusive; Preformatted wins when both are set.
type Proposal struct {
	Preformatted    string
	Raw             []string
	Warning         string
	WarningLevel    WarningLevel
	Links           []string
	LanguageChanged bool
	ModeChanged     bool
	Help            string
}

// Validate enforces that blocking levels carry a warning text.
func (p Proposal) Validate() error {
	if p.WarningLevel.Blocking() && strings.TrimSpace(p.Warning) == "" {
		return fmt.Errorf("module: %s proposal requires warning text", p.WarningLevel)
	}
	return nil
}

// Empty reports whether the proposal rendered nothing.
func (p Proposal) Empty() bool {
	return strings.TrimSpace(p.Preformatted) == "" && len(p.Raw) == 0
}

// AskRequest describes why AskUser was invoked.
type AskRequest struct {
	// ChosenID is the hyperlink or menu entry that triggered the call. Empty
	// when the user activated the module heading.
	ChosenID string
	Metadata map[string]string
}

// AskResult reports how the user left the module's own dialog.
type AskResult struct {
	Sequence        Sequence
	LanguageChanged bool
	ModeChanged     bool
	RootPartChanged bool
}

// GlobalChange reports whether the session must re-resolve its module set.
func (r AskResult) GlobalChange() bool {
	return r.ModeChanged || r.RootPartChanged
}

// WriteResult reports whether Write committed the module settings. The zero
// value means success.
type WriteResult struct {
	Failed  bool
	Message string
}

// Module is implemented by every configuration facet shown on the overview.
type Module interface {
	Description(ctx *Context) (Description, error)
	MakeProposal(ctx *Context, req ProposalRequest) (Proposal, error)
	AskUser(ctx *Context, req AskRequest) (AskResult, error)
}

// Writer is implemented by modules with settings to commit. Modules without
// it are treated as writing successfully.
type Writer interface {
	Write(ctx *Context) (WriteResult, error)
}

// Exporter is implemented by modules that can serialize their configuration.
type Exporter interface {
	Export(ctx *Context) (map[string]any, error)
}
