// Package proposal holds the types shared by the overview engine: resolved
// module descriptors, the execution/presentation plan, per-module results and
// the user actions a display surface can send.
package proposal

import (
	"github.com/kingrea/overview/internal/control"
	"github.com/kingrea/overview/internal/module"
)

// NoTab is the tab index used when the plan has no tabs or the default
// (non-tabbed) presentation is shown.
const NoTab = -1

// Descriptor is the static identity of one module for the lifetime of a plan.
type Descriptor struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Title       string             `json:"title"`
	Linked      bool               `json:"linked"`
	MenuEntries []module.MenuEntry `json:"menu_entries,omitempty"`
	Help        string             `json:"help,omitempty"`
	Locked      bool               `json:"locked,omitempty"`
	Priority    int                `json:"priority"`
	Tabs        []int              `json:"tabs,omitempty"`
	DisplayOnly bool               `json:"display_only,omitempty"`
}

// Entry pairs a descriptor with its callable module handle.
type Entry struct {
	Descriptor
	Module module.Module `json:"-"`
}

// Tab is a resolved tab: a label and its module ids in presentation order.
type Tab struct {
	Label   string   `json:"label"`
	Modules []string `json:"modules"`
}

// Plan is the resolved module set for one screen. It is immutable for the
// duration of a proposal pass.
type Plan struct {
	Key      control.Key      `json:"key"`
	Settings control.Settings `json:"settings"`
	// Modules are listed in execution order.
	Modules []Entry `json:"modules"`
	Tabs    []Tab   `json:"tabs,omitempty"`
	// Default is the presentation order used without tabs.
	Default []string `json:"default"`
}

// HasTabs reports whether the plan groups modules into tabs.
func (p Plan) HasTabs() bool {
	return len(p.Tabs) > 0
}

// InitialTab is the tab a new session starts on.
func (p Plan) InitialTab() int {
	if p.HasTabs() {
		return 0
	}
	return NoTab
}

// ValidTab reports whether idx can be selected.
func (p Plan) ValidTab(idx int) bool {
	if idx == NoTab {
		return true
	}
	return idx >= 0 && idx < len(p.Tabs)
}

// Visible returns the module ids shown on tab in presentation order.
func (p Plan) Visible(tab int) []string {
	if tab == NoTab || tab < 0 || tab >= len(p.Tabs) {
		return append([]string(nil), p.Default...)
	}
	return append([]string(nil), p.Tabs[tab].Modules...)
}

// Lookup returns the entry for a module id.
func (p Plan) Lookup(id string) (Entry, bool) {
	for _, entry := range p.Modules {
		if entry.ID == id {
			return entry, true
		}
	}
	return Entry{}, false
}

// IDs returns module ids in execution order.
func (p Plan) IDs() []string {
	ids := make([]string, len(p.Modules))
	for i, entry := range p.Modules {
		ids[i] = entry.ID
	}
	return ids
}

// Result is the last known outcome of MakeProposal for one module.
type Result struct {
	ModuleID string          `json:"module_id"`
	Proposal module.Proposal `json:"proposal"`
	// Failure is set when the dispatcher synthesized a fatal result.
	Failure error `json:"-"`
}

// Level returns the result's warning level.
func (r Result) Level() module.WarningLevel {
	return r.Proposal.WarningLevel
}
