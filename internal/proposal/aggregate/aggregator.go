// Package aggregate computes module proposals in execution order and merges
// the last known results into one document in presentation order.
package aggregate

import (
	"strings"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/dispatch"
)

// Block is one module's rendered section of the document.
type Block struct {
	ModuleID    string              `json:"module_id"`
	Title       string              `json:"title"`
	Linked      bool                `json:"linked"`
	Locked      bool                `json:"locked,omitempty"`
	MenuEntries []module.MenuEntry  `json:"menu_entries,omitempty"`
	Level       module.WarningLevel `json:"level"`
	Warning     string              `json:"warning,omitempty"`
	Failed      bool                `json:"failed,omitempty"`
	Markup      string              `json:"markup"`
}

// LinkConflict records a hyperlink id registered by two modules. Second wins.
type LinkConflict struct {
	ID     string `json:"id"`
	First  string `json:"first"`
	Second string `json:"second"`
}

// Document is the aggregated proposal. It is a pure function of the plan,
// the visible tab, the skip flag and the last known results.
type Document struct {
	Tab         int                 `json:"tab"`
	Markup      string              `json:"markup"`
	Blocks      []Block             `json:"blocks"`
	HaveBlocker bool                `json:"have_blocker"`
	Worst       module.WarningLevel `json:"worst"`
	Links       map[string]string   `json:"links"`
	Conflicts   []LinkConflict      `json:"conflicts,omitempty"`
	Skipped     bool                `json:"skipped,omitempty"`
}

// Resolve maps a hyperlink id to the owning module id.
func (d Document) Resolve(link string) (string, bool) {
	id, ok := d.Links[link]
	return id, ok
}

// Input is everything Build depends on.
type Input struct {
	Plan    proposal.Plan
	Tab     int
	Results map[string]proposal.Result
	Skip    bool
}

// Build renders the document for the visible modules.
func Build(in Input) Document {
	doc := Document{Tab: in.Tab, Links: map[string]string{}, Skipped: in.Skip}
	visible := in.Plan.Visible(in.Tab)
	visibleSet := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		visibleSet[id] = struct{}{}
	}

	var sb strings.Builder
	if in.Skip {
		sb.WriteString("<p><i>" + SkipNotice + "</i></p>")
	}
	for _, id := range visible {
		entry, ok := in.Plan.Lookup(id)
		if !ok {
			continue
		}
		res := in.Results[id]
		block := Block{
			ModuleID:    id,
			Title:       entry.Title,
			Linked:      entry.Linked,
			Locked:      entry.Locked,
			MenuEntries: entry.MenuEntries,
			Level:       res.Proposal.WarningLevel,
			Warning:     res.Proposal.Warning,
			Failed:      res.Failure != nil,
		}
		block.Markup = heading(block) +
			styleWarning(block.Level, block.Warning) +
			body(res.Proposal) +
			menuLinks(block)
		sb.WriteString(block.Markup)
		doc.Blocks = append(doc.Blocks, block)
		doc.Worst = doc.Worst.Worse(block.Level)
		if block.Level.Blocking() {
			doc.HaveBlocker = true
		}
	}
	doc.Markup = sb.String()

	// Links are indexed in execution order so a later module wins a clash.
	for _, entry := range in.Plan.Modules {
		if _, ok := visibleSet[entry.ID]; !ok {
			continue
		}
		ids := []string{}
		if entry.Linked {
			ids = append(ids, entry.ID)
		}
		for _, menu := range entry.MenuEntries {
			ids = append(ids, menu.ID)
		}
		ids = append(ids, in.Results[entry.ID].Proposal.Links...)
		for _, link := range ids {
			if link == "" {
				continue
			}
			if prev, exists := doc.Links[link]; exists && prev != entry.ID {
				doc.Conflicts = append(doc.Conflicts, LinkConflict{ID: link, First: prev, Second: entry.ID})
			}
			doc.Links[link] = entry.ID
		}
	}
	return doc
}

// PassRequest selects how modules are asked to propose.
type PassRequest struct {
	ForceReset      bool
	LanguageChanged bool
	// Continue keeps the pass going after a language or mode change.
	Continue bool
}

// PassResult holds the results computed by one pass.
type PassResult struct {
	Results  map[string]proposal.Result
	Computed []string
	// LanguageChanged is set when a module changed the language; the pass
	// stopped right after that module.
	LanguageChanged bool
	// ModeChanged is set when a module switched the operating mode; the pass
	// stopped right after that module so the plan can be re-resolved.
	ModeChanged bool
	ChangedBy   string
}

// Aggregator runs proposal passes through a dispatcher.
type Aggregator struct {
	dispatcher *dispatch.Dispatcher
}

// New returns an aggregator.
func New(d *dispatch.Dispatcher) *Aggregator {
	return &Aggregator{dispatcher: d}
}

// Pass asks every module for a proposal in execution order. before is called
// ahead of each module so the caller can show busy text.
func (a *Aggregator) Pass(ctx *module.Context, plan proposal.Plan, req PassRequest, before func(proposal.Entry)) PassResult {
	out := PassResult{Results: make(map[string]proposal.Result, len(plan.Modules))}
	for _, entry := range plan.Modules {
		if before != nil {
			before(entry)
		}
		res := a.dispatcher.Propose(ctx, entry.ID, entry.Module, module.ProposalRequest{
			ForceReset:      req.ForceReset,
			LanguageChanged: req.LanguageChanged,
		})
		out.Results[entry.ID] = res
		out.Computed = append(out.Computed, entry.ID)
		if res.Proposal.LanguageChanged || res.Proposal.ModeChanged {
			out.LanguageChanged = out.LanguageChanged || res.Proposal.LanguageChanged
			out.ModeChanged = out.ModeChanged || res.Proposal.ModeChanged
			out.ChangedBy = entry.ID
			if !req.Continue {
				return out
			}
		}
	}
	return out
}
