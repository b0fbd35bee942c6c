// Package arbiter decides whether the overview may proceed, which tab should
// be displayed after a proposal pass, and how much work a user action
// invalidates. It holds no state: every decision is a function of its input.
package arbiter

import (
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
)

// TabSeverity is the worst level seen among a tab's modules.
type TabSeverity struct {
	Index int                 `json:"index"`
	Label string              `json:"label"`
	Worst module.WarningLevel `json:"worst"`
}

// Input captures everything a decision depends on.
type Input struct {
	Plan    proposal.Plan
	Current int
	Results map[string]proposal.Result
	Skip    bool
	// AllowSwitch is set after a recompute pass. Manual tab selections never
	// trigger an automatic switch.
	AllowSwitch bool
}

// Decision is the arbitration outcome for one pass.
type Decision struct {
	Tab      int                 `json:"tab"`
	Switched bool                `json:"switched,omitempty"`
	From     int                 `json:"from"`
	Worst    module.WarningLevel `json:"worst"`
	WorstTab int                 `json:"worst_tab"`
	Tabs     []TabSeverity       `json:"tabs,omitempty"`
	// HaveBlocker is true when a module on the decided tab is blocking.
	HaveBlocker bool `json:"have_blocker"`
	// Blocked is HaveBlocker unless the user chose to skip the screen.
	Blocked bool `json:"blocked"`
}

// Decide computes the displayed tab and the blocking state.
func Decide(in Input) Decision {
	current := in.Current
	if !in.Plan.ValidTab(current) {
		current = in.Plan.InitialTab()
	}
	dec := Decision{Tab: current, From: current, WorstTab: proposal.NoTab}

	for _, entry := range in.Plan.Modules {
		level := in.Results[entry.ID].Level()
		dec.Worst = dec.Worst.Worse(level)
	}

	if in.Plan.HasTabs() {
		dec.Tabs = make([]TabSeverity, len(in.Plan.Tabs))
		for idx, tab := range in.Plan.Tabs {
			dec.Tabs[idx] = TabSeverity{Index: idx, Label: tab.Label, Worst: worstOf(tab.Modules, in.Results)}
		}
		dec.WorstTab = pickTarget(dec.Tabs)
		if in.AllowSwitch && current != proposal.NoTab && !dec.Tabs[current].Worst.Qualifying() && dec.WorstTab != proposal.NoTab {
			dec.Tab = dec.WorstTab
			dec.Switched = dec.Tab != current
		}
	}

	dec.HaveBlocker = worstOf(in.Plan.Visible(dec.Tab), in.Results).Blocking()
	dec.Blocked = dec.HaveBlocker && !in.Skip
	return dec
}

// MayProceed returns ErrBlocked while the decision refuses the proceed action.
func (d Decision) MayProceed() error {
	if d.Blocked {
		return proposal.ErrBlocked
	}
	return nil
}

// pickTarget returns the tab with the worst qualifying level. Ties keep the
// lowest index. NoTab when nothing qualifies.
func pickTarget(tabs []TabSeverity) int {
	target := proposal.NoTab
	var worst module.WarningLevel
	for _, tab := range tabs {
		if !tab.Worst.Qualifying() {
			continue
		}
		if target == proposal.NoTab || tab.Worst > worst {
			target = tab.Index
			worst = tab.Worst
		}
	}
	return target
}

func worstOf(ids []string, results map[string]proposal.Result) module.WarningLevel {
	worst := module.LevelNone
	for _, id := range ids {
		worst = worst.Worse(results[id].Level())
	}
	return worst
}
