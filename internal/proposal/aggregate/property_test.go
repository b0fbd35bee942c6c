package aggregate

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
)

func planFromLevels(levels []int) (proposal.Plan, map[string]proposal.Result) {
	plan := proposal.Plan{}
	results := map[string]proposal.Result{}
	for i, lvl := range levels {
		id := fmt.Sprintf("m%d", i)
		plan.Modules = append(plan.Modules, entry(id, id, 50-i, nil))
		plan.Default = append(plan.Default, id)
		level := module.WarningLevel(lvl)
		results[id] = proposal.Result{ModuleID: id, Proposal: module.Proposal{
			Raw:          []string{id},
			Warning:      "w" + id,
			WarningLevel: level,
			Links:        []string{id + "--link", "shared"},
		}}
	}
	return plan, results
}

// splitTabs spreads the plan's modules over two tabs, bit i of mask picking
// the tab of module i.
func splitTabs(plan *proposal.Plan, mask uint64) {
	plan.Tabs = []proposal.Tab{{Label: "first"}, {Label: "second"}}
	for i, id := range plan.Default {
		tab := int(mask>>(uint(i)%64)) & 1
		plan.Tabs[tab].Modules = append(plan.Tabs[tab].Modules, id)
	}
}

// Property: have_blocker is true iff a visible module is blocker or fatal.
func TestBlockingMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("have_blocker matches visible severities", prop.ForAll(
		func(levels []int, mask uint64, tab int) bool {
			plan, results := planFromLevels(levels)
			splitTabs(&plan, mask)
			doc := Build(Input{Plan: plan, Tab: tab, Results: results})
			want := false
			for i, lvl := range levels {
				visible := tab == proposal.NoTab || int(mask>>(uint(i)%64))&1 == tab
				if visible && module.WarningLevel(lvl).Blocking() {
					want = true
				}
			}
			return doc.HaveBlocker == want
		},
		gen.SliceOf(gen.IntRange(int(module.LevelNone), int(module.LevelFatal))),
		gen.UInt64(),
		gen.IntRange(proposal.NoTab, 1),
	))

	properties.TestingRun(t)
}

func TestBlockerOnHiddenTabIsIgnored(t *testing.T) {
	plan, results := planFromLevels([]int{int(module.LevelNone), int(module.LevelFatal)})
	splitTabs(&plan, 0b10)
	if doc := Build(Input{Plan: plan, Tab: 0, Results: results}); doc.HaveBlocker {
		t.Fatalf("fatal module sits on the second tab, first tab must not block")
	}
	if doc := Build(Input{Plan: plan, Tab: 1, Results: results}); !doc.HaveBlocker {
		t.Fatalf("second tab shows the fatal module and must block")
	}
	if doc := Build(Input{Plan: plan, Tab: proposal.NoTab, Results: results}); !doc.HaveBlocker {
		t.Fatalf("default presentation shows every module and must block")
	}
}

// Property: Build(x) == Build(x) byte for byte.
func TestBuildIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("aggregated markup is stable", prop.ForAll(
		func(levels []int, skip bool) bool {
			plan, results := planFromLevels(levels)
			first := Build(Input{Plan: plan, Tab: proposal.NoTab, Results: results, Skip: skip})
			second := Build(Input{Plan: plan, Tab: proposal.NoTab, Results: results, Skip: skip})
			if first.Markup != second.Markup || len(first.Conflicts) != len(second.Conflicts) {
				return false
			}
			for i := range first.Conflicts {
				if first.Conflicts[i] != second.Conflicts[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(int(module.LevelNone), int(module.LevelFatal))),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
