package arbiter

import (
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
)

// Refresh is how much of the session a user action invalidates.
type Refresh int

const (
	// RefreshNone re-renders the last known results only.
	RefreshNone Refresh = iota
	// RefreshPass runs MakeProposal on every module without a reset.
	RefreshPass
	// RefreshReset runs MakeProposal with ForceReset on every module.
	RefreshReset
	// RefreshResolve re-resolves the plan before a full pass. The module set
	// may differ afterwards.
	RefreshResolve
)

func (r Refresh) String() string {
	switch r {
	case RefreshPass:
		return "pass"
	case RefreshReset:
		return "reset"
	case RefreshResolve:
		return "resolve"
	default:
		return "none"
	}
}

// AfterAsk maps an AskUser answer onto the work it requires.
func AfterAsk(res module.AskResult) Refresh {
	switch {
	case res.GlobalChange():
		return RefreshResolve
	case res.LanguageChanged:
		return RefreshPass
	case res.Sequence.Recompute():
		return RefreshPass
	default:
		return RefreshNone
	}
}

// ForAction maps display actions that never reach a module.
func ForAction(a proposal.Action) Refresh {
	switch a.(type) {
	case proposal.Reset:
		return RefreshReset
	default:
		return RefreshNone
	}
}
