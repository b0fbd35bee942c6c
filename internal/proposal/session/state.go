package session

import (
	"github.com/kingrea/overview/internal/control"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/aggregate"
	"github.com/kingrea/overview/internal/proposal/arbiter"
)

// Status enumerates coarse session phases.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusIdle         Status = "idle"
	StatusWriting      Status = "writing"
	StatusFinished     Status = "finished"
	StatusAborted      Status = "aborted"
	StatusBack         Status = "back"
	StatusFailed       Status = "failed"
)

// Terminal reports whether the session accepts no further actions.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusAborted, StatusBack, StatusFailed:
		return true
	default:
		return false
	}
}

// State is owned by the Session. Snapshots handed out by Session.State are
// deep enough copies that callers cannot mutate the session through them.
type State struct {
	ID            string          `json:"id"`
	Key           control.Key     `json:"key"`
	Language      string          `json:"language,omitempty"`
	Status        Status          `json:"status"`
	Plan          proposal.Plan   `json:"plan"`
	CurrentTab    int             `json:"current_tab"`
	SkipRequested bool            `json:"skip_requested"`
	// AlreadyComputed only selects the busy text.
	AlreadyComputed map[string]bool            `json:"already_computed,omitempty"`
	Locked          []string                   `json:"locked,omitempty"`
	Results         map[string]proposal.Result `json:"results"`
	Document        aggregate.Document         `json:"document"`
	Decision        arbiter.Decision           `json:"decision"`
	// Notice is the last message shown to the user (write summary, refusal).
	Notice     string `json:"notice,omitempty"`
	ExportPath string `json:"export_path,omitempty"`
}

func (st State) clone() State {
	out := st
	out.AlreadyComputed = make(map[string]bool, len(st.AlreadyComputed))
	for id, v := range st.AlreadyComputed {
		out.AlreadyComputed[id] = v
	}
	out.Results = make(map[string]proposal.Result, len(st.Results))
	for id, res := range st.Results {
		out.Results[id] = res
	}
	out.Locked = append([]string(nil), st.Locked...)
	out.Plan.Modules = append([]proposal.Entry(nil), st.Plan.Modules...)
	out.Plan.Tabs = append([]proposal.Tab(nil), st.Plan.Tabs...)
	out.Plan.Default = append([]string(nil), st.Plan.Default...)
	out.Document.Blocks = append([]aggregate.Block(nil), st.Document.Blocks...)
	out.Document.Conflicts = append([]aggregate.LinkConflict(nil), st.Document.Conflicts...)
	out.Document.Links = make(map[string]string, len(st.Document.Links))
	for link, id := range st.Document.Links {
		out.Document.Links[link] = id
	}
	out.Decision.Tabs = append([]arbiter.TabSeverity(nil), st.Decision.Tabs...)
	return out
}

func lockedIDs(plan proposal.Plan) []string {
	var out []string
	for _, entry := range plan.Modules {
		if entry.Locked {
			out = append(out, entry.ID)
		}
	}
	return out
}
