package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/overview/internal/markup"
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/aggregate"
	"github.com/kingrea/overview/internal/proposal/session"
)

// ProtocolVersion identifies the bridge contract version exposed via /health.
const ProtocolVersion = "1.0.0"

// ActionRequest is the JSON body of POST /actions.
//
//	{"type": "tab", "index": 1}
//	{"type": "link", "id": "storage--filesystem"}
//	{"type": "abort", "confirmed": true}
type ActionRequest struct {
	Type      string `json:"type"`
	Index     *int   `json:"index,omitempty"`
	ID        string `json:"id,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

var errInvalidAction = errors.New("bridge: invalid action")

// Action converts the request into a proposal action.
func (r ActionRequest) Action() (proposal.Action, error) {
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "tab":
		if r.Index == nil {
			return nil, fmt.Errorf("%w: tab requires index", errInvalidAction)
		}
		return proposal.SelectTab{Index: *r.Index}, nil
	case "link":
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: link requires id", errInvalidAction)
		}
		return proposal.ActivateLink{ID: id}, nil
	case "proceed":
		return proposal.Proceed{}, nil
	case "back":
		return proposal.Back{}, nil
	case "abort":
		return proposal.Abort{Confirmed: r.Confirmed}, nil
	case "reset":
		return proposal.Reset{}, nil
	case "export":
		return proposal.Export{}, nil
	case "toggle_skip":
		return proposal.ToggleSkip{}, nil
	case "":
		return nil, fmt.Errorf("%w: type is required", errInvalidAction)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", errInvalidAction, r.Type)
	}
}

// TabView is one tab as shown to remote displays.
type TabView struct {
	Index int                 `json:"index"`
	Label string              `json:"label"`
	Worst module.WarningLevel `json:"worst"`
}

// View is the GET /proposal response.
type View struct {
	Session     string                   `json:"session"`
	Status      session.Status           `json:"status"`
	Label       string                   `json:"label,omitempty"`
	Language    string                   `json:"language,omitempty"`
	Tab         int                      `json:"tab"`
	Tabs        []TabView                `json:"tabs,omitempty"`
	Markup      string                   `json:"markup"`
	Text        string                   `json:"text"`
	Links       []markup.Link            `json:"links,omitempty"`
	Blocks      []aggregate.Block        `json:"blocks"`
	Conflicts   []aggregate.LinkConflict `json:"conflicts,omitempty"`
	HaveBlocker bool                     `json:"have_blocker"`
	Blocked     bool                     `json:"blocked"`
	SkipEnabled bool                     `json:"skip_enabled"`
	Skip        bool                     `json:"skip"`
	Locked      []string                 `json:"locked,omitempty"`
	Notice      string                   `json:"notice,omitempty"`
	ExportPath  string                   `json:"export_path,omitempty"`
	Help        string                   `json:"help,omitempty"`
}

// NewView renders a session snapshot for remote displays.
func NewView(st session.State, help string) View {
	view := View{
		Session:     st.ID,
		Status:      st.Status,
		Label:       st.Plan.Settings.Label,
		Language:    st.Language,
		Tab:         st.CurrentTab,
		Markup:      st.Document.Markup,
		Text:        markup.Plain(st.Document.Markup),
		Links:       markup.Links(st.Document.Markup),
		Blocks:      st.Document.Blocks,
		Conflicts:   st.Document.Conflicts,
		HaveBlocker: st.Document.HaveBlocker,
		Blocked:     st.Decision.Blocked,
		SkipEnabled: st.Plan.Settings.EnableSkip,
		Skip:        st.SkipRequested,
		Locked:      st.Locked,
		Notice:      st.Notice,
		ExportPath:  st.ExportPath,
		Help:        help,
	}
	for _, tab := range st.Decision.Tabs {
		view.Tabs = append(view.Tabs, TabView{Index: tab.Index, Label: tab.Label, Worst: tab.Worst})
	}
	return view
}
