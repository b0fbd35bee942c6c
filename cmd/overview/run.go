package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kingrea/overview/internal/bridge"
	"github.com/kingrea/overview/internal/markup"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/session"
)

type runOptions struct {
	tab      int
	activate []string
	skip     bool
	export   bool
	write    bool
	asJSON   bool
}

func newRunCommand(opts *cliOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the proposal without a display and optionally write it",
		Long: `run starts a session, applies the requested actions in order
(tab, links, skip, export, write) and prints the resulting proposal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			sess, err := env.startSession()
			if err != nil {
				return err
			}
			runErr := applyRunActions(sess, ro)
			if err := printState(cmd.OutOrStdout(), sess, ro.asJSON); err != nil {
				return err
			}
			return runErr
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&ro.tab, "tab", proposal.NoTab, "select this tab before anything else")
	flags.StringSliceVar(&ro.activate, "activate", nil, "activate a link or menu entry (repeatable)")
	flags.BoolVar(&ro.skip, "skip", false, "request skipping the screen")
	flags.BoolVar(&ro.export, "export", false, "export the module settings")
	flags.BoolVarP(&ro.write, "write", "w", false, "proceed and write the settings")
	flags.BoolVar(&ro.asJSON, "json", false, "print the session view as JSON")
	return cmd
}

// actionHandler is the part of the session run drives.
type actionHandler interface {
	Handle(action proposal.Action) error
}

func applyRunActions(d actionHandler, ro *runOptions) error {
	var actions []proposal.Action
	if ro.tab != proposal.NoTab {
		actions = append(actions, proposal.SelectTab{Index: ro.tab})
	}
	for _, link := range ro.activate {
		actions = append(actions, proposal.ActivateLink{ID: link})
	}
	if ro.skip {
		actions = append(actions, proposal.ToggleSkip{})
	}
	if ro.export {
		actions = append(actions, proposal.Export{})
	}
	if ro.write {
		actions = append(actions, proposal.Proceed{})
	}
	for _, action := range actions {
		if err := d.Handle(action); err != nil {
			return fmt.Errorf("%s: %w", proposal.ActionName(action), err)
		}
	}
	return nil
}

func printState(w io.Writer, sess *session.Session, asJSON bool) error {
	st := sess.State()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(bridge.NewView(st, sess.Help()))
	}
	if label := st.Plan.Settings.Label; label != "" {
		fmt.Fprintf(w, "%s\n\n", label)
	}
	if st.Plan.HasTabs() && st.Plan.ValidTab(st.CurrentTab) && st.CurrentTab != proposal.NoTab {
		fmt.Fprintf(w, "[%s]\n\n", st.Plan.Tabs[st.CurrentTab].Label)
	}
	fmt.Fprintln(w, markup.Plain(st.Document.Markup))
	fmt.Fprintln(w)
	for _, entry := range st.Plan.Modules {
		res, ok := st.Results[entry.ID]
		if !ok || res.Proposal.Warning == "" {
			continue
		}
		fmt.Fprintf(w, "%-8s %s: %s\n", res.Level(), entry.ID, res.Proposal.Warning)
	}
	if st.Decision.Blocked {
		fmt.Fprintln(w, "blocked: resolve the problems above before writing")
	}
	if st.ExportPath != "" {
		fmt.Fprintf(w, "exported to %s\n", st.ExportPath)
	}
	if st.Notice != "" {
		fmt.Fprintln(w, st.Notice)
	}
	fmt.Fprintf(w, "session %s: %s\n", st.ID, st.Status)
	return nil
}
