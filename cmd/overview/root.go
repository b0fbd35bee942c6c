package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kingrea/overview/internal/config"
	"github.com/kingrea/overview/internal/proposal/session"
	"github.com/kingrea/overview/internal/tui"
)

// cliOptions are shared by every subcommand.
type cliOptions struct {
	projectDir string
	v          *viper.Viper
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{v: config.NewViper()}
	root := &cobra.Command{
		Use:   "overview",
		Short: "Show and apply the proposed installation settings",
		Long: `overview collects the proposals of every installation module, shows
them on one screen and writes the accepted settings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.projectDir, "project", "p", "", "project directory holding .overview (defaults to cwd)")
	flags.String("stage", "", "installation stage (overrides config)")
	flags.String("mode", "", "installation mode (overrides config)")
	flags.String("kind", "", "proposal kind (overrides config)")
	flags.String("language", "", "installer language (overrides config)")
	for _, name := range []string{"stage", "mode", "kind", "language"} {
		if err := opts.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	root.AddCommand(
		newInitCommand(opts),
		newRunCommand(opts),
		newServeCommand(opts),
		newModuleCommand(opts),
	)
	return root
}

// runTUI shows the interactive overview until the session ends.
func runTUI(opts *cliOptions) error {
	env, err := loadEnvironment(opts)
	if err != nil {
		return err
	}
	var app *tui.App
	busy := func(text string) {
		if app != nil {
			app.BusyFunc()(text)
		}
	}
	sess, err := env.startSession(session.WithBusy(busy))
	if err != nil {
		return err
	}
	app = tui.NewApp(sess, tui.WithLogbook(env.logbook))

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	st := sess.State()
	fmt.Printf("Session %s: %s\n", st.ID, st.Status)
	if st.Notice != "" {
		fmt.Println(st.Notice)
	}
	if st.Status == session.StatusFailed {
		return fmt.Errorf("writing the settings failed")
	}
	return nil
}

func newInitCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .overview directory with default config and control files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := resolveProjectDir(opts.projectDir)
			if err != nil {
				return err
			}
			if err := config.InitDir(project); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", project)
			return nil
		},
	}
}
