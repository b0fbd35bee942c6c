package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/overview/internal/bridge"
	"github.com/kingrea/overview/internal/proposal/session"
)

func newServeCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the overview session over HTTP for a remote display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			sess, err := env.startSession()
			if err != nil {
				return err
			}
			server := bridge.NewServer(bridge.SettingsFromConfig(env.cfg), sess, bridge.WithLogbook(env.logbook))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := server.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving session %s on %s\n", sess.ID(), server.BaseURL())

			sub := server.Hub().Subscribe()
			defer sub.Close()
			waitForSession(ctx, sub.Updates)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown bridge: %w", err)
			}
			st := sess.State()
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %s\n", st.ID, st.Status)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("host", "", "bridge listen host (overrides config)")
	flags.Int("port", 0, "bridge listen port (overrides config)")
	if err := opts.v.BindPFlag("bridge.host", flags.Lookup("host")); err != nil {
		panic(fmt.Sprintf("bind flag host: %v", err))
	}
	if err := opts.v.BindPFlag("bridge.port", flags.Lookup("port")); err != nil {
		panic(fmt.Sprintf("bind flag port: %v", err))
	}
	return cmd
}

// waitForSession blocks until ctx ends or an update reports a terminal
// session status.
func waitForSession(ctx context.Context, updates <-chan bridge.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if session.Status(update.Status).Terminal() {
				return
			}
		}
	}
}
