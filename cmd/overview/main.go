// cmd/overview/main.go
//
// This is the entry point for the installation overview.
// Running `overview` from a project directory shows the interactive
// proposal screen; the subcommands drive the same session headless, over
// HTTP, or one module at a time.
//
// Flow:
// 1. Make sure the .overview folder exists and load its config
// 2. Register the built-in and plugin modules
// 3. Resolve the proposal screen from the control file and start a session
// 4. Hand the session to a display (TUI, stdout or the HTTP bridge)

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
