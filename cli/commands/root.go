// Package commands provides the CLI command implementations for burrow.
package commands

import (
	"fmt"

	"github.com/burrowkit/burrow/cli/styles"
	"github.com/burrowkit/burrow/cli/ui"
	"github.com/spf13/cobra"
)

// Build metadata, overridden via ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// NewRootCommand assembles the burrow CLI command tree.
func NewRootCommand() *cobra.Command {
	var noColor bool

	root := &cobra.Command{
		Use:   "burrow",
		Short: "Event-sourced aggregate engine for Go",
		Long: ui.SimpleBanner() + `

Burrow is an event-sourced aggregate engine for Go applications.
It persists aggregate history as ordered event streams and rebuilds
state by replay.

` + styles.Title.Render("Quick Start:") + `

  ` + styles.Code.Render("burrow init") + `         Create a configuration file
  ` + styles.Code.Render("burrow migrate up") + `   Create the event store schema
  ` + styles.Code.Render("burrow demo") + `         Run the issue-tracker demo
  ` + styles.Code.Render("burrow diagnose") + `     Check your setup

` + styles.Title.Render("Documentation:") + `

  https://github.com/burrowkit/burrow`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if noColor {
				styles.DisableColors()
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		NewInitCommand(),
		NewMigrateCommand(),
		NewDiagnoseCommand(),
		NewDemoCommand(),
		NewVersionCommand(Version, Commit, BuildDate),
	)
	return root
}

// Execute runs the CLI and prints any terminal error through the shared styles.
func Execute() error {
	err := NewRootCommand().Execute()
	if err != nil {
		fmt.Println(styles.FormatError(err.Error()))
	}
	return err
}
