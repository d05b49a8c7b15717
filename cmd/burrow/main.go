// burrow is the command-line interface for the burrow event sourcing engine.
//
// Usage:
//
//	burrow <command> [flags]
//
// Commands:
//
//	init        Create a burrow.yaml configuration file
//	migrate     Manage the event store schema
//	demo        Run the issue-tracker demo
//	diagnose    Run diagnostic checks on your setup
//	version     Show version information
//
// Examples:
//
//	# Create a configuration file
//	burrow init --name my-app --module github.com/me/my-app
//
//	# Create the event store schema
//	burrow migrate up
//
//	# Run the demo scenario with tracing
//	burrow demo --trace
//
//	# Run diagnostics
//	burrow diagnose
package main

import (
	"os"

	"github.com/burrowkit/burrow/cli/commands"

	// Register PostgreSQL driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Build information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Set version info
	commands.Version = version
	commands.Commit = commit
	commands.BuildDate = buildDate

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
