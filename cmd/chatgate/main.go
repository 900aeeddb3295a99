package main

import (
	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/adrianaguero/chatgate/internal/cmd"
	"github.com/adrianaguero/chatgate/internal/server/handlers"
)

// Set via ldflags, e.g. -X main.version=1.0.0 -X main.commit=abc123
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		cmd.ExitWithCodeStderr(foundry.ExitFailure, "Command execution failed", err)
	}
}
