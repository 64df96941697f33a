// Package main is the entry point for the ck CLI.
package main

import (
	"fmt"
	"os"

	"github.com/mrgoonie/claudekit-cli-sub009/cmd/ck/commands"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exitErr *errors.ExitError
		if errors.As(err, &exitErr) && exitErr.Suggestion != "" {
			fmt.Fprintln(os.Stderr, exitErr.Suggestion)
		}
		os.Exit(errors.ExitCode(err))
	}
}
