// Package cmd holds build metadata for the ck binary.
package cmd

// Set with -ldflags "-X github.com/mrgoonie/claudekit-cli-sub009/cmd.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
