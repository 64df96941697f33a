// Package paths resolves the filesystem locations ck works with.
//
// An installation scope is either a project directory or the user's home
// directory (global). Each scope root carries its own ledger under
// ".claudekit/". Tool-wide state such as configuration and backups lives in
// the XDG base directories reported by github.com/adrg/xdg:
//
//	Config: <ConfigHome>/claudekit/config.yaml
//	Backups: <DataHome>/claudekit/backups/
//
// Helpers in this package also expand "~" in configured paths and check that
// a resolved path stays inside its scope root.
package paths
