// Package backup keeps copies of files before ck overwrites or removes them.
//
// Backups are grouped by provider. Each run opens at most one session per
// group, a directory named after its creation time:
//
//	<DataHome>/claudekit/backups/
//	└── {group}/
//	    └── {20260123T100712-1a2b3c4d}/
//	        ├── manifest.json
//	        └── {copied files...}
//
// The manifest records the original path, mode and SHA-256 of every file so
// [Manager.Restore] can verify integrity before copying back. Old sessions
// beyond the retention count are pruned when a new session starts.
//
// [Stash] is the two-phase backup-then-remove primitive used by cleanup. It
// can be re-run after an interruption at any point without re-copying or
// clobbering an earlier backup.
package backup
