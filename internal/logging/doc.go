// Package logging provides structured logging for the ck CLI using slog.
//
// Text output goes through [Handler], a terminal-oriented handler that
// colorizes levels when the writer is a TTY, abbreviates content checksums
// and rewrites paths under the home directory as "~/...". JSON output uses the
// standard library handler unchanged so log files keep full values.
//
//	logger := logging.New(logging.Config{
//		Level:  slog.LevelInfo,
//		Format: logging.FormatText,
//	})
//	logger.Info("planned", "install", 3, "conflict", 1)
//
// Components receive their logger explicitly or pull it from the command
// context with [FromContext]. Tests use [ForTest].
package logging
