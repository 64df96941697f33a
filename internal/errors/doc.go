// Package errors provides error handling conventions for the ck CLI.
//
// It re-exports the wrapping helpers of github.com/cockroachdb/errors so the
// rest of the tree has a single import for error construction, defines the
// sentinel errors shared across packages, and carries the ExitError type that
// main translates into a process exit code.
//
// # Sentinel Errors
//
//	if errors.Is(err, ckerrors.ErrUnknownProvider) {
//	    // handle unknown provider
//	}
//
// # Exit Codes
//
//   - ExitSuccess (0): command completed successfully
//   - ExitUser (1): invalid input, configuration, or flags
//   - ExitSystem (2): I/O failure or at least one failed plan action
//
// # ExitError
//
// [ExitError] wraps an underlying error with an exit code and an optional
// suggestion shown to the user:
//
//	err := ckerrors.NewUserError(ckerrors.ErrInvalidConfig, "Check your config file")
//	var exitErr *ckerrors.ExitError
//	if errors.As(err, &exitErr) {
//	    os.Exit(exitErr.Code)
//	}
package errors
