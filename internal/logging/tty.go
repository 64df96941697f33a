package logging

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IsTTY returns true if the given writer is a terminal.
// It supports os.File and any wrapper that provides an Fd() method.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// SupportsColor returns true if the given writer supports ANSI color codes.
// NO_COLOR, TERM=dumb and CK_NO_COLOR disable color; so does a non-TTY writer.
// Plan rendering in the CLI uses the same rule as the log handler.
func SupportsColor(w io.Writer) bool {
	return supportsColor(IsTTY(w))
}

func supportsColor(isTTY bool) bool {
	for _, key := range []string{"NO_COLOR", "CK_NO_COLOR"} {
		if _, ok := os.LookupEnv(key); ok {
			return false
		}
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTTY
}
