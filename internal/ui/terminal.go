package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorEnv overrides color detection: "always", "never" or "auto" (default).
const ColorEnv = "CSTORE_COLOR"

// ShouldUseColor reports whether ANSI colors should be written to stdout.
func ShouldUseColor() bool {
	return ShouldUseColorFor(os.Stdout)
}

// ShouldUseColorFor applies, in order: CSTORE_COLOR, NO_COLOR,
// CLICOLOR_FORCE, CLICOLOR, TERM=dumb and finally TTY detection on f.
func ShouldUseColorFor(f *os.File) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(ColorEnv))) {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}
