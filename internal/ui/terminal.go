package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be used on stdout.
func ShouldUseColor() bool {
	return ColorEnabled(os.Stdout)
}

// ColorEnabled reports whether ANSI colors should be written to f. It
// respects NO_COLOR, CLICOLOR_FORCE and CLICOLOR before falling back to TTY
// detection.
func ColorEnabled(f *os.File) bool {
	// https://no-color.org: any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}
