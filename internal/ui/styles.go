package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorPass   = 114 // green
	colorWarn   = 214 // orange
	colorFail   = 203 // red
)

var noColor bool

func render(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent (blue) color. Used for run IDs.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a step or command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderPass returns s in green, for applied steps.
func RenderPass(s string) string { return render(colorPass, s) }

// RenderWarn returns s in orange, for pending steps and dry runs.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderFail returns s in red, for failures.
func RenderFail(s string) string { return render(colorFail, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
