package ui

import (
	"os"
	"testing"
)

func TestRender(t *testing.T) {
	t.Cleanup(func() { noColor = false })

	noColor = false
	if got := RenderPass("applied"); got != "\x1b[38;5;114mapplied\x1b[0m" {
		t.Errorf("RenderPass = %q", got)
	}
	if got := RenderFail("failed"); got != "\x1b[38;5;203mfailed\x1b[0m" {
		t.Errorf("RenderFail = %q", got)
	}

	ForceNoColor()
	for _, fn := range []func(string) string{RenderAccent, RenderMuted, RenderCommand, RenderPass, RenderWarn, RenderFail} {
		if got := fn("plain"); got != "plain" {
			t.Errorf("with color disabled got %q", got)
		}
	}
}

func TestShouldUseColor(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NoColorWins", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"Forced", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "1"}, true},
		{"Disabled", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "", "CLICOLOR": "0"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tc.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestColorEnabled_NonTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("CLICOLOR", "")

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if ColorEnabled(f) {
		t.Error("a regular file is not a terminal")
	}
	if ColorEnabled(nil) {
		t.Error("nil file should disable color")
	}
}
