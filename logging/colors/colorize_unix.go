//go:build !windows
// +build !windows

package colors

import "fmt"

// enabled is set by EnableColor and cleared by DisableColor.
var enabled bool

// EnableColor turns on ANSI output. Unix terminals support escape codes natively.
func EnableColor() {
	enabled = true
}

// DisableColor turns off ANSI output.
func DisableColor() {
	enabled = false
}

// Enabled reports whether ANSI output is on.
func Enabled() bool {
	return enabled
}

// Colorize returns the string s wrapped in ANSI code c, or s unchanged if colors are disabled.
func Colorize(s any, c Color) string {
	if !enabled {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}
