package detector

import (
	"os"

	"golang.org/x/term"
)

// ColorMode selects how log output is rendered.
type ColorMode int

const (
	// ColorAuto picks colors when writing to an interactive terminal.
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output.
	ColorAlways
	// ColorNever forces plain output.
	ColorNever
)

// DetectColor reports whether f is an interactive terminal outside CI.
func DetectColor(f *os.File) bool {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	ci := os.Getenv("CI")
	return ci != "true" && ci != "1"
}

// ParseColorMode converts a --color flag value. Unknown values mean auto.
func ParseColorMode(flag string) ColorMode {
	switch flag {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}

// ResolveColor applies a user choice to auto-detection.
func ResolveColor(autoDetected bool, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return autoDetected
	}
}
