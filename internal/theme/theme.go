// Package theme decides whether to colorize output and renders the
// handful of message styles the CLI needs (spec.md §7 "red when color
// is enabled"). It is an external collaborator per spec.md §2 — only
// its contract is fixed by the core, but it's included here since the
// core error-reporting path calls straight into it.
package theme

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Theme is immutable once constructed — it reads the process
// environment once, at construction, per spec.md §9 "Global state: None."
type Theme struct {
	enabled bool
}

// Detect builds a Theme from the standard color-policy environment
// variables (NO_COLOR, CLICOLOR, CLICOLOR_FORCE, spec.md §6) plus a
// terminal check on the given file descriptor.
func Detect(fd uintptr) *Theme {
	if os.Getenv("NO_COLOR") != "" {
		return &Theme{enabled: false}
	}
	if os.Getenv("CLICOLOR_FORCE") != "" && os.Getenv("CLICOLOR_FORCE") != "0" {
		return &Theme{enabled: true}
	}
	if os.Getenv("CLICOLOR") == "0" {
		return &Theme{enabled: false}
	}

	isTerm := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) || term.IsTerminal(int(fd))
	return &Theme{enabled: isTerm}
}

func (t *Theme) Error(format string, args ...any) string {
	if !t.enabled {
		return sprintf("error: "+format, args...)
	}
	return color.New(color.FgRed, color.Bold).Sprintf("error: "+format, args...)
}

func (t *Theme) Skip(format string, args ...any) string {
	if !t.enabled {
		return sprintf("skip: "+format, args...)
	}
	return color.New(color.FgYellow).Sprintf("skip: "+format, args...)
}

func (t *Theme) Success(format string, args ...any) string {
	if !t.enabled {
		return sprintf(format, args...)
	}
	return color.New(color.FgGreen).Sprintf(format, args...)
}

func (t *Theme) Dim(format string, args ...any) string {
	if !t.enabled {
		return sprintf(format, args...)
	}
	return color.New(color.Faint).Sprintf(format, args...)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
