// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for seven output.
//
// Colors, status lines and markdown rendering only apply when the target
// stream is a terminal. NO_COLOR and FORCE_COLOR override detection.

package cli

import (
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/jeranaias/seven/internal/util"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// isTerminal reports whether v is a file attached to a terminal. Buffers
// and pipes are not.
func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// TERMINAL WIDTH
// =============================================================================

// Wrapping falls back to defaultWidth when stdout has no size and never
// goes below minWidth.
const (
	defaultWidth = 80
	minWidth     = 40
)

// GetTerminalWidth returns the width of stdout in columns.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	switch {
	case err != nil || width <= 0:
		return defaultWidth
	case width < minWidth:
		return minWidth
	}
	return width
}

// WrapText wraps text on word boundaries to maxWidth display columns.
// Existing newlines are preserved. A non-positive maxWidth uses the terminal
// width.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = GetTerminalWidth()
	}
	if maxWidth > 10 {
		maxWidth -= 2
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		if util.StringWidth(line) <= maxWidth {
			result.WriteString(line)
			continue
		}

		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if util.StringWidth(current)+1+util.StringWidth(word) <= maxWidth {
				current += " " + word
				continue
			}
			result.WriteString(current)
			result.WriteString("\n")
			current = word
		}
		result.WriteString(current)
	}
	return result.String()
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

// colorMode caches the decision: 0 undecided, 1 on, -1 off.
var (
	colorMu   sync.Mutex
	colorMode int
)

// ColorsEnabled reports whether styled output should be used. NO_COLOR
// (https://no-color.org/) wins over FORCE_COLOR; otherwise colors follow
// whether stdout is a terminal.
func ColorsEnabled() bool {
	colorMu.Lock()
	defer colorMu.Unlock()

	if colorMode == 0 {
		on := isTerminal(os.Stdout)
		if os.Getenv("NO_COLOR") != "" {
			on = false
		} else if os.Getenv("FORCE_COLOR") != "" {
			on = true
		}
		colorMode = -1
		if on {
			colorMode = 1
		}
	}
	return colorMode > 0
}

// ForceColorsEnabled overrides detection. Tests only.
func ForceColorsEnabled(enabled bool) {
	colorMu.Lock()
	defer colorMu.Unlock()
	colorMode = -1
	if enabled {
		colorMode = 1
	}
}

// GetColorProfile returns Ascii when colors are off and the detected
// terminal profile otherwise.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}
