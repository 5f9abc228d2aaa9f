package util

import (
	"fmt"
	"io"
	"strings"
)

// Field is one labelled row of a summary table
type Field struct {
	Label string
	Value interface{}
}

// RenderFields prints label/value rows with the labels padded to a common width
func RenderFields(w io.Writer, fields []Field) {
	width := 0
	for _, f := range fields {
		if n := getDisplayWidth(f.Label); n > width {
			width = n
		}
	}
	for _, f := range fields {
		fmt.Fprintf(w, "%s  %v\n", padStringToWidth(f.Label+":", width+1), f.Value)
	}
}

// removeANSICodes removes ANSI escape codes from a string for width calculation
func removeANSICodes(s string) string {
	for {
		start := strings.Index(s, "\033[")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "m")
		if end == -1 {
			break
		}
		s = s[:start] + s[start+end+1:]
	}
	return s
}

// getDisplayWidth calculates the display width of a string, accounting for ANSI codes and Unicode characters
func getDisplayWidth(s string) int {
	return len([]rune(removeANSICodes(s)))
}

func padStringToWidth(s string, width int) string {
	displayWidth := getDisplayWidth(s)
	if displayWidth >= width {
		return s
	}
	return s + strings.Repeat(" ", width-displayWidth)
}
