package exporter

import (
	"strconv"
	"strings"
	"time"
)

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatBool formats a boolean value for spreadsheet output
func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// formatTime renders t in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// formatList joins values for a single cell.
func formatList(values []string) string {
	return strings.Join(values, "; ")
}
