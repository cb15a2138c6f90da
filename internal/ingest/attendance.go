package ingest

import (
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"rosterlink/pkg/contracts/domain"
)

var (
	originalNameRe = regexp.MustCompile(`^(.*?)\s*\(([^()]*)\)\s*$`)
	fileSessionRe  = regexp.MustCompile(`(?i)(?:session|week|class|day|meeting)[\s_-]*#?(\d+)`)
	anyNumberRe    = regexp.MustCompile(`(\d+)`)
)

// AttendanceRow is one participant line of a conferencing export.
type AttendanceRow struct {
	Name            string
	OriginalName    string
	Email           string
	DurationMinutes int
	Guest           bool
}

// AttendanceColumns is the detected layout of an attendance export.
type AttendanceColumns struct {
	Name            string
	HasOriginalName bool
	Email           string
	Duration        string
	Guest           string
}

// IsAttendanceHeader accepts the participant header row of a Zoom export,
// skipping the meeting summary some exports put above it.
func IsAttendanceHeader(cells []string) bool {
	var name, duration bool
	for _, c := range cells {
		l := strings.ToLower(strings.TrimSpace(c))
		name = name || strings.Contains(l, "name")
		duration = duration || strings.Contains(l, "duration") || strings.Contains(l, "minutes")
	}
	return name && duration
}

// ParseAttendanceCSV parses a conferencing export.
func ParseAttendanceCSV(text string) ([]AttendanceRow, ParseResult) {
	res := ParseCSVWithHeader(text, IsAttendanceHeader)
	return ParseAttendance(res), res
}

// DetectAttendanceColumns maps export headers to fields.
func DetectAttendanceColumns(headers []string) AttendanceColumns {
	var cols AttendanceColumns
	for _, h := range headers {
		l := strings.ToLower(h)
		switch {
		case cols.Name == "" && strings.Contains(l, "name"):
			cols.Name = h
			cols.HasOriginalName = strings.Contains(l, "original name")
		case cols.Email == "" && strings.Contains(l, "email"):
			cols.Email = h
		case cols.Guest == "" && l == "guest":
			cols.Guest = h
		}
	}
	cols.Duration = durationColumn(headers)
	return cols
}

func durationColumn(headers []string) string {
	for _, want := range []string{"duration", "minutes"} {
		for _, h := range headers {
			if strings.Contains(strings.ToLower(h), want) {
				return h
			}
		}
	}
	return ""
}

// ParseAttendance maps parsed export rows onto attendance rows.
func ParseAttendance(res ParseResult) []AttendanceRow {
	cols := DetectAttendanceColumns(res.Headers)
	rows := make([]AttendanceRow, 0, len(res.Records))
	for _, rec := range res.Records {
		r := AttendanceRow{
			Name:            rec.Get(cols.Name),
			Email:           rec.Get(cols.Email),
			DurationMinutes: ParseMinutes(rec.Get(cols.Duration)),
			Guest:           parseBool(rec.Get(cols.Guest)),
		}
		if cols.HasOriginalName {
			r.Name, r.OriginalName = splitOriginalName(r.Name)
		}
		rows = append(rows, r)
	}
	return rows
}

// maxMinutes bounds a duration cell so that summed re-joins cannot overflow.
const maxMinutes = math.MaxInt32

// ParseMinutes reads a duration cell; anything unparsable, non-finite or
// out of range is 0.
func ParseMinutes(value string) int {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		if n > 0 && n <= maxMinutes {
			return n
		}
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || f <= 0 || f > maxMinutes {
		return 0
	}
	return int(f)
}

// splitOriginalName splits "Name (Original Name)".
func splitOriginalName(cell string) (string, string) {
	m := originalNameRe.FindStringSubmatch(cell)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return cell, ""
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true", "1":
		return true
	}
	return false
}

// SessionKeyFromFilename derives a session key from an export file name:
// "session2.csv" and "Week 2 attendance.xlsx" both give "session2".
func SessionKeyFromFilename(path string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if m := fileSessionRe.FindStringSubmatch(base); m != nil {
		n, _ := strconv.Atoi(m[1])
		return domain.SessionKey(n), true
	}
	if m := anyNumberRe.FindStringSubmatch(base); m != nil {
		n, _ := strconv.Atoi(m[1])
		return domain.SessionKey(n), true
	}
	return "", false
}
