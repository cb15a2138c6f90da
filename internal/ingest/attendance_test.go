package ingest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zoomExport = `Meeting ID,Topic,Start Time,End Time,User Email,Duration (Minutes),Participants
812 3456 7890,Week 2,09/01/2025 09:00:00 AM,09/01/2025 10:30:00 AM,host@x.edu,90,3

Name (Original Name),User Email,Total Duration (Minutes),Guest
JD iPad (Jane Doe),jane@x.edu,45,No
John Roe,,12.7,Yes
"Roe, Ann",,abc,
`

func TestParseAttendanceCSV(t *testing.T) {
	rows, res := ParseAttendanceCSV(zoomExport)
	require.Len(t, rows, 3)
	assert.Equal(t, "Name (Original Name)", res.Headers[0])

	assert.Equal(t, AttendanceRow{Name: "JD iPad", OriginalName: "Jane Doe", Email: "jane@x.edu", DurationMinutes: 45}, rows[0])
	assert.Equal(t, AttendanceRow{Name: "John Roe", DurationMinutes: 12, Guest: true}, rows[1])
	assert.Equal(t, AttendanceRow{Name: "Roe, Ann"}, rows[2])
}

func TestDetectAttendanceColumns(t *testing.T) {
	cols := DetectAttendanceColumns([]string{"Join Time", "Name", "Email", "Duration", "Guest"})
	assert.Equal(t, AttendanceColumns{Name: "Name", Email: "Email", Duration: "Duration", Guest: "Guest"}, cols)

	cols = DetectAttendanceColumns([]string{"Participant Name", "Minutes"})
	assert.Equal(t, "Minutes", cols.Duration)
	assert.False(t, cols.HasOriginalName)
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"45", 45},
		{" 30 ", 30},
		{"12.9", 12},
		{"", 0},
		{"n/a", 0},
		{"-5", 0},
		{"Inf", 0},
		{"-Inf", 0},
		{"NaN", 0},
		{"1e30", 0},
		{"99999999999999999999", 0},
		{"2147483648", 0},
		{"2147483647", math.MaxInt32},
		{"1e3", 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseMinutes(tt.in), tt.in)
	}
}

func TestSplitOriginalName(t *testing.T) {
	name, orig := splitOriginalName("JD iPad (Jane Doe)")
	assert.Equal(t, "JD iPad", name)
	assert.Equal(t, "Jane Doe", orig)

	name, orig = splitOriginalName("Jane Doe")
	assert.Equal(t, "Jane Doe", name)
	assert.Empty(t, orig)

	name, orig = splitOriginalName("(guest)")
	assert.Equal(t, "(guest)", name)
	assert.Empty(t, orig)
}

func TestSessionKeyFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"session2.csv", "session2", true},
		{"/tmp/exports/Week 3 attendance.xlsx", "session3", true},
		{"class_04.csv", "session4", true},
		{"participants_2025.csv", "session2025", true},
		{"attendance.csv", "", false},
	}
	for _, tt := range tests {
		got, ok := SessionKeyFromFilename(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}
