package exporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rosterlink/pkg/contracts/domain"
)

func sampleReport() (domain.ReconcileReport, domain.ProcessingNotes) {
	jane := domain.NewParticipant("canvas:101", domain.OriginCanvas)
	jane.CanvasDisplayName = "Jane Doe"
	jane.CanvasEmail = "jane@x.edu"
	jane.CanvasPostCount = 3
	jane.RegistrationData = &domain.RegistrationData{Name: "Jane Doe", Email: "jane@x.edu"}
	jane.AIAttendance["session1"] = domain.AttendanceAbsent
	jane.ZoomSessions["session1"] = &domain.SessionRecord{Name: "Jane Doe", DurationMinutes: 45}
	jane.Discrepancies = []domain.Discrepancy{{
		Type:     domain.DiscrepancyFalseAbsent,
		Session:  "session1",
		Message:  "reported absent but attended 45 minutes",
		Severity: domain.SeverityHigh,
	}}

	guest := domain.NewParticipant("session:guest-visitor", domain.OriginSession)
	guest.ZoomSessions["session1"] = &domain.SessionRecord{Name: "Visitor Guest", DurationMinutes: 50, Guest: true}
	guest.AIAttendance["session1"] = domain.AttendanceUnknown

	report := domain.ReconcileReport{
		Participants: []*domain.Participant{jane, guest},
		Sessions:     []string{"session1"},
	}
	report.Summary = domain.Summarize(report.Participants)

	notes := domain.ProcessingNotes{UnmatchedAttendance: 1, FailedSources: []string{"sheets"}}
	notes.AddFiltered("junk")
	return report, notes
}

func sampleTopics() []domain.GradingTopic {
	posted := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	sam := domain.StudentStatus{Name: "Sam Lee", UserID: "102", PostID: "3", PostDate: posted, TeacherFeedback: []string{}}
	jane := domain.StudentStatus{Name: "Jane Doe", UserID: "101", PostID: "1", PostDate: posted, IsGraded: true, TeacherFeedback: []string{"Prof Smith"}}
	return []domain.GradingTopic{{
		ID:                    "t1",
		Title:                 "Intro",
		AssignmentID:          "a1",
		TeacherReplyStats:     map[string]int{"Prof Smith": 1, "Ada TA": 2},
		AllStudentsWithStatus: []domain.StudentStatus{jane, sam},
		StudentsNeedingGrades: []domain.StudentStatus{sam},
	}}
}

func TestReconcileTables(t *testing.T) {
	report, notes := sampleReport()
	tables := ReconcileTables(report, notes)
	require.Len(t, tables, 3)

	participants := tables[0]
	assert.Equal(t, "participants", participants.Name)
	wantHeaders := []string{"ID", "Origin", "Name", "Email", "Canvas Posts", "Registered", "session1 reported", "session1 minutes", "Discrepancies"}
	if diff := cmp.Diff(wantHeaders, participants.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
	wantRows := [][]string{
		{"canvas:101", "canvas", "Jane Doe", "jane@x.edu", "3", "yes", "absent", "45", "1"},
		{"session:guest-visitor", "session", "Visitor Guest", "", "0", "no", "unknown", "50", "0"},
	}
	if diff := cmp.Diff(wantRows, participants.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	discrepancies := tables[1]
	require.Len(t, discrepancies.Rows, 1)
	assert.Equal(t, []string{"canvas:101", "Jane Doe", "session1", "false_absent", "high", "reported absent but attended 45 minutes"}, discrepancies.Rows[0])

	assert.Contains(t, tables[2].Rows, []string{"filtered_registrations.junk", "1"})
	assert.Contains(t, tables[2].Rows, []string{"failed_source", "sheets"})
}

func TestGradingTables(t *testing.T) {
	tables := GradingTables(sampleTopics(), domain.ProcessingNotes{})
	require.Len(t, tables, 4)

	assert.Equal(t, [][]string{{"Intro", "a1", "Sam Lee", "102", "2024-03-01 09:30", ""}}, tables[0].Rows)
	require.Len(t, tables[1].Rows, 2)
	assert.Equal(t, "yes", tables[1].Rows[0][6])
	assert.Equal(t, "Prof Smith", tables[1].Rows[0][7])
	assert.Equal(t, [][]string{{"Intro", "Ada TA", "2"}, {"Intro", "Prof Smith", "1"}}, tables[2].Rows, "teachers sorted by name")
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "report.csv", want: FormatCSV},
		{path: "out/Report.XLSX", want: FormatXLSX},
		{path: "report.json", want: FormatJSON},
		{path: "report.txt", wantErr: true},
		{path: "report", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExport_CSV(t *testing.T) {
	report, notes := sampleReport()
	path := filepath.Join(t.TempDir(), "report.csv")

	files, err := New(quietLogger()).Export(path, report, ReconcileTables(report, notes))
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, []string{
		path,
		filepath.Join(dir, "report_discrepancies.csv"),
		filepath.Join(dir, "report_notes.csv"),
	}, files)
	rows := readCSV(t, path)
	assert.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
}

func TestExport_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grading.xlsx")
	files, err := New(quietLogger()).Export(path, nil, GradingTables(sampleTopics(), domain.ProcessingNotes{}))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"needs_grading", "students", "teacher_replies", "notes"}, f.GetSheetList())
	rows, err := f.GetRows("needs_grading")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Student", rows[0][2])
	assert.Equal(t, "Sam Lee", rows[1][2])
}

func TestExport_JSON(t *testing.T) {
	report, _ := sampleReport()
	env := domain.Envelope[domain.ReconcileReport]{RunID: "run-1", Source: domain.SourceFresh, Data: report}
	path := filepath.Join(t.TempDir(), "report.json")

	_, err := New(quietLogger()).Export(path, env, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, "fresh", decoded["source"])
}

func TestExport_UnsupportedFormat(t *testing.T) {
	_, err := New(quietLogger()).Export(filepath.Join(t.TempDir(), "report.pdf"), nil, nil)
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Sheet3", sheetName("", 2))
	assert.Len(t, sheetName("a_table_name_that_is_much_too_long_for_excel", 0), maxSheetName)
}
