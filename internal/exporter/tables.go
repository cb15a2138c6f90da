package exporter

import (
	"fmt"
	"sort"

	"rosterlink/pkg/contracts/domain"
)

// Table is one sheet of an export: a CSV file or a workbook sheet.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// ReconcileTables lays a reconciliation report out as participant,
// discrepancy and notes tables.
func ReconcileTables(report domain.ReconcileReport, notes domain.ProcessingNotes) []Table {
	return []Table{
		participantsTable(report),
		discrepanciesTable(report),
		NotesTable(notes),
	}
}

func participantsTable(report domain.ReconcileReport) Table {
	headers := []string{"ID", "Origin", "Name", "Email", "Canvas Posts", "Registered"}
	for _, s := range report.Sessions {
		headers = append(headers, s+" reported", s+" minutes")
	}
	headers = append(headers, "Discrepancies")

	rows := make([][]string, 0, len(report.Participants))
	for _, p := range report.Participants {
		row := []string{
			p.ID,
			string(p.Origin),
			p.DisplayName(),
			p.Email(),
			formatInt(p.CanvasPostCount),
			formatBool(p.RegistrationData != nil),
		}
		for _, s := range report.Sessions {
			minutes := ""
			if rec := p.ZoomSessions[s]; rec != nil {
				minutes = formatInt(rec.DurationMinutes)
			}
			row = append(row, string(p.AIAttendance[s]), minutes)
		}
		row = append(row, formatInt(len(p.Discrepancies)))
		rows = append(rows, row)
	}
	return Table{Name: "participants", Headers: headers, Rows: rows}
}

func discrepanciesTable(report domain.ReconcileReport) Table {
	t := Table{
		Name:    "discrepancies",
		Headers: []string{"Participant ID", "Name", "Session", "Type", "Severity", "Message"},
	}
	for _, p := range report.Participants {
		for _, d := range p.Discrepancies {
			t.Rows = append(t.Rows, []string{
				p.ID, p.DisplayName(), d.Session, string(d.Type), string(d.Severity), d.Message,
			})
		}
	}
	return t
}

// GradingTables lays grading topics out as the students still needing a
// grade, every student's status and per-teacher reply counts.
func GradingTables(topics []domain.GradingTopic, notes domain.ProcessingNotes) []Table {
	needing := Table{
		Name:    "needs_grading",
		Headers: []string{"Topic", "Assignment", "Student", "User ID", "Posted", "Teacher Feedback"},
	}
	students := Table{
		Name:    "students",
		Headers: []string{"Topic", "Assignment", "Student", "User ID", "Post ID", "Posted", "Graded", "Teacher Feedback"},
	}
	replies := Table{
		Name:    "teacher_replies",
		Headers: []string{"Topic", "Teacher", "Replies"},
	}

	for _, t := range topics {
		for _, s := range t.StudentsNeedingGrades {
			needing.Rows = append(needing.Rows, []string{
				t.Title, t.AssignmentID, s.Name, s.UserID.String(), formatTime(s.PostDate), formatList(s.TeacherFeedback),
			})
		}
		for _, s := range t.AllStudentsWithStatus {
			students.Rows = append(students.Rows, []string{
				t.Title, t.AssignmentID, s.Name, s.UserID.String(), s.PostID,
				formatTime(s.PostDate), formatBool(s.IsGraded), formatList(s.TeacherFeedback),
			})
		}
		teachers := make([]string, 0, len(t.TeacherReplyStats))
		for name := range t.TeacherReplyStats {
			teachers = append(teachers, name)
		}
		sort.Strings(teachers)
		for _, name := range teachers {
			replies.Rows = append(replies.Rows, []string{t.Title, name, formatInt(t.TeacherReplyStats[name])})
		}
	}
	return []Table{needing, students, replies, NotesTable(notes)}
}

// NotesTable lists the processing notes of a run as metric/value pairs.
func NotesTable(notes domain.ProcessingNotes) Table {
	t := Table{Name: "notes", Headers: []string{"Metric", "Value"}}
	add := func(k, v string) { t.Rows = append(t.Rows, []string{k, v}) }

	add("unmatched_registrations", formatInt(notes.UnmatchedRegistrations))
	add("matched_attendance", formatInt(notes.MatchedAttendance))
	add("unmatched_attendance", formatInt(notes.UnmatchedAttendance))
	add("dropped_attendance", formatInt(notes.DroppedAttendance))
	add("skipped_posts", formatInt(notes.SkippedPosts))

	reasons := make([]string, 0, len(notes.FilteredRegistrations))
	for r := range notes.FilteredRegistrations {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		add(fmt.Sprintf("filtered_registrations.%s", r), formatInt(notes.FilteredRegistrations[r]))
	}
	for _, s := range notes.FailedSources {
		add("failed_source", s)
	}
	for _, f := range notes.FailedSubmissionFetches {
		add("failed_submission_fetch", f)
	}
	for _, w := range notes.Warnings {
		add("warning", w)
	}
	return t
}
