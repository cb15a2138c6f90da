package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rosterlink/internal/cache"
	"rosterlink/internal/ingest"
	"rosterlink/internal/reconcile"
	"rosterlink/internal/shared/testutil"
	"rosterlink/pkg/contracts/domain"
)

const (
	registrationCSV = "Name,Email,Session 1,Session 2\n" +
		"Jane Doe,jane@x.edu,absent,present\n" +
		"Sam Lee,sam@x.edu,present,present\n" +
		"asdf asdf,asdf@x.edu,present,present\n"
	session1CSV = "Name (Original Name),User Email,Duration (Minutes),Guest\n" +
		"Jane Doe,,45,No\n" +
		"Sam Lee,sam@x.edu,50,No\n"
)

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func testCache(t *testing.T) *cache.MemoryCache {
	t.Helper()
	c := cache.NewMemoryCache(time.Minute, 16)
	t.Cleanup(c.Stop)
	return c
}

func coursePosts() []domain.DiscussionPost {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return []domain.DiscussionPost{
		{ID: "1", AuthorUserID: "101", AuthorDisplayName: "Jane Doe", TopicID: "t1", TopicTitle: "Intro", AssignmentID: "a1", CreatedAt: at},
		{ID: "2", AuthorUserID: "900", AuthorDisplayName: "Prof Smith", TopicID: "t1", TopicTitle: "Intro", AssignmentID: "a1", ParentID: "1", CreatedAt: at.Add(time.Hour)},
		{ID: "3", AuthorUserID: "102", AuthorDisplayName: "Sam Lee", TopicID: "t1", TopicTitle: "Intro", AssignmentID: "a1", CreatedAt: at.Add(2 * time.Hour)},
	}
}

func newReconciliationService(t *testing.T, canvas CanvasAPI, sheet RegistrationSheet) *ReconciliationService {
	t.Helper()
	logger, _ := testLogger()
	return NewReconciliationService(reconcile.New(reconcile.Options{Logger: logger}), canvas, sheet, testCache(t), nil, logger)
}

func participantByID(t *testing.T, ps []*domain.Participant, id string) *domain.Participant {
	t.Helper()
	for _, p := range ps {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("participant %s not found", id)
	return nil
}

func TestReconcile_RequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		canvas  bool
		sheet   bool
		req     ReconcileRequest
		wantErr error
	}{
		{name: "no sources", req: ReconcileRequest{}, wantErr: ErrNoSources},
		{name: "refresh alone is not a source", req: ReconcileRequest{Refresh: true}, wantErr: ErrNoSources},
		{name: "course without canvas", req: ReconcileRequest{CourseID: "42"}, wantErr: ErrCanvasUnavailable},
		{name: "sheet without sheet source", req: ReconcileRequest{UseSheet: true}, wantErr: ErrSheetsUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newReconciliationService(t, nil, nil)
			_, err := svc.Reconcile(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReconcile_AllSources(t *testing.T) {
	canvas := new(MockCanvasAPI)
	canvas.On("FetchDiscussionPosts", mock.Anything, "42").Return(coursePosts(), nil).Once()
	canvas.On("FetchCourseTeacherIDs", mock.Anything, "42").Return([]domain.UserID{"900"}, nil).Once()
	svc := newReconciliationService(t, canvas, nil)

	req := ReconcileRequest{
		CourseID:        "42",
		RegistrationCSV: registrationCSV,
		Sessions:        map[string]string{"session1": session1CSV},
	}
	env, err := svc.Reconcile(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, env.RunID)
	assert.Equal(t, domain.SourceFresh, env.Source)
	assert.False(t, env.GeneratedAt.IsZero())

	report := env.Data
	require.Len(t, report.Participants, 2, "teacher excluded, junk row filtered")
	assert.Equal(t, []string{"session1", "session2"}, report.Sessions)
	assert.Equal(t, 2, report.Summary.Participants)
	assert.Equal(t, 2, report.Summary.ByOrigin["canvas"])

	jane := participantByID(t, report.Participants, "canvas:101")
	require.NotNil(t, jane.RegistrationData)
	assert.Equal(t, 45, jane.ZoomSessions["session1"].DurationMinutes)
	types := make([]domain.DiscrepancyType, 0, len(jane.Discrepancies))
	for _, d := range jane.Discrepancies {
		types = append(types, d.Type)
	}
	assert.Contains(t, types, domain.DiscrepancyFalseAbsent)
	assert.Contains(t, types, domain.DiscrepancyFalsePresent)

	assert.Equal(t, 1, env.Notes.TotalFiltered())
	assert.Empty(t, env.Notes.FailedSources)

	second, err := svc.Reconcile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, second.Source)
	assert.NotEqual(t, env.RunID, second.RunID)
	assert.Len(t, second.Data.Participants, 2)

	canvas.AssertExpectations(t)
}

func TestReconcile_RefreshBypassesCache(t *testing.T) {
	canvas := new(MockCanvasAPI)
	canvas.On("FetchDiscussionPosts", mock.Anything, "42").Return(coursePosts(), nil)
	canvas.On("FetchCourseTeacherIDs", mock.Anything, "42").Return([]domain.UserID{"900"}, nil)
	svc := newReconciliationService(t, canvas, nil)

	_, err := svc.Reconcile(context.Background(), ReconcileRequest{CourseID: "42"})
	require.NoError(t, err)
	env, err := svc.Reconcile(context.Background(), ReconcileRequest{CourseID: "42", Refresh: true})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceFresh, env.Source)
	canvas.AssertNumberOfCalls(t, "FetchDiscussionPosts", 2)
}

func TestReconcile_CanvasFailureDegrades(t *testing.T) {
	canvas := new(MockCanvasAPI)
	canvas.On("FetchDiscussionPosts", mock.Anything, "42").Return(nil, errors.New("connection refused"))
	logger, logs := testutil.NewTestLogger(t)
	svc := NewReconciliationService(reconcile.New(reconcile.Options{Logger: logger}), canvas, nil, testCache(t), nil, logger)

	env, err := svc.Reconcile(context.Background(), ReconcileRequest{
		CourseID:        "42",
		RegistrationCSV: registrationCSV,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"canvas"}, env.Notes.FailedSources)
	require.Len(t, env.Data.Participants, 2)
	for _, p := range env.Data.Participants {
		assert.Equal(t, domain.OriginRegistration, p.Origin)
	}
	canvas.AssertNotCalled(t, "FetchCourseTeacherIDs", mock.Anything, mock.Anything)
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "canvas fetch failed")
	testutil.AssertLogAttr(t, logs, "course_id", "42")
}

func TestReconcile_TeacherLookupFailureIsNotCached(t *testing.T) {
	canvas := new(MockCanvasAPI)
	canvas.On("FetchDiscussionPosts", mock.Anything, "42").Return(coursePosts(), nil)
	canvas.On("FetchCourseTeacherIDs", mock.Anything, "42").Return(nil, errors.New("403 forbidden"))
	svc := newReconciliationService(t, canvas, nil)

	env, err := svc.Reconcile(context.Background(), ReconcileRequest{CourseID: "42"})
	require.NoError(t, err)
	assert.Equal(t, []string{"canvas_enrollments"}, env.Notes.FailedSources)
	assert.Len(t, env.Data.Participants, 3, "teacher cannot be excluded")

	env, err = svc.Reconcile(context.Background(), ReconcileRequest{CourseID: "42"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFresh, env.Source)
	canvas.AssertNumberOfCalls(t, "FetchDiscussionPosts", 2)
}

func TestReconcile_RegistrationSheet(t *testing.T) {
	t.Run("rows come from the sheet", func(t *testing.T) {
		sheet := new(MockRegistrationSheet)
		sheet.On("Fetch", mock.Anything).Return(ingest.ParseCSV(registrationCSV), nil).Once()
		svc := newReconciliationService(t, nil, sheet)

		env, err := svc.Reconcile(context.Background(), ReconcileRequest{UseSheet: true})
		require.NoError(t, err)
		assert.Len(t, env.Data.Participants, 2)
		sheet.AssertExpectations(t)
	})

	t.Run("fetch failure degrades", func(t *testing.T) {
		sheet := new(MockRegistrationSheet)
		sheet.On("Fetch", mock.Anything).Return(ingest.ParseResult{}, errors.New("quota exceeded"))
		svc := newReconciliationService(t, nil, sheet)

		env, err := svc.Reconcile(context.Background(), ReconcileRequest{
			UseSheet: true,
			Sessions: map[string]string{"session1": session1CSV},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"sheets"}, env.Notes.FailedSources)
		assert.Len(t, env.Data.Participants, 2)
	})

	t.Run("csv text wins over the sheet", func(t *testing.T) {
		sheet := new(MockRegistrationSheet)
		svc := newReconciliationService(t, nil, sheet)

		_, err := svc.Reconcile(context.Background(), ReconcileRequest{UseSheet: true, RegistrationCSV: registrationCSV})
		require.NoError(t, err)
		sheet.AssertNotCalled(t, "Fetch", mock.Anything)
	})
}

func TestReconcile_SessionKeysAreCanonical(t *testing.T) {
	svc := newReconciliationService(t, nil, nil)

	env, err := svc.Reconcile(context.Background(), ReconcileRequest{
		Sessions: map[string]string{
			"Week 2 attendance.csv": "Name,Email,Duration\nJane Doe,jane@x.edu,40\n",
			"session10":             "Name,Email,Duration\nJane Doe,jane@x.edu,50\n",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"session2", "session10"}, env.Data.Sessions)
	require.Len(t, env.Data.Participants, 1)
	assert.Equal(t, domain.OriginSession, env.Data.Participants[0].Origin)
}

func TestReconcile_PreParsedTables(t *testing.T) {
	svc := newReconciliationService(t, nil, nil)

	regs := ingest.ParseCSV(registrationCSV)
	env, err := svc.Reconcile(context.Background(), ReconcileRequest{
		RegistrationCSV: "Name,Email\nIgnored Person,ignored@x.edu\n",
		Registrations:   &regs,
		SessionTables: map[string]ingest.ParseResult{
			"session1.xlsx": ingest.ParseCSVWithHeader(session1CSV, ingest.IsAttendanceHeader),
		},
	})
	require.NoError(t, err)

	require.Len(t, env.Data.Participants, 2)
	for _, p := range env.Data.Participants {
		assert.NotEqual(t, "Ignored Person", p.DisplayName())
	}
	assert.Equal(t, []string{"session1", "session2"}, env.Data.Sessions)
}

func TestReconcile_ParseWarningsReachNotes(t *testing.T) {
	svc := newReconciliationService(t, nil, nil)

	env, err := svc.Reconcile(context.Background(), ReconcileRequest{
		RegistrationCSV: "Name,Email,Session 1\n\"Broken, Name,broken@x.edu,present\n",
	})
	require.NoError(t, err)
	require.NotEmpty(t, env.Notes.Warnings)
	assert.Contains(t, env.Notes.Warnings[0], "registrations line")
}

func TestReconcile_EmptySessionsSerializeAsList(t *testing.T) {
	svc := newReconciliationService(t, nil, nil)
	env, err := svc.Reconcile(context.Background(), ReconcileRequest{RegistrationCSV: "Name,Email\nJane Doe,jane@x.edu\n"})
	require.NoError(t, err)
	assert.NotNil(t, env.Data.Sessions)
	assert.Empty(t, env.Data.Sessions)
}
