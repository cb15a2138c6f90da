package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rosterlink/internal/cache"
	"rosterlink/internal/infrastructure"
	"rosterlink/internal/ingest"
	"rosterlink/internal/reconcile"
	"rosterlink/pkg/contracts/domain"
)

var tracer = otel.Tracer("rosterlink/services")

// ReconcileRequest names the inputs of one reconciliation run. Every input is
// optional but at least one must be present.
type ReconcileRequest struct {
	CourseID        string
	RegistrationCSV string
	// Sessions maps a session key to the CSV text of its attendance export.
	Sessions map[string]string
	UseSheet bool
	Refresh  bool

	// Pre-parsed tables, used by callers that read workbooks themselves.
	// They take precedence over RegistrationCSV and Sessions.
	Registrations *ingest.ParseResult
	SessionTables map[string]ingest.ParseResult
}

func (r ReconcileRequest) hasSources() bool {
	return r.CourseID != "" || r.RegistrationCSV != "" || len(r.Sessions) > 0 ||
		r.UseSheet || r.Registrations != nil || len(r.SessionTables) > 0
}

// ReconciliationService runs reconciliations over Canvas, registration and
// attendance data.
type ReconciliationService struct {
	reconciler *reconcile.Reconciler
	loader     *courseLoader
	sheet      RegistrationSheet
	metrics    *infrastructure.BusinessMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewReconciliationService creates the service. canvas and sheet may be nil
// when those sources are not configured.
func NewReconciliationService(
	reconciler *reconcile.Reconciler,
	canvas CanvasAPI,
	sheet RegistrationSheet,
	c cache.Cache,
	metrics *infrastructure.BusinessMetrics,
	logger *slog.Logger,
) *ReconciliationService {
	logger = infrastructure.WithComponent(logger, "reconciliation_service")
	return &ReconciliationService{
		reconciler: reconciler,
		loader:     &courseLoader{canvas: canvas, cache: c, metrics: metrics, logger: logger},
		sheet:      sheet,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Reconcile merges every supplied source into one report. Failed fetches are
// noted and the run continues with the sources that remain; asking for a
// source that is not configured is an error.
func (s *ReconciliationService) Reconcile(ctx context.Context, req ReconcileRequest) (domain.Envelope[domain.ReconcileReport], error) {
	var env domain.Envelope[domain.ReconcileReport]
	if !req.hasSources() {
		return env, ErrNoSources
	}
	if req.CourseID != "" && s.loader.canvas == nil {
		return env, ErrCanvasUnavailable
	}
	if req.UseSheet && req.Registrations == nil && req.RegistrationCSV == "" && s.sheet == nil {
		return env, ErrSheetsUnavailable
	}

	ctx, span := tracer.Start(ctx, "ReconciliationService.Reconcile",
		trace.WithAttributes(attribute.String("course_id", req.CourseID)))
	defer span.End()

	start := s.now()
	var notes domain.ProcessingNotes
	source := domain.SourceFresh

	var users []domain.CanvasUser
	if req.CourseID != "" {
		data, cached, err := s.loader.load(ctx, req.CourseID, req.Refresh, &notes)
		if err != nil {
			s.logger.WarnContext(ctx, "canvas fetch failed, reconciling without course users",
				slog.String("course_id", req.CourseID),
				slog.String("error", err.Error()))
			span.RecordError(err)
			notes.FailedSources = append(notes.FailedSources, "canvas")
		} else {
			users = domain.CollectAuthors(data.Posts, data.TeacherIDs)
			if cached {
				source = domain.SourceCache
			}
		}
	}

	var registrations []ingest.RegistrationRow
	if table, ok := s.registrationTable(ctx, req, &notes); ok {
		registrations, _ = ingest.ParseRegistrations(table)
	}
	sessions := sessionRows(req, &notes)

	result := s.reconciler.Reconcile(users, registrations, sessions)
	notes.Merge(result.Notes)

	report := domain.ReconcileReport{
		Participants: result.Participants,
		Sessions:     result.Sessions,
		Summary:      domain.Summarize(result.Participants),
	}
	if report.Sessions == nil {
		report.Sessions = []string{}
	}

	duration := s.now().Sub(start)
	infrastructure.RecordReconcileMetrics(ctx, s.metrics, report, notes, duration)
	span.SetAttributes(
		attribute.Int("participants", report.Summary.Participants),
		attribute.Int("discrepancies", report.Summary.Discrepancies),
	)
	if len(notes.FailedSources) > 0 {
		span.SetStatus(codes.Error, "partial input")
	}

	s.logger.InfoContext(ctx, "reconciliation complete",
		slog.String("course_id", req.CourseID),
		slog.Int("participants", report.Summary.Participants),
		slog.Int("sessions", len(report.Sessions)),
		slog.Int("discrepancies", report.Summary.Discrepancies),
		slog.Int("filtered_registrations", notes.TotalFiltered()),
		slog.Any("failed_sources", notes.FailedSources),
		slog.Duration("duration", duration))

	return domain.Envelope[domain.ReconcileReport]{
		RunID:       uuid.NewString(),
		Source:      source,
		GeneratedAt: s.now().UTC(),
		Data:        report,
		Notes:       notes,
	}, nil
}

// registrationTable picks the registration input: a pre-parsed table, then
// CSV text, then the configured sheet.
func (s *ReconciliationService) registrationTable(ctx context.Context, req ReconcileRequest, notes *domain.ProcessingNotes) (ingest.ParseResult, bool) {
	switch {
	case req.Registrations != nil:
		addParseWarnings(notes, "registrations", req.Registrations.Warnings)
		return *req.Registrations, true
	case req.RegistrationCSV != "":
		res := ingest.ParseCSV(req.RegistrationCSV)
		addParseWarnings(notes, "registrations", res.Warnings)
		return res, true
	case req.UseSheet:
		res, err := s.sheet.Fetch(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "registration sheet fetch failed",
				slog.String("error", err.Error()))
			notes.FailedSources = append(notes.FailedSources, "sheets")
			return ingest.ParseResult{}, false
		}
		addParseWarnings(notes, "registrations", res.Warnings)
		return res, true
	}
	return ingest.ParseResult{}, false
}

// sessionRows parses the attendance inputs. Keys are canonicalized, so
// "Week 2.csv" and "session2" land in the same session.
func sessionRows(req ReconcileRequest, notes *domain.ProcessingNotes) map[string][]ingest.AttendanceRow {
	out := make(map[string][]ingest.AttendanceRow)
	if len(req.SessionTables) > 0 {
		for _, name := range sortedKeys(req.SessionTables) {
			res := req.SessionTables[name]
			key := canonicalSessionKey(name)
			addParseWarnings(notes, key, res.Warnings)
			out[key] = append(out[key], ingest.ParseAttendance(res)...)
		}
		return out
	}
	for _, name := range sortedKeys(req.Sessions) {
		key := canonicalSessionKey(name)
		rows, res := ingest.ParseAttendanceCSV(req.Sessions[name])
		addParseWarnings(notes, key, res.Warnings)
		out[key] = append(out[key], rows...)
	}
	return out
}

func canonicalSessionKey(name string) string {
	if key, ok := ingest.SessionKeyFromFilename(name); ok {
		return key
	}
	return name
}

func addParseWarnings(notes *domain.ProcessingNotes, source string, warnings []ingest.ParseWarning) {
	for _, w := range warnings {
		notes.Warnings = append(notes.Warnings, fmt.Sprintf("%s line %d: %s", source, w.Line, w.Message))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
