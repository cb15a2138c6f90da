package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rosterlink/internal/cache"
	"rosterlink/internal/grading"
	"rosterlink/internal/infrastructure"
	"rosterlink/pkg/contracts/domain"
)

// GradingEnvelope is the result of one grading correlation.
type GradingEnvelope = domain.Envelope[[]domain.GradingTopic]

// GradingService reports which discussion participants still need a grade.
type GradingService struct {
	loader   *courseLoader
	maxPages int
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewGradingService creates the service. A nil canvas makes every call fail
// with ErrCanvasUnavailable.
func NewGradingService(canvas CanvasAPI, c cache.Cache, maxPages int, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *GradingService {
	logger = infrastructure.WithComponent(logger, "grading_service")
	return &GradingService{
		loader:   &courseLoader{canvas: canvas, cache: c, metrics: metrics, logger: logger},
		maxPages: maxPages,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Correlate returns the grading topics of a course. Unless refresh is set a
// cached result is returned as is, with Source "cache".
func (s *GradingService) Correlate(ctx context.Context, courseID string, refresh bool) (GradingEnvelope, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return GradingEnvelope{}, ErrCourseRequired
	}
	if s.loader.canvas == nil {
		return GradingEnvelope{}, ErrCanvasUnavailable
	}

	key := courseKey(gradingKeyPrefix, courseID)
	if !refresh {
		if v, ok := s.loader.cache.Get(key); ok {
			if env, ok := v.(GradingEnvelope); ok {
				infrastructure.RecordCacheLookup(ctx, s.metrics, "grading", true)
				env.Source = domain.SourceCache
				return env, nil
			}
		}
		infrastructure.RecordCacheLookup(ctx, s.metrics, "grading", false)
	}

	ctx, span := tracer.Start(ctx, "GradingService.Correlate",
		trace.WithAttributes(attribute.String("course_id", courseID)))
	defer span.End()

	start := s.now()
	var notes domain.ProcessingNotes
	data, _, err := s.loader.load(ctx, courseID, refresh, &notes)
	if err != nil {
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "failed to load course posts",
			slog.String("course_id", courseID),
			slog.String("error", err.Error()))
		return GradingEnvelope{}, err
	}

	correlator := grading.NewCorrelator(s.loader.canvas.CourseFetcher(courseID), grading.Options{
		MaxPages: s.maxPages,
		Logger:   s.logger,
	})
	result := correlator.Correlate(ctx, data.Posts, data.TeacherIDs)
	notes.Merge(result.Notes)

	topics := result.Topics
	if topics == nil {
		topics = []domain.GradingTopic{}
	}
	needing := 0
	for _, t := range topics {
		needing += len(t.StudentsNeedingGrades)
	}

	duration := s.now().Sub(start)
	infrastructure.RecordGradingMetrics(ctx, s.metrics, topics, notes, duration)
	span.SetAttributes(
		attribute.Int("topics", len(topics)),
		attribute.Int("students_needing_grades", needing),
	)

	s.logger.InfoContext(ctx, "grading correlation complete",
		slog.String("course_id", courseID),
		slog.Int("posts", len(data.Posts)),
		slog.Int("topics", len(topics)),
		slog.Int("students_needing_grades", needing),
		slog.Int("failed_submission_fetches", len(notes.FailedSubmissionFetches)),
		slog.Duration("duration", duration))

	env := GradingEnvelope{
		RunID:       uuid.NewString(),
		Source:      domain.SourceFresh,
		GeneratedAt: s.now().UTC(),
		Data:        topics,
		Notes:       notes,
	}
	// Partial results are never cached.
	if len(notes.FailedSources) == 0 && len(notes.FailedSubmissionFetches) == 0 {
		s.loader.cache.Set(key, env)
	}
	return env, nil
}

// InvalidateCourse drops the cached posts and grading result of a course and
// returns the number of entries removed.
func (s *GradingService) InvalidateCourse(courseID string) (int, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return 0, ErrCourseRequired
	}
	removed := s.loader.invalidate(courseID)
	s.logger.Info("course cache invalidated",
		slog.String("course_id", courseID),
		slog.Int("entries", removed))
	return removed, nil
}
