package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"rosterlink/internal/cache"
	"rosterlink/internal/canvas"
	apperrors "rosterlink/internal/errors"
	"rosterlink/internal/grading"
	"rosterlink/internal/infrastructure"
	"rosterlink/internal/ingest"
	"rosterlink/pkg/contracts/domain"
)

// CanvasAPI is the part of the Canvas client the services use.
type CanvasAPI interface {
	FetchDiscussionPosts(ctx context.Context, courseID string) ([]domain.DiscussionPost, error)
	FetchCourseTeacherIDs(ctx context.Context, courseID string) ([]domain.UserID, error)
	CourseFetcher(courseID string) grading.SubmissionFetcher
}

// RegistrationSheet supplies registration rows from a spreadsheet.
type RegistrationSheet interface {
	Fetch(ctx context.Context) (ingest.ParseResult, error)
}

// Cache key prefixes.
const (
	postsKeyPrefix   = "posts:"
	gradingKeyPrefix = "grading:"
)

// courseKey terminates the course id so that invalidating course 4 leaves course 42 alone.
func courseKey(prefix, courseID string) string {
	return prefix + courseID + "/"
}

// courseData is what one course contributes from Canvas.
type courseData struct {
	Posts      []domain.DiscussionPost
	TeacherIDs []domain.UserID
}

// courseLoader fetches course posts and teachers, caching complete results.
type courseLoader struct {
	canvas  CanvasAPI
	cache   cache.Cache
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// load returns the course data and whether it came from the cache. Skipped
// discussion topics and a failed teacher lookup are recorded in notes; such
// partial data is never cached.
func (l *courseLoader) load(ctx context.Context, courseID string, refresh bool, notes *domain.ProcessingNotes) (courseData, bool, error) {
	if l.canvas == nil {
		return courseData{}, false, ErrCanvasUnavailable
	}

	key := courseKey(postsKeyPrefix, courseID)
	if !refresh {
		if v, ok := l.cache.Get(key); ok {
			if data, ok := v.(courseData); ok {
				infrastructure.RecordCacheLookup(ctx, l.metrics, "posts", true)
				return data, true, nil
			}
		}
		infrastructure.RecordCacheLookup(ctx, l.metrics, "posts", false)
	}

	partial := false
	posts, err := l.canvas.FetchDiscussionPosts(ctx, courseID)
	var skipped *canvas.PartialPostsError
	if errors.As(err, &skipped) {
		l.logger.WarnContext(ctx, "discussion topics skipped, continuing with loaded posts",
			slog.String("course_id", courseID),
			slog.Any("topic_ids", skipped.FailedTopics),
			slog.String("error", err.Error()))
		for _, id := range skipped.FailedTopics {
			notes.FailedSources = append(notes.FailedSources, "canvas_topic:"+id)
		}
		partial = true
		err = nil
	}
	if err != nil {
		var status *canvas.StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			return courseData{}, false, fmt.Errorf("%w: %v", apperrors.NewNotFoundError("canvas course "+courseID), err)
		}
		return courseData{}, false, fmt.Errorf("%w: %v", ErrCanvasUnavailable, err)
	}
	data := courseData{Posts: posts}

	teachers, err := l.canvas.FetchCourseTeacherIDs(ctx, courseID)
	if err != nil {
		l.logger.WarnContext(ctx, "teacher lookup failed, continuing without teacher exclusion",
			slog.String("course_id", courseID),
			slog.String("error", err.Error()))
		notes.FailedSources = append(notes.FailedSources, "canvas_enrollments")
		return data, false, nil
	}
	data.TeacherIDs = teachers

	if !partial {
		l.cache.Set(key, data)
	}
	return data, false, nil
}

// invalidate drops every cached entry of a course and reports how many were removed.
func (l *courseLoader) invalidate(courseID string) int {
	removed := 0
	for _, prefix := range []string{postsKeyPrefix, gradingKeyPrefix} {
		removed += l.cache.InvalidatePrefix(courseKey(prefix, courseID))
	}
	return removed
}
