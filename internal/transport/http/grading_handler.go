package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "rosterlink/internal/errors"
	"rosterlink/internal/exporter"
	appmiddleware "rosterlink/internal/middleware"
	api "rosterlink/pkg/contracts/api/v1"
)

type courseIDKey struct{}

// CourseHandler serves per-course grading and cache routes.
type CourseHandler struct {
	service      GradingService
	validator    *appmiddleware.Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(service GradingService, validator *appmiddleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *CourseHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CourseHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "courses")),
	}
}

// Routes returns the course routes
func (h *CourseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/{courseID}", func(r chi.Router) {
		r.Use(h.CourseCtx)
		r.Get("/grading", h.Grading)
		r.Delete("/cache", h.InvalidateCache)
	})
	return r
}

// CourseCtx validates the course id URL parameter and stores it in the
// request context.
func (h *CourseHandler) CourseCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if strings.TrimSpace(courseID) == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrMissingParameter)
			return
		}
		if err := h.validator.ValidateVar("course_id", courseID, "required,courseid"); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), courseIDKey{}, courseID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func courseIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(courseIDKey{}).(string)
	return id
}

// Grading handles GET /api/courses/{courseID}/grading
func (h *CourseHandler) Grading(w http.ResponseWriter, r *http.Request) {
	courseID := courseIDFrom(r)
	refresh, err := appmiddleware.ParseBoolQuery(r, "refresh")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	format, err := responseFormat(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	env, err := h.service.Correlate(r.Context(), courseID, refresh)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "grading served",
		slog.String("course_id", courseID),
		slog.String("source", string(env.Source)),
		slog.Int("topics", len(env.Data)),
	)

	if err := respond(w, r, format, "grading_"+courseID, env, exporter.GradingTables(env.Data, env.Notes)); err != nil {
		h.errorHandler.HandleError(w, r, err)
	}
}

// InvalidateCache handles DELETE /api/courses/{courseID}/cache
func (h *CourseHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	courseID := courseIDFrom(r)
	removed, err := h.service.InvalidateCourse(courseID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.CacheInvalidated{CourseID: courseID, Removed: removed})
}
