package services

import apperrors "rosterlink/internal/errors"

// Service errors. Callers match them with errors.Is; the HTTP layer maps them
// to problem details through their AppError type.
var (
	// Request errors
	ErrCourseRequired = apperrors.NewAppValidationError("course id is required")
	ErrNoSources      = apperrors.NewAppValidationError("no course, registration or session data supplied")

	// Upstream errors
	ErrCanvasUnavailable = apperrors.NewNetworkError("canvas is not configured or unreachable", nil)
	ErrSheetsUnavailable = apperrors.NewNetworkError("registration sheet is not configured", nil)
)
