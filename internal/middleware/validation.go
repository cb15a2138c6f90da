package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "rosterlink/internal/errors"
)

// courseIDRe accepts Canvas numeric ids and sis_course_id:XYZ style ids.
var courseIDRe = regexp.MustCompile(`^(\d+|sis_course_id:[A-Za-z0-9._-]+)$`)

// Validator decodes and validates request payloads using struct tags.
type Validator struct {
	validator *validator.Validate
	logger    *slog.Logger
}

// NewValidator creates a new Validator
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	v.RegisterValidation("courseid", isCourseID)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validator: v,
		logger:    logger.With(slog.String("component", "validator")),
	}
}

// DecodeJSON reads the request body into dst and validates it. Errors are
// ready to hand to the error handler.
func (v *Validator) DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return apierrors.ErrInvalidRequest
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return err
		case errors.Is(err, io.EOF):
			return apierrors.ErrInvalidRequest
		}
		v.logger.DebugContext(r.Context(), "request body rejected", slog.String("error", err.Error()))
		return apierrors.InvalidRequestWithError(err)
	}
	return v.ValidateStruct(dst)
}

// ValidateStruct validates a struct and returns validation errors
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	validationErrors := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(validationErrors)
}

// ValidateVar validates a single value against a tag, reporting it as field.
func (v *Validator) ValidateVar(field string, value interface{}, tag string) error {
	err := v.validator.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		// Var errors carry no field name.
		return apierrors.ErrValidation(field, field+formatValidationError(fieldErrs[0]))
	}
	return apierrors.ErrValidation(field, err.Error())
}

// ContentTypeValidator ensures requests have proper content type
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, apierrors.New(
					http.StatusBadRequest,
					"MISSING_CONTENT_TYPE",
					"Content-Type header is required",
				))
				return
			}

			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			render.Status(r, http.StatusUnsupportedMediaType)
			render.JSON(w, r, apierrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]interface{}{
					"content_type": contentType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "courseid":
		return fmt.Sprintf("%s must be a numeric Canvas course id or sis_course_id:<id>", field)
	case "boolean":
		return fmt.Sprintf("%s must be true or false", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isCourseID validates Canvas course identifiers
func isCourseID(fl validator.FieldLevel) bool {
	return courseIDRe.MatchString(fl.Field().String())
}

// ParseBoolQuery reads an optional boolean query parameter.
func ParseBoolQuery(r *http.Request, param string) (bool, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, apierrors.ErrValidation(param, fmt.Sprintf("%s must be true or false", param))
	}
	return b, nil
}
