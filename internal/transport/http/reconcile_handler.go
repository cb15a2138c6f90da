package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "rosterlink/internal/errors"
	"rosterlink/internal/exporter"
	appmiddleware "rosterlink/internal/middleware"
	"rosterlink/internal/services"
	api "rosterlink/pkg/contracts/api/v1"
)

// ReconcileHandler serves reconciliation runs.
type ReconcileHandler struct {
	service      ReconcileService
	validator    *appmiddleware.Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(service ReconcileService, validator *appmiddleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *ReconcileHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "reconcile")),
	}
}

// Routes returns the reconcile routes
func (h *ReconcileHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(appmiddleware.ContentTypeValidator("application/json"))
	r.Post("/", h.Reconcile)
	return r
}

// Reconcile handles POST /api/reconcile
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	format, err := responseFormat(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var body api.ReconcileRequest
	if err := h.validator.DecodeJSON(r, &body); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "reconcile requested",
		slog.String("request_id", appmiddleware.GetRequestID(r.Context())),
		slog.String("course_id", body.CourseID),
		slog.Int("sessions", len(body.Sessions)),
		slog.Bool("use_sheet", body.UseSheet),
		slog.String("format", string(format)),
	)

	env, err := h.service.Reconcile(r.Context(), services.ReconcileRequest{
		CourseID:        body.CourseID,
		RegistrationCSV: body.RegistrationCSV,
		Sessions:        body.Sessions,
		UseSheet:        body.UseSheet,
		Refresh:         body.Refresh,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := respond(w, r, format, "reconcile", env, exporter.ReconcileTables(env.Data, env.Notes)); err != nil {
		h.errorHandler.HandleError(w, r, err)
	}
}
