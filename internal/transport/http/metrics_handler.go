package http

import (
	"net/http"

	apierrors "rosterlink/internal/errors"
)

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct {
	exposition   http.Handler
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler wraps the exposition handler. A nil handler means
// metrics are disabled and the endpoint answers 404.
func NewMetricsHandler(exposition http.Handler, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{exposition: exposition, errorHandler: errorHandler}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exposition == nil {
		h.errorHandler.NotFound(w, r)
		return
	}
	h.exposition.ServeHTTP(w, r)
}
