package http

import (
	"context"

	"rosterlink/internal/services"
	"rosterlink/pkg/contracts/domain"
)

// ReconcileService runs reconciliations.
type ReconcileService interface {
	Reconcile(ctx context.Context, req services.ReconcileRequest) (domain.Envelope[domain.ReconcileReport], error)
}

// GradingService correlates grading state and manages the course cache.
type GradingService interface {
	Correlate(ctx context.Context, courseID string, refresh bool) (services.GradingEnvelope, error)
	InvalidateCourse(courseID string) (int, error)
}

// HealthService reports service health.
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}
