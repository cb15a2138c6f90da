package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "rosterlink/internal/errors"
	appmiddleware "rosterlink/internal/middleware"
	"rosterlink/internal/services"
	"rosterlink/pkg/contracts/domain"
)

type MockReconcileService struct {
	mock.Mock
}

func (m *MockReconcileService) Reconcile(ctx context.Context, req services.ReconcileRequest) (domain.Envelope[domain.ReconcileReport], error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Envelope[domain.ReconcileReport]), args.Error(1)
}

type MockGradingService struct {
	mock.Mock
}

func (m *MockGradingService) Correlate(ctx context.Context, courseID string, refresh bool) (services.GradingEnvelope, error) {
	args := m.Called(ctx, courseID, refresh)
	return args.Get(0).(services.GradingEnvelope), args.Error(1)
}

func (m *MockGradingService) InvalidateCourse(courseID string) (int, error) {
	args := m.Called(courseID)
	return args.Int(0), args.Error(1)
}

type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthService) Version() map[string]interface{} {
	return m.Called().Get(0).(map[string]interface{})
}

type testDeps struct {
	logger       *slog.Logger
	logs         *bytes.Buffer
	validator    *appmiddleware.Validator
	errorHandler *apierrors.ErrorHandler
}

func newTestDeps() testDeps {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return testDeps{
		logger:       logger,
		logs:         &buf,
		validator:    appmiddleware.NewValidator(logger),
		errorHandler: apierrors.NewErrorHandler(logger, false),
	}
}

func decodeJSON(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}
