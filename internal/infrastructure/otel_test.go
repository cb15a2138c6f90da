package infrastructure

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"rosterlink/internal/config"
	"rosterlink/pkg/contracts/domain"
)

func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(nil, NewJSONLogger(io.Discard, "info"))
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.Nil(t, providers.TracerProvider, "tracing is off by default")
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfigFrom(t *testing.T) {
	cfg := OTelConfigFrom(config.Default().Telemetry)
	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, config.AppVersion, cfg.ServiceVersion)
	assert.True(t, cfg.EnableMetrics)
	assert.False(t, cfg.EnableTracing)
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		config  *OTelConfig
		wantErr bool
	}{
		{
			name: "tracing to stdout",
			config: &OTelConfig{
				ServiceName: "test", ServiceVersion: "v1", Environment: "test",
				TraceExporter: "stdout", EnableTracing: true, EnableMetrics: true, SampleRatio: 1,
			},
		},
		{
			name: "metrics only",
			config: &OTelConfig{
				ServiceName: "test", ServiceVersion: "v1", Environment: "test",
				TraceExporter: "none", EnableMetrics: true,
			},
		},
		{
			name: "everything off",
			config: &OTelConfig{ServiceName: "test", ServiceVersion: "v1", Environment: "test"},
		},
		{
			name: "unknown exporter",
			config: &OTelConfig{
				ServiceName: "test", ServiceVersion: "v1", Environment: "test",
				TraceExporter: "zipkin", EnableTracing: true,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.config, NewJSONLogger(io.Discard, "info"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.config.EnableTracing {
				assert.NotNil(t, providers.Tracer)
			}
			if tt.config.EnableMetrics {
				assert.NotNil(t, providers.Meter)
			} else {
				assert.Nil(t, providers.PrometheusHTTP)
			}
			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestTraceCorrelation(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName: "test", ServiceVersion: "v1", Environment: "test",
		TraceExporter: "stdout", EnableTracing: true, SampleRatio: 1,
	}, NewJSONLogger(io.Discard, "info"))
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-operation")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), TraceIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))

	RecordError(ctx, assert.AnError)
	assert.True(t, span.IsRecording())
}

func TestBusinessMetrics_ExportedToPrometheus(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), NewJSONLogger(io.Discard, "info"))
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	p := domain.NewParticipant("canvas:1", domain.OriginCanvas)
	p.Discrepancies = append(p.Discrepancies, domain.Discrepancy{
		Type: domain.DiscrepancyFalseAbsent, Session: "session1", Severity: domain.SeverityHigh,
	})
	report := domain.ReconcileReport{Participants: []*domain.Participant{p}}
	report.Summary = domain.Summarize(report.Participants)
	notes := domain.ProcessingNotes{UnmatchedAttendance: 2}
	notes.AddFiltered("junk")

	RecordReconcileMetrics(ctx, metrics, report, notes, 20*time.Millisecond)
	RecordGradingMetrics(ctx, metrics, []domain.GradingTopic{{StudentsNeedingGrades: make([]domain.StudentStatus, 3)}}, domain.ProcessingNotes{}, time.Second)
	RecordCacheLookup(ctx, metrics, "grading", true)
	RecordCacheLookup(ctx, metrics, "grading", false)

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.Contains(t, text, "reconcile_runs_total")
	assert.Contains(t, text, `severity="high"`)
	assert.Contains(t, text, `reason="junk"`)
	assert.Contains(t, text, "grading_students_needing_grades_total")
	assert.Contains(t, text, `outcome="hit"`)
}

func TestRecordMetrics_NilIsNoop(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordReconcileMetrics(ctx, nil, domain.ReconcileReport{}, domain.ProcessingNotes{}, 0)
		RecordGradingMetrics(ctx, nil, nil, domain.ProcessingNotes{}, 0)
		RecordCacheLookup(ctx, nil, "posts", false)
	})
}
