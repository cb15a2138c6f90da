package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rosterlink/internal/services"
	"rosterlink/pkg/contracts/domain"
)

func sampleReconcileEnvelope() domain.Envelope[domain.ReconcileReport] {
	p := domain.NewParticipant("canvas:101", domain.OriginCanvas)
	p.CanvasDisplayName = "Jane Doe"
	p.CanvasPostCount = 2
	report := domain.ReconcileReport{
		Participants: []*domain.Participant{p},
		Sessions:     []string{},
	}
	report.Summary = domain.Summarize(report.Participants)
	return domain.Envelope[domain.ReconcileReport]{
		RunID:       "run-1",
		Source:      domain.SourceFresh,
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:        report,
	}
}

func newReconcileServer(svc ReconcileService) (http.Handler, testDeps) {
	deps := newTestDeps()
	return NewReconcileHandler(svc, deps.validator, deps.errorHandler, deps.logger).Routes(), deps
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestReconcileHandler_JSON(t *testing.T) {
	svc := new(MockReconcileService)
	svc.On("Reconcile", mock.Anything, mock.MatchedBy(func(req services.ReconcileRequest) bool {
		return req.CourseID == "42" && req.Sessions["session1"] != "" && !req.Refresh
	})).Return(sampleReconcileEnvelope(), nil)

	handler, _ := newReconcileServer(svc)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("/", `{"course_id":"42","sessions":{"session1":"Name,Duration\nJane,60"}}`))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec.Body)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "fresh", body["source"])
	data := body["data"].(map[string]interface{})
	assert.Len(t, data["participants"], 1)
	svc.AssertExpectations(t)
}

func TestReconcileHandler_XLSX(t *testing.T) {
	svc := new(MockReconcileService)
	svc.On("Reconcile", mock.Anything, mock.Anything).Return(sampleReconcileEnvelope(), nil)

	handler, _ := newReconcileServer(svc)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("/?format=xlsx", `{"registration_csv":"Name,Email\nJane,j@x.edu"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "reconcile_")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"participants", "discrepancies", "notes"}, f.GetSheetList())
}

func TestReconcileHandler_CSV(t *testing.T) {
	svc := new(MockReconcileService)
	svc.On("Reconcile", mock.Anything, mock.Anything).Return(sampleReconcileEnvelope(), nil)

	handler, _ := newReconcileServer(svc)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("/?format=csv", `{"course_id":"42"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(rec.Body.String(), "\ufeff")), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Origin,Name"))
	assert.Contains(t, lines[1], "Jane Doe")
}

func TestReconcileHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{name: "malformed body", target: "/", body: `{"course_id":`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "unknown field", target: "/", body: `{"course":"42"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "bad course id", target: "/", body: `{"course_id":"4 2"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "bad format", target: "/?format=pdf", body: `{"course_id":"42"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "no sources", target: "/", body: `{}`, serviceErr: services.ErrNoSources, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION"},
		{name: "canvas unavailable", target: "/", body: `{"course_id":"42"}`, serviceErr: services.ErrCanvasUnavailable, wantStatus: http.StatusBadGateway, wantCode: "NETWORK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReconcileService)
			if tt.serviceErr != nil {
				svc.On("Reconcile", mock.Anything, mock.Anything).
					Return(domain.Envelope[domain.ReconcileReport]{}, tt.serviceErr)
			}

			handler, _ := newReconcileServer(svc)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, postJSON(tt.target, tt.body))

			assert.Equal(t, tt.wantStatus, rec.Code)
			problem := decodeJSON(t, rec.Body)
			assert.Equal(t, tt.wantCode, problem["error_code"])
			assert.Equal(t, float64(tt.wantStatus), problem["status"])
			if tt.serviceErr == nil {
				svc.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestReconcileHandler_RequiresJSON(t *testing.T) {
	handler, _ := newReconcileServer(new(MockReconcileService))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("course_id=42"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestNewReconcileHandler_NilService(t *testing.T) {
	deps := newTestDeps()
	assert.Panics(t, func() {
		NewReconcileHandler(nil, deps.validator, deps.errorHandler, deps.logger)
	})
}
