package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosterlink/internal/config"
	"rosterlink/internal/infrastructure"
)

// fakeCanvas serves one graded topic: Jane (101) is graded, Sam (102) is
// not, and Prof (900) replies to Jane.
func fakeCanvas(t *testing.T, topicCalls *int32) string {
	t.Helper()
	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	r := chi.NewRouter()
	r.Get("/api/v1/courses/42/discussion_topics", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(topicCalls, 1)
		writeJSON(w, []map[string]interface{}{{"id": 5, "title": "Week 1", "assignment_id": 77}})
	})
	r.Get("/api/v1/courses/42/discussion_topics/5/view", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"participants": []map[string]interface{}{
				{"id": 101, "display_name": "Jane Doe"},
				{"id": 102, "display_name": "Sam Lee"},
				{"id": 900, "display_name": "Prof Smith"},
			},
			"view": []map[string]interface{}{
				{"id": 10, "user_id": 101, "created_at": "2026-02-01T09:00:00Z", "message": "hi",
					"replies": []map[string]interface{}{
						{"id": 12, "user_id": 900, "created_at": "2026-02-01T10:00:00Z", "message": "good"},
					}},
				{"id": 11, "user_id": 102, "created_at": "2026-02-01T09:30:00Z", "message": "hello"},
			},
		})
	})
	r.Get("/api/v1/courses/42/enrollments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]interface{}{{"user_id": 900, "type": "TeacherEnrollment"}})
	})
	r.Get("/api/v1/courses/42/assignments/77/submissions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			writeJSON(w, []interface{}{})
			return
		}
		writeJSON(w, []map[string]interface{}{
			{"user_id": 101, "grade": "A"},
			{"user_id": 102, "grade": nil},
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newTestApp(t *testing.T, canvasURL string) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Canvas.BaseURL = canvasURL
	cfg.Canvas.RequestsPerSecond = 0
	cfg.Security.RateLimit.Enabled = false

	a, err := NewWithConfig(context.Background(), cfg, infrastructure.NewJSONLogger(io.Discard, "error"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func do(t *testing.T, a *Application, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if json.Valid(rec.Body.Bytes()) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestNewWithConfig_Wiring(t *testing.T) {
	a := newTestApp(t, "")

	assert.Nil(t, a.Services.Canvas, "canvas is off without a base url")
	assert.Nil(t, a.Services.Sheet)
	assert.NotNil(t, a.Services.Reconcile)
	assert.NotNil(t, a.Services.Grading)
	assert.NotNil(t, a.Metrics)
	assert.NotNil(t, a.SystemMetrics)
	assert.Equal(t, ":8080", a.Server.Addr)
	assert.Equal(t, a.Router, a.Server.Handler)
}

func TestNewWithConfig_BadSheetCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Sheets.SpreadsheetID = "sheet-1"
	cfg.Sheets.CredentialsFile = t.TempDir() + "/missing.json"

	_, err := NewWithConfig(context.Background(), cfg, infrastructure.NewJSONLogger(io.Discard, "error"))
	assert.ErrorContains(t, err, "sheets credentials")
}

func TestRouter_Health(t *testing.T) {
	a := newTestApp(t, "")

	rec, body := do(t, a, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, body = do(t, a, http.MethodGet, "/api/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	services := body["services"].(map[string]interface{})
	assert.Equal(t, "disabled", services["canvas"].(map[string]interface{})["status"])

	rec, body = do(t, a, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.AppVersion, body["version"])
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	a := newTestApp(t, "")

	rec, body := do(t, a, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(http.StatusNotFound), body["status"])

	rec, _ = do(t, a, http.MethodPut, "/api/reconcile", map[string]string{})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_GradingWithoutCanvas(t *testing.T) {
	a := newTestApp(t, "")

	rec, body := do(t, a, http.MethodGet, "/api/courses/42/grading", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "NETWORK", body["error_code"])
}

func TestRouter_GradingCacheLifecycle(t *testing.T) {
	var topicCalls int32
	a := newTestApp(t, fakeCanvas(t, &topicCalls))

	rec, body := do(t, a, http.MethodGet, "/api/courses/42/grading", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "fresh", body["source"])
	topics := body["data"].([]interface{})
	require.Len(t, topics, 1)
	needing := topics[0].(map[string]interface{})["students_needing_grades"].([]interface{})
	require.Len(t, needing, 1)
	assert.Equal(t, "Sam Lee", needing[0].(map[string]interface{})["name"])
	runID := body["run_id"]

	rec, body = do(t, a, http.MethodGet, "/api/courses/42/grading", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", body["source"])
	assert.Equal(t, runID, body["run_id"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&topicCalls))

	rec, body = do(t, a, http.MethodDelete, "/api/courses/42/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["removed"])

	rec, body = do(t, a, http.MethodGet, "/api/courses/42/grading", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fresh", body["source"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&topicCalls))
}

func TestRouter_Reconcile(t *testing.T) {
	var topicCalls int32
	a := newTestApp(t, fakeCanvas(t, &topicCalls))

	rec, body := do(t, a, http.MethodPost, "/api/reconcile", map[string]interface{}{
		"course_id":        "42",
		"registration_csv": "Name,Email,Session 1\nJane Doe,jane@x.edu,absent\nKim Park,kim@x.edu,present\n",
		"sessions": map[string]string{
			"session1": "Name (Original Name),User Email,Duration (Minutes),Guest\nJane Doe,,45,No\n",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "fresh", body["source"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"session1"}, data["sessions"])
	summary := data["summary"].(map[string]interface{})
	assert.Equal(t, float64(3), summary["participants"], "Jane and Sam from Canvas, Kim from registration")
	assert.GreaterOrEqual(t, summary["discrepancies"].(float64), float64(1), "Jane reported absent but attended")
}

func TestRouter_ReconcileValidation(t *testing.T) {
	a := newTestApp(t, "")

	rec, body := do(t, a, http.MethodPost, "/api/reconcile", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", body["error_code"])

	rec, _ = do(t, a, http.MethodPost, "/api/reconcile", map[string]interface{}{"course_id": "not a course"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	a := newTestApp(t, "")
	do(t, a, http.MethodGet, "/api/health", nil)

	rec, _ := do(t, a, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "system_goroutines")
	assert.Contains(t, rec.Body.String(), "cache_entries")
}

func TestStartStop(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 0
	a, err := NewWithConfig(context.Background(), cfg, infrastructure.NewJSONLogger(io.Discard, "error"))
	require.NoError(t, err)
	a.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx, cancel))
	assert.NoError(t, a.Stop(context.Background()))
}
