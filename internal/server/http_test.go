package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/voxsql/internal/config"
	"github.com/skypro1111/voxsql/internal/dispatch"
	"github.com/skypro1111/voxsql/internal/metrics"
	"github.com/skypro1111/voxsql/internal/pipeline"
	"github.com/skypro1111/voxsql/internal/query"
)

type fakeGate struct {
	history *dispatch.History
}

func (g *fakeGate) Execute(_ context.Context, stmt string) (*query.Result, error) {
	switch {
	case strings.HasPrefix(stmt, "DROP"):
		return nil, &query.ForbiddenError{Keyword: "DROP"}
	case strings.Contains(stmt, "missing"):
		return nil, errors.New("no such table: missing")
	}
	return &query.Result{
		Columns: []string{"id"},
		Rows:    []map[string]any{{"id": int64(1)}, {"id": int64(2)}},
		Elapsed: 3 * time.Millisecond,
	}, nil
}

func (g *fakeGate) History() *dispatch.History {
	return g.history
}

type fakePipeline struct{}

func (fakePipeline) Stats() pipeline.Stats {
	return pipeline.Stats{State: "speaking", BlocksProcessed: 42, BufferedSamples: 960}
}

func newTestServer(t *testing.T) (*HTTPServer, *metrics.Metrics) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	history := dispatch.NewHistory(10)
	history.Add(dispatch.Outcome{ID: "u1", Question: "how many orders", Status: dispatch.StatusExecuted, Rows: 1})

	cfg := config.Default()
	cfg.Transcription.APIKey = "sk-secret"
	cfg.Database.DSN = "postgres://admin:hunter2@db/prod"

	h, err := NewHTTPServer(cfg, Deps{
		Pipeline: fakePipeline{},
		Gate:     &fakeGate{history: history},
		Gatherer: reg,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return h, m
}

func do(t *testing.T, h *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNewHTTPServerRequiresGate(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	if _, err := NewHTTPServer(config.Default(), Deps{}, slog.Default(), m); err == nil {
		t.Error("Expected error without a gate")
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	body := decode(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", body["status"])
	}
	components := body["components"].(map[string]any)
	if _, ok := components["pipeline"]; !ok {
		t.Error("Expected pipeline component")
	}
	if _, ok := components["transcription"]; ok {
		t.Error("Expected no transcription component when not configured")
	}
}

func TestStats(t *testing.T) {
	h, _ := newTestServer(t)

	body := decode(t, do(t, h, http.MethodGet, "/stats", ""))
	p := body["pipeline"].(map[string]any)
	if p["state"] != "speaking" || p["blocks_processed"] != float64(42) {
		t.Errorf("Unexpected pipeline stats: %v", p)
	}
	if body["queries"] != float64(1) {
		t.Errorf("Expected 1 query, got %v", body["queries"])
	}
}

func TestConfigOmitsSecrets(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	raw := rec.Body.String()
	for _, secret := range []string{"sk-secret", "hunter2", "api_key", "dsn"} {
		if strings.Contains(raw, secret) {
			t.Errorf("Expected %q to be omitted from /config", secret)
		}
	}

	body := decode(t, rec)
	if body["nlsql"].(map[string]any)["role"] != "admin" {
		t.Errorf("Expected role admin in config")
	}
}

func TestUtterances(t *testing.T) {
	h, _ := newTestServer(t)

	body := decode(t, do(t, h, http.MethodGet, "/utterances", ""))
	if body["count"] != float64(1) {
		t.Fatalf("Expected 1 utterance, got %v", body["count"])
	}
	first := body["utterances"].([]any)[0].(map[string]any)
	if first["question"] != "how many orders" {
		t.Errorf("Expected question to round-trip, got %v", first)
	}
}

func TestQuery(t *testing.T) {
	h, m := newTestServer(t)

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "select", method: http.MethodPost, body: `{"sql":"SELECT id FROM Orders"}`, status: http.StatusOK},
		{name: "forbidden", method: http.MethodPost, body: `{"sql":"DROP TABLE Orders"}`, status: http.StatusForbidden},
		{name: "execution error", method: http.MethodPost, body: `{"sql":"SELECT * FROM missing"}`, status: http.StatusUnprocessableEntity},
		{name: "empty sql", method: http.MethodPost, body: `{}`, status: http.StatusBadRequest},
		{name: "bad json", method: http.MethodPost, body: `{`, status: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, body: "", status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, "/query", tt.body)
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d (%s)", tt.status, rec.Code, rec.Body.String())
			}
		})
	}

	body := decode(t, do(t, h, http.MethodPost, "/query", `{"sql":"SELECT id FROM Orders"}`))
	if rows := body["rows"].([]any); len(rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(rows))
	}

	forbidden := decode(t, do(t, h, http.MethodPost, "/query", `{"sql":"DROP TABLE Orders"}`))
	if forbidden["keyword"] != "DROP" {
		t.Errorf("Expected keyword DROP, got %v", forbidden["keyword"])
	}

	if got := testutil.ToFloat64(m.HTTPErrors.WithLabelValues("POST", "/query", "client_error")); got < 4 {
		t.Errorf("Expected client errors to be counted, got %f", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	do(t, h, http.MethodGet, "/health", "")
	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "voxsql_http_requests_total") {
		t.Error("Expected voxsql metrics in exposition")
	}
}

func TestRootAndNotFound(t *testing.T) {
	h, _ := newTestServer(t)

	body := decode(t, do(t, h, http.MethodGet, "/", ""))
	endpoints := body["endpoints"].(map[string]any)
	if _, ok := endpoints["GET /audio"]; ok {
		t.Error("Expected no audio endpoint without a websocket source")
	}

	if rec := do(t, h, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestAudioRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	audio := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	h, err := NewHTTPServer(config.Default(), Deps{
		Gate:     &fakeGate{history: dispatch.NewHistory(1)},
		Audio:    audio,
		Gatherer: reg,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if rec := do(t, h, http.MethodGet, "/audio", ""); rec.Code != http.StatusTeapot {
		t.Errorf("Expected audio handler to be mounted, got %d", rec.Code)
	}
}
