package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/asynqq/internal/config"
	"github.com/phrazzld/asynqq/internal/engine"
	"github.com/phrazzld/asynqq/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, start bool) *engine.Engine {
	t.Helper()
	cfg := config.Default().Engine
	cfg.AdmissionBackoff = time.Millisecond

	eng, err := engine.New(cfg, testLogger())
	require.NoError(t, err)
	if start {
		eng.Start()
	}
	t.Cleanup(eng.Stop)
	return eng
}

func newTestServer(t *testing.T, eng TaskEngine) *httptest.Server {
	t.Helper()
	srv, err := NewServer(":0", eng, prometheus.NewRegistry(), testLogger())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthzEndpoint(t *testing.T) {
	ts := newTestServer(t, newTestEngine(t, false))

	resp := doRequest(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, newTestEngine(t, false))

	// Make a request to generate metrics
	doRequest(t, http.MethodGet, ts.URL+"/healthz", "")

	resp := doRequest(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(bodyBytes)
	assert.Contains(t, body, "asynqq_http_requests_total")
	assert.Contains(t, body, `path="/healthz"`)
}

func TestSubmitTask(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		eng := newTestEngine(t, false)
		ts := newTestServer(t, eng)

		resp := doRequest(t, http.MethodPost, ts.URL+"/v1/tasks", `{"id":"1","message":"hello"}`)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body SubmitTaskResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, "1", body.ID)
		assert.Equal(t, task.StatusPending, body.Status)
		assert.Equal(t, 1, eng.PendingSize())
	})

	t.Run("wait returns result", func(t *testing.T) {
		ts := newTestServer(t, newTestEngine(t, true))

		resp := doRequest(t, http.MethodPost, ts.URL+"/v1/tasks?wait=true", `{"message":"hello","delay_ms":5}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body TaskResponse
		decodeBody(t, resp, &body)
		assert.NotEmpty(t, body.ID)
		assert.Equal(t, task.StatusCompleted, body.Status)
		result, ok := body.Result.(string)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(result, "hello (started at "))
		assert.Contains(t, result, ", ended at ")
		assert.NotNil(t, body.StartedAt)
		assert.NotNil(t, body.FinishedAt)
	})

	t.Run("duplicate id", func(t *testing.T) {
		ts := newTestServer(t, newTestEngine(t, false))

		doRequest(t, http.MethodPost, ts.URL+"/v1/tasks", `{"id":"dup","message":"a"}`)
		resp := doRequest(t, http.MethodPost, ts.URL+"/v1/tasks", `{"id":"dup","message":"b"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, "Task ID already in use", body["error"])
		assert.NotEmpty(t, body["trace_id"])
	})

	testCases := []struct {
		name    string
		body    string
		message string
	}{
		{name: "malformed json", body: `{"message":`, message: "Invalid request format"},
		{name: "unknown field", body: `{"message":"a","priority":1}`, message: "Invalid request format"},
		{name: "missing message", body: `{"delay_ms":5}`, message: "Invalid message: required field"},
		{name: "negative delay", body: `{"message":"a","delay_ms":-1}`, message: "Invalid delay_ms: too small"},
		{name: "delay too long", body: `{"message":"a","delay_ms":60001}`, message: "Invalid delay_ms: too large"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, newTestEngine(t, false))

			resp := doRequest(t, http.MethodPost, ts.URL+"/v1/tasks", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]any
			decodeBody(t, resp, &body)
			assert.Equal(t, tc.message, body["error"])
		})
	}
}

func TestGetTask(t *testing.T) {
	eng := newTestEngine(t, false)
	ts := newTestServer(t, eng)

	doRequest(t, http.MethodPost, ts.URL+"/v1/tasks", `{"id":"7","message":"hi","delay_ms":10}`)

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/tasks/7", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body TaskResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "7", body.ID)
	assert.Equal(t, task.StatusPending, body.Status)
	assert.Equal(t, "hi", body.Params["message"])

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/tasks/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteTask(t *testing.T) {
	eng := newTestEngine(t, false)
	ts := newTestServer(t, eng)

	doRequest(t, http.MethodPost, ts.URL+"/v1/tasks", `{"id":"42","message":"never"}`)
	require.Equal(t, 1, eng.PendingSize())

	resp := doRequest(t, http.MethodDelete, ts.URL+"/v1/tasks/42", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, eng.PendingSize())

	resp = doRequest(t, http.MethodDelete, ts.URL+"/v1/tasks/42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetStats(t *testing.T) {
	eng := newTestEngine(t, false)
	ts := newTestServer(t, eng)

	for _, id := range []string{"a", "b"} {
		body, err := json.Marshal(SubmitTaskRequest{ID: id, Message: "m"})
		require.NoError(t, err)
		resp := doRequest(t, http.MethodPost, ts.URL+"/v1/tasks", string(bytes.TrimSpace(body)))
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body StatsResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, StatsResponse{Pending: 2, Running: 0}, body)
}

func TestNewServer_DuplicateRegistry(t *testing.T) {
	eng := newTestEngine(t, false)
	reg := prometheus.NewRegistry()

	_, err := NewServer(":0", eng, reg, testLogger())
	require.NoError(t, err)

	_, err = NewServer(":0", eng, reg, testLogger())
	assert.Error(t, err)
}
