package server

import (
	"context"
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

	"github.com/izahai/SceneFit/internal/capture"
	"github.com/izahai/SceneFit/internal/capture/capturetest"
	"github.com/izahai/SceneFit/internal/config"
	"github.com/izahai/SceneFit/internal/metrics"
	"github.com/izahai/SceneFit/internal/session"
	"github.com/izahai/SceneFit/internal/transcription"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return s.text, s.err
}

func (s *stubTranscriber) GetStats() transcription.ClientStats {
	return transcription.ClientStats{TotalRequests: 3, SuccessRequests: 2, FailedRequests: 1}
}

type testEnv struct {
	server  *httptest.Server
	client  *session.Client
	backend *capturetest.Backend
}

func newTestEnv(t *testing.T, tr *stubTranscriber, samples []float32) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Transcription.URL = "https://user:pw@asr.example.com/transcribe?key=secret"

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	backend := &capturetest.Backend{Samples: samples}
	client := session.NewClient(logger, session.Config{
		Capture: capture.Options{SampleRate: 16000, MaxDurationSeconds: 15, Channels: 1},
	}, capture.NewRecorder(backend, logger), tr, m)

	h := NewHTTPServer(HTTPServerConfig{Address: "127.0.0.1", Port: 0, Gatherer: reg}, logger, cfg, client, tr, m)
	srv := httptest.NewServer(h.Handler())

	t.Cleanup(func() {
		srv.Close()
		client.Close()
	})

	return &testEnv{server: srv, client: client, backend: backend}
}

func (e *testEnv) do(t *testing.T, method, path string) (int, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := map[string]interface{}{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestRootListsEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{text: "x"}, nil)

	status, body := env.do(t, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["endpoints"], "POST /record/start")

	status, _ = env.do(t, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRecordStartStopWait(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{text: "hello from http"}, []float32{0.1, 0.2})

	status, body := env.do(t, http.MethodPost, "/record/start")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["recording"])
	assert.Equal(t, false, body["already_recording"])

	status, body = env.do(t, http.MethodPost, "/record/start")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["already_recording"])
	assert.Equal(t, 1, env.backend.Opens())

	status, body = env.do(t, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "recording", body["state"])

	status, body = env.do(t, http.MethodPost, "/record/stop?wait=true")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello from http", body["transcript"])

	status, body = env.do(t, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "idle", body["state"])
}

func TestRecordStopWhileIdle(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{text: "x"}, nil)

	status, body := env.do(t, http.MethodPost, "/record/stop")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not recording", body["error"])
}

func TestRecordStopAsync(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{text: "later"}, []float32{0.3})

	status, _ := env.do(t, http.MethodPost, "/record/start")
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodPost, "/record/stop")
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, true, body["submitted"])

	assert.Eventually(t, func() bool {
		return env.client.Stats().LastTranscript == "later"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecordStopErrors(t *testing.T) {
	tests := []struct {
		name    string
		tr      *stubTranscriber
		samples []float32
		status  int
		kind    string
	}{
		{"no samples", &stubTranscriber{text: "x"}, nil, http.StatusInternalServerError, "capture_error"},
		{"transport", &stubTranscriber{err: transcription.Errorf(transcription.KindTransport, "HTTP error: 503 Service Unavailable")}, []float32{0.1}, http.StatusBadGateway, "transport_error"},
		{"empty", &stubTranscriber{err: transcription.Errorf(transcription.KindEmptyTranscript, "Empty transcript response.")}, []float32{0.1}, http.StatusUnprocessableEntity, "empty_transcript"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.tr, tt.samples)

			status, _ := env.do(t, http.MethodPost, "/record/start")
			require.Equal(t, http.StatusOK, status)

			status, body := env.do(t, http.MethodPost, "/record/stop?wait=true")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, body["kind"])
		})
	}
}

func TestRecordStartCaptureFailure(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{text: "x"}, nil)
	env.backend.OpenErr = capture.ErrDeviceNotFound

	status, body := env.do(t, http.MethodPost, "/record/start")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "capture_error", body["kind"])
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{text: "x"}, nil)

	status, _ := env.do(t, http.MethodGet, "/record/start")
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	status, _ = env.do(t, http.MethodPost, "/health")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestConfigIsSanitized(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{text: "x"}, nil)

	status, body := env.do(t, http.MethodGet, "/config")
	require.Equal(t, http.StatusOK, status)

	tr, ok := body["transcription"].(map[string]interface{})
	require.True(t, ok)
	url, _ := tr["url"].(string)
	assert.NotContains(t, url, "pw")
	assert.NotContains(t, url, "secret")
	assert.Contains(t, url, "asr.example.com")
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{text: "x"}, nil)

	status, body := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = env.do(t, http.MethodGet, "/stats/transcription")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["total_requests"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{text: "x"}, nil)

	env.do(t, http.MethodGet, "/health")

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "voice_http_requests_total")
}

func TestStartAndStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := &stubTranscriber{text: "x"}
	client := session.NewClient(logger, session.Config{
		Capture: capture.Options{SampleRate: 16000, MaxDurationSeconds: 1, Channels: 1},
	}, capture.NewRecorder(&capturetest.Backend{}, logger), tr, nil)
	defer client.Close()

	h := NewHTTPServer(HTTPServerConfig{Address: "127.0.0.1", Port: 0, Gatherer: prometheus.NewRegistry()},
		logger, config.Default(), client, tr, nil)
	require.NoError(t, h.Start())

	resp, err := http.Get("http://" + h.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, h.Stop(ctx))
}
