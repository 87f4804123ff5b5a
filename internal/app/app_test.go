package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"respondkit/internal/config"
	"respondkit/internal/infrastructure"
)

// lockedBuffer collects log output written from the server goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, mutate func(*config.Config)) (*Application, *lockedBuffer) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	if mutate != nil {
		mutate(cfg)
	}

	logs := &lockedBuffer{}
	a, err := NewApplication(cfg,
		WithStdout(logs),
		WithOTelOptions(
			infrastructure.WithRegistry(promclient.NewRegistry()),
			infrastructure.WithoutGlobals(),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.OTelProviders.Shutdown(context.Background())
	})
	return a, logs
}

type envelope struct {
	AcceptedAt string          `json:"acceptedAt"`
	Result     json.RawMessage `json:"result"`
	Message    string          `json:"message"`
	Code       string          `json:"code"`
	Detail     json.RawMessage `json:"detail"`
}

func serve(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func() *config.Config
		errMsg string
	}{
		{
			name:   "nil config",
			cfg:    func() *config.Config { return nil },
			errMsg: "nil configuration",
		},
		{
			name: "unknown log level",
			cfg: func() *config.Config {
				cfg := config.Default()
				cfg.Logging.Level = "loud"
				return cfg
			},
			errMsg: "invalid configuration",
		},
		{
			name: "success status outside 2xx",
			cfg: func() *config.Config {
				cfg := config.Default()
				cfg.Envelope.SuccessStatus = 302
				return cfg
			},
			errMsg: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewApplication(tt.cfg(), WithStdout(io.Discard))
			require.Error(t, err)
			assert.Nil(t, a)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestApplication_Routes(t *testing.T) {
	a, _ := newTestApp(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
		wantResult bool
	}{
		{name: "health", method: http.MethodGet, path: "/api/health", wantStatus: http.StatusOK, wantResult: true},
		{name: "readiness", method: http.MethodGet, path: "/api/health/ready", wantStatus: http.StatusOK, wantResult: true},
		{name: "version", method: http.MethodGet, path: "/api/version", wantStatus: http.StatusOK, wantResult: true},
		{name: "empty note list", method: http.MethodGet, path: "/api/notes", wantStatus: http.StatusOK, wantResult: true},
		{
			name:       "client log",
			method:     http.MethodPost,
			path:       "/api/client-logs",
			body:       `{"level":"warn","message":"slow render"}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "invalid note",
			method:     http.MethodPost,
			path:       "/api/notes",
			body:       `{"title":""}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "missing note",
			method:     http.MethodGet,
			path:       "/api/notes/does-not-exist",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "unknown path",
			method:     http.MethodGet,
			path:       "/nope",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "method not allowed",
			method:     http.MethodDelete,
			path:       "/api/version",
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "METHOD_NOT_ALLOWED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := serve(t, a.Router, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			require.NotEmpty(t, env.AcceptedAt)
			_, err := time.Parse(time.RFC3339Nano, env.AcceptedAt)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantCode, env.Code)
			if tt.wantResult {
				assert.NotEmpty(t, env.Result)
			}
		})
	}
}

func TestApplication_NoteLifecycle(t *testing.T) {
	a, _ := newTestApp(t, nil)

	rec, env := serve(t, a.Router, http.MethodPost, "/api/notes", `{"title":"milk","tags":["home"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID      string `json:"id"`
		Version int    `json:"version"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Version)

	rec, _ = serve(t, a.Router, http.MethodPut, "/api/notes/"+created.ID, `{"title":"oat milk","version":7}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = serve(t, a.Router, http.MethodPut, "/api/notes/"+created.ID, `{"title":"oat milk","tags":["home"],"version":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Result), `"tags":["home"]`)

	rec, env = serve(t, a.Router, http.MethodGet, "/api/notes/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":1,"tags":[{"tag":"home","count":1}]}`, string(env.Result))

	// updates replace the whole note, so omitting tags clears them
	rec, _ = serve(t, a.Router, http.MethodPut, "/api/notes/"+created.ID, `{"title":"oat milk","version":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = serve(t, a.Router, http.MethodGet, "/api/notes/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":1,"tags":[]}`, string(env.Result))

	rec, _ = serve(t, a.Router, http.MethodDelete, "/api/notes/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec, _ = serve(t, a.Router, http.MethodGet, "/api/notes/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplication_Middleware(t *testing.T) {
	a, logs := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, logs.String(), `"msg":"request completed"`)
}

func TestApplication_FailuresAreLogged(t *testing.T) {
	a, logs := newTestApp(t, nil)

	rec, _ := serve(t, a.Router, http.MethodGet, "/api/notes/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	out := logs.String()
	assert.Contains(t, out, `"msg":"request failed"`)
	assert.Contains(t, out, `"code":"NOT_FOUND"`)
	assert.Contains(t, out, `"path":"/api/notes/missing"`)
}

func TestApplication_RateLimit(t *testing.T) {
	a, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RPS = 0.001
		cfg.RateLimit.Burst = 1
	})

	rec, _ := serve(t, a.Router, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := serve(t, a.Router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestApplication_Metrics(t *testing.T) {
	a, _ := newTestApp(t, nil)

	rec, _ := serve(t, a.Router, http.MethodGet, "/api/notes/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "envelope_responses_total")
	assert.Contains(t, body, "envelope_converted_errors_total")
}

func TestApplication_MetricsDisabled(t *testing.T) {
	a, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.Telemetry.MetricExporter = "none"
	})

	rec, env := serve(t, a.Router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestApplication_StartStop(t *testing.T) {
	port := freePort(t)
	a, logs := newTestApp(t, func(cfg *config.Config) {
		cfg.Server.Port = port
		cfg.Server.ShutdownTimeout = 5 * time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx, cancel))

	resp, err := http.Get("http://" + a.Addr() + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.Stop(context.Background()))
	assert.NoError(t, ctx.Err(), "a clean shutdown must not cancel the run context")

	out := logs.String()
	assert.Contains(t, out, "Application started")
	assert.Contains(t, out, "Application shutdown complete")
}

func TestApplication_StartFailsOnBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	a, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err = a.Start(ctx, cancel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
