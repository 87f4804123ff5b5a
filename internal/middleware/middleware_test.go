package middleware

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	apierrors "respondkit/internal/errors"
	"respondkit/internal/infrastructure"
	"respondkit/internal/respond"
	"respondkit/internal/shared/testutil"
)

const acceptedAtJSON = "2024-03-01T10:00:00Z"

func newDispatcher(t *testing.T) (*respond.Dispatcher, *slog.Logger, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	d := respond.New(
		respond.WithLogger(logger),
		respond.WithClock(testutil.FixedClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))),
	)
	return d, logger, logs
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generates an id", incoming: ""},
		{name: "honours the incoming header", incoming: "req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen, traceID string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
				traceID = infrastructure.GetTraceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			if tt.incoming != "" {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.Len(t, seen, 36)
			}
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
			assert.Equal(t, seen, traceID)
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)

	handler := StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/notes", nil))

	rec, ok := logs.Find("request completed")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusCreated), rec.Attr("status"))
	assert.Equal(t, int64(2), rec.Attr("bytes"))
	assert.Equal(t, "/notes", rec.Attr("path"))
	assert.True(t, logs.ContainsMessage("request started"))
}

func TestRecoverer(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantBody   string
		wantLog    string
	}{
		{
			name:       "opaque panic becomes a 500 envelope",
			handler:    func(w http.ResponseWriter, r *http.Request) { panic("boom") },
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","message":"panic: boom","code":"INTERNAL_SERVER_ERROR"}`,
			wantLog:    "request failed",
		},
		{
			name:       "panic with a business error keeps its status",
			handler:    func(w http.ResponseWriter, r *http.Request) { panic(apierrors.ErrForbidden) },
			wantStatus: http.StatusForbidden,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","message":"Access denied","code":"FORBIDDEN"}`,
			wantLog:    "request failed",
		},
		{
			name: "panic after the header was sent is only logged",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				panic("late")
			},
			wantStatus: http.StatusAccepted,
			wantLog:    "panic after response started",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, logger, logs := newDispatcher(t)

			rec := httptest.NewRecorder()
			Recoverer(d, logger)(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Empty(t, rec.Body.String())
			}
			assert.True(t, logs.ContainsMessage(tt.wantLog))
		})
	}
}

func TestRecoverer_AbortHandlerPropagates(t *testing.T) {
	d, logger, _ := newDispatcher(t)
	handler := Recoverer(d, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRateLimiter(t *testing.T) {
	d, logger, logs := newDispatcher(t)
	rl := NewRateLimiter(1, 1, d, logger)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"acceptedAt":"`+acceptedAtJSON+`","message":"Rate limit exceeded","code":"RATE_LIMIT_EXCEEDED"}`, second.Body.String())
	assert.True(t, logs.ContainsMessage("rate limit exceeded"))
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		rps  float64
		want int
	}{
		{rps: 100, want: 1},
		{rps: 0.5, want: 2},
		{rps: 0.1, want: 10},
		{rps: 0, want: 60},
	}
	for _, tt := range tests {
		rl := NewRateLimiter(tt.rps, 1, nil, nil)
		assert.Equal(t, tt.want, rl.retryAfter(), "rps %v", tt.rps)
	}
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantCode   string
	}{
		{
			name: "finishes in time",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "silent handler past the deadline gets a 504",
			handler: func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			},
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   apierrors.CodeRequestTimeout,
		},
		{
			name: "handler that answered late keeps its response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, logger, logs := newDispatcher(t)

			rec := httptest.NewRecorder()
			Timeout(10*time.Millisecond, d, logger)(tt.handler).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Contains(t, rec.Body.String(), `"code":"`+tt.wantCode+`"`)
				assert.True(t, logs.ContainsMessage("request timeout"))
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	SecurityHeaders(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	SecurityHeaders(next).ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestOTelMiddleware(t *testing.T) {
	tel := testutil.NewTelemetry(t)
	metrics, err := infrastructure.NewDispatchMetrics(tel.Meter)
	require.NoError(t, err)

	var traceID string
	r := chi.NewRouter()
	r.Use(NewOTelMiddleware(tel.Tracer, metrics).Handler)
	r.Get("/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		traceID = infrastructure.GetTraceID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/notes/1", "/notes/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, int64(2), tel.CounterValue(t, "http_requests_total",
		attribute.String("http.route", "/notes/{id}"),
		attribute.Int("http.status_code", http.StatusOK),
	))

	spans := tel.Spans.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /notes/{id}", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().TraceID().String(), traceID)
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "10.0.0.7", GetRealIP(req))

	req.RemoteAddr = "10.0.0.7"
	assert.Equal(t, "10.0.0.7", GetRealIP(req))
}
