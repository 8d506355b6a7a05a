package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/worldstore/internal/logging"
	"github.com/R3E-Network/worldstore/internal/signedfetch"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestLoggingMiddleware_GeneratesTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithOutput("test", "info", "json", &buf)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetTraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	LoggingMiddleware(logger)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/values/x", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(TraceHeader))
	assert.Contains(t, buf.String(), seen)
	assert.Contains(t, buf.String(), `"status":418`)
}

func TestLoggingMiddleware_KeepsIncomingTraceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(TraceHeader, "trace-123")

	rr := httptest.NewRecorder()
	LoggingMiddleware(logging.NewNop())(okHandler()).ServeHTTP(rr, req)
	assert.Equal(t, "trace-123", rr.Header().Get(TraceHeader))
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware())
	router.Handle("/values/{key}", okHandler())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/values/abc", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimiter_KeysBySignerThenIP(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	handler := rl.Handler(okHandler())

	request := func(signer, remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/values", nil)
		req.RemoteAddr = remote
		if signer != "" {
			req = req.WithContext(signedfetch.WithIdentity(req.Context(), &signedfetch.Identity{SignerAddress: signer}, "w"))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, request("", "10.0.0.1:1111"))
	assert.Equal(t, http.StatusTooManyRequests, request("", "10.0.0.1:2222"), "same IP, different port")
	assert.Equal(t, http.StatusOK, request("", "10.0.0.2:1111"))

	assert.Equal(t, http.StatusOK, request("0xaaa", "10.0.0.1:1111"))
	assert.Equal(t, http.StatusTooManyRequests, request("0xaaa", "10.0.0.3:1111"))
	assert.Equal(t, http.StatusOK, request("0xbbb", "10.0.0.1:1111"))
}

func TestRateLimiter_RejectionBody(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	handler := rl.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/values", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "Rate limit exceeded")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	current := time.Now()
	rl.now = func() time.Time { return current }

	rl.getLimiter("old")
	current = current.Add(2 * time.Minute)
	rl.getLimiter("fresh")

	assert.Equal(t, 1, rl.Cleanup(time.Minute))
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "fresh")
}

func TestCORSMiddleware(t *testing.T) {
	cors := NewCORSMiddleware([]string{"https://play.example.org", ".example.com"})
	handler := cors.Handler(okHandler())

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://play.example.org", true},
		{"https://scene.example.com", true},
		{"https://evil.org", false},
		{"https://notexample.org", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/values", nil)
		req.Header.Set("Origin", tt.origin)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if tt.allowed {
			assert.Equal(t, tt.origin, rr.Header().Get("Access-Control-Allow-Origin"))
		} else {
			assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
		}
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := NewCORSMiddleware([]string{"*"}).Handler(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/env", nil)
	req.Header.Set("Origin", "https://any.org")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Confirm-Delete-All")
}
