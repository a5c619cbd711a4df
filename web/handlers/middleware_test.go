package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/web/handlers"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		token  string
		header string
		want   int
	}{
		{"development skips auth", "development", "secret", "", http.StatusOK},
		{"production missing token", "production", "secret", "", http.StatusUnauthorized},
		{"production wrong token", "production", "secret", "Bearer nope", http.StatusUnauthorized},
		{"production without scheme", "production", "secret", "secret", http.StatusUnauthorized},
		{"production valid token", "production", "secret", "Bearer secret", http.StatusOK},
		{"production with no configured token", "production", "", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Security.SecurityMode = tt.mode
			cfg.Security.APIToken = tt.token

			req := httptest.NewRequest(http.MethodGet, "/memory", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handlers.RequireAuth(okHandler, cfg).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "unauthorized")
			}
		})
	}
}

func TestRateLimitMiddleware_AllowsNormalRate(t *testing.T) {
	handler := handlers.RateLimitMiddleware(okHandler, handlers.NewRateLimiter(10, 20))

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/memory", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitMiddleware_RejectsExcessiveRate(t *testing.T) {
	handler := handlers.RateLimitMiddleware(okHandler, handlers.NewRateLimiter(1, 2))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/memory", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/memory", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestRateLimitMiddleware_PerClient(t *testing.T) {
	handler := handlers.RateLimitMiddleware(okHandler, handlers.NewRateLimiter(1, 1))

	first := httptest.NewRequest(http.MethodGet, "/memory", nil)
	first.RemoteAddr = "10.0.0.1:5555"
	second := httptest.NewRequest(http.MethodGet, "/memory", nil)
	second.RemoteAddr = "10.0.0.2:5555"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_BoundsTrackedClients(t *testing.T) {
	rl := handlers.NewRateLimiter(1, 1)
	handler := handlers.RateLimitMiddleware(okHandler, rl)

	for i := 0; i < 20000; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = fmt.Sprintf("10.%d.%d.%d:1234", i>>16&0xff, i>>8&0xff, i&0xff)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	assert.Equal(t, 10000, rl.Tracked())
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.SecurityHeaders(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("Origin", "http://example.com")
		w := httptest.NewRecorder()
		handlers.CORS(okHandler, []string{"*"}).ServeHTTP(w, req)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("listed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		handlers.CORS(okHandler, []string{"http://localhost:3000/"}).ServeHTTP(w, req)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("Origin", "http://evil.com")
		w := httptest.NewRecorder()
		handlers.CORS(okHandler, []string{"http://localhost:3000"}).ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
		req.Header.Set("Origin", "http://example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		handlers.CORS(http.NotFoundHandler(), []string{"*"}).ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
	})
}

func TestLogRequests_PassesThroughStatus(t *testing.T) {
	teapot := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	w := httptest.NewRecorder()
	handlers.LogRequests(teapot).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
