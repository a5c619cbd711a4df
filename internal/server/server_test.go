package server_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/server"
	"github.com/scrypster/companion/internal/storage/sqlite"
)

// startTestServer starts a server over an in-memory SQLite store on a
// random port and returns its base URL and a cancel func.
func startTestServer(t *testing.T, cfg *config.Config) (string, context.CancelFunc) {
	t.Helper()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	eng, err := engine.New(store, engine.DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addr, hub, err := server.Start(ctx, cfg, eng, store.Backend())
	require.NoError(t, err)
	require.NotNil(t, hub)

	t.Cleanup(func() {
		cancel()
		time.Sleep(50 * time.Millisecond)
		_ = store.Close()
	})
	return "http://" + addr, cancel
}

func TestServer_StartsOnRandomPort(t *testing.T) {
	baseURL, _ := startTestServer(t, config.Default())

	host, port, err := net.SplitHostPort(strings.TrimPrefix(baseURL, "http://"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.NotEqual(t, "0", port)
}

func TestServer_HealthEndpoint(t *testing.T) {
	baseURL, _ := startTestServer(t, config.Default())

	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "sqlite", health["backend"])
}

func TestServer_SecurityHeaders(t *testing.T) {
	baseURL, _ := startTestServer(t, config.Default())

	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for name, want := range expected {
		assert.Equal(t, want, resp.Header.Get(name), name)
	}
}

func TestServer_ChatRoundTrip(t *testing.T) {
	baseURL, _ := startTestServer(t, config.Default())

	resp, err := http.Post(baseURL+"/chat", "application/json", strings.NewReader(`{"message":"hello"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var turn engine.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turn))
	assert.NotEmpty(t, turn.Response)

	mem, err := http.Get(baseURL + "/memory")
	require.NoError(t, err)
	defer func() { _ = mem.Body.Close() }()
	var view engine.MemoryView
	require.NoError(t, json.NewDecoder(mem.Body).Decode(&view))
	assert.Equal(t, 1, view.ConversationCount)
}

func TestServer_WebRoutes(t *testing.T) {
	baseURL, _ := startTestServer(t, config.Default())

	for _, path := range []string{"/", "/static/app.js", "/static/style.css"} {
		resp, err := http.Get(baseURL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(baseURL + "/does-not-exist")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ProductionMode_RequiresAuth(t *testing.T) {
	cfg := config.Default()
	cfg.Security.SecurityMode = "production"
	cfg.Security.APIToken = "test-token"
	baseURL, _ := startTestServer(t, cfg)

	resp, err := http.Get(baseURL + "/memory")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, baseURL+"/memory", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer test-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Security.RateLimit = 1
	cfg.Security.RateBurst = 3
	baseURL, _ := startTestServer(t, cfg)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		resp, err := http.Get(baseURL + "/api/health")
		require.NoError(t, err)
		_ = resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 200}, codes[:3])
	assert.Equal(t, http.StatusTooManyRequests, codes[4])
}

func TestServer_CORS(t *testing.T) {
	baseURL, _ := startTestServer(t, config.Default())

	req, err := http.NewRequest(http.MethodOptions, baseURL+"/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_GracefulShutdown(t *testing.T) {
	baseURL, cancel := startTestServer(t, config.Default())

	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()

	cancel()
	require.Eventually(t, func() bool {
		client := &http.Client{Timeout: 200 * time.Millisecond, Transport: &http.Transport{DisableKeepAlives: true}}
		resp, err := client.Get(baseURL + "/api/health")
		if err == nil {
			_ = resp.Body.Close()
		}
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServer_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := config.Default()
	_, portStr, _ := net.SplitHostPort(l.Addr().String())
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port, err = strconv.Atoi(portStr)
	require.NoError(t, err)

	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()
	eng, err := engine.New(store, engine.DefaultConfig())
	require.NoError(t, err)

	_, _, err = server.Start(context.Background(), cfg, eng, "sqlite")
	assert.Error(t, err)
}
