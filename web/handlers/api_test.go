package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/emotion"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/storage/sqlite"
	"github.com/scrypster/companion/pkg/types"
	"github.com/scrypster/companion/web"
	"github.com/scrypster/companion/web/handlers"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := engine.DefaultConfig()
	cfg.Rand = rand.New(rand.NewPCG(7, 7))
	eng, err := engine.New(store, cfg)
	require.NoError(t, err)
	return eng
}

func newRouter(t *testing.T, cfg *config.Config, c handlers.Companion) http.Handler {
	t.Helper()
	page, err := handlers.NewPageHandler(c, web.Assets)
	require.NoError(t, err)
	return handlers.Routes(cfg, handlers.NewAPIHandlers(c, "sqlite"), page, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestChat(t *testing.T) {
	h := newRouter(t, config.Default(), newEngine(t))

	w := do(t, h, http.MethodPost, "/chat", `{"message":"I feel so happy today"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["response"])
	assert.Equal(t, "happy", body["emotion"])
	assert.Equal(t, "happy", body["companion_emotion"])
	ctx := body["context"].(map[string]interface{})
	assert.Equal(t, false, ctx["adventure_active"])
	assert.Equal(t, float64(1), ctx["relationship_depth"])
	assert.Equal(t, "Cozy Space", ctx["location"].(map[string]interface{})["name"])
}

func TestChat_BadRequests(t *testing.T) {
	h := newRouter(t, config.Default(), newEngine(t))

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing message", `{}`, "No message provided"},
		{"empty message", `{"message":""}`, "No message provided"},
		{"blank message", `{"message":"   "}`, "No message provided"},
		{"malformed JSON", `{"message":`, "invalid JSON"},
		{"wrong type", `{"message":42}`, "invalid JSON"},
		{"no body", ``, "request body is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode[handlers.ErrorResponse](t, w)
			assert.Equal(t, tt.want, resp.Error)
			assert.Equal(t, "BAD_REQUEST", resp.Code)
		})
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	h := newRouter(t, config.Default(), newEngine(t))
	w := do(t, h, http.MethodGet, "/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decode[handlers.ErrorResponse](t, w).Code)
}

func TestMemory(t *testing.T) {
	eng := newEngine(t)
	h := newRouter(t, config.Default(), eng)

	w := do(t, h, http.MethodGet, "/memory", "")
	require.Equal(t, http.StatusOK, w.Code)
	var empty map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.Equal(t, []interface{}{}, empty["conversations"])
	assert.Nil(t, empty["last_interaction"])

	for _, msg := range []string{"hello", "I am sad"} {
		require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/chat", `{"message":"`+msg+`"}`).Code)
	}

	w = do(t, h, http.MethodGet, "/memory", "")
	require.Equal(t, http.StatusOK, w.Code)
	mem := decode[engine.MemoryView](t, w)
	assert.Equal(t, 2, mem.ConversationCount)
	require.Len(t, mem.Conversations, 2)
	assert.Equal(t, "I am sad", mem.Conversations[0].UserInput)
	assert.Equal(t, types.EmotionSad, mem.EmotionalPatterns.RecentMood)
	assert.NotNil(t, mem.LastInteraction)
}

func TestAdventure(t *testing.T) {
	h := newRouter(t, config.Default(), newEngine(t))

	w := do(t, h, http.MethodPost, "/adventure", `{"action":"start_adventure"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[engine.AdventureResult](t, w)
	assert.Equal(t, "Adventure mode activated!", res.Message)
	require.NotNil(t, res.World)
	assert.True(t, res.World.AdventureActive)

	w = do(t, h, http.MethodPost, "/adventure", `{"action":"roll_dice","dice":"2d6+1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[engine.AdventureResult](t, w)
	require.NotNil(t, res.DiceResult)
	assert.Len(t, res.DiceResult.Rolls, 2)
	assert.Equal(t, 1, res.DiceResult.Modifier)

	w = do(t, h, http.MethodPost, "/adventure", `{"action":"roll_dice","dice":"d6"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[engine.AdventureResult](t, w)
	assert.Equal(t, "Invalid dice notation", res.DiceResult.Error)

	w = do(t, h, http.MethodPost, "/adventure", `{"action":"end_adventure"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[engine.AdventureResult](t, w)
	assert.Equal(t, "Returning to regular conversation", res.Message)
	assert.False(t, res.World.AdventureActive)

	w = do(t, h, http.MethodPost, "/adventure", `{"action":"fly"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unknown action", decode[handlers.ErrorResponse](t, w).Error)
}

func TestEmotion(t *testing.T) {
	h := newRouter(t, config.Default(), newEngine(t))

	w := do(t, h, http.MethodPost, "/emotion", `{"text":"I'm so worried and nervous"}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[emotion.Analysis](t, w)
	assert.Equal(t, types.EmotionAnxious, got.Emotion)
	assert.Equal(t, 0.75, got.Confidence)
	assert.Equal(t, "Detected primary emotion: anxious", got.Analysis)

	w = do(t, h, http.MethodPost, "/emotion", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No text provided", decode[handlers.ErrorResponse](t, w).Error)
}

func TestPreferences(t *testing.T) {
	h := newRouter(t, config.Default(), newEngine(t))

	w := do(t, h, http.MethodGet, "/preferences", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "friendly", decode[types.UserPreferences](t, w).CommunicationStyle)

	w = do(t, h, http.MethodPut, "/preferences", `{"communication_style":"playful","favorite_topics":["space"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/preferences", "")
	got := decode[types.UserPreferences](t, w)
	assert.Equal(t, "playful", got.CommunicationStyle)
	assert.Equal(t, []string{"space"}, got.FavoriteTopics)

	w = do(t, h, http.MethodPut, "/preferences", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	cfg := config.Default()
	cfg.Security.SecurityMode = "production"
	cfg.Security.APIToken = "secret"
	h := newRouter(t, cfg, newEngine(t))

	w := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[handlers.HealthResponse](t, w)
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, "sqlite", got.Backend)
}

func TestProductionRequiresToken(t *testing.T) {
	cfg := config.Default()
	cfg.Security.SecurityMode = "production"
	cfg.Security.APIToken = "secret"
	h := newRouter(t, cfg, newEngine(t))

	w := do(t, h, http.MethodGet, "/memory", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[handlers.ErrorResponse](t, w).Code)

	req := httptest.NewRequest(http.MethodGet, "/memory", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIndexPage(t *testing.T) {
	eng := newEngine(t)
	h := newRouter(t, config.Default(), eng)
	_, err := eng.Chat(context.Background(), "<b>hi</b> there")
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "<title>Companion</title>")
	assert.Contains(t, body, "Cozy Space")
	assert.Contains(t, body, "&lt;b&gt;hi&lt;/b&gt; there")
	assert.NotContains(t, body, "<b>hi</b>")

	w = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaticAssets(t *testing.T) {
	h := newRouter(t, config.Default(), newEngine(t))

	for _, path := range []string{"/static/app.js", "/static/style.css"} {
		w := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotZero(t, w.Body.Len(), path)
	}
}

// brokenCompanion fails every stateful call.
type brokenCompanion struct{}

var errBackend = errors.New("pq: connection refused to 10.0.0.5")

func (brokenCompanion) Chat(context.Context, string) (*engine.TurnResult, error) {
	return nil, errBackend
}
func (brokenCompanion) Memory(context.Context) (*engine.MemoryView, error) { return nil, errBackend }
func (brokenCompanion) World(context.Context) (*types.WorldState, error)   { return nil, errBackend }
func (brokenCompanion) Adventure(context.Context, string, string) (*engine.AdventureResult, error) {
	return nil, errBackend
}
func (brokenCompanion) Emotion(text string) (emotion.Analysis, error) { return emotion.Analyze(text), nil }
func (brokenCompanion) Preferences(context.Context) (*types.UserPreferences, error) {
	return nil, errBackend
}
func (brokenCompanion) SavePreferences(context.Context, *types.UserPreferences) (*types.UserPreferences, error) {
	return nil, errBackend
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	h := newRouter(t, config.Default(), brokenCompanion{})

	requests := []struct{ method, path, body string }{
		{http.MethodPost, "/chat", `{"message":"hi"}`},
		{http.MethodGet, "/memory", ""},
		{http.MethodPost, "/adventure", `{"action":"start_adventure"}`},
		{http.MethodGet, "/preferences", ""},
		{http.MethodGet, "/", ""},
	}
	for _, r := range requests {
		w := do(t, h, r.method, r.path, r.body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, r.path)
		assert.NotContains(t, w.Body.String(), "10.0.0.5", r.path)
		resp := decode[handlers.ErrorResponse](t, w)
		assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	h := newRouter(t, config.Default(), newEngine(t))
	big := `{"message":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(big))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
