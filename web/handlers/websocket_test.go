package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/web"
	"github.com/scrypster/companion/web/handlers"
)

func TestWebSocketHub_ValidatesOrigin(t *testing.T) {
	hub := handlers.NewWebSocketHub([]string{"http://localhost:5000"})
	defer hub.Stop()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://evil.com")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	w := httptest.NewRecorder()
	hub.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "forbidden")
}

func TestWebSocketHub_Broadcast(t *testing.T) {
	hub := handlers.NewWebSocketHub([]string{"*"})
	go hub.Run()
	defer hub.Stop()

	received := make(chan []byte, 1)
	hub.Register(&handlers.MockClient{SendChan: received})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(engine.Event{Type: engine.EventPreferences})

	select {
	case msg := <-received:
		var ev engine.Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, engine.EventPreferences, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast message")
	}
}

func TestWebSocketHub_DropsSlowClient(t *testing.T) {
	hub := handlers.NewWebSocketHub([]string{"*"})
	go hub.Run()
	defer hub.Stop()

	hub.Register(&handlers.MockClient{SendChan: make(chan []byte)})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(map[string]string{"type": "ping"})
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketHub_RelaysTurns(t *testing.T) {
	eng := newEngine(t)
	hub := handlers.NewWebSocketHub([]string{"*"})
	go hub.Run()
	t.Cleanup(hub.Stop)
	eng.SetOnTurn(hub.Publish)

	page, err := handlers.NewPageHandler(eng, web.Assets)
	require.NoError(t, err)
	srv := httptest.NewServer(handlers.Routes(config.Default(), handlers.NewAPIHandlers(eng, "sqlite"), page, hub))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"message":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, data, err := conn.Read(ctx) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	var ev engine.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, engine.EventTurn, ev.Type)
	require.NotNil(t, ev.Turn)
	assert.Equal(t, 1, ev.Turn.Context.RelationshipDepth)
}
