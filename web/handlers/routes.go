package handlers

import (
	"net/http"

	"github.com/scrypster/companion/internal/config"
)

// Routes builds the mux for the whole web surface. Health and static
// assets bypass auth; the websocket relies on origin validation.
func Routes(cfg *config.Config, api *APIHandlers, page *PageHandler, hub *WebSocketHub) http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/chat", methods(map[string]http.HandlerFunc{
		http.MethodPost: api.Chat,
	}))
	apiMux.HandleFunc("/memory", methods(map[string]http.HandlerFunc{
		http.MethodGet: api.Memory,
	}))
	apiMux.HandleFunc("/adventure", methods(map[string]http.HandlerFunc{
		http.MethodPost: api.Adventure,
	}))
	apiMux.HandleFunc("/emotion", methods(map[string]http.HandlerFunc{
		http.MethodPost: api.Emotion,
	}))
	apiMux.HandleFunc("/preferences", methods(map[string]http.HandlerFunc{
		http.MethodGet: api.GetPreferences,
		http.MethodPut: api.PutPreferences,
	}))
	apiMux.HandleFunc("/", methods(map[string]http.HandlerFunc{
		http.MethodGet: page.Index,
	}))
	protected := RequireAuth(apiMux, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", methods(map[string]http.HandlerFunc{
		http.MethodGet: api.Health,
	}))
	mux.HandleFunc("/static/", page.Static)
	if hub != nil {
		mux.Handle("/ws", hub)
	}
	mux.Handle("/", protected)
	return mux
}
