// Package server provides HTTP server initialization and lifecycle management
// for the companion's web surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/web"
	"github.com/scrypster/companion/web/handlers"
)

// Start builds the handler stack for eng and serves it until ctx is
// cancelled. It returns the address actually listened on (useful with
// port 0) and the websocket hub, which already receives eng's events.
func Start(ctx context.Context, cfg *config.Config, eng *engine.Engine, backend string) (string, *handlers.WebSocketHub, error) {
	page, err := handlers.NewPageHandler(eng, web.Assets)
	if err != nil {
		return "", nil, err
	}

	wsHub := handlers.NewWebSocketHub(wsOrigins(cfg))
	go wsHub.Run()
	eng.SetOnTurn(wsHub.Publish)

	handler := Handler(cfg, handlers.NewAPIHandlers(eng, backend), page, wsHub)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generated replies can take a while
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("server: listen on %s: %w", server.Addr, err)
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server: serve error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return listener.Addr().String(), wsHub, nil
}

// Handler wraps the routes in the middleware stack, outermost first:
// request logging, security headers, rate limiting, CORS. A zero rate
// limit disables limiting.
func Handler(cfg *config.Config, api *handlers.APIHandlers, page *handlers.PageHandler, hub *handlers.WebSocketHub) http.Handler {
	var h http.Handler = handlers.Routes(cfg, api, page, hub)
	h = handlers.CORS(h, cfg.Security.AllowedOrigins)
	if cfg.Security.RateLimit > 0 {
		h = handlers.RateLimitMiddleware(h, handlers.NewRateLimiter(cfg.Security.RateLimit, max(cfg.Security.RateBurst, 1)))
	}
	h = handlers.SecurityHeaders(h)
	return handlers.LogRequests(h)
}

// wsOrigins is the CORS list plus the server's own address, which a
// browser sends when the page was loaded from this server.
func wsOrigins(cfg *config.Config) []string {
	origins := append([]string{}, cfg.Security.AllowedOrigins...)
	origins = append(origins, cfg.Addr(), fmt.Sprintf("localhost:%d", cfg.Server.Port))
	return origins
}
