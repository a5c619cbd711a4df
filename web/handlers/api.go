// Package handlers provides the HTTP handlers and middleware for the
// companion's web surface.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/scrypster/companion/internal/adventure"
	"github.com/scrypster/companion/internal/emotion"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Companion is the engine surface the handlers drive.
type Companion interface {
	Chat(ctx context.Context, message string) (*engine.TurnResult, error)
	Memory(ctx context.Context) (*engine.MemoryView, error)
	World(ctx context.Context) (*types.WorldState, error)
	Adventure(ctx context.Context, action, dice string) (*engine.AdventureResult, error)
	Emotion(text string) (emotion.Analysis, error)
	Preferences(ctx context.Context) (*types.UserPreferences, error)
	SavePreferences(ctx context.Context, prefs *types.UserPreferences) (*types.UserPreferences, error)
}

// APIHandlers contains the JSON endpoints.
type APIHandlers struct {
	companion Companion
	backend   string
}

// NewAPIHandlers creates handlers over c. backend names the storage
// backend reported by the health check.
func NewAPIHandlers(c Companion, backend string) *APIHandlers {
	return &APIHandlers{companion: c, backend: backend}
}

// Chat handles POST /chat.
func (h *APIHandlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "No message provided", nil)
		return
	}

	result, err := h.companion.Chat(r.Context(), req.Message)
	if err != nil {
		h.fail(w, "chat", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Memory handles GET /memory.
func (h *APIHandlers) Memory(w http.ResponseWriter, r *http.Request) {
	view, err := h.companion.Memory(r.Context())
	if err != nil {
		h.fail(w, "memory", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Adventure handles POST /adventure.
func (h *APIHandlers) Adventure(w http.ResponseWriter, r *http.Request) {
	var req AdventureRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.companion.Adventure(r.Context(), req.Action, req.Dice)
	if err != nil {
		h.fail(w, "adventure", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Emotion handles POST /emotion.
func (h *APIHandlers) Emotion(w http.ResponseWriter, r *http.Request) {
	var req EmotionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "No text provided", nil)
		return
	}

	analysis, err := h.companion.Emotion(req.Text)
	if err != nil {
		h.fail(w, "emotion", err)
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

// GetPreferences handles GET /preferences.
func (h *APIHandlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.companion.Preferences(r.Context())
	if err != nil {
		h.fail(w, "preferences", err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

// PutPreferences handles PUT /preferences.
func (h *APIHandlers) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs types.UserPreferences
	if !decodeJSON(w, r, &prefs) {
		return
	}

	saved, err := h.companion.SavePreferences(r.Context(), &prefs)
	if err != nil {
		h.fail(w, "preferences", err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

// Health handles GET /api/health. It requires no auth.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
		Backend: h.backend,
	})
}

// fail maps err to a status. Client mistakes get their message back;
// everything else is logged and reported generically.
func (h *APIHandlers) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, engine.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "No message provided", nil)
	case errors.Is(err, engine.ErrUnknownAction):
		respondError(w, http.StatusBadRequest, "Unknown action", err)
	case errors.Is(err, storage.ErrInvalidInput), errors.Is(err, adventure.ErrInvalidNotation):
		respondError(w, http.StatusBadRequest, "invalid request", err)
	case errors.Is(err, context.Canceled):
		// The client went away; nobody is left to read a response.
		log.Printf("handlers: %s canceled by client", op)
	default:
		log.Printf("handlers: %s failed: %v", op, err)
		respondError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

// decodeJSON reads a single JSON object into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
		case errors.Is(err, io.EOF):
			respondError(w, http.StatusBadRequest, "request body is empty", nil)
		default:
			respondError(w, http.StatusBadRequest, "invalid JSON", err)
		}
		return false
	}
	return true
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent.
		log.Printf("handlers: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  errorCode(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}

// methods routes a path by HTTP method, answering 405 otherwise.
func methods(routes map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.Method]; ok {
			h(w, r)
			return
		}
		respondError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), nil)
	}
}
