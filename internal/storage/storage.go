// Package storage defines the companion's persistence contract.
//
// Three singletons (companion state, world state, user preferences) are
// loaded get-or-create by a fixed key. Conversations, emotional patterns and
// companion thoughts are append-only logs. A turn's writes are committed
// together through ConversationLog.CommitTurn so a failed turn leaves no
// partial record behind.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/scrypster/companion/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Turn is everything one chat turn writes.
type Turn struct {
	Conversation types.Conversation
	Pattern      *types.EmotionalPattern // optional
	Thought      *types.CompanionThought // optional
	Companion    *types.CompanionState   // optional; replaces the singleton
	World        *types.WorldState       // optional; replaces the singleton
}

// Validate checks the turn before any backend touches storage.
func (t Turn) Validate() error {
	switch {
	case t.Conversation.ID == "":
		return fmt.Errorf("%w: conversation id is required", ErrInvalidInput)
	case t.Conversation.Timestamp.IsZero():
		return fmt.Errorf("%w: conversation timestamp is required", ErrInvalidInput)
	case t.Pattern != nil && t.Pattern.ID == "":
		return fmt.Errorf("%w: emotional pattern id is required", ErrInvalidInput)
	case t.Thought != nil && t.Thought.ID == "":
		return fmt.Errorf("%w: thought id is required", ErrInvalidInput)
	case t.World != nil && !types.IsValidScene(t.World.CurrentScene):
		return fmt.Errorf("%w: unknown scene %q", ErrInvalidInput, t.World.CurrentScene)
	}
	return nil
}

// StateStore holds the companion and world singletons.
type StateStore interface {
	// LoadCompanion returns the companion state, creating the default on
	// first use. ConversationCount is filled from the conversation log.
	LoadCompanion(ctx context.Context) (*types.CompanionState, error)

	// SaveCompanion replaces the companion state.
	SaveCompanion(ctx context.Context, state *types.CompanionState) error

	// LoadWorld returns the world state, creating the default on first use.
	LoadWorld(ctx context.Context) (*types.WorldState, error)

	// SaveWorld replaces the world state.
	SaveWorld(ctx context.Context, state *types.WorldState) error
}

// ConversationLog is the append-only history.
type ConversationLog interface {
	// CommitTurn writes all of a turn's records atomically.
	CommitTurn(ctx context.Context, turn Turn) error

	// ListConversations returns up to limit conversations, newest first.
	ListConversations(ctx context.Context, limit int) ([]types.Conversation, error)

	// CountConversations returns the number of recorded conversations.
	CountConversations(ctx context.Context) (int, error)

	// RecentEmotions returns up to limit emotional patterns, newest first.
	RecentEmotions(ctx context.Context, limit int) ([]types.EmotionalPattern, error)

	// ListThoughts returns up to limit companion thoughts, newest first.
	ListThoughts(ctx context.Context, limit int) ([]types.CompanionThought, error)
}

// PreferenceStore holds the user preferences singleton.
type PreferenceStore interface {
	LoadPreferences(ctx context.Context) (*types.UserPreferences, error)
	SavePreferences(ctx context.Context, prefs *types.UserPreferences) error
}

// Store is a complete backend.
type Store interface {
	StateStore
	ConversationLog
	PreferenceStore

	// Backend names the implementation ("sqlite", "postgres", ...).
	Backend() string

	Close() error
}

// MaxListLimit caps list queries.
const MaxListLimit = 1000

// ClampLimit normalizes a list limit into [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return 1
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
