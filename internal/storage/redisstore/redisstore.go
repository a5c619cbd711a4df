// Package redisstore keeps companion state in Redis. Singletons are JSON
// strings, logs are lists appended with RPUSH, and a turn is committed in a
// single MULTI/EXEC guarded by WATCH on the conversation id set.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// DefaultPrefix namespaces every key.
const DefaultPrefix = "companion"

// ErrConflict is returned when a concurrent writer touched the same turn.
var ErrConflict = errors.New("redisstore: concurrent turn commit")

// Store is the Redis backend.
type Store struct {
	client *redis.Client
	prefix string
}

var _ storage.Store = (*Store)(nil)

// Open parses a redis:// URL, connects, and pings the server.
func Open(ctx context.Context, rawURL string) (*Store, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: invalid url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: failed to ping: %w", err)
	}
	return New(client, DefaultPrefix), nil
}

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(name string) string {
	return s.prefix + ":" + name
}

// Backend returns "redis".
func (s *Store) Backend() string {
	return "redis"
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// LoadCompanion returns the companion state, creating it on first use.
func (s *Store) LoadCompanion(ctx context.Context) (*types.CompanionState, error) {
	var c types.CompanionState
	if err := s.getOrCreate(ctx, s.key("state"), types.NewCompanionState(), &c); err != nil {
		return nil, err
	}
	n, err := s.CountConversations(ctx)
	if err != nil {
		return nil, err
	}
	c.ConversationCount = n
	return &c, nil
}

// SaveCompanion replaces the companion state.
func (s *Store) SaveCompanion(ctx context.Context, state *types.CompanionState) error {
	if state == nil {
		return fmt.Errorf("%w: companion state is required", storage.ErrInvalidInput)
	}
	return s.set(ctx, s.client, s.key("state"), companionDoc(state))
}

// LoadWorld returns the world state, creating it on first use.
func (s *Store) LoadWorld(ctx context.Context) (*types.WorldState, error) {
	var w types.WorldState
	if err := s.getOrCreate(ctx, s.key("world"), types.NewWorldState(), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// SaveWorld replaces the world state.
func (s *Store) SaveWorld(ctx context.Context, state *types.WorldState) error {
	if state == nil {
		return fmt.Errorf("%w: world state is required", storage.ErrInvalidInput)
	}
	if !types.IsValidScene(state.CurrentScene) {
		return fmt.Errorf("%w: unknown scene %q", storage.ErrInvalidInput, state.CurrentScene)
	}
	return s.set(ctx, s.client, s.key("world"), state)
}

// CommitTurn writes a turn in one MULTI/EXEC.
func (s *Store) CommitTurn(ctx context.Context, turn storage.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	docs := map[string]any{s.key("conversations"): turn.Conversation}
	if turn.Pattern != nil {
		docs[s.key("emotions")] = turn.Pattern
	}
	if turn.Thought != nil {
		docs[s.key("thoughts")] = turn.Thought
	}
	encoded := make(map[string]string, len(docs))
	for k, v := range docs {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("redisstore: failed to encode %s: %w", k, err)
		}
		encoded[k] = string(b)
	}

	idsKey := s.key("conversation_ids")
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.SIsMember(ctx, idsKey, turn.Conversation.ID).Result()
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("redisstore: conversation %s already exists", turn.Conversation.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, idsKey, turn.Conversation.ID)
			for k, v := range encoded {
				pipe.RPush(ctx, k, v)
			}
			if turn.Companion != nil {
				if err := s.set(ctx, pipe, s.key("state"), companionDoc(turn.Companion)); err != nil {
					return err
				}
			}
			if turn.World != nil {
				if err := s.set(ctx, pipe, s.key("world"), turn.World); err != nil {
					return err
				}
			}
			return nil
		})
		return err
	}, idsKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// ListConversations returns the newest conversations first.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]types.Conversation, error) {
	return listNewest[types.Conversation](ctx, s.client, s.key("conversations"), limit)
}

// CountConversations counts the conversation log.
func (s *Store) CountConversations(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.key("conversations")).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: failed to count conversations: %w", err)
	}
	return int(n), nil
}

// RecentEmotions returns the newest emotional patterns first.
func (s *Store) RecentEmotions(ctx context.Context, limit int) ([]types.EmotionalPattern, error) {
	return listNewest[types.EmotionalPattern](ctx, s.client, s.key("emotions"), limit)
}

// ListThoughts returns the newest companion thoughts first.
func (s *Store) ListThoughts(ctx context.Context, limit int) ([]types.CompanionThought, error) {
	return listNewest[types.CompanionThought](ctx, s.client, s.key("thoughts"), limit)
}

// LoadPreferences returns the preferences, creating them on first use.
func (s *Store) LoadPreferences(ctx context.Context) (*types.UserPreferences, error) {
	var p types.UserPreferences
	if err := s.getOrCreate(ctx, s.key("preferences"), types.NewUserPreferences(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePreferences replaces the preferences.
func (s *Store) SavePreferences(ctx context.Context, prefs *types.UserPreferences) error {
	if prefs == nil {
		return fmt.Errorf("%w: preferences are required", storage.ErrInvalidInput)
	}
	return s.set(ctx, s.client, s.key("preferences"), prefs)
}

// getOrCreate seeds key with def if absent (SETNX) and decodes the stored value.
func (s *Store) getOrCreate(ctx context.Context, key string, def, into any) error {
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		b, err := json.Marshal(def)
		if err != nil {
			return fmt.Errorf("redisstore: failed to encode %s: %w", key, err)
		}
		if err := s.client.SetNX(ctx, key, b, 0).Err(); err != nil {
			return fmt.Errorf("redisstore: failed to create %s: %w", key, err)
		}
		raw, err = s.client.Get(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redisstore: failed to load %s: %w", key, err)
		}
	} else if err != nil {
		return fmt.Errorf("redisstore: failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return fmt.Errorf("redisstore: %s is corrupt: %w", key, err)
	}
	return nil
}

func (s *Store) set(ctx context.Context, c redis.Cmdable, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redisstore: failed to encode %s: %w", key, err)
	}
	if err := c.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: failed to save %s: %w", key, err)
	}
	return nil
}

func listNewest[T any](ctx context.Context, c redis.Cmdable, key string, limit int) ([]T, error) {
	limit = storage.ClampLimit(limit)
	raw, err := c.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: failed to list %s: %w", key, err)
	}
	out := make([]T, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var v T
		if err := json.Unmarshal([]byte(raw[i]), &v); err != nil {
			return nil, fmt.Errorf("redisstore: corrupt entry in %s: %w", key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// companionDoc strips the derived conversation count before storing.
func companionDoc(c *types.CompanionState) types.CompanionState {
	doc := *c
	doc.ConversationCount = 0
	return doc
}
