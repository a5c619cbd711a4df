// Package sqlstore implements storage.Store on database/sql. The sqlite and
// postgres packages open the connection, apply their migrations, and hand
// the *sql.DB here with the bind style their driver expects.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// Dialect describes driver differences.
type Dialect struct {
	Name string
	// Numbered reports whether bind parameters are $1, $2, ... instead of ?.
	Numbered bool
}

// Store implements storage.Store over a migrated database.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ storage.Store = (*Store)(nil)

// New wraps db. The schema must already exist.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying handle for backups and test helpers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Backend returns the dialect name.
func (s *Store) Backend() string {
	return s.dialect.Name
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// q rewrites ? placeholders for numbered dialects.
func (s *Store) q(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LoadCompanion returns the companion singleton, creating it on first use.
func (s *Store) LoadCompanion(ctx context.Context) (*types.CompanionState, error) {
	c, err := s.selectCompanion(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.upsertCompanion(ctx, s.db, types.NewCompanionState(), true); err != nil {
			return nil, err
		}
		c, err = s.selectCompanion(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load companion: %w", s.dialect.Name, err)
	}

	n, err := s.CountConversations(ctx)
	if err != nil {
		return nil, err
	}
	c.ConversationCount = n
	return c, nil
}

func (s *Store) selectCompanion(ctx context.Context) (*types.CompanionState, error) {
	var (
		c                 types.CompanionState
		mood              string
		traits, interests string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT name, current_mood, traits, interests, last_updated FROM companion_state WHERE id = 1",
	).Scan(&c.Name, &mood, &traits, &interests, &c.LastUpdated)
	if err != nil {
		return nil, err
	}
	c.CurrentMood = types.Emotion(mood)
	if err := storage.DecodeJSON(traits, &c.Traits); err != nil {
		return nil, err
	}
	if err := storage.DecodeJSON(interests, &c.Interests); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCompanion replaces the companion singleton.
func (s *Store) SaveCompanion(ctx context.Context, state *types.CompanionState) error {
	if state == nil {
		return fmt.Errorf("%w: companion state is required", storage.ErrInvalidInput)
	}
	return s.upsertCompanion(ctx, s.db, state, false)
}

func (s *Store) upsertCompanion(ctx context.Context, ex execer, c *types.CompanionState, ifAbsent bool) error {
	traits, err := storage.EncodeJSON(c.Traits)
	if err != nil {
		return err
	}
	interests, err := storage.EncodeJSON(c.Interests)
	if err != nil {
		return err
	}
	conflict := `ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			current_mood = excluded.current_mood,
			traits = excluded.traits,
			interests = excluded.interests,
			last_updated = excluded.last_updated`
	if ifAbsent {
		conflict = "ON CONFLICT (id) DO NOTHING"
	}
	_, err = ex.ExecContext(ctx, s.q(`
		INSERT INTO companion_state (id, name, current_mood, traits, interests, last_updated)
		VALUES (1, ?, ?, ?, ?, ?) `+conflict),
		c.Name, string(c.CurrentMood), traits, interests, c.LastUpdated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to save companion: %w", s.dialect.Name, err)
	}
	return nil
}

// LoadWorld returns the world singleton, creating it on first use.
func (s *Store) LoadWorld(ctx context.Context) (*types.WorldState, error) {
	w, err := s.selectWorld(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.upsertWorld(ctx, s.db, types.NewWorldState(), true); err != nil {
			return nil, err
		}
		w, err = s.selectWorld(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load world: %w", s.dialect.Name, err)
	}
	return w, nil
}

func (s *Store) selectWorld(ctx context.Context) (*types.WorldState, error) {
	var (
		w                           types.WorldState
		location, inventory, mechan string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT current_scene, adventure_active, location, inventory, game_mechanics, last_updated FROM world_state WHERE id = 1",
	).Scan(&w.CurrentScene, &w.AdventureActive, &location, &inventory, &mechan, &w.LastUpdated)
	if err != nil {
		return nil, err
	}
	if err := storage.DecodeJSON(location, &w.Location); err != nil {
		return nil, err
	}
	if err := storage.DecodeJSON(inventory, &w.Inventory); err != nil {
		return nil, err
	}
	if err := storage.DecodeJSON(mechan, &w.GameMechanics); err != nil {
		return nil, err
	}
	return &w, nil
}

// SaveWorld replaces the world singleton.
func (s *Store) SaveWorld(ctx context.Context, state *types.WorldState) error {
	if state == nil {
		return fmt.Errorf("%w: world state is required", storage.ErrInvalidInput)
	}
	if !types.IsValidScene(state.CurrentScene) {
		return fmt.Errorf("%w: unknown scene %q", storage.ErrInvalidInput, state.CurrentScene)
	}
	return s.upsertWorld(ctx, s.db, state, false)
}

func (s *Store) upsertWorld(ctx context.Context, ex execer, w *types.WorldState, ifAbsent bool) error {
	location, err := storage.EncodeJSON(w.Location)
	if err != nil {
		return err
	}
	inventory, err := storage.EncodeJSON(w.Inventory)
	if err != nil {
		return err
	}
	mechanics, err := storage.EncodeJSON(w.GameMechanics)
	if err != nil {
		return err
	}
	conflict := `ON CONFLICT (id) DO UPDATE SET
			current_scene = excluded.current_scene,
			adventure_active = excluded.adventure_active,
			location = excluded.location,
			inventory = excluded.inventory,
			game_mechanics = excluded.game_mechanics,
			last_updated = excluded.last_updated`
	if ifAbsent {
		conflict = "ON CONFLICT (id) DO NOTHING"
	}
	_, err = ex.ExecContext(ctx, s.q(`
		INSERT INTO world_state (id, current_scene, adventure_active, location, inventory, game_mechanics, last_updated)
		VALUES (1, ?, ?, ?, ?, ?, ?) `+conflict),
		w.CurrentScene, w.AdventureActive, location, inventory, mechanics, w.LastUpdated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to save world: %w", s.dialect.Name, err)
	}
	return nil
}

// CommitTurn writes a turn in one transaction.
func (s *Store) CommitTurn(ctx context.Context, turn storage.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin turn: %w", s.dialect.Name, err)
	}
	defer tx.Rollback() //nolint:errcheck

	c := turn.Conversation
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO conversations (id, created_at, user_input, ai_response, detected_emotion, adventure_active, location_name, relationship_depth)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.Timestamp.UTC(), c.UserInput, c.AIResponse, string(c.DetectedEmotion), c.AdventureActive, c.LocationName, c.RelationshipDepth,
	); err != nil {
		return fmt.Errorf("%s: failed to insert conversation: %w", s.dialect.Name, err)
	}

	if p := turn.Pattern; p != nil {
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO emotional_patterns (id, emotion, intensity, created_at, conversation_id)
			VALUES (?, ?, ?, ?, ?)`),
			p.ID, string(p.Emotion), p.Intensity, p.Timestamp.UTC(), nullableString(p.ConversationID),
		); err != nil {
			return fmt.Errorf("%s: failed to insert emotional pattern: %w", s.dialect.Name, err)
		}
	}

	if th := turn.Thought; th != nil {
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO companion_thoughts (id, created_at, thought_text, thought_type, emotional_context)
			VALUES (?, ?, ?, ?, ?)`),
			th.ID, th.Timestamp.UTC(), th.Text, th.Type, string(th.EmotionalContext),
		); err != nil {
			return fmt.Errorf("%s: failed to insert thought: %w", s.dialect.Name, err)
		}
	}

	if turn.Companion != nil {
		if err := s.upsertCompanion(ctx, tx, turn.Companion, false); err != nil {
			return err
		}
	}
	if turn.World != nil {
		if err := s.upsertWorld(ctx, tx, turn.World, false); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit turn: %w", s.dialect.Name, err)
	}
	return nil
}

// ListConversations returns the newest conversations first.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]types.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, created_at, user_input, ai_response, detected_emotion, adventure_active, location_name, relationship_depth
		FROM conversations ORDER BY seq DESC LIMIT ?`), storage.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list conversations: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	out := []types.Conversation{}
	for rows.Next() {
		var (
			c       types.Conversation
			emotion string
		)
		if err := rows.Scan(&c.ID, &c.Timestamp, &c.UserInput, &c.AIResponse, &emotion, &c.AdventureActive, &c.LocationName, &c.RelationshipDepth); err != nil {
			return nil, fmt.Errorf("%s: failed to scan conversation: %w", s.dialect.Name, err)
		}
		c.DetectedEmotion = types.Emotion(emotion)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountConversations counts the conversation log.
func (s *Store) CountConversations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: failed to count conversations: %w", s.dialect.Name, err)
	}
	return n, nil
}

// RecentEmotions returns the newest emotional patterns first.
func (s *Store) RecentEmotions(ctx context.Context, limit int) ([]types.EmotionalPattern, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, emotion, intensity, created_at, conversation_id
		FROM emotional_patterns ORDER BY seq DESC LIMIT ?`), storage.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list emotions: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	out := []types.EmotionalPattern{}
	for rows.Next() {
		var (
			p       types.EmotionalPattern
			emotion string
			convID  sql.NullString
		)
		if err := rows.Scan(&p.ID, &emotion, &p.Intensity, &p.Timestamp, &convID); err != nil {
			return nil, fmt.Errorf("%s: failed to scan emotion: %w", s.dialect.Name, err)
		}
		p.Emotion = types.Emotion(emotion)
		p.ConversationID = convID.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListThoughts returns the newest companion thoughts first.
func (s *Store) ListThoughts(ctx context.Context, limit int) ([]types.CompanionThought, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, created_at, thought_text, thought_type, emotional_context
		FROM companion_thoughts ORDER BY seq DESC LIMIT ?`), storage.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list thoughts: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	out := []types.CompanionThought{}
	for rows.Next() {
		var (
			th               types.CompanionThought
			emotionalContext string
		)
		if err := rows.Scan(&th.ID, &th.Timestamp, &th.Text, &th.Type, &emotionalContext); err != nil {
			return nil, fmt.Errorf("%s: failed to scan thought: %w", s.dialect.Name, err)
		}
		th.EmotionalContext = types.Emotion(emotionalContext)
		out = append(out, th)
	}
	return out, rows.Err()
}

// LoadPreferences returns the preferences singleton, creating it on first use.
func (s *Store) LoadPreferences(ctx context.Context) (*types.UserPreferences, error) {
	p, err := s.selectPreferences(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.upsertPreferences(ctx, types.NewUserPreferences(), true); err != nil {
			return nil, err
		}
		p, err = s.selectPreferences(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load preferences: %w", s.dialect.Name, err)
	}
	return p, nil
}

func (s *Store) selectPreferences(ctx context.Context) (*types.UserPreferences, error) {
	var (
		p                  types.UserPreferences
		topics, activities string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT communication_style, favorite_topics, activity_preferences, updated_at FROM user_preferences WHERE id = 1",
	).Scan(&p.CommunicationStyle, &topics, &activities, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := storage.DecodeJSON(topics, &p.FavoriteTopics); err != nil {
		return nil, err
	}
	if err := storage.DecodeJSON(activities, &p.ActivityPreferences); err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePreferences replaces the preferences singleton.
func (s *Store) SavePreferences(ctx context.Context, prefs *types.UserPreferences) error {
	if prefs == nil {
		return fmt.Errorf("%w: preferences are required", storage.ErrInvalidInput)
	}
	return s.upsertPreferences(ctx, prefs, false)
}

func (s *Store) upsertPreferences(ctx context.Context, p *types.UserPreferences, ifAbsent bool) error {
	topics, err := storage.EncodeJSON(p.FavoriteTopics)
	if err != nil {
		return err
	}
	activities, err := storage.EncodeJSON(p.ActivityPreferences)
	if err != nil {
		return err
	}
	conflict := `ON CONFLICT (id) DO UPDATE SET
			communication_style = excluded.communication_style,
			favorite_topics = excluded.favorite_topics,
			activity_preferences = excluded.activity_preferences,
			updated_at = excluded.updated_at`
	if ifAbsent {
		conflict = "ON CONFLICT (id) DO NOTHING"
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO user_preferences (id, communication_style, favorite_topics, activity_preferences, updated_at)
		VALUES (1, ?, ?, ?, ?) `+conflict),
		p.CommunicationStyle, topics, activities, updated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to save preferences: %w", s.dialect.Name, err)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
