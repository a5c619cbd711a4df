// Package jsonfile stores companion state as a handful of JSON documents in a
// directory. Each operation holds an exclusive lock on the directory and
// rereads it, so a CLI and a server may share one directory.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// File names inside the data directory.
const (
	MemoryFile      = "memory.json"
	WorldFile       = "world.json"
	PersonaFile     = "persona.json"
	ThoughtsFile    = "companion_thoughts.json"
	PreferencesFile = "preferences.json"
)

// memory is the layout of memory.json; both logs are oldest first.
type memory struct {
	Conversations     []types.Conversation     `json:"conversations"`
	EmotionalPatterns []types.EmotionalPattern `json:"emotional_patterns"`
}

// Store is the JSON file backend. The fields below are a snapshot of the
// directory, refreshed by begin.
type Store struct {
	dir string

	mu          sync.Mutex
	memory      memory
	ids         map[string]bool
	companion   *types.CompanionState
	world       *types.WorldState
	thoughts    []types.CompanionThought
	preferences *types.UserPreferences
}

var _ storage.Store = (*Store)(nil)

// Open checks that dir is readable, creating it if needed. Missing files
// start empty.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: failed to create %s: %w", dir, err)
	}
	s := &Store{dir: dir}
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	done()
	return s, nil
}

// begin takes the directory lock and reloads the snapshot. The returned
// func releases both locks.
func (s *Store) begin() (func(), error) {
	s.mu.Lock()
	release, err := lockDir(s.dir)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.load(); err != nil {
		release()
		s.mu.Unlock()
		return nil, err
	}
	return func() {
		release()
		s.mu.Unlock()
	}, nil
}

// load replaces the snapshot with the files on disk.
func (s *Store) load() error {
	var (
		mem         memory
		companion   *types.CompanionState
		world       *types.WorldState
		thoughts    []types.CompanionThought
		preferences *types.UserPreferences
	)
	loads := []struct {
		name string
		v    any
	}{
		{MemoryFile, &mem},
		{PersonaFile, &companion},
		{WorldFile, &world},
		{ThoughtsFile, &thoughts},
		{PreferencesFile, &preferences},
	}
	for _, l := range loads {
		if err := s.read(l.name, l.v); err != nil {
			return err
		}
	}

	ids := make(map[string]bool, len(mem.Conversations))
	for _, c := range mem.Conversations {
		ids[c.ID] = true
	}
	s.memory, s.ids = mem, ids
	s.companion, s.world = companion, world
	s.thoughts, s.preferences = thoughts, preferences
	return nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Backend returns "jsonfile".
func (s *Store) Backend() string {
	return "jsonfile"
}

// Close is a no-op; every change is already on disk.
func (s *Store) Close() error {
	return nil
}

// LoadCompanion returns the companion state, creating it on first use.
func (s *Store) LoadCompanion(ctx context.Context) (*types.CompanionState, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	if s.companion == nil {
		c := types.NewCompanionState()
		if err := s.commit(map[string]any{PersonaFile: c}); err != nil {
			return nil, err
		}
		s.companion = c
	}
	c := copyCompanion(s.companion)
	c.ConversationCount = len(s.memory.Conversations)
	return c, nil
}

// SaveCompanion replaces the companion state.
func (s *Store) SaveCompanion(ctx context.Context, state *types.CompanionState) error {
	if state == nil {
		return fmt.Errorf("%w: companion state is required", storage.ErrInvalidInput)
	}
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	return s.commit(map[string]any{PersonaFile: copyCompanion(state)})
}

// LoadWorld returns the world state, creating it on first use.
func (s *Store) LoadWorld(ctx context.Context) (*types.WorldState, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	if s.world == nil {
		w := types.NewWorldState()
		if err := s.commit(map[string]any{WorldFile: w}); err != nil {
			return nil, err
		}
		s.world = w
	}
	return s.world.Clone(), nil
}

// SaveWorld replaces the world state.
func (s *Store) SaveWorld(ctx context.Context, state *types.WorldState) error {
	if state == nil {
		return fmt.Errorf("%w: world state is required", storage.ErrInvalidInput)
	}
	if !types.IsValidScene(state.CurrentScene) {
		return fmt.Errorf("%w: unknown scene %q", storage.ErrInvalidInput, state.CurrentScene)
	}
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	return s.commit(map[string]any{WorldFile: state.Clone()})
}

// CommitTurn appends the turn to the logs read under the directory lock,
// stages every touched file as a temp file and only renames them into place
// once all were written.
func (s *Store) CommitTurn(ctx context.Context, turn storage.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	if s.ids[turn.Conversation.ID] {
		return fmt.Errorf("jsonfile: conversation %s already exists", turn.Conversation.ID)
	}

	mem := s.memory
	mem.Conversations = append(mem.Conversations, turn.Conversation)
	if turn.Pattern != nil {
		mem.EmotionalPatterns = append(mem.EmotionalPatterns, *turn.Pattern)
	}
	files := map[string]any{MemoryFile: mem}

	if turn.Thought != nil {
		files[ThoughtsFile] = append(s.thoughts, *turn.Thought)
	}
	if turn.Companion != nil {
		files[PersonaFile] = copyCompanion(turn.Companion)
	}
	if turn.World != nil {
		files[WorldFile] = turn.World.Clone()
	}
	return s.commit(files)
}

// ListConversations returns the newest conversations first.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]types.Conversation, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()
	return newestFirst(s.memory.Conversations, storage.ClampLimit(limit)), nil
}

// CountConversations counts the conversation log.
func (s *Store) CountConversations(ctx context.Context) (int, error) {
	done, err := s.begin()
	if err != nil {
		return 0, err
	}
	defer done()
	return len(s.memory.Conversations), nil
}

// RecentEmotions returns the newest emotional patterns first.
func (s *Store) RecentEmotions(ctx context.Context, limit int) ([]types.EmotionalPattern, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()
	return newestFirst(s.memory.EmotionalPatterns, storage.ClampLimit(limit)), nil
}

// ListThoughts returns the newest companion thoughts first.
func (s *Store) ListThoughts(ctx context.Context, limit int) ([]types.CompanionThought, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()
	return newestFirst(s.thoughts, storage.ClampLimit(limit)), nil
}

// LoadPreferences returns the preferences, creating them on first use.
func (s *Store) LoadPreferences(ctx context.Context) (*types.UserPreferences, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	if s.preferences == nil {
		p := types.NewUserPreferences()
		if err := s.commit(map[string]any{PreferencesFile: p}); err != nil {
			return nil, err
		}
		s.preferences = p
	}
	return copyPreferences(s.preferences), nil
}

// SavePreferences replaces the preferences.
func (s *Store) SavePreferences(ctx context.Context, prefs *types.UserPreferences) error {
	if prefs == nil {
		return fmt.Errorf("%w: preferences are required", storage.ErrInvalidInput)
	}
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	return s.commit(map[string]any{PreferencesFile: copyPreferences(prefs)})
}

func (s *Store) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("jsonfile: failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsonfile: %s is corrupt: %w", name, err)
	}
	return nil
}

// commit writes every file to a temp sibling, then renames them all. A
// failure while staging leaves the directory untouched. A failed rename can
// leave earlier files of the same commit in place; the snapshot is reread
// from disk by the next operation either way.
func (s *Store) commit(files map[string]any) error {
	staged := make(map[string]string, len(files))
	cleanup := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	for name, v := range files {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			cleanup()
			return fmt.Errorf("jsonfile: failed to encode %s: %w", name, err)
		}
		tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
		if err != nil {
			cleanup()
			return fmt.Errorf("jsonfile: failed to stage %s: %w", name, err)
		}
		staged[name] = tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			cleanup()
			return fmt.Errorf("jsonfile: failed to write %s: %w", name, err)
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			cleanup()
			return fmt.Errorf("jsonfile: failed to sync %s: %w", name, err)
		}
		if err := tmp.Close(); err != nil {
			cleanup()
			return fmt.Errorf("jsonfile: failed to close %s: %w", name, err)
		}
	}

	for name, tmp := range staged {
		if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
			cleanup()
			return fmt.Errorf("jsonfile: failed to replace %s: %w", name, err)
		}
		delete(staged, name)
	}
	return nil
}

func newestFirst[T any](log []T, limit int) []T {
	n := len(log)
	if limit > n {
		limit = n
	}
	out := make([]T, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, log[i])
	}
	return out
}

func copyCompanion(c *types.CompanionState) *types.CompanionState {
	out := *c
	out.ConversationCount = 0
	out.Traits = make(map[string]float64, len(c.Traits))
	for k, v := range c.Traits {
		out.Traits[k] = v
	}
	out.Interests = append([]string{}, c.Interests...)
	return &out
}

func copyPreferences(p *types.UserPreferences) *types.UserPreferences {
	out := *p
	out.FavoriteTopics = append([]string{}, p.FavoriteTopics...)
	out.ActivityPreferences = append([]string{}, p.ActivityPreferences...)
	return &out
}
