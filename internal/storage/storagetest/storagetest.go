// Package storagetest is a behavioral suite every storage backend must pass.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// Opener returns a fresh, empty store. The suite closes it.
type Opener func(t *testing.T) storage.Store

// Run exercises open's backend against the storage contract.
func Run(t *testing.T, open Opener) {
	t.Run("DefaultsCreatedOnce", func(t *testing.T) { testDefaults(t, open(t)) })
	t.Run("WorldRoundTrip", func(t *testing.T) { testWorldRoundTrip(t, open(t)) })
	t.Run("CompanionRoundTrip", func(t *testing.T) { testCompanionRoundTrip(t, open(t)) })
	t.Run("CommitTurn", func(t *testing.T) { testCommitTurn(t, open(t)) })
	t.Run("CommitTurnRejectsInvalid", func(t *testing.T) { testCommitInvalid(t, open(t)) })
	t.Run("CommitTurnIsAtomic", func(t *testing.T) { testCommitAtomic(t, open(t)) })
	t.Run("Preferences", func(t *testing.T) { testPreferences(t, open(t)) })
}

// NewTurn builds a turn whose conversation, pattern and thought all share n.
func NewTurn(n int, at time.Time, emotion types.Emotion) storage.Turn {
	id := fmt.Sprintf("conv-%03d", n)
	return storage.Turn{
		Conversation: types.Conversation{
			ID:                id,
			Timestamp:         at,
			UserInput:         fmt.Sprintf("message %d", n),
			AIResponse:        fmt.Sprintf("reply %d", n),
			DetectedEmotion:   emotion,
			LocationName:      "Cozy Space",
			RelationshipDepth: types.RelationshipDepth(n),
		},
		Pattern: &types.EmotionalPattern{
			ID:             fmt.Sprintf("pat-%03d", n),
			Emotion:        emotion,
			Intensity:      0.5,
			Timestamp:      at,
			ConversationID: id,
		},
	}
}

func testDefaults(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	c1, err := s.LoadCompanion(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultCompanionName, c1.Name)
	assert.Equal(t, types.EmotionCurious, c1.CurrentMood)
	assert.InDelta(t, 0.9, c1.Traits["curiosity"], 1e-9)
	assert.Equal(t, 0, c1.ConversationCount)

	c2, err := s.LoadCompanion(ctx)
	require.NoError(t, err)
	assert.Equal(t, c1.Name, c2.Name)
	assert.WithinDuration(t, c1.LastUpdated, c2.LastUpdated, time.Second)

	w, err := s.LoadWorld(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.SceneRealWorld, w.CurrentScene)
	assert.False(t, w.AdventureActive)
	assert.Equal(t, "Cozy Space", w.Location.Name)
	assert.Empty(t, w.Inventory)
	assert.True(t, w.GameMechanics["dice_enabled"])

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	convs, err := s.ListConversations(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func testWorldRoundTrip(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	w := types.NewWorldState()
	w.CurrentScene = types.SceneAdventure
	w.AdventureActive = true
	w.Location = types.Location{ID: "old_bridge", Name: "Old Stone Bridge", Description: "Moss.", Type: types.SceneAdventure}
	w.Inventory = []string{"lantern", "rusty key"}
	require.NoError(t, s.SaveWorld(ctx, w))

	got, err := s.LoadWorld(ctx)
	require.NoError(t, err)
	assert.Equal(t, w.CurrentScene, got.CurrentScene)
	assert.True(t, got.AdventureActive)
	assert.Equal(t, w.Location, got.Location)
	assert.Equal(t, w.Inventory, got.Inventory)
	assert.Equal(t, w.GameMechanics, got.GameMechanics)

	bad := types.NewWorldState()
	bad.CurrentScene = "nowhere"
	assert.ErrorIs(t, s.SaveWorld(ctx, bad), storage.ErrInvalidInput)
}

func testCompanionRoundTrip(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	c := types.NewCompanionState()
	c.CurrentMood = types.EmotionGrateful
	c.Interests = []string{"stars"}
	c.ConversationCount = 99
	require.NoError(t, s.SaveCompanion(ctx, c))

	got, err := s.LoadCompanion(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.EmotionGrateful, got.CurrentMood)
	assert.Equal(t, []string{"stars"}, got.Interests)
	assert.Equal(t, 0, got.ConversationCount, "count comes from the log, not the saved value")
}

func testCommitTurn(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	emotions := []types.Emotion{types.EmotionHappy, types.EmotionSad, types.EmotionCurious}
	for i, e := range emotions {
		turn := NewTurn(i+1, base.Add(time.Duration(i)*time.Minute), e)
		if i == 1 {
			turn.Thought = &types.CompanionThought{
				ID:               "th-1",
				Timestamp:        turn.Conversation.Timestamp,
				Text:             "I was wondering about the stars.",
				Type:             "reflection",
				EmotionalContext: e,
			}
		}
		comp := types.NewCompanionState()
		comp.CurrentMood = e
		turn.Companion = comp
		world := types.NewWorldState()
		world.Inventory = []string{fmt.Sprintf("item-%d", i)}
		turn.World = world
		require.NoError(t, s.CommitTurn(ctx, turn))
	}

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	convs, err := s.ListConversations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "conv-003", convs[0].ID)
	assert.Equal(t, "conv-002", convs[1].ID)
	assert.Equal(t, "message 3", convs[0].UserInput)
	assert.Equal(t, "reply 3", convs[0].AIResponse)
	assert.Equal(t, types.EmotionCurious, convs[0].DetectedEmotion)
	assert.True(t, convs[0].Timestamp.Equal(base.Add(2*time.Minute)), "got %v", convs[0].Timestamp)

	pats, err := s.RecentEmotions(ctx, 20)
	require.NoError(t, err)
	require.Len(t, pats, 3)
	assert.Equal(t, types.EmotionCurious, pats[0].Emotion)
	assert.Equal(t, types.EmotionHappy, pats[2].Emotion)
	assert.Equal(t, "conv-003", pats[0].ConversationID)

	thoughts, err := s.ListThoughts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, thoughts, 1)
	assert.Equal(t, "I was wondering about the stars.", thoughts[0].Text)
	assert.Equal(t, types.EmotionSad, thoughts[0].EmotionalContext)

	comp, err := s.LoadCompanion(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.EmotionCurious, comp.CurrentMood)
	assert.Equal(t, 3, comp.ConversationCount)

	world, err := s.LoadWorld(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"item-2"}, world.Inventory)
}

func testCommitInvalid(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	turn := NewTurn(1, time.Now(), types.EmotionHappy)
	turn.Conversation.ID = ""
	assert.ErrorIs(t, s.CommitTurn(ctx, turn), storage.ErrInvalidInput)

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testCommitAtomic(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CommitTurn(ctx, NewTurn(1, now, types.EmotionHappy)))

	// Reusing the conversation id must fail the whole turn.
	dup := NewTurn(1, now.Add(time.Second), types.EmotionSad)
	dup.Pattern.ID = "pat-dup"
	world := types.NewWorldState()
	world.Inventory = []string{"should not persist"}
	dup.World = world
	require.Error(t, s.CommitTurn(ctx, dup))

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pats, err := s.RecentEmotions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pats, 1)

	w, err := s.LoadWorld(ctx)
	require.NoError(t, err)
	assert.Empty(t, w.Inventory)
}

func testPreferences(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	p, err := s.LoadPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "friendly", p.CommunicationStyle)
	assert.Empty(t, p.FavoriteTopics)

	p.CommunicationStyle = "playful"
	p.FavoriteTopics = []string{"space", "cats"}
	p.ActivityPreferences = []string{"adventure"}
	require.NoError(t, s.SavePreferences(ctx, p))

	got, err := s.LoadPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "playful", got.CommunicationStyle)
	assert.Equal(t, []string{"space", "cats"}, got.FavoriteTopics)
	assert.Equal(t, []string{"adventure"}, got.ActivityPreferences)

	assert.ErrorIs(t, s.SavePreferences(ctx, nil), storage.ErrInvalidInput)
}
