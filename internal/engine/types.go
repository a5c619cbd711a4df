package engine

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/scrypster/companion/internal/adventure"
	"github.com/scrypster/companion/pkg/types"
)

// History windows returned by Memory.
const (
	ConversationWindow = 50
	EmotionWindow      = 20
	ThoughtWindow      = 5
)

// TurnContext is the world as it stands after a turn.
type TurnContext struct {
	AdventureActive   bool           `json:"adventure_active"`
	Location          types.Location `json:"location"`
	Inventory         []string       `json:"inventory"`
	RelationshipDepth int            `json:"relationship_depth"`
}

// TurnResult is the outcome of Chat.
type TurnResult struct {
	Response         string        `json:"response"`
	Emotion          types.Emotion `json:"emotion"`
	CompanionEmotion types.Emotion `json:"companion_emotion"`
	Context          TurnContext   `json:"context"`

	ConversationID string                  `json:"conversation_id"`
	Branch         string                  `json:"branch"`
	Command        *adventure.Command      `json:"command,omitempty"`
	Roll           *adventure.Roll         `json:"dice_result,omitempty"`
	Thought        *types.CompanionThought `json:"companion_thought,omitempty"`
}

// EmotionalSummary is the emotional_patterns block of Memory.
type EmotionalSummary struct {
	DominantEmotions   []types.Emotion `json:"dominant_emotions"`
	RecentMood         types.Emotion   `json:"recent_mood"`
	ConversationThemes []string        `json:"conversation_themes"`
}

// MemoryView is the outcome of Memory.
type MemoryView struct {
	Conversations     []types.Conversation     `json:"conversations"`
	EmotionalPatterns EmotionalSummary         `json:"emotional_patterns"`
	RelationshipDepth int                      `json:"relationship_depth"`
	ConversationCount int                      `json:"conversation_count"`
	LastInteraction   *time.Time               `json:"last_interaction"`
	TimeSinceLast     string                   `json:"time_since_last_interaction,omitempty"`
	RecentThoughts    []types.CompanionThought `json:"recent_thoughts"`
}

func buildMemoryView(convs []types.Conversation, patterns []types.EmotionalPattern, thoughts []types.CompanionThought, count int, now time.Time) *MemoryView {
	dominant := make([]types.Emotion, 0, len(patterns))
	for _, p := range patterns {
		dominant = append(dominant, p.Emotion)
	}
	mood := types.EmotionNeutral
	if len(dominant) > 0 {
		mood = dominant[0]
	}

	view := &MemoryView{
		Conversations: convs,
		EmotionalPatterns: EmotionalSummary{
			DominantEmotions:   dominant,
			RecentMood:         mood,
			ConversationThemes: []string{},
		},
		RelationshipDepth: types.RelationshipDepth(count),
		ConversationCount: count,
		RecentThoughts:    thoughts,
	}
	if len(convs) > 0 {
		last := convs[0].Timestamp
		view.LastInteraction = &last
		view.TimeSinceLast = humanize.RelTime(last, now, "ago", "from now")
	}
	return view
}

// Action is an explicit adventure request.
type Action string

const (
	ActionStart    Action = "start_adventure"
	ActionRollDice Action = "roll_dice"
	ActionEnd      Action = "end_adventure"
)

// AdventureResult is the outcome of Adventure. Only the fields relevant to
// the action are set.
type AdventureResult struct {
	Action     Action            `json:"action"`
	Message    string            `json:"message,omitempty"`
	World      *types.WorldState `json:"world_state,omitempty"`
	DiceResult *adventure.Roll   `json:"dice_result,omitempty"`
}

// EventType names what changed.
type EventType string

const (
	EventTurn        EventType = "turn"
	EventAdventure   EventType = "adventure"
	EventPreferences EventType = "preferences"
)

// Event is delivered to SetOnTurn callbacks after a change is committed.
type Event struct {
	Type      EventType        `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Turn      *TurnResult      `json:"turn,omitempty"`
	Adventure *AdventureResult `json:"adventure,omitempty"`
}
