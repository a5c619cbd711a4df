package types

import "time"

// Conversation is one chat turn. Conversations are append-only: they are
// created once per turn and never mutated or deleted.
type Conversation struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	UserInput         string    `json:"user_input"`
	AIResponse        string    `json:"ai_response"`
	DetectedEmotion   Emotion   `json:"detected_emotion"`
	AdventureActive   bool      `json:"adventure_active"`
	LocationName      string    `json:"location_name"`
	RelationshipDepth int       `json:"relationship_depth"` // Snapshot at the time of the turn
}

// EmotionalPattern links a classified emotion to the conversation it came from.
type EmotionalPattern struct {
	ID             string    `json:"id"`
	Emotion        Emotion   `json:"emotion"`
	Intensity      float64   `json:"intensity"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// CompanionThought is cosmetic flavor text recorded alongside some turns.
type CompanionThought struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Text             string    `json:"thought"`
	Type             string    `json:"type"`
	EmotionalContext Emotion   `json:"emotional_context,omitempty"`
}

// RelationshipDepth derives the relationship tier from the total number of
// conversations. It is the single source of truth for depth.
func RelationshipDepth(conversationCount int) int {
	if conversationCount < 0 {
		conversationCount = 0
	}
	return conversationCount/10 + 1
}
