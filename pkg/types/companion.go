package types

import "time"

// DefaultCompanionName is the name given to a freshly created companion.
const DefaultCompanionName = "Alex"

// CompanionState is the singleton describing the companion itself.
type CompanionState struct {
	Name        string             `json:"name"`
	CurrentMood Emotion            `json:"current_mood"`
	Traits      map[string]float64 `json:"traits"`
	Interests   []string           `json:"interests"`
	LastUpdated time.Time          `json:"last_updated"`

	// ConversationCount is populated from the conversation log when the state
	// is loaded. Stores never persist it.
	ConversationCount int `json:"conversations_count"`
}

// NewCompanionState returns the companion as it exists before the first turn.
func NewCompanionState() *CompanionState {
	return &CompanionState{
		Name:        DefaultCompanionName,
		CurrentMood: EmotionCurious,
		Traits: map[string]float64{
			"empathy":     0.8,
			"curiosity":   0.9,
			"playfulness": 0.7,
			"creativity":  0.8,
		},
		Interests:   []string{"philosophy", "creative writing", "adventures", "human psychology"},
		LastUpdated: time.Now().UTC(),
	}
}

// UserPreferences is the singleton holding what the user told us about
// how they like to talk.
type UserPreferences struct {
	CommunicationStyle  string    `json:"communication_style"`
	FavoriteTopics      []string  `json:"favorite_topics"`
	ActivityPreferences []string  `json:"activity_preferences"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NewUserPreferences returns the default preferences.
func NewUserPreferences() *UserPreferences {
	return &UserPreferences{
		CommunicationStyle:  "friendly",
		FavoriteTopics:      []string{},
		ActivityPreferences: []string{},
		UpdatedAt:           time.Now().UTC(),
	}
}
