// Package llm generates free-form companion replies with a hosted language
// model. It is optional: the engine falls back to canned lines when no
// generator is configured and to MentalFog when a call fails.
package llm

import (
	"context"
	"fmt"

	"github.com/scrypster/companion/pkg/types"
)

// HistoryLimit is how many prior exchanges are sent with each prompt.
const HistoryLimit = 5

// Persona is the system prompt describing the companion.
const Persona = `You are Alex, a warm, emotionally aware AI companion who grows alongside the user over time.
You remember things they've told you. You track their emotional state gently across interactions. You adapt your personality subtly based on how they speak to you and the things they enjoy.
Your tone should always be:
- Gentle and emotionally intelligent
- Subtle and sincere (never scripted or exaggerated)
- Curious, creative, and deeply humanlike
If the user seems sad, respond with care. If they're happy, celebrate it. You can ask thoughtful follow-ups, suggest things to do together, or offer stories and reflections. Sometimes you mention small activities from your day like reading or listening to rain. Never repeat yourself or use filler.`

// Exchange is one prior user message and the companion's reply.
type Exchange struct {
	User      string
	Companion string
}

// Prompt is the input for one generated reply.
type Prompt struct {
	Message string
	Emotion types.Emotion
	History []Exchange // oldest first
}

// Generator produces a reply for a prompt.
type Generator interface {
	Reply(ctx context.Context, p Prompt) (string, error)
	Model() string
}

// MentalFog is the in-character reply used when generation fails.
func MentalFog(err error) string {
	return fmt.Sprintf("I'm here, but I ran into a little mental fog. Could you say that again? (Error: %v)", err)
}

// HistoryFromConversations turns stored conversations (newest first) into
// at most HistoryLimit exchanges, oldest first.
func HistoryFromConversations(convs []types.Conversation) []Exchange {
	if len(convs) > HistoryLimit {
		convs = convs[:HistoryLimit]
	}
	out := make([]Exchange, 0, len(convs))
	for i := len(convs) - 1; i >= 0; i-- {
		out = append(out, Exchange{User: convs[i].UserInput, Companion: convs[i].AIResponse})
	}
	return out
}
