// Package emotion implements the rule-based emotion classifier: a keyword
// frequency scan over a fixed vocabulary of labels.
package emotion

import (
	"fmt"
	"strings"

	"github.com/scrypster/companion/pkg/types"
)

// PlaceholderConfidence is reported wherever a confidence value is exposed.
// The classifier does not compute a real one.
const PlaceholderConfidence = 0.75

// keywords maps each label to the substrings that vote for it.
// A keyword must not be listed under two labels.
var keywords = map[types.Emotion][]string{
	types.EmotionHappy:     {"happy", "joy", "great", "wonderful", "amazing", "love", "awesome", "fantastic", "😊", "😄", "🎉"},
	types.EmotionSad:       {"sad", "depressed", "down", "upset", "crying", "tears", "heartbroken", "miserable", "😢", "😭"},
	types.EmotionAnxious:   {"worried", "nervous", "anxious", "stressed", "panic", "fear", "scared", "overwhelmed"},
	types.EmotionAngry:     {"angry", "mad", "furious", "annoyed", "frustrated", "rage", "irritated", "😠", "😡"},
	types.EmotionCurious:   {"wonder", "curious", "interesting", "what", "how", "why", "tell me", "explain"},
	types.EmotionNostalgic: {"remember", "reminds me", "used to", "childhood", "miss", "old days", "back then"},
	types.EmotionGrateful:  {"thank", "appreciate", "grateful", "blessed", "lucky"},
	types.EmotionLonely:    {"alone", "lonely", "isolated", "nobody", "empty", "miss people"},
	types.EmotionExcited:   {"can't wait", "excited", "thrilled", "pumped", "looking forward"},
	types.EmotionConfused:  {"confused", "don't understand", "what do you mean", "unclear", "lost"},
}

// Keywords returns a copy of the keyword list for label.
func Keywords(label types.Emotion) []string {
	return append([]string(nil), keywords[label]...)
}

// score is the vote for a single label.
type score struct {
	hits    int
	matched int // total length of matched keywords
}

// Classify returns the label whose keywords appear most often in text.
//
// Ties on hit count go to the label whose matched keywords are longer in
// total, so "what do you mean" beats the bare "what". Remaining ties go to
// the label listed first in types.AllEmotions. Text with no hits is neutral.
func Classify(text string) types.Emotion {
	best := types.EmotionNeutral
	var bestScore score
	for _, label := range types.AllEmotions {
		s := scoreLabel(strings.ToLower(text), label)
		if s.hits == 0 {
			continue
		}
		if s.hits > bestScore.hits || (s.hits == bestScore.hits && s.matched > bestScore.matched) {
			best = label
			bestScore = s
		}
	}
	return best
}

// Scores returns the non-zero hit count for every label.
func Scores(text string) map[types.Emotion]int {
	lower := strings.ToLower(text)
	out := make(map[types.Emotion]int)
	for _, label := range types.AllEmotions {
		if s := scoreLabel(lower, label); s.hits > 0 {
			out[label] = s.hits
		}
	}
	return out
}

func scoreLabel(lower string, label types.Emotion) score {
	var s score
	for _, kw := range keywords[label] {
		if strings.Contains(lower, kw) {
			s.hits++
			s.matched += len(kw)
		}
	}
	return s
}

// Analysis is the result exposed by the /emotion endpoint.
type Analysis struct {
	Emotion    types.Emotion         `json:"emotion"`
	Confidence float64               `json:"confidence"`
	Analysis   string                `json:"analysis"`
	Scores     map[types.Emotion]int `json:"scores,omitempty"`
}

// Analyze classifies text and wraps the result with the placeholder confidence.
func Analyze(text string) Analysis {
	label := Classify(text)
	return Analysis{
		Emotion:    label,
		Confidence: PlaceholderConfidence,
		Analysis:   fmt.Sprintf("Detected primary emotion: %s", label),
		Scores:     Scores(text),
	}
}
