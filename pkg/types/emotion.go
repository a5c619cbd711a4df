// Package types defines the companion's data model: emotions, conversations,
// the companion and world singletons, and user preferences.
package types

// Emotion is a label from the closed vocabulary produced by the classifier.
type Emotion string

// Emotion labels. The declaration order of AllEmotions is significant: the
// classifier scans labels in this order and the first maximal score wins.
const (
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAnxious   Emotion = "anxious"
	EmotionAngry     Emotion = "angry"
	EmotionCurious   Emotion = "curious"
	EmotionNostalgic Emotion = "nostalgic"
	EmotionGrateful  Emotion = "grateful"
	EmotionLonely    Emotion = "lonely"
	EmotionExcited   Emotion = "excited"
	EmotionConfused  Emotion = "confused"
	EmotionNeutral   Emotion = "neutral"
)

// AllEmotions lists every non-neutral label in classifier scan order.
var AllEmotions = []Emotion{
	EmotionHappy,
	EmotionSad,
	EmotionAnxious,
	EmotionAngry,
	EmotionCurious,
	EmotionNostalgic,
	EmotionGrateful,
	EmotionLonely,
	EmotionExcited,
	EmotionConfused,
}

// IsValidEmotion reports whether e belongs to the vocabulary (neutral included).
func IsValidEmotion(e Emotion) bool {
	if e == EmotionNeutral {
		return true
	}
	for _, known := range AllEmotions {
		if e == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (e Emotion) String() string {
	return string(e)
}
