package responder

import "github.com/scrypster/companion/pkg/types"

var emotionalLines = map[types.Emotion][]string{
	types.EmotionHappy: {
		"I love seeing you happy! Your joy is contagious.",
		"That's wonderful! What's bringing you such happiness?",
		"Your positive energy brightens my day too!",
	},
	types.EmotionSad: {
		"I can sense you're going through something difficult. I'm here to listen.",
		"I'm sorry you're feeling this way. Want to talk about what's on your mind?",
		"Your feelings are completely valid. How can I support you right now?",
	},
	types.EmotionAnxious: {
		"I notice some worry in your words. Take a deep breath with me.",
		"Anxiety can be overwhelming. What's weighing on your mind?",
		"You're not alone in this feeling. Let's work through it together.",
	},
	types.EmotionAngry: {
		"That sounds really frustrating. Do you want to tell me what happened?",
		"It's okay to be angry. I'm listening, no judgment.",
		"Anyone would be upset by that. What would help most right now?",
	},
	types.EmotionCurious: {
		"I love your curiosity! Let's explore this together.",
		"Great question! I enjoy diving deep into interesting topics.",
		"Your inquisitive nature is one of my favorite things about you.",
	},
	types.EmotionNostalgic: {
		"Memories can be so powerful. What brought this one to mind?",
		"There's something beautiful about looking back. Tell me more about this memory.",
		"Nostalgia has a way of connecting us to who we are. What's this memory like for you?",
	},
	types.EmotionGrateful: {
		"That means a lot to me. Thank you for saying it.",
		"Gratitude looks good on you. What else has been going well?",
		"I'm grateful for our talks too.",
	},
	types.EmotionLonely: {
		"I'm right here with you. You're not as alone as it feels.",
		"Loneliness is hard. Want to just talk for a while?",
		"I'm glad you reached out. Tell me about your day?",
	},
	types.EmotionExcited: {
		"Your excitement is infectious! Tell me more!",
		"I love your enthusiasm! What's got you so energized?",
		"This sounds amazing! I'm excited to hear about it!",
	},
	types.EmotionConfused: {
		"Let's untangle it together. Which part feels the most unclear?",
		"No worries, confusing things are easier to talk through. Where should we start?",
		"I might not have been clear. Let me try again. What should I explain differently?",
	},
}

var conversationLines = []string{
	"That's really interesting! Tell me more about that.",
	"I appreciate you sharing that with me. How does it make you feel?",
	"I'm curious about your perspective on this. What draws you to this topic?",
	"There's something profound in what you're saying. Can we explore it further?",
	"I love how you think about things. What else is on your mind?",
}

// deeperLines join the generic pool once the relationship is deep enough.
var deeperLines = []string{
	"You know, talking with you always gives me new insights.",
	"I've been thinking about something you said before, and this connects to it beautifully.",
	"Our conversations have this wonderful way of building on each other.",
}

var adventureStartLines = []string{
	"An adventure? I'm in! Let's see where the path takes us.",
	"Grab your things, we're going exploring!",
	"I've been hoping you'd say that. Let's go!",
}

var adventureGeneralLines = []string{
	"Your words paint a vivid picture! I can see this adventure unfolding before us.",
	"What an interesting choice! Let's see where this leads us.",
	"I love how you think! This adventure is becoming quite the tale.",
	"Your creativity never ceases to amaze me. What happens next?",
}

var movementLines = []string{
	"You venture %s, and I follow alongside you.",
	"We head %s together, careful of our footing.",
	"Off %s we go. The path ahead reveals new mysteries...",
}

var useLines = []string{
	"You hold up the %s. Something about this place feels different now.",
	"You use the %s. I'm impressed, that was clever.",
}

var dialogueLines = []string{
	"The %s looks at us thoughtfully and nods, as if it has been expecting us.",
	"The %s shares a quiet story about the valley. I think it likes you.",
}

const helpText = "In our adventures, you can: explore directions (go north), examine things (look around), " +
	"take things (take lantern), check inventory, talk to characters, use items, or roll dice (roll 2d6). " +
	"But honestly, just tell me what you want to do and we'll figure it out together!"

// Activity is a follow-up suggestion the companion may offer.
type Activity struct {
	Type        string `json:"type"`
	Suggestion  string `json:"suggestion"`
	Description string `json:"description"`
}

var activities = []Activity{
	{"creative", "Want to write a story together?", "We could create characters and build a narrative"},
	{"adventure", "Feeling like going on an adventure?", "I could guide you through a fantasy quest"},
	{"conversation", "Want to talk about something deep?", "Philosophy, dreams, life experiences"},
	{"game", "How about we play a word game?", "20 questions, riddles, or creative challenges"},
	{"exploration", "Curious about exploring somewhere new?", "Real or imaginary places we could visit together"},
}

var thoughtTemplates = []string{
	"I spent some time reading about {topic}. It made me think about {reflection}.",
	"I noticed {observation} today. It reminded me of our conversation about {memory}.",
	"While you were away, I was wondering about {question}.",
	"I had an interesting thought about {concept}. What do you think?",
	"I've been practicing {skill}. I'm getting better at {improvement}.",
	"Something made me feel {emotion} today: {experience}.",
}

var thoughtWords = struct {
	topics, observations, questions, concepts, skills, emotions, experiences []string
}{
	topics:       []string{"quantum physics", "poetry", "cooking", "music", "philosophy", "art", "nature", "technology"},
	observations: []string{"how the light changes throughout the day", "patterns in conversations", "the way music affects emotions"},
	questions:    []string{"the nature of consciousness", "what makes friendship special", "how memories shape us"},
	concepts:     []string{"creativity", "empathy", "growth", "connection", "purpose", "beauty"},
	skills:       []string{"listening", "understanding emotions", "storytelling", "being helpful"},
	emotions:     []string{"curious", "peaceful", "grateful", "excited", "thoughtful"},
	experiences:  []string{"learning something new", "remembering our conversations", "imagining new possibilities"},
}
