package adventure

import (
	"strings"

	"github.com/scrypster/companion/pkg/types"
)

// triggerKeywords suggest the user wants to play.
var triggerKeywords = []string{
	"explore", "adventure", "journey", "quest", "dungeon", "forest", "castle",
	"magic", "spell", "dragon", "treasure", "sword", "battle", "fight",
	"go to", "travel", "walk", "run", "climb", "search", "look around",
	"inventory", "items", "equipment", "weapon", "armor", "potion",
}

// Context summarizes how strongly a message points at adventure mode.
type Context struct {
	SuggestsAdventure    bool `json:"suggests_adventure"`
	Score                int  `json:"adventure_score"`
	CurrentlyInAdventure bool `json:"currently_in_adventure"`
}

// DetectContext scores text against the trigger keywords.
func DetectContext(text string, world *types.WorldState) Context {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range triggerKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	inAdventure := world != nil && (world.AdventureActive || world.CurrentScene == types.SceneAdventure)
	return Context{
		SuggestsAdventure:    score > 0,
		Score:                score,
		CurrentlyInAdventure: inAdventure,
	}
}
