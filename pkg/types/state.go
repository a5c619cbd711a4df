package types

import "time"

// Scene values for WorldState.CurrentScene.
const (
	SceneRealWorld = "real_world"
	SceneAdventure = "adventure"
)

// ValidScenes contains all valid scene values.
var ValidScenes = []string{
	SceneRealWorld,
	SceneAdventure,
}

// IsValidScene checks if the given scene is a valid scene tag.
func IsValidScene(scene string) bool {
	for _, valid := range ValidScenes {
		if scene == valid {
			return true
		}
	}
	return false
}

// Location describes where the companion and user currently are.
type Location struct {
	ID          string `json:"id,omitempty"` // Room ID on the adventure map; empty in the real world
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"` // real_world or adventure
}

// HomeLocation is the real-world location used outside adventure mode.
func HomeLocation() Location {
	return Location{
		Name:        "Cozy Space",
		Description: "A comfortable, safe space where we can talk and be ourselves.",
		Type:        SceneRealWorld,
	}
}

// WorldState is the singleton holding scene, location, and inventory.
type WorldState struct {
	CurrentScene    string          `json:"current_scene"`
	AdventureActive bool            `json:"adventure_active"`
	Location        Location        `json:"location"`
	Inventory       []string        `json:"inventory"`
	GameMechanics   map[string]bool `json:"game_mechanics"`
	LastUpdated     time.Time       `json:"last_updated"`
}

// NewWorldState returns the world as it exists before the first turn.
func NewWorldState() *WorldState {
	return &WorldState{
		CurrentScene:    SceneRealWorld,
		AdventureActive: false,
		Location:        HomeLocation(),
		Inventory:       []string{},
		GameMechanics:   map[string]bool{"dice_enabled": true},
		LastUpdated:     time.Now().UTC(),
	}
}

// HasItem reports whether the inventory holds item.
func (w *WorldState) HasItem(item string) bool {
	for _, have := range w.Inventory {
		if have == item {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can stage changes before committing.
func (w *WorldState) Clone() *WorldState {
	if w == nil {
		return nil
	}
	c := *w
	c.Inventory = append([]string{}, w.Inventory...)
	c.GameMechanics = make(map[string]bool, len(w.GameMechanics))
	for k, v := range w.GameMechanics {
		c.GameMechanics[k] = v
	}
	return &c
}
