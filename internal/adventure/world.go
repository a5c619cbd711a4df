package adventure

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/scrypster/companion/pkg/types"
)

// ErrNoExit is returned when a room has no exit in the requested direction.
var ErrNoExit = errors.New("no exit in that direction")

// ErrUnknownRoom is returned for room IDs that are not on the map.
var ErrUnknownRoom = errors.New("unknown room")

// Room is a node on the adventure map.
type Room struct {
	ID          string
	Name        string
	Description string
	Exits       map[string]string // direction -> room ID
	Items       []string
	Characters  []string
}

// Location converts the room into the world-state descriptor.
func (r Room) Location() types.Location {
	return types.Location{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Type:        types.SceneAdventure,
	}
}

// ExitNames returns the room's exit directions in sorted order.
func (r Room) ExitNames() []string {
	names := make([]string, 0, len(r.Exits))
	for dir := range r.Exits {
		names = append(names, dir)
	}
	sort.Strings(names)
	return names
}

// HasCharacter reports whether name is someone you can talk to here.
func (r Room) HasCharacter(name string) bool {
	for _, c := range r.Characters {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// ItemsLeft returns the room's items that are not already carried.
func (r Room) ItemsLeft(inventory []string) []string {
	carried := make(map[string]bool, len(inventory))
	for _, item := range inventory {
		carried[item] = true
	}
	var left []string
	for _, item := range r.Items {
		if !carried[item] {
			left = append(left, item)
		}
	}
	return left
}

// NoExitError reports a blocked move and the exits that would have worked.
type NoExitError struct {
	Direction string
	Exits     []string
}

func (e *NoExitError) Error() string {
	return fmt.Sprintf("can't go %s from here; exits: %s", e.Direction, strings.Join(e.Exits, ", "))
}

// Unwrap lets errors.Is match ErrNoExit.
func (e *NoExitError) Unwrap() error {
	return ErrNoExit
}

// Map is a fixed location graph.
type Map struct {
	start string
	rooms map[string]Room
}

// DefaultMap returns the five-room map adventures start on.
func DefaultMap() *Map {
	rooms := []Room{
		{
			ID:          "clearing",
			Name:        "Misty Clearing",
			Description: "Soft light filters through the mist. A trail winds north into the trees, and you hear running water to the east.",
			Exits:       map[string]string{"north": "forest_path", "east": "old_bridge"},
			Items:       []string{"lantern"},
		},
		{
			ID:          "forest_path",
			Name:        "Whispering Forest Path",
			Description: "Tall pines lean together overhead and murmur in the wind. A fox watches you from the ferns.",
			Exits:       map[string]string{"south": "clearing", "north": "ruined_tower"},
			Items:       []string{"walking stick"},
			Characters:  []string{"fox"},
		},
		{
			ID:          "old_bridge",
			Name:        "Old Stone Bridge",
			Description: "Moss covers an arched bridge over a quick river. Steps lead down to the water's edge.",
			Exits:       map[string]string{"west": "clearing", "down": "river_cave"},
			Characters:  []string{"troll"},
		},
		{
			ID:          "river_cave",
			Name:        "Glittering River Cave",
			Description: "Crystals in the cave walls catch the light and scatter it across the water.",
			Exits:       map[string]string{"up": "old_bridge"},
			Items:       []string{"glowing crystal"},
		},
		{
			ID:          "ruined_tower",
			Name:        "Ruined Watchtower",
			Description: "The old tower's stones are warm from the sun. From here you can see the whole valley.",
			Exits:       map[string]string{"south": "forest_path"},
			Items:       []string{"rusty key"},
			Characters:  []string{"hermit"},
		},
	}
	m := &Map{start: "clearing", rooms: make(map[string]Room, len(rooms))}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

// Start returns the room new adventures begin in.
func (m *Map) Start() Room {
	return m.rooms[m.start]
}

// Room looks up a room by ID.
func (m *Map) Room(id string) (Room, bool) {
	r, ok := m.rooms[id]
	return r, ok
}

// Len returns the number of rooms.
func (m *Map) Len() int {
	return len(m.rooms)
}

// Current resolves the room a world state is in. Worlds that are not on
// the map (the real world, or legacy state) resolve to the start room.
func (m *Map) Current(world *types.WorldState) Room {
	if world != nil {
		if r, ok := m.rooms[world.Location.ID]; ok {
			return r
		}
	}
	return m.Start()
}

// Move follows the exit in direction from the room fromID.
func (m *Map) Move(fromID, direction string) (Room, error) {
	from, ok := m.rooms[fromID]
	if !ok {
		return Room{}, fmt.Errorf("%w: %s", ErrUnknownRoom, fromID)
	}
	to, ok := from.Exits[direction]
	if !ok {
		return from, &NoExitError{Direction: direction, Exits: from.ExitNames()}
	}
	return m.rooms[to], nil
}
