package adventure_test

import (
	"errors"
	"testing"

	"github.com/scrypster/companion/internal/adventure"
	"github.com/scrypster/companion/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMap_ExitsAreConsistent(t *testing.T) {
	m := adventure.DefaultMap()
	assert.LessOrEqual(t, m.Len(), 5)

	for _, id := range []string{"clearing", "forest_path", "old_bridge", "river_cave", "ruined_tower"} {
		room, ok := m.Room(id)
		require.True(t, ok, id)
		for dir, target := range room.Exits {
			_, ok := m.Room(target)
			assert.True(t, ok, "%s exit %s points at unknown room %s", id, dir, target)
		}
	}
}

func TestMap_MoveAlongExit(t *testing.T) {
	m := adventure.DefaultMap()
	to, err := m.Move("clearing", "north")
	require.NoError(t, err)
	assert.Equal(t, "forest_path", to.ID)
	assert.Equal(t, types.SceneAdventure, to.Location().Type)
}

func TestMap_MoveWithoutExit(t *testing.T) {
	m := adventure.DefaultMap()
	from, err := m.Move("clearing", "south")
	require.Error(t, err)
	assert.ErrorIs(t, err, adventure.ErrNoExit)
	assert.Equal(t, "clearing", from.ID)

	var noExit *adventure.NoExitError
	require.True(t, errors.As(err, &noExit))
	assert.Equal(t, []string{"east", "north"}, noExit.Exits)
	assert.Contains(t, err.Error(), "east, north")
}

func TestMap_MoveFromUnknownRoom(t *testing.T) {
	_, err := adventure.DefaultMap().Move("attic", "north")
	assert.ErrorIs(t, err, adventure.ErrUnknownRoom)
}

func TestMap_CurrentFallsBackToStart(t *testing.T) {
	m := adventure.DefaultMap()
	assert.Equal(t, "clearing", m.Current(types.NewWorldState()).ID)

	w := types.NewWorldState()
	w.Location = types.Location{ID: "river_cave"}
	assert.Equal(t, "river_cave", m.Current(w).ID)
}

func TestRoom_ItemsLeft(t *testing.T) {
	room, _ := adventure.DefaultMap().Room("clearing")
	assert.Equal(t, []string{"lantern"}, room.ItemsLeft(nil))
	assert.Empty(t, room.ItemsLeft([]string{"lantern"}))
}

func TestDetectContext(t *testing.T) {
	w := types.NewWorldState()
	ctx := adventure.DetectContext("let's explore the dark forest", w)
	assert.True(t, ctx.SuggestsAdventure)
	assert.Equal(t, 2, ctx.Score)
	assert.False(t, ctx.CurrentlyInAdventure)

	w.AdventureActive = true
	w.CurrentScene = types.SceneAdventure
	ctx = adventure.DetectContext("hello there", w)
	assert.False(t, ctx.SuggestsAdventure)
	assert.True(t, ctx.CurrentlyInAdventure)
}
