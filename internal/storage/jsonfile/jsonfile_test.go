package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/internal/storage/storagetest"
	"github.com/scrypster/companion/pkg/types"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestReopenRestoresEverything(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	turn := storagetest.NewTurn(1, time.Now().UTC(), types.EmotionGrateful)
	turn.Thought = &types.CompanionThought{ID: "th", Timestamp: time.Now().UTC(), Text: "hmm", Type: "reflection"}
	turn.World = types.NewWorldState()
	turn.World.Inventory = []string{"lantern"}
	require.NoError(t, s.CommitTurn(ctx, turn))
	require.NoError(t, s.Close())

	for _, name := range []string{MemoryFile, WorldFile, ThoughtsFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	s, err = Open(dir)
	require.NoError(t, err)

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	w, err := s.LoadWorld(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lantern"}, w.Inventory)

	th, err := s.ListThoughts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, th, 1)
	assert.Equal(t, "hmm", th[0].Text)

	// The reloaded id index still rejects duplicates.
	assert.Error(t, s.CommitTurn(ctx, storagetest.NewTurn(1, time.Now(), types.EmotionSad)))
}

func TestOpen_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, WorldFile), []byte("{nope"), 0o644))

	_, err := Open(dir)
	assert.ErrorContains(t, err, "corrupt")
}

func TestCommit_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.CommitTurn(context.Background(), storagetest.NewTurn(1, time.Now(), types.EmotionHappy)))

	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLoadWorld_ReturnsCopy(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	w, err := s.LoadWorld(context.Background())
	require.NoError(t, err)
	w.Inventory = append(w.Inventory, "sneaky")

	again, err := s.LoadWorld(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Inventory)
}

func TestTwoHandlesShareTheLog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cli, err := Open(dir)
	require.NoError(t, err)
	server, err := Open(dir)
	require.NoError(t, err)

	first := storagetest.NewTurn(1, time.Now().UTC(), types.EmotionHappy)
	first.Conversation.ID = "from-cli"
	require.NoError(t, cli.CommitTurn(ctx, first))

	second := storagetest.NewTurn(2, time.Now().UTC(), types.EmotionSad)
	second.Conversation.ID = "from-server"
	require.NoError(t, server.CommitTurn(ctx, second))

	// The first handle sees the second handle's turn too.
	n, err := cli.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	reopened, err := Open(dir)
	require.NoError(t, err)
	convs, err := reopened.ListConversations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "from-server", convs[0].ID)
	assert.Equal(t, "from-cli", convs[1].ID)

	// Ids committed elsewhere are still rejected as duplicates.
	assert.Error(t, server.CommitTurn(ctx, first))
}

func TestTwoHandles_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := Open(dir)
	require.NoError(t, err)
	b, err := Open(dir)
	require.NoError(t, err)

	const perHandle = 10
	errs := make(chan error, 2*perHandle)
	for i := 0; i < perHandle; i++ {
		go func(i int) { errs <- a.CommitTurn(ctx, storagetest.NewTurn(i, time.Now(), types.EmotionHappy)) }(i)
		go func(i int) { errs <- b.CommitTurn(ctx, storagetest.NewTurn(100+i, time.Now(), types.EmotionSad)) }(i)
	}
	for i := 0; i < 2*perHandle; i++ {
		require.NoError(t, <-errs)
	}

	n, err := a.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*perHandle, n)
}

func TestReadsFollowTheDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.CommitTurn(ctx, storagetest.NewTurn(1, time.Now(), types.EmotionHappy)))

	// Replace memory.json behind the store's back, as a partly applied
	// commit would.
	require.NoError(t, os.WriteFile(filepath.Join(dir, MemoryFile), []byte(`{"conversations":[],"emotional_patterns":[]}`), 0o644))

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, os.WriteFile(filepath.Join(dir, MemoryFile), []byte("{nope"), 0o644))
	_, err = s.CountConversations(ctx)
	assert.ErrorContains(t, err, "corrupt")
}
