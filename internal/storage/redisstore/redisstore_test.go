package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/internal/storage/storagetest"
	"github.com/scrypster/companion/pkg/types"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, ""), mr
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestOpen_URL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "redis", s.Backend())
}

func TestOpen_BadURL(t *testing.T) {
	_, err := Open(context.Background(), "http://nope")
	assert.Error(t, err)
}

func TestCommitTurn_KeyLayout(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	turn := storagetest.NewTurn(1, time.Now().UTC(), types.EmotionHappy)
	turn.World = types.NewWorldState()
	require.NoError(t, s.CommitTurn(ctx, turn))

	assert.True(t, mr.Exists("companion:conversations"))
	assert.True(t, mr.Exists("companion:emotions"))
	assert.True(t, mr.Exists("companion:world"))
	assert.False(t, mr.Exists("companion:thoughts"))

	members, err := mr.Members("companion:conversation_ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-001"}, members)
}

func TestSaveCompanion_DropsDerivedCount(t *testing.T) {
	s, mr := newTestStore(t)
	c := types.NewCompanionState()
	c.ConversationCount = 42
	require.NoError(t, s.SaveCompanion(context.Background(), c))

	raw, err := mr.Get("companion:state")
	require.NoError(t, err)
	assert.Contains(t, raw, `"conversations_count":0`)
}
