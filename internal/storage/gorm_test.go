package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relaychat/relay/internal/common/config"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := NewGormStore(zap.NewNop(), &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewGormStore_UnsupportedDriver(t *testing.T) {
	_, err := NewGormStore(zap.NewNop(), &config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestSaveMessage_AssignsIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)

	msg, err := store.SaveMessage(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Equal(t, "alice", msg.From)
	assert.Equal(t, "bob", msg.To)
	assert.Equal(t, "hi", msg.Content)

	// identifiers are unique per message
	msg2, err := store.SaveMessage(context.Background(), "alice", "bob", "hi again")
	require.NoError(t, err)
	assert.NotEqual(t, msg.ID, msg2.ID)
}

func TestListHistory_BothDirections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveMessage(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	_, err = store.SaveMessage(ctx, "bob", "alice", "two")
	require.NoError(t, err)
	_, err = store.SaveMessage(ctx, "alice", "carol", "unrelated")
	require.NoError(t, err)

	history, err := store.ListHistory(ctx, "alice", "bob", 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	contents := []string{history[0].Content, history[1].Content}
	assert.ElementsMatch(t, []string{"one", "two"}, contents)
}

func TestListHistory_Pagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.SaveMessage(ctx, "alice", "bob", fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	page1, err := store.ListHistory(ctx, "alice", "bob", 1, 2)
	require.NoError(t, err)
	page2, err := store.ListHistory(ctx, "alice", "bob", 2, 2)
	require.NoError(t, err)
	page3, err := store.ListHistory(ctx, "alice", "bob", 3, 2)
	require.NoError(t, err)

	assert.Len(t, page1, 2)
	assert.Len(t, page2, 2)
	assert.Len(t, page3, 1)

	var all []string
	for _, m := range append(append(page1, page2...), page3...) {
		all = append(all, m.Content)
	}
	assert.ElementsMatch(t, []string{"msg-0", "msg-1", "msg-2", "msg-3", "msg-4"}, all)
}

func TestListHistory_EmptyAndDefaults(t *testing.T) {
	store := newTestStore(t)

	history, err := store.ListHistory(context.Background(), "nobody", "noone", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
