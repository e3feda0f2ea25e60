package deadletter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewStore(client, "dlq-test")
}

func TestStorePushAndList(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Push(ctx, Entry{
		Queue:    "user-seller-queue",
		Attempts: 4,
		Error:    "seller not found",
		Payload:  json.RawMessage(`{"type":"cancel-order","sellerId":"S1"}`),
	}))
	require.NoError(t, store.Push(ctx, Entry{
		Queue:   "user-buyer-queue",
		Error:   "boom",
		Payload: json.RawMessage(`{"type":"auth"}`),
	}))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	entries, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user-buyer-queue", entries[0].Queue, "newest first")
	assert.Equal(t, "user-seller-queue", entries[1].Queue)
	assert.Equal(t, 4, entries[1].Attempts)
	assert.JSONEq(t, `{"type":"cancel-order","sellerId":"S1"}`, string(entries[1].Payload))
	assert.False(t, entries[0].At.IsZero())
}

func TestStorePushQuotesInvalidPayload(t *testing.T) {
	mr, store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Push(ctx, Entry{Queue: "q", Error: "bad", Payload: []byte("not-json")}))

	items, err := mr.List("dlq-test")
	require.NoError(t, err)
	require.Len(t, items, 1)

	entries, err := store.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, `"not-json"`, string(entries[0].Payload))
}

func TestConnectFailsWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = Connect(context.Background(), addr, "k")
	require.Error(t, err)
}
