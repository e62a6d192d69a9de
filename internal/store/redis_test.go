package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only when REDIS_ADDR points at a disposable server.
func TestRedisAppend(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	prefix := "slashgate-test-" + uuid.NewString() + ":"
	r, err := NewRedis(ctx, RedisOptions{Addr: addr, KeyPrefix: prefix, MaxLen: 100})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.client.Del(context.Background(), r.streamKey("notes")).Err()
		_ = r.Close()
	})

	id, err := r.Append(ctx, "notes", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := r.client.XRange(ctx, r.streamKey("notes"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.JSONEq(t, `{"text":"hi"}`, entries[0].Values["body"].(string))
}

func TestNewRedisValidatesOptions(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisOptions{})
	assert.Error(t, err)

	_, err = NewRedis(context.Background(), RedisOptions{Addr: "localhost:6379", DB: -1})
	assert.Error(t, err)
}
