package identity

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStorageRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	storage, err := NewRedisStorage(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	key := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = storage.Delete(ctx, key) })

	_, ok, err := storage.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := Session{AccessToken: "at", ExpiresAt: time.Unix(2000000000, 0).UTC()}
	require.NoError(t, storage.Save(ctx, key, want))

	got, ok, err := storage.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	ttl, err := storage.Client.TTL(ctx, redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, storage.Delete(ctx, key))
	_, ok, err = storage.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
