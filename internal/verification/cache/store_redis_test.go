package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/verification/models"
)

func TestRedisStoreSetsKeyExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedis(client, WithTTL(2*time.Hour))
	require.NoError(t, store.Put(context.Background(), "ada@example.com", "s1", models.StatusApproved))

	assert.Equal(t, 2*time.Hour, mr.TTL(redisKeyPrefix+"ada@example.com"))

	mr.FastForward(2 * time.Hour)
	entry, err := store.Get(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRedisStoreTreatsCorruptEntryAsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set(redisKeyPrefix+"ada@example.com", "{not json"))

	store := NewRedis(client)
	entry, err := store.Get(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.False(t, mr.Exists(redisKeyPrefix+"ada@example.com"))
}

func TestRedisStoreSurfacesBackendErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedis(client).Get(context.Background(), "ada@example.com")
	assert.Error(t, err)
}
