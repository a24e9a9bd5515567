package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/platform/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("empty url means not configured", func(t *testing.T) {
		c, err := New(ctx, config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := New(ctx, config.RedisConfig{URL: "://nope"})
		assert.Error(t, err)
	})

	t.Run("connects and reports health", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c, err := New(ctx, config.RedisConfig{
			URL:         "redis://" + mr.Addr(),
			PoolSize:    2,
			DialTimeout: time.Second,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })

		assert.NoError(t, c.Health(ctx))
		mr.Close()
		assert.Error(t, c.Health(ctx))
	})

	t.Run("unreachable server fails the ping", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := New(ctx, config.RedisConfig{URL: "redis://" + addr, DialTimeout: 200 * time.Millisecond})
		assert.Error(t, err)
	})
}
