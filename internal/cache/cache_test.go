package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func exercise(t *testing.T, c Client) {
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.True(t, IsNotFound(err))

	// borrar algo inexistente no es error
	require.NoError(t, c.Delete(ctx, "never-set"))
}

func TestMemoryClient(t *testing.T) {
	c := NewMemory("test", time.Minute, time.Minute)
	exercise(t, c)
}

func TestMemoryClientExpires(t *testing.T) {
	c := NewMemory("", time.Minute, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestRedisClient(t *testing.T) {
	mr, rdb := newTestRedis(t)
	c := NewRedis(rdb, "acc", time.Minute)
	exercise(t, c)

	require.NoError(t, c.Set(context.Background(), "ttl", "x", 0))
	assert.True(t, mr.Exists("acc:ttl"))
	assert.Equal(t, time.Minute, mr.TTL("acc:ttl"))

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(context.Background(), "ttl")
	assert.True(t, IsNotFound(err))
}

func TestNew(t *testing.T) {
	_, rdb := newTestRedis(t)

	c, err := New(Config{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, c)

	c, err = New(Config{Driver: "redis"}, rdb)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = New(Config{Driver: "redis"}, nil)
	assert.Error(t, err)

	_, err = New(Config{Driver: "memcached"}, nil)
	assert.Error(t, err)
}
