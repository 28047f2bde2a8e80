package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisFromClient(rdb, "farmauth")
	defer s.Close()

	exerciseStore(t, s)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "farm_login_path", "/login", time.Minute))
	raw, err := mr.Get("farmauth:farm_login_path")
	require.NoError(t, err)
	assert.Equal(t, "/login", raw)

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, "farm_login_path")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), Config{
		Driver: DriverRedis,
		Redis:  RedisConfig{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), "k", "v", 0))
	assert.True(t, mr.Exists("k"), "sin prefijo la clave queda tal cual")
}

func TestOpen_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), Config{Driver: DriverRedis, Redis: RedisConfig{Addr: addr}})
	assert.Error(t, err)
}
