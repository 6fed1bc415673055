package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKV(t *testing.T) {
	mr := miniredis.RunT(t)
	kv := NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	_, err := kv.Get(ctx, "dashboard:summary")
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, kv.Set(ctx, "dashboard:summary", `{"ok":true}`, 30*time.Second))
	v, err := kv.Get(ctx, "dashboard:summary")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, v)

	mr.FastForward(31 * time.Second)
	_, err = kv.Get(ctx, "dashboard:summary")
	assert.True(t, errors.Is(err, ErrMiss), "expired entry")

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	require.NoError(t, kv.Delete(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrMiss))
}
