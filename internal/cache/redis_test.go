package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(ctx, RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, sampleSnapshot()))
	assert.True(t, mr.Exists(DefaultRedisKey))
	assert.Equal(t, DefaultRedisTTL, mr.TTL(DefaultRedisKey))

	got, err = c.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(42), got.Digest)
	assert.Equal(t, "meta-llama/llama-3.3-70b-instruct:free", got.Catalog.SelectedFree)

	mr.FastForward(DefaultRedisTTL + time.Second)
	got, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "snapshot expires after the TTL")
}

func TestRedisCache_CustomKeyAndBadPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(ctx, RedisConfig{URL: "redis://" + mr.Addr(), Key: "custom", TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, mr.Set("custom", "{not json"))
	_, err = c.Get(ctx)
	assert.Error(t, err)
}

func TestNewRedisCache_Errors(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{URL: "not a url"})
	assert.Error(t, err)

	_, err = NewRedisCache(context.Background(), RedisConfig{URL: "redis://127.0.0.1:1"})
	assert.Error(t, err)
}
