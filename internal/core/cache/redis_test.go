package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type member struct {
	Name  string `json:"name"`
	Hours int    `json:"hours"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNew_EmptyAddrDisablesCache(t *testing.T) {
	c := New("", "", 0)
	assert.Nil(t, c)

	var calls int
	for i := 0; i < 2; i++ {
		got, err := GetOrLoadJSON(c, context.Background(), "k", time.Minute, func(context.Context) ([]member, error) {
			calls++
			return []member{{Name: "ana"}}, nil
		})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	assert.Equal(t, 2, calls)
	require.NoError(t, c.Del(context.Background(), "k"))
	require.NoError(t, c.Ping(context.Background()))
}

func TestGetOrLoadJSON_CachesUntilDeleted(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int32
	load := func(context.Context) ([]member, error) {
		calls.Add(1)
		return []member{{Name: "ana", Hours: int(calls.Load())}}, nil
	}

	first, err := GetOrLoadJSON(c, ctx, "team", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoadJSON(c, ctx, "team", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, mr.Exists("tv:team"))

	require.NoError(t, c.Del(ctx, "team"))
	third, err := GetOrLoadJSON(c, ctx, "team", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, third[0].Hours)
}

func TestGetOrLoadJSON_TTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	_, err := GetOrLoadJSON(c, ctx, "h", 30*time.Second, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists("tv:h"))
}

func TestGetOrLoad_LoadErrorNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("db down")
	_, err := GetOrLoadJSON(c, context.Background(), "x", time.Minute, func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("tv:x"))
}

func TestGetOrLoad_RedisDownFallsBackToLoader(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	got, err := GetOrLoadJSON(c, context.Background(), "x", time.Minute, func(context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}
