package weather

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheGetSet(t *testing.T) {
	c := NewTTLCache()

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", "v", time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", -time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)

	// Expired entries remain reachable as stale
	v, ok := c.GetStale("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestGetOrSetCachesResult(t *testing.T) {
	c := NewTTLCache()
	calls := 0
	fn := func() (string, error) {
		calls++
		return "fresh", nil
	}

	v, err := c.GetOrSet("k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	v, err = c.GetOrSet("k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 1, calls)
}

func TestGetOrSetStaleOnError(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "stale", -time.Second)

	v, err := c.GetOrSet("k", time.Minute, func() (string, error) {
		return "", errors.New("upstream down")
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v)

	// Without a stale value the error propagates
	_, err = c.GetOrSet("other", time.Minute, func() (string, error) {
		return "", errors.New("upstream down")
	})
	assert.Error(t, err)
}
