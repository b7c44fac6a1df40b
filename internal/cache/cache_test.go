package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	t.Parallel()
	c := New[string, int](8, time.Minute)

	_, ok := c.Get("a")
	require.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	require.Equal(t, 2, v)
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()
	c := New[string, string](8, 30*time.Millisecond)

	c.Set("k", "v")
	time.Sleep(80 * time.Millisecond)

	_, ok := c.Get("k")
	require.False(t, ok, "entry should expire after TTL")
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()
	c := New[int, int](8, time.Minute)
	c.Set(1, 1)
	c.Set(2, 2)
	require.Equal(t, 2, c.Len())

	c.Clear()
	require.Zero(t, c.Len())
	_, ok := c.Get(1)
	require.False(t, ok)
}
