package netcdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)
	require.NoError(t, c.put("a", nil))

	_, ok := c.get("a")
	assert.True(t, ok)
	_, ok = c.get("b")
	assert.False(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache(2)
	require.NoError(t, c.put("a", nil))
	require.NoError(t, c.put("b", nil))

	// Touch "a" so "b" becomes the eviction candidate.
	c.get("a")
	require.NoError(t, c.put("c", nil))

	_, okA := c.get("a")
	_, okB := c.get("b")
	_, okC := c.get("c")
	assert.True(t, okA)
	assert.False(t, okB, "b should have been evicted")
	assert.True(t, okC)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	require.NoError(t, c.put("a", nil))
	require.NoError(t, c.put("a", nil))
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_Purge(t *testing.T) {
	c := newLRUCache(4)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.put(k, nil))
	}
	require.NoError(t, c.purge())
	assert.Equal(t, 0, c.len())
	assert.Nil(t, c.head)
	assert.Nil(t, c.tail)
}

func TestLRUCache_SizeOne(t *testing.T) {
	c := newLRUCache(1)
	require.NoError(t, c.put("a", nil))
	require.NoError(t, c.put("b", nil))

	_, okA := c.get("a")
	_, okB := c.get("b")
	assert.False(t, okA)
	assert.True(t, okB)
}
