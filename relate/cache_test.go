package relate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryCachePutGet(t *testing.T) {
	dir := t.TempDir()
	c, err := NewGeometryCache(dir, "areas")
	require.NoError(t, err)
	defer c.Close()

	mp := orb.MultiPolygon{square(0, 0, 1, 1)}
	require.NoError(t, c.Put(1, mp))

	r, err := c.NewReader(2)
	require.NoError(t, err)
	defer r.Close()

	got, ok, err := r.Get(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, mp, got)
}

func TestGeometryCacheMissReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	c, err := NewGeometryCache(dir, "areas")
	require.NoError(t, err)
	defer c.Close()

	r, err := c.NewReader(2)
	require.NoError(t, err)
	defer r.Close()

	_, ok, err := r.Get(999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGeometryCacheEvictsUnderCapacity(t *testing.T) {
	dir := t.TempDir()
	c, err := NewGeometryCache(dir, "areas")
	require.NoError(t, err)
	defer c.Close()

	mp1 := orb.MultiPolygon{square(0, 0, 1, 1)}
	mp2 := orb.MultiPolygon{square(0, 0, 2, 2)}
	require.NoError(t, c.Put(1, mp1))
	require.NoError(t, c.Put(2, mp2))

	r, err := c.NewReader(1)
	require.NoError(t, err)
	defer r.Close()

	// The reader holds one entry: reading id 1 after id 2 evicts id 2, and
	// id 1 is recovered from disk.
	_, _, err = r.Get(2)
	require.NoError(t, err)
	got, ok, err := r.Get(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, mp1, got)
	_, still := r.resident[2]
	assert.False(t, still)
}

func TestGeometryCacheReadersAreIndependent(t *testing.T) {
	dir := t.TempDir()
	c, err := NewGeometryCache(dir, "areas")
	require.NoError(t, err)
	defer c.Close()

	mp := orb.MultiPolygon{square(0, 0, 1, 1)}
	require.NoError(t, c.Put(1, mp))

	r1, err := c.NewReader(4)
	require.NoError(t, err)
	defer r1.Close()
	r2, err := c.NewReader(4)
	require.NoError(t, err)
	defer r2.Close()

	_, ok, err := r1.Get(1)
	require.NoError(t, err)
	assert.True(t, ok)

	// r2 never touched id 1, so its LRU must still be empty.
	assert.Empty(t, r2.resident)
}
