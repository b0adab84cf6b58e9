package relate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func boundOf(minX, minY, maxX, maxY float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

func TestRTreeIntersectsQuery(t *testing.T) {
	entries := []Entry{
		{Bound: boundOf(0, 0, 1, 1), Index: 0},
		{Bound: boundOf(10, 10, 11, 11), Index: 1},
		{Bound: boundOf(0.5, 0.5, 2, 2), Index: 2},
	}
	rt := NewRTree(entries)

	hits := rt.IntersectsQuery(boundOf(0, 0, 1, 1))
	indices := indexSet(hits)
	assert.Contains(t, indices, 0)
	assert.Contains(t, indices, 2)
	assert.NotContains(t, indices, 1)
}

func TestRTreeCoversQuery(t *testing.T) {
	entries := []Entry{
		{Bound: boundOf(0, 0, 10, 10), Index: 0}, // large, covers the probe
		{Bound: boundOf(4.2, 4.2, 4.8, 4.8), Index: 1}, // overlaps, too small to cover
	}
	rt := NewRTree(entries)

	hits := rt.CoversQuery(boundOf(4, 4, 5, 5))
	indices := indexSet(hits)
	assert.Contains(t, indices, 0)
	assert.NotContains(t, indices, 1)
}

func TestRTreeBulkLoadManyEntries(t *testing.T) {
	var entries []Entry
	for i := 0; i < 500; i++ {
		x := float64(i % 50)
		y := float64(i / 50)
		entries = append(entries, Entry{Bound: boundOf(x, y, x+1, y+1), Index: i})
	}
	rt := NewRTree(entries)
	hits := rt.IntersectsQuery(boundOf(0, 0, 1, 1))
	assert.NotEmpty(t, hits)
}

func TestRTreeEmpty(t *testing.T) {
	rt := NewRTree(nil)
	assert.Empty(t, rt.IntersectsQuery(boundOf(0, 0, 1, 1)))
}

func indexSet(entries []Entry) map[int]bool {
	m := make(map[int]bool, len(entries))
	for _, e := range entries {
		m[e.Index] = true
	}
	return m
}
