package relate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func TestCoveredByNestedSquares(t *testing.T) {
	inner := orb.MultiPolygon{square(1, 1, 2, 2)}
	outer := orb.MultiPolygon{square(0, 0, 5, 5)}
	assert.True(t, CoveredBy(inner, outer))
	assert.False(t, CoveredBy(outer, inner))
}

func TestCoveredByDisjointSquares(t *testing.T) {
	a := orb.MultiPolygon{square(0, 0, 1, 1)}
	b := orb.MultiPolygon{square(10, 10, 11, 11)}
	assert.False(t, CoveredBy(a, b))
	assert.False(t, Intersects(a, b))
}

func TestCoveredBySharedBoundaryCounts(t *testing.T) {
	inner := orb.MultiPolygon{square(0, 0, 1, 1)}
	outer := orb.MultiPolygon{square(0, 0, 2, 2)}
	assert.True(t, CoveredBy(inner, outer), "shared boundary counts as covered under OGC covers semantics")
}

func TestIntersectsOverlappingSquares(t *testing.T) {
	a := orb.MultiPolygon{square(0, 0, 2, 2)}
	b := orb.MultiPolygon{square(1, 1, 3, 3)}
	assert.True(t, Intersects(a, b))
}

func TestContainsPointInsideAndOutside(t *testing.T) {
	mp := orb.MultiPolygon{square(0, 0, 10, 10)}
	assert.True(t, ContainsPoint(mp, orb.Point{5, 5}))
	assert.False(t, ContainsPoint(mp, orb.Point{50, 50}))
	assert.True(t, ContainsPoint(mp, orb.Point{0, 5}), "boundary point counts as contained")
}

func TestEqualsSameAreaDifferentWinding(t *testing.T) {
	a := orb.MultiPolygon{square(0, 0, 1, 1)}
	reversed := orb.Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
	b := orb.MultiPolygon{orb.Polygon{reversed}}
	assert.True(t, Equals(a, b))
}

func TestEqualsDifferentAreas(t *testing.T) {
	a := orb.MultiPolygon{square(0, 0, 1, 1)}
	b := orb.MultiPolygon{square(0, 0, 2, 2)}
	assert.False(t, Equals(a, b))
}

func TestAreaOfUnitSquareIsPositive(t *testing.T) {
	p := square(0, 0, 1, 1)
	assert.Greater(t, Area(p), 0.0)
}

func TestConvexHullOfSquareIsItself(t *testing.T) {
	p := square(0, 0, 1, 1)
	hull := ConvexHull(p)
	assert.Len(t, hull, 1)
	assert.GreaterOrEqual(t, len(hull[0]), 4)
}

func TestOBBOfAxisAlignedSquareMatchesBound(t *testing.T) {
	p := square(0, 0, 4, 2)
	obb := OBB(p)
	assert.NotEmpty(t, obb)
	b := obb.Bound()
	assert.InDelta(t, 0, b.Min[0], 1e-6)
	assert.InDelta(t, 4, b.Max[0], 1e-6)
}

func TestCoveredByLineStringOnBoundary(t *testing.T) {
	outer := orb.MultiPolygon{square(0, 0, 10, 10)}
	ls := orb.LineString{{0, 0}, {0, 10}}
	assert.True(t, CoveredBy(ls, outer))
}

func TestIntersectsWayCrossingBoundary(t *testing.T) {
	outer := orb.MultiPolygon{square(0, 0, 10, 10)}
	crossing := orb.LineString{{-5, 5}, {15, 5}}
	assert.True(t, Intersects(crossing, outer))
	assert.False(t, CoveredBy(crossing, outer))
}
