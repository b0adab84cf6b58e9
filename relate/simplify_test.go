package relate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestSimplifyZeroLevelReturnsOriginal(t *testing.T) {
	ls := orb.LineString{{0, 0}, {1, 0.001}, {2, 0}}
	out := Simplify(ls, 0)
	assert.Equal(t, ls, out)
}

func TestSimplifyNeverReturnsEmptyLineString(t *testing.T) {
	ls := orb.LineString{{0, 0}, {1, 0.0000001}, {2, 0}}
	out := Simplify(ls, 1000)
	simplified, ok := out.(orb.LineString)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, len(simplified), 2)
}

func TestSimplifyPolygonStaysValid(t *testing.T) {
	p := square(0, 0, 1, 1)
	out := Simplify(p, 1)
	poly, ok := out.(orb.Polygon)
	assert.True(t, ok)
	assert.NotEmpty(t, poly)
	assert.GreaterOrEqual(t, len(poly[0]), 4)
}
