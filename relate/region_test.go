package relate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegionEmptyIsNilFilter(t *testing.T) {
	r, err := ParseRegion("")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.True(t, r.Intersects(orb.Bound{Max: orb.Point{1, 1}}))
	assert.True(t, r.ContainsPoint(orb.Point{100, 100}))
}

func TestParseRegionValid(t *testing.T) {
	r, err := ParseRegion("7.0,48.0,8.0,49.0")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.ContainsPoint(orb.Point{7.5, 48.5}))
	assert.False(t, r.ContainsPoint(orb.Point{20, 20}))
	assert.True(t, r.Intersects(orb.Bound{Min: orb.Point{7.5, 48.5}, Max: orb.Point{9, 50}}))
	assert.False(t, r.Intersects(orb.Bound{Min: orb.Point{20, 20}, Max: orb.Point{21, 21}}))
}

func TestParseRegionRejectsWrongShape(t *testing.T) {
	_, err := ParseRegion("1,2,3")
	assert.Error(t, err)
}

func TestParseRegionRejectsInvertedBounds(t *testing.T) {
	_, err := ParseRegion("8,48,7,49")
	assert.Error(t, err)
}

func TestParseRegionRejectsNonNumeric(t *testing.T) {
	_, err := ParseRegion("a,b,c,d")
	assert.Error(t, err)
}
