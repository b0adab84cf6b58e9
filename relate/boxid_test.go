package relate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
)

func TestHilbertIDRoundTrip(t *testing.T) {
	for z := uint8(1); z <= 6; z++ {
		n := uint32(1) << z
		for x := uint32(0); x < n; x++ {
			for y := uint32(0); y < n; y++ {
				id := hilbertID(z, x, y)
				tile := hilbertTile(z, id)
				assert.Equal(t, maptile.New(x, y, maptile.Zoom(z)), tile)
			}
		}
	}
}

func TestEncodeDecodeBoxIDSign(t *testing.T) {
	tile := maptile.New(3, 4, 5)
	inside := encodeBoxID(tile, true)
	touched := encodeBoxID(tile, false)
	assert.True(t, int64(inside) >= 0)
	assert.True(t, int64(touched) < 0)

	decodedTile, decodedInside := decodeBoxID(inside, 5)
	assert.Equal(t, tile, decodedTile)
	assert.True(t, decodedInside)

	decodedTile, decodedInside = decodeBoxID(touched, 5)
	assert.Equal(t, tile, decodedTile)
	assert.False(t, decodedInside)
}

func TestBuildBoxIDsCoversLargeSquare(t *testing.T) {
	mp := orb.MultiPolygon{square(-60, -60, 60, 60)}
	ids, cutouts := BuildBoxIDs(mp, 4, 4096)
	assert.NotEmpty(t, ids)
	assert.NotNil(t, cutouts)

	var hasInside bool
	for _, id := range ids {
		if id >= 0 {
			hasInside = true
		}
	}
	assert.True(t, hasInside, "a large square should have at least one fully-interior tile at zoom 4")
}

func TestDisjointByBoxIDDetectsNoOverlap(t *testing.T) {
	a := []BoxId{1, 2, 3}
	b := []BoxId{4, 5, 6}
	assert.True(t, DisjointByBoxID(a, b))

	c := []BoxId{3, 7, 8}
	assert.False(t, DisjointByBoxID(a, c))
}

func TestDisjointByBoxIDUndeterminedOnEmpty(t *testing.T) {
	assert.False(t, DisjointByBoxID(nil, []BoxId{1}))
	assert.False(t, DisjointByBoxID([]BoxId{1}, nil))
}
