package relate

import (
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// The BoxId grid is the coarse integer-tile fingerprint of §4.5: classify
// every tile a multipolygon's boundary touches, then classify every tile
// strictly between two boundary tiles as interior by testing the tile's
// center against the (Mercator-)projected multipolygon. Tile ids use a
// Hilbert curve, so sorting by |tile id| is a plain numeric sort.

func rotate(n uint64, x, y *uint64, rx, ry uint64) {
	if ry == 0 {
		if rx == 1 {
			*x = n - 1 - *x
			*y = n - 1 - *y
		}
		*x, *y = *y, *x
	}
}

// hilbertID converts (z, x, y) tile coordinates into a Hilbert curve index
// local to zoom z (0 .. 2^(2z)-1) -- kept private to this package since it
// is a grid-fingerprint detail, not a tile-pyramid addressing scheme. Every
// BoxId in one run is computed at the single fixed Config.BoxGridZoom, so a
// per-zoom index (rather than a cross-zoom running total) is all identity
// requires here.
func hilbertID(z uint8, x, y uint32) uint64 {
	n := uint64(1) << z
	tx, ty := uint64(x), uint64(y)
	var d uint64
	for s := n / 2; s > 0; s /= 2 {
		var rx, ry uint64
		if tx&s > 0 {
			rx = 1
		}
		if ty&s > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		rotate(s, &tx, &ty, rx, ry)
	}
	return d
}

func hilbertTile(z uint8, id uint64) maptile.Tile {
	n := uint64(1) << z
	rx, ry, t := id, id, id
	var tx, ty uint64
	for s := uint64(1); s < n; s *= 2 {
		rx = 1 & (t / 2)
		ry = 1 & (t ^ rx)
		rotate(s, &tx, &ty, rx, ry)
		tx += s * rx
		ty += s * ry
		t /= 4
	}
	return maptile.New(uint32(tx), uint32(ty), maptile.Zoom(z))
}

func encodeBoxID(tile maptile.Tile, inside bool) BoxId {
	id := int64(hilbertID(uint8(tile.Z), tile.X, tile.Y))
	if !inside {
		id = -id
	}
	if id == 0 && !inside {
		// tile (0,0,0) can't be represented as a signed "touched" id
		// distinct from "inside"; promote touched-root to the next
		// Hilbert slot so the sign bit stays meaningful.
		id = -1
	}
	return BoxId(id)
}

func decodeBoxID(id BoxId, zoom uint8) (tile maptile.Tile, inside bool) {
	v := int64(id)
	inside = v >= 0
	if v < 0 {
		v = -v
	}
	return hilbertTile(zoom, uint64(v)), inside
}

// classifyTiles returns the set of boundary ("touched") tiles and interior
// ("inside") tiles a multipolygon covers at the given zoom, mirroring the
// teacher's bitmapMultiPolygon: boundary tiles come from tilecover.Geometry
// over every ring, interior tiles come from testing tile centers against
// the Web-Mercator-projected multipolygon with planar.MultiPolygonContains.
func classifyTiles(mp orb.MultiPolygon, zoom uint8) (boundary, inside *roaring64.Bitmap) {
	boundary = roaring64.New()
	for _, poly := range mp {
		for _, ring := range poly {
			tiles, _ := tilecover.Geometry(orb.LineString(ring), maptile.Zoom(zoom))
			for tile := range tiles {
				boundary.Add(hilbertID(uint8(tile.Z), tile.X, tile.Y))
			}
		}
	}

	projected := project.MultiPolygon(mp.Clone(), project.WGS84.ToMercator)
	inside = roaring64.New()

	min := hilbertID(zoom, 0, 0)
	max := min + (uint64(1) << zoom) * (uint64(1) << zoom)

	it := boundary.Iterator()
	for it.HasNext() {
		id := it.Next()
		if boundary.Contains(id + 1) {
			continue
		}
		if id+1 >= max {
			continue
		}
		tile := hilbertTile(zoom, id+1)
		center := project.Point(tile.Center(), project.WGS84.ToMercator)
		if planar.MultiPolygonContains(projected, center) {
			var stop uint64
			if it.HasNext() {
				stop = it.PeekNext()
			} else {
				stop = max
			}
			inside.AddRange(id+1, stop)
		}
	}
	return boundary, inside
}

// BuildBoxIDs computes the sorted BoxId list and per-tile cutout map for an
// area, per §4.5/§9 (the cutout-size cap open question). If the combined
// tile count would exceed maxCutouts, no cutouts are cached for this area
// and the BoxId list itself is still returned (callers fall back to full
// predicates whenever a cutout lookup misses, never refusing the area).
func BuildBoxIDs(mp orb.MultiPolygon, zoom uint8, maxCutouts int) ([]BoxId, map[int64]orb.MultiPolygon) {
	boundary, inside := classifyTiles(mp, zoom)
	total := int(boundary.GetCardinality() + inside.GetCardinality())

	ids := make([]BoxId, 0, total)
	it := inside.Iterator()
	for it.HasNext() {
		ids = append(ids, encodeBoxID(hilbertTile(zoom, it.Next()), true))
	}
	it = boundary.Iterator()
	for it.HasNext() {
		ids = append(ids, encodeBoxID(hilbertTile(zoom, it.Next()), false))
	}
	sort.Slice(ids, func(i, j int) bool { return absBoxID(ids[i]) < absBoxID(ids[j]) })

	var cutouts map[int64]orb.MultiPolygon
	if total <= maxCutouts {
		cutouts = make(map[int64]orb.MultiPolygon, total)
		it = boundary.Iterator()
		for it.HasNext() {
			id := it.Next()
			tile := hilbertTile(zoom, id)
			clipped := clip.MultiPolygon(tile.Bound(), mp)
			if len(clipped) > 0 {
				cutouts[int64(id)] = clipped
			}
		}
	}
	return ids, cutouts
}

func absBoxID(id BoxId) int64 {
	v := int64(id)
	if v < 0 {
		return -v
	}
	return v
}

// CoversByBoxID attempts the §4.5 short-circuit: if every positive box id
// of probe appears as a positive box id of area, and every negative
// (touched) box id of probe is backed by a tile whose area-cutout geometry
// covers the probe's corresponding cutout, area covers probe without a
// full polygon test. ok is false whenever the grid can't decide (probe has
// a touched tile with no area cutout cached, or no full geometric
// comparison was attempted) -- callers must then fall back to CoveredBy.
func CoversByBoxID(area *AreaRecord, probeIDs []BoxId, probeCutouts map[int64]orb.MultiPolygon) (covers bool, ok bool) {
	if len(area.BoxIDs) == 0 || len(probeIDs) == 0 {
		return false, false
	}
	areaInside := make(map[int64]bool, len(area.BoxIDs))
	areaAny := make(map[int64]bool, len(area.BoxIDs))
	for _, id := range area.BoxIDs {
		areaAny[absBoxID(id)] = true
		if id >= 0 {
			areaInside[absBoxID(id)] = true
		}
	}

	for _, pid := range probeIDs {
		key := absBoxID(pid)
		if pid >= 0 {
			if !areaInside[key] {
				return false, false
			}
			continue
		}
		if !areaAny[key] {
			return false, false
		}
		areaCutout, hasCutout := area.Cutouts[key]
		probeCutout, hasProbeCutout := probeCutouts[key]
		if !hasCutout || !hasProbeCutout {
			return false, false
		}
		if !multiPolygonCoveredBy(probeCutout, areaCutout) {
			return false, true
		}
	}
	return true, true
}

// DisjointByBoxID reports whether the two box id lists prove non-
// intersection: true when no tile magnitude appears in both lists. A
// false return means "undetermined", not "they intersect" -- callers must
// fall back to Intersects.
func DisjointByBoxID(a, b []BoxId) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[int64]bool, len(a))
	for _, id := range a {
		seen[absBoxID(id)] = true
	}
	for _, id := range b {
		if seen[absBoxID(id)] {
			return false
		}
	}
	return true
}
