// Package relate implements the spatial relation engine: given areas, nodes
// and ways with already-computed geometries, it materializes the contains
// and intersects relations over them and emits the resulting triples.
package relate

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

const epsilon = 1e-9

// Envelope returns the axis-aligned bounding box of any orb geometry. Every
// orb type already implements Bound(), so this is a thin, named wrapper
// kept for symmetry with the other predicates in this file.
func Envelope(g orb.Geometry) orb.Bound {
	return g.Bound()
}

// Area returns the geodesic area of a polygon in square meters via the
// spherical-excess formula in orb/geo, which already accounts for inner
// rings (holes) by ring orientation.
func Area(p orb.Polygon) float64 {
	return geo.Area(p)
}

// MultiArea sums the geodesic area of every polygon in a multipolygon.
func MultiArea(mp orb.MultiPolygon) float64 {
	var total float64
	for _, p := range mp {
		total += Area(p)
	}
	return total
}

// asMultiPolygon normalizes any of the geometry kinds the engine deals with
// (Polygon, MultiPolygon) into a MultiPolygon so predicate code has one
// shape to work against.
func asMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, true
	case orb.MultiPolygon:
		return v, true
	default:
		return nil, false
	}
}

// ContainsPoint reports whether pt lies inside or on the boundary of mp
// (OGC covers, not strict contains).
func ContainsPoint(mp orb.MultiPolygon, pt orb.Point) bool {
	if len(mp) == 0 {
		return false
	}
	return planar.MultiPolygonContains(mp, pt)
}

// Equals reports whether a and b describe the same point set, within
// epsilon. Two areas are equal when every ring of one has a matching ring
// (possibly rotated or reversed) in the other -- the practical case OSM
// produces when two relations describe literally the same boundary.
func Equals(a, b orb.Geometry) bool {
	amp, ok1 := asMultiPolygon(a)
	bmp, ok2 := asMultiPolygon(b)
	if ok1 && ok2 {
		return multiPolygonEquals(amp, bmp)
	}
	if la, ok := a.(orb.LineString); ok {
		if lb, ok := b.(orb.LineString); ok {
			return lineStringEquals(la, lb)
		}
	}
	if pa, ok := a.(orb.Point); ok {
		if pb, ok := b.(orb.Point); ok {
			return pointsEqual(pa, pb)
		}
	}
	return false
}

func pointsEqual(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) < epsilon && math.Abs(a[1]-b[1]) < epsilon
}

func lineStringEquals(a, b orb.LineString) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pointsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func multiPolygonEquals(a, b orb.MultiPolygon) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
	for _, pa := range a {
		found := false
		for j, pb := range b {
			if matched[j] {
				continue
			}
			if polygonEquals(pa, pb) {
				matched[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func polygonEquals(a, b orb.Polygon) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ringEquals(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ringEquals compares two closed rings as point sets regardless of
// starting vertex or direction, since OSM way assembly can close a ring at
// any member and in either winding.
func ringEquals(a, b orb.Ring) bool {
	if len(a) != len(b) {
		return false
	}
	n := len(a)
	if n == 0 {
		return true
	}
	if n > 1 && a.Closed() && b.Closed() {
		n-- // compare the open rings; the closing point repeats the first
	}
	for shift := 0; shift < n; shift++ {
		fwd, rev := true, true
		for i := 0; i < n && (fwd || rev); i++ {
			if fwd && !pointsEqual(a[i], b[(i+shift)%n]) {
				fwd = false
			}
			if rev && !pointsEqual(a[i], b[(shift-i+n)%n]) {
				rev = false
			}
		}
		if fwd || rev {
			return true
		}
	}
	return false
}

// boundsOverlap is the cheap first test every predicate below runs before
// falling through to exact geometry.
func boundsOverlap(a, b orb.Bound) bool {
	return a.Min[0] <= b.Max[0] && a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] && a.Max[1] >= b.Min[1]
}

// boundCovers reports whether outer's bound covers inner's bound -- a
// necessary (not sufficient) precondition for CoveredBy, used as a
// cheap reject before the exact polygon test runs.
func boundCovers(inner, outer orb.Bound) bool {
	return outer.Min[0] <= inner.Min[0]+epsilon && outer.Max[0] >= inner.Max[0]-epsilon &&
		outer.Min[1] <= inner.Min[1]+epsilon && outer.Max[1] >= inner.Max[1]-epsilon
}

// CoveredBy reports whether inner is covered by outer -- OGC covers,
// meaning a shared boundary counts as covered. Supported shapes: Point,
// LineString and (Multi)Polygon for inner; (Multi)Polygon for outer.
func CoveredBy(inner, outer orb.Geometry) bool {
	if !boundsOverlap(inner.Bound(), outer.Bound()) {
		return false
	}
	outerMP, ok := asMultiPolygon(outer)
	if !ok {
		return false
	}
	switch v := inner.(type) {
	case orb.Point:
		return ContainsPoint(outerMP, v)
	case orb.LineString:
		return lineStringCoveredByPolygon(v, outerMP)
	default:
		innerMP, ok := asMultiPolygon(inner)
		if !ok {
			return false
		}
		return multiPolygonCoveredBy(innerMP, outerMP)
	}
}

func lineStringCoveredByPolygon(ls orb.LineString, outer orb.MultiPolygon) bool {
	for _, pt := range ls {
		if !ContainsPoint(outer, pt) {
			return false
		}
	}
	for i := 0; i+1 < len(ls); i++ {
		if segmentEscapes(ls[i], ls[i+1], outer) {
			return false
		}
	}
	return true
}

func multiPolygonCoveredBy(inner, outer orb.MultiPolygon) bool {
	for _, poly := range inner {
		for _, ring := range poly {
			for _, pt := range ring {
				if !ContainsPoint(outer, pt) {
					return false
				}
			}
			for i := 0; i+1 < len(ring); i++ {
				if segmentEscapes(ring[i], ring[i+1], outer) {
					return false
				}
			}
		}
	}
	return true
}

// segmentEscapes reports whether the midpoint of (a, b) falls outside mp,
// catching the case where both endpoints lie on mp's boundary but the
// segment between them bulges outside it.
func segmentEscapes(a, b orb.Point, mp orb.MultiPolygon) bool {
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	return !ContainsPoint(mp, mid)
}

// Intersects reports whether a and b share at least one point. Supported
// shapes mirror CoveredBy.
func Intersects(a, b orb.Geometry) bool {
	if !boundsOverlap(a.Bound(), b.Bound()) {
		return false
	}
	if CoveredBy(a, b) || CoveredBy(b, a) {
		return true
	}
	segsA := segments(a)
	segsB := segments(b)
	for _, sa := range segsA {
		for _, sb := range segsB {
			if segmentsIntersect(sa[0], sa[1], sb[0], sb[1]) {
				return true
			}
		}
	}
	// Degenerate case: a point that lies outside the other geometry's
	// rings/segments entirely (e.g. both are single points).
	if pa, ok := a.(orb.Point); ok {
		if pb, ok := b.(orb.Point); ok {
			return pointsEqual(pa, pb)
		}
	}
	return false
}

type segment [2]orb.Point

func segments(g orb.Geometry) []segment {
	var out []segment
	appendRing := func(r orb.Ring) {
		for i := 0; i+1 < len(r); i++ {
			out = append(out, segment{r[i], r[i+1]})
		}
	}
	switch v := g.(type) {
	case orb.Point:
		// no segments
	case orb.LineString:
		for i := 0; i+1 < len(v); i++ {
			out = append(out, segment{v[i], v[i+1]})
		}
	case orb.Polygon:
		for _, r := range v {
			appendRing(r)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			for _, r := range p {
				appendRing(r)
			}
		}
	}
	return out
}

// segmentsIntersect is a standard orientation-based segment intersection
// test, including collinear-overlap handling, operating directly on the
// orb.Point coordinate pairs.
func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if math.Abs(d1) < epsilon && onSegment(p3, p4, p1) {
		return true
	}
	if math.Abs(d2) < epsilon && onSegment(p3, p4, p2) {
		return true
	}
	if math.Abs(d3) < epsilon && onSegment(p1, p2, p3) {
		return true
	}
	if math.Abs(d4) < epsilon && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0])-epsilon <= p[0] && p[0] <= math.Max(a[0], b[0])+epsilon &&
		math.Min(a[1], b[1])-epsilon <= p[1] && p[1] <= math.Max(a[1], b[1])+epsilon
}

// ConvexHull computes the convex hull of every vertex in g via Andrew's
// monotone chain, orb has no convex-hull package of its own, so this builds
// the hull directly on orb.Point arithmetic and the cross() orientation
// test already used by the segment-intersection predicates above.
func ConvexHull(g orb.Geometry) orb.Polygon {
	hull := monotoneChainHull(geometryPoints(g))
	switch len(hull) {
	case 0:
		return nil
	case 1:
		return orb.Polygon{orb.Ring{hull[0], hull[0], hull[0]}}
	case 2:
		return orb.Polygon{orb.Ring{hull[0], hull[1], hull[0]}}
	default:
		ring := make(orb.Ring, 0, len(hull)+1)
		ring = append(ring, hull...)
		ring = append(ring, hull[0])
		return orb.Polygon{ring}
	}
}

// geometryPoints flattens every vertex out of g, regardless of shape, for
// feeding into the convex-hull builder.
func geometryPoints(g orb.Geometry) []orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return []orb.Point{v}
	case orb.MultiPoint:
		return []orb.Point(v)
	case orb.LineString:
		return []orb.Point(v)
	case orb.MultiLineString:
		var pts []orb.Point
		for _, ls := range v {
			pts = append(pts, []orb.Point(ls)...)
		}
		return pts
	case orb.Ring:
		return []orb.Point(v)
	case orb.Polygon:
		var pts []orb.Point
		for _, r := range v {
			pts = append(pts, []orb.Point(r)...)
		}
		return pts
	case orb.MultiPolygon:
		var pts []orb.Point
		for _, p := range v {
			for _, r := range p {
				pts = append(pts, []orb.Point(r)...)
			}
		}
		return pts
	default:
		return nil
	}
}

// monotoneChainHull returns pts' convex hull in counter-clockwise order,
// open (first point not repeated at the end). Collinear points on an edge
// are dropped (cross <= 0), matching the orientation convention cross()
// already uses elsewhere in this file.
func monotoneChainHull(pts []orb.Point) []orb.Point {
	uniq := sortUniquePoints(pts)
	n := len(uniq)
	if n < 3 {
		return uniq
	}

	hull := make([]orb.Point, 0, 2*n)
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func sortUniquePoints(pts []orb.Point) []orb.Point {
	if len(pts) == 0 {
		return nil
	}
	cp := make([]orb.Point, len(pts))
	copy(cp, pts)
	sort.Slice(cp, func(i, j int) bool {
		if cp[i][0] != cp[j][0] {
			return cp[i][0] < cp[j][0]
		}
		return cp[i][1] < cp[j][1]
	})
	out := cp[:1]
	for _, p := range cp[1:] {
		last := out[len(out)-1]
		if p[0] == last[0] && p[1] == last[1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// OBB computes the oriented (minimum-area) bounding box of g as a 5-point
// closed ring, using rotating calipers over the convex hull. orb has no
// built-in OBB either, so this is computational geometry layered directly
// on top of ConvexHull above.
func OBB(g orb.Geometry) orb.Polygon {
	hull := ConvexHull(g)
	if len(hull) == 0 || len(hull[0]) < 4 {
		b := g.Bound()
		return boxRing(b)
	}
	ring := hull[0]
	best := math.Inf(1)
	var bestRing orb.Ring
	for i := 0; i+1 < len(ring); i++ {
		edge := ring[i+1]
		origin := ring[i]
		dx := edge[0] - origin[0]
		dy := edge[1] - origin[1]
		length := math.Hypot(dx, dy)
		if length < epsilon {
			continue
		}
		cosA, sinA := dx/length, dy/length
		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range ring[:len(ring)-1] {
			rx, ry := p[0]-origin[0], p[1]-origin[1]
			u := rx*cosA + ry*sinA
			v := -rx*sinA + ry*cosA
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}
		area := (maxU - minU) * (maxV - minV)
		if area < best {
			best = area
			corners := [4][2]float64{{minU, minV}, {maxU, minV}, {maxU, maxV}, {minU, maxV}}
			bestRing = make(orb.Ring, 0, 5)
			for _, c := range corners {
				x := origin[0] + c[0]*cosA - c[1]*sinA
				y := origin[1] + c[0]*sinA + c[1]*cosA
				bestRing = append(bestRing, orb.Point{x, y})
			}
			bestRing = append(bestRing, bestRing[0])
		}
	}
	if bestRing == nil {
		return boxRing(g.Bound())
	}
	return orb.Polygon{bestRing}
}

func boxRing(b orb.Bound) orb.Polygon {
	r := orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}
	return orb.Polygon{r}
}
