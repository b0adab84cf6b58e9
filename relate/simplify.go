package relate

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// baseSimplificationFactor scales the caller-supplied simplification_level
// into a Douglas-Peucker tolerance in degrees, per §4.1:
// t = base_factor * max(perimeter, length) * simplification_level.
const baseSimplificationFactor = 1e-7

// minSimplificationTolerance is the smallest tolerance worth retrying at.
// Coordinates here are plain lon/lat degrees, so even a city-block-sized
// way's perimeter is a few thousandths of a degree; the retry floor has to
// sit well below that, not at a whole degree, or it never engages.
const minSimplificationTolerance = 1e-9

// Simplify reduces g's vertex count with Douglas-Peucker at a tolerance
// derived from level (the config's SimplifyGeometries factor), built on
// orb/simplify's own DouglasPeucker simplifier. If the simplified result is
// empty or degenerate, the tolerance is halved and simplification retried
// until a valid non-empty geometry is produced or the tolerance drops below
// minSimplificationTolerance, at which point the original geometry is
// returned unchanged.
func Simplify(g orb.Geometry, level float64) orb.Geometry {
	if level <= 0 {
		return g
	}
	extent := perimeterOrLength(g)
	if extent <= 0 {
		return g
	}
	t := baseSimplificationFactor * extent * level
	for t >= minSimplificationTolerance {
		simplified := simplify.DouglasPeucker(t).Simplify(g)
		if validNonEmpty(simplified) {
			return simplified
		}
		t /= 2
	}
	return g
}

func perimeterOrLength(g orb.Geometry) float64 {
	switch v := g.(type) {
	case orb.LineString:
		return lineStringLength(v)
	case orb.Polygon:
		return polygonPerimeter(v)
	case orb.MultiPolygon:
		var total float64
		for _, p := range v {
			total += polygonPerimeter(p)
		}
		return total
	default:
		return 0
	}
}

func lineStringLength(ls orb.LineString) float64 {
	var total float64
	for i := 0; i+1 < len(ls); i++ {
		total += planar.Distance(ls[i], ls[i+1])
	}
	return total
}

func polygonPerimeter(p orb.Polygon) float64 {
	var total float64
	for _, ring := range p {
		total += lineStringLength(orb.LineString(ring))
	}
	return total
}

func validNonEmpty(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.LineString:
		return len(v) >= 2
	case orb.Polygon:
		return len(v) > 0 && len(v[0]) >= 4
	case orb.MultiPolygon:
		if len(v) == 0 {
			return false
		}
		for _, p := range v {
			if !validNonEmpty(p) {
				return false
			}
		}
		return true
	default:
		return g != nil
	}
}
