package relate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Region is a staging-time bounding-box filter: a simple axis-aligned box
// that features are tested against before they are staged at all, so a run
// scoped to one bbox never pays to index geometry outside it.
type Region struct {
	bound orb.Bound
}

// ParseRegion parses a "minLon,minLat,maxLon,maxLat" string into a Region.
func ParseRegion(s string) (*Region, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("relate: region %q must have 4 comma-separated values", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("relate: region %q: %w", s, err)
		}
		vals[i] = v
	}
	minLon, minLat, maxLon, maxLat := vals[0], vals[1], vals[2], vals[3]
	if minLon > maxLon || minLat > maxLat {
		return nil, fmt.Errorf("relate: region %q has min greater than max", s)
	}
	return &Region{bound: orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}}, nil
}

// Intersects reports whether b overlaps the region. A nil Region always
// intersects (no filter configured).
func (r *Region) Intersects(b orb.Bound) bool {
	if r == nil {
		return true
	}
	return boundsOverlap(r.bound, b)
}

// ContainsPoint reports whether pt falls inside the region.
func (r *Region) ContainsPoint(pt orb.Point) bool {
	if r == nil {
		return true
	}
	return r.bound.Contains(pt)
}

// Bound returns the region's bounding box.
func (r *Region) Bound() orb.Bound {
	if r == nil {
		return orb.Bound{}
	}
	return r.bound
}
