package relate

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// nodeCoordCache is a disk-backed map from node id to its point, built in
// the reader's first pass and consulted in the second to resolve way and
// relation-member geometries. It reuses the same append-and-offset-index
// shape as GeometryCache (cache.go) but stores bare points, since a planet
// extract's node coordinates alone do not fit comfortably in memory.
type nodeCoordCache struct {
	file    *os.File
	offsets map[osm.NodeID]int64
}

func newNodeCoordCache(dir string) (*nodeCoordCache, error) {
	f, err := os.CreateTemp(dir, "relate-nodecoords-*.bin")
	if err != nil {
		return nil, fmt.Errorf("relate: creating node coordinate cache: %w", err)
	}
	return &nodeCoordCache{file: f, offsets: make(map[osm.NodeID]int64)}, nil
}

func (c *nodeCoordCache) put(id osm.NodeID, pt orb.Point) error {
	offset, err := c.file.Seek(0, os.SEEK_END)
	if err != nil {
		return err
	}
	if err := writePoint(c.file, pt); err != nil {
		return err
	}
	c.offsets[id] = offset
	return nil
}

func (c *nodeCoordCache) get(id osm.NodeID) (orb.Point, bool, error) {
	offset, ok := c.offsets[id]
	if !ok {
		return orb.Point{}, false, nil
	}
	if _, err := c.file.Seek(offset, os.SEEK_SET); err != nil {
		return orb.Point{}, false, err
	}
	pt, err := readPoint(c.file)
	if err != nil {
		return orb.Point{}, false, err
	}
	return pt, true, nil
}

func (c *nodeCoordCache) close() error {
	return c.file.Close()
}

// ExtractReader streams Feature values out of an .osm.pbf extract, per
// §4.10, for the parallel driver's task pool: nodes and tagged ways become
// NodeRecord/WayRecord, closed ways and multipolygon relations become
// AreaRecord, gated by the same named/unnamed and admin_level rules the
// relation engine's stage phase (§4.7.1) applies.
type ExtractReader struct {
	cfg    *Config
	logger *log.Logger
}

// NewExtractReader builds a reader over cfg.InputPath.
func NewExtractReader(cfg *Config, logger *log.Logger) *ExtractReader {
	return &ExtractReader{cfg: cfg, logger: logger}
}

// FeatureHandler receives every decoded feature during Read's single
// logical pass (internally two physical passes over the file).
type FeatureHandler struct {
	Node func(*NodeRecord) error
	Way  func(*WayRecord) error
	Area func(*AreaRecord) error
}

// Read scans cfg.InputPath twice: once to cache every node's coordinates,
// once to assemble way and relation geometries and invoke the handler.
// Way geometries resolved during the second pass are kept in memory
// (wayGeomCache below) so that multipolygon relations, which in a PBF
// extract always follow their member ways in file order, can resolve
// member geometries by way id without a third pass.
func (r *ExtractReader) Read(ctx context.Context, staging *Staging, region *Region, handler FeatureHandler) error {
	coords, err := newNodeCoordCache(staging.Dir())
	if err != nil {
		return err
	}
	defer coords.close()

	if err := r.cacheNodeCoords(ctx, coords); err != nil {
		return fmt.Errorf("relate: node coordinate pass: %w", err)
	}

	return r.assembleFeatures(ctx, coords, staging, region, handler)
}

func (r *ExtractReader) openScanner(ctx context.Context) (*osmpbf.Scanner, func() error, error) {
	f, err := os.Open(r.cfg.InputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("relate: opening extract %q: %w", r.cfg.InputPath, err)
	}
	scanner := osmpbf.New(ctx, f, runtime.NumCPU())
	return scanner, f.Close, nil
}

func (r *ExtractReader) cacheNodeCoords(ctx context.Context, coords *nodeCoordCache) error {
	scanner, closeFile, err := r.openScanner(ctx)
	if err != nil {
		return err
	}
	defer closeFile()
	defer scanner.Close()

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if err := coords.put(n.ID, orb.Point{n.Lon, n.Lat}); err != nil {
			return fmt.Errorf("relate: caching node %d: %w", n.ID, err)
		}
	}
	return scanner.Err()
}

// wayGeomCache remembers every way's resolved LineString across the
// second pass so relation assembly can look members up by id. It is
// bounded to the extract's way count, which a worker's share of a
// reasonably-sized regional extract holds comfortably in memory.
type wayGeomCache map[osm.WayID]orb.LineString

func (r *ExtractReader) assembleFeatures(ctx context.Context, coords *nodeCoordCache, staging *Staging, region *Region, handler FeatureHandler) error {
	scanner, closeFile, err := r.openScanner(ctx)
	if err != nil {
		return err
	}
	defer closeFile()
	defer scanner.Close()

	ways := make(wayGeomCache)

	for scanner.Scan() {
		switch v := scanner.Object().(type) {
		case *osm.Node:
			if err := r.handleNode(v, region, handler); err != nil {
				return err
			}
		case *osm.Way:
			if err := r.handleWay(v, coords, ways, region, handler); err != nil {
				return err
			}
		case *osm.Relation:
			if err := r.handleRelation(v, ways, staging, region, handler); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func (r *ExtractReader) handleNode(n *osm.Node, region *Region, handler FeatureHandler) error {
	if handler.Node == nil {
		return nil
	}
	pt := orb.Point{n.Lon, n.Lat}
	if !region.ContainsPoint(pt) {
		return nil
	}
	rec := &NodeRecord{ID: uint64(n.ID), Geom: pt, Envelope: pt.Bound(), Tags: tagsToMap(n.Tags)}
	return handler.Node(rec)
}

func (r *ExtractReader) handleWay(w *osm.Way, coords *nodeCoordCache, ways wayGeomCache, region *Region, handler FeatureHandler) error {
	ls, err := resolveWayGeometry(w, coords)
	if err != nil {
		r.logf("dropping way %d: %v", w.ID, err)
		return nil
	}
	ways[w.ID] = ls

	if !region.Intersects(ls.Bound()) {
		return nil
	}

	tags := tagsToMap(w.Tags)
	if isAreaWay(ls, tags) {
		if handler.Area == nil {
			return nil
		}
		mp := orb.MultiPolygon{orb.Polygon{orb.Ring(ls)}}
		area := &AreaRecord{
			ID:        AreaIDForWay(uint64(w.ID)),
			ObjID:     uint64(w.ID),
			FromWay:   true,
			Geom:      mp,
			Envelopes: []orb.Bound{mp.Bound()},
			Area:      MultiArea(mp),
			Tags:      tags,
		}
		return handler.Area(area)
	}

	if handler.Way == nil {
		return nil
	}
	nodeIDs := make([]uint64, len(w.Nodes))
	for i, wn := range w.Nodes {
		nodeIDs[i] = uint64(wn.ID)
	}
	rec := &WayRecord{ID: uint64(w.ID), Geom: ls, NodeIDs: nodeIDs, Envelope: ls.Bound(), Tags: tags}
	return handler.Way(rec)
}

func (r *ExtractReader) handleRelation(rel *osm.Relation, ways wayGeomCache, staging *Staging, region *Region, handler FeatureHandler) error {
	if handler.Area == nil {
		return nil
	}
	tags := tagsToMap(rel.Tags)
	if tags["type"] != "multipolygon" && tags["type"] != "boundary" {
		return nil
	}
	if lvl, ok := tags["admin_level"]; ok && r.cfg.AdminLevelFilter > 0 {
		if n := parseAdminLevel(lvl); n > 0 && n < r.cfg.AdminLevelFilter {
			r.logf("skipping relation %d: admin_level %s below filter", rel.ID, lvl)
			return nil
		}
	}

	mp, err := assembleMultipolygon(rel, ways)
	if err != nil {
		r.logf("dropping relation %d: %v", rel.ID, err)
		return nil
	}
	if !region.Intersects(mp.Bound()) {
		return nil
	}

	area := &AreaRecord{
		ID:        staging.NextAreaID(),
		ObjID:     uint64(rel.ID),
		FromWay:   false,
		Geom:      mp,
		Envelopes: []orb.Bound{mp.Bound()},
		Area:      MultiArea(mp),
		Tags:      tags,
	}
	return handler.Area(area)
}

func (r *ExtractReader) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

func tagsToMap(tags osm.Tags) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

func parseAdminLevel(s string) int {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func resolveWayGeometry(w *osm.Way, coords *nodeCoordCache) (orb.LineString, error) {
	ls := make(orb.LineString, 0, len(w.Nodes))
	for _, wn := range w.Nodes {
		pt, ok, err := coords.get(wn.ID)
		if err != nil {
			return nil, fmt.Errorf("reading cached coordinate for node %d: %w", wn.ID, err)
		}
		if !ok {
			return nil, fmt.Errorf("missing coordinate for node %d", wn.ID)
		}
		ls = append(ls, pt)
	}
	if len(ls) < 2 {
		return nil, fmt.Errorf("%w: way has fewer than two resolved nodes", ErrDegenerate)
	}
	return ls, nil
}

func isAreaWay(ls orb.LineString, tags map[string]string) bool {
	if len(ls) < 4 {
		return false
	}
	if ls[0] != ls[len(ls)-1] {
		return false
	}
	if tags["area"] == "no" {
		return false
	}
	_, hasBuilding := tags["building"]
	_, hasLanduse := tags["landuse"]
	_, hasNatural := tags["natural"]
	_, hasBoundary := tags["boundary"]
	_, hasLeisure := tags["leisure"]
	return hasBuilding || hasLanduse || hasNatural || hasBoundary || hasLeisure || tags["area"] == "yes"
}

// assembleMultipolygon builds an orb.MultiPolygon from a multipolygon/
// boundary relation's outer/inner tagged way members, per §4.10: member
// way geometries are looked up in the in-memory way cache the second pass
// has been filling in file order, then joined end-to-start into closed
// rings, tolerating the common OSM pattern where one boundary ring is
// split across several ways listed in arbitrary order.
func assembleMultipolygon(rel *osm.Relation, ways wayGeomCache) (orb.MultiPolygon, error) {
	var outerSegs, innerSegs []orb.LineString

	for _, m := range rel.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		ls, ok := ways[osm.WayID(m.Ref)]
		if !ok || len(ls) == 0 {
			continue
		}
		cp := make(orb.LineString, len(ls))
		copy(cp, ls)
		if m.Role == "inner" {
			innerSegs = append(innerSegs, cp)
		} else {
			outerSegs = append(outerSegs, cp)
		}
	}

	outerRings, err := joinRings(outerSegs)
	if err != nil {
		return nil, fmt.Errorf("assembling outer rings: %w", err)
	}
	innerRings, err := joinRings(innerSegs)
	if err != nil {
		return nil, fmt.Errorf("assembling inner rings: %w", err)
	}
	if len(outerRings) == 0 {
		return nil, fmt.Errorf("%w: no closed outer ring", ErrSelfIntersecting)
	}

	mp := make(orb.MultiPolygon, 0, len(outerRings))
	for _, outer := range outerRings {
		poly := orb.Polygon{outer}
		for _, inner := range innerRings {
			if ringInRing(inner, outer) {
				poly = append(poly, inner)
			}
		}
		mp = append(mp, poly)
	}
	return mp, nil
}

// joinRings chains open line segments end-to-start into closed rings.
func joinRings(segs []orb.LineString) ([]orb.Ring, error) {
	remaining := make([]orb.LineString, len(segs))
	copy(remaining, segs)

	var rings []orb.Ring
	for len(remaining) > 0 {
		cur := remaining[0]
		remaining = remaining[1:]
		if len(cur) == 0 {
			continue
		}

		progressed := true
		for progressed && !ringClosed(cur) {
			progressed = false
			for i, seg := range remaining {
				if len(seg) == 0 {
					continue
				}
				switch {
				case cur[len(cur)-1] == seg[0]:
					cur = append(cur, seg[1:]...)
				case cur[len(cur)-1] == seg[len(seg)-1]:
					cur = append(cur, reverseLineString(seg)[1:]...)
				case cur[0] == seg[len(seg)-1]:
					cur = append(reverseLineString(seg), cur[1:]...)
				case cur[0] == seg[0]:
					cur = append(reverseLineString(seg), reverseLineString(cur)[1:]...)
				default:
					continue
				}
				remaining = append(remaining[:i], remaining[i+1:]...)
				progressed = true
				break
			}
		}

		if !ringClosed(cur) {
			return nil, fmt.Errorf("%w: could not close ring from %d segments", ErrSelfIntersecting, len(segs))
		}
		if len(cur) >= 4 {
			rings = append(rings, orb.Ring(cur))
		}
	}
	return rings, nil
}

func ringClosed(ls orb.LineString) bool {
	return len(ls) >= 4 && ls[0] == ls[len(ls)-1]
}

func reverseLineString(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}

func ringInRing(inner, outer orb.Ring) bool {
	if len(inner) == 0 {
		return false
	}
	return planarRingContainsPoint(outer, inner[0])
}

func planarRingContainsPoint(ring orb.Ring, pt orb.Point) bool {
	mp := orb.MultiPolygon{orb.Polygon{ring}}
	return ContainsPoint(mp, pt)
}
