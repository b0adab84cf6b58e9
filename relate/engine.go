package relate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// Engine runs the five sub-phases of §4.7 over a Staging store, emitting
// relation triples through a Sink. It owns the R-tree and DAG built from
// the named-area set, and is the component the parallel driver (driver.go)
// wraps with a worker pool.
type Engine struct {
	cfg     *Config
	staging *Staging
	sink    Sink
	logger  *log.Logger

	areas   []*AreaRecord
	rtree   *RTree
	byID    map[uint64]*AreaRecord
	graph   *DirectedGraph
	reduced *DirectedGraph
	closure *ClosureIndex

	geomCache *GeometryCache
	readers   chan *GeometryCacheReader

	stats *Stats
}

// NewEngine builds an engine over staging, writing relation triples to
// sink.
func NewEngine(cfg *Config, staging *Staging, sink Sink, logger *log.Logger, stats *Stats) *Engine {
	return &Engine{cfg: cfg, staging: staging, sink: sink, logger: logger, stats: stats}
}

// StageArea applies the §4.7.1 named/unnamed gate to an incoming area and
// routes it to the right staging store. An area whose area/envelope ratio
// falls below MinAreaEnvelopeRatio is demoted to unnamed even if it
// carries a name tag, keeping the DAG free of thin sliver geometries.
func (e *Engine) StageArea(a *AreaRecord) error {
	if a.Named() && e.areaEnvelopeRatio(a) >= e.cfg.MinAreaEnvelopeRatio {
		if e.cfg.BoxGridZoom > 0 {
			a.BoxIDs, a.Cutouts = BuildBoxIDs(a.Geom, e.cfg.BoxGridZoom, e.cfg.MaxCutoutEntries)
		}
		a.ConvexHull = ConvexHull(a.Geom)
		a.OBB = OBB(a.Geom)
		e.staging.StageNamedArea(a)
		return nil
	}
	return e.staging.StageUnnamedArea(a)
}

func (e *Engine) areaEnvelopeRatio(a *AreaRecord) float64 {
	env := a.Envelope()
	w := env.Max[0] - env.Min[0]
	h := env.Max[1] - env.Min[1]
	envArea := w * h
	if envArea <= 0 {
		return 1
	}
	return a.Area / (envArea * metersPerDegreeSquaredHint)
}

// metersPerDegreeSquaredHint is a coarse constant converting a degree^2
// envelope footprint into the same order of magnitude as the geodesic
// square-meter area, good enough for the thin-sliver ratio test, which
// only needs relative scale, not metrological precision.
const metersPerDegreeSquaredHint = 111320.0 * 111320.0

// PrepareRTree bulk-loads the R-tree over the in-memory named-area set,
// per §4.7.2, then spills every named area's geometry into the §4.2
// disk-backed cache and drops the in-memory copy, since from here on
// geometries are only read back repeatedly (DAG build, probe relation),
// never written again.
func (e *Engine) PrepareRTree() error {
	e.areas = e.staging.NamedAreas()
	e.byID = make(map[uint64]*AreaRecord, len(e.areas))
	entries := make([]Entry, len(e.areas))
	for i, a := range e.areas {
		e.byID[a.ID] = a
		entries[i] = Entry{Bound: a.Envelope(), Index: i}
	}
	e.rtree = NewRTree(entries)
	return e.buildGeometryCache()
}

// buildGeometryCache appends every named area's geometry to a fresh
// GeometryCache file and opens one private reader per worker slot. Each
// reader keeps its own bounded LRU (cfg.CacheMaxEntries), so no decoded
// geometry is ever shared or locked across goroutines (§4.2).
func (e *Engine) buildGeometryCache() error {
	if len(e.areas) == 0 {
		return nil
	}

	cache, err := NewGeometryCache(e.staging.Dir(), "areas")
	if err != nil {
		return err
	}
	for _, a := range e.areas {
		if err := cache.Put(a.ID, a.Geom); err != nil {
			return err
		}
		a.Geom = nil
	}

	workers := e.cfg.NumThreads
	if workers < 1 {
		workers = 1
	}
	readers := make(chan *GeometryCacheReader, workers)
	for i := 0; i < workers; i++ {
		r, err := cache.NewReader(e.cfg.CacheMaxEntries)
		if err != nil {
			return err
		}
		readers <- r
	}

	e.geomCache = cache
	e.readers = readers
	return nil
}

// areaGeometry resolves a's multipolygon, preferring the in-memory copy
// (set when the cache was never built, e.g. in tests that construct an
// Engine directly) and otherwise borrowing a reader from the pool.
func (e *Engine) areaGeometry(a *AreaRecord) (orb.MultiPolygon, error) {
	if a.Geom != nil {
		return a.Geom, nil
	}
	if e.geomCache == nil {
		return nil, fmt.Errorf("relate: geometry for area %d is not resident and no cache is configured", a.ID)
	}

	r := <-e.readers
	defer func() { e.readers <- r }()

	mp, ok, err := r.Get(a.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("relate: geometry for area %d missing from cache", a.ID)
	}
	return mp, nil
}

// Close releases the geometry cache and every reader it opened. Safe to
// call on an engine that never built a cache (e.g. an empty named-area
// set, or a test-constructed Engine).
func (e *Engine) Close() error {
	if e.geomCache == nil {
		return nil
	}
	close(e.readers)
	for r := range e.readers {
		r.Close()
	}
	return e.geomCache.Close()
}

// BuildDAG runs §4.7.3: sort named areas by ascending area, query the
// R-tree for potential containers of each, evaluate covered_by smallest-
// candidate-first with a per-vertex skip set pruning already-implied
// ancestors, then reduce and freeze the closure.
func (e *Engine) BuildDAG(ctx context.Context) error {
	order := make([]*AreaRecord, len(e.areas))
	copy(order, e.areas)
	sort.Slice(order, func(i, j int) bool {
		if order[i].Area != order[j].Area {
			return order[i].Area < order[j].Area
		}
		return order[i].ID < order[j].ID
	})

	e.graph = NewDirectedGraph()
	for _, a := range order {
		e.graph.AddEdge(a.ID, a.ID)
	}

	var mu sync.Mutex // guards per-vertex edge addition + skip-set construction
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.NumThreads)

	for _, inner := range order {
		inner := inner
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			candidates := e.rtree.CoversQuery(inner.Envelope())
			sort.Slice(candidates, func(i, j int) bool {
				return e.areas[candidates[i].Index].Area < e.areas[candidates[j].Index].Area
			})

			skip := make(map[uint64]struct{})
			for _, c := range candidates {
				outer := e.areas[c.Index]
				if outer.ID == inner.ID {
					continue
				}
				if _, ok := skip[outer.ID]; ok {
					continue
				}
				covered, err := e.coveredBy(inner, outer)
				if err != nil {
					return err
				}
				if !covered {
					e.stats.IncChecksPerformed()
					continue
				}
				e.stats.IncChecksPerformed()

				innerGeom, err := e.areaGeometry(inner)
				if err != nil {
					return err
				}
				outerGeom, err := e.areaGeometry(outer)
				if err != nil {
					return err
				}
				if Equals(innerGeom, outerGeom) {
					continue
				}

				mu.Lock()
				e.graph.AddEdge(inner.ID, outer.ID)
				ancestors := e.graph.SuccessorsSlow(outer.ID)
				mu.Unlock()

				for s := range ancestors {
					skip[s] = struct{}{}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("relate: building DAG: %w", err)
	}

	e.reduced = ReduceDAG(e.graph)
	e.closure = PrepareFast(e.reduced)
	return nil
}

// coveredBy evaluates covered_by(inner.geom, outer.geom), trying the BoxId
// grid short-circuit first when both areas carry one, then the convex-hull
// reject (inner ⊆ outer implies hull(inner) ⊆ hull(outer), and testing the
// inner hull's vertices against a hull is far cheaper than the full ring
// walk).
func (e *Engine) coveredBy(inner, outer *AreaRecord) (bool, error) {
	if len(inner.BoxIDs) > 0 && len(outer.BoxIDs) > 0 {
		if covers, ok := CoversByBoxID(outer, inner.BoxIDs, inner.Cutouts); ok {
			return covers, nil
		}
	}
	if len(inner.ConvexHull) > 0 && len(outer.ConvexHull) > 0 && !hullCoveredByHull(inner.ConvexHull, outer.ConvexHull) {
		return false, nil
	}
	innerGeom, err := e.areaGeometry(inner)
	if err != nil {
		return false, err
	}
	outerGeom, err := e.areaGeometry(outer)
	if err != nil {
		return false, err
	}
	return CoveredBy(innerGeom, outerGeom), nil
}

// hullCoveredByHull reports whether every vertex of inner's outer ring lies
// inside hull, a necessary condition for the shape inner was computed from
// being covered by the shape hull was computed from.
func hullCoveredByHull(inner, hull orb.Polygon) bool {
	hullMP := orb.MultiPolygon{hull}
	for _, c := range inner[0] {
		if !ContainsPoint(hullMP, c) {
			return false
		}
	}
	return true
}

// NamedAreaRelations emits §4.7.4's contains_area/intersects_area facts
// for every edge of the reduced DAG. Edges point from the contained area to
// its direct container (see BuildDAG), so this walks each area's direct
// successors to find its immediate parent, not its children.
func (e *Engine) NamedAreaRelations() error {
	for _, inner := range e.areas {
		for _, outerID := range e.reduced.Edges(inner.ID) {
			if outerID == inner.ID {
				continue
			}
			outer, ok := e.byID[outerID]
			if !ok {
				continue
			}
			if err := e.emitNamedAreaEdge(outer, inner); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) emitNamedAreaEdge(outer, inner *AreaRecord) error {
	if err := e.sink.WriteTriple(Triple{Subject: outer.IRI(), Predicate: PredContainsArea, Object: inner.IRI()}); err != nil {
		return err
	}
	return e.sink.WriteTriple(Triple{Subject: outer.IRI(), Predicate: PredIntersectsArea, Object: inner.IRI()})
}

// RelateUnnamedArea runs §4.7.5 for an unnamed-area probe.
func (e *Engine) RelateUnnamedArea(p *AreaRecord) error {
	candidates := e.rtree.IntersectsQuery(p.Envelope())
	return e.relateProbe(p.IRI(), p.Geom, p.Envelope(), candidates, nil)
}

// RelateWay runs §4.7.5/4.7.6's way-specific rules: skip entirely if the
// way already has a doubled-id area counterpart in the DAG (point 6); else
// run a pre-pass over the way's own vertices to seed skip_node_contained
// with every area a vertex is already known to sit in (point 5), then run
// the same probe logic as an unnamed area using the way's line geometry.
func (e *Engine) RelateWay(w *WayRecord) error {
	areaID := AreaIDForWay(w.ID)
	if _, ok := e.byID[areaID]; ok {
		e.stats.IncChecksSkippedDAG()
		return nil
	}
	skipNodeContained, err := e.wayNodeContainment(w)
	if err != nil {
		return err
	}
	candidates := e.rtree.IntersectsQuery(w.Envelope)
	return e.relateProbe(w.IRI(), w.Geom, w.Envelope, candidates, skipNodeContained)
}

// wayNodeContainment finds every named area that already covers at least
// one vertex of w, expanded through the DAG closure to that area's own
// containers. The way necessarily touches each of these areas, so the
// probe loop can treat them as already-established intersections without
// re-running the geometric test (§4.7.5 point 5).
func (e *Engine) wayNodeContainment(w *WayRecord) (map[uint64]struct{}, error) {
	seen := make(map[uint64]struct{})
	for _, pt := range w.Geom {
		for _, c := range e.rtree.CoversQuery(orb.Bound{Min: pt, Max: pt}) {
			a := e.areas[c.Index]
			if _, ok := seen[a.ID]; ok {
				continue
			}
			aGeom, err := e.areaGeometry(a)
			if err != nil {
				return nil, err
			}
			if !CoveredBy(orb.Point(pt), aGeom) {
				continue
			}
			seen[a.ID] = struct{}{}
			if e.closure != nil {
				for _, s := range e.closure.Successors(a.ID) {
					seen[s] = struct{}{}
				}
			}
		}
	}
	return seen, nil
}

// RelateNode runs §4.7.5 for a node probe: only the covers() query is used
// (a point either sits inside an envelope or it doesn't; there is no
// partial-intersection case to seed skip_intersects from an R-tree
// perspective, so both skip sets derive from the same candidate query).
func (e *Engine) RelateNode(n *NodeRecord) error {
	candidates := e.rtree.CoversQuery(n.Envelope)
	return e.relateProbe(n.IRI(), n.Geom, n.Envelope, candidates, nil)
}

func (e *Engine) relateProbe(probeIRI string, probeGeom orb.Geometry, probeEnv orb.Bound, candidates []Entry, skipNodeContained map[uint64]struct{}) error {
	sort.Slice(candidates, func(i, j int) bool {
		return e.areas[candidates[i].Index].Area < e.areas[candidates[j].Index].Area
	})

	skipIntersects := make(map[uint64]struct{})
	skipContains := make(map[uint64]struct{})

	for _, c := range candidates {
		a := e.areas[c.Index]
		aGeom, err := e.areaGeometry(a)
		if err != nil {
			return err
		}

		intersected := false
		if _, skipped := skipIntersects[a.ID]; skipped {
			intersected = true
			e.stats.IncChecksSkippedDAG()
		} else if _, touched := skipNodeContained[a.ID]; touched || Intersects(probeGeom, aGeom) {
			intersected = true
			if touched {
				e.stats.IncChecksSkippedNodeInfo()
			} else {
				e.stats.IncChecksPerformed()
			}
			if err := e.sink.WriteTriple(Triple{Subject: a.IRI(), Predicate: PredIntersectsNonArea, Object: probeIRI}); err != nil {
				return err
			}
			if e.closure != nil {
				for _, s := range e.closure.Successors(a.ID) {
					skipIntersects[s] = struct{}{}
				}
			}
		} else {
			e.stats.IncChecksPerformed()
		}
		if !intersected {
			continue
		}

		if _, skipped := skipContains[a.ID]; skipped {
			e.stats.IncChecksSkippedDAG()
			continue
		}
		if !boundCovers(probeEnv, a.Envelope()) {
			continue
		}
		if !CoveredBy(probeGeom, aGeom) {
			e.stats.IncChecksPerformed()
			continue
		}
		e.stats.IncChecksPerformed()
		if err := e.sink.WriteTriple(Triple{Subject: a.IRI(), Predicate: PredContainsNonArea, Object: probeIRI}); err != nil {
			return err
		}
		if e.closure != nil {
			for _, s := range e.closure.Successors(a.ID) {
				skipContains[s] = struct{}{}
			}
		}
	}
	return nil
}
