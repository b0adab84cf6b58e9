package relate

import (
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// ReduceDAG computes the transitive reduction (Hasse diagram) of a raw
// containment graph: for every direct edge u->v, the edge is dropped if v
// is reachable from u through any other direct successor of u. Containment
// is a strict partial order (antisymmetric and transitive once degenerate
// equal-area cycles are excluded upstream by the engine), so the result is
// exactly the "direct parent" relation §4.7.3 asks for, computed by the
// standard closure-subtraction algorithm.
func ReduceDAG(g *DirectedGraph) *DirectedGraph {
	vertices := g.Vertices()
	reduced := NewDirectedGraph()
	for _, v := range vertices {
		reduced.edges[v] = make(map[uint64]struct{})
	}

	closures := make(map[uint64]map[uint64]struct{}, len(vertices))
	for _, v := range vertices {
		closures[v] = g.SuccessorsSlow(v)
	}

	for _, u := range vertices {
		direct := g.Edges(u)
		for _, v := range direct {
			if u == v {
				continue
			}
			redundant := false
			for _, w := range direct {
				if w == v || w == u {
					continue
				}
				if _, ok := closures[w][v]; ok {
					redundant = true
					break
				}
			}
			if !redundant {
				reduced.edges[u][v] = struct{}{}
			}
		}
	}
	return reduced
}

// ClosureIndex answers "is a an ancestor of b" in O(1) after a build that
// runs one depth-first search per vertex, by storing each vertex's full successor set as a RoaringBitmap.
type ClosureIndex struct {
	successors map[uint64]*roaring64.Bitmap
}

// PrepareFast builds a ClosureIndex over the (already reduced) graph's full
// transitive closure. Reduction preserves reachability, so closures
// computed post-reduction equal those of the raw graph but cost far less
// to compute repeatedly (fewer edges to traverse per vertex).
func PrepareFast(g *DirectedGraph) *ClosureIndex {
	vertices := g.Vertices()
	sort.Slice(vertices, func(i, j int) bool { return vertices[i] < vertices[j] })

	idx := &ClosureIndex{successors: make(map[uint64]*roaring64.Bitmap, len(vertices))}
	for _, v := range vertices {
		bm := roaring64.New()
		for s := range g.SuccessorsSlow(v) {
			bm.Add(s)
		}
		idx.successors[v] = bm
	}
	return idx
}

// SuccessorsFast reports whether candidate directly or transitively
// contains v according to the prepared closure index.
func (idx *ClosureIndex) SuccessorsFast(v, candidate uint64) bool {
	bm, ok := idx.successors[v]
	if !ok {
		return false
	}
	return bm.Contains(candidate)
}

// Successors returns every container v sits directly or transitively
// inside, as a plain slice (used to seed skip sets so an area already
// known to be an ancestor of a confirmed container isn't re-checked).
func (idx *ClosureIndex) Successors(v uint64) []uint64 {
	bm, ok := idx.successors[v]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}
