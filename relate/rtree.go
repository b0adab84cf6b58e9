package relate

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Entry is one item stored in the R-tree: an envelope plus the caller's
// own identifier for the thing it bounds (an index into the named-area
// slice the engine builds the tree from).
type Entry struct {
	Bound orb.Bound
	Index int
}

// node is an R-tree node, built once by bulk loading rather than
// incremental Insert/split, since §4.3 constructs the R-tree once from a
// fixed area set ("Bulk-loaded (packing) R-tree... Build cost O(n log n)").
type node struct {
	bound    orb.Bound
	entries  []Entry
	children []*node
	leaf     bool
}

// RTree is a bulk-loaded, read-only-after-construction packed spatial
// index over area envelopes. It is safe for concurrent queries once built
// because no method mutates it.
type RTree struct {
	root     *node
	capacity int
}

// defaultNodeCapacity is the fan-out used for both leaf and inner nodes.
const defaultNodeCapacity = 9

// NewRTree bulk-loads an R-tree over entries using the sort-tile-recursive
// (STR) algorithm: entries are sorted into vertical slices, each slice
// sorted by the other axis and packed into leaves, and the process
// repeats one level up until a single root remains.
func NewRTree(entries []Entry) *RTree {
	capacity := defaultNodeCapacity
	rt := &RTree{capacity: capacity}
	if len(entries) == 0 {
		rt.root = &node{leaf: true}
		return rt
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	rt.root = strPack(cp, capacity)
	return rt
}

func strPack(entries []Entry, capacity int) *node {
	if len(entries) <= capacity {
		return makeLeaf(entries)
	}

	leafCount := ceilDiv(len(entries), capacity)
	sliceCount := int(math.Ceil(math.Sqrt(float64(leafCount))))

	sort.Slice(entries, func(i, j int) bool {
		return centerX(entries[i].Bound) < centerX(entries[j].Bound)
	})

	perSlice := ceilDiv(len(entries), sliceCount)
	var leaves []*node
	for i := 0; i < len(entries); i += perSlice {
		end := i + perSlice
		if end > len(entries) {
			end = len(entries)
		}
		slice := entries[i:end]
		sort.Slice(slice, func(a, b int) bool {
			return centerY(slice[a].Bound) < centerY(slice[b].Bound)
		})
		for j := 0; j < len(slice); j += capacity {
			k := j + capacity
			if k > len(slice) {
				k = len(slice)
			}
			leaves = append(leaves, makeLeaf(slice[j:k]))
		}
	}

	return packUp(leaves, capacity)
}

// packUp repeatedly groups a level of nodes into parents of at most
// capacity children until one root remains.
func packUp(level []*node, capacity int) *node {
	for len(level) > 1 {
		var next []*node
		for i := 0; i < len(level); i += capacity {
			j := i + capacity
			if j > len(level) {
				j = len(level)
			}
			next = append(next, makeInner(level[i:j]))
		}
		level = next
	}
	return level[0]
}

func makeLeaf(entries []Entry) *node {
	n := &node{leaf: true, entries: entries}
	n.bound = entries[0].Bound
	for _, e := range entries[1:] {
		n.bound = n.bound.Union(e.Bound)
	}
	return n
}

func makeInner(children []*node) *node {
	n := &node{leaf: false, children: children}
	n.bound = children[0].bound
	for _, c := range children[1:] {
		n.bound = n.bound.Union(c.bound)
	}
	return n
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func centerX(b orb.Bound) float64 { return (b.Min[0] + b.Max[0]) / 2 }
func centerY(b orb.Bound) float64 { return (b.Min[1] + b.Max[1]) / 2 }

// IntersectsQuery returns every entry whose envelope overlaps b.
func (rt *RTree) IntersectsQuery(b orb.Bound) []Entry {
	var out []Entry
	rt.search(rt.root, b, boundsOverlap, &out)
	return out
}

// CoversQuery returns every entry whose envelope fully covers b -- used by
// the DAG build (§4.7.3) to find potential containers of a candidate area.
func (rt *RTree) CoversQuery(b orb.Bound) []Entry {
	var out []Entry
	rt.search(rt.root, b, func(entryBound, probe orb.Bound) bool {
		return boundCovers(probe, entryBound)
	}, &out)
	return out
}

func (rt *RTree) search(n *node, b orb.Bound, match func(orb.Bound, orb.Bound) bool, out *[]Entry) {
	if n == nil || !boundsOverlap(n.bound, b) {
		return
	}
	if n.leaf {
		for _, e := range n.entries {
			if match(e.Bound, b) {
				*out = append(*out, e)
			}
		}
		return
	}
	for _, c := range n.children {
		rt.search(c, b, match, out)
	}
}
