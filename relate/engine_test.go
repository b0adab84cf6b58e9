package relate

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedArea(id, objID uint64, mp orb.MultiPolygon, name string) *AreaRecord {
	return &AreaRecord{
		ID:        id,
		ObjID:     objID,
		FromWay:   true,
		Geom:      mp,
		Envelopes: []orb.Bound{mp.Bound()},
		Area:      MultiArea(mp),
		Tags:      map[string]string{"name": name},
	}
}

func newTestEngine(t *testing.T) (*Engine, *Staging) {
	cfg := testConfig(t)
	cfg.BoxGridZoom = 0 // keep the nested-square scenarios on the plain geometric path
	staging, err := NewStaging(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { staging.Close() })
	engine := NewEngine(cfg, staging, &SliceSink{}, nil, NewStats())
	return engine, staging
}

// TestDisjointSquaresNoDAGEdges reproduces scenario 1: two far-apart areas
// produce neither a DAG edge nor a relation triple.
func TestDisjointSquaresNoDAGEdges(t *testing.T) {
	engine, staging := newTestEngine(t)

	a := namedArea(1, 1, orb.MultiPolygon{square(48, 7.5, 48.1, 7.6)}, "A")
	b := namedArea(2, 2, orb.MultiPolygon{square(40, 7.5, 40.1, 7.6)}, "B")
	staging.StageNamedArea(a)
	staging.StageNamedArea(b)

	require.NoError(t, engine.PrepareRTree())
	require.NoError(t, engine.BuildDAG(context.Background()))

	assert.False(t, engine.reduced.HasEdge(a.ID, b.ID))
	assert.False(t, engine.reduced.HasEdge(b.ID, a.ID))
}

// TestNestedSquaresDAGEdges reproduces scenario 2's nesting: A and C both
// sit inside B, and B sits inside D; the reduced DAG keeps only the direct
// edges, not the transitively implied ones (A/C -> D).
func TestNestedSquaresDAGEdges(t *testing.T) {
	engine, staging := newTestEngine(t)

	a := namedArea(22, 11, orb.MultiPolygon{square(48.0, 7.51, 48.1, 7.61)}, "A")
	b := namedArea(24, 12, orb.MultiPolygon{square(40, 7, 50, 8)}, "B")
	c := namedArea(26, 13, orb.MultiPolygon{square(40.0, 7.51, 40.1, 7.61)}, "C")
	d := namedArea(28, 14, orb.MultiPolygon{square(20, 0.51, 50.1, 10.61)}, "D")
	for _, area := range []*AreaRecord{a, b, c, d} {
		staging.StageNamedArea(area)
	}

	require.NoError(t, engine.PrepareRTree())
	require.NoError(t, engine.BuildDAG(context.Background()))

	assert.True(t, engine.reduced.HasEdge(a.ID, b.ID))
	assert.True(t, engine.reduced.HasEdge(c.ID, b.ID))
	assert.True(t, engine.reduced.HasEdge(b.ID, d.ID))

	// transitively implied edges must be pruned by reduction
	assert.False(t, engine.reduced.HasEdge(a.ID, d.ID))
	assert.False(t, engine.reduced.HasEdge(c.ID, d.ID))

	require.NoError(t, engine.NamedAreaRelations())
	sink := engine.sink.(*SliceSink)
	assertHasTriple(t, sink.Triples, "osm_way:12", PredContainsArea, "osm_way:11")
	assertHasTriple(t, sink.Triples, "osm_way:12", PredContainsArea, "osm_way:13")
	assertHasTriple(t, sink.Triples, "osm_way:14", PredContainsArea, "osm_way:12")
}

// TestEqualAreasSuppressEdge reproduces scenario 5: two areas with
// identical rings produce no DAG edge between them.
func TestEqualAreasSuppressEdge(t *testing.T) {
	engine, staging := newTestEngine(t)

	a := namedArea(100, 100, orb.MultiPolygon{square(0, 0, 1, 1)}, "X")
	b := namedArea(101, 101, orb.MultiPolygon{square(0, 0, 1, 1)}, "Y")
	staging.StageNamedArea(a)
	staging.StageNamedArea(b)

	require.NoError(t, engine.PrepareRTree())
	require.NoError(t, engine.BuildDAG(context.Background()))

	assert.False(t, engine.reduced.HasEdge(a.ID, b.ID))
	assert.False(t, engine.reduced.HasEdge(b.ID, a.ID))
}

// TestNodeInsideNestedAreas reproduces scenario 3: a node inside the
// innermost area emits contains/intersects against that area only, since
// its ancestors in the DAG are pruned by the skip set.
func TestNodeInsideNestedAreas(t *testing.T) {
	engine, staging := newTestEngine(t)

	a := namedArea(22, 11, orb.MultiPolygon{square(48.0, 7.51, 48.1, 7.61)}, "A")
	b := namedArea(24, 12, orb.MultiPolygon{square(40, 7, 50, 8)}, "B")
	d := namedArea(28, 14, orb.MultiPolygon{square(20, 0.51, 50.1, 10.61)}, "D")
	for _, area := range []*AreaRecord{a, b, d} {
		staging.StageNamedArea(area)
	}
	require.NoError(t, engine.PrepareRTree())
	require.NoError(t, engine.BuildDAG(context.Background()))

	n := &NodeRecord{ID: 999, Geom: orb.Point{48.05, 7.56}, Envelope: orb.Point{48.05, 7.56}.Bound()}
	require.NoError(t, engine.RelateNode(n))

	sink := engine.sink.(*SliceSink)
	assertHasTriple(t, sink.Triples, "osm_way:11", PredContainsNonArea, "osm_node:999")
	assertHasTriple(t, sink.Triples, "osm_way:11", PredIntersectsNonArea, "osm_node:999")

	for _, tr := range sink.Triples {
		assert.NotEqual(t, "osm_way:12", tr.Subject, "B is an ancestor of A and must be skipped for the node probe")
		assert.NotEqual(t, "osm_way:14", tr.Subject, "D is an ancestor of A and must be skipped for the node probe")
	}
}

func assertHasTriple(t *testing.T, triples []Triple, subj, pred, obj string) {
	t.Helper()
	for _, tr := range triples {
		if tr.Subject == subj && tr.Predicate == pred && tr.Object == obj {
			return
		}
	}
	t.Fatalf("expected triple (%s %s %s) not found among %d triples", subj, pred, obj, len(triples))
}
