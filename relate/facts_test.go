package relate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactWriterNodeEmitsTypeTagsAndWKT(t *testing.T) {
	sink := &SliceSink{}
	fw := NewFactWriter(sink, 6)

	n := &NodeRecord{ID: 1, Geom: orb.Point{1.23456789, 2.3456789}, Tags: map[string]string{"addr:housenumber": "12"}}
	require.NoError(t, fw.WriteNode(n))

	var sawType, sawTag, sawWKT bool
	for _, tr := range sink.Triples {
		assert.Equal(t, "osm_node:1", tr.Subject)
		switch tr.Predicate {
		case PredRDFType:
			sawType = true
			assert.Equal(t, "osm2rdf:node", tr.Object)
		case "osmkey:addr_housenumber":
			sawTag = true
			assert.Equal(t, `"12"`, tr.Object)
		case PredAsWKT:
			sawWKT = true
		}
	}
	assert.True(t, sawType)
	assert.True(t, sawTag)
	assert.True(t, sawWKT)
}

func TestFactWriterAreaEmitsAreaTriple(t *testing.T) {
	sink := &SliceSink{}
	fw := NewFactWriter(sink, 6)

	a := &AreaRecord{ObjID: 5, FromWay: true, Geom: orb.MultiPolygon{square(0, 0, 1, 1)}, Area: 42.5}
	require.NoError(t, fw.WriteArea(a))

	var found bool
	for _, tr := range sink.Triples {
		if tr.Predicate == PredAreaSqM {
			found = true
			assert.Equal(t, `"42.5"^^xsd:double`, tr.Object)
			assert.Equal(t, "osm_way:5", tr.Subject)
		}
	}
	assert.True(t, found)
}

func TestSlugifyTagKey(t *testing.T) {
	assert.Equal(t, "addr_housenumber", slugifyTagKey("addr:housenumber"))
	assert.Equal(t, "name", slugifyTagKey("name"))
	assert.Equal(t, "a_b", slugifyTagKey("A--B"))
}
