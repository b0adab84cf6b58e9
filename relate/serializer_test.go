package relate

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializerNTriplesExpandsIRIs(t *testing.T) {
	var buf bytes.Buffer
	s := NewSerializer(&buf, DefaultNamespaces(), NTriples)
	require.NoError(t, s.WriteTriple(Triple{Subject: "osm_way:1", Predicate: PredRDFType, Object: "osm2rdf:way"}))
	require.NoError(t, s.Close())

	out := buf.String()
	assert.Contains(t, out, "<https://www.openstreetmap.org/way/1>")
	assert.Contains(t, out, "<http://www.w3.org/1999/02/22-rdf-syntax-ns#type>")
	assert.Contains(t, out, "<https://osm2rdf.example.org/rdf#way>")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "."))
}

func TestSerializerTurtleEmitsPrefixHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	s := NewSerializer(&buf, DefaultNamespaces(), Turtle)
	require.NoError(t, s.WriteTriple(Triple{Subject: "osm_way:1", Predicate: PredRDFType, Object: "osm2rdf:way"}))
	require.NoError(t, s.WriteTriple(Triple{Subject: "osm_way:1", Predicate: PredAreaSqM, Object: `"12.5"^^xsd:double`}))
	require.NoError(t, s.Close())

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "@prefix osm2rdf:"))
	assert.Contains(t, out, "osm_way:1\n")
}

func TestSerializerTurtleGroupsSameSubject(t *testing.T) {
	var buf bytes.Buffer
	s := NewSerializer(&buf, DefaultNamespaces(), Turtle)
	require.NoError(t, s.WriteTriple(Triple{Subject: "osm_way:1", Predicate: PredRDFType, Object: "osm2rdf:way"}))
	require.NoError(t, s.WriteTriple(Triple{Subject: "osm_way:2", Predicate: PredRDFType, Object: "osm2rdf:way"}))
	require.NoError(t, s.WriteTriple(Triple{Subject: "osm_way:1", Predicate: PredAreaSqM, Object: `"5"^^xsd:double`}))
	require.NoError(t, s.Close())

	out := buf.String()
	way1 := strings.Index(out, "osm_way:1")
	way1Next := strings.Index(out[way1+1:], "osm_way:1")
	assert.Equal(t, -1, way1Next, "the second osm_way:1 stanza should have been grouped with the first")
}
