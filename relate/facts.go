package relate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// FactWriter emits the non-relational triples of §4.11 for every staged
// object: its rdf:type, one triple per tag, its WKT geometry literal, and
// -- for areas -- its geodesic area.
type FactWriter struct {
	sink      Sink
	precision int
}

// NewFactWriter builds a fact writer over sink, rounding WKT coordinates
// to precision decimal digits. Triples are written with unexpanded
// "prefix:localid" terms -- the serializer (serializer.go) decides whether
// to keep them prefixed (Turtle) or expand them to full IRIs (N-Triples).
func NewFactWriter(sink Sink, precision int) *FactWriter {
	return &FactWriter{sink: sink, precision: precision}
}

// WriteNode emits the facts for a staged node.
func (f *FactWriter) WriteNode(n *NodeRecord) error {
	subj := n.IRI()
	if err := f.writeType(subj, "node"); err != nil {
		return err
	}
	if err := f.writeTags(subj, n.Tags); err != nil {
		return err
	}
	return f.writeWKT(subj, n.Geom)
}

// WriteWay emits the facts for a staged non-area way.
func (f *FactWriter) WriteWay(w *WayRecord) error {
	subj := w.IRI()
	if err := f.writeType(subj, "way"); err != nil {
		return err
	}
	if err := f.writeTags(subj, w.Tags); err != nil {
		return err
	}
	return f.writeWKT(subj, w.Geom)
}

// WriteArea emits the facts for a staged area, including its geodesic
// area in square meters.
func (f *FactWriter) WriteArea(a *AreaRecord) error {
	subj := a.IRI()
	if err := f.writeType(subj, "area"); err != nil {
		return err
	}
	if err := f.writeTags(subj, a.Tags); err != nil {
		return err
	}
	if err := f.writeWKT(subj, a.Geom); err != nil {
		return err
	}
	return f.sink.WriteTriple(Triple{
		Subject:   subj,
		Predicate: PredAreaSqM,
		Object:    fmt.Sprintf("%q^^xsd:double", strconv.FormatFloat(a.Area, 'f', -1, 64)),
	})
}

func (f *FactWriter) writeType(subj, kind string) error {
	return f.sink.WriteTriple(Triple{
		Subject:   subj,
		Predicate: PredRDFType,
		Object:    "osm2rdf:" + kind,
	})
}

func (f *FactWriter) writeTags(subj string, tags map[string]string) error {
	for k, v := range tags {
		if err := f.sink.WriteTriple(Triple{
			Subject:   subj,
			Predicate: prefixOSMKey + slugifyTagKey(k),
			Object:    quoteLiteral(v),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (f *FactWriter) writeWKT(subj string, g orb.Geometry) error {
	literal := wkt.MarshalString(roundGeometry(g, f.precision))
	return f.sink.WriteTriple(Triple{
		Subject:   subj,
		Predicate: PredAsWKT,
		Object:    fmt.Sprintf("%q^^geo:wktLiteral", literal),
	})
}

// slugifyTagKey turns an OSM tag key into a predicate-safe local name:
// lowercase, non-alphanumeric runs collapsed to a single underscore, so
// "addr:housenumber" becomes "addr_housenumber".
func slugifyTagKey(key string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(key) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

func quoteLiteral(v string) string {
	return strconv.Quote(v)
}

func roundGeometry(g orb.Geometry, precision int) orb.Geometry {
	switch v := g.(type) {
	case orb.Point:
		return roundPoint(v, precision)
	case orb.LineString:
		return roundLineString(v, precision)
	case orb.Polygon:
		return roundPolygon(v, precision)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, p := range v {
			out[i] = roundPolygon(p, precision)
		}
		return out
	default:
		return g
	}
}

func roundPoint(p orb.Point, precision int) orb.Point {
	return orb.Point{roundFloat(p[0], precision), roundFloat(p[1], precision)}
}

func roundLineString(ls orb.LineString, precision int) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = roundPoint(p, precision)
	}
	return out
}

func roundPolygon(p orb.Polygon, precision int) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		out[i] = orb.Ring(roundLineString(orb.LineString(ring), precision))
	}
	return out
}

func roundFloat(v float64, precision int) float64 {
	scale := 1.0
	for i := 0; i < precision; i++ {
		scale *= 10
	}
	rounded := float64(int64(v*scale+signOf(v)*0.5)) / scale
	return rounded
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
