package relate

import "github.com/paulmach/orb"

// BoxId is a signed tile fingerprint relative to one area: positive values
// mean the tile lies fully inside the area, negative values mean the tile
// is only partially covered (touched). The magnitude is a Hilbert tile id
// on the fixed global grid described in boxid.go.
type BoxId int64

// AreaRecord is the staged, indexed representation of one OSM closed way
// or multipolygon relation, per §3.
type AreaRecord struct {
	ID      uint64 // internal id, distinct from ObjID
	ObjID   uint64 // public OSM id
	FromWay bool

	Envelopes []orb.Bound
	Geom      orb.MultiPolygon
	Inner     orb.MultiPolygon
	Outer     orb.MultiPolygon

	Area float64 // geodesic, sort key for the DAG build

	BoxIDs  []BoxId
	Cutouts map[int64]orb.MultiPolygon

	ConvexHull orb.Polygon
	OBB        orb.Polygon

	Tags map[string]string
}

// Envelope returns the union bound across every outer-ring envelope, used
// by R-tree queries that need a single bound per area.
func (a *AreaRecord) Envelope() orb.Bound {
	if len(a.Envelopes) == 0 {
		return a.Geom.Bound()
	}
	b := a.Envelopes[0]
	for _, e := range a.Envelopes[1:] {
		b = b.Union(e)
	}
	return b
}

// Named reports whether the area carries a "name" tag. Named areas are
// DAG-eligible; all others (including demoted thin areas) are unnamed.
func (a *AreaRecord) Named() bool {
	_, ok := a.Tags["name"]
	return ok
}

// IRI returns the engine's IRI term for this area, derived from
// (from_way ? osm_way : osm_relation, obj_id) per §4.7.4.
func (a *AreaRecord) IRI() string {
	if a.FromWay {
		return IRI(KindWay, a.ObjID)
	}
	return IRI(KindRelation, a.ObjID)
}

// WayRecord is the staged representation of an OSM way that is not itself
// an area (or is staged for its non-area relation tests even when it is).
type WayRecord struct {
	ID            uint64
	Envelope      orb.Bound
	Geom          orb.LineString
	NodeIDs       []uint64
	SubEnvelopes  []orb.Bound
	BoxIDs        []BoxId
	ConvexHull    orb.Polygon
	OBB           orb.Polygon
	Tags          map[string]string
}

func (w *WayRecord) IRI() string {
	return IRI(KindWay, w.ID)
}

// AreaIDForWay encodes the "is this way already represented as an area"
// check from §9: the internal area id a closed way would receive is
// 2*way_id. This only works because relation-derived area ids are
// allocated consecutively from above relationAreaIDBase by the staging store (see
// Staging.nextAreaID) -- it is preserved here exactly as the source
// describes it, including the same collision assumption: way ids and
// relation-derived area internal ids must never collide under doubling.
func AreaIDForWay(wayID uint64) uint64 {
	return wayID * 2
}

// NodeRecord is the staged representation of an OSM node.
type NodeRecord struct {
	ID       uint64
	Envelope orb.Bound
	Geom     orb.Point
	Tags     map[string]string
}

func (n *NodeRecord) IRI() string {
	return IRI(KindNode, n.ID)
}
