package relate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.InputPath = "in.osm.pbf"
	cfg.OutputPath = "out.ttl"
	return &cfg
}

func TestStagingNodeRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewStaging(cfg)
	require.NoError(t, err)
	defer s.Close()

	n := &NodeRecord{ID: 42, Geom: orb.Point{1, 2}, Tags: map[string]string{"amenity": "cafe"}}
	require.NoError(t, s.StageNode(n))

	var seen []*NodeRecord
	require.NoError(t, s.EachNode(func(r *NodeRecord) error {
		seen = append(seen, r)
		return nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, uint64(42), seen[0].ID)
	assert.Equal(t, "cafe", seen[0].Tags["amenity"])
}

func TestStagingWayRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewStaging(cfg)
	require.NoError(t, err)
	defer s.Close()

	w := &WayRecord{ID: 7, Geom: orb.LineString{{0, 0}, {1, 1}}, NodeIDs: []uint64{1, 2}, Tags: map[string]string{"highway": "residential"}}
	require.NoError(t, s.StageWay(w))

	var seen []*WayRecord
	require.NoError(t, s.EachWay(func(r *WayRecord) error {
		seen = append(seen, r)
		return nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, []uint64{1, 2}, seen[0].NodeIDs)
}

func TestStagingUnnamedAreaRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewStaging(cfg)
	require.NoError(t, err)
	defer s.Close()

	a := &AreaRecord{ID: 100, ObjID: 50, Geom: orb.MultiPolygon{square(0, 0, 1, 1)}, Area: 123.0}
	require.NoError(t, s.StageUnnamedArea(a))

	var seen []*AreaRecord
	require.NoError(t, s.EachUnnamedArea(func(r *AreaRecord) error {
		seen = append(seen, r)
		return nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, uint64(50), seen[0].ObjID)
}

func TestStagingNamedAreasInMemory(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewStaging(cfg)
	require.NoError(t, err)
	defer s.Close()

	a := &AreaRecord{ID: 1, ObjID: 1, Tags: map[string]string{"name": "Testville"}}
	s.StageNamedArea(a)

	named := s.NamedAreas()
	require.Len(t, named, 1)
	assert.Equal(t, "Testville", named[0].Tags["name"])
}

func TestAreaIDForWayIsDouble(t *testing.T) {
	assert.Equal(t, uint64(246), AreaIDForWay(123))
}
