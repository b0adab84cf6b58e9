package relate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
)

// Staging is the spatial staging store of §4.6: nodes, non-area ways, and
// unnamed areas are appended to disk-backed binary files as they stream
// past (each is only iterated once during indexing, never revisited
// individually), while named areas -- the only objects the DAG and fact
// writer query repeatedly -- stay in memory as a plain slice.
type Staging struct {
	dir string

	nodeFile *os.File
	nodeW    *bufio.Writer
	nodeMu   sync.Mutex
	nodeN    uint64

	wayFile *os.File
	wayW    *bufio.Writer
	wayMu   sync.Mutex
	wayN    uint64

	areaUnnamedFile *os.File
	areaUnnamedW    *bufio.Writer
	areaUnnamedMu   sync.Mutex
	areaUnnamedN    uint64

	namedMu sync.Mutex
	named   []*AreaRecord

	nextAreaID uint64 // relation-derived area ids allocated from here up
}

// relationAreaIDBase is the start of the disjoint id range relation-
// derived areas draw from, chosen high enough that 2*way_id (§9,
// AreaIDForWay) cannot collide with it for any way id this engine will see
// in one run. The open question in §9 is preserved as-is; this constant
// documents the mitigation rather than silently fixing the assumption.
const relationAreaIDBase = uint64(1) << 62

// NewStaging opens the three append-only staging files under cfg.TempDir.
func NewStaging(cfg *Config) (*Staging, error) {
	dir, err := os.MkdirTemp(cfg.TempDir, "relate-staging-*")
	if err != nil {
		return nil, fmt.Errorf("relate: creating staging directory: %w", err)
	}

	s := &Staging{dir: dir, nextAreaID: relationAreaIDBase}

	s.nodeFile, err = os.Create(filepath.Join(dir, "nodes.bin"))
	if err != nil {
		return nil, fmt.Errorf("relate: creating node staging file: %w", err)
	}
	s.nodeW = bufferedWriter(s.nodeFile)

	s.wayFile, err = os.Create(filepath.Join(dir, "ways.bin"))
	if err != nil {
		return nil, fmt.Errorf("relate: creating way staging file: %w", err)
	}
	s.wayW = bufferedWriter(s.wayFile)

	s.areaUnnamedFile, err = os.Create(filepath.Join(dir, "areas_unnamed.bin"))
	if err != nil {
		return nil, fmt.Errorf("relate: creating unnamed-area staging file: %w", err)
	}
	s.areaUnnamedW = bufferedWriter(s.areaUnnamedFile)

	return s, nil
}

// NextAreaID hands out the next relation-derived internal area id.
func (s *Staging) NextAreaID() uint64 {
	return atomic.AddUint64(&s.nextAreaID, 1)
}

// StageNode appends a node record to the node staging file. Safe for
// concurrent callers.
func (s *Staging) StageNode(n *NodeRecord) error {
	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()
	if err := writeNodeRecord(s.nodeW, n); err != nil {
		return fmt.Errorf("relate: staging node %d: %w", n.ID, err)
	}
	s.nodeN++
	return nil
}

// StageWay appends a non-area way record to the way staging file.
func (s *Staging) StageWay(w *WayRecord) error {
	s.wayMu.Lock()
	defer s.wayMu.Unlock()
	if err := writeWayRecord(s.wayW, w); err != nil {
		return fmt.Errorf("relate: staging way %d: %w", w.ID, err)
	}
	s.wayN++
	return nil
}

// StageUnnamedArea appends an area without a name tag to the unnamed-area
// staging file: it still participates in geometric predicates but never
// becomes a DAG vertex, since only named areas are DAG vertices.
func (s *Staging) StageUnnamedArea(a *AreaRecord) error {
	s.areaUnnamedMu.Lock()
	defer s.areaUnnamedMu.Unlock()
	if err := writeAreaRecord(s.areaUnnamedW, a); err != nil {
		return fmt.Errorf("relate: staging unnamed area %d: %w", a.ID, err)
	}
	s.areaUnnamedN++
	return nil
}

// StageNamedArea keeps a named area resident in memory for the lifetime of
// the run.
func (s *Staging) StageNamedArea(a *AreaRecord) {
	s.namedMu.Lock()
	defer s.namedMu.Unlock()
	s.named = append(s.named, a)
}

// NamedAreas returns the in-memory named-area slice. Callers must not
// mutate the returned slice concurrently with further staging.
func (s *Staging) NamedAreas() []*AreaRecord {
	s.namedMu.Lock()
	defer s.namedMu.Unlock()
	out := make([]*AreaRecord, len(s.named))
	copy(out, s.named)
	return out
}

// Flush syncs all three buffered writers to their underlying files so a
// subsequent EachX iteration sees every staged record.
func (s *Staging) Flush() error {
	s.nodeMu.Lock()
	err1 := s.nodeW.Flush()
	s.nodeMu.Unlock()

	s.wayMu.Lock()
	err2 := s.wayW.Flush()
	s.wayMu.Unlock()

	s.areaUnnamedMu.Lock()
	err3 := s.areaUnnamedW.Flush()
	s.areaUnnamedMu.Unlock()

	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			return fmt.Errorf("relate: flushing staging files: %w", err)
		}
	}
	return nil
}

// EachNode replays every staged node in append order.
func (s *Staging) EachNode(fn func(*NodeRecord) error) error {
	if err := s.Flush(); err != nil {
		return err
	}
	f, err := os.Open(s.nodeFile.Name())
	if err != nil {
		return fmt.Errorf("relate: reopening node staging file: %w", err)
	}
	defer f.Close()
	r := bufferedReader(f)
	for i := uint64(0); i < s.nodeN; i++ {
		n, err := readNodeRecord(r)
		if err != nil {
			return fmt.Errorf("relate: replaying node staging file: %w", err)
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// EachWay replays every staged non-area way in append order.
func (s *Staging) EachWay(fn func(*WayRecord) error) error {
	if err := s.Flush(); err != nil {
		return err
	}
	f, err := os.Open(s.wayFile.Name())
	if err != nil {
		return fmt.Errorf("relate: reopening way staging file: %w", err)
	}
	defer f.Close()
	r := bufferedReader(f)
	for i := uint64(0); i < s.wayN; i++ {
		w, err := readWayRecord(r)
		if err != nil {
			return fmt.Errorf("relate: replaying way staging file: %w", err)
		}
		if err := fn(w); err != nil {
			return err
		}
	}
	return nil
}

// EachUnnamedArea replays every staged unnamed area in append order.
func (s *Staging) EachUnnamedArea(fn func(*AreaRecord) error) error {
	if err := s.Flush(); err != nil {
		return err
	}
	f, err := os.Open(s.areaUnnamedFile.Name())
	if err != nil {
		return fmt.Errorf("relate: reopening unnamed-area staging file: %w", err)
	}
	defer f.Close()
	r := bufferedReader(f)
	for i := uint64(0); i < s.areaUnnamedN; i++ {
		a, err := readAreaRecord(r)
		if err != nil {
			return fmt.Errorf("relate: replaying unnamed-area staging file: %w", err)
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying staging files. It does not remove them;
// callers that want the temp directory cleaned up should also call
// RemoveAll(s.dir) once done, which Driver does whenever Run returns.
func (s *Staging) Close() error {
	var first error
	for _, f := range []*os.File{s.nodeFile, s.wayFile, s.areaUnnamedFile} {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Dir returns the staging directory path, used by Driver to remove it on
// a clean exit.
func (s *Staging) Dir() string { return s.dir }

func writeNodeRecord(w *bufio.Writer, n *NodeRecord) error {
	if err := writeUint64(w, n.ID); err != nil {
		return err
	}
	if err := writePoint(w, n.Geom); err != nil {
		return err
	}
	return writeStringMap(w, n.Tags)
}

func readNodeRecord(r *bufio.Reader) (*NodeRecord, error) {
	id, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	pt, err := readPoint(r)
	if err != nil {
		return nil, err
	}
	tags, err := readStringMap(r)
	if err != nil {
		return nil, err
	}
	return &NodeRecord{ID: id, Geom: pt, Envelope: pt.Bound(), Tags: tags}, nil
}

func writeWayRecord(w *bufio.Writer, wr *WayRecord) error {
	if err := writeUint64(w, wr.ID); err != nil {
		return err
	}
	if err := writeLineString(w, wr.Geom); err != nil {
		return err
	}
	if err := writeUint64Slice(w, wr.NodeIDs); err != nil {
		return err
	}
	return writeStringMap(w, wr.Tags)
}

func readWayRecord(r *bufio.Reader) (*WayRecord, error) {
	id, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	ls, err := readLineString(r)
	if err != nil {
		return nil, err
	}
	nodeIDs, err := readUint64Slice(r)
	if err != nil {
		return nil, err
	}
	tags, err := readStringMap(r)
	if err != nil {
		return nil, err
	}
	return &WayRecord{ID: id, Geom: ls, NodeIDs: nodeIDs, Envelope: ls.Bound(), Tags: tags}, nil
}

func writeAreaRecord(w *bufio.Writer, a *AreaRecord) error {
	if err := writeUint64(w, a.ID); err != nil {
		return err
	}
	if err := writeUint64(w, a.ObjID); err != nil {
		return err
	}
	fromWay := uint64(0)
	if a.FromWay {
		fromWay = 1
	}
	if err := writeUint64(w, fromWay); err != nil {
		return err
	}
	if err := writeMultiPolygon(w, a.Geom); err != nil {
		return err
	}
	if err := writeFloat64(w, a.Area); err != nil {
		return err
	}
	return writeStringMap(w, a.Tags)
}

func readAreaRecord(r *bufio.Reader) (*AreaRecord, error) {
	id, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	objID, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	fromWay, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	geom, err := readMultiPolygon(r)
	if err != nil {
		return nil, err
	}
	area, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	tags, err := readStringMap(r)
	if err != nil {
		return nil, err
	}
	return &AreaRecord{
		ID:        id,
		ObjID:     objID,
		FromWay:   fromWay != 0,
		Geom:      geom,
		Envelopes: []orb.Bound{geom.Bound()},
		Area:      area,
		Tags:      tags,
	}, nil
}
