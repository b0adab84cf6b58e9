package relate

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/paulmach/orb"
)

// Binary record layout, little-endian, fixed-width, per §4.2/§6.4:
//   size-prefixed vectors: u64 len, then len fixed-size elements.
//   Box (orb.Bound)  = 4 x f64 (minX, minY, maxX, maxY)
//   Point             = 2 x f64
//   MultiPolygon      = u64 numPolys, each polygon = u64 outerLen, outer
//                        points, u64 numInners, [u64 innerLen, inner points]...


func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeFloat64(w io.Writer, v float64) error {
	return writeUint64(w, math.Float64bits(v))
}

func readFloat64(r io.Reader) (float64, error) {
	bits, err := readUint64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func writePoint(w io.Writer, p orb.Point) error {
	if err := writeFloat64(w, p[0]); err != nil {
		return err
	}
	return writeFloat64(w, p[1])
}

func readPoint(r io.Reader) (orb.Point, error) {
	x, err := readFloat64(r)
	if err != nil {
		return orb.Point{}, err
	}
	y, err := readFloat64(r)
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{x, y}, nil
}

func writeBound(w io.Writer, b orb.Bound) error {
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if err := writeFloat64(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readBound(r io.Reader) (orb.Bound, error) {
	vals := make([]float64, 4)
	for i := range vals {
		v, err := readFloat64(r)
		if err != nil {
			return orb.Bound{}, err
		}
		vals[i] = v
	}
	return orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}, nil
}

func writeRing(w io.Writer, ring orb.Ring) error {
	if err := writeUint64(w, uint64(len(ring))); err != nil {
		return err
	}
	for _, p := range ring {
		if err := writePoint(w, p); err != nil {
			return err
		}
	}
	return nil
}

func readRing(r io.Reader) (orb.Ring, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	ring := make(orb.Ring, n)
	for i := range ring {
		p, err := readPoint(r)
		if err != nil {
			return nil, err
		}
		ring[i] = p
	}
	return ring, nil
}

func writeLineString(w io.Writer, ls orb.LineString) error {
	return writeRing(w, orb.Ring(ls))
}

func readLineString(r io.Reader) (orb.LineString, error) {
	ring, err := readRing(r)
	if err != nil {
		return nil, err
	}
	return orb.LineString(ring), nil
}

func writePolygon(w io.Writer, p orb.Polygon) error {
	if len(p) == 0 {
		return writeRing(w, nil)
	}
	if err := writeRing(w, p[0]); err != nil {
		return err
	}
	inner := p[1:]
	if err := writeUint64(w, uint64(len(inner))); err != nil {
		return err
	}
	for _, ring := range inner {
		if err := writeRing(w, ring); err != nil {
			return err
		}
	}
	return nil
}

func readPolygon(r io.Reader) (orb.Polygon, error) {
	outer, err := readRing(r)
	if err != nil {
		return nil, err
	}
	numInner, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	poly := make(orb.Polygon, 0, 1+numInner)
	poly = append(poly, outer)
	for i := uint64(0); i < numInner; i++ {
		ring, err := readRing(r)
		if err != nil {
			return nil, err
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

func writeMultiPolygon(w io.Writer, mp orb.MultiPolygon) error {
	if err := writeUint64(w, uint64(len(mp))); err != nil {
		return err
	}
	for _, p := range mp {
		if err := writePolygon(w, p); err != nil {
			return err
		}
	}
	return nil
}

func readMultiPolygon(r io.Reader) (orb.MultiPolygon, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	mp := make(orb.MultiPolygon, n)
	for i := range mp {
		p, err := readPolygon(r)
		if err != nil {
			return nil, err
		}
		mp[i] = p
	}
	return mp, nil
}

func writeStringMap(w io.Writer, m map[string]string) error {
	if err := writeUint64(w, uint64(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := writeString(w, k); err != nil {
			return err
		}
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readStringMap(r io.Reader) (map[string]string, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, n)
	for i := uint64(0); i < n; i++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint64(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint64(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeUint64Slice(w io.Writer, vals []uint64) error {
	if err := writeUint64(w, uint64(len(vals))); err != nil {
		return err
	}
	for _, v := range vals {
		if err := writeUint64(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readUint64Slice(r io.Reader) ([]uint64, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		v, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeBoxIDs(w io.Writer, ids []BoxId) error {
	if err := writeUint64(w, uint64(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := writeUint64(w, uint64(id)); err != nil {
			return err
		}
	}
	return nil
}

func readBoxIDs(r io.Reader) ([]BoxId, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	out := make([]BoxId, n)
	for i := range out {
		v, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		out[i] = BoxId(v)
	}
	return out, nil
}

// bufferedWriter and bufferedReader are small conveniences so call sites
// don't each remember to wrap os.File in bufio themselves.
func bufferedWriter(w io.Writer) *bufio.Writer {
	return bufio.NewWriterSize(w, 64*1024)
}

func bufferedReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 64*1024)
}
