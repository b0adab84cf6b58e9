package relate

import (
	"bufio"
	"container/list"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/paulmach/orb"
)

// GeometryCache is the disk-backed geometry cache of §4.2: every area's
// full multipolygon is appended once to a binary file keyed by internal
// area id. Writes are single-threaded (pass 2 of staging) and serialized
// with writeMu; reads happen from many concurrent engine workers, each of
// which opens its own read-only handle and keeps its own bounded LRU via
// NewReader -- no shared decoded-geometry map, so one worker's eviction
// pressure never discards an entry another worker is about to reuse.
type GeometryCache struct {
	path string
	file *os.File
	w    *bufio.Writer

	writeMu sync.Mutex

	offsetsMu sync.RWMutex
	offsets   map[uint64]int64
}

// NewGeometryCache creates a cache backed by a fresh file under dir.
func NewGeometryCache(dir string, name string) (*GeometryCache, error) {
	f, err := os.CreateTemp(dir, name+"-*.bin")
	if err != nil {
		return nil, fmt.Errorf("relate: creating geometry cache file: %w", err)
	}
	return &GeometryCache{
		path:    f.Name(),
		file:    f,
		w:       bufferedWriter(f),
		offsets: make(map[uint64]int64),
	}, nil
}

// Put appends mp to the cache file under id.
func (c *GeometryCache) Put(id uint64, mp orb.MultiPolygon) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	offset, err := c.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("relate: seeking geometry cache file: %w", err)
	}
	if err := writeMultiPolygon(c.w, mp); err != nil {
		return fmt.Errorf("relate: appending geometry %d to cache: %w", id, err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("relate: flushing geometry cache after append: %w", err)
	}

	c.offsetsMu.Lock()
	c.offsets[id] = offset
	c.offsetsMu.Unlock()
	return nil
}

// NewReader opens a private read-only handle over the cache file plus a
// bounded LRU capped at maxEntries decoded geometries, for the exclusive
// use of one engine worker. Callers must Close the reader when done.
func (c *GeometryCache) NewReader(maxEntries int) (*GeometryCacheReader, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("relate: opening geometry cache for reading: %w", err)
	}
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &GeometryCacheReader{
		cache:      c,
		file:       f,
		lru:        list.New(),
		lruIndex:   make(map[uint64]*list.Element),
		resident:   make(map[uint64]orb.MultiPolygon),
		maxEntries: maxEntries,
	}, nil
}

// Close closes the underlying cache write file.
func (c *GeometryCache) Close() error {
	return c.file.Close()
}

type lruEntry struct {
	id uint64
}

// GeometryCacheReader is one worker's private view onto a GeometryCache:
// its own read handle (safe to Seek without racing other workers) and its
// own LRU of recently decoded geometries. No field here is shared, so it
// needs no locking of its own.
type GeometryCacheReader struct {
	cache *GeometryCache
	file  *os.File

	lru        *list.List
	lruIndex   map[uint64]*list.Element
	resident   map[uint64]orb.MultiPolygon
	maxEntries int
}

// Get returns the geometry for id, first checking this reader's own LRU
// and falling back to a positioned read from the cache file on miss.
func (r *GeometryCacheReader) Get(id uint64) (orb.MultiPolygon, bool, error) {
	if mp, ok := r.resident[id]; ok {
		r.promote(id)
		return mp, true, nil
	}

	r.cache.offsetsMu.RLock()
	offset, ok := r.cache.offsets[id]
	r.cache.offsetsMu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return nil, false, fmt.Errorf("relate: seeking to geometry %d: %w", id, err)
	}
	mp, err := readMultiPolygon(bufio.NewReader(r.file))
	if err != nil {
		return nil, false, fmt.Errorf("relate: reading geometry %d from cache: %w", id, err)
	}

	r.touch(id, mp)
	return mp, true, nil
}

// touch records mp as the most-recently-used entry for id, evicting the
// least-recently-used entry if that pushes this reader's LRU over capacity.
func (r *GeometryCacheReader) touch(id uint64, mp orb.MultiPolygon) {
	if el, ok := r.lruIndex[id]; ok {
		r.lru.MoveToFront(el)
		r.resident[id] = mp
		return
	}

	el := r.lru.PushFront(&lruEntry{id: id})
	r.lruIndex[id] = el
	r.resident[id] = mp

	for r.lru.Len() > r.maxEntries {
		back := r.lru.Back()
		if back == nil {
			break
		}
		evict := back.Value.(*lruEntry)
		r.lru.Remove(back)
		delete(r.lruIndex, evict.id)
		delete(r.resident, evict.id)
	}
}

func (r *GeometryCacheReader) promote(id uint64) {
	if el, ok := r.lruIndex[id]; ok {
		r.lru.MoveToFront(el)
	}
}

// Close closes this reader's private file handle.
func (r *GeometryCacheReader) Close() error {
	return r.file.Close()
}
