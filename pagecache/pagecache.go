// Package pagecache implements the Page and PageCache types of spec.md
// §3/§4.4: an ordered (inode, aligned file-offset) -> Page mapping with
// lazy zero-fill/fault-in, sitting behind vfs.Inode the way biscuit's fs
// package keys block buffers by (device, block) in fs/blk.go.
package pagecache

import (
	"sort"
	"sync"

	"flyeros/defs"
	"flyeros/mem"
)

/// Tag describes what a Page's frame is backing, per spec.md §3.
type Tag int

const (
	Anonymous Tag = iota
	FileBacked
	BlockBuffer
)

/// Page is a frame plus a tag describing its mapping. Contents are
/// mutable through the frame's direct-mapped bytes; callers serialize
/// access themselves (spec.md §3: "synchronization is the caller's
/// responsibility").
type Page struct {
	Tag    Tag
	Frame  *mem.Handle
	Offset int64 // page-aligned file offset, meaningful for FileBacked/BlockBuffer
}

/// Bytes returns the page's backing bytes.
func (p *Page) Bytes() []byte { return p.Frame.Bytes() }

/// PageCache is the mapping from aligned file-offset to Page that an
/// inode owns, held in a Go map, so no offset order is kept. Its
/// primitives are Lookup, GetOrCreate (create-if-absent), Insert,
/// Remove and Truncate; creation zero-fills or fills the page through
/// a caller-supplied Loader (spec.md §3).
type PageCache struct {
	mu    sync.Mutex
	pages map[int64]*Page
	alloc *mem.Allocator
}

/// New creates an empty page cache backed by the given frame allocator.
func New(alloc *mem.Allocator) *PageCache {
	return &PageCache{pages: make(map[int64]*Page), alloc: alloc}
}

/// Lookup returns the page at the given aligned offset, if cached.
func (pc *PageCache) Lookup(offset int64) (*Page, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	p, ok := pc.pages[offset]
	return p, ok
}

// Loader reads exactly one page's worth of data for a file-backed page
// that's missing from the cache. It returns fewer than mem.PGSIZE bytes
// only at EOF; the caller zero-fills the remainder (spec.md §4.3: "if
// the page would extend past file EOF, zero-fill the tail").
type Loader func(offset int64, dst []byte) (n int, err defs.Err_t)

/// GetOrCreate returns the cached page at offset, or creates one by
/// invoking load (if non-nil) and zero-filling any tail short of a
/// full page, caching the result. A nil load zero-fills the whole page
/// (the anonymous-mapping case).
func (pc *PageCache) GetOrCreate(offset int64, tag Tag, load Loader) (*Page, defs.Err_t) {
	pc.mu.Lock()
	if p, ok := pc.pages[offset]; ok {
		pc.mu.Unlock()
		return p, 0
	}
	pc.mu.Unlock()

	h, err := mem.NewHandle(pc.alloc)
	if err != 0 {
		return nil, err
	}
	if load != nil {
		n, err := load(offset, h.Bytes())
		if err != 0 {
			h.Release()
			return nil, err
		}
		_ = n // remaining bytes are already zero from NewHandle
	}
	p := &Page{Tag: tag, Frame: h, Offset: offset}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if existing, ok := pc.pages[offset]; ok {
		// lost a race with a concurrent fault on the same offset
		h.Release()
		return existing, 0
	}
	pc.pages[offset] = p
	return p, 0
}

/// Insert installs an already-constructed page at offset (used when the
/// caller built the page via a COW copy rather than a fresh load).
func (pc *PageCache) Insert(offset int64, p *Page) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.pages[offset] = p
}

/// Remove evicts the page at offset, releasing its frame.
func (pc *PageCache) Remove(offset int64) {
	pc.mu.Lock()
	p, ok := pc.pages[offset]
	if ok {
		delete(pc.pages, offset)
	}
	pc.mu.Unlock()
	if ok {
		p.Frame.Release()
	}
}

/// Truncate drops every cached page at or beyond offset, for ftruncate
/// shrinking a file below a previously cached page's range.
func (pc *PageCache) Truncate(offset int64) {
	pc.mu.Lock()
	var doomed []int64
	for off := range pc.pages {
		if off >= offset {
			doomed = append(doomed, off)
		}
	}
	sort.Slice(doomed, func(i, j int) bool { return doomed[i] < doomed[j] })
	for _, off := range doomed {
		pc.pages[off].Frame.Release()
		delete(pc.pages, off)
	}
	pc.mu.Unlock()
}

/// Len reports the number of cached pages.
func (pc *PageCache) Len() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.pages)
}
