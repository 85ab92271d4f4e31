package vfs

import (
	"hash/fnv"
	"strconv"
	"sync"
	"unsafe"
)

// dcacheShards is the number of buckets the dentry cache shards across,
// each independently locked so lookups on unrelated directories don't
// contend. Grounded on biscuit's hashtable package (src/hashtable/
// hashtable.go), which shards a lock-free-read hashtable the same way;
// this cache keeps it simpler (an RWMutex per shard, no atomic bucket
// chains) since the dentry cache is read-heavy but not contended enough
// to need biscuit's lock-free Get.
const dcacheShards = 64

type dcacheKey struct {
	parent *Dentry
	name   string
}

func (k dcacheKey) hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatUint(uint64(uintptr(unsafe.Pointer(k.parent))), 16)))
	h.Write([]byte{0})
	h.Write([]byte(k.name))
	return h.Sum32()
}

type dcacheShard struct {
	mu sync.RWMutex
	m  map[dcacheKey]*Dentry
}

/// DentryCache memoizes (parent, name) -> *Dentry lookups so repeated
/// path walks don't re-invoke a backing filesystem's Directory.Lookup.
type DentryCache struct {
	shards [dcacheShards]*dcacheShard
}

/// NewDentryCache creates an empty cache.
func NewDentryCache() *DentryCache {
	dc := &DentryCache{}
	for i := range dc.shards {
		dc.shards[i] = &dcacheShard{m: make(map[dcacheKey]*Dentry)}
	}
	return dc
}

func (dc *DentryCache) shardFor(k dcacheKey) *dcacheShard {
	return dc.shards[k.hash()%dcacheShards]
}

/// Get returns the cached dentry for (parent, name), if present.
func (dc *DentryCache) Get(parent *Dentry, name string) (*Dentry, bool) {
	k := dcacheKey{parent, name}
	s := dc.shardFor(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.m[k]
	return d, ok
}

/// Put caches d under (parent, name).
func (dc *DentryCache) Put(parent *Dentry, name string, d *Dentry) {
	k := dcacheKey{parent, name}
	s := dc.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[k] = d
}

/// Invalidate removes any cached entry for (parent, name), used on
/// unlink/rmdir/rename so a stale dentry doesn't outlive its inode.
func (dc *DentryCache) Invalidate(parent *Dentry, name string) {
	k := dcacheKey{parent, name}
	s := dc.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, k)
}
