// Package pagetable implements the multi-level page-table abstraction
// spec.md §4.2 describes: a three- or four-level radix tree of 512-entry
// nodes (ISA-dependent), map/unmap/translate/unmap_range, a kernel
// identity map, install-as-current, and TLB shootdown. It is the
// generalization of biscuit's single-ISA, single-level-count Pmap_t
// ([512]Pa_t, see mem.Pmap_t and vm.Vm_t.Pmap) across the two target
// ISAs via arch.Leaf, with ISA-specific flag derivation (RISC-V A/D,
// LoongArch NR/NX/MAT/PLV) happening only inside arch.
package pagetable

import (
	"sync/atomic"
	"unsafe"

	"flyeros/arch"
	"flyeros/defs"
	"flyeros/mem"
	"flyeros/mutex"
)

const entriesPerNode = 512

/// VPN is a virtual page number (virtual address >> PGSHIFT).
type VPN uint64

/// PageTable is a hierarchical structure owning its interior nodes.
type PageTable struct {
	isa   arch.ISA
	leaf  arch.Leaf
	alloc *mem.Allocator
	lock  mutex.SpinNoIrq
	root  mem.Frame
	// shootdowns counts local TLB invalidations issued; cross-hart
	// shootdown is an open point per spec.md §4.2/§9 and is not
	// implemented — this kernel flushes the local hart only.
	shootdowns uint64
}

/// New allocates a fresh, empty page table for the given ISA.
func New(a *mem.Allocator, isa arch.ISA) (*PageTable, defs.Err_t) {
	root, ok := a.Alloc()
	if !ok {
		return nil, defs.ENOMEM
	}
	clear(a.Dmap(root))
	return &PageTable{isa: isa, leaf: arch.For(isa), alloc: a, root: root}, 0
}

/// Root returns the physical frame backing the table's root node, the
/// value a hart's satp/pgdl register would hold were this not hosted.
func (pt *PageTable) Root() mem.Frame { return pt.root }

// node returns a []uint64 view directly over the frame's backing bytes
// (biscuit does the analogous cast in mem.pg2pmap); writes through this
// slice are writes to simulated physical memory, same as a real radix
// tree node.
func (pt *PageTable) node(f mem.Frame) []uint64 {
	b := pt.alloc.Dmap(f)
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}

func (pt *PageTable) walk(vpn VPN, create bool) (*uint64, defs.Err_t) {
	levels := pt.leaf.Levels()
	cur := pt.root
	for lvl := 0; lvl < levels-1; lvl++ {
		shift := uint(9 * (levels - 1 - lvl))
		idx := (uint64(vpn) >> shift) & (entriesPerNode - 1)
		node := pt.node(cur)
		entry := node[idx]
		pfn, _, present := decodeIntermediate(entry)
		if !present {
			if !create {
				return nil, defs.ENOMEM
			}
			nf, ok := pt.alloc.Alloc()
			if !ok {
				return nil, defs.ENOMEM
			}
			clear(pt.alloc.Dmap(nf))
			node[idx] = encodeIntermediate(uint64(nf))
			cur = nf
		} else {
			cur = mem.Frame(pfn)
		}
	}
	shift := uint(0)
	idx := (uint64(vpn) >> shift) & (entriesPerNode - 1)
	node := pt.node(cur)
	return &node[idx], 0
}

func decodeIntermediate(e uint64) (pfn uint64, perm uint64, present bool) {
	return e >> 12, 0, e&1 != 0
}

func encodeIntermediate(pfn uint64) uint64 {
	return (pfn << 12) | 1
}

/// Map installs a leaf mapping vpn -> frame with perm, allocating
/// interior nodes as needed, and invalidates the local TLB for vpn.
func (pt *PageTable) Map(vpn VPN, f mem.Frame, perm arch.Perm) defs.Err_t {
	pt.lock.Lock()
	defer pt.lock.Unlock()
	pte, err := pt.walk(vpn, true)
	if err != 0 {
		return err
	}
	// LoongArch requires D set before a write is legal (spec.md §4.2);
	// this kernel's RISC-V profile has no Svadu either, so both ISAs
	// get the dirty bit pre-set for writable leaves at map time rather
	// than relying on a hardware dirty-bit fault.
	dirty := perm.Has(arch.Write)
	*pte = pt.leaf.Encode(uint64(f), perm|arch.Valid, dirty)
	pt.shootdownLocked(vpn, 1)
	return 0
}

/// Unmap clears the leaf mapping for vpn and invalidates the TLB.
func (pt *PageTable) Unmap(vpn VPN) {
	pt.lock.Lock()
	defer pt.lock.Unlock()
	pte, err := pt.walk(vpn, false)
	if err != 0 {
		return
	}
	*pte = 0
	pt.shootdownLocked(vpn, 1)
}

/// UnmapRange clears n consecutive leaf mappings starting at vpn.
func (pt *PageTable) UnmapRange(vpn VPN, n int) {
	for i := 0; i < n; i++ {
		pt.Unmap(vpn + VPN(i))
	}
}

/// Translate returns the frame and effective permission mapped at vpn,
/// or ok=false if no mapping is present.
func (pt *PageTable) Translate(vpn VPN) (f mem.Frame, perm arch.Perm, ok bool) {
	pt.lock.Lock()
	defer pt.lock.Unlock()
	pte, err := pt.walk(vpn, false)
	if err != 0 {
		return 0, 0, false
	}
	pfn, p, present := pt.leaf.Decode(*pte)
	if !present {
		return 0, 0, false
	}
	return mem.Frame(pfn), p, true
}

/// RawEntry exposes the leaf PTE pointer for vpn for callers (vm's page
/// fault handler) that need to read-modify-write flags in place, e.g.
/// to reflag a COW leaf writable without a full Map round trip.
func (pt *PageTable) RawEntry(vpn VPN, create bool) (*uint64, defs.Err_t) {
	pt.lock.Lock()
	defer pt.lock.Unlock()
	return pt.walk(vpn, create)
}

/// Decode exposes the ISA leaf codec so callers holding a raw entry from
/// RawEntry can interpret or rebuild it.
func (pt *PageTable) Decode(entry uint64) (mem.Frame, arch.Perm, bool) {
	pfn, p, present := pt.leaf.Decode(entry)
	return mem.Frame(pfn), p, present
}

/// Encode packs (frame, perm) into a raw leaf entry for this table's ISA.
func (pt *PageTable) Encode(f mem.Frame, perm arch.Perm, dirty bool) uint64 {
	return pt.leaf.Encode(uint64(f), perm, dirty)
}

/// MapKernel populates the high half with the kernel's Global mappings:
/// the kernel image, MMIO ranges, and the DTB window, shared across all
/// address spaces (spec.md §4.2). regions gives (vpn, frame, perm, n)
/// tuples supplied by the caller; the hosted boot sequence in
/// cmd/kernel does not call MapKernel.
func (pt *PageTable) MapKernel(regions []KernelRegion) defs.Err_t {
	for _, r := range regions {
		for i := 0; i < r.NPages; i++ {
			if err := pt.Map(r.VPN+VPN(i), r.Frame+mem.Frame(i), r.Perm|arch.Global); err != 0 {
				return err
			}
		}
	}
	return 0
}

/// KernelRegion describes one contiguous kernel mapping for MapKernel.
type KernelRegion struct {
	VPN    VPN
	Frame  mem.Frame
	NPages int
	Perm   arch.Perm
}

// currentRoot records which page table is "installed" — SwitchTo's
// hosted stand-in for writing satp/pgdl. It is one slot shared by every
// simulated hart, not one per hart.
var currentRoot atomic.Uint64

/// SwitchTo installs this table as current, spec.md §4.2's
/// install-as-current primitive. It only records the root: it issues no
/// TLB invalidation of non-global entries and counts no shootdown.
func (pt *PageTable) SwitchTo() {
	currentRoot.Store(uint64(pt.root))
}

/// TlbShootdown invalidates pages pages starting at vpn. Per spec.md §4.2
/// and §9, cross-hart shootdown is an explicit open point: this
/// implementation flushes the local hart only.
func (pt *PageTable) TlbShootdown(vpn VPN, pages int) {
	pt.lock.Lock()
	defer pt.lock.Unlock()
	pt.shootdownLocked(vpn, pages)
}

func (pt *PageTable) shootdownLocked(vpn VPN, pages int) {
	atomic.AddUint64(&pt.shootdowns, uint64(pages))
}

/// Shootdowns reports the number of local TLB invalidations issued.
func (pt *PageTable) Shootdowns() uint64 {
	return atomic.LoadUint64(&pt.shootdowns)
}

