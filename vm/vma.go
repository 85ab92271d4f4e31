// Package vm implements per-process address spaces: virtual memory
// areas, the page-fault handler, fork-with-COW, the ELF loader, and the
// user stack layout (spec.md §3 AddressSpace/VirtualMemoryArea, §4.3).
// Grounded on the teacher kernel's vm package (Vm_t, Vminfo_t via
// Vmregion_t, Sys_pgfault in biscuit/src/vm/as.go) generalized from
// biscuit's single x86 VSANON/VANON/VFILE enum to the fuller backing/
// share/role model spec.md §3 names, and from a single Pmap_t to the
// two-ISA pagetable.PageTable.
package vm

import (
	"flyeros/arch"
	"flyeros/defs"
	"flyeros/pagecache"
)

/// BackingKind is the storage a VMA's pages come from.
type BackingKind int

const (
	Anonymous BackingKind = iota
	FileBacked
	MemoryStatic
)

/// ShareMode determines whether writes are COW-private or visible to
/// every mapper.
type ShareMode int

const (
	Private ShareMode = iota
	Shared
)

/// Role tags a VMA's purpose for diagnostics (/proc/self/maps-shaped
/// reporting) and for init_stack/load_elf bookkeeping.
type Role int

const (
	RoleUser Role = iota
	RoleStack
	RoleHeap
	RoleKernel
)

// FileBacking is the minimal surface a file-backed VMA needs from its
// inode: its page cache and a way to fault pages in from storage. Any
// vfs.Inode for a regular file satisfies this by construction, so vm
// never imports vfs (vfs has no reason to know about address spaces).
type FileBacking interface {
	PageCache() *pagecache.PageCache
	ReadAt(dst []byte, off int64) (int, defs.Err_t)
	Size() int64
}

/// VMA is a half-open virtual address range with uniform attributes
/// (spec.md §3). Start is the ordering key within an AddressSpace.
type VMA struct {
	Start, End uintptr
	Perm       arch.Perm
	Backing    BackingKind
	Share      ShareMode
	Role       Role

	// Valid when Backing == FileBacked.
	File       FileBacking
	FileOffset int64 // offset into File corresponding to Start

	// Valid when Backing == MemoryStatic (e.g. the vDSO-shaped
	// read-only static data biscuit's "Memory(static slice)" backing
	// models): the slice is mapped read-only, copied into a page on
	// first access rather than referenced directly, since a VMA's
	// pages must live in frames the page table can map.
	StaticData []byte
}

/// Len reports the VMA's length in bytes.
func (v *VMA) Len() uintptr { return v.End - v.Start }

/// Contains reports whether va falls within [Start, End).
func (v *VMA) Contains(va uintptr) bool { return va >= v.Start && va < v.End }

/// Intersects reports whether this VMA overlaps the half-open range
/// [start, start+length).
func (v *VMA) Intersects(start uintptr, length uintptr) bool {
	end := start + length
	return v.Start < end && start < v.End
}

/// Clone returns a deep-enough copy of the VMA record for fork: same
/// backing/role/perm, independent of the original's address (the
/// caller, AddressSpace.Fork, reuses Start/End verbatim since forked
/// regions keep the same virtual layout).
func (v *VMA) Clone() *VMA {
	cp := *v
	return &cp
}
