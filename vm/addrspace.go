package vm

import (
	"sort"

	"flyeros/arch"
	"flyeros/bounds"
	"flyeros/defs"
	"flyeros/mem"
	"flyeros/mutex"
	"flyeros/pagecache"
	"flyeros/pagetable"
	"flyeros/res"
)

/// AddressSpace is one process's virtual memory: a page table plus the
/// ordered set of VMAs describing what should be mapped where (spec.md
/// §3 AddressSpace). Grounded on biscuit's Vm_t (src/vm/as.go), split
/// from biscuit's single struct into the pagetable.PageTable plus this
/// VMA bookkeeping, since the teacher's Pmap_t/Vmregion_t pair maps
/// onto exactly that split in the new tree.
type AddressSpace struct {
	lock  mutex.SpinNoIrq
	PT    *pagetable.PageTable
	alloc *mem.Allocator
	isa   arch.ISA
	vmas  []*VMA // sorted by Start, non-overlapping

	userMin, userMax uintptr
	brk              uintptr // current heap break, within the RoleHeap VMA
}

/// NewAddressSpace creates an empty address space with a fresh page
/// table and the given user virtual address window.
func NewAddressSpace(alloc *mem.Allocator, isa arch.ISA, userMin, userMax uintptr) (*AddressSpace, defs.Err_t) {
	pt, err := pagetable.New(alloc, isa)
	if err != 0 {
		return nil, err
	}
	return &AddressSpace{PT: pt, alloc: alloc, isa: isa, userMin: userMin, userMax: userMax}, 0
}

/// NewChild creates a fresh, empty address space with the same ISA and
/// user window as as, for clone(2)/fork(2) paths that need a blank
/// AddressSpace to Fork COW state or load a new image into (execve).
func (as *AddressSpace) NewChild() (*AddressSpace, defs.Err_t) {
	return NewAddressSpace(as.alloc, as.isa, as.userMin, as.userMax)
}

/// UserMax returns the top of as's user virtual address window, the
/// stack-growth ceiling execve(2)'s InitStack call needs.
func (as *AddressSpace) UserMax() uintptr { return as.userMax }

func pageRound(va uintptr) uintptr   { return va &^ (mem.PGSIZE - 1) }
func pageRoundUp(va uintptr) uintptr { return pageRound(va + mem.PGSIZE - 1) }

// indexOf returns the position in as.vmas at or after which a VMA
// starting at start would sit (sort.Search over Start).
func (as *AddressSpace) indexOf(start uintptr) int {
	return sort.Search(len(as.vmas), func(i int) bool { return as.vmas[i].Start >= start })
}

// findContaining returns the VMA containing va, or nil.
func (as *AddressSpace) findContaining(va uintptr) *VMA {
	i := sort.Search(len(as.vmas), func(i int) bool { return as.vmas[i].End > va })
	if i < len(as.vmas) && as.vmas[i].Start <= va {
		return as.vmas[i]
	}
	return nil
}

/// AddArea inserts a new VMA, failing with EINVAL if it overlaps an
/// existing one (spec.md §4.3 add_area). Callers must have already
/// reserved the range via FindVacant or know it's free (e.g. load_elf
/// segments, which are laid out by the linker not to overlap).
func (as *AddressSpace) AddArea(v *VMA) defs.Err_t {
	as.lock.Lock()
	defer as.lock.Unlock()
	i := as.indexOf(v.Start)
	if i < len(as.vmas) && as.vmas[i].Start < v.End {
		return defs.EINVAL
	}
	if i > 0 && as.vmas[i-1].End > v.Start {
		return defs.EINVAL
	}
	as.vmas = append(as.vmas, nil)
	copy(as.vmas[i+1:], as.vmas[i:])
	as.vmas[i] = v
	return 0
}

/// FindVacant scans for a gap of at least length bytes within the
/// address space's user window, returning the lowest such gap's start
/// (a simple first-fit policy; spec.md §4.3 leaves the search strategy
/// unspecified beyond "find a vacant range").
func (as *AddressSpace) FindVacant(length uintptr) (uintptr, defs.Err_t) {
	as.lock.Lock()
	defer as.lock.Unlock()
	length = pageRoundUp(length)
	prev := as.userMin
	for _, v := range as.vmas {
		if v.Start-prev >= length {
			return prev, 0
		}
		if v.End > prev {
			prev = v.End
		}
	}
	if as.userMax-prev >= length {
		return prev, 0
	}
	return 0, defs.ENOMEM
}

/// MapAnon implements the mmap(2) MAP_ANONYMOUS path: pageRound length
/// up, find a vacant range with FindVacant unless fixed names an exact
/// address (in which case any existing mapping there is torn down
/// first, MAP_FIXED's contract), and AddArea a fresh Private Anonymous
/// VMA there (spec.md §4.3: mmap is the add_area/find_vacant entry
/// point). Pages are demand-faulted on first access exactly like any
/// other anonymous VMA; mmap itself never pre-faults.
func (as *AddressSpace) MapAnon(addr uintptr, length uintptr, perm arch.Perm, fixed bool) (uintptr, defs.Err_t) {
	length = pageRoundUp(length)
	if length == 0 {
		return 0, defs.EINVAL
	}

	var start uintptr
	if fixed {
		start = pageRound(addr)
		if err := as.RemoveMapping(start, length); err != 0 {
			return 0, err
		}
	} else {
		var err defs.Err_t
		start, err = as.FindVacant(length)
		if err != 0 {
			return 0, err
		}
	}

	v := &VMA{
		Start:   start,
		End:     start + length,
		Perm:    perm,
		Backing: Anonymous,
		Share:   Private,
		Role:    RoleUser,
	}
	if err := as.AddArea(v); err != 0 {
		return 0, err
	}
	return start, 0
}

/// RemoveMapping unmaps [start, start+length), splitting or trimming
/// any overlapping VMAs and releasing the frames of any pages that were
/// actually mapped (spec.md §4.3 remove_mapping — the munmap primitive).
func (as *AddressSpace) RemoveMapping(start, length uintptr) defs.Err_t {
	as.lock.Lock()
	defer as.lock.Unlock()
	start = pageRound(start)
	end := pageRoundUp(start + length)

	var kept []*VMA
	for _, v := range as.vmas {
		if v.End <= start || v.Start >= end {
			kept = append(kept, v)
			continue
		}
		// unmap the overlapping portion's pages
		for va := maxUintptr(v.Start, start); va < minUintptr(v.End, end); va += mem.PGSIZE {
			as.unmapPage(v, va)
		}
		if v.Start < start {
			left := v.Clone()
			left.End = start
			kept = append(kept, left)
		}
		if v.End > end {
			right := v.Clone()
			right.Start = end
			if right.Backing == FileBacked {
				right.FileOffset += int64(end - v.Start)
			}
			kept = append(kept, right)
		}
	}
	as.vmas = kept
	return 0
}

func (as *AddressSpace) unmapPage(v *VMA, va uintptr) {
	vpn := pagetable.VPN(va / mem.PGSIZE)
	frame, _, ok := as.PT.Translate(vpn)
	as.PT.Unmap(vpn)
	if !ok {
		return
	}
	if v.Backing == Anonymous {
		as.alloc.Refdown(frame)
	}
	// file-backed frames are owned by the inode's page cache, not the
	// address space, so they're left alone here.
}

func maxUintptr(a, b uintptr) uintptr {
	if a > b {
		return a
	}
	return b
}
func minUintptr(a, b uintptr) uintptr {
	if a < b {
		return a
	}
	return b
}

/// ChangeProt updates the permission mask of every VMA overlapping
/// [start, start+length), remapping already-present pages in place
/// (spec.md §4.3 change_prot — the mprotect primitive).
func (as *AddressSpace) ChangeProt(start, length uintptr, perm arch.Perm) defs.Err_t {
	as.lock.Lock()
	defer as.lock.Unlock()
	start = pageRound(start)
	end := pageRoundUp(start + length)
	for _, v := range as.vmas {
		if v.End <= start || v.Start >= end {
			continue
		}
		v.Perm = perm
		for va := maxUintptr(v.Start, start); va < minUintptr(v.End, end); va += mem.PGSIZE {
			vpn := pagetable.VPN(va / mem.PGSIZE)
			if frame, _, ok := as.PT.Translate(vpn); ok {
				as.PT.Map(vpn, frame, perm)
			}
		}
	}
	return 0
}

/// HandlePageFault resolves a hardware page fault at va for the given
/// access (spec.md §4.3 handle_page_fault). It is the generalization of
/// biscuit's Sys_pgfault: demand-fill anonymous/file-backed pages on
/// first touch, and copy-on-write a shared frame on a write fault.
func (as *AddressSpace) HandlePageFault(va uintptr, access arch.Perm) defs.Err_t {
	as.lock.Lock()
	defer as.lock.Unlock()

	v := as.findContaining(va)
	if v == nil {
		return defs.ESRCH // signals SIGSEGV to the caller
	}
	if access&arch.Write != 0 && v.Perm&arch.Write == 0 {
		return defs.ESRCH
	}
	if access&arch.Execute != 0 && v.Perm&arch.Execute == 0 {
		return defs.ESRCH
	}

	if !res.Resadd_noblock(bounds.B_ASPACE_T_K2USER_INNER) {
		return defs.ENOHEAP
	}
	defer res.Resdone(bounds.B_ASPACE_T_K2USER_INNER)

	page := pageRound(va)
	vpn := pagetable.VPN(page / mem.PGSIZE)

	if frame, curPerm, ok := as.PT.Translate(vpn); ok {
		// Present mapping: this can only be a COW write fault (a
		// present, correctly-permissioned page wouldn't trap at all).
		if access&arch.Write == 0 {
			return 0
		}
		if as.alloc.Refcnt(frame) == 1 {
			// sole owner: just flip the mapping writable.
			as.PT.Map(vpn, frame, v.Perm)
			return 0
		}
		nf, ok := as.alloc.Alloc()
		if !ok {
			return defs.ENOHEAP
		}
		copy(as.alloc.Dmap(nf), as.alloc.Dmap(frame))
		as.alloc.Refdown(frame)
		as.PT.Map(vpn, nf, v.Perm)
		_ = curPerm
		return 0
	}

	switch v.Backing {
	case Anonymous:
		nf, ok := as.alloc.Alloc()
		if !ok {
			return defs.ENOHEAP
		}
		clear(as.alloc.Dmap(nf))
		as.PT.Map(vpn, nf, v.Perm)
		return 0

	case MemoryStatic:
		nf, ok := as.alloc.Alloc()
		if !ok {
			return defs.ENOHEAP
		}
		dst := as.alloc.Dmap(nf)
		off := int64(page - v.Start)
		if off >= 0 && off < int64(len(v.StaticData)) {
			n := copy(dst, v.StaticData[off:])
			_ = n
		}
		mapPerm := v.Perm &^ arch.Write // static data is always COW-shared
		as.PT.Map(vpn, nf, mapPerm)
		return 0

	case FileBacked:
		pc := v.File.PageCache()
		fileOff := v.FileOffset + int64(page-v.Start)
		aligned := fileOff &^ (mem.PGSIZE - 1)
		p, err := pc.GetOrCreate(aligned, pagecache.FileBacked, func(offset int64, dst []byte) (int, defs.Err_t) {
			return v.File.ReadAt(dst, offset)
		})
		if err != 0 {
			return err
		}
		as.alloc.Refup(p.Frame.Frame())
		mapPerm := v.Perm
		if v.Share == Private {
			mapPerm &^= arch.Write // private file mappings are COW
		}
		as.PT.Map(vpn, p.Frame.Frame(), mapPerm)
		return 0
	}
	return defs.EINVAL
}

/// Fork populates child (a freshly created, empty AddressSpace) with a
/// copy of every VMA in as, sharing anonymous frames read-only between
/// parent and child so the next write triggers HandlePageFault's COW
/// path (spec.md §4.3 fork — the clone()/fork() address-space duplication
/// biscuit's Vm_t.Fork implements the same way).
func (as *AddressSpace) Fork(child *AddressSpace) defs.Err_t {
	as.lock.Lock()
	defer as.lock.Unlock()

	for _, v := range as.vmas {
		cv := v.Clone()
		child.vmas = append(child.vmas, cv)

		if v.Backing != Anonymous && v.Share == Shared {
			// shared file/static mappings: nothing to copy, faults
			// resolve the same as on the parent.
			continue
		}
		for va := v.Start; va < v.End; va += mem.PGSIZE {
			vpn := pagetable.VPN(va / mem.PGSIZE)
			frame, perm, ok := as.PT.Translate(vpn)
			if !ok {
				continue
			}
			if v.Backing == Anonymous {
				as.alloc.Refup(frame)
				roPerm := perm &^ arch.Write
				as.PT.Map(vpn, frame, roPerm)
				child.PT.Map(vpn, frame, roPerm)
			} else {
				as.alloc.Refup(frame)
				child.PT.Map(vpn, frame, perm)
			}
		}
	}
	child.brk = as.brk
	return 0
}

/// Brk reports the current heap break.
func (as *AddressSpace) Brk() uintptr {
	as.lock.Lock()
	defer as.lock.Unlock()
	return as.brk
}

/// SetBrk grows or shrinks the RoleHeap VMA to new, zero-filling growth
/// lazily via the ordinary anonymous-fault path and releasing frames on
/// shrink, the same way biscuit's Sys_brk/Vm_t.Sbrk operates.
func (as *AddressSpace) SetBrk(heap *VMA, newBrk uintptr) defs.Err_t {
	as.lock.Lock()
	defer as.lock.Unlock()
	newBrk = pageRoundUp(newBrk)
	if newBrk < heap.Start {
		return defs.EINVAL
	}
	if newBrk > heap.End {
		heap.End = newBrk
	} else if newBrk < heap.End {
		for va := newBrk; va < heap.End; va += mem.PGSIZE {
			as.unmapPage(heap, va)
		}
		heap.End = newBrk
	}
	as.brk = newBrk
	return 0
}
