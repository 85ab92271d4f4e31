package vm

import (
	"testing"

	"flyeros/arch"
	"flyeros/mem"
	"flyeros/pagetable"
)

const (
	testUserMin = uintptr(0x10000)
	testUserMax = uintptr(1) << 30
)

func newTestAS(t *testing.T) *AddressSpace {
	t.Helper()
	alloc := mem.NewAllocator(1024)
	as, err := NewAddressSpace(alloc, arch.RISCV64, testUserMin, testUserMax)
	if err != 0 {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	return as
}

func vpnOf(va uintptr) pagetable.VPN { return pagetable.VPN(va / mem.PGSIZE) }

// No two VMAs in an address space ever overlap, whether they arrive via
// AddArea directly or via MapAnon/RemoveMapping (spec.md §8 property 1).
func TestAddAreaRejectsOverlap(t *testing.T) {
	as := newTestAS(t)
	perm := arch.Valid | arch.User | arch.Read | arch.Write

	first := &VMA{Start: 0x20000, End: 0x22000, Perm: perm, Backing: Anonymous}
	if err := as.AddArea(first); err != 0 {
		t.Fatalf("AddArea(first): %v", err)
	}

	overlaps := []*VMA{
		{Start: 0x20000, End: 0x21000, Perm: perm},
		{Start: 0x1f000, End: 0x20500, Perm: perm},
		{Start: 0x21000, End: 0x23000, Perm: perm},
		{Start: 0x1f000, End: 0x23000, Perm: perm},
	}
	for _, v := range overlaps {
		if err := as.AddArea(v); err == 0 {
			t.Fatalf("AddArea(%#x-%#x) succeeded, want overlap rejection", v.Start, v.End)
		}
	}

	adjacent := &VMA{Start: 0x22000, End: 0x23000, Perm: perm, Backing: Anonymous}
	if err := as.AddArea(adjacent); err != 0 {
		t.Fatalf("AddArea(adjacent): %v", err)
	}
}

func TestFindVacantThenMapAnonNeverOverlaps(t *testing.T) {
	as := newTestAS(t)
	perm := arch.Valid | arch.User | arch.Read | arch.Write

	var starts []uintptr
	for i := 0; i < 8; i++ {
		start, err := as.MapAnon(0, mem.PGSIZE*3, perm, false)
		if err != 0 {
			t.Fatalf("MapAnon #%d: %v", i, err)
		}
		starts = append(starts, start)
	}
	for i := range as.vmas {
		for j := range as.vmas {
			if i == j {
				continue
			}
			if as.vmas[i].Intersects(as.vmas[j].Start, as.vmas[j].Len()) {
				t.Fatalf("vma %d (%#x-%#x) intersects vma %d (%#x-%#x)",
					i, as.vmas[i].Start, as.vmas[i].End, j, as.vmas[j].Start, as.vmas[j].End)
			}
		}
	}

	// munmap the middle mapping, then a same-size request should be able
	// to reuse that gap (first-fit).
	if err := as.RemoveMapping(starts[3], mem.PGSIZE*3); err != 0 {
		t.Fatalf("RemoveMapping: %v", err)
	}
	reused, err := as.MapAnon(0, mem.PGSIZE*3, perm, false)
	if err != 0 {
		t.Fatalf("MapAnon after unmap: %v", err)
	}
	if reused != starts[3] {
		t.Fatalf("expected first-fit to reuse freed gap at %#x, got %#x", starts[3], reused)
	}
}

// HandlePageFault always leaves the faulted page's permission a
// superset of the access that faulted (spec.md §8 property 2).
func TestHandlePageFaultGrantsRequestedPermission(t *testing.T) {
	as := newTestAS(t)
	perm := arch.Valid | arch.User | arch.Read | arch.Write
	start, err := as.MapAnon(0, mem.PGSIZE, perm, false)
	if err != 0 {
		t.Fatalf("MapAnon: %v", err)
	}
	if err := as.HandlePageFault(start, arch.Read); err != 0 {
		t.Fatalf("HandlePageFault: %v", err)
	}
	_, got, ok := as.PT.Translate(vpnOf(start))
	if !ok {
		t.Fatal("Translate: page not mapped after fault")
	}
	if got&arch.Read == 0 {
		t.Fatalf("permission %v does not grant Read", got)
	}
}

// End-to-end scenario 2: mmap demand-fault — an anonymous 8192-byte
// mapping reads as zero before any write, a write to the second page is
// visible, and each page is backed by its own distinct frame.
func TestMmapDemandFaultScenario(t *testing.T) {
	as := newTestAS(t)
	perm := arch.Valid | arch.User | arch.Read | arch.Write

	addr, err := as.MapAnon(0, 8192, perm, false)
	if err != 0 {
		t.Fatalf("mmap: %v", err)
	}

	readByte := func(va uintptr) byte {
		if err := as.HandlePageFault(va, arch.Read); err != 0 {
			t.Fatalf("HandlePageFault(read, %#x): %v", va, err)
		}
		frame, _, ok := as.PT.Translate(vpnOf(va))
		if !ok {
			t.Fatalf("page at %#x not mapped after fault", va)
		}
		return as.alloc.Dmap(frame)[va%mem.PGSIZE]
	}
	writeByte := func(va uintptr, v byte) {
		if err := as.HandlePageFault(va, arch.Read|arch.Write); err != 0 {
			t.Fatalf("HandlePageFault(write, %#x): %v", va, err)
		}
		frame, _, ok := as.PT.Translate(vpnOf(va))
		if !ok {
			t.Fatalf("page at %#x not mapped after fault", va)
		}
		as.alloc.Dmap(frame)[va%mem.PGSIZE] = v
	}

	if got := readByte(addr); got != 0 {
		t.Fatalf("first byte = %#x, want 0", got)
	}
	writeByte(addr+mem.PGSIZE, 0x42)
	if got := readByte(addr); got != 0 {
		t.Fatalf("byte 0 after second-page write = %#x, want 0", got)
	}
	if got := readByte(addr + mem.PGSIZE); got != 0x42 {
		t.Fatalf("byte %#x = %#x, want 0x42", addr+mem.PGSIZE, got)
	}

	f0, _, _ := as.PT.Translate(vpnOf(addr))
	f1, _, _ := as.PT.Translate(vpnOf(addr + mem.PGSIZE))
	if f0 == f1 {
		t.Fatalf("pages 0 and 1 share frame %v, want distinct frames", f0)
	}
}

// End-to-end scenario 3 / the COW fork property: writing before fork is
// visible to the child (shared frame); a post-fork write by either side
// produces a private frame not observed by the other.
func TestForkCOWScenario(t *testing.T) {
	parent := newTestAS(t)
	perm := arch.Valid | arch.User | arch.Read | arch.Write
	addr, err := parent.MapAnon(0, mem.PGSIZE, perm, false)
	if err != 0 {
		t.Fatalf("mmap: %v", err)
	}
	if err := parent.HandlePageFault(addr, arch.Write); err != 0 {
		t.Fatalf("pre-fork fault: %v", err)
	}
	pframe, _, _ := parent.PT.Translate(vpnOf(addr))
	parent.alloc.Dmap(pframe)[0] = 0xAA

	child, err := parent.NewChild()
	if err != 0 {
		t.Fatalf("NewChild: %v", err)
	}
	if err := parent.Fork(child); err != 0 {
		t.Fatalf("Fork: %v", err)
	}

	readAt := func(as *AddressSpace, va uintptr) byte {
		frame, _, ok := as.PT.Translate(vpnOf(va))
		if !ok {
			t.Fatalf("page at %#x not mapped", va)
		}
		return as.alloc.Dmap(frame)[va%mem.PGSIZE]
	}
	if got := readAt(child, addr); got != 0xAA {
		t.Fatalf("child sees %#x before any write, want 0xAA", got)
	}

	if err := child.HandlePageFault(addr, arch.Write); err != 0 {
		t.Fatalf("child write fault: %v", err)
	}
	cframe, _, _ := child.PT.Translate(vpnOf(addr))
	child.alloc.Dmap(cframe)[0] = 0xBB

	if got := readAt(parent, addr); got != 0xAA {
		t.Fatalf("parent sees %#x after child's write, want unchanged 0xAA", got)
	}
	if got := readAt(child, addr); got != 0xBB {
		t.Fatalf("child sees %#x after its own write, want 0xBB", got)
	}

	pframeAfter, _, _ := parent.PT.Translate(vpnOf(addr))
	cframeAfter, _, _ := child.PT.Translate(vpnOf(addr))
	if pframeAfter == cframeAfter {
		t.Fatalf("parent and child still share frame %v after child's write", pframeAfter)
	}
}
