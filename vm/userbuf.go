package vm

import (
	"sync"

	"flyeros/arch"
	"flyeros/bounds"
	"flyeros/defs"
	"flyeros/mem"
	"flyeros/pagetable"
	"flyeros/res"
)

/// Userio is the common interface UserBuf, Useriovec, and FakeUserBuf
/// implement, so syscall handlers can copy to/from "the caller's
/// buffer" without knowing whether it's actually user memory or a
/// kernel slice standing in for it (spec.md §4.3; grounded on biscuit's
/// Userio_i in src/vm/userbuf.go). Aliased to defs.Userio so a *UserBuf
/// satisfies the same-named interface declared in vfs/task/specialfiles
/// without those packages importing vm.
type Userio = defs.Userio

/// UserBuf describes a single contiguous range of user virtual memory
/// and tracks how much of it remains to be copied, so repeated
/// Uioread/Uiowrite calls (e.g. across a read(2) that spans many pages)
/// can each consume a chunk. Grounded on biscuit's Userbuf_t.
type UserBuf struct {
	as       *AddressSpace
	base     uintptr
	len      int
	consumed int
	write    bool // true if this buffer was opened for kernel->user copies
}

/// MkUserBuf creates a UserBuf over [va, va+length) in as. write selects
/// the copy direction Uiowrite is permitted to perform into (the
/// destination VMA must be writable).
func MkUserBuf(as *AddressSpace, va uintptr, length int, write bool) *UserBuf {
	return &UserBuf{as: as, base: va, len: length, write: write}
}

func (u *UserBuf) Remain() int { return u.len - u.consumed }
func (u *UserBuf) Total() int  { return u.len }

// resolvePage faults in (if necessary) and returns the direct-mapped
// bytes for the page containing va, plus the byte offset within it.
func (u *UserBuf) resolvePage(va uintptr, access arch.Perm) ([]byte, int, defs.Err_t) {
	vpn := pagetable.VPN(va / mem.PGSIZE)
	frame, _, ok := u.as.PT.Translate(vpn)
	if !ok {
		if err := u.as.HandlePageFault(va, access); err != 0 {
			return nil, 0, err
		}
		frame, _, ok = u.as.PT.Translate(vpn)
		if !ok {
			return nil, 0, defs.EFAULT
		}
	}
	return u.as.alloc.Dmap(frame), int(va % mem.PGSIZE), 0
}

/// Uioread copies from user memory into dst, reading min(len(dst),
/// Remain()) bytes and advancing the cursor (spec.md §4.3's
/// Userreadn/User2k path).
func (u *UserBuf) Uioread(dst []byte) (int, defs.Err_t) {
	if !res.Resadd_noblock(bounds.B_ASPACE_T_USER2K_INNER) {
		return 0, defs.ENOHEAP
	}
	defer res.Resdone(bounds.B_ASPACE_T_USER2K_INNER)

	want := len(dst)
	if want > u.Remain() {
		want = u.Remain()
	}
	done := 0
	for done < want {
		va := u.base + uintptr(u.consumed+done)
		page, off, err := u.resolvePage(va, arch.Read)
		if err != 0 {
			return done, err
		}
		n := copy(dst[done:want], page[off:])
		done += n
	}
	u.consumed += done
	return done, 0
}

/// Uiowrite copies src into user memory, writing min(len(src),
/// Remain()) bytes and advancing the cursor (spec.md §4.3's
/// Userwriten/K2user path).
func (u *UserBuf) Uiowrite(src []byte) (int, defs.Err_t) {
	if !res.Resadd_noblock(bounds.B_ASPACE_T_K2USER_INNER) {
		return 0, defs.ENOHEAP
	}
	defer res.Resdone(bounds.B_ASPACE_T_K2USER_INNER)

	want := len(src)
	if want > u.Remain() {
		want = u.Remain()
	}
	done := 0
	for done < want {
		va := u.base + uintptr(u.consumed+done)
		page, off, err := u.resolvePage(va, arch.Write)
		if err != 0 {
			return done, err
		}
		n := copy(page[off:], src[done:want])
		done += n
	}
	u.consumed += done
	return done, 0
}

/// IovecSpan is one (base, length) span of a scatter/gather I/O vector.
type IovecSpan struct {
	Base uintptr
	Len  int
}

/// Useriovec chains several UserBufs end to end, presenting them as one
/// Userio for readv/writev-shaped syscalls (spec.md §6; grounded on
/// biscuit's Useriovec_t).
type Useriovec struct {
	bufs []*UserBuf
	idx  int
}

/// MkUseriovec builds a Useriovec from raw iovec spans.
func MkUseriovec(as *AddressSpace, spans []IovecSpan, write bool) *Useriovec {
	iv := &Useriovec{}
	for _, s := range spans {
		iv.bufs = append(iv.bufs, MkUserBuf(as, s.Base, s.Len, write))
	}
	return iv
}

func (iv *Useriovec) Remain() int {
	r := 0
	for i := iv.idx; i < len(iv.bufs); i++ {
		r += iv.bufs[i].Remain()
	}
	return r
}

func (iv *Useriovec) Total() int {
	t := 0
	for _, b := range iv.bufs {
		t += b.Total()
	}
	return t
}

func (iv *Useriovec) Uioread(dst []byte) (int, defs.Err_t) {
	done := 0
	for done < len(dst) && iv.idx < len(iv.bufs) {
		cur := iv.bufs[iv.idx]
		n, err := cur.Uioread(dst[done:])
		done += n
		if err != 0 {
			return done, err
		}
		if cur.Remain() == 0 {
			iv.idx++
		}
		if n == 0 {
			break
		}
	}
	return done, 0
}

func (iv *Useriovec) Uiowrite(src []byte) (int, defs.Err_t) {
	done := 0
	for done < len(src) && iv.idx < len(iv.bufs) {
		cur := iv.bufs[iv.idx]
		n, err := cur.Uiowrite(src[done:])
		done += n
		if err != 0 {
			return done, err
		}
		if cur.Remain() == 0 {
			iv.idx++
		}
		if n == 0 {
			break
		}
	}
	return done, 0
}

/// FakeUserBuf adapts a plain kernel []byte to the Userio interface, for
/// syscall paths (loopback devices, in-kernel pipe splicing) that need
/// to hand a kernel buffer to code written against Userio without a
/// real user address space involved (grounded on biscuit's Fakeubuf_t).
type FakeUserBuf struct {
	buf      []byte
	consumed int
}

/// MkFakeUserBuf wraps buf for Userio use.
func MkFakeUserBuf(buf []byte) *FakeUserBuf {
	return &FakeUserBuf{buf: buf}
}

func (f *FakeUserBuf) Remain() int { return len(f.buf) - f.consumed }
func (f *FakeUserBuf) Total() int  { return len(f.buf) }

func (f *FakeUserBuf) Uioread(dst []byte) (int, defs.Err_t) {
	n := copy(dst, f.buf[f.consumed:])
	f.consumed += n
	return n, 0
}

func (f *FakeUserBuf) Uiowrite(src []byte) (int, defs.Err_t) {
	n := copy(f.buf[f.consumed:], src)
	f.consumed += n
	return n, 0
}

// ubPool recycles UserBuf allocations across syscalls the way biscuit's
// Ubpool avoids a fresh allocation on every read/write(2).
var ubPool = sync.Pool{New: func() any { return &UserBuf{} }}

/// GetUserBuf fetches a pooled UserBuf initialized over [va, va+length).
func GetUserBuf(as *AddressSpace, va uintptr, length int, write bool) *UserBuf {
	u := ubPool.Get().(*UserBuf)
	u.as, u.base, u.len, u.consumed, u.write = as, va, length, 0, write
	return u
}

/// PutUserBuf returns u to the pool after use.
func PutUserBuf(u *UserBuf) {
	ubPool.Put(u)
}
