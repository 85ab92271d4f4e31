package syscall

import (
	"context"

	"flyeros/defs"
	"flyeros/task"
)

// mmap(2) flag bits (spec.md §6).
const (
	MAP_SHARED    = 0x1
	MAP_PRIVATE   = 0x2
	MAP_FIXED     = 0x10
	MAP_ANONYMOUS = 0x20
)

// sysMmap implements the MAP_ANONYMOUS subset of mmap(2), the entry
// point into vm.AddressSpace.FindVacant/AddArea (spec.md §4.3, §6).
// File-backed mappings need an Inode's FileBacking surface threaded
// from the fd table into a vm.VMA, which this dispatch table does not
// do; that path returns ENOSYS rather than silently degrading to an
// anonymous mapping.
func sysMmap(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	addr := uintptr(a[0])
	length := uintptr(a[1])
	prot := a[2]
	flags := a[3]

	if length == 0 {
		return 0, defs.EINVAL
	}
	if flags&MAP_ANONYMOUS == 0 {
		return 0, defs.ENOSYS
	}
	if flags&MAP_SHARED != 0 {
		// Shared anonymous mappings would need to be visible across a
		// fork rather than COW-private; not modeled, so MAP_SHARED
		// returns ENOSYS.
		return 0, defs.ENOSYS
	}

	start, err := t.Group.AS.MapAnon(addr, length, permFromProt(prot), flags&MAP_FIXED != 0)
	if err != 0 {
		return 0, err
	}
	return int64(start), 0
}
