package syscall

import (
	"context"

	"flyeros/defs"
	"flyeros/task"
)

// clone(2) flag bits this kernel recognizes (spec.md §4.6's
// thread-group/fork split). CLONE_VM/CLONE_FS/CLONE_FILES/CLONE_SIGHAND
// without CLONE_THREAD (a vfork-shaped partial share) aren't modeled;
// either every one of them is set (CLONE_THREAD, handled by
// ThreadGroup.AddThread) or none of them is (a plain fork, handled by
// ThreadGroup.Fork's COW address space and independent fd/handler
// copies).
const (
	CLONE_VM      = 0x100
	CLONE_FS      = 0x200
	CLONE_FILES   = 0x400
	CLONE_SIGHAND = 0x800
	CLONE_THREAD  = 0x10000
)

// sysClone implements the two shapes spec.md §4.6 names: CLONE_THREAD
// adds a thread to the caller's own group (AddThread, sharing its
// AddressSpace/FdTable/HandlerTable), anything else forks a new thread
// group with a COW-duplicated address space (Fork). Either way this
// returns the new tid/pid to the caller; actually dispatching the new
// task onto a hart to run from its entry point is the executor's job
// once wired to an instruction-level front end — this hosted
// simulation only drives execution through trap.Handle calls a caller
// triggers explicitly, the same boundary sigreturnTrampoline notes for
// signal delivery.
func sysClone(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	flags := a[0]

	const cloneFullThread = CLONE_THREAD | CLONE_VM | CLONE_FS | CLONE_FILES | CLONE_SIGHAND
	switch {
	case flags&cloneFullThread == cloneFullThread:
		nt, err := t.Group.AddThread()
		if err != 0 {
			return 0, err
		}
		return int64(nt.TID), 0
	case flags&(CLONE_VM|CLONE_FS|CLONE_FILES|CLONE_SIGHAND|CLONE_THREAD) != 0:
		// A partial share (vfork-shaped) isn't modeled; see the const
		// doc comment above.
		return 0, defs.ENOSYS
	default:
		childAS, err := t.Group.AS.NewChild()
		if err != 0 {
			return 0, err
		}
		child, err := t.Group.Fork(childAS)
		if err != 0 {
			return 0, err
		}
		return int64(child.PID), 0
	}
}
