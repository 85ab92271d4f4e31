package syscall

import (
	"context"
	"encoding/binary"
	"time"
	"unsafe"

	"flyeros/defs"
	"flyeros/futex"
	"flyeros/signal"
	"flyeros/task"
	"flyeros/timerwheel"
	"flyeros/vm"
)

func sysGetppid(ctx context.Context) int64 {
	tg := task.FromContext(ctx).Group
	if tg.Parent == nil {
		return 1 // the root thread group is its own ancestor, like init
	}
	return int64(tg.Parent.PID)
}

func sysGettid(ctx context.Context) int64 {
	return int64(task.FromContext(ctx).TID)
}

// wait4(2) options bits.
const WNOHANG = 1

// sysWait4 implements the wait4 cascade spec.md §4.6 describes: scan
// for children already in WaitForRecycle, reap every such child at
// once (not just the one being reported on), consume the pending
// SIGCHLD, and report the primary child's pid/exit status; if none are
// ready, either return immediately (WNOHANG) or block until a child
// transitions, re-scanning on each wake and distinguishing a signal-
// caused wake (EINTR) from the condition becoming true.
func sysWait4(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	tg := t.Group

	pid := defs.Pid_t(int64(int32(a[0])))
	wstatusVA := uintptr(a[1])
	options := int(a[2])

	target := defs.Pid_t(0)
	if pid > 0 {
		target = pid
	}

	for {
		if target != 0 {
			if !tg.HasChild(target) {
				return 0, defs.ECHILD
			}
		} else if !tg.HasChildren() {
			return 0, defs.ECHILD
		}

		if rpid, code, found := tg.ReapZombies(target); found {
			tg.Leader.Sig.Consume(signal.SIGCHLD)
			if wstatusVA != 0 {
				if werr := writeWstatus(t.Group.AS, wstatusVA, code); werr != 0 {
					return 0, werr
				}
			}
			return int64(rpid), 0
		}

		if options&WNOHANG != 0 {
			return 0, 0
		}

		t.BeginWait(true)
		select {
		case <-tg.ChildExitCh():
			t.EndWait()
		case <-t.Note.InterruptCh():
			t.EndWait()
			return 0, defs.EINTR
		case <-t.Note.KillCh():
			t.EndWait()
			return 0, defs.EINTR
		case <-ctx.Done():
			t.EndWait()
			return 0, defs.EINTR
		}
	}
}

// writeWstatus encodes code the way Linux's WEXITSTATUS/WIFEXITED
// macros expect (status == code<<8 for a normally-exited child) and
// copies it to the caller's wstatus pointer.
func writeWstatus(as *vm.AddressSpace, va uintptr, code int) defs.Err_t {
	buf := vm.GetUserBuf(as, va, 4, false)
	defer vm.PutUserBuf(buf)
	var b [4]byte
	le32(b[:], uint32(code&0xff)<<8)
	_, err := buf.Uiowrite(b[:])
	return err
}

// sysNanosleep blocks the calling goroutine for the requested duration
// using the timer wheel rather than time.Sleep directly, so a sleeping
// task still shows up in the wheel's accounting the same way a real
// hart-bound sleep would (spec.md §4.4 timer integration).
func sysNanosleep(ctx context.Context, w *timerwheel.Wheel, a Args) defs.Err_t {
	t := task.FromContext(ctx)
	sec := int64(a[0])
	nsec := int64(a[1])
	dur := time.Duration(sec)*time.Second + time.Duration(nsec)

	done := make(chan struct{})
	_, err := w.Add(ctx, time.Now().Add(dur), func() { close(done) })
	if err != 0 {
		return err
	}
	t.BeginWait(true)
	defer t.EndWait()
	select {
	case <-done:
		return 0
	case <-t.Note.InterruptCh():
		return defs.EINTR
	case <-t.Note.KillCh():
		return defs.EINTR
	case <-ctx.Done():
		return defs.EINTR
	}
}

// asIdentity derives the stable (address-space, va) key futex.Table
// indexes its wait queues by.
func asIdentity(as *vm.AddressSpace) uintptr {
	return uintptr(unsafe.Pointer(as))
}

// sysFutexWait and sysFutexWake cover FUTEX_WAIT/FUTEX_WAKE, the only
// two futex(2) operations spec.md §4.4 names; FUTEX_CMP_REQUEUE is
// reachable only through futex.Table.Requeue directly, not yet exposed
// through this dispatch table.
func sysFutexWait(ctx context.Context, tbl *futex.Table, a Args) defs.Err_t {
	t := task.FromContext(ctx)
	as := t.Group.AS
	va := uintptr(a[0])
	expected := uint32(a[2])

	load := func() uint32 {
		buf := vm.GetUserBuf(as, va, 4, true)
		defer vm.PutUserBuf(buf)
		var word [4]byte
		if _, err := buf.Uioread(word[:]); err != 0 {
			return expected // a fault reads as the expected value, so the waiter sleeps rather than returning EAGAIN
		}
		return binary.LittleEndian.Uint32(word[:])
	}
	t.BeginWait(true)
	defer t.EndWait()
	return tbl.Wait(ctx, asIdentity(as), va, expected, load)
}

func sysFutexWake(tbl *futex.Table, t *task.Task, a Args) int64 {
	as := t.Group.AS
	va := uintptr(a[0])
	n := int(a[2])
	return int64(tbl.Wake(asIdentity(as), va, n))
}
