package syscall

import (
	"context"
	"encoding/binary"

	"flyeros/defs"
	"flyeros/signal"
	"flyeros/task"
	"flyeros/vm"
)

// sysKill implements kill(2) for the single case this kernel models: a
// positive pid naming one live process. Process-group (pid==0, pid<-1)
// and broadcast (pid==-1) delivery are not implemented, since this tree
// has no process-group membership beyond the PID itself; either falls
// through to ESRCH rather than silently doing nothing.
func sysKill(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	pid := defs.Pid_t(int64(int32(a[0])))
	sig := int(a[1])

	if pid <= 0 {
		return 0, defs.ESRCH
	}
	target := task.LookupGroup(pid)
	if target == nil {
		return 0, defs.ESRCH
	}
	if sig == 0 {
		return 0, 0 // signal 0: existence check only
	}
	if sig < 0 || sig >= signal.NSIG {
		return 0, defs.EINVAL
	}
	target.Leader.Sig.Send(signal.SigInfo{Signo: int32(sig), Sender: int32(t.Group.PID)})
	return 0, 0
}

// sysTkill implements tkill(2): deliver directly to one thread by tid,
// regardless of which thread group it belongs to.
func sysTkill(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	tid := defs.Tid_t(int64(int32(a[0])))
	sig := int(a[1])
	if sig <= 0 || sig >= signal.NSIG {
		return 0, defs.EINVAL
	}
	target := task.LookupTask(tid)
	if target == nil {
		return 0, defs.ESRCH
	}
	target.Sig.Send(signal.SigInfo{Signo: int32(sig), Sender: int32(t.Group.PID)})
	return 0, 0
}

// sysTgkill implements tgkill(2): like tkill but the caller also pins
// down which thread group tid must belong to, so a recycled tid that
// has been reassigned to an unrelated process doesn't get signaled.
func sysTgkill(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	tgid := defs.Pid_t(int64(int32(a[0])))
	tid := defs.Tid_t(int64(int32(a[1])))
	sig := int(a[2])
	if sig <= 0 || sig >= signal.NSIG {
		return 0, defs.EINVAL
	}
	target := task.LookupTask(tid)
	if target == nil || target.Group.PID != tgid {
		return 0, defs.ESRCH
	}
	target.Sig.Send(signal.SigInfo{Signo: int32(sig), Sender: int32(t.Group.PID)})
	return 0, 0
}

// sigaction record layout this kernel's libc side must match: handler
// (8 bytes; SIG_DFL==0, SIG_IGN==1, else a user entry point), sa_flags
// (4 bytes, padded to 8), sa_mask (8 bytes). Real glibc's struct
// sigaction also carries an sa_restorer field; this kernel always
// installs its own sigreturn trampoline address rather than trusting
// one from userspace, so it isn't read.
const sigactionSize = 24

func decodeAction(handler uintptr, flags uint32, mask uint64) signal.Action {
	switch handler {
	case 0:
		return signal.Action{Disposition: signal.DispDefault, Flags: signal.SAFlags(flags), Mask: mask}
	case 1:
		return signal.Action{Disposition: signal.DispIgnore, Flags: signal.SAFlags(flags), Mask: mask}
	default:
		return signal.Action{Disposition: signal.DispHandler, Handler: handler, Flags: signal.SAFlags(flags), Mask: mask}
	}
}

func encodeActionHandler(act signal.Action) uintptr {
	switch act.Disposition {
	case signal.DispIgnore:
		return 1
	case signal.DispHandler:
		return act.Handler
	default:
		return 0
	}
}

func readSigaction(as *vm.AddressSpace, va uintptr) (signal.Action, defs.Err_t) {
	buf := vm.GetUserBuf(as, va, sigactionSize, true)
	defer vm.PutUserBuf(buf)
	var b [sigactionSize]byte
	if _, err := buf.Uioread(b[:]); err != 0 {
		return signal.Action{}, err
	}
	handler := uintptr(binary.LittleEndian.Uint64(b[0:8]))
	flags := binary.LittleEndian.Uint32(b[8:12])
	mask := binary.LittleEndian.Uint64(b[16:24])
	return decodeAction(handler, flags, mask), 0
}

func writeSigaction(as *vm.AddressSpace, va uintptr, act signal.Action) defs.Err_t {
	buf := vm.GetUserBuf(as, va, sigactionSize, false)
	defer vm.PutUserBuf(buf)
	var b [sigactionSize]byte
	binary.LittleEndian.PutUint64(b[0:8], uint64(encodeActionHandler(act)))
	binary.LittleEndian.PutUint32(b[8:12], uint32(act.Flags))
	binary.LittleEndian.PutUint64(b[16:24], act.Mask)
	_, err := buf.Uiowrite(b[:])
	return err
}

// sysRtSigaction implements rt_sigaction(2) against the caller's
// thread-group-shared handler table. SIGKILL and SIGSTOP can never have
// their disposition changed.
func sysRtSigaction(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	sig := int(a[0])
	actVA := uintptr(a[1])
	oldVA := uintptr(a[2])
	if sig <= 0 || sig >= signal.NSIG {
		return 0, defs.EINVAL
	}
	if sig == signal.SIGKILL || sig == signal.SIGSTOP {
		return 0, defs.EINVAL
	}
	h := t.Group.Handlers

	if oldVA != 0 {
		if err := writeSigaction(t.Group.AS, oldVA, h.Get(sig)); err != 0 {
			return 0, err
		}
	}
	if actVA != 0 {
		act, err := readSigaction(t.Group.AS, actVA)
		if err != 0 {
			return 0, err
		}
		h.Set(sig, act)
	}
	return 0, 0
}

// sysRtSigprocmask implements rt_sigprocmask(2) against the calling
// task's own mask (per-thread, unlike the shared handler table).
func sysRtSigprocmask(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	how := int(a[0])
	setVA := uintptr(a[1])
	oldVA := uintptr(a[2])

	old := t.Sig.Mask()
	if setVA != 0 {
		buf := vm.GetUserBuf(t.Group.AS, setVA, 8, true)
		var b [8]byte
		_, err := buf.Uioread(b[:])
		vm.PutUserBuf(buf)
		if err != 0 {
			return 0, err
		}
		old = t.Sig.SetMask(how, binary.LittleEndian.Uint64(b[:]))
	}
	if oldVA != 0 {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], old)
		buf := vm.GetUserBuf(t.Group.AS, oldVA, 8, false)
		_, werr := buf.Uiowrite(b[:])
		vm.PutUserBuf(buf)
		if werr != 0 {
			return 0, werr
		}
	}
	return 0, 0
}

// sysRtSigpending implements rt_sigpending(2).
func sysRtSigpending(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	setVA := uintptr(a[0])
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], t.Sig.Pending())
	buf := vm.GetUserBuf(t.Group.AS, setVA, 8, false)
	defer vm.PutUserBuf(buf)
	_, err := buf.Uiowrite(b[:])
	return 0, err
}

// stack_t layout: sp (8), flags (4, padded to 8), size (8).
const altStackSize = 24

func readAltStack(as *vm.AddressSpace, va uintptr) (signal.AltStack, defs.Err_t) {
	buf := vm.GetUserBuf(as, va, altStackSize, true)
	defer vm.PutUserBuf(buf)
	var b [altStackSize]byte
	if _, err := buf.Uioread(b[:]); err != 0 {
		return signal.AltStack{}, err
	}
	return signal.AltStack{
		SP:    uintptr(binary.LittleEndian.Uint64(b[0:8])),
		Flags: binary.LittleEndian.Uint32(b[8:12]),
		Size:  uintptr(binary.LittleEndian.Uint64(b[16:24])),
	}, 0
}

func writeAltStack(as *vm.AddressSpace, va uintptr, alt signal.AltStack) defs.Err_t {
	buf := vm.GetUserBuf(as, va, altStackSize, false)
	defer vm.PutUserBuf(buf)
	var b [altStackSize]byte
	binary.LittleEndian.PutUint64(b[0:8], uint64(alt.SP))
	binary.LittleEndian.PutUint32(b[8:12], alt.Flags)
	binary.LittleEndian.PutUint64(b[16:24], uint64(alt.Size))
	_, err := buf.Uiowrite(b[:])
	return err
}

// sysSigaltstack implements sigaltstack(2).
func sysSigaltstack(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	ssVA := uintptr(a[0])
	oldVA := uintptr(a[1])

	if oldVA != 0 {
		if err := writeAltStack(t.Group.AS, oldVA, t.Sig.AltStack()); err != 0 {
			return 0, err
		}
	}
	if ssVA != 0 {
		as, err := readAltStack(t.Group.AS, ssVA)
		if err != 0 {
			return 0, err
		}
		t.Sig.SetAltStack(as)
	}
	return 0, 0
}
