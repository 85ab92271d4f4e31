// Package syscall implements the Linux-shaped system call dispatch
// spec.md §6 names, routing each call to the vm/vfs/task subsystem that
// serves it. Grounded on original_source/kernel/src/syscall/mod.rs's
// match-on-syscall-number dispatch loop (args as a fixed-size array,
// Result<usize, Errno> collapsed to a single signed return value),
// translated from its async-fn-per-call style to ordinary Go functions
// since this kernel models blocking not via polled futures but via
// goroutines that actually block.
package syscall

import (
	"context"

	"flyeros/arch"
	"flyeros/defs"
	"flyeros/futex"
	"flyeros/task"
	"flyeros/timerwheel"
	"flyeros/vfs"
	"flyeros/vm"
)

// Syscall numbers, restricted to the subset spec.md §6 names. Values
// match the Linux riscv64/loongarch64 generic syscall ABI so a real
// libc's raw syscall stubs would work unmodified against this kernel.
const (
	SYS_DUP3            = 24
	SYS_OPENAT          = 56
	SYS_CLOSE           = 57
	SYS_PIPE2           = 59
	SYS_READ            = 63
	SYS_WRITE           = 64
	SYS_EXIT_GROUP      = 94
	SYS_FUTEX           = 98
	SYS_NANOSLEEP       = 101
	SYS_KILL            = 129
	SYS_TKILL           = 130
	SYS_TGKILL          = 131
	SYS_SIGALTSTACK     = 132
	SYS_RT_SIGACTION    = 134
	SYS_RT_SIGPROCMASK  = 135
	SYS_RT_SIGPENDING   = 136
	SYS_RT_SIGRETURN    = 139
	SYS_EXIT            = 93
	SYS_BRK             = 214
	SYS_MUNMAP          = 215
	SYS_CLONE           = 220
	SYS_EXECVE          = 221
	SYS_MMAP            = 222
	SYS_MPROTECT        = 226
	SYS_GETPID          = 172
	SYS_GETPPID         = 173
	SYS_GETTID          = 178
	SYS_WAIT4           = 260
)

// Subsystems Dispatch needs beyond what ctx carries: the mount table
// for path lookups, the timer wheel for nanosleep, and the futex table,
// each owned by the boot sequence in cmd/kernel and threaded in here
// rather than reached for through a global.
type Subsystems struct {
	Mounts  *vfs.MountTable
	Timers  *timerwheel.Wheel
	Futexes *futex.Table
}

/// Args is the fixed six-register argument vector every syscall ABI on
/// both target ISAs passes (a0..a5 on RISC-V, r4..r9 on LoongArch).
type Args [6]uint64

// Dispatch routes nr to its handler, running on behalf of the task
// installed in ctx by task.WithTask. The return value is already
// negated on error, ready to write back into the trapped task's a0/r4
// register unchanged (spec.md §7 Err_t.ToErrno convention).
func Dispatch(ctx context.Context, sys Subsystems, nr int, a Args) int64 {
	var ret int64
	var err defs.Err_t

	switch nr {
	case SYS_READ:
		ret, err = sysRead(ctx, a)
	case SYS_WRITE:
		ret, err = sysWrite(ctx, a)
	case SYS_CLOSE:
		err = sysClose(ctx, a)
	case SYS_OPENAT:
		ret, err = sysOpenat(ctx, sys.Mounts, a)
	case SYS_PIPE2:
		ret, err = sysPipe2(ctx, a)
	case SYS_DUP3:
		ret, err = sysDup3(ctx, a)
	case SYS_BRK:
		ret, err = sysBrk(ctx, a)
	case SYS_MUNMAP:
		err = sysMunmap(ctx, a)
	case SYS_MPROTECT:
		err = sysMprotect(ctx, a)
	case SYS_NANOSLEEP:
		err = sysNanosleep(ctx, sys.Timers, a)
	case SYS_FUTEX:
		return sysFutex(ctx, sys.Futexes, a)
	case SYS_WAIT4:
		ret, err = sysWait4(ctx, a)
	case SYS_GETPID:
		return int64(task.FromContext(ctx).Group.PID)
	case SYS_GETPPID:
		return sysGetppid(ctx)
	case SYS_GETTID:
		return sysGettid(ctx)
	case SYS_EXIT:
		sysExit(ctx, a)
		return 0
	case SYS_EXIT_GROUP:
		sysExitGroup(ctx, a)
		return 0
	case SYS_MMAP:
		ret, err = sysMmap(ctx, a)
	case SYS_CLONE:
		ret, err = sysClone(ctx, a)
	case SYS_KILL:
		ret, err = sysKill(ctx, a)
	case SYS_TKILL:
		ret, err = sysTkill(ctx, a)
	case SYS_TGKILL:
		ret, err = sysTgkill(ctx, a)
	case SYS_RT_SIGACTION:
		ret, err = sysRtSigaction(ctx, a)
	case SYS_RT_SIGPROCMASK:
		ret, err = sysRtSigprocmask(ctx, a)
	case SYS_RT_SIGPENDING:
		ret, err = sysRtSigpending(ctx, a)
	case SYS_SIGALTSTACK:
		ret, err = sysSigaltstack(ctx, a)
	case SYS_EXECVE:
		// Reached only if a caller dispatches SYS_EXECVE directly rather
		// than through trap.Handle, which intercepts it before Dispatch
		// to update the trapped Frame's PC/SP (see Execve).
		return defs.ENOSYS.ToErrno()
	default:
		return defs.ENOSYS.ToErrno()
	}
	if err != 0 {
		return err.ToErrno()
	}
	return ret
}

// sysFutex dispatches the FUTEX_WAIT (op==0) / FUTEX_WAKE (op==1)
// subset this kernel implements; any other op is rejected up front
// rather than silently doing nothing.
func sysFutex(ctx context.Context, tbl *futex.Table, a Args) int64 {
	const (
		futexWait = 0
		futexWake = 1
	)
	switch a[1] {
	case futexWait:
		return sysFutexWait(ctx, tbl, a).ToErrno()
	case futexWake:
		return sysFutexWake(tbl, task.FromContext(ctx), a)
	default:
		return defs.ENOSYS.ToErrno()
	}
}

func sysRead(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	fd, err := t.Group.Fds.Get(int(a[0]))
	if err != 0 {
		return 0, err
	}
	buf := vm.GetUserBuf(t.Group.AS, uintptr(a[1]), int(a[2]), true)
	defer vm.PutUserBuf(buf)
	n, rerr := fd.File.Read(buf)
	return int64(n), rerr
}

func sysWrite(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	fd, err := t.Group.Fds.Get(int(a[0]))
	if err != 0 {
		return 0, err
	}
	buf := vm.GetUserBuf(t.Group.AS, uintptr(a[1]), int(a[2]), false)
	defer vm.PutUserBuf(buf)
	n, werr := fd.File.Write(buf)
	return int64(n), werr
}

func sysClose(ctx context.Context, a Args) defs.Err_t {
	t := task.FromContext(ctx)
	return t.Group.Fds.Close(int(a[0]))
}

func sysBrk(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	newBrk := uintptr(a[0])
	if newBrk == 0 {
		return int64(t.Group.AS.Brk()), 0
	}
	// sys_brk only reports the current break: moving it returns ENOSYS
	// and leaves the break and every VMA unchanged.
	return int64(newBrk), defs.ENOSYS
}

func sysMunmap(ctx context.Context, a Args) defs.Err_t {
	t := task.FromContext(ctx)
	return t.Group.AS.RemoveMapping(uintptr(a[0]), uintptr(a[1]))
}

func sysMprotect(ctx context.Context, a Args) defs.Err_t {
	t := task.FromContext(ctx)
	return t.Group.AS.ChangeProt(uintptr(a[0]), uintptr(a[1]), permFromProt(uint64(a[2])))
}

func sysExit(ctx context.Context, a Args) {
	t := task.FromContext(ctx)
	t.Note.SetAlive(false)
	if t.Group.RemoveThread(t) {
		t.Group.Exit(int(a[0]))
	}
}

// sysExitGroup implements exit_group(2): unlike exit(2), every thread in
// the calling group is torn down, not just the caller, the way a
// process-wide abort() or an uncaught signal's default Term behavior
// also terminates the whole group.
func sysExitGroup(ctx context.Context, a Args) {
	t := task.FromContext(ctx)
	for _, member := range t.Group.Snapshot() {
		member.Note.SetAlive(false)
	}
	t.Group.Exit(int(a[0]))
}

func permFromProt(prot uint64) arch.Perm {
	const (
		PROT_READ  = 0x1
		PROT_WRITE = 0x2
		PROT_EXEC  = 0x4
	)
	p := arch.Valid | arch.User
	if prot&PROT_READ != 0 {
		p |= arch.Read
	}
	if prot&PROT_WRITE != 0 {
		p |= arch.Write
	}
	if prot&PROT_EXEC != 0 {
		p |= arch.Execute
	}
	return p
}
