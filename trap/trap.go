// Package trap implements the exception/interrupt routing this kernel
// performs on a trap out of user mode: syscall dispatch, page-fault
// delivery into vm.AddressSpace.HandlePageFault, illegal-instruction
// termination, timer/external interrupt handling, and signal delivery
// at the kernel→user exit path. Grounded on
// original_source/kernel/src/trap/trap_handler.rs's
// user_exception_handler/user_interrupt_handler match arms, translated
// from its async-fn-awaiting-the-syscall-future shape to a synchronous
// call into syscall.Dispatch, since this kernel's syscalls block
// goroutines directly rather than yielding a polled Future back to an
// executor loop. There is no real asynchronous trap delivery in this
// hosted simulation — Handle is called explicitly from wherever a
// simulated instruction stream raises a fault, the same call-don't-trap
// model the icu package uses for device interrupts.
package trap

import (
	"context"
	"log/slog"

	"flyeros/arch"
	"flyeros/signal"
	"flyeros/syscall"
	"flyeros/task"
)

/// Cause identifies why a task trapped into the kernel, the Go
/// counterpart of riscv::interrupt::{Exception, Interrupt} (and the
/// LoongArch equivalent) collapsed into one ISA-independent enum, since
/// arch already hides the ISA-specific encoding from everything above
/// pagetable.
type Cause int

const (
	CauseSyscall Cause = iota
	CausePageFault
	CauseIllegalInstruction
	CauseTimerInterrupt
	CauseExternalInterrupt
	CauseUnknown
)

/// Frame is the trapped task's saved register state: the full
/// general-purpose register file, program counter, and stack pointer
/// (split out as SP for convenience though it also lives in Regs at
/// arch.RegSP), plus whichever cause-specific fields trap routing and
/// signal delivery need. A real per-ISA trap frame has a few more
/// supervisor-state bits (ProcessorPrivilegeState, out of scope here);
/// this package only concerns itself with what routing and delivery
/// touch.
type Frame struct {
	Cause      Cause
	EPC        uintptr
	SyscallNo  int
	SyscallArg syscall.Args
	FaultAddr  uintptr
	FaultPerm  arch.Perm

	PC   uintptr
	SP   uintptr
	Regs [arch.NGPR]uint64
}

// SyscallReturn carries a trap's result value back to Handle's caller,
// the counterpart of trap_handler.rs's cx.set_user_a0(sys_ret) after the
// syscall future resolves. For an ordinary syscall Handle also writes
// the value into f.Regs[arch.RegA0].
type SyscallReturn struct {
	Value int64
}

/// Handle routes one trapped frame for task t, returning a syscall's
/// return value (zero otherwise). A task that must be torn down (an
/// illegal instruction, or an unresolved page fault whose SIGSEGV no
/// handler catches) is torn down here, not reported to the caller. On
/// the ordinary syscall, page-fault and timer paths, any signal this
/// task now owes itself is delivered before the frame returns to user
/// mode, mirroring spec.md §4.8's "delivery runs at the kernel→user exit
/// path."
func Handle(ctx context.Context, sys syscall.Subsystems, t *task.Task, f *Frame) SyscallReturn {
	switch f.Cause {
	case CauseSyscall:
		if f.SyscallNo == syscall.SYS_RT_SIGRETURN {
			pc, regs, err := t.Sig.PopContext(t.Group.AS, uintptr(f.Regs[arch.RegSP]))
			if err != 0 {
				slog.Warn("rt_sigreturn with a broken context", "task", t.TID, "err", err)
				killTask(t)
				return SyscallReturn{Value: err.ToErrno()}
			}
			f.PC = pc
			f.Regs = regs
			f.SP = uintptr(f.Regs[arch.RegSP])
			return SyscallReturn{Value: int64(f.Regs[arch.RegA0])}
		}

		if f.SyscallNo == syscall.SYS_EXECVE {
			entry, sp, err := syscall.Execve(ctx, sys, f.SyscallArg)
			if err != 0 {
				return SyscallReturn{Value: err.ToErrno()}
			}
			f.Regs = [arch.NGPR]uint64{}
			f.Regs[arch.RegSP] = uint64(sp)
			f.PC = entry
			f.SP = sp
			return SyscallReturn{Value: 0}
		}

		ret := syscall.Dispatch(ctx, sys, f.SyscallNo, f.SyscallArg)
		f.Regs[arch.RegA0] = uint64(ret)
		deliverSignals(t, f)
		return SyscallReturn{Value: ret}

	case CausePageFault:
		if err := t.Group.AS.HandlePageFault(f.FaultAddr, f.FaultPerm); err != 0 {
			slog.Debug("unresolved page fault", "task", t.TID, "addr", f.FaultAddr, "perm", f.FaultPerm, "err", err)
			if !deliverFatal(t, f, signal.SIGSEGV) {
				killTask(t)
			}
		}
		deliverSignals(t, f)
		return SyscallReturn{}

	case CauseIllegalInstruction:
		slog.Warn("illegal instruction", "task", t.TID, "epc", f.EPC)
		if !deliverFatal(t, f, signal.SIGILL) {
			killTask(t)
		}
		return SyscallReturn{}

	case CauseTimerInterrupt:
		// The timer wheel runs its own goroutine loop (timerwheel.Wheel),
		// so unlike trap_handler.rs's explicit TIMER_MANAGER.check call
		// on every timer interrupt, nothing needs to happen here beyond
		// giving other runnable tasks a chance to run, which the
		// executor's own scheduling already does between Handle calls.
		deliverSignals(t, f)
		return SyscallReturn{}

	case CauseExternalInterrupt:
		slog.Info("external interrupt", "task", t.TID)
		return SyscallReturn{}

	default:
		slog.Warn("unsupported trap cause", "task", t.TID, "cause", f.Cause, "epc", f.EPC)
		return SyscallReturn{}
	}
}

// deliverSignals drains every deliverable signal against f's register
// file, acting on whichever Outcome the signal package can't resolve by
// itself (thread-group termination, stop/continue).
func deliverSignals(t *task.Task, f *Frame) {
	if t.Sig == nil {
		return
	}
	for {
		outcome, info := t.Sig.Deliver(t.Group.AS, &f.PC, &f.SP, &f.Regs)
		switch outcome {
		case signal.OutcomeNone, signal.OutcomeHandled:
			return
		case signal.OutcomeTerminated:
			t.Group.Exit(int(info.Signo) & 0x7f)
			killTask(t)
			return
		case signal.OutcomeStopped:
			slog.Info("thread group stopped", "task", t.TID, "sig", info.Signo)
		case signal.OutcomeContinued:
			slog.Info("thread group continued", "task", t.TID)
		}
	}
}

// deliverFatal posts sig to t (synthesizing the kernel-generated
// SigInfo a real fault raises) and runs one delivery pass immediately,
// reporting whether a handler actually caught it — in which case the
// task should resume rather than being torn down by the caller.
func deliverFatal(t *task.Task, f *Frame, sig int) bool {
	if t.Sig == nil {
		return false
	}
	t.Sig.Send(signal.SigInfo{Signo: int32(sig)})
	outcome, info := t.Sig.Deliver(t.Group.AS, &f.PC, &f.SP, &f.Regs)
	switch outcome {
	case signal.OutcomeHandled:
		return true
	case signal.OutcomeTerminated:
		t.Group.Exit(int(info.Signo) & 0x7f)
		return false
	default:
		return false
	}
}

func killTask(t *task.Task) {
	t.Note.SetDoomed()
	if t.Group.RemoveThread(t) {
		t.Group.Exit(-1)
	} else {
		t.SetState(task.Zombie)
	}
}
