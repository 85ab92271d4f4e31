package signal

import (
	"encoding/binary"

	"flyeros/arch"
	"flyeros/defs"
	"flyeros/vm"
)

// Outcome tells the trap layer what a Deliver call requires of it
// beyond the register-file edits Deliver already made in place: nothing
// further (OutcomeNone/OutcomeHandled), thread-group termination
// (OutcomeTerminated, spec.md §4.8 step 2's Kill action), or a
// stop/continue state change and parent notification (OutcomeStopped/
// OutcomeContinued) — all three of which require ThreadGroup methods
// this package has no business calling directly.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeHandled
	OutcomeTerminated
	OutcomeStopped
	OutcomeContinued
)

// sigContextSize is the serialized SigContext record this package
// pushes onto (or pops from) the user stack: the pre-handler PC, the
// pre-delivery signal mask, and the full register file.
const sigContextSize = 8 + 8 + arch.NGPR*8

// sigreturnTrampoline is the return address rt_sigaction(2) handlers
// are given, the Go counterpart of a real libc's vDSO-mapped
// __restore_rt page. Nothing in this hosted simulation ever executes
// user instructions at this address — there is no landing code behind
// it — rt_sigreturn is the actual exit path a handler's real-hardware
// "ret" would trap through, and it is reached directly as a syscall by
// whatever drives the trapped task, not by fetching and executing
// whatever lives at this address.
const sigreturnTrampoline uintptr = 0x7fff_f000

func encodeContext(pc uintptr, mask uint64, regs *[arch.NGPR]uint64) []byte {
	b := make([]byte, sigContextSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(pc))
	binary.LittleEndian.PutUint64(b[8:16], mask)
	for i, r := range regs {
		binary.LittleEndian.PutUint64(b[16+i*8:24+i*8], r)
	}
	return b
}

func decodeContext(b []byte) (pc uintptr, mask uint64, regs [arch.NGPR]uint64) {
	pc = uintptr(binary.LittleEndian.Uint64(b[0:8]))
	mask = binary.LittleEndian.Uint64(b[8:16])
	for i := range regs {
		regs[i] = binary.LittleEndian.Uint64(b[16+i*8 : 24+i*8])
	}
	return pc, mask, regs
}

// Deliver pops and applies the next deliverable signal against the
// trapped register file (pc, sp, regs, all mutated in place), the
// kernel→user exit check spec.md §4.8 describes. It loops internally
// over Ignore/default-Ignore dispositions so the caller only sees a
// signal that actually requires action.
func (m *Manager) Deliver(as *vm.AddressSpace, pc, sp *uintptr, regs *[arch.NGPR]uint64) (Outcome, SigInfo) {
	preMask := m.Mask() // popLowest widens the mask; the SigContext keeps the prior one
	for {
		info, action, ok := m.popLowest()
		if !ok {
			return OutcomeNone, SigInfo{}
		}
		sig := int(info.Signo)

		if action.Disposition == DispIgnore {
			continue
		}
		if action.Disposition == DispDefault {
			switch defaultBehavior(sig) {
			case behIgnore:
				continue
			case behStop:
				return OutcomeStopped, info
			case behContinue:
				return OutcomeContinued, info
			case behTerm:
				return OutcomeTerminated, info
			}
		}

		// DispHandler: push a SigContext snapshot onto the user stack
		// (or the altstack, if registered and requested) and redirect
		// the trap frame to the handler entry (spec.md §4.8 step 3).
		frameSP := *sp
		alt := m.AltStack()
		if action.Flags.Has(SA_ONSTACK) && alt.Flags&SS_DISABLE == 0 {
			frameSP = alt.SP + alt.Size
		}
		frameSP = (frameSP - sigContextSize) &^ uintptr(0xf)

		ctxBytes := encodeContext(*pc, preMask, regs)
		buf := vm.GetUserBuf(as, frameSP, sigContextSize, false)
		_, werr := buf.Uiowrite(ctxBytes)
		vm.PutUserBuf(buf)
		if werr != 0 {
			// An unmapped signal stack: fall back to terminating the
			// task, the way a real kernel's force_sigsegv would when
			// it can't deliver a signal onto a broken stack.
			return OutcomeTerminated, SigInfo{Signo: int32(SIGSEGV)}
		}

		regs[arch.RegA0] = uint64(sig)
		regs[arch.RegRA] = uint64(sigreturnTrampoline)
		regs[arch.RegSP] = uint64(frameSP)
		*sp = frameSP
		*pc = action.Handler
		return OutcomeHandled, info
	}
}

// PopContext implements rt_sigreturn: read back the SigContext pushed
// at sp, restore the blocked mask, and return the pre-handler PC and
// register file for the caller to install (spec.md §4.8: "pops the
// saved SigContext, restores registers and mask, and the task
// continues").
func (m *Manager) PopContext(as *vm.AddressSpace, sp uintptr) (pc uintptr, regs [arch.NGPR]uint64, err defs.Err_t) {
	buf := vm.GetUserBuf(as, sp, sigContextSize, true)
	defer vm.PutUserBuf(buf)
	b := make([]byte, sigContextSize)
	n, rerr := buf.Uioread(b)
	if rerr != 0 {
		return 0, regs, rerr
	}
	if n != sigContextSize {
		return 0, regs, defs.EFAULT
	}
	var mask uint64
	pc, mask, regs = decodeContext(b)
	m.mu.Lock()
	m.blocked = mask
	m.mu.Unlock()
	return pc, regs, 0
}
