package signal

import (
	"testing"

	"flyeros/arch"
	"flyeros/mem"
	"flyeros/vm"
)

// newTestStack builds a minimal address space with one writable page a
// handler's SigContext can be pushed onto, standing in for a task's
// already-mapped user stack.
func newTestStack(t *testing.T) (*vm.AddressSpace, uintptr) {
	t.Helper()
	alloc := mem.NewAllocator(64)
	as, err := vm.NewAddressSpace(alloc, arch.RISCV64, 0x1000, uintptr(1)<<30)
	if err != 0 {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	top := uintptr(0x20000)
	start, err := as.MapAnon(top-uintptr(mem.PGSIZE), uintptr(mem.PGSIZE), arch.Valid|arch.User|arch.Read|arch.Write, true)
	if err != 0 {
		t.Fatalf("MapAnon(stack): %v", err)
	}
	if err := as.HandlePageFault(start, arch.Read|arch.Write); err != 0 {
		t.Fatalf("pre-fault stack page: %v", err)
	}
	return as, top
}

// Signals: a pending signal with a user handler is delivered exactly
// once; on handler return via sigreturn, the pre-handler register file
// is restored bit-exact (spec.md §8 property, end-to-end scenario 6).
func TestDeliverThenPopContextRestoresRegistersBitExact(t *testing.T) {
	as, stackTop := newTestStack(t)

	h := NewHandlerTable()
	const handlerEntry = uintptr(0x40000)
	h.Set(SIGUSR1, Action{Disposition: DispHandler, Handler: handlerEntry})
	m := NewManager(h)

	var regs [arch.NGPR]uint64
	for i := range regs {
		regs[i] = uint64(0x1000 + i)
	}
	origRegs := regs
	pc := uintptr(0x1234)
	sp := stackTop

	if !m.Send(SigInfo{Signo: int32(SIGUSR1)}) {
		t.Fatal("Send should report newly pending")
	}

	outcome, info := m.Deliver(as, &pc, &sp, &regs)
	if outcome != OutcomeHandled {
		t.Fatalf("Deliver outcome = %v, want OutcomeHandled", outcome)
	}
	if int(info.Signo) != SIGUSR1 {
		t.Fatalf("delivered signo = %d, want %d", info.Signo, SIGUSR1)
	}
	if pc != handlerEntry {
		t.Fatalf("pc after Deliver = %#x, want handler entry %#x", pc, handlerEntry)
	}
	if regs[arch.RegA0] != uint64(SIGUSR1) {
		t.Fatalf("a0 after Deliver = %d, want signal number %d", regs[arch.RegA0], SIGUSR1)
	}

	// A second delivery attempt must find nothing pending: exactly one
	// delivery per Send.
	if out2, _ := m.Deliver(as, &pc, &sp, &regs); out2 != OutcomeNone {
		t.Fatalf("second Deliver outcome = %v, want OutcomeNone (delivered exactly once)", out2)
	}

	// Handler "returns" via rt_sigreturn: pop the context back off the
	// stack sigreturn left sp pointing at.
	restoredPC, restoredRegs, err := m.PopContext(as, sp)
	if err != 0 {
		t.Fatalf("PopContext: %v", err)
	}
	if restoredPC != 0x1234 {
		t.Fatalf("restored pc = %#x, want %#x", restoredPC, 0x1234)
	}
	if restoredRegs != origRegs {
		t.Fatalf("restored regs = %+v, want bit-exact %+v", restoredRegs, origRegs)
	}
}

func TestDeliverIgnoreDispositionDropsSignal(t *testing.T) {
	as, stackTop := newTestStack(t)
	h := NewHandlerTable()
	h.Set(SIGUSR1, Action{Disposition: DispIgnore})
	m := NewManager(h)
	m.Send(SigInfo{Signo: int32(SIGUSR1)})

	var regs [arch.NGPR]uint64
	pc, sp := uintptr(0x1234), stackTop
	outcome, _ := m.Deliver(as, &pc, &sp, &regs)
	if outcome != OutcomeNone {
		t.Fatalf("Deliver outcome = %v, want OutcomeNone for an ignored signal", outcome)
	}
	if pc != 0x1234 {
		t.Fatalf("pc changed to %#x for an ignored signal", pc)
	}
}

func TestDeliverDefaultTermReportsTerminated(t *testing.T) {
	as, stackTop := newTestStack(t)
	m := NewManager(NewHandlerTable()) // SIGTERM defaults to DispDefault/behTerm
	m.Send(SigInfo{Signo: int32(SIGTERM)})

	var regs [arch.NGPR]uint64
	pc, sp := uintptr(0x1234), stackTop
	outcome, info := m.Deliver(as, &pc, &sp, &regs)
	if outcome != OutcomeTerminated {
		t.Fatalf("Deliver outcome = %v, want OutcomeTerminated", outcome)
	}
	if int(info.Signo) != SIGTERM {
		t.Fatalf("signo = %d, want %d", info.Signo, SIGTERM)
	}
}
