package signal

import "testing"

func TestSendDedupsPendingBit(t *testing.T) {
	m := NewManager(NewHandlerTable())
	if !m.Send(SigInfo{Signo: int32(SIGUSR1)}) {
		t.Fatal("first Send should report newly pending")
	}
	if m.Send(SigInfo{Signo: int32(SIGUSR1)}) {
		t.Fatal("second Send of an already-pending signal should report false (deduped)")
	}
	bit := uint64(1) << uint(SIGUSR1-1)
	if m.Pending()&bit == 0 {
		t.Fatal("SIGUSR1 should still be pending after the deduped send")
	}
}

func TestSendWakesOnlyWhenUnblockedAndNewlyPending(t *testing.T) {
	m := NewManager(NewHandlerTable())
	var woke int
	m.SetWaker(func() { woke++ })

	m.Send(SigInfo{Signo: int32(SIGUSR1)})
	if woke != 1 {
		t.Fatalf("woke = %d after first send, want 1", woke)
	}
	m.Send(SigInfo{Signo: int32(SIGUSR1)})
	if woke != 1 {
		t.Fatalf("woke = %d after deduped send, want still 1", woke)
	}

	m.SetMask(SIG_BLOCK, uint64(1)<<uint(SIGUSR2-1))
	m.Send(SigInfo{Signo: int32(SIGUSR2)})
	if woke != 1 {
		t.Fatalf("woke = %d after blocked send, want still 1", woke)
	}
}

func TestSetMaskNeverBlocksKillOrStop(t *testing.T) {
	m := NewManager(NewHandlerTable())
	all := ^uint64(0)
	m.SetMask(SIG_SETMASK, all)
	mask := m.Mask()
	if mask&(uint64(1)<<uint(SIGKILL-1)) != 0 {
		t.Fatal("SIGKILL must never be blockable")
	}
	if mask&(uint64(1)<<uint(SIGSTOP-1)) != 0 {
		t.Fatal("SIGSTOP must never be blockable")
	}
}

func TestConsumeDropsWithoutDelivering(t *testing.T) {
	m := NewManager(NewHandlerTable())
	m.Send(SigInfo{Signo: int32(SIGCHLD), Status: 7})
	m.Consume(SIGCHLD)
	if m.Deliverable() {
		t.Fatal("signal should no longer be pending after Consume")
	}
}

func TestHandlerTableResetForExecKeepsIgnoreDropsHandler(t *testing.T) {
	h := NewHandlerTable()
	h.Set(SIGUSR1, Action{Disposition: DispHandler, Handler: 0x1000})
	h.Set(SIGUSR2, Action{Disposition: DispIgnore})
	h.ResetForExec()

	if got := h.Get(SIGUSR1); got.Disposition != DispDefault {
		t.Fatalf("SIGUSR1 disposition after exec = %v, want DispDefault", got.Disposition)
	}
	if got := h.Get(SIGUSR2); got.Disposition != DispIgnore {
		t.Fatalf("SIGUSR2 disposition after exec = %v, want DispIgnore (preserved)", got.Disposition)
	}
}
