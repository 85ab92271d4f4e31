package signal

import "sync"

// AltStack is the sigaltstack(2) record: the alternate signal stack a
// task may register for handlers installed with SA_ONSTACK.
type AltStack struct {
	SP    uintptr
	Size  uintptr
	Flags uint32 // SS_DISABLE when unset
}

// Manager is the per-task SigManager spec.md §4.8 names: a pending
// bitmap, the SigInfo queue backing it (bitmap alone can't carry
// SIGCHLD's exit-status payload), the blocked-signal mask, and the
// registered alternate stack. Handler dispositions live in the
// thread-group-shared HandlerTable, not here.
type Manager struct {
	mu       sync.Mutex
	pending  uint64
	queue    []SigInfo
	blocked  uint64
	handlers *HandlerTable
	alt      AltStack
	waker    func()
}

// NewManager creates a manager sharing h's handler table (a fresh table
// for a new thread group, a Fork'd or shared one otherwise).
func NewManager(h *HandlerTable) *Manager {
	return &Manager{handlers: h, alt: AltStack{Flags: SS_DISABLE}}
}

// SetWaker installs the callback Send uses to interrupt a blocked task
// when an unblocked signal newly becomes pending. The owning task
// package is responsible for making this a no-op unless the task is
// actually in an interruptible wait (spec.md §4.8: "if should_wake bit
// set and task is Interruptible, wake it").
func (m *Manager) SetWaker(fn func()) {
	m.mu.Lock()
	m.waker = fn
	m.mu.Unlock()
}

// Handlers returns the manager's shared handler table.
func (m *Manager) Handlers() *HandlerTable { return m.handlers }

// SetHandlers rebinds the manager to a new handler table (execve
// installing a freshly reset table, or a CLONE_SIGHAND/non-CLONE_SIGHAND
// fork installing a shared reference or an independent copy).
func (m *Manager) SetHandlers(h *HandlerTable) {
	m.mu.Lock()
	m.handlers = h
	m.mu.Unlock()
}

// Send posts sig to this task, returning false if it was already
// pending (receipt dedups by bit, spec.md §4.8: "if already pending by
// number, drop — no coalescing beyond the bit").
func (m *Manager) Send(info SigInfo) bool {
	bit := uint64(1) << uint(info.Signo-1)
	m.mu.Lock()
	already := m.pending&bit != 0
	if !already {
		m.pending |= bit
		m.queue = append(m.queue, info)
	}
	blocked := m.blocked&bit != 0
	waker := m.waker
	m.mu.Unlock()

	if !already && !blocked && waker != nil {
		waker()
	}
	return !already
}

// SetMask applies how (SIG_BLOCK/SIG_UNBLOCK/SIG_SETMASK) with set to
// the blocked mask, returning the prior mask (rt_sigprocmask's oldset).
// SIGKILL and SIGSTOP can never be blocked, mirroring every POSIX
// kernel's mask sanitization.
func (m *Manager) SetMask(how int, set uint64) uint64 {
	const unblockable = uint64(1)<<uint(SIGKILL-1) | uint64(1)<<uint(SIGSTOP-1)
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.blocked
	switch how {
	case SIG_BLOCK:
		m.blocked |= set &^ unblockable
	case SIG_UNBLOCK:
		m.blocked &^= set
	case SIG_SETMASK:
		m.blocked = set &^ unblockable
	}
	return old
}

// Mask returns the currently blocked-signal mask.
func (m *Manager) Mask() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocked
}

// Pending returns the pending-signal bitmap (rt_sigpending's output,
// unioned across process-directed and thread-directed in real Linux;
// this kernel tracks only the per-task set).
func (m *Manager) Pending() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Deliverable reports whether any unmasked signal is pending, the
// condition the kernel→user exit path polls.
func (m *Manager) Deliverable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending&^m.blocked != 0
}

// Consume drops sig from the pending set without running its action,
// the wait4 cascade's "consume the pending child-exit signal" step
// (spec.md §4.6 step 1).
func (m *Manager) Consume(sig int) {
	bit := uint64(1) << uint(sig-1)
	m.mu.Lock()
	m.pending &^= bit
	for i, q := range m.queue {
		if int(q.Signo) == sig {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
}

// popLowest selects the lowest-numbered unmasked pending signal
// (spec.md §4.8 step 1: "pop lowest-numbered, synchronous signals
// prioritized" — synchronous faults like SIGSEGV/SIGBUS/SIGILL/SIGFPE
// already sort below every asynchronous signal this kernel raises, so
// plain lowest-number order satisfies both rules at once).
func (m *Manager) popLowest() (SigInfo, Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deliverable := m.pending &^ m.blocked
	if deliverable == 0 {
		return SigInfo{}, Action{}, false
	}
	sig := 1
	for deliverable&1 == 0 {
		deliverable >>= 1
		sig++
	}
	action := m.handlers.Get(sig)
	bit := uint64(1) << uint(sig-1)
	m.pending &^= bit
	var info SigInfo
	for i, q := range m.queue {
		if int(q.Signo) == sig {
			info = q
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	if info.Signo == 0 {
		info.Signo = int32(sig)
	}
	if !action.Flags.Has(SA_NODEFER) {
		m.blocked |= bit
	}
	m.blocked |= action.Mask
	return info, action, true
}

// AltStack returns the registered alternate signal stack.
func (m *Manager) AltStack() AltStack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alt
}

// SetAltStack installs a new alternate stack, returning the previous
// one (sigaltstack(2)'s oss).
func (m *Manager) SetAltStack(a AltStack) AltStack {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.alt
	m.alt = a
	return old
}
