package task

import (
	"sort"
	"sync"
	"sync/atomic"

	"flyeros/bounds"
	"flyeros/defs"
	"flyeros/res"
	"flyeros/signal"
	"flyeros/vfs"
	"flyeros/vm"
)

/// State is a task's scheduling state (spec.md §3). Transitions:
/// Running→Interruptible on a blocking wait that a signal can cut
/// short; Running→UnInterruptible on one that can't; either resumes to
/// Running on wake. Running→Zombie on exit; Zombie→WaitForRecycle once
/// the parent has been notified (this kernel performs that
/// notification synchronously inside ThreadGroup.Exit, so the two
/// happen back to back rather than being separated by an async signal
/// round trip — see DESIGN.md); WaitForRecycle is removed entirely once
/// the parent's wait4 reaps it.
type State int

const (
	Running State = iota
	Zombie
	Sleeping
	Interruptible
	UnInterruptible
	WaitForRecycle
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Zombie:
		return "zombie"
	case Sleeping:
		return "sleeping"
	case Interruptible:
		return "interruptible"
	case UnInterruptible:
		return "uninterruptible"
	case WaitForRecycle:
		return "wait-for-recycle"
	default:
		return "unknown"
	}
}

/// Credentials holds the POSIX identity a task runs with.
type Credentials struct {
	UID, GID   uint32
	EUID, EGID uint32
}

/// ThreadGroup is the POSIX "process": the set of tasks created by
/// clone(CLONE_THREAD) sharing one PID, one FdTable, one AddressSpace,
/// and one signal disposition table (spec.md §3). Grounded on biscuit's
/// implicit one-thread-per-process model, generalized to a real
/// thread-group/task split since spec.md names both independently.
type ThreadGroup struct {
	mu       sync.Mutex
	PID      defs.Pid_t
	Leader   *Task
	Members  map[defs.Tid_t]*Task
	Parent   *ThreadGroup
	Children map[defs.Pid_t]*ThreadGroup

	AS       *vm.AddressSpace
	Fds      *FdTable
	Cwd      *vfs.Dentry
	CwdPath  string
	Handlers *signal.HandlerTable

	ExitCode   int
	Exited     bool
	WaitCh     chan struct{}
	ChildExit  chan struct{} // closed and replaced each time a child reaches WaitForRecycle
	ChildUsage TimeStat       // folded rusage of reaped children
}

/// Task is one schedulable thread of execution (spec.md §3 Task).
/// Grounded on biscuit's implicit per-process thread plus tinfo.Tnote_t
/// for the liveness bits this splits out into Note.
type Task struct {
	TID   defs.Tid_t
	Group *ThreadGroup
	Note  *Note
	Creds Credentials
	Time  TimeStat
	Sig   *signal.Manager

	state atomic.Int32
}

func (t *Task) State() State     { return State(t.state.Load()) }
func (t *Task) SetState(s State) { t.state.Store(int32(s)) }

// wakeIfInterruptible is the Manager.SetWaker callback: a signal newly
// becoming pending and unblocked should only interrupt a task that is
// actually sleeping interruptibly (spec.md §4.8's should_wake rule), so
// this checks state before poking Note's interrupt channel.
func (t *Task) wakeIfInterruptible() {
	if t.State() == Interruptible {
		t.Note.Interrupt()
	}
}

// BeginWait records that t is about to block; EndWait sets Running
// again on wake. interruptible selects Interruptible (a signal can
// cut the wait short with EINTR) vs UnInterruptible (only Note.Kill
// can, the D-state equivalent).
func (t *Task) BeginWait(interruptible bool) {
	if interruptible {
		t.SetState(Interruptible)
	} else {
		t.SetState(UnInterruptible)
	}
}

// EndWait restores Running after a blocking wait completes, whether by
// wake, timeout, or interruption.
func (t *Task) EndWait() {
	t.SetState(Running)
}

var (
	pidCounter atomic.Int64
	tidCounter atomic.Int64
)

/// NewPID allocates a fresh process ID.
func NewPID() defs.Pid_t { return defs.Pid_t(pidCounter.Add(1)) }

/// NewTID allocates a fresh thread ID.
func NewTID() defs.Tid_t { return defs.Tid_t(tidCounter.Add(1)) }

/// NewThreadGroup creates a new thread group with a single leader task,
/// its own fresh FdTable, AddressSpace, and signal-handler table.
func NewThreadGroup(parent *ThreadGroup, as *vm.AddressSpace, root *vfs.Dentry) *ThreadGroup {
	tg := &ThreadGroup{
		PID:       NewPID(),
		Members:   make(map[defs.Tid_t]*Task),
		Parent:    parent,
		Children:  make(map[defs.Pid_t]*ThreadGroup),
		AS:        as,
		Fds:       NewFdTable(),
		Cwd:       root,
		CwdPath:   "/",
		Handlers:  signal.NewHandlerTable(),
		WaitCh:    make(chan struct{}),
		ChildExit: make(chan struct{}),
	}
	leader := &Task{TID: defs.Tid_t(tg.PID), Group: tg, Note: NewNote(), Sig: signal.NewManager(tg.Handlers)}
	leader.Sig.SetWaker(leader.wakeIfInterruptible)
	tg.Leader = leader
	tg.Members[leader.TID] = leader
	if parent != nil {
		parent.mu.Lock()
		parent.Children[tg.PID] = tg
		parent.mu.Unlock()
	}
	registerGroup(tg)
	registerTask(leader)
	return tg
}

/// AddThread creates a new thread sharing tg's address space, fd table,
/// PID, and signal-handler table (clone(CLONE_THREAD), spec.md §4.4
/// B_TASK_T_CLONE bound). Its own Manager carries independent pending
/// signals and mask, since only dispositions are shared within a group.
func (tg *ThreadGroup) AddThread() (*Task, defs.Err_t) {
	if !res.Resadd_noblock(bounds.B_TASK_T_CLONE) {
		return nil, defs.ENOHEAP
	}
	defer res.Resdone(bounds.B_TASK_T_CLONE)

	t := &Task{TID: NewTID(), Group: tg, Note: NewNote(), Sig: signal.NewManager(tg.Handlers)}
	t.Sig.SetWaker(t.wakeIfInterruptible)
	tg.mu.Lock()
	tg.Members[t.TID] = t
	tg.mu.Unlock()
	registerTask(t)
	return t, 0
}

/// Fork duplicates tg into a new thread group belonging to the same
/// process tree: a fresh PID, a COW-shared AddressSpace (via
/// vm.AddressSpace.Fork), a shared-reference FdTable copy, and an
/// independent copy of the signal-handler table (fork(2) semantics,
/// spec.md §4.4: a child may change its own dispositions without
/// affecting the parent).
func (tg *ThreadGroup) Fork(childAS *vm.AddressSpace) (*ThreadGroup, defs.Err_t) {
	if err := tg.AS.Fork(childAS); err != 0 {
		return nil, err
	}
	child := &ThreadGroup{
		PID:       NewPID(),
		Members:   make(map[defs.Tid_t]*Task),
		Parent:    tg,
		Children:  make(map[defs.Pid_t]*ThreadGroup),
		AS:        childAS,
		Fds:       tg.Fds.Fork(),
		Cwd:       tg.Cwd,
		CwdPath:   tg.CwdPath,
		Handlers:  tg.Handlers.Fork(),
		WaitCh:    make(chan struct{}),
		ChildExit: make(chan struct{}),
	}
	leader := &Task{TID: defs.Tid_t(child.PID), Group: child, Note: NewNote(), Creds: tg.Leader.Creds, Sig: signal.NewManager(child.Handlers)}
	leader.Sig.SetWaker(leader.wakeIfInterruptible)
	child.Leader = leader
	child.Members[leader.TID] = leader

	tg.mu.Lock()
	tg.Children[child.PID] = child
	tg.mu.Unlock()
	registerGroup(child)
	registerTask(leader)
	return child, 0
}

/// RemoveThread drops t from tg, tearing down the group's shared
/// resources once the last member has gone (thread-group exit).
func (tg *ThreadGroup) RemoveThread(t *Task) (lastMember bool) {
	tg.mu.Lock()
	delete(tg.Members, t.TID)
	lastMember = len(tg.Members) == 0
	tg.mu.Unlock()
	unregisterTask(t.TID)
	if lastMember {
		tg.Fds.CloseAll()
	}
	return lastMember
}

/// Exit marks the thread group as a zombie with the given exit code,
/// wakes any waiter blocked in wait4(2), and notifies the parent: a
/// pending SIGCHLD is posted to the parent's leader and its ChildExit
/// wait queue is kicked, after which this group's state advances to
/// WaitForRecycle (spec.md §4.6/§4.8 — collapsed to one synchronous
/// step, see the State doc comment above).
func (tg *ThreadGroup) Exit(code int) {
	tg.mu.Lock()
	if tg.Exited {
		tg.mu.Unlock()
		return
	}
	tg.Exited = true
	tg.ExitCode = code
	tg.Leader.SetState(Zombie)
	ch := tg.WaitCh
	parent := tg.Parent
	pid := tg.PID
	tg.mu.Unlock()
	close(ch)

	if parent != nil {
		parent.Leader.Sig.Send(signal.SigInfo{Signo: int32(signal.SIGCHLD), Sender: int32(pid), Status: int32(code)})
		parent.notifyChildExit()
	}
	tg.Leader.SetState(WaitForRecycle)
}

// notifyChildExit wakes every wait4 call currently blocked on tg having
// acquired a new WaitForRecycle child.
func (tg *ThreadGroup) notifyChildExit() {
	tg.mu.Lock()
	ch := tg.ChildExit
	tg.ChildExit = make(chan struct{})
	tg.mu.Unlock()
	close(ch)
}

// ChildExitCh returns the channel that closes the next time a child of
// tg reaches WaitForRecycle, for wait4 to select against.
func (tg *ThreadGroup) ChildExitCh() <-chan struct{} {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return tg.ChildExit
}

// HasChildren reports whether tg has any child thread group at all
// (reaped or not), the ECHILD-vs-block distinction wait4 needs.
func (tg *ThreadGroup) HasChildren() bool {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return len(tg.Children) > 0
}

// Snapshot returns every member task of tg at the moment of the call,
// for exit_group(2)'s whole-group teardown.
func (tg *ThreadGroup) Snapshot() []*Task {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	out := make([]*Task, 0, len(tg.Members))
	for _, m := range tg.Members {
		out = append(out, m)
	}
	return out
}

// HasChild reports whether pid names a live child of tg.
func (tg *ThreadGroup) HasChild(pid defs.Pid_t) bool {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	_, ok := tg.Children[pid]
	return ok
}

/// ReapZombies implements the wait4(2) cascade's first step (spec.md
/// §4.6): scan for children in WaitForRecycle, and if any are found,
/// recycle *all* of them at once — folding their CPU-time accounting
/// into tg's ChildUsage and removing them from Children — not just the
/// one wait4 will report on. pid selects a specific child (wait4's
/// first argument when positive) or 0 to match any. The lowest-PID
/// match among the reaped set is reported as the primary.
func (tg *ThreadGroup) ReapZombies(pid defs.Pid_t) (primaryPID defs.Pid_t, exitCode int, found bool) {
	tg.mu.Lock()
	defer tg.mu.Unlock()

	var matched []defs.Pid_t
	for cpid, c := range tg.Children {
		if pid > 0 && cpid != pid {
			continue
		}
		if c.Leader.State() == WaitForRecycle {
			matched = append(matched, cpid)
		}
	}
	if len(matched) == 0 {
		return 0, 0, false
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	primaryPID = matched[0]
	for _, cpid := range matched {
		c := tg.Children[cpid]
		if cpid == primaryPID {
			exitCode = c.ExitCode
		}
		tg.ChildUsage.Add(&c.Leader.Time)
		tg.ChildUsage.Add(&c.ChildUsage)
		delete(tg.Children, cpid)
		unregisterGroup(cpid)
	}
	return primaryPID, exitCode, true
}
