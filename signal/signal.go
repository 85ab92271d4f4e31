// Package signal implements the per-task signal machinery spec.md §4.8
// names: a pending-signal manager, the process-wide handler table,
// delivery at the kernel→user exit path, and the sigreturn restore.
// Grounded on original_source/kernel/src/task/sig_members.rs's
// SigManager (pending bitmap + SigInfo queue + should_wake mask) and
// sig_exec.rs's handle_signal dispatch, translated from its
// trap-frame-is-always-resident model (the Rust kernel keeps one
// TrapContext per task it mutates in place) to this package writing a
// SigContext snapshot onto the user stack the way a real kernel's
// copy_to_user-based signal delivery does, since this tree's trap
// frames are transient Go values rather than a fixed kernel-resident
// struct.
package signal

import "golang.org/x/sys/unix"

// Signal numbers follow the Linux ABI both target ISAs share, numbered
// from golang.org/x/sys/unix rather than hand-picked so a real libc's
// raw signal numbers line up.
const (
	SIGHUP    = int(unix.SIGHUP)
	SIGINT    = int(unix.SIGINT)
	SIGQUIT   = int(unix.SIGQUIT)
	SIGILL    = int(unix.SIGILL)
	SIGTRAP   = int(unix.SIGTRAP)
	SIGABRT   = int(unix.SIGABRT)
	SIGBUS    = int(unix.SIGBUS)
	SIGFPE    = int(unix.SIGFPE)
	SIGKILL   = int(unix.SIGKILL)
	SIGUSR1   = int(unix.SIGUSR1)
	SIGSEGV   = int(unix.SIGSEGV)
	SIGUSR2   = int(unix.SIGUSR2)
	SIGPIPE   = int(unix.SIGPIPE)
	SIGALRM   = int(unix.SIGALRM)
	SIGTERM   = int(unix.SIGTERM)
	SIGCHLD   = int(unix.SIGCHLD)
	SIGCONT   = int(unix.SIGCONT)
	SIGSTOP   = int(unix.SIGSTOP)
	SIGTSTP   = int(unix.SIGTSTP)
	SIGTTIN   = int(unix.SIGTTIN)
	SIGTTOU   = int(unix.SIGTTOU)
	SIGURG    = int(unix.SIGURG)
	SIGWINCH  = int(unix.SIGWINCH)
	SIGSYS    = int(unix.SIGSYS)

	// NSIG is one past the highest standard signal number spec.md's
	// bitmap/queue vocabulary tracks; real-time signals are out of
	// scope (not named by spec.md §6's signal surface).
	NSIG = 32
)

// rt_sigaction/rt_sigprocmask "how" values, Linux's SIG_BLOCK family.
const (
	SIG_BLOCK   = 0
	SIG_UNBLOCK = 1
	SIG_SETMASK = 2
)

// SAFlags holds sa_flags bits spec.md §4.8 names.
type SAFlags uint32

func (f SAFlags) Has(bit SAFlags) bool { return f&bit != 0 }

const (
	SA_NOCLDSTOP SAFlags = 1 << 0
	SA_NODEFER   SAFlags = 1 << 30
	SA_RESETHAND SAFlags = 1 << 31
	SA_SIGINFO   SAFlags = 1 << 2
	SA_ONSTACK   SAFlags = 1 << 27
	SA_RESTART   SAFlags = 1 << 28
)

// sigaltstack flags.
const (
	SS_ONSTACK = 1
	SS_DISABLE = 2
)

// SigInfo is the minimal siginfo_t this kernel carries: which signal,
// who sent it (for SIGCHLD's exit-code reporting in the wait4 cascade),
// and the child exit status when applicable.
type SigInfo struct {
	Signo  int32
	Sender int32 // sending tid/pid, 0 if kernel-generated
	Status int32 // child exit code for SIGCHLD, signal number for kill-by-signal
}

// Disposition is what a signal's action resolves to once its handler
// slot is consulted: Default defers to each signal's built-in behavior
// (Term/Ignore/Stop/Continue, see defaultBehavior), Ignore always drops
// it, and Handler means a user entry point is installed.
type Disposition int

const (
	DispDefault Disposition = iota
	DispIgnore
	DispHandler
)

// Action is one signal's disposition, the sigaction(2) record.
type Action struct {
	Disposition Disposition
	Handler     uintptr
	Mask        uint64
	Flags       SAFlags
}

// behavior classifies what Default resolves to for a given signal,
// mirroring sig_exec.rs's match over the signal number when no handler
// is installed.
type behavior int

const (
	behTerm behavior = iota
	behIgnore
	behStop
	behContinue
)

func defaultBehavior(sig int) behavior {
	switch sig {
	case SIGCHLD, SIGURG, SIGWINCH:
		return behIgnore
	case SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU:
		return behStop
	case SIGCONT:
		return behContinue
	default:
		return behTerm
	}
}

// HandlerTable is the sigaction table, shared by every thread in a
// thread group (clone(2) without CLONE_SIGHAND still shares actions
// only within the same thread group; a full process fork gets its own
// copy via Fork, and execve resets it via ResetForExec).
type HandlerTable struct {
	actions [NSIG]Action
}

// NewHandlerTable returns a table with every signal at its default
// disposition.
func NewHandlerTable() *HandlerTable {
	return &HandlerTable{}
}

// Get returns sig's current action (0 < sig < NSIG).
func (h *HandlerTable) Get(sig int) Action {
	if sig <= 0 || sig >= NSIG {
		return Action{}
	}
	return h.actions[sig]
}

// Set installs a new action for sig, returning the previous one.
func (h *HandlerTable) Set(sig int, a Action) Action {
	prev := h.actions[sig]
	h.actions[sig] = a
	return prev
}

// Fork returns an independent copy, the fork(2) contract (child gets
// the parent's dispositions at the moment of fork but may change them
// without affecting the parent).
func (h *HandlerTable) Fork() *HandlerTable {
	cp := *h
	return &cp
}

// ResetForExec implements execve's signal-disposition reset: any signal
// with an installed handler reverts to Default, but signals explicitly
// set to Ignore stay Ignore (POSIX execve semantics) since a SIG_IGN
// disposition is inherited across exec, unlike a handler address which
// would no longer point anywhere meaningful in the new image.
func (h *HandlerTable) ResetForExec() {
	for i := range h.actions {
		if h.actions[i].Disposition == DispHandler {
			h.actions[i] = Action{}
		}
	}
}
