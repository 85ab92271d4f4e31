// Package bounds enumerates the resource-bound identifiers package res
// gates admission on. biscuit's vm package references bounds identifiers
// like B_ASPACE_T_K2USER_INNER when it calls res.Resadd_noblock inside a
// copy loop that must not allocate unboundedly; we generalize the same
// identifier-per-call-site idea across every subsystem that admits work
// against a system-wide limit.
package bounds

/// Bound_t names a call site whose resource consumption is bounded.
type Bound_t int

const (
	B_ASPACE_T_K2USER_INNER Bound_t = iota
	B_ASPACE_T_USER2K_INNER
	B_PIPE_T_WRITE
	B_PIPE_T_READ
	B_FDTABLE_T_ALLOC
	B_TIMERWHEEL_T_ADD
	B_FUTEX_T_WAIT
	B_TASK_T_CLONE
	B_PAGECACHE_T_GETORCREATE
)
