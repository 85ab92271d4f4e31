// Package res implements the kernel's resource admission gate: the check
// biscuit's copy loops (vm.K2user_inner, vm.User2k_inner) perform before
// doing more heap-touching work, generalized here to every bounded call
// site named in package bounds and backed by golang.org/x/sync/semaphore
// so admission is a weighted, non-blocking try-acquire rather than a
// hand-rolled counter.
package res

import (
	"context"

	"golang.org/x/sync/semaphore"

	"flyeros/bounds"
)

// perCallBudget is the number of concurrent admissions package res allows
// per bound before Resadd_noblock starts failing closed; this mirrors
// biscuit's ENOHEAP short-circuit rather than modeling exact byte costs.
const perCallBudget = 4096

var gates = func() map[bounds.Bound_t]*semaphore.Weighted {
	m := make(map[bounds.Bound_t]*semaphore.Weighted)
	for _, b := range []bounds.Bound_t{
		bounds.B_ASPACE_T_K2USER_INNER,
		bounds.B_ASPACE_T_USER2K_INNER,
		bounds.B_PIPE_T_WRITE,
		bounds.B_PIPE_T_READ,
		bounds.B_FDTABLE_T_ALLOC,
		bounds.B_TIMERWHEEL_T_ADD,
		bounds.B_FUTEX_T_WAIT,
		bounds.B_TASK_T_CLONE,
		bounds.B_PAGECACHE_T_GETORCREATE,
	} {
		m[b] = semaphore.NewWeighted(perCallBudget)
	}
	return m
}()

/// Resadd_noblock tries to admit one unit of work at the named bound
/// without blocking. It returns false (mapped to ENOHEAP by the caller)
/// when the bound's budget is currently exhausted.
func Resadd_noblock(b bounds.Bound_t) bool {
	g, ok := gates[b]
	if !ok {
		panic("unregistered bound")
	}
	return g.TryAcquire(1)
}

/// Resdone releases one unit of work previously admitted at the named
/// bound. Every successful Resadd_noblock must be paired with exactly
/// one Resdone.
func Resdone(b bounds.Bound_t) {
	g, ok := gates[b]
	if !ok {
		panic("unregistered bound")
	}
	g.Release(1)
}

/// ResaddBlock admits one unit of work at the named bound, blocking
/// (respecting ctx cancellation) until budget is available. Used by
/// call sites that may legitimately wait rather than fail with ENOHEAP,
/// e.g. the timer wheel's Add.
func ResaddBlock(ctx context.Context, b bounds.Bound_t) error {
	g, ok := gates[b]
	if !ok {
		panic("unregistered bound")
	}
	return g.Acquire(ctx, 1)
}
