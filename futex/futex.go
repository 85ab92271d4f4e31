// Package futex implements the wait/wake primitive FUTEX_WAIT/
// FUTEX_WAKE and the pthread mutex/condvar/barrier userland libraries
// build on (spec.md §6). Keyed by (address-space identity, user
// virtual address) rather than physical address, since this hosted
// kernel resolves the VA to a stable per-process identity without
// needing the physical-page pinning a real futex implementation uses
// to support process-shared (MAP_SHARED) futexes — cross-process
// shared futexes are out of scope (spec.md Non-goals: no shared-memory
// IPC beyond pipes).
package futex

import (
	"context"
	"sync"

	"flyeros/bounds"
	"flyeros/defs"
	"flyeros/res"
)

type key struct {
	as uintptr // identity of the owning vm.AddressSpace
	va uintptr
}

type waitqueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    int
}

/// Table is the kernel-global futex wait-queue registry.
type Table struct {
	mu     sync.Mutex
	queues map[key]*waitqueue
}

/// NewTable creates an empty futex table.
func NewTable() *Table {
	return &Table{queues: make(map[key]*waitqueue)}
}

func (t *Table) queueFor(as, va uintptr) *waitqueue {
	k := key{as, va}
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queues[k]
	if !ok {
		q = &waitqueue{}
		q.cond = sync.NewCond(&q.mu)
		t.queues[k] = q
	}
	return q
}

// Load is the caller-supplied read of *uva's current value, taken
// under the waitqueue lock so the compare-and-sleep is atomic with
// respect to a concurrent FUTEX_WAKE the way real futex(2) requires
// (the classic lost-wakeup race FUTEX_WAIT's atomicity exists to
// close).
type Load func() uint32

/// Wait blocks while load() == expected, until woken by Wake or ctx is
/// canceled (spec.md §4.4 B_FUTEX_T_WAIT bound).
func (t *Table) Wait(ctx context.Context, as, va uintptr, expected uint32, load Load) defs.Err_t {
	if err := res.ResaddBlock(ctx, bounds.B_FUTEX_T_WAIT); err != nil {
		return defs.EINTR
	}
	defer res.Resdone(bounds.B_FUTEX_T_WAIT)

	q := t.queueFor(as, va)
	q.mu.Lock()
	if load() != expected {
		q.mu.Unlock()
		return defs.EAGAIN
	}
	q.n++

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	for load() == expected {
		if ctx.Err() != nil {
			q.n--
			q.mu.Unlock()
			close(done)
			return defs.EINTR
		}
		q.cond.Wait()
	}
	q.n--
	q.mu.Unlock()
	close(done)
	return 0
}

/// Wake wakes up to n waiters on (as, va), returning the count woken.
func (t *Table) Wake(as, va uintptr, n int) int {
	t.mu.Lock()
	q, ok := t.queues[key{as, va}]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	q.mu.Lock()
	woken := q.n
	if n < woken {
		woken = n
	}
	q.mu.Unlock()
	q.cond.Broadcast()
	return woken
}

/// Requeue is the FUTEX_REQUEUE entry point. It wakes up to maxWake
/// waiters on (as, src) exactly as Wake does and returns that count; it
/// does not move any remaining waiter to (as, dst), and dst and
/// maxRequeue are unused.
func (t *Table) Requeue(as, src, dst uintptr, maxWake, maxRequeue int) int {
	woken := t.Wake(as, src, maxWake)
	// A full requeue (moving sleepers to a different wait queue without
	// waking them) needs the waiting goroutines themselves to re-check
	// a redirected key, which this simplified goroutine-per-waiter
	// design doesn't model; callers needing true requeue semantics
	// should wake instead, at the cost of an extra futex round trip.
	return woken
}
