// Package task implements the scheduling core's process/thread model:
// tasks, thread groups, the file descriptor table, and CPU-time
// accounting (spec.md §3 Task/FdTable, §4.4 scheduling-adjacent
// bookkeeping). Grounded throughout on the teacher kernel's accnt, fd,
// and tinfo packages, generalized from biscuit's single hart/single
// address-space-per-process model to the multi-hart, explicit
// AddressSpace-owning Task spec.md requires.
package task

import (
	"sync"
	"sync/atomic"
	"time"
)

/// TimeStat accumulates a task's user/system CPU time, split the way
/// biscuit's Accnt_t does so the two can be reported independently.
/// Grounded on biscuit's accnt.Accnt_t.
type TimeStat struct {
	mu      sync.Mutex
	UserNs  int64
	SysNs   int64
}

/// AddUser records delta nanoseconds of user-mode execution.
func (a *TimeStat) AddUser(delta int64) { atomic.AddInt64(&a.UserNs, delta) }

/// AddSys records delta nanoseconds of kernel-mode execution.
func (a *TimeStat) AddSys(delta int64) { atomic.AddInt64(&a.SysNs, delta) }

/// SleepTime backs the time elapsed since since out of system time, for
/// time spent blocked rather than actually running in the kernel (the
/// same Io_time/Sleep_time correction biscuit's Accnt_t performs). The
/// executor in this tree calls neither AddSys nor SleepTime.
func (a *TimeStat) SleepTime(since time.Time) {
	d := time.Since(since).Nanoseconds()
	atomic.AddInt64(&a.SysNs, -d)
}

/// Add merges n's counters into a, used when a reaped child's usage is
/// folded into its parent's rusage(RUSAGE_CHILDREN) totals.
func (a *TimeStat) Add(n *TimeStat) {
	a.mu.Lock()
	defer a.mu.Unlock()
	atomic.AddInt64(&a.UserNs, atomic.LoadInt64(&n.UserNs))
	atomic.AddInt64(&a.SysNs, atomic.LoadInt64(&n.SysNs))
}

/// Rusage is the (utime, stime) pair getrusage(2)/wait4(2) report, in
/// seconds+microseconds the way struct timeval does.
type Rusage struct {
	UtimeSec, UtimeUsec int64
	StimeSec, StimeUsec int64
}

/// Fetch returns a consistent snapshot of a's counters as a Rusage.
func (a *TimeStat) Fetch() Rusage {
	u := atomic.LoadInt64(&a.UserNs)
	s := atomic.LoadInt64(&a.SysNs)
	toSecUsec := func(ns int64) (int64, int64) { return ns / 1e9, (ns % 1e9) / 1000 }
	var r Rusage
	r.UtimeSec, r.UtimeUsec = toSecUsec(u)
	r.StimeSec, r.StimeUsec = toSecUsec(s)
	return r
}
