// Package executor implements the per-hart cooperative run queues that
// drive every kernel and user task in this hosted kernel (spec.md §4.4
// scheduling core). Grounded on original_source/lib/executor/src/lib.rs
// (RustFlyer/OS's async_task-based executor): one run queue per hart,
// spawn picks the least-loaded hart, and an idle hart steals work from
// its neighbors before parking. That executor polls Rust Futures
// cooperatively at arbitrary await points; stock Go has no stackless
// coroutine primitive to match one-for-one, so here a "task" is a
// goroutine pinned to a simulated hart via runtime.LockOSThread, and
// the run queue holds the closures that start each one — the
// scheduling *policy* (hart affinity, work stealing, least-loaded
// placement) is preserved even though the execution mechanism is
// goroutines rather than polled futures.
package executor

import (
	"runtime"
	"sync"
)

/// Job is one unit of schedulable work: typically "run this task until
/// it blocks or exits".
type Job func()

type runQueue struct {
	mu    sync.Mutex
	items []Job
}

func (q *runQueue) pushBack(j Job) {
	q.mu.Lock()
	q.items = append(q.items, j)
	q.mu.Unlock()
}

func (q *runQueue) pushFront(j Job) {
	q.mu.Lock()
	q.items = append([]Job{j}, q.items...)
	q.mu.Unlock()
}

func (q *runQueue) popFront() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j, true
}

func (q *runQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

/// Pool is the fixed set of simulated harts, each with its own run
/// queue, started by Start and fed via Spawn.
type Pool struct {
	queues  []*runQueue
	started sync.Once
	stop    chan struct{}
	wake    []chan struct{}
}

/// NewPool creates a pool sized for nHarts simulated harts.
func NewPool(nHarts int) *Pool {
	p := &Pool{
		queues: make([]*runQueue, nHarts),
		stop:   make(chan struct{}),
		wake:   make([]chan struct{}, nHarts),
	}
	for i := range p.queues {
		p.queues[i] = &runQueue{}
		p.wake[i] = make(chan struct{}, 1)
	}
	return p
}

/// NumHarts reports the pool's hart count.
func (p *Pool) NumHarts() int { return len(p.queues) }

// leastLoaded mirrors push_in_available_line's scan for the
// lowest-occupancy hart.
func (p *Pool) leastLoaded() int {
	best := 0
	bestLen := p.queues[0].length()
	for i := 1; i < len(p.queues); i++ {
		if l := p.queues[i].length(); l < bestLen {
			bestLen = l
			best = i
		}
	}
	return best
}

/// Spawn enqueues job on the least-loaded hart's run queue (the
/// "woken_while_running=false" push_front case in the teacher
/// original: a freshly spawned task, never before run, goes to the
/// front so it starts promptly).
func (p *Pool) Spawn(job Job) {
	hart := p.leastLoaded()
	p.queues[hart].pushFront(job)
	p.nudge(hart)
}

/// Requeue re-enqueues a task that yielded while already running,
/// appending to the back of its own hart's queue (the
/// "woken_while_running=true" case), preserving affinity instead of
/// picking a new least-loaded hart.
func (p *Pool) Requeue(hart int, job Job) {
	p.queues[hart].pushBack(job)
	p.nudge(hart)
}

func (p *Pool) nudge(hart int) {
	select {
	case p.wake[hart] <- struct{}{}:
	default:
	}
}

// fetchFor implements fetch_one: pop the local queue first, then scan
// every other hart's queue for stealable work.
func (p *Pool) fetchFor(hart int) (Job, bool) {
	if j, ok := p.queues[hart].popFront(); ok {
		return j, true
	}
	for i := range p.queues {
		if i == hart {
			continue
		}
		if j, ok := p.queues[i].popFront(); ok {
			return j, true
		}
	}
	return nil, false
}

/// Start launches one goroutine per hart, each pinned to its own OS
/// thread via runtime.LockOSThread — this hosted kernel's stand-in for
/// a hart actually being a distinct physical core — running runHart
/// until Stop is called.
func (p *Pool) Start() {
	p.started.Do(func() {
		for i := 0; i < len(p.queues); i++ {
			go p.runHart(i)
		}
	})
}

/// Stop signals every hart loop to exit after its current job.
func (p *Pool) Stop() {
	close(p.stop)
}

func (p *Pool) runHart(hart int) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		if j, ok := p.fetchFor(hart); ok {
			j()
			continue
		}
		select {
		case <-p.wake[hart]:
		case <-p.stop:
			return
		}
	}
}
