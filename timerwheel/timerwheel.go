// Package timerwheel implements the kernel's timer subsystem: a
// min-heap of pending expirations backing nanosleep(2), its only
// caller in this tree (spec.md §6, a feature the distilled spec left implicit
// in "blocking syscalls" but which original_source/'s timer handling
// names explicitly; supplemented here in the teacher's idiom). No
// example repo carries a timer-wheel library, so this uses the
// standard library's container/heap the way biscuit itself leans on
// stdlib containers for in-kernel bookkeeping that isn't a domain
// concern (DESIGN.md notes the search).
package timerwheel

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"flyeros/bounds"
	"flyeros/defs"
	"flyeros/res"
)

/// Timer is one pending expiration.
type Timer struct {
	Deadline time.Time
	Fire     func()
	index    int // heap index, maintained by container/heap
	canceled bool
}

type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].Deadline.Before(h[j].Deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

/// Wheel owns the pending-timer heap and a goroutine that wakes exactly
/// when the earliest timer fires, re-arming as timers are added or
/// canceled (spec.md §6's timer semantics; no per-tick-interrupt
/// polling since this is a hosted simulation with real wall-clock
/// timers available).
type Wheel struct {
	mu      sync.Mutex
	heap    timerHeap
	wake    chan struct{}
}

/// New creates an empty, running timer wheel.
func New() *Wheel {
	w := &Wheel{wake: make(chan struct{}, 1)}
	go w.loop()
	return w
}

/// Add schedules fire to run at deadline, returning a handle to cancel
/// it, or an error if the admission bound is exhausted. Uses the
/// blocking admission variant since a caller arming a timer can usually
/// afford to wait briefly rather than fail outright (spec.md §4.4
/// B_TIMERWHEEL_T_ADD).
func (w *Wheel) Add(ctx context.Context, deadline time.Time, fire func()) (*Timer, defs.Err_t) {
	if err := res.ResaddBlock(ctx, bounds.B_TIMERWHEEL_T_ADD); err != nil {
		return nil, defs.EINTR
	}
	defer res.Resdone(bounds.B_TIMERWHEEL_T_ADD)

	t := &Timer{Deadline: deadline, Fire: fire}
	w.mu.Lock()
	heap.Push(&w.heap, t)
	w.mu.Unlock()
	w.nudge()
	return t, 0
}

/// Cancel removes t if it has not yet fired.
func (w *Wheel) Cancel(t *Timer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.index >= 0 && t.index < len(w.heap) && w.heap[t.index] == t {
		heap.Remove(&w.heap, t.index)
	}
	t.canceled = true
}

func (w *Wheel) nudge() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Wheel) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		w.mu.Lock()
		var wait time.Duration
		if len(w.heap) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(w.heap[0].Deadline)
			if wait < 0 {
				wait = 0
			}
		}
		w.mu.Unlock()

		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-w.wake:
			if !timer.Stop() {
				<-timer.C
			}
		}

		now := time.Now()
		for {
			w.mu.Lock()
			if len(w.heap) == 0 || w.heap[0].Deadline.After(now) {
				w.mu.Unlock()
				break
			}
			t := heap.Pop(&w.heap).(*Timer)
			w.mu.Unlock()
			if !t.canceled && t.Fire != nil {
				go t.Fire()
			}
		}
	}
}
