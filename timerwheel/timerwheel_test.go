package timerwheel

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Every timer with a deadline at or before now fires, and no timer
// scheduled later does, within one wheel tick (spec.md §8 timer
// property).
func TestWheelFiresOnlyExpiredTimers(t *testing.T) {
	w := New()
	now := time.Now()

	var mu sync.Mutex
	fired := make(map[string]bool)
	var wg sync.WaitGroup

	mark := func(name string) func() {
		return func() {
			mu.Lock()
			fired[name] = true
			mu.Unlock()
			wg.Done()
		}
	}

	wg.Add(2)
	if _, err := w.Add(context.Background(), now.Add(-time.Millisecond), mark("past")); err != 0 {
		t.Fatalf("Add(past): %v", err)
	}
	if _, err := w.Add(context.Background(), now.Add(5*time.Millisecond), mark("near")); err != 0 {
		t.Fatalf("Add(near): %v", err)
	}
	farTimer, err := w.Add(context.Background(), now.Add(time.Hour), mark("far"))
	if err != 0 {
		t.Fatalf("Add(far): %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expired timers never fired within 1s")
	}

	mu.Lock()
	defer mu.Unlock()
	if !fired["past"] || !fired["near"] {
		t.Fatalf("fired = %v, want past and near both fired", fired)
	}
	if fired["far"] {
		t.Fatal("a timer an hour out must not have fired")
	}
	w.Cancel(farTimer)
}

func TestCancelPreventsFiring(t *testing.T) {
	w := New()
	var fired bool
	var mu sync.Mutex

	tm, err := w.Add(context.Background(), time.Now().Add(30*time.Millisecond), func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	if err != 0 {
		t.Fatalf("Add: %v", err)
	}
	w.Cancel(tm)

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Fatal("canceled timer fired anyway")
	}
}
