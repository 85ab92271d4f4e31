// Package mutex implements the two lock flavors spec.md §5 requires:
// plain spin (ordinary mutual exclusion) and SpinNoIrq, which additionally
// masks the local hart's interrupt-enable bit across the critical section.
// This mirrors _examples/original_source/lib/mutex's spin_mutex.rs /
// spin_then_sleep_mutex.rs split, re-expressed with Go's sync primitives
// in the style biscuit uses its embedded sync.Mutex (see vm.Vm_t).
package mutex

import "sync"

// IrqController is implemented by the executor package: it is the only
// component that knows which goroutine is "the current hart" and can
// mask/unmask that hart's simulated interrupt-enable bit. A hosted Go
// process has no real local-IRQ-disable instruction, so this is the
// software stand-in the executor installs at boot.
type IrqController interface {
	// DisableLocal masks interrupts on the calling hart and returns a
	// token for the prior state (executor's controller returns the
	// prior masked flag), to be passed back to EnableLocal.
	DisableLocal() bool
	// EnableLocal restores the calling hart's interrupt state from the
	// token a prior DisableLocal returned.
	EnableLocal(was bool)
}

var irq IrqController = noopIrq{}

// noopIrq is installed until the executor calls SetIrqController; it
// lets leaf packages (mem, vfs) construct SpinNoIrq locks before boot
// wiring runs without nil-dereferencing.
type noopIrq struct{}

func (noopIrq) DisableLocal() bool   { return true }
func (noopIrq) EnableLocal(bool)     {}

/// SetIrqController installs the executor's per-hart interrupt controller.
/// Called exactly once during boot, before any hart is spawned.
func SetIrqController(c IrqController) {
	irq = c
}

/// Spin is a plain mutual-exclusion lock: usable only where interrupts
/// are already masked by the caller or re-entrancy is structurally
/// impossible (spec.md §5).
type Spin struct {
	mu sync.Mutex
}

func (s *Spin) Lock()   { s.mu.Lock() }
func (s *Spin) Unlock() { s.mu.Unlock() }

/// SpinNoIrq disables the calling hart's interrupt-enable bit on
/// acquire and restores it on release. Use for any lock held across a
/// state read that interrupts may also touch: the frame allocator,
/// dentry cache, timer wheel, per-task inner state, fd table, and
/// page-cache page maps all take this flavor per spec.md §5.
type SpinNoIrq struct {
	mu  sync.Mutex
	was bool
}

func (s *SpinNoIrq) Lock() {
	was := irq.DisableLocal()
	s.mu.Lock()
	s.was = was
}

func (s *SpinNoIrq) Unlock() {
	was := s.was
	s.mu.Unlock()
	irq.EnableLocal(was)
}
