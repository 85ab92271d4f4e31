package executor

import "sync/atomic"

// HostIrqController implements mutex.IrqController for this hosted
// kernel. Real hardware interrupt masking (RISC-V sstatus.SIE,
// LoongArch CRMD.IE) exists to stop an interrupt handler from
// preempting a critical section mid-instruction; this simulation never
// delivers interrupts asynchronously in the first place — icu dispatch
// is an explicit function call from the device-polling path, never a
// signal that interrupts a running goroutine — so masking degenerates
// to a simple reentrancy flag per hart rather than real hardware state.
// Declared here (not in package mutex) since mutex must stay free of
// any dependency on how harts are represented.
type HostIrqController struct {
	masked []atomic.Bool
}

/// NewHostIrqController creates a controller tracking nHarts
/// independent mask flags.
func NewHostIrqController(nHarts int) *HostIrqController {
	return &HostIrqController{masked: make([]atomic.Bool, nHarts)}
}

// currentHart is a placeholder hart index for callers that haven't
// threaded an explicit hart ID through to mutex.SpinNoIrq (spec.md §9
// notes per-hart IRQ state as not yet fully wired through every call
// site); single-hart callers can use index 0 unconditionally.
var currentHart atomic.Int32

/// SetCurrentHart records which hart index the calling goroutine is
/// running as, for DisableLocal/EnableLocal to key off of.
func SetCurrentHart(id int) { currentHart.Store(int32(id)) }

func (c *HostIrqController) DisableLocal() bool {
	h := currentHart.Load()
	return c.masked[h].Swap(true)
}

func (c *HostIrqController) EnableLocal(was bool) {
	h := currentHart.Load()
	c.masked[h].Store(was)
}
