// Package icu implements the interrupt controller abstraction spec.md
// §4.4/§6 names: a per-ISA PLIC (RISC-V) or EIOC/ICU (LoongArch) vector
// table routed to the executor-scheduled device handlers, plus MSI
// vector allocation for PCI-shaped devices. Since this is a hosted
// simulation, no MMIO register programming happens here — Dispatch is
// called explicitly from the device polling path rather than by a real
// asynchronous interrupt, matching the rest of this kernel's
// call-don't-trap hosted execution model.
package icu

import "sync"

/// Handler runs when the device owning irq signals an interrupt.
type Handler func()

/// Controller routes interrupt numbers to registered handlers.
type Controller interface {
	Register(irq int, h Handler)
	Dispatch(irq int)
	Name() string
}

type tableController struct {
	mu       sync.Mutex
	name     string
	handlers map[int]Handler
}

func newTableController(name string) *tableController {
	return &tableController{name: name, handlers: make(map[int]Handler)}
}

func (c *tableController) Register(irq int, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[irq] = h
}

func (c *tableController) Dispatch(irq int) {
	c.mu.Lock()
	h := c.handlers[irq]
	c.mu.Unlock()
	if h != nil {
		h()
	}
}

func (c *tableController) Name() string { return c.name }

/// NewPLIC returns a RISC-V platform-level interrupt controller stand-in.
func NewPLIC() Controller { return newTableController("plic") }

/// NewLoongArchICU returns a LoongArch extended I/O interrupt
/// controller stand-in.
func NewLoongArchICU() Controller { return newTableController("eioc") }

// Msivec identifies an allocated MSI vector.
type Msivec uint

/// MsiAllocator hands out a fixed pool of MSI vectors to PCI-shaped
/// devices, grounded on biscuit's msi.Msivecs_t.
type MsiAllocator struct {
	mu    sync.Mutex
	avail map[Msivec]bool
}

/// NewMsiAllocator creates an allocator covering vectors
/// [base, base+n).
func NewMsiAllocator(base, n int) *MsiAllocator {
	a := &MsiAllocator{avail: make(map[Msivec]bool, n)}
	for i := 0; i < n; i++ {
		a.avail[Msivec(base+i)] = true
	}
	return a
}

/// Alloc reserves a free MSI vector.
func (a *MsiAllocator) Alloc() (Msivec, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for v := range a.avail {
		delete(a.avail, v)
		return v, true
	}
	return 0, false
}

/// Free returns vector to the pool; it panics on a double free, the
/// same loud-failure behavior biscuit's Msi_free has.
func (a *MsiAllocator) Free(v Msivec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.avail[v] {
		panic("double free of msi vector")
	}
	a.avail[v] = true
}
