// Command kernel boots the hosted simulation. In order, it brings up
// the frame allocator, the per-hart IRQ controller, the tmpfs
// filesystem type and root mount, the init address space and its page
// table, the timer/futex subsystems, the init thread group, and the
// per-hart executor pool. Grounded on the shape of biscuit's own
// kernel/chentry.go boot sequence, generalized from its ELF-entry-patch
// trick (out of scope for a hosted process that's simply `go run`) to
// ordinary package-level initialization.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"flyeros/arch"
	"flyeros/executor"
	"flyeros/fs/tmpfs"
	"flyeros/futex"
	"flyeros/mem"
	"flyeros/mutex"
	"flyeros/syscall"
	"flyeros/task"
	"flyeros/timerwheel"
	"flyeros/trap"
	"flyeros/vfs"
	"flyeros/vm"
)

// Default hosted simulation sizing; real hardware sizing is read from
// the boot-time device tree, out of scope for this simulation (spec.md
// §1: no bare-metal boot/runtime patching).
const (
	defaultFrames   = 1 << 16 // 256MiB of simulated RAM at 4KiB pages
	defaultHarts    = 4
	userMin         = uintptr(0x10000)
	userMax         = uintptr(1) << 38 // Sv39's canonical user ceiling
)

func main() {
	isaFlag := flag.String("isa", "riscv64", "target ISA: riscv64 or loongarch64")
	nHarts := flag.Int("harts", defaultHarts, "number of simulated harts")
	nFrames := flag.Int("frames", defaultFrames, "number of simulated physical frames")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	isa := arch.RISCV64
	if *isaFlag == "loongarch64" {
		isa = arch.LoongArch64
	}
	slog.Info("booting", "isa", isa.String(), "harts", *nHarts, "frames", *nFrames)

	alloc := mem.NewAllocator(*nFrames)

	irq := executor.NewHostIrqController(*nHarts)
	mutex.SetIrqController(irq)

	tmpfsType := tmpfs.New(alloc)
	vfs.RegisterFileSystem(tmpfsType)
	rootSb, err := tmpfsType.Mount("", nil)
	if err != 0 {
		slog.Error("failed to mount root tmpfs", "err", err)
		os.Exit(1)
	}
	mounts := vfs.NewMountTable(rootSb)
	slog.Info("root filesystem mounted", "fstype", rootSb.FSType())

	initAS, verr := vm.NewAddressSpace(alloc, isa, userMin, userMax)
	if verr != 0 {
		slog.Error("failed to create init address space", "err", verr)
		os.Exit(1)
	}

	sys := syscall.Subsystems{
		Mounts:  mounts,
		Timers:  timerwheel.New(),
		Futexes: futex.NewTable(),
	}

	initGroup := task.NewThreadGroup(nil, initAS, rootSb.Root())
	initTask := initGroup.Leader

	pool := executor.NewPool(*nHarts)
	for i := 0; i < *nHarts; i++ {
		executor.SetCurrentHart(i)
	}
	pool.Start()
	defer pool.Stop()

	// Prove the trap->syscall dispatch path end to end: the init task's
	// first act is a getpid(2), the same sanity check a freshly loaded
	// user image's libc startup code performs before anything else.
	pool.Spawn(func() {
		ctx := task.WithTask(context.Background(), initTask)
		ret := trap.Handle(ctx, sys, initTask, &trap.Frame{
			Cause:     trap.CauseSyscall,
			SyscallNo: syscall.SYS_GETPID,
		})
		slog.Info("init task dispatched getpid", "pid", ret.Value)
	})

	slog.Info("boot complete, entering idle")
	select {}
}
