package task

import (
	"testing"

	"flyeros/arch"
	"flyeros/defs"
	"flyeros/mem"
	"flyeros/vm"
)

func newTestGroup(t *testing.T, parent *ThreadGroup) *ThreadGroup {
	t.Helper()
	alloc := mem.NewAllocator(64)
	as, err := vm.NewAddressSpace(alloc, arch.RISCV64, 0x1000, uintptr(1)<<30)
	if err != 0 {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	return NewThreadGroup(parent, as, nil)
}

// End-to-end scenario 4: a parent forks three children that exit with
// distinct codes; three wait4-equivalent calls return all three in some
// order, and a fourth reports ECHILD (spec.md §4.6 wait cascade).
func TestWaitCascadeReapsAllChildrenThenECHILD(t *testing.T) {
	parent := newTestGroup(t, nil)

	var childPIDs []defs.Pid_t
	for i, code := range []int{0, 1, 2} {
		childAS, err := parent.AS.NewChild()
		if err != 0 {
			t.Fatalf("NewChild #%d: %v", i, err)
		}
		child, err := parent.Fork(childAS)
		if err != 0 {
			t.Fatalf("Fork #%d: %v", i, err)
		}
		child.Exit(code)
		childPIDs = append(childPIDs, child.PID)
	}

	seen := make(map[defs.Pid_t]int)
	for i := 0; i < 3; i++ {
		pid, code, found := parent.ReapZombies(0)
		if !found {
			t.Fatalf("ReapZombies call %d: found=false, want a reapable child", i)
		}
		seen[pid] = code
	}

	if len(seen) != 3 {
		t.Fatalf("reaped %d distinct pids, want 3: %v", len(seen), seen)
	}
	for i, pid := range childPIDs {
		code, ok := seen[pid]
		if !ok {
			t.Fatalf("child #%d (pid %d) was never reaped", i, pid)
		}
		if code != i {
			t.Fatalf("child #%d (pid %d) exit code = %d, want %d", i, pid, code, i)
		}
	}

	if parent.HasChildren() {
		t.Fatal("parent should have no children left after reaping all three")
	}
	if _, _, found := parent.ReapZombies(0); found {
		t.Fatal("fourth ReapZombies should find nothing (ECHILD case)")
	}
}

func TestReapZombiesSpecificPIDIgnoresOthers(t *testing.T) {
	parent := newTestGroup(t, nil)

	as1, _ := parent.AS.NewChild()
	c1, _ := parent.Fork(as1)
	as2, _ := parent.AS.NewChild()
	c2, _ := parent.Fork(as2)

	c1.Exit(5)

	pid, code, found := parent.ReapZombies(c2.PID)
	if found {
		t.Fatalf("ReapZombies(c2) found a zombie before c2 exited: pid=%d code=%d", pid, code)
	}

	pid, code, found = parent.ReapZombies(c1.PID)
	if !found || pid != c1.PID || code != 5 {
		t.Fatalf("ReapZombies(c1) = (%d, %d, %v), want (%d, 5, true)", pid, code, found, c1.PID)
	}
	if !parent.HasChild(c2.PID) {
		t.Fatal("c2 should remain an unreaped child")
	}
}
