package task

import (
	"sync"

	"flyeros/defs"
)

// registry is the kernel's global task manager: every live thread group
// by PID and every live task by TID, the lookup table kill(2)/tkill(2)/
// tgkill(2) need to address a target by number rather than by having a
// handle passed to them, and the table wait4's cascade removes a
// recycled child from (spec.md §4.6 step 1: "remove from process-group
// and task manager").
var registry = struct {
	mu     sync.Mutex
	groups map[defs.Pid_t]*ThreadGroup
	tasks  map[defs.Tid_t]*Task
}{
	groups: make(map[defs.Pid_t]*ThreadGroup),
	tasks:  make(map[defs.Tid_t]*Task),
}

func registerGroup(tg *ThreadGroup) {
	registry.mu.Lock()
	registry.groups[tg.PID] = tg
	registry.mu.Unlock()
}

func registerTask(t *Task) {
	registry.mu.Lock()
	registry.tasks[t.TID] = t
	registry.mu.Unlock()
}

func unregisterTask(tid defs.Tid_t) {
	registry.mu.Lock()
	delete(registry.tasks, tid)
	registry.mu.Unlock()
}

func unregisterGroup(pid defs.Pid_t) {
	registry.mu.Lock()
	delete(registry.groups, pid)
	registry.mu.Unlock()
}

/// LookupGroup returns the live thread group with the given PID, or nil.
func LookupGroup(pid defs.Pid_t) *ThreadGroup {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.groups[pid]
}

/// LookupTask returns the live task with the given TID, or nil.
func LookupTask(tid defs.Tid_t) *Task {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.tasks[tid]
}
