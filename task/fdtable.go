package task

import (
	"sync"

	"flyeros/bounds"
	"flyeros/defs"
	"flyeros/res"
	"flyeros/vfs"
)

// File descriptor flag bits (spec.md §6 fcntl(2)/open(2)).
const (
	FD_CLOEXEC = 0x1
)

/// Userio is the minimal copy surface FileLike.Read/Write need; aliased
/// to defs.Userio so vfs.GenericFile and specialfiles.PipeEnd, whose
/// Read/Write methods are declared against that same alias, satisfy
/// FileLike without task importing either package for it.
type Userio = defs.Userio

/// FileLike is whatever a file descriptor slot can hold: a regular
/// vfs.GenericFile, a specialfiles.PipeEnd, or any future socket/
/// eventfd/timerfd implementation. vfs.File already satisfies this
/// (it's a superset); specialfiles.PipeEnd satisfies it directly.
type FileLike interface {
	Read(dst Userio) (int, defs.Err_t)
	Write(src Userio) (int, defs.Err_t)
	Seek(offset int64, whence int) (int64, defs.Err_t)
	Stat(st *vfs.Stat_t) defs.Err_t
	Close() defs.Err_t
}

/// Fd is one slot in a FdTable: the underlying file plus its
/// close-on-exec flag (spec.md §6; grounded on biscuit's Fd_t, which
/// pairs an fdops.Fdops_i with permission bits the same way).
type Fd struct {
	File  FileLike
	Flags int
}

/// FdTable is a process's open file descriptor table, shared between
/// threads of the same thread group (spec.md §3 Task: "FdTable shared
/// within a thread group, private across an unshared clone").
type FdTable struct {
	mu      sync.Mutex
	entries map[int]*Fd
	next    int
}

/// NewFdTable creates an empty table.
func NewFdTable() *FdTable {
	return &FdTable{entries: make(map[int]*Fd)}
}

/// Install inserts file at the lowest unused descriptor number >= low
/// (spec.md §6 open(2)/dup2(2) numbering rules), gated by the fd-table
/// admission bound so an unbounded fork bomb of opens fails with
/// ENOHEAP rather than growing the map without limit.
func (t *FdTable) Install(file FileLike, flags int, low int) (int, defs.Err_t) {
	if !res.Resadd_noblock(bounds.B_FDTABLE_T_ALLOC) {
		return -1, defs.ENOHEAP
	}
	defer res.Resdone(bounds.B_FDTABLE_T_ALLOC)

	t.mu.Lock()
	defer t.mu.Unlock()
	fd := low
	for {
		if _, taken := t.entries[fd]; !taken {
			break
		}
		fd++
	}
	t.entries[fd] = &Fd{File: file, Flags: flags}
	return fd, 0
}

/// InstallAt installs file at exactly fd (dup2(2) semantics), closing
/// whatever was previously there.
func (t *FdTable) InstallAt(fd int, file FileLike, flags int) defs.Err_t {
	t.mu.Lock()
	old, hadOld := t.entries[fd]
	t.entries[fd] = &Fd{File: file, Flags: flags}
	t.mu.Unlock()
	if hadOld {
		old.File.Close()
	}
	return 0
}

/// Get returns the Fd at fd, if open.
func (t *FdTable) Get(fd int) (*Fd, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return nil, defs.EBADF
	}
	return e, 0
}

/// Close closes and removes fd.
func (t *FdTable) Close(fd int) defs.Err_t {
	t.mu.Lock()
	e, ok := t.entries[fd]
	if !ok {
		t.mu.Unlock()
		return defs.EBADF
	}
	delete(t.entries, fd)
	t.mu.Unlock()
	return e.File.Close()
}

/// CloseOnExec closes every descriptor flagged FD_CLOEXEC, called by
/// execve(2).
func (t *FdTable) CloseOnExec() {
	t.mu.Lock()
	var doomed []*Fd
	for fd, e := range t.entries {
		if e.Flags&FD_CLOEXEC != 0 {
			doomed = append(doomed, e)
			delete(t.entries, fd)
		}
	}
	t.mu.Unlock()
	for _, e := range doomed {
		e.File.Close()
	}
}

/// Fork returns a copy of t sharing the same FileLike values (fork(2)
/// semantics: descriptor numbers are copied, underlying files are
/// shared, not duplicated).
func (t *FdTable) Fork() *FdTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	nt := NewFdTable()
	for fd, e := range t.entries {
		cp := *e
		nt.entries[fd] = &cp
	}
	return nt
}

/// CloseAll closes every open descriptor, called when a thread group's
/// last member exits.
func (t *FdTable) CloseAll() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[int]*Fd)
	t.mu.Unlock()
	for _, e := range entries {
		e.File.Close()
	}
}
