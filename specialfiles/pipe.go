package specialfiles

import (
	"sync"

	"flyeros/bounds"
	"flyeros/defs"
	"flyeros/res"
	"flyeros/vfs"
)

// pipeBufSize matches the default Linux pipe capacity before a
// F_SETPIPE_SZ resize; spec.md §6 doesn't ask for resizable pipes.
const pipeBufSize = 64 * 1024

/// Pipe is the shared state between a pipe's read and write ends:
/// the ring buffer, a condition variable woken on any state change,
/// and open-end counts that decide EOF/EPIPE (spec.md §6 pipe(2)).
/// Grounded on biscuit's pipe implementation layered over Circbuf_t,
/// generalized from biscuit's single global pipe lock to one per pipe.
type Pipe struct {
	mu          sync.Mutex
	cond        *sync.Cond
	buf         *circbuf
	readers     int
	writers     int
	readClosed  bool
	writeClosed bool
}

/// NewPipe creates a pipe with one reader and one writer reference,
/// matching the two ends pipe(2) hands back.
func NewPipe() *Pipe {
	p := &Pipe{buf: newCircbuf(pipeBufSize), readers: 1, writers: 1}
	p.cond = sync.NewCond(&p.mu)
	return p
}

/// ReadEnd returns a File-like handle for the pipe's read side.
func (p *Pipe) ReadEnd() *PipeEnd { return &PipeEnd{p: p, isRead: true} }

/// WriteEnd returns a File-like handle for the pipe's write side.
func (p *Pipe) WriteEnd() *PipeEnd { return &PipeEnd{p: p, isRead: false} }

func (p *Pipe) closeReader() {
	p.mu.Lock()
	p.readers--
	if p.readers == 0 {
		p.readClosed = true
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Pipe) closeWriter() {
	p.mu.Lock()
	p.writers--
	if p.writers == 0 {
		p.writeClosed = true
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Pipe) read(dst Userio) (int, defs.Err_t) {
	if !res.Resadd_noblock(bounds.B_PIPE_T_READ) {
		return 0, defs.ENOHEAP
	}
	defer res.Resdone(bounds.B_PIPE_T_READ)

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.buf.empty() && !p.writeClosed {
		p.cond.Wait()
	}
	if p.buf.empty() && p.writeClosed {
		return 0, 0 // EOF
	}
	n, err := p.buf.copyout(dst, dst.Remain())
	p.cond.Broadcast()
	return n, err
}

func (p *Pipe) write(src Userio) (int, defs.Err_t) {
	if !res.Resadd_noblock(bounds.B_PIPE_T_WRITE) {
		return 0, defs.ENOHEAP
	}
	defer res.Resdone(bounds.B_PIPE_T_WRITE)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readClosed {
		return 0, defs.EPIPE
	}
	total := 0
	for src.Remain() > 0 {
		for p.buf.full() && !p.readClosed {
			p.cond.Wait()
		}
		if p.readClosed {
			if total > 0 {
				return total, 0
			}
			return 0, defs.EPIPE
		}
		n, err := p.buf.copyin(src)
		total += n
		p.cond.Broadcast()
		if err != 0 {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, 0
}

/// PipeEnd is a File-shaped handle onto one side of a Pipe, installed
/// into a process's file descriptor table.
type PipeEnd struct {
	p      *Pipe
	isRead bool
	closed bool
}

func (e *PipeEnd) Read(dst Userio) (int, defs.Err_t) {
	if !e.isRead {
		return 0, defs.EINVAL
	}
	return e.p.read(dst)
}

func (e *PipeEnd) Write(src Userio) (int, defs.Err_t) {
	if e.isRead {
		return 0, defs.EINVAL
	}
	return e.p.write(src)
}

func (e *PipeEnd) Seek(offset int64, whence int) (int64, defs.Err_t) {
	return 0, defs.ESPIPE
}

func (e *PipeEnd) Stat(st *vfs.Stat_t) defs.Err_t {
	st.Wmode(vfs.S_IFIFO | 0600)
	return 0
}

func (e *PipeEnd) Close() defs.Err_t {
	if e.closed {
		return 0
	}
	e.closed = true
	if e.isRead {
		e.p.closeReader()
	} else {
		e.p.closeWriter()
	}
	return 0
}

/// Readable reports whether a read would not block (data present or
/// writer side closed), for select/poll/epoll.
func (e *PipeEnd) Readable() bool {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return !e.p.buf.empty() || e.p.writeClosed
}

/// Writable reports whether a write would not block, for select/poll/epoll.
func (e *PipeEnd) Writable() bool {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return !e.p.buf.full() || e.p.readClosed
}
