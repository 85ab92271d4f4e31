// Package specialfiles implements the non-filesystem File
// implementations spec.md §6 names: pipes and (eventually) eventfd,
// signalfd, timerfd, memfd. Grounded on the teacher kernel's circbuf
// package (biscuit/src/circbuf/circbuf.go) for the ring-buffer index
// arithmetic, generalized from a lazily-paged buffer keyed to a single
// physical page to a plain byte slice sized at pipe-creation time,
// since this hosted kernel has no DMA/TCP reuse case driving circbuf's
// raw dual-slice Rawread/Rawwrite accessors.
package specialfiles

import (
	"flyeros/defs"
)

// Userio is the same copy surface vfs.Userio/vm.Userio/task.Userio
// alias; aliased here too rather than imported so this package depends
// on neither vfs, vm, nor task for it, while still satisfying
// task.FileLike's Read/Write parameter type exactly.
type Userio = defs.Userio

/// circbuf is a fixed-capacity byte ring buffer. Not safe for
/// concurrent use; callers (pipe) hold their own lock around it.
type circbuf struct {
	buf        []byte
	head, tail int
}

func newCircbuf(size int) *circbuf {
	return &circbuf{buf: make([]byte, size)}
}

func (cb *circbuf) full() bool  { return cb.head-cb.tail == len(cb.buf) }
func (cb *circbuf) empty() bool { return cb.head == cb.tail }
func (cb *circbuf) used() int   { return cb.head - cb.tail }
func (cb *circbuf) left() int   { return len(cb.buf) - cb.used() }

/// copyin reads from src into the buffer, same wraparound-aware
/// two-span logic as biscuit's Circbuf_t.Copyin.
func (cb *circbuf) copyin(src Userio) (int, defs.Err_t) {
	if cb.full() {
		return 0, 0
	}
	bufsz := len(cb.buf)
	hi := cb.head % bufsz
	ti := cb.tail % bufsz
	c := 0
	if ti <= hi {
		dst := cb.buf[hi:]
		wrote, err := src.Uioread(dst)
		if err != 0 {
			return 0, err
		}
		if wrote != len(dst) {
			cb.head += wrote
			return wrote, 0
		}
		c += wrote
		hi = (cb.head + wrote) % bufsz
	}
	dst := cb.buf[hi:ti]
	wrote, err := src.Uioread(dst)
	c += wrote
	if err != 0 {
		return c, err
	}
	cb.head += c
	return c, 0
}

/// copyout writes up to max bytes (0 meaning unlimited) of the buffer's
/// contents to dst, same as biscuit's Circbuf_t.Copyout_n.
func (cb *circbuf) copyout(dst Userio, max int) (int, defs.Err_t) {
	if cb.empty() {
		return 0, 0
	}
	bufsz := len(cb.buf)
	hi := cb.head % bufsz
	ti := cb.tail % bufsz
	c := 0
	if hi <= ti {
		src := cb.buf[ti:]
		if max != 0 && max < len(src) {
			src = src[:max]
		}
		wrote, err := dst.Uiowrite(src)
		if err != 0 {
			return 0, err
		}
		if wrote != len(src) || wrote == max {
			cb.tail += wrote
			return wrote, 0
		}
		c += wrote
		if max != 0 {
			max -= c
		}
		ti = (cb.tail + wrote) % bufsz
	}
	src := cb.buf[ti:hi]
	if max != 0 && max < len(src) {
		src = src[:max]
	}
	wrote, err := dst.Uiowrite(src)
	if err != 0 {
		return 0, err
	}
	c += wrote
	cb.tail += c
	return c, 0
}
