// Package defs holds the scalar types and error numbering shared by every
// layer of the kernel, the way biscuit's own defs package anchors its
// Err_t/Tid_t/Pa_t vocabulary for the rest of the tree.
package defs

import "golang.org/x/sys/unix"

/// Err_t is an errno value, biscuit's convention: a successful call
/// returns 0, a failed one returns the positive errno magnitude, which
/// ToErrno negates into the value the syscall layer writes to a0/r4.
type Err_t int

// The errno subset enumerated in spec.md §7, numbered from
// golang.org/x/sys/unix so the values match the Linux ABI this kernel
// targets instead of being hand-picked.
const (
	EPERM           = Err_t(unix.EPERM)
	ENOENT          = Err_t(unix.ENOENT)
	ESRCH           = Err_t(unix.ESRCH)
	EINTR           = Err_t(unix.EINTR)
	EIO             = Err_t(unix.EIO)
	ENXIO           = Err_t(unix.ENXIO)
	EBADF           = Err_t(unix.EBADF)
	EAGAIN          = Err_t(unix.EAGAIN)
	ENOMEM          = Err_t(unix.ENOMEM)
	EACCES          = Err_t(unix.EACCES)
	EFAULT          = Err_t(unix.EFAULT)
	EBUSY           = Err_t(unix.EBUSY)
	EEXIST          = Err_t(unix.EEXIST)
	EXDEV           = Err_t(unix.EXDEV)
	ENODEV          = Err_t(unix.ENODEV)
	ENOTDIR         = Err_t(unix.ENOTDIR)
	EISDIR          = Err_t(unix.EISDIR)
	EINVAL          = Err_t(unix.EINVAL)
	EMFILE          = Err_t(unix.EMFILE)
	ENFILE          = Err_t(unix.ENFILE)
	ENOTTY          = Err_t(unix.ENOTTY)
	ESPIPE          = Err_t(unix.ESPIPE)
	EROFS           = Err_t(unix.EROFS)
	EMLINK          = Err_t(unix.EMLINK)
	EPIPE           = Err_t(unix.EPIPE)
	ERANGE          = Err_t(unix.ERANGE)
	EDEADLK         = Err_t(unix.EDEADLK)
	ENAMETOOLONG    = Err_t(unix.ENAMETOOLONG)
	ENOSYS          = Err_t(unix.ENOSYS)
	ENOTEMPTY       = Err_t(unix.ENOTEMPTY)
	ELOOP           = Err_t(unix.ELOOP)
	ENODATA         = Err_t(unix.ENODATA)
	EOVERFLOW       = Err_t(unix.EOVERFLOW)
	ENOTSOCK        = Err_t(unix.ENOTSOCK)
	EPROTONOSUPPORT = Err_t(unix.EPROTONOSUPPORT)
	EOPNOTSUPP      = Err_t(unix.EOPNOTSUPP)
	EADDRINUSE      = Err_t(unix.EADDRINUSE)
	EADDRNOTAVAIL   = Err_t(unix.EADDRNOTAVAIL)
	ECONNREFUSED    = Err_t(unix.ECONNREFUSED)
	ECONNRESET      = Err_t(unix.ECONNRESET)
	EISCONN         = Err_t(unix.EISCONN)
	ENOTCONN        = Err_t(unix.ENOTCONN)
	ESTALE          = Err_t(unix.ESTALE)
	ECANCELED       = Err_t(unix.ECANCELED)
	ECHILD          = Err_t(unix.ECHILD)
	ENOEXEC         = Err_t(unix.ENOEXEC)
	E2BIG           = Err_t(unix.E2BIG)
	// ENOHEAP is biscuit's own addition: the IRQ-safe resource admission
	// gate (package res) is out of headroom. It maps to ENOMEM on the
	// syscall ABI since Linux has no equivalent errno.
	ENOHEAP = Err_t(-9000)
)

/// ToErrno converts a kernel Err_t (positive magnitude) to the negative
/// value the syscall ABI returns in a0/r4.
func (e Err_t) ToErrno() int64 {
	if e == 0 {
		return 0
	}
	if e == ENOHEAP {
		return -int64(ENOMEM)
	}
	return -int64(e)
}

/// FromUnix maps a golang.org/x/sys/unix Errno into the kernel's Err_t
/// space; nothing in this tree calls it, since no backend performs host
/// I/O.
func FromUnix(err error) Err_t {
	if err == nil {
		return 0
	}
	if errno, ok := err.(unix.Errno); ok {
		return Err_t(errno)
	}
	return EIO
}

/// Tid_t is a thread id; the thread-group leader's Tid_t is its pid.
type Tid_t int

/// Pid_t is a process id (an alias of its leader's Tid_t).
type Pid_t int

/// Pa_t is a physical address or frame number, depending on context;
/// kept distinct from Go's uintptr so page-table code cannot accidentally
/// mix virtual and physical values.
type Pa_t uintptr
