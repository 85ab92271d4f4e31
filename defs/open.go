package defs

import "golang.org/x/sys/unix"

// Open(2) flag bits, numbered from golang.org/x/sys/unix for the same
// reason the errno block is: this kernel's syscall ABI matches Linux's,
// so the flag values must too.
const (
	O_RDONLY  = unix.O_RDONLY
	O_WRONLY  = unix.O_WRONLY
	O_RDWR    = unix.O_RDWR
	O_CREAT   = unix.O_CREAT
	O_EXCL    = unix.O_EXCL
	O_TRUNC   = unix.O_TRUNC
	O_APPEND  = unix.O_APPEND
	O_NONBLOCK = unix.O_NONBLOCK
	O_DIRECTORY = unix.O_DIRECTORY
	O_CLOEXEC = unix.O_CLOEXEC
	O_NOFOLLOW = unix.O_NOFOLLOW
)
