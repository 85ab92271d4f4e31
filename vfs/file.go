package vfs

import (
	"sync"

	"flyeros/defs"
)

/// GenericFile is the File implementation used for every regular-file
/// open: it tracks its own offset and serializes Read/Write/Seek the
/// way POSIX requires for a single file description (spec.md §5).
/// Grounded on biscuit's Fd_t, which pairs an offset with a pointer to
/// the shared in-core inode the same way.
type GenericFile struct {
	mu     sync.Mutex
	reg    RegularFile
	offset int64
	flags  int
}

/// OpenRegular wraps reg in a fresh file description positioned at the
/// start. If flags carries O_APPEND, Write moves the offset to the end
/// of the file before each write.
func OpenRegular(reg RegularFile, flags int) *GenericFile {
	return &GenericFile{reg: reg, flags: flags}
}

func (f *GenericFile) Inode() Inode { return f.reg }

func (f *GenericFile) Read(dst Userio) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, dst.Remain())
	n, err := f.reg.ReadAt(buf, f.offset)
	if err != 0 && n == 0 {
		return 0, err
	}
	wn, werr := dst.Uiowrite(buf[:n])
	f.offset += int64(wn)
	if werr != 0 {
		return wn, werr
	}
	return wn, 0
}

func (f *GenericFile) Write(src Userio) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flags&defs.O_APPEND != 0 {
		f.offset = f.reg.Size()
	}
	buf := make([]byte, src.Remain())
	rn, rerr := src.Uioread(buf)
	if rerr != 0 && rn == 0 {
		return 0, rerr
	}
	n, err := f.reg.WriteAt(buf[:rn], f.offset)
	f.offset += int64(n)
	if err != 0 {
		return n, err
	}
	return n, 0
}

func (f *GenericFile) Seek(offset int64, whence int) (int64, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = f.offset
	case SeekEnd:
		base = f.reg.Size()
	default:
		return 0, defs.EINVAL
	}
	newOff := base + offset
	if newOff < 0 {
		return 0, defs.EINVAL
	}
	f.offset = newOff
	return newOff, 0
}

func (f *GenericFile) Stat(st *Stat_t) defs.Err_t {
	return f.reg.Stat(st)
}

func (f *GenericFile) Close() defs.Err_t {
	return 0
}
