package syscall

import (
	"context"

	"flyeros/defs"
	"flyeros/specialfiles"
	"flyeros/task"
	"flyeros/vfs"
	"flyeros/vm"
)

const dirfdCwd = -100 // AT_FDCWD

// resolveDir only honors AT_FDCWD; resolving an *at(2) call relative to
// an arbitrary open directory fd is not yet implemented (see
// DESIGN.md), so any other dirfd falls back to the caller's cwd.
func resolveDir(t *task.Task, dirfd int) *vfs.Dentry {
	return t.Group.Cwd
}

func sysOpenat(ctx context.Context, mounts *vfs.MountTable, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	path, err := readUserPath(t.Group.AS, uintptr(a[1]))
	if err != 0 {
		return 0, err
	}
	flags := int(a[2])
	mode := uint32(a[3])
	cwd := resolveDir(t, int(int32(a[0])))

	dent, werr := mounts.Walk(cwd, path)
	if werr == defs.ENOENT && flags&defs.O_CREAT != 0 {
		parent, leaf, perr := mounts.WalkParent(cwd, path)
		if perr != 0 {
			return 0, perr
		}
		dir, ok := parent.Inode().(vfs.Directory)
		if !ok {
			return 0, defs.ENOTDIR
		}
		dent, werr = dir.Create(leaf, mode&^uint32(defs.O_DIRECTORY))
	}
	if werr != 0 {
		return 0, werr
	}

	reg, ok := dent.Inode().(vfs.RegularFile)
	if !ok {
		return 0, defs.EISDIR
	}
	if flags&defs.O_TRUNC != 0 {
		reg.Truncate(0)
	}
	gf := vfs.OpenRegular(reg, flags)
	fdFlags := 0
	if flags&defs.O_CLOEXEC != 0 {
		fdFlags = task.FD_CLOEXEC
	}
	fdno, ierr := t.Group.Fds.Install(gf, fdFlags, 0)
	return int64(fdno), ierr
}

func sysPipe2(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	p := specialfiles.NewPipe()

	rfd, err := t.Group.Fds.Install(p.ReadEnd(), 0, 0)
	if err != 0 {
		return 0, err
	}
	wfd, err := t.Group.Fds.Install(p.WriteEnd(), 0, 0)
	if err != 0 {
		t.Group.Fds.Close(rfd)
		return 0, err
	}

	buf := vm.GetUserBuf(t.Group.AS, uintptr(a[0]), 8, false)
	defer vm.PutUserBuf(buf)
	var pair [8]byte
	le32(pair[0:4], uint32(rfd))
	le32(pair[4:8], uint32(wfd))
	if _, werr := buf.Uiowrite(pair[:]); werr != 0 {
		return 0, werr
	}
	return 0, 0
}

func sysDup3(ctx context.Context, a Args) (int64, defs.Err_t) {
	t := task.FromContext(ctx)
	fd, err := t.Group.Fds.Get(int(a[0]))
	if err != 0 {
		return 0, err
	}
	newfd := int(a[1])
	flags := 0
	if a[2]&uint64(defs.O_CLOEXEC) != 0 {
		flags = task.FD_CLOEXEC
	}
	if newfd == int(a[0]) {
		return 0, defs.EINVAL
	}
	if ierr := t.Group.Fds.InstallAt(newfd, fd.File, flags); ierr != 0 {
		return 0, ierr
	}
	return int64(newfd), 0
}

func le32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
