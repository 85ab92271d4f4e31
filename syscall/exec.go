package syscall

import (
	"context"

	"flyeros/defs"
	"flyeros/task"
	"flyeros/vfs"
)

// Execve implements the exec.c "point of no return" spec.md §4.6 names:
// load a fresh ELF image and stack into a brand-new AddressSpace, then
// swap it in for the calling thread group's current one, dropping the
// old image's mappings along with it. It's exported (rather than a
// Dispatch case) because trap.Handle, not syscall.Dispatch, owns the
// trapped Frame whose PC/SP must move to the new entry point — the same
// reason rt_sigreturn is special-cased there instead of here.
func Execve(ctx context.Context, sys Subsystems, a Args) (entry, sp uintptr, err defs.Err_t) {
	t := task.FromContext(ctx)
	as := t.Group.AS

	path, perr := readUserPath(as, uintptr(a[0]))
	if perr != 0 {
		return 0, 0, perr
	}
	argv, aerr := readUserStringVec(as, uintptr(a[1]))
	if aerr != 0 {
		return 0, 0, aerr
	}
	envp, eerr := readUserStringVec(as, uintptr(a[2]))
	if eerr != 0 {
		return 0, 0, eerr
	}

	dent, werr := sys.Mounts.Walk(t.Group.Cwd, path)
	if werr != 0 {
		return 0, 0, werr
	}
	reg, ok := dent.Inode().(vfs.RegularFile)
	if !ok {
		return 0, 0, defs.EACCES
	}
	image := make([]byte, reg.Size())
	n, rerr := reg.ReadAt(image, 0)
	if rerr != 0 {
		return 0, 0, rerr
	}
	image = image[:n]

	newAS, nerr := as.NewChild()
	if nerr != 0 {
		return 0, 0, nerr
	}
	entry, lerr := newAS.LoadELF(image)
	if lerr != 0 {
		return 0, 0, lerr
	}
	if len(argv) == 0 {
		argv = [][]byte{[]byte(path)}
	}
	sp, serr := newAS.InitStack(newAS.UserMax(), argv, envp)
	if serr != 0 {
		return 0, 0, serr
	}

	t.Group.AS = newAS
	t.Group.Fds.CloseOnExec()
	t.Group.Handlers.ResetForExec()
	return entry, sp, 0
}
