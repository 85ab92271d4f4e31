package vfs

import (
	"sync"

	"flyeros/defs"
)

/// MountTable owns the root dentry and every mounted filesystem, and
/// serializes mount/unmount against concurrent path walks (spec.md §5
/// mount). Grounded on biscuit's single hardwired root filesystem,
/// generalized to the pluggable multi-mount model Linux's namespace
/// struct provides, since spec.md names mount/unmount as first-class
/// VFS operations rather than boot-time-only setup.
type MountTable struct {
	mu     sync.RWMutex
	root   *Dentry
	mounts []*Mount
	dcache *DentryCache
}

/// NewMountTable creates a mount table whose root filesystem is
/// rootSb's root dentry.
func NewMountTable(rootSb Superblock) *MountTable {
	mt := &MountTable{dcache: NewDentryCache()}
	root := rootSb.Root()
	mt.mounts = []*Mount{{Sb: rootSb, Root: root, MountPoint: nil}}
	mt.root = root
	return mt
}

/// Root returns the filesystem root dentry.
func (mt *MountTable) Root() *Dentry { return mt.root }

/// DentryCache returns the table's shared dentry cache, consulted by
/// Walk.
func (mt *MountTable) DentryCache() *DentryCache { return mt.dcache }

/// Mount attaches the filesystem named fstype, constructed from source
/// and opts, at target (spec.md §5 mount). target must be an empty
/// directory dentry not already a mount point.
func (mt *MountTable) Mount(target *Dentry, fstype, source string, opts map[string]string) defs.Err_t {
	t, ok := LookupFileSystemType(fstype)
	if !ok {
		return defs.ENODEV
	}
	sb, err := t.Mount(source, opts)
	if err != 0 {
		return err
	}
	dir, ok := target.Inode().(Directory)
	if !ok {
		return defs.ENOTDIR
	}
	_ = dir

	target.mu.Lock()
	if target.mounted != nil {
		target.mu.Unlock()
		return defs.EBUSY
	}
	m := &Mount{Sb: sb, Root: sb.Root(), MountPoint: target}
	target.mounted = m
	target.mu.Unlock()

	mt.mu.Lock()
	mt.mounts = append(mt.mounts, m)
	mt.mu.Unlock()
	return 0
}

/// Unmount detaches the filesystem mounted at target.
func (mt *MountTable) Unmount(target *Dentry) defs.Err_t {
	target.mu.Lock()
	m := target.mounted
	if m == nil {
		target.mu.Unlock()
		return defs.EINVAL
	}
	if err := m.Sb.Sync(); err != 0 {
		target.mu.Unlock()
		return err
	}
	target.mounted = nil
	target.mu.Unlock()

	mt.mu.Lock()
	for i, cand := range mt.mounts {
		if cand == m {
			mt.mounts = append(mt.mounts[:i], mt.mounts[i+1:]...)
			break
		}
	}
	mt.mu.Unlock()
	return 0
}
