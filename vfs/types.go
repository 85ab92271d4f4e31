// Package vfs implements the filesystem-independent core spec.md §5
// names: the inode/dentry abstraction, path walking, the mount table,
// and the File handle syscalls operate on. Concrete filesystems (in
// this tree only fs/tmpfs) satisfy the Inode family of interfaces; vfs
// itself never depends on any of them. Grounded on biscuit's fs package split (Superblock_t field
// layout in src/fs/super.go, the Fd_t/File_i file-handle split in
// src/fs/fs.go-adjacent files) generalized from biscuit's single
// on-disk ext2-like format to an interface every backend implements.
package vfs

import (
	"flyeros/defs"
	"flyeros/pagecache"
)

/// DirEntry is one entry returned by Directory.Readdir.
type DirEntry struct {
	Name  string
	Ino   uint64
	Type  uint32 // one of the S_IF* constants in stat.go
}

/// Inode is the minimum surface every filesystem object exposes,
/// regardless of whether it's a regular file, directory, device node,
/// or symlink.
type Inode interface {
	ID() uint64
	Stat(st *Stat_t) defs.Err_t
	// Superblock returns the owning filesystem instance, used to walk
	// back to the mount for statfs(2) and for cross-device rename
	// rejection (EXDEV).
	Superblock() Superblock
}

/// Directory is implemented by inodes whose Stat().Mode has S_IFDIR
/// set (spec.md §5 directory operations).
type Directory interface {
	Inode
	Lookup(name string) (*Dentry, defs.Err_t)
	Create(name string, mode uint32) (*Dentry, defs.Err_t)
	Mkdir(name string, mode uint32) (*Dentry, defs.Err_t)
	Unlink(name string) defs.Err_t
	Rmdir(name string) defs.Err_t
	Rename(oldName string, newParent Directory, newName string) defs.Err_t
	Readdir(offset int) ([]DirEntry, defs.Err_t)
	Link(name string, target Inode) defs.Err_t
}

/// RegularFile is implemented by inodes whose Stat().Mode has S_IFREG
/// set. It satisfies vm.FileBacking by construction (PageCache/ReadAt/
/// Size), so a file-backed VMA can reference any RegularFile without
/// vfs importing vm.
type RegularFile interface {
	Inode
	PageCache() *pagecache.PageCache
	ReadAt(dst []byte, off int64) (int, defs.Err_t)
	WriteAt(src []byte, off int64) (int, defs.Err_t)
	Size() int64
	Truncate(size int64) defs.Err_t
}

/// Symlink is implemented by inodes whose Stat().Mode has S_IFLNK set.
type Symlink interface {
	Inode
	ReadLink() (string, defs.Err_t)
}

/// Device is implemented by inodes representing a character or block
/// special file. No device backend in this tree implements it.
type Device interface {
	Inode
	Open(flags int) (File, defs.Err_t)
}

/// File is an open file description: the object fd tables reference,
/// tracking its own offset independent of other opens of the same
/// inode (spec.md §5; grounded on biscuit's Fd_t/fdops split).
type File interface {
	Read(dst Userio) (int, defs.Err_t)
	Write(src Userio) (int, defs.Err_t)
	Seek(offset int64, whence int) (int64, defs.Err_t)
	Stat(st *Stat_t) defs.Err_t
	Close() defs.Err_t
	Inode() Inode
}

/// Userio is the minimal copy surface File.Read/Write need; it's
/// satisfied by vm.UserBuf, vm.Useriovec, and vm.FakeUserBuf without vfs
/// importing vm. Aliased to defs.Userio so the identity matches exactly
/// across package boundaries instead of merely looking alike.
type Userio = defs.Userio

// Seek whence values, matching lseek(2).
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

/// Superblock is one mounted filesystem instance.
type Superblock interface {
	Root() *Dentry
	FSType() string
	// Sync flushes any dirty in-memory state to the backing device (a
	// no-op for purely in-memory filesystems like tmpfs).
	Sync() defs.Err_t
}

/// FileSystemType is a filesystem driver registered by name (spec.md
/// §5 mount); tmpfs is the only one registered in this tree. Grounded on biscuit's single hardwired ext2-like fs; this
/// generalizes it to a pluggable registry the way Linux's
/// register_filesystem does.
type FileSystemType interface {
	Name() string
	// Mount constructs a Superblock from the given source (a block
	// device path, or empty for in-memory filesystems) and options.
	Mount(source string, opts map[string]string) (Superblock, defs.Err_t)
}

var fsTypes = map[string]FileSystemType{}

/// RegisterFileSystem adds a filesystem driver to the registry mount(2)
/// consults by name.
func RegisterFileSystem(t FileSystemType) {
	fsTypes[t.Name()] = t
}

/// LookupFileSystemType returns the registered driver for name, if any.
func LookupFileSystemType(name string) (FileSystemType, bool) {
	t, ok := fsTypes[name]
	return t, ok
}
