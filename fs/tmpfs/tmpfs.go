// Package tmpfs implements an in-memory filesystem satisfying the
// vfs.Directory/vfs.RegularFile/vfs.Symlink interfaces (spec.md §5):
// the root filesystem this kernel mounts at boot before any block
// device is available, the same role biscuit's initial in-memory
// layout plays before its ext2-like disk filesystem takes over.
// Grounded on biscuit's fs.Superblock_t for the Superblock shape and
// on the generic vfs.Inode family this module defines, since no
// example repo carries a ready-made tmpfs to copy from directly.
package tmpfs

import (
	"sync"
	"sync/atomic"

	"flyeros/defs"
	"flyeros/mem"
	"flyeros/pagecache"
	"flyeros/vfs"
)

var nextIno atomic.Uint64

func allocIno() uint64 { return nextIno.Add(1) }

/// Superblock is one tmpfs mount's root.
type Superblock struct {
	root  *vfs.Dentry
	alloc *mem.Allocator
}

func (sb *Superblock) Root() *vfs.Dentry { return sb.root }
func (sb *Superblock) FSType() string    { return "tmpfs" }
func (sb *Superblock) Sync() defs.Err_t  { return 0 } // nothing to flush, it's memory-only

/// FSType registers tmpfs with the vfs.FileSystemType registry.
type FSType struct {
	alloc *mem.Allocator
}

/// New creates a tmpfs driver backed by alloc's frame pool.
func New(alloc *mem.Allocator) *FSType { return &FSType{alloc: alloc} }

func (t *FSType) Name() string { return "tmpfs" }

func (t *FSType) Mount(source string, opts map[string]string) (vfs.Superblock, defs.Err_t) {
	sb := &Superblock{alloc: t.alloc}
	root := &Dir{base: base{ino: allocIno(), mode: vfs.S_IFDIR | 0755, sb: sb}, children: make(map[string]*vfs.Dentry)}
	sb.root = vfs.NewDentry(nil, "/", root, sb)
	root.self = sb.root
	return sb, 0
}

type base struct {
	mu     sync.Mutex
	ino    uint64
	mode   uint32
	nlink  uint32
	uid    uint32
	gid    uint32
	sb     *Superblock
}

func (b *base) ID() uint64             { return b.ino }
func (b *base) Superblock() vfs.Superblock { return b.sb }

func (b *base) statCommon(st *vfs.Stat_t) {
	st.Wino(b.ino)
	st.Wmode(b.mode)
	st.Wnlink(b.nlink)
	st.Wuid(b.uid)
	st.Wgid(b.gid)
}

/// Dir is a tmpfs directory inode.
type Dir struct {
	base
	self     *vfs.Dentry // this directory's own dentry, for ".." resolution
	children map[string]*vfs.Dentry
}

func (d *Dir) Stat(st *vfs.Stat_t) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statCommon(st)
	st.Wsize(int64(len(d.children)))
	return 0
}

func (d *Dir) Lookup(name string) (*vfs.Dentry, defs.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.children[name]
	if !ok {
		return nil, defs.ENOENT
	}
	return c, 0
}

func (d *Dir) Create(name string, mode uint32) (*vfs.Dentry, defs.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.children[name]; exists {
		return nil, defs.EEXIST
	}
	f := &File{base: base{ino: allocIno(), mode: vfs.S_IFREG | (mode &^ vfs.S_IFMT), nlink: 1, sb: d.sb}}
	f.pc = pagecache.New(d.sb.alloc)
	dent := vfs.NewDentry(d.self, name, f, d.sb)
	d.children[name] = dent
	return dent, 0
}

func (d *Dir) Mkdir(name string, mode uint32) (*vfs.Dentry, defs.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.children[name]; exists {
		return nil, defs.EEXIST
	}
	nd := &Dir{base: base{ino: allocIno(), mode: vfs.S_IFDIR | (mode &^ vfs.S_IFMT), nlink: 2, sb: d.sb}, children: make(map[string]*vfs.Dentry)}
	dent := vfs.NewDentry(d.self, name, nd, d.sb)
	nd.self = dent
	d.children[name] = dent
	return dent, 0
}

func (d *Dir) Unlink(name string) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.children[name]
	if !ok {
		return defs.ENOENT
	}
	if _, isDir := c.Inode().(*Dir); isDir {
		return defs.EISDIR
	}
	delete(d.children, name)
	return 0
}

func (d *Dir) Rmdir(name string) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.children[name]
	if !ok {
		return defs.ENOENT
	}
	sub, isDir := c.Inode().(*Dir)
	if !isDir {
		return defs.ENOTDIR
	}
	sub.mu.Lock()
	empty := len(sub.children) == 0
	sub.mu.Unlock()
	if !empty {
		return defs.ENOTEMPTY
	}
	delete(d.children, name)
	return 0
}

func (d *Dir) Rename(oldName string, newParent vfs.Directory, newName string) defs.Err_t {
	nd, ok := newParent.(*Dir)
	if !ok {
		return defs.EXDEV
	}
	d.mu.Lock()
	c, exists := d.children[oldName]
	if !exists {
		d.mu.Unlock()
		return defs.ENOENT
	}
	delete(d.children, oldName)
	d.mu.Unlock()

	if nd != d {
		nd.mu.Lock()
		nd.children[newName] = c
		nd.mu.Unlock()
	} else {
		d.mu.Lock()
		d.children[newName] = c
		d.mu.Unlock()
	}
	return 0
}

func (d *Dir) Link(name string, target vfs.Inode) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.children[name]; exists {
		return defs.EEXIST
	}
	d.children[name] = vfs.NewDentry(d.self, name, target, d.sb)
	return 0
}

func (d *Dir) Readdir(offset int) ([]vfs.DirEntry, defs.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := make([]vfs.DirEntry, 0, len(d.children))
	for name, c := range d.children {
		var st vfs.Stat_t
		c.Inode().Stat(&st)
		entries = append(entries, vfs.DirEntry{Name: name, Ino: c.Inode().ID(), Type: st.Mode() & vfs.S_IFMT})
	}
	if offset >= len(entries) {
		return nil, 0
	}
	return entries[offset:], 0
}

/// File is a tmpfs regular file inode, backed by a page cache rather
/// than a contiguous slice so sparse writes and mmap share the same
/// page-granular storage the rest of the kernel uses (spec.md §4.4
/// B_PAGECACHE_T_GETORCREATE).
type File struct {
	base
	pc   *pagecache.PageCache
	size int64
}

func (f *File) Stat(st *vfs.Stat_t) defs.Err_t {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statCommon(st)
	st.Wsize(f.size)
	return 0
}

func (f *File) PageCache() *pagecache.PageCache { return f.pc }
func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *File) ReadAt(dst []byte, off int64) (int, defs.Err_t) {
	f.mu.Lock()
	size := f.size
	f.mu.Unlock()
	if off >= size {
		return 0, 0
	}
	total := 0
	for total < len(dst) && off+int64(total) < size {
		pageOff := (off + int64(total)) &^ (mem.PGSIZE - 1)
		p, err := f.pc.GetOrCreate(pageOff, pagecache.FileBacked, nil)
		if err != 0 {
			return total, err
		}
		inPage := int(off+int64(total)) % mem.PGSIZE
		n := copy(dst[total:], p.Bytes()[inPage:])
		remain := size - (off + int64(total))
		if int64(n) > remain {
			n = int(remain)
		}
		total += n
		if n == 0 {
			break
		}
	}
	return total, 0
}

func (f *File) WriteAt(src []byte, off int64) (int, defs.Err_t) {
	total := 0
	for total < len(src) {
		pageOff := (off + int64(total)) &^ (mem.PGSIZE - 1)
		p, err := f.pc.GetOrCreate(pageOff, pagecache.FileBacked, nil)
		if err != 0 {
			return total, err
		}
		inPage := int(off+int64(total)) % mem.PGSIZE
		n := copy(p.Bytes()[inPage:], src[total:])
		total += n
		if n == 0 {
			break
		}
	}
	f.mu.Lock()
	if end := off + int64(total); end > f.size {
		f.size = end
	}
	f.mu.Unlock()
	return total, 0
}

func (f *File) Truncate(size int64) defs.Err_t {
	f.mu.Lock()
	defer f.mu.Unlock()
	if size < f.size {
		f.pc.Truncate(size &^ (mem.PGSIZE - 1))
	}
	f.size = size
	return 0
}

/// Symlink is a tmpfs symbolic link inode.
type Symlink struct {
	base
	target string
}

func (s *Symlink) Stat(st *vfs.Stat_t) defs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statCommon(st)
	st.Wsize(int64(len(s.target)))
	return 0
}

func (s *Symlink) ReadLink() (string, defs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, 0
}
