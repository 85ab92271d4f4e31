package vfs

import "unsafe"

// File mode bits, the subset spec.md §6 syscalls need to report.
const (
	S_IFMT  = 0170000
	S_IFREG = 0100000
	S_IFDIR = 0040000
	S_IFCHR = 0020000
	S_IFBLK = 0060000
	S_IFIFO = 0010000
	S_IFLNK = 0120000
)

/// Stat_t mirrors a file's stat(2)/statx(2) information. Grounded on
/// biscuit's stat.Stat_t: private fields behind write/read accessor
/// methods plus a raw Bytes view for copying straight into a user
/// buffer, extended with the nlink/gid/atime/ctime/blksize fields a
/// modern statx(2) caller expects that biscuit's single-user-process
/// kernel never populated.
type Stat_t struct {
	dev     uint64
	ino     uint64
	mode    uint32
	nlink   uint32
	uid     uint32
	gid     uint32
	rdev    uint64
	size    int64
	blksize int64
	blocks  int64
	atimeNs int64
	mtimeNs int64
	ctimeNs int64
}

func (st *Stat_t) Wdev(v uint64)     { st.dev = v }
func (st *Stat_t) Wino(v uint64)     { st.ino = v }
func (st *Stat_t) Wmode(v uint32)    { st.mode = v }
func (st *Stat_t) Wnlink(v uint32)   { st.nlink = v }
func (st *Stat_t) Wuid(v uint32)     { st.uid = v }
func (st *Stat_t) Wgid(v uint32)     { st.gid = v }
func (st *Stat_t) Wrdev(v uint64)    { st.rdev = v }
func (st *Stat_t) Wsize(v int64)     { st.size = v }
func (st *Stat_t) Wblksize(v int64)  { st.blksize = v }
func (st *Stat_t) Wblocks(v int64)   { st.blocks = v }
func (st *Stat_t) Watime(ns int64)   { st.atimeNs = ns }
func (st *Stat_t) Wmtime(ns int64)   { st.mtimeNs = ns }
func (st *Stat_t) Wctime(ns int64)   { st.ctimeNs = ns }

func (st *Stat_t) Mode() uint32 { return st.mode }
func (st *Stat_t) Size() int64  { return st.size }
func (st *Stat_t) Rdev() uint64 { return st.rdev }
func (st *Stat_t) Rino() uint64 { return st.ino }
func (st *Stat_t) IsDir() bool  { return st.mode&S_IFMT == S_IFDIR }
func (st *Stat_t) IsReg() bool  { return st.mode&S_IFMT == S_IFREG }

/// Bytes exposes the struct's raw bytes for a direct copy into a user
/// stat buffer, same trick as biscuit's Stat_t.Bytes.
func (st *Stat_t) Bytes() []byte {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]byte)(unsafe.Pointer(st))
	return sl[:]
}
