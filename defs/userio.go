package defs

/// Userio is the common copy surface every layer that moves bytes
/// to/from a caller — vm.UserBuf, vfs.GenericFile, specialfiles.PipeEnd,
/// task.FdTable's FileLike — reads and writes through. It lives in defs,
/// the one package every other package already imports, so the
/// vm/vfs/task/specialfiles packages can each declare their own `Userio`
/// name as an alias to this single type instead of four structurally
/// identical but distinct interfaces that wouldn't satisfy each other's
/// method signatures across package boundaries.
type Userio interface {
	Uioread(dst []byte) (int, Err_t)
	Uiowrite(src []byte) (int, Err_t)
	Remain() int
	Total() int
}
