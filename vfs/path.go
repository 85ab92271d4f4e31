package vfs

import (
	"strings"

	"flyeros/defs"
	"flyeros/ustr"
)

// maxSymlinkDepth bounds symlink-following recursion in Walk the same
// way Linux's MAXSYMLINKS does, so a symlink loop fails with ELOOP
// instead of recursing forever.
const maxSymlinkDepth = 40

/// Walk resolves path (absolute or relative to cwd) to a dentry,
/// consulting and populating mt's dentry cache and calling into each
/// Directory's Lookup on a cache miss (spec.md §4.4 path resolution).
func (mt *MountTable) Walk(cwd *Dentry, path ustr.Ustr) (*Dentry, defs.Err_t) {
	return mt.walkDepth(cwd, path, 0)
}

func (mt *MountTable) walkDepth(cwd *Dentry, path ustr.Ustr, depth int) (*Dentry, defs.Err_t) {
	if depth > maxSymlinkDepth {
		return nil, defs.ELOOP
	}

	cur := cwd
	if path.IsAbsolute() {
		cur = mt.root
	}
	cur = cur.Resolve()

	for _, comp := range path.Components() {
		if comp.Isdot() {
			continue
		}
		if comp.Isdotdot() {
			if p := cur.Parent(); p != nil {
				cur = p.Resolve()
			}
			continue
		}

		name := comp.String()
		if d, ok := mt.dcache.Get(cur, name); ok {
			cur = d.Resolve()
			continue
		}

		dir, ok := cur.Inode().(Directory)
		if !ok {
			return nil, defs.ENOTDIR
		}
		next, err := dir.Lookup(name)
		if err != 0 {
			return nil, err
		}
		mt.dcache.Put(cur, name, next)

		if sl, ok := next.Inode().(Symlink); ok {
			target, err := sl.ReadLink()
			if err != 0 {
				return nil, err
			}
			resolved, err := mt.walkDepth(cur, ustr.Ustr(target), depth+1)
			if err != 0 {
				return nil, err
			}
			cur = resolved
			continue
		}
		cur = next.Resolve()
	}
	return cur, 0
}

/// WalkParent resolves path down to its final component's parent
/// directory, returning that directory dentry and the leaf name —
/// used by create/unlink/mkdir/rename, which need the parent directory
/// and a name rather than a fully resolved dentry.
func (mt *MountTable) WalkParent(cwd *Dentry, path ustr.Ustr) (parent *Dentry, leaf string, err defs.Err_t) {
	comps := path.Components()
	if len(comps) == 0 {
		return nil, "", defs.EINVAL
	}
	leafComp := comps[len(comps)-1]
	if leafComp.Isdot() || leafComp.Isdotdot() {
		return nil, "", defs.EINVAL
	}

	names := make([]string, len(comps)-1)
	for i, c := range comps[:len(comps)-1] {
		names[i] = c.String()
	}
	dirStr := strings.Join(names, "/")
	if path.IsAbsolute() {
		dirStr = "/" + dirStr
	} else if dirStr == "" {
		dirStr = "."
	}

	p, werr := mt.Walk(cwd, ustr.Ustr(dirStr))
	if werr != 0 {
		return nil, "", werr
	}
	return p, leafComp.String(), 0
}
