package wimtree

import (
	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// NewDentryWithNewInode allocates a dentry naming a brand-new inode
// (spec.md §4.9 "new_dentry_with_new_inode").
func NewDentryWithNewInode(name string) (*Dentry, error) {
	n, err := encoding.NewNameFromString(name)
	if err != nil {
		return nil, err
	}
	d := &Dentry{Name: n}
	in := NewInode()
	in.addAlias(d)
	return d, nil
}

// NewDentryWithExistingInode allocates a new alias of an existing inode
// (spec.md §4.9 "new_dentry_with_existing_inode").
func NewDentryWithExistingInode(name string, inode *Inode) (*Dentry, error) {
	n, err := encoding.NewNameFromString(name)
	if err != nil {
		return nil, err
	}
	d := &Dentry{Name: n}
	inode.addAlias(d)
	return d, nil
}

// NewDentry links a new dentry named name to inode as an additional alias
// (spec.md §4.9), for callers that already hold a raw encoding.Name rather
// than a Go string — notably internal/codec/dentry, which must preserve the
// exact on-disk UTF-16 units rather than round-tripping through UTF-8.
func NewDentry(name encoding.Name, inode *Inode) *Dentry {
	d := &Dentry{Name: name}
	inode.addAlias(d)
	return d
}

// ReassignInode detaches d from its current inode, if any, and makes it an
// additional alias of inode instead, adjusting both inodes' Nlink. Used by
// the metadata codec's hard-link-group fixup pass, which merges the separate
// inodes initially created for each decoded dentry into one shared Inode per
// non-zero ino value (spec.md §3 "ino: hard-link group id").
func ReassignInode(d *Dentry, inode *Inode) {
	if d.Inode == inode {
		return
	}
	if d.Inode != nil {
		d.Inode.removeAlias(d)
	}
	inode.addAlias(d)
}

// NewFillerDirectory allocates an empty, attribute-only directory dentry
// used to fill in missing path components during Add (spec.md §4.9).
func NewFillerDirectory(name string) (*Dentry, error) {
	n, err := encoding.NewNameFromString(name)
	if err != nil {
		return nil, err
	}
	d := &Dentry{Name: n}
	in := NewDirectoryInode()
	in.addAlias(d)
	return d, nil
}

// AddChild links child under parent's child index. It returns the
// pre-existing sibling on a case-sensitive name collision, or nil on success
// (spec.md §4.2 add_child). parent must be a directory.
func AddChild(parent, child *Dentry) *Dentry {
	idx := parent.Inode.ensureChildren()
	if existing := idx.insert(child); existing != nil {
		return existing
	}
	child.Parent = parent
	parent.invalidateFullPath()
	return nil
}

// Unlink removes child from its parent's index. It is a no-op if child is
// already unlinked (child.Parent == child), matching spec.md §4.2 unlink.
func Unlink(child *Dentry) {
	if child.Parent == nil || child.Parent == child {
		child.Parent = child
		return
	}
	child.Parent.Inode.children.remove(child)
	child.Parent.invalidateFullPath()
	child.Parent = child
}

// Lookup finds name among dir's children under the requested case
// sensitivity (spec.md §4.2 lookup). When caseType is CaseInsensitive and
// more than one case-insensitive candidate exists, warn is called.
func Lookup(dir *Dentry, name encoding.Name, caseType wimtypes.CaseSensitivityType, warn func(string)) *Dentry {
	if dir.Inode.children == nil {
		return nil
	}
	if exact := dir.Inode.children.getExact(name); exact != nil {
		return exact
	}
	if caseType != wimtypes.CaseInsensitive {
		return nil
	}
	match, n := dir.Inode.children.lookupCI(name)
	if n > 1 && warn != nil {
		warn("multiple case-insensitive matches for the requested name; returning one arbitrarily")
	}
	return match
}

// LookupPath resolves path (components separated by sep) from root
// (spec.md §4.2 lookup_path). An empty path (after stripping leading
// separators) resolves to root itself.
func LookupPath(root *Dentry, path string, sep byte, caseType wimtypes.CaseSensitivityType, warn func(string)) (*Dentry, *wimtypes.WimError) {
	cur := root
	i := 0
	for i < len(path) && path[i] == sep {
		i++
	}
	for i < len(path) {
		j := i
		for j < len(path) && path[j] != sep {
			j++
		}
		component := path[i:j]
		if !cur.IsDirectory() {
			return nil, wimtypes.NewError(wimtypes.ErrNotADirectory, "path component is not a directory")
		}
		name, err := encoding.NewNameFromString(component)
		if err != nil {
			return nil, wimtypes.WrapError(wimtypes.ErrInvalidParameter, "invalid path component", err)
		}
		next := Lookup(cur, name, caseType, warn)
		if next == nil {
			return nil, wimtypes.NewError(wimtypes.ErrPathDoesNotExist, component)
		}
		cur = next
		i = j
		for i < len(path) && path[i] == sep {
			i++
		}
	}
	return cur, nil
}

// isAncestor reports whether a is an ancestor of (or the same as) b.
func isAncestor(a, b *Dentry) bool {
	for cur := b; ; cur = cur.Parent {
		if cur == a {
			return true
		}
		if cur.IsRoot() {
			return cur == a
		}
	}
}

// FreeDentryTree recursively frees root (removing it from its parent first
// if linked) and unreferences every blob reached through its streams in
// table, per spec.md §3 "freed via tree-wide recursive free that also unrefs
// all blobs reached through streams."
func FreeDentryTree(root *Dentry, table *blobtable.Table) {
	if root.Parent != nil && root.Parent != root {
		Unlink(root)
	}
	freeDentrySubtree(root, table)
}

func freeDentrySubtree(d *Dentry, table *blobtable.Table) {
	ForEachChild(d, func(c *Dentry) bool {
		freeDentrySubtree(c, table)
		return true
	})
	if d.Inode != nil {
		UnrefBlobs(d.Inode, table)
		if d.Inode.removeAlias(d) {
			// Last alias gone: the inode is now unreachable and is
			// dropped along with its (now nil-parented) children
			// index by the garbage collector.
			d.Inode = nil
		}
	}
}
