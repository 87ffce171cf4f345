package wimtree

import (
	"github.com/google/btree"
	"github.com/openwim/wimcore/internal/codec/encoding"
)

// Dentry is one name of one inode (spec.md §3).
type Dentry struct {
	Inode  *Inode
	Parent *Dentry

	Name      encoding.Name
	ShortName encoding.Name

	// children is not used by this package: a directory's child index is
	// kept on its Inode (Inode.children), one per inode as in wimlib, and
	// every child operation goes through that index.
	children *childIndex

	// Alias list node: a doubly linked list threaded through all dentries
	// naming the same inode (spec.md §9 "intrusive doubly-linked list").
	aliasPrev, aliasNext *Dentry

	// ReservedUnused carries the 16-byte block immediately following
	// subdir_offset in the on-disk record verbatim; its semantics are
	// unknown but it must be preserved byte-for-byte across a round trip
	// (spec.md §9 "the reserved 16-byte block...is not cleared on write
	// when the dentry length allows it").
	ReservedUnused [16]byte

	// Scratch fields, reset at command boundaries (spec.md §9).
	SubdirOffset         uint64
	ExtractionName       string
	dTmpFlag             bool
	dIsOrphan            bool
	extractionListNext   *Dentry
	nextExtractionAlias  *Dentry
	willExtract          bool

	fullPath      string
	fullPathValid bool
}

// IsRoot reports whether d is its own parent (spec.md §3).
func (d *Dentry) IsRoot() bool { return d.Parent == d }

// HasLongName reports whether the dentry carries a non-empty long name.
func (d *Dentry) HasLongName() bool { return !d.Name.IsEmpty() }

// HasShortName reports whether the dentry carries a non-empty short name.
func (d *Dentry) HasShortName() bool { return !d.ShortName.IsEmpty() }

// IsDirectory reports whether the dentry's inode is a directory.
func (d *Dentry) IsDirectory() bool { return d.Inode.IsDirectory() }

// HasChildren reports whether the dentry's inode has any children.
func (d *Dentry) HasChildren() bool { return d.Inode.HasChildren() }

// invalidateFullPath clears the cached full path on this dentry and every
// descendant, since any structural mutation of an ancestor invalidates
// descendants' caches (spec.md §4.2 "Full-path cache").
func (d *Dentry) invalidateFullPath() {
	d.fullPathValid = false
	d.fullPath = ""
	if d.Inode == nil {
		return
	}
	ForEachChild(d, func(c *Dentry) bool {
		c.invalidateFullPath()
		return true
	})
}

// newDentryItem is a minimal pivot used for child-index lookups; it carries
// only the fields the collation comparator reads.
func newDentryItem(name encoding.Name) *Dentry {
	return &Dentry{Name: name}
}

var _ btree.LessFunc[*Dentry] = dentryLess

func dentryLess(a, b *Dentry) bool {
	return encoding.CompareCollation(a.Name, b.Name) < 0
}
