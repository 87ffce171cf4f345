package wim

import (
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// StreamEntry describes one stream of an iterated dentry, grounded on
// original_source/src/wimlib/iterate_dir.c's stream_to_wimlib_stream_entry.
type StreamEntry struct {
	Name string
	Type wimtypes.StreamType
	Hash [20]byte
	Size uint64
}

// DirEntry is a read-only snapshot of one dentry, returned by Iterate and
// Stat without mutating the tree (iterate_dir.c's wimlib_iterate_dir_tree
// equivalent, folded in per SPEC_FULL.md's FEATURE SUPPLEMENTS section).
type DirEntry struct {
	Path       string
	Name       string
	Attributes uint32
	HardLinks  uint32
	Streams    []StreamEntry
}

func buildDirEntry(d *wimtree.Dentry) DirEntry {
	e := DirEntry{
		Path: wimtree.FullPath(d, '\\'),
		Name: d.Name.String(),
	}
	if d.Inode != nil {
		e.Attributes = uint32(d.Inode.Attributes)
		e.HardLinks = d.Inode.Nlink
		for _, s := range d.Inode.Streams {
			e.Streams = append(e.Streams, StreamEntry{
				Name: s.Name.String(),
				Type: s.Type,
				Hash: s.Hash,
				Size: s.Size(),
			})
		}
	}
	return e
}

// Stat returns a single dentry's snapshot, resolved via path lookup.
func (im *Image) Stat(path string) (DirEntry, *wimtypes.WimError) {
	d, err := im.lookup(path)
	if err != nil {
		return DirEntry{}, err
	}
	return buildDirEntry(d), nil
}

// Iterate walks the subtree rooted at path (or the whole image when path is
// empty) in pre-order, calling visit once per dentry. Returning a non-nil
// error from visit aborts the walk and that error is returned unchanged,
// matching the "first nonzero return aborts traversal" rule of spec.md §5.
func (im *Image) Iterate(path string, recursive bool, visit func(DirEntry) error) error {
	root, werr := im.lookup(path)
	if werr != nil {
		return werr
	}
	if !recursive {
		return visit(buildDirEntry(root))
	}
	var outer error
	wimtree.ForDentryInTree(root, func(d *wimtree.Dentry) bool {
		if err := visit(buildDirEntry(d)); err != nil {
			outer = err
			return false
		}
		return true
	})
	return outer
}
