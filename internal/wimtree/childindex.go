package wimtree

import (
	"github.com/google/btree"
	"github.com/openwim/wimcore/internal/codec/encoding"
)

// childIndex is the balanced index of a directory's children, keyed by the
// two-level collation of spec.md §4.1/§4.2. It is backed by
// github.com/google/btree, the ecosystem's generic in-memory B-tree, rather
// than a hand-rolled AVL tree: the teacher itself layers an ordered-traversal
// abstraction (internal/middleware/btrees) over its on-disk B-tree, and
// google/btree gives the same "ordered set, walk in collation order"
// interface for the in-memory case.
type childIndex struct {
	tree *btree.BTreeG[*Dentry]
}

func newChildIndex() *childIndex {
	return &childIndex{tree: btree.NewG[*Dentry](32, dentryLess)}
}

func (c *childIndex) len() int { return c.tree.Len() }

// insert adds child, returning any pre-existing sibling that collides
// case-sensitively (spec.md §4.2 add_child).
func (c *childIndex) insert(child *Dentry) *Dentry {
	if existing, ok := c.tree.Get(child); ok {
		if encoding.CompareNames(existing.Name, child.Name, false) == 0 {
			return existing
		}
	}
	c.tree.ReplaceOrInsert(child)
	return nil
}

func (c *childIndex) remove(child *Dentry) {
	c.tree.Delete(child)
}

// getExact returns the child whose name is case-sensitively identical to
// name, or nil.
func (c *childIndex) getExact(name encoding.Name) *Dentry {
	if item, ok := c.tree.Get(newDentryItem(name)); ok {
		if encoding.CompareNames(item.Name, name, false) == 0 {
			return item
		}
	}
	return nil
}

// lookupCI returns the first case-insensitive match for name (in collation
// order) and the total number of such matches found, used to emit the
// "more than one candidate" warning required by spec.md §4.2.
func (c *childIndex) lookupCI(name encoding.Name) (match *Dentry, numMatches int) {
	c.tree.Ascend(func(item *Dentry) bool {
		if encoding.CompareNames(item.Name, name, true) == 0 {
			if match == nil {
				match = item
			}
			numMatches++
		}
		return true
	})
	return match, numMatches
}

// ascend visits children in collation order (ascending), stopping early if
// fn returns false.
func (c *childIndex) ascend(fn func(*Dentry) bool) {
	if c == nil || c.tree == nil {
		return
	}
	c.tree.Ascend(fn)
}
