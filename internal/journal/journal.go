// Package journal implements UpdateJournal (spec.md §4.9): a log of
// primitive tree mutations that can be rolled back, and the high-level
// add/delete/rename commands built on top of it. Grounded on wimlib's
// update_image.c command/rollback model, adapted to the tree's exported
// wimtree operations (AddChild/Unlink) rather than wimlib's intrusive
// hlist surgery.
package journal

import (
	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// Journal records primitive mutations as they are applied so they can be
// undone in reverse order. The zero value is not usable; construct with New.
type Journal struct {
	table *blobtable.Table
	log   []func()
	freed []*wimtree.Dentry
}

// New creates a Journal. table is used to ref/unref blobs when a primitive's
// rollback needs to free a subtree (e.g. undoing a replace).
func New(table *blobtable.Table) *Journal {
	return &Journal{table: table}
}

func (j *Journal) push(undo func()) {
	j.log = append(j.log, undo)
}

// UnlinkDentry removes subject from its current parent (spec.md §4.9
// "UnlinkDentry(subject, parent)"). Undoing it relinks subject under the
// same parent.
func (j *Journal) UnlinkDentry(subject *wimtree.Dentry) {
	parent := subject.Parent
	wimtree.Unlink(subject)
	j.push(func() {
		wimtree.AddChild(parent, subject)
	})
}

// LinkDentry links subject under parent (spec.md §4.9 "LinkDentry(subject,
// parent)"). It fails with ErrNameCollision if parent already has a
// case-sensitively identical child.
func (j *Journal) LinkDentry(subject, parent *wimtree.Dentry) *wimtypes.WimError {
	if existing := wimtree.AddChild(parent, subject); existing != nil {
		return wimtypes.NewError(wimtypes.ErrNameCollision, subject.Name.String())
	}
	j.push(func() {
		wimtree.Unlink(subject)
	})
	return nil
}

// ChangeName renames subject in place (spec.md §4.9 "ChangeName(subject,
// old_long_name)"), re-collating it within its parent's child index if it is
// currently linked. It fails with ErrNameCollision without making any change
// if newName collides case-sensitively with another sibling.
func (j *Journal) ChangeName(subject *wimtree.Dentry, newName encoding.Name) *wimtypes.WimError {
	old := subject.Name
	linked := subject.Parent != nil && subject.Parent != subject
	parent := subject.Parent

	if linked {
		wimtree.Unlink(subject)
	}
	subject.Name = newName
	if linked {
		if existing := wimtree.AddChild(parent, subject); existing != nil {
			subject.Name = old
			wimtree.AddChild(parent, subject)
			return wimtypes.NewError(wimtypes.ErrNameCollision, newName.String())
		}
	}

	j.push(func() {
		if linked {
			wimtree.Unlink(subject)
		}
		subject.Name = old
		if linked {
			wimtree.AddChild(parent, subject)
		}
	})
	return nil
}

// ChangeShortName sets subject's short name (spec.md §4.9
// "ChangeShortName(subject, old_short_name)"). The short name plays no part
// in collation, so no re-indexing is needed.
func (j *Journal) ChangeShortName(subject *wimtree.Dentry, newShortName encoding.Name) {
	old := subject.ShortName
	subject.ShortName = newShortName
	j.push(func() {
		subject.ShortName = old
	})
}

// FreeSubtree queues tree to be freed (unlinking it first if still linked,
// and unreferencing every blob it reaches) when the journal commits. Until
// then the subtree stays intact, so a Rollback can relink it through the
// undo of the UnlinkDentry that detached it; Rollback drops the queue.
func (j *Journal) FreeSubtree(tree *wimtree.Dentry) {
	j.freed = append(j.freed, tree)
}

// Commit discards the recorded primitives and frees every subtree queued by
// FreeSubtree: once a command succeeds, its primitives are never undone
// (spec.md §4.9 "a commit frees saved-old-name buffers").
func (j *Journal) Commit() {
	for _, tree := range j.freed {
		wimtree.FreeDentryTree(tree, j.table)
	}
	j.freed = nil
	j.log = nil
}

// Rollback replays every recorded primitive's undo in reverse order, fully
// restoring the tree to the state before any of this Journal's primitives
// ran (spec.md §4.9).
func (j *Journal) Rollback() {
	for i := len(j.log) - 1; i >= 0; i-- {
		j.log[i]()
	}
	j.log = nil
	j.freed = nil
}

// Merge absorbs other's recorded primitives onto the end of j's log, for
// atomic mode: an outer batch Journal accumulates every sub-command's
// primitives so a single Rollback can undo the whole batch (spec.md §4.9
// "the entire batch is rolled back only when atomic mode is requested").
func (j *Journal) Merge(other *Journal) {
	j.log = append(j.log, other.log...)
	j.freed = append(j.freed, other.freed...)
	other.log = nil
	other.freed = nil
}
