package wimtree

import (
	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// Rename moves/renames the dentry at `from` to `to`, both resolved relative
// to root (spec.md §4.2 rename). It disallows renaming a dentry underneath
// itself, and only replaces an existing target when noreplace is false (in
// which case the replaced tree is recursively freed via table). On any
// error, the tree is left byte-for-byte unchanged (spec.md §8 invariant #7);
// since this function performs at most one unlink+relink pair and validates
// every precondition before mutating, no explicit rollback bookkeeping is
// needed here (the UpdateJournal in package journal adds that for
// multi-primitive high level commands).
func Rename(root *Dentry, from, to string, sep byte, caseType wimtypes.CaseSensitivityType, noreplace bool, table *blobtable.Table, warn func(string)) *wimtypes.WimError {
	src, err := LookupPath(root, from, sep, caseType, warn)
	if err != nil {
		return err
	}
	if src.IsRoot() {
		return wimtypes.NewError(wimtypes.ErrBusy, "cannot rename the root directory")
	}

	dstParentPath, dstName := splitPath(to, sep)
	dstParent, err := LookupPath(root, dstParentPath, sep, caseType, warn)
	if err != nil {
		return err
	}
	if !dstParent.IsDirectory() {
		return wimtypes.NewError(wimtypes.ErrNotADirectory, "rename target's parent is not a directory")
	}

	name, nerr := encoding.NewNameFromString(dstName)
	if nerr != nil {
		return wimtypes.WrapError(wimtypes.ErrInvalidParameter, "invalid destination name", nerr)
	}

	existing := Lookup(dstParent, name, caseType, warn)
	if existing != nil && isAncestor(existing, dstParent) {
		// Should be impossible (existing is a child of dstParent), kept
		// only as a defensive guard against future refactors.
		return wimtypes.NewError(wimtypes.ErrBusy, "inconsistent tree state")
	}
	if isAncestor(src, dstParent) || src == dstParent {
		return wimtypes.NewError(wimtypes.ErrBusy, "cannot rename a directory into itself or a descendant")
	}

	if existing != nil {
		if existing == src {
			// Renaming onto itself (possibly case-only): just update
			// the name below.
		} else if noreplace {
			return wimtypes.NewError(wimtypes.ErrNameCollision, to)
		} else {
			if existing.IsDirectory() {
				if src.IsDirectory() {
					if existing.HasChildren() {
						return wimtypes.NewError(wimtypes.ErrNotEmpty, to)
					}
				} else {
					return wimtypes.NewError(wimtypes.ErrIsADirectory, to)
				}
			} else if src.IsDirectory() {
				return wimtypes.NewError(wimtypes.ErrNotADirectory, to)
			}
		}
	}

	// All preconditions validated; perform the mutation.
	if existing != nil && existing != src {
		FreeDentryTree(existing, table)
	}
	Unlink(src)
	src.Name = name
	if AddChild(dstParent, src) != nil {
		// Unreachable given the checks above, but fail closed rather
		// than silently dropping a dentry.
		return wimtypes.NewError(wimtypes.ErrNameCollision, to)
	}
	return nil
}

// splitPath splits a path into (parentPath, lastComponent), treating a
// trailing run of separators as insignificant.
func splitPath(path string, sep byte) (string, string) {
	end := len(path)
	for end > 0 && path[end-1] == sep {
		end--
	}
	start := end
	for start > 0 && path[start-1] != sep {
		start--
	}
	parent := path[:start]
	if parent == "" {
		parent = string(sep)
	}
	return parent, path[start:end]
}
