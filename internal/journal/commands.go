package journal

import (
	"errors"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// Add journals the high-level add(branch, target_path) command (spec.md
// §4.9): it walks target_path from root, creating filler directories for
// any missing intermediate component, then links branch (already built, not
// yet linked anywhere) at the final component. If the final component
// already exists, directories are merged by recursion; a non-directory is
// replaced unless noReplace is set, in which case ErrNameCollision is
// returned. A kind mismatch (directory vs non-directory) at any merge point
// returns ErrIsADirectory/ErrNotADirectory. Any error rolls back every
// primitive this call performed, leaving the tree unchanged.
func Add(root, branch *wimtree.Dentry, targetPath string, sep byte, caseType wimtypes.CaseSensitivityType, noReplace bool, table *blobtable.Table, warn func(string)) *wimtypes.WimError {
	dirPath, lastComponent := splitTrailing(targetPath, sep)

	j := New(table)
	cur := root
	for _, comp := range splitComponents(dirPath, sep) {
		name, nerr := encoding.NewNameFromString(comp)
		if nerr != nil {
			j.Rollback()
			return wimtypes.WrapError(wimtypes.ErrInvalidParameter, "invalid path component", nerr)
		}
		if !cur.IsDirectory() {
			j.Rollback()
			return wimtypes.NewError(wimtypes.ErrNotADirectory, comp)
		}
		next := wimtree.Lookup(cur, name, caseType, warn)
		if next == nil {
			filler, ferr := wimtree.NewFillerDirectory(comp)
			if ferr != nil {
				j.Rollback()
				return wimtypes.WrapError(wimtypes.ErrInvalidParameter, "invalid path component", ferr)
			}
			if lerr := j.LinkDentry(filler, cur); lerr != nil {
				j.Rollback()
				return lerr
			}
			next = filler
		} else if !next.IsDirectory() {
			j.Rollback()
			return wimtypes.NewError(wimtypes.ErrNotADirectory, comp)
		}
		cur = next
	}

	name, nerr := encoding.NewNameFromString(lastComponent)
	if nerr != nil {
		j.Rollback()
		return wimtypes.WrapError(wimtypes.ErrInvalidParameter, "invalid path component", nerr)
	}
	branch.Name = name

	if err := addOrMergeChild(j, cur, branch, caseType, noReplace, warn); err != nil {
		j.Rollback()
		return err
	}
	j.Commit()
	return nil
}

func addOrMergeChild(j *Journal, parent, branch *wimtree.Dentry, caseType wimtypes.CaseSensitivityType, noReplace bool, warn func(string)) *wimtypes.WimError {
	existing := wimtree.Lookup(parent, branch.Name, caseType, warn)
	if existing == nil {
		return j.LinkDentry(branch, parent)
	}

	switch {
	case existing.IsDirectory() && branch.IsDirectory():
		return mergeDirectories(j, existing, branch, caseType, noReplace, warn)
	case existing.IsDirectory() != branch.IsDirectory():
		if existing.IsDirectory() {
			return wimtypes.NewError(wimtypes.ErrIsADirectory, branch.Name.String())
		}
		return wimtypes.NewError(wimtypes.ErrNotADirectory, branch.Name.String())
	case noReplace:
		return wimtypes.NewError(wimtypes.ErrNameCollision, branch.Name.String())
	default:
		j.UnlinkDentry(existing)
		j.FreeSubtree(existing)
		return j.LinkDentry(branch, parent)
	}
}

// mergeDirectories moves every child of branch into existing, recursively
// merging on name collisions, then leaves branch an empty, never-linked
// directory dentry that is simply discarded by the caller.
func mergeDirectories(j *Journal, existing, branch *wimtree.Dentry, caseType wimtypes.CaseSensitivityType, noReplace bool, warn func(string)) *wimtypes.WimError {
	var children []*wimtree.Dentry
	wimtree.ForEachChild(branch, func(c *wimtree.Dentry) bool {
		children = append(children, c)
		return true
	})
	for _, c := range children {
		j.UnlinkDentry(c)
		if err := addOrMergeChild(j, existing, c, caseType, noReplace, warn); err != nil {
			return err
		}
	}
	return nil
}

// Delete journals the high-level delete(path, recursive, force) command
// (spec.md §4.9): recursive is required to delete a non-empty directory;
// force suppresses ErrPathDoesNotExist for a path that is already absent.
func Delete(root *wimtree.Dentry, path string, sep byte, caseType wimtypes.CaseSensitivityType, recursive, force bool, table *blobtable.Table, warn func(string)) *wimtypes.WimError {
	target, err := wimtree.LookupPath(root, path, sep, caseType, warn)
	if err != nil {
		if force && errors.Is(err, wimtypes.Err(wimtypes.ErrPathDoesNotExist)) {
			return nil
		}
		return err
	}
	if target.IsRoot() {
		return wimtypes.NewError(wimtypes.ErrBusy, "cannot delete the root directory")
	}
	if target.IsDirectory() && target.HasChildren() && !recursive {
		return wimtypes.NewError(wimtypes.ErrNotEmpty, path)
	}

	j := New(table)
	j.UnlinkDentry(target)
	j.FreeSubtree(target)
	j.Commit()
	return nil
}

// Rename journals the high-level rename(from, to) command (spec.md §4.9,
// detailed in §4.2). wimtree.Rename already validates every precondition
// before performing its single unlink+relink pair, so it is inherently
// atomic; this wrapper exists so callers composing a batch under atomic mode
// go through the same journal package for every high-level command.
func Rename(root *wimtree.Dentry, from, to string, sep byte, caseType wimtypes.CaseSensitivityType, noreplace bool, table *blobtable.Table, warn func(string)) *wimtypes.WimError {
	return wimtree.Rename(root, from, to, sep, caseType, noreplace, table, warn)
}

// splitTrailing splits path into (parentPath, lastComponent), treating a
// trailing run of separators as insignificant.
func splitTrailing(path string, sep byte) (string, string) {
	end := len(path)
	for end > 0 && path[end-1] == sep {
		end--
	}
	start := end
	for start > 0 && path[start-1] != sep {
		start--
	}
	return path[:start], path[start:end]
}

// splitComponents splits a path into its non-empty components.
func splitComponents(path string, sep byte) []string {
	var out []string
	i := 0
	for i < len(path) {
		for i < len(path) && path[i] == sep {
			i++
		}
		j := i
		for j < len(path) && path[j] != sep {
			j++
		}
		if j > i {
			out = append(out, path[i:j])
		}
		i = j
	}
	return out
}
