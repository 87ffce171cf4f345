package wim

import (
	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/extract"
	"github.com/openwim/wimcore/internal/journal"
	"github.com/openwim/wimcore/internal/pattern"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
	"github.com/openwim/wimcore/internal/wiminterfaces"
)

// PathSeparator is the separator Image's path-taking methods split on.
const PathSeparator = '\\'

// Image is a selected ImageMetadata bound to the Archive that owns its blob
// table, the caller-facing unit of work matching wimlib's "wimstruct with a
// currently selected image" model flattened into a single handle.
type Image struct {
	archive  *Archive
	meta     *ImageMetadata
	index    int
	caseType wimtypes.CaseSensitivityType
}

// Index returns the image's 1-based position in its archive.
func (im *Image) Index() int { return im.index }

// Metadata exposes the underlying ImageMetadata for callers that need direct
// access to its reference counts (spec.md §4.11).
func (im *Image) Metadata() *ImageMetadata { return im.meta }

// SetCaseSensitivity overrides the default case-sensitivity mode used by
// this Image's path operations.
func (im *Image) SetCaseSensitivity(c wimtypes.CaseSensitivityType) {
	im.caseType = c
}

// Deselect releases this handle, decrementing the image's SelectedRefcnt and
// unloading its tree if eligible (spec.md §4.11).
func (im *Image) Deselect() bool {
	return im.meta.Deselect()
}

func (im *Image) warn(msg string) {
	im.meta.StatsOutdated = true
	_ = msg
}

func (im *Image) ensureRoot() (*wimtree.Dentry, *wimtypes.WimError) {
	if im.meta.Root == nil {
		root, err := wimtree.NewDentryWithNewInode("")
		if err != nil {
			return nil, wimtypes.WrapError(wimtypes.ErrOutOfMemory, "allocate root dentry", err)
		}
		root.Inode.Attributes |= wimtypes.FileAttributeDirectory
		root.Parent = root
		im.meta.Root = root
	}
	return im.meta.Root, nil
}

func (im *Image) lookup(path string) (*wimtree.Dentry, *wimtypes.WimError) {
	root, err := im.ensureRoot()
	if err != nil {
		return nil, err
	}
	return wimtree.LookupPath(root, path, PathSeparator, im.caseType, im.warn)
}

// Add grafts branch (and its subtree) into the image at targetPath,
// creating any missing intermediate filler directories, merging directories
// when both sides are directories, and failing with ErrNameCollision on a
// non-directory collision unless noReplace is false. Grounds on wimlib
// update_image.c's WIMLIB_UPDATE_OP_ADD handling via internal/journal.
func (im *Image) Add(branch *wimtree.Dentry, targetPath string, noReplace bool) *wimtypes.WimError {
	root, err := im.ensureRoot()
	if err != nil {
		return err
	}
	werr := journal.Add(root, branch, targetPath, PathSeparator, im.caseType, noReplace, im.archive.Blobs, im.warn)
	if werr == nil {
		im.meta.MarkDirty()
	}
	return werr
}

// Delete removes the dentry at path, requiring recursive for a non-empty
// directory; force suppresses the error for a missing path. Grounds on update_image.c's WIMLIB_UPDATE_OP_DELETE.
func (im *Image) Delete(path string, recursive, force bool) *wimtypes.WimError {
	root, err := im.ensureRoot()
	if err != nil {
		return err
	}
	werr := journal.Delete(root, path, PathSeparator, im.caseType, recursive, force, im.archive.Blobs, im.warn)
	if werr == nil {
		im.meta.MarkDirty()
	}
	return werr
}

// Rename moves/renames the dentry at from to to, atomically, following
// DentryTree.rename's POSIX-like rules (spec.md §4.2). Grounds on
// update_image.c's WIMLIB_UPDATE_OP_RENAME.
func (im *Image) Rename(from, to string, noreplace bool) *wimtypes.WimError {
	root, err := im.ensureRoot()
	if err != nil {
		return err
	}
	werr := journal.Rename(root, from, to, PathSeparator, im.caseType, noreplace, im.archive.Blobs, im.warn)
	if werr == nil {
		im.meta.MarkDirty()
	}
	return werr
}

// Expand resolves a glob pattern (spec.md §4.8) against the image's tree,
// invoking consume once per matching dentry.
func (im *Image) Expand(pat string, consume func(*wimtree.Dentry) error) error {
	root, err := im.ensureRoot()
	if err != nil {
		return err
	}
	return pattern.ExpandPattern(root, pat, consume)
}

// ExportInto copies this image's tree into dest (a different Archive's
// image), re-referencing every blob reached through streams into dest's
// blob table and bumping their Refcnt (spec.md §4.11's refcnt note; grounds
// on original_source/src/wimlib/export_image.c). The source image is left
// untouched; dest must not yet have a root (it receives a fresh copy).
func (im *Image) ExportInto(dest *Image) *wimtypes.WimError {
	root, err := im.ensureRoot()
	if err != nil {
		return err
	}
	if dest.meta.Root != nil {
		return wimtypes.NewError(wimtypes.ErrInvalidParameter, "export destination image already has a tree")
	}
	inodes := make(map[*wimtree.Inode]*wimtree.Inode)
	copied := exportSubtree(root, dest.archive.Blobs, inodes)
	copied.Parent = copied
	dest.meta.Root = copied
	dest.meta.MarkDirty()
	return nil
}

// exportSubtree copies d and its descendants into a new tree, preserving
// hard-link groups: every dentry whose source Inode was already seen (an
// alias of an inode already exported) gets a new Dentry naming the SAME
// cloned Inode, rather than a fresh one, so the destination's Nlink and alias
// list match the source's (spec.md's hard-link consistency invariant).
// Grounds on original_source/src/wimlib/export_image.c, which bumps a
// blob's refcnt by inode->i_nlink precisely because it clones each inode
// once and shares it across all of that inode's aliases.
func exportSubtree(d *wimtree.Dentry, destTable *blobtable.Table, inodes map[*wimtree.Inode]*wimtree.Inode) *wimtree.Dentry {
	newInode := exportInodeOnce(d.Inode, destTable, inodes)
	var copied *wimtree.Dentry
	if d.IsRoot() {
		copied = wimtree.NewDentry(encoding.Name{}, newInode)
	} else {
		copied = wimtree.NewDentry(d.Name, newInode)
		copied.ShortName = d.ShortName
	}
	wimtree.ForEachChild(d, func(c *wimtree.Dentry) bool {
		child := exportSubtree(c, destTable, inodes)
		wimtree.AddChild(copied, child)
		return true
	})
	return copied
}

// exportInodeOnce returns the already-cloned destination Inode for src if
// one of its aliases has already been exported, or clones it for the first
// time otherwise. A fresh clone bumps each referenced blob's refcnt by
// src.Nlink up front, accounting for every alias at once, since later
// aliases reuse the same destination Inode without touching the blob table
// again.
func exportInodeOnce(src *wimtree.Inode, destTable *blobtable.Table, inodes map[*wimtree.Inode]*wimtree.Inode) *wimtree.Inode {
	if existing, ok := inodes[src]; ok {
		return existing
	}
	in := exportInode(src, destTable)
	inodes[src] = in
	return in
}

func exportInode(src *wimtree.Inode, destTable *blobtable.Table) *wimtree.Inode {
	in := wimtree.NewInode()
	in.Attributes = src.Attributes
	in.CreationTime = src.CreationTime
	in.LastAccessTime = src.LastAccessTime
	in.LastWriteTime = src.LastWriteTime
	in.SecurityID = src.SecurityID
	in.ReparseTag = src.ReparseTag
	in.RPReserved = src.RPReserved
	in.RPFlags = src.RPFlags
	in.Extra = src.Extra
	nlink := src.Nlink
	if nlink == 0 {
		nlink = 1
	}
	for _, s := range src.Streams {
		ns := &wimtree.Stream{Type: s.Type, Name: s.Name, Hash: s.Hash}
		in.AddStream(ns)
		blob := destTable.Lookup(s.Hash)
		if blob == nil && s.Blob != nil {
			clone := *s.Blob
			clone.Refcnt = 0
			clone.OutRefcnt = 0
			blob = &clone
			destTable.Insert(blob)
		}
		if blob != nil {
			destTable.AdjustRefcnt(blob, int32(nlink))
			ns.Blob = blob
			ns.Resolved = true
		}
	}
	return in
}

// Extract plans and executes extraction of the dentries reachable from
// roots (paths within this image) against backend, streaming blob content
// via read (spec.md §4.10).
func (im *Image) Extract(roots []string, backend wiminterfaces.ExtractionBackend, opts extract.Options, pipeMode bool, read extract.ReadBlob) (*extract.Plan, *wimtypes.WimError) {
	var dentries []*wimtree.Dentry
	for _, p := range roots {
		d, err := im.lookup(p)
		if err != nil {
			return nil, err
		}
		dentries = append(dentries, d)
	}
	planner := extract.New(backend, im.archive.Blobs, opts)
	plan, werr := planner.Plan(dentries, pipeMode)
	if werr != nil {
		return nil, werr
	}
	if werr := planner.Execute(plan, read); werr != nil {
		return plan, werr
	}
	return plan, nil
}
