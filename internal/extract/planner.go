// Package extract implements ExtractionPlanner (spec.md §4.10): the ten
// phases that turn a set of selected dentry-tree roots into a sequence of
// backend calls. Grounded on wimlib's extract.c, generalized from its
// struct apply_ctx/apply_operations vtable into a Go
// wiminterfaces.ExtractionBackend.
package extract

import (
	"fmt"
	"strings"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/taggeditems"
	"github.com/openwim/wimcore/internal/wiminterfaces"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// Flags are extraction-planner options (spec.md §4.10 phases 3, 8).
type Flags uint32

const (
	// FabricateInvalidNames substitutes a generated name for a dentry whose
	// name is invalid on the target, or for one of two siblings whose names
	// collide case-insensitively, instead of skipping a subtree.
	FabricateInvalidNames Flags = 1 << iota

	// IncludeAncestors prepends each selected root's uncovered ancestors to
	// the linear dentry list (spec.md §4.10 phase 2), for backends that
	// need the whole directory chain present.
	IncludeAncestors

	// StrictSymlinks fails the plan with ErrUnsupported if the backend lacks
	// symlink/reparse-point support but the tree contains reparse points.
	StrictSymlinks

	// StrictACLs fails the plan if the backend lacks security-descriptor
	// support but the tree references any non-empty security descriptor.
	StrictACLs
)

// Options configures a Planner.
type Options struct {
	Flags        Flags
	WindowsNames bool // apply the extra Windows-forbidden characters
	VolumeNTPath string
}

// Target is one (inode, stream) pair selected for materialization
// (spec.md §4.10 phase 6).
type Target struct {
	Dentry *wimtree.Dentry
	Stream *wimtree.Stream
}

// BlobWork groups every Target referencing the same blob (spec.md §4.10
// phase 6: "the FIRST time a blob is referenced it is appended to a blob
// list; subsequent references grow an in-blob target array").
type BlobWork struct {
	Blob    *blobtable.Descriptor
	Targets []Target
}

// Plan is the planner's completed output, ready for Execute.
type Plan struct {
	Dentries []*wimtree.Dentry
	Blobs    []*BlobWork
	Warnings []string
	Features FeatureCounts
}

// FeatureCounts sums, once per distinct inode in the plan, how many inodes
// reference each feature spec.md §4.10 phase 8 lists ("reparse, short names,
// security, unix data, xattrs, object ids, sparse, encrypted, hardlinks,
// timestamps"), for checkFeatures to compare against the backend's
// FeatureSet.
type FeatureCounts struct {
	Reparse              int
	Security             int
	UnixData             int
	Xattrs               int
	ObjectIDs            int
	Sparse               int
	EncryptedFiles       int
	EncryptedDirectories int
	HardLinks            int
	Timestamps           int
}

func (p *Plan) warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Planner drives phases 1-10 against one backend.
type Planner struct {
	backend wiminterfaces.ExtractionBackend
	table   *blobtable.Table
	opts    Options
}

// New constructs a Planner targeting backend, resolving stream hashes
// against table.
func New(backend wiminterfaces.ExtractionBackend, table *blobtable.Table, opts Options) *Planner {
	return &Planner{backend: backend, table: table, opts: opts}
}

// Plan runs phases 1-8, producing a Plan ready for Execute. roots need not
// be deduplicated or ancestor-free; Plan normalizes them itself (phase 1).
func (p *Planner) Plan(roots []*wimtree.Dentry, pipeMode bool) (*Plan, *wimtypes.WimError) {
	p.table.ResetOutRefcnts()
	roots = normalizeRoots(roots)

	plan := &Plan{}
	plan.Dentries = buildLinearList(roots, p.opts.Flags&IncludeAncestors != 0)

	if err := p.computeExtractionNames(plan); err != nil {
		return nil, err
	}

	p.resolveStreams(plan, pipeMode)

	blobWork := p.selectAndTallyStreams(plan)
	plan.Blobs = blobWork

	p.buildHardLinkAliasLists(plan)

	if err := p.checkFeatures(plan); err != nil {
		return nil, err
	}

	return plan, nil
}

// normalizeRoots removes duplicate roots (by identity) and any root that is
// a descendant of another root in the set (spec.md §4.10 phase 1).
func normalizeRoots(roots []*wimtree.Dentry) []*wimtree.Dentry {
	for _, r := range roots {
		r.ClearTmp()
	}
	var uniq []*wimtree.Dentry
	for _, r := range roots {
		if r.TmpMarked() {
			continue
		}
		r.MarkTmp()
		uniq = append(uniq, r)
	}
	for _, r := range uniq {
		r.ClearTmp()
	}

	var result []*wimtree.Dentry
outer:
	for _, r := range uniq {
		for _, other := range uniq {
			if other == r {
				continue
			}
			if isProperDescendant(r, other) {
				continue outer
			}
		}
		result = append(result, r)
	}
	return result
}

func isProperDescendant(d, ancestor *wimtree.Dentry) bool {
	if d.IsRoot() {
		return false
	}
	for cur := d.Parent; ; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
		if cur.IsRoot() {
			return cur == ancestor
		}
	}
}

// buildLinearList performs the pre-order traversal of phase 2, optionally
// prepending each root's uncovered ancestor chain.
func buildLinearList(roots []*wimtree.Dentry, includeAncestors bool) []*wimtree.Dentry {
	var list []*wimtree.Dentry
	covered := make(map[*wimtree.Dentry]bool)

	var addAncestors func(d *wimtree.Dentry)
	addAncestors = func(d *wimtree.Dentry) {
		if d == nil || covered[d] {
			return
		}
		if !d.IsRoot() {
			addAncestors(d.Parent)
		}
		list = append(list, d)
		covered[d] = true
	}

	for _, r := range roots {
		if includeAncestors && !r.IsRoot() {
			addAncestors(r.Parent)
		}
		wimtree.ForDentryInTree(r, func(d *wimtree.Dentry) bool {
			if !covered[d] {
				list = append(list, d)
				covered[d] = true
			}
			return true
		})
	}
	return list
}

// windowsForbidden holds the characters forbidden in a name on top of the
// universal '/' and NUL, when Options.WindowsNames is set (spec.md §4.10
// phase 3).
var windowsForbidden = map[rune]bool{
	'<': true, '>': true, ':': true, '"': true, '|': true, '?': true, '*': true,
}

func hasForbiddenChar(name string, windows bool) bool {
	for _, r := range name {
		if r == '/' || r == 0 {
			return true
		}
		if windows && (windowsForbidden[r] || r < 0x20) {
			return true
		}
	}
	return false
}

// computeExtractionNames implements phase 3: derive each non-root dentry's
// ExtractionName, fabricating a name for an invalid one (when
// FabricateInvalidNames is set) or else dropping its subtree from the plan.
// On a case-insensitive collision between siblings, FabricateInvalidNames
// gives the fabricated name to the sibling processed earlier (the one first
// in collation order) and lets the later one keep its name; without the flag
// the later sibling's subtree is dropped.
func (p *Planner) computeExtractionNames(plan *Plan) *wimtypes.WimError {
	backendCaseInsensitive := p.backend.Features().CaseInsensitiveNames

	siblingCounts := make(map[*wimtree.Dentry]map[string]int)
	siblingHolders := make(map[*wimtree.Dentry]map[string]*wimtree.Dentry)
	skip := make(map[*wimtree.Dentry]bool)

	var kept []*wimtree.Dentry
	for _, d := range plan.Dentries {
		if d.Parent != nil && skip[d.Parent] {
			skip[d] = true
			continue
		}
		if d.IsRoot() {
			kept = append(kept, d)
			continue
		}

		name := d.Name.String()
		forbidden := hasForbiddenChar(name, p.opts.WindowsNames) || name == "." || name == ".."
		if forbidden {
			if p.opts.Flags&FabricateInvalidNames == 0 {
				skip[d] = true
				plan.warn("skipping subtree with invalid name: %s", name)
				continue
			}
			name = fmt.Sprintf("invalid filename #%d", len(kept)+1)
		}

		if backendCaseInsensitive {
			counts := siblingCounts[d.Parent]
			holders := siblingHolders[d.Parent]
			if counts == nil {
				counts = make(map[string]int)
				holders = make(map[string]*wimtree.Dentry)
				siblingCounts[d.Parent] = counts
				siblingHolders[d.Parent] = holders
			}
			key := strings.ToLower(name)
			if n := counts[key]; n > 0 {
				if p.opts.Flags&FabricateInvalidNames == 0 {
					skip[d] = true
					plan.warn("skipping subtree with colliding name: %s", name)
					continue
				}
				prev := holders[key]
				prev.ExtractionName = fmt.Sprintf("%s (invalid filename #%d)", prev.ExtractionName, n)
			}
			counts[key]++
			holders[key] = d
		}

		d.ExtractionName = name
		kept = append(kept, d)
	}
	plan.Dentries = kept
	return nil
}

// resolveStreams implements phase 4: resolve every stream of every dentry's
// inode against the blob table, force-resolving in pipe mode.
func (p *Planner) resolveStreams(plan *Plan, pipeMode bool) {
	seen := make(map[*wimtree.Inode]bool)
	for _, d := range plan.Dentries {
		if d.Inode == nil || seen[d.Inode] {
			continue
		}
		seen[d.Inode] = true
		for _, s := range d.Inode.Streams {
			if pipeMode {
				s.ForceResolve(p.table)
			} else {
				s.Resolve(p.table)
			}
		}
	}
}

// selectAndTallyStreams implements phases 5-6: decide which streams of each
// inode actually materialize given the backend's features, then tally each
// selected (inode, stream) into its blob's work item, incrementing
// OutRefcnt and deduping by blob identity.
func (p *Planner) selectAndTallyStreams(plan *Plan) []*BlobWork {
	features := p.backend.Features()
	var blobs []*BlobWork
	index := make(map[*blobtable.Descriptor]*BlobWork)

	for _, d := range plan.Dentries {
		in := d.Inode
		if in == nil {
			continue
		}

		for _, s := range selectStreams(in, features) {
			if s.Blob == nil {
				continue
			}
			p.table.AdjustOutRefcnt(s.Blob, 1)
			work := index[s.Blob]
			if work == nil {
				work = &BlobWork{Blob: s.Blob}
				index[s.Blob] = work
				blobs = append(blobs, work)
			}
			work.Targets = append(work.Targets, Target{Dentry: d, Stream: s})
		}
	}
	return blobs
}

// selectStreams implements phase 5's per-inode stream selection rules.
func selectStreams(in *wimtree.Inode, features wiminterfaces.FeatureSet) []*wimtree.Stream {
	var out []*wimtree.Stream
	isDir := in.IsDirectory()
	isSymlink := in.IsSymlink()
	isEncrypted := in.IsEncrypted()

	for _, s := range in.Streams {
		switch s.Type {
		case wimtypes.StreamTypeData:
			if s.IsNamed() {
				if features.NamedStreams {
					out = append(out, s)
				}
				continue
			}
			if isDir || isEncrypted {
				continue
			}
			if isSymlink && features.SymlinkReparsePoints {
				continue
			}
			out = append(out, s)
		case wimtypes.StreamTypeReparsePoint:
			if features.SymlinkReparsePoints || (isSymlink && features.SymlinkReparsePoints) {
				out = append(out, s)
			}
		case wimtypes.StreamTypeEfsrpcRawData:
			if isDir {
				if features.EncryptedDirectories {
					out = append(out, s)
				}
			} else if features.EncryptedFiles {
				out = append(out, s)
			}
		}
	}
	return out
}

// buildHardLinkAliasLists implements phase 7: each inode gets a transient
// singly linked list, through Dentry.NextExtractionAlias, of the aliases
// that are part of this extraction.
func (p *Planner) buildHardLinkAliasLists(plan *Plan) {
	seen := make(map[*wimtree.Inode]bool)
	for _, d := range plan.Dentries {
		in := d.Inode
		if in == nil {
			continue
		}
		d.SetNextExtractionAlias(nil)
		d.SetWillExtract(true)
		if !seen[in] {
			seen[in] = true
			in.SetFirstExtractionAlias(nil)
		}
	}
	for _, d := range plan.Dentries {
		in := d.Inode
		if in == nil {
			continue
		}
		d.SetNextExtractionAlias(in.FirstExtractionAlias())
		in.SetFirstExtractionAlias(d)
	}
}

// checkFeatures implements phase 8: sum per-feature counters across all
// inodes in the plan and fail if a strict flag names a missing feature that
// is actually in use.
func (p *Planner) checkFeatures(plan *Plan) *wimtypes.WimError {
	features := p.backend.Features()
	counts := &plan.Features

	seen := make(map[*wimtree.Inode]bool)
	for _, d := range plan.Dentries {
		in := d.Inode
		if in == nil || seen[in] {
			continue
		}
		seen[in] = true

		if in.IsReparsePoint() {
			counts.Reparse++
		}
		if in.SecurityID >= 0 {
			counts.Security++
		}
		if in.Attributes.Has(wimtypes.FileAttributeSparseFile) {
			counts.Sparse++
		}
		if in.IsEncrypted() {
			if in.IsDirectory() {
				counts.EncryptedDirectories++
			} else {
				counts.EncryptedFiles++
			}
		}
		if in.Nlink > 1 {
			counts.HardLinks++
		}
		counts.Timestamps++

		items := taggeditems.Decode(in.Extra)
		if _, ok := taggeditems.Get(items, wimtypes.TaggedItemWimLibUnixData, 0); ok {
			counts.UnixData++
		}
		if _, ok := taggeditems.Get(items, wimtypes.TaggedItemXattrs, 0); ok {
			counts.Xattrs++
		}
		if _, ok := taggeditems.Get(items, wimtypes.TaggedItemObjectID, 0); ok {
			counts.ObjectIDs++
		}
	}

	if counts.Reparse > 0 && !features.SymlinkReparsePoints {
		if p.opts.Flags&StrictSymlinks != 0 {
			return wimtypes.NewError(wimtypes.ErrUnsupported, "backend does not support reparse points")
		}
		plan.warn("backend does not support reparse points; %d will be skipped", counts.Reparse)
	}
	if counts.Security > 0 && !features.ACLs {
		if p.opts.Flags&StrictACLs != 0 {
			return wimtypes.NewError(wimtypes.ErrUnsupported, "backend does not support security descriptors")
		}
		plan.warn("backend does not support security descriptors; %d will be skipped", counts.Security)
	}
	if counts.UnixData > 0 && !features.UnixData {
		plan.warn("backend does not support UNIX metadata; %d files will be skipped", counts.UnixData)
	}
	if counts.EncryptedFiles > 0 && !features.EncryptedFiles {
		plan.warn("backend does not support encrypted files; %d will be skipped", counts.EncryptedFiles)
	}
	if counts.EncryptedDirectories > 0 && !features.EncryptedDirectories {
		plan.warn("backend does not support encrypted directories; %d will be skipped", counts.EncryptedDirectories)
	}
	if counts.HardLinks > 0 && !features.HardLinks {
		plan.warn("backend does not support hard links; %d will be extracted as independent files", counts.HardLinks)
	}
	if counts.Xattrs > 0 {
		plan.warn("backend does not support extended attributes; %d files will be skipped", counts.Xattrs)
	}
	if counts.ObjectIDs > 0 {
		plan.warn("backend does not support object IDs; %d files will be skipped", counts.ObjectIDs)
	}
	if counts.Sparse > 0 {
		plan.warn("backend does not support sparse files; %d will be extracted as regular files", counts.Sparse)
	}
	return nil
}
