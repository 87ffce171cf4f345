package wimtree

// The fields this file exposes are transient planner scratch space, reset at
// the start of every extraction (spec.md §4.10): a per-dentry "seen" flag
// used by the normalize-roots phase, a per-dentry "will extract" flag, a
// singly-linked list pointer (ExtractionListNext; the planner keeps its
// linear dentry list as a slice and does not set it), and a
// per-inode/per-dentry alias-list pair used by the hard-link phase. They
// live on Dentry/Inode themselves (rather than in a side map owned by
// internal/extract) because wimlib keeps the equivalent bits inline on
// struct wim_dentry/wim_inode for the same reason: one planner run at a time
// ever needs them, and inlining avoids an extra lookup per dentry in the hot
// traversal loops.

// TmpMarked reports whether MarkTmp has been called on d since the last
// ClearTmp, used by the normalize-roots phase to dedup a root set by
// identity (spec.md §4.10 phase 1).
func (d *Dentry) TmpMarked() bool { return d.dTmpFlag }

// MarkTmp sets d's transient flag.
func (d *Dentry) MarkTmp() { d.dTmpFlag = true }

// ClearTmp clears d's transient flag.
func (d *Dentry) ClearTmp() { d.dTmpFlag = false }

// WillExtract reports whether d has been selected for extraction.
func (d *Dentry) WillExtract() bool { return d.willExtract }

// SetWillExtract marks d as selected (or not) for extraction.
func (d *Dentry) SetWillExtract(b bool) { d.willExtract = b }

// ExtractionListNext returns the next dentry in the planner's linear
// extraction list, or nil at the end.
func (d *Dentry) ExtractionListNext() *Dentry { return d.extractionListNext }

// SetExtractionListNext links d to next in the planner's linear extraction
// list.
func (d *Dentry) SetExtractionListNext(next *Dentry) { d.extractionListNext = next }

// NextExtractionAlias returns the next alias of the same inode that is also
// part of the current extraction, or nil at the end of the list.
func (d *Dentry) NextExtractionAlias() *Dentry { return d.nextExtractionAlias }

// SetNextExtractionAlias links d to next in its inode's extraction alias
// list.
func (d *Dentry) SetNextExtractionAlias(next *Dentry) { d.nextExtractionAlias = next }

// FirstExtractionAlias returns the head of in's extraction alias list.
func (in *Inode) FirstExtractionAlias() *Dentry { return in.firstExtractionAlias }

// SetFirstExtractionAlias sets the head of in's extraction alias list.
func (in *Inode) SetFirstExtractionAlias(d *Dentry) { in.firstExtractionAlias = d }

// ResetExtractionScratch clears every transient extraction field on d (and,
// the first time its inode is seen, on the inode too), so a tree can be
// reused across multiple extraction runs. Call via ForDentryInTree before
// starting a new plan.
func (d *Dentry) ResetExtractionScratch() {
	d.dTmpFlag = false
	d.dIsOrphan = false
	d.willExtract = false
	d.extractionListNext = nil
	d.nextExtractionAlias = nil
	if d.Inode != nil {
		d.Inode.firstExtractionAlias = nil
	}
}
