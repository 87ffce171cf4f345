package wimtree

import (
	"github.com/openwim/wimcore/internal/blobtable"
)

// RefBlobs increments the refcnt of every blob referenced by inode's
// streams, weighted by inode.Nlink (spec.md §4.7 "ref_blobs").
func RefBlobs(inode *Inode, table *blobtable.Table) {
	adjustBlobs(inode, table, int32(inode.Nlink))
}

// UnrefBlobs decrements the refcnt of every blob referenced by inode's
// streams, weighted by inode.Nlink (spec.md §4.7 "unref_blobs").
func UnrefBlobs(inode *Inode, table *blobtable.Table) {
	adjustBlobs(inode, table, -int32(inode.Nlink))
}

func adjustBlobs(inode *Inode, table *blobtable.Table, delta int32) {
	if inode == nil || table == nil || delta == 0 {
		return
	}
	for _, s := range inode.Streams {
		var d *blobtable.Descriptor
		if s.Resolved {
			d = s.Blob
		} else if !s.Hash.IsZero() {
			d = table.Lookup(s.Hash)
		}
		if d != nil {
			table.AdjustRefcnt(d, delta)
		}
	}
}
