// Package wim is the public facade over the core: Archive (a blob table plus
// a sequence of images) and ImageMetadata (one image's dentry tree plus its
// security data and blob bookkeeping). It wires internal/wimtree,
// internal/blobtable, internal/journal, internal/pattern and internal/extract
// together the way the teacher's pkg/app/pkg/services layer wires its own
// internal managers underneath a small caller-facing surface.
package wim

import (
	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/security"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// DecodeFunc loads a metadata resource's bytes into a dentry tree plus its
// security data. The caller supplies this (it owns reading/decompressing the
// resource bytes from the archive container, which is out of the core's
// scope per spec.md §1); ImageMetadata.Select invokes it lazily.
type DecodeFunc func() (*wimtree.Dentry, security.Data, *wimtypes.WimError)

// ImageMetadata is the per-image container named in spec.md §4.11: a root
// dentry, its SecurityData, the blob descriptor backing the image's own
// metadata resource, any not-yet-hashed blobs discovered while the image was
// mutated, and the two reference counts that govern lazy load/unload.
type ImageMetadata struct {
	Root         *wimtree.Dentry
	Security     security.Data
	MetadataBlob *blobtable.Descriptor
	UnhashedBlobs []*blobtable.Descriptor

	// Refcnt counts sharing across exports (spec.md §4.11); it is at
	// least 1 for any image still attached to an archive.
	Refcnt uint32

	// SelectedRefcnt is non-zero while some caller currently has this
	// image selected.
	SelectedRefcnt uint32

	StatsOutdated bool

	decode DecodeFunc
	loaded bool
}

// NewImageMetadata builds an unloaded image whose tree will be produced by
// decode the first time it is selected. Pass a nil decode for a fresh empty
// image (e.g. one about to be built up by Add commands).
func NewImageMetadata(decode DecodeFunc) *ImageMetadata {
	return &ImageMetadata{Refcnt: 1, decode: decode}
}

// Dirty reports whether the image's backing blob is scratch (NoData),
// meaning it has never been committed to an archive resource and must never
// be auto-unloaded (spec.md §4.11).
func (im *ImageMetadata) Dirty() bool {
	return im.MetadataBlob == nil || im.MetadataBlob.Location == wimtypes.BlobLocationNoData
}

// Select loads the image's tree on first use and increments SelectedRefcnt.
func (im *ImageMetadata) Select() *wimtypes.WimError {
	if !im.loaded {
		if im.decode != nil {
			root, sec, err := im.decode()
			if err != nil {
				return err
			}
			im.Root = root
			im.Security = sec
		}
		im.loaded = true
	}
	im.SelectedRefcnt++
	return nil
}

// Deselect decrements SelectedRefcnt and unloads the tree when it reaches
// zero and the image is neither dirty nor selected elsewhere. Returns
// whether the tree was actually unloaded.
func (im *ImageMetadata) Deselect() bool {
	if im.SelectedRefcnt > 0 {
		im.SelectedRefcnt--
	}
	if im.SelectedRefcnt != 0 || im.Dirty() {
		return false
	}
	im.Root = nil
	im.Security = security.Data{}
	im.loaded = false
	return true
}

// MarkDirty forces the image to be treated as dirty, e.g. immediately after
// a mutating command, so a concurrent deselect elsewhere cannot unload it
// before the mutation is flushed to a new metadata resource.
func (im *ImageMetadata) MarkDirty() {
	im.MetadataBlob = nil
}
