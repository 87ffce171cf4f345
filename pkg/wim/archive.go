package wim

import (
	"fmt"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// MaxImages bounds the number of images an Archive may hold. wimlib's own
// MAX_IMAGES constant is defined in a header not present in the retrieved
// wimlib sources; 0x8000 is chosen as a conservative, documented stand-in
// that still exercises wim.c's append_image_metadata overflow check.
const MaxImages = 0x8000

// Archive is a WIM archive's in-memory bookkeeping: the shared BlobTable and
// the ordered sequence of images (spec.md §2's "ArchiveMetadata" fold-in,
// grounded on original_source/src/wimlib/wim.c's image_count handling).
// Archive never reads or writes the container file itself (spec.md §1
// Non-goals); callers supply bytes via DecodeFunc and read blobs via the
// extraction planner's ReadBlob callback.
type Archive struct {
	Blobs  *blobtable.Table
	images []*ImageMetadata
}

// NewArchive builds an empty archive with a fresh blob table.
func NewArchive() *Archive {
	return &Archive{Blobs: blobtable.New()}
}

// ImageCount returns the number of images currently held.
func (a *Archive) ImageCount() int { return len(a.images) }

// AddImage appends img and returns its 1-based image index, following
// wimlib's 1-based wimlib_add_image indexing. Fails with
// ErrImageCountOverflow once MaxImages is reached.
func (a *Archive) AddImage(img *ImageMetadata) (int, *wimtypes.WimError) {
	if len(a.images) >= MaxImages {
		return 0, wimtypes.NewError(wimtypes.ErrImageCountOverflow, fmt.Sprintf("archive already holds %d images", MaxImages))
	}
	a.images = append(a.images, img)
	return len(a.images), nil
}

// DeleteImage removes the image at the given 1-based index, unreferencing
// every blob reached through its tree first.
func (a *Archive) DeleteImage(index int) *wimtypes.WimError {
	img, err := a.imageAt(index)
	if err != nil {
		return err
	}
	if img.Root != nil {
		wimtree.FreeDentryTree(img.Root, a.Blobs)
	}
	for _, u := range img.UnhashedBlobs {
		a.Blobs.RemoveUnhashed(u)
	}
	a.images = append(a.images[:index-1], a.images[index:]...)
	return nil
}

// Image returns the image at the given 1-based index without selecting it.
func (a *Archive) Image(index int) (*ImageMetadata, *wimtypes.WimError) {
	return a.imageAt(index)
}

func (a *Archive) imageAt(index int) (*ImageMetadata, *wimtypes.WimError) {
	if index < 1 || index > len(a.images) {
		return nil, wimtypes.NewError(wimtypes.ErrInvalidImage, fmt.Sprintf("image index %d out of range [1,%d]", index, len(a.images)))
	}
	return a.images[index-1], nil
}

// SelectImage loads (if necessary) and selects the image at index, returning
// an Image facade bound to it.
func (a *Archive) SelectImage(index int) (*Image, *wimtypes.WimError) {
	img, err := a.imageAt(index)
	if err != nil {
		return nil, err
	}
	if err := img.Select(); err != nil {
		return nil, err
	}
	return &Image{archive: a, meta: img, index: index}, nil
}
