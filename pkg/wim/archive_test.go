package wim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/wimtypes"
)

func TestAddImageAssignsOneBasedIndices(t *testing.T) {
	a := NewArchive()
	idx1, werr := a.AddImage(NewImageMetadata(nil))
	require.Nil(t, werr)
	require.Equal(t, 1, idx1)

	idx2, werr := a.AddImage(NewImageMetadata(nil))
	require.Nil(t, werr)
	require.Equal(t, 2, idx2)
	require.Equal(t, 2, a.ImageCount())
}

func TestAddImageFailsOnceMaxImagesReached(t *testing.T) {
	a := &Archive{Blobs: blobtable.New()}
	for i := 0; i < MaxImages; i++ {
		a.images = append(a.images, NewImageMetadata(nil))
	}
	_, werr := a.AddImage(NewImageMetadata(nil))
	require.NotNil(t, werr)
	require.True(t, werr.Is(wimtypes.Err(wimtypes.ErrImageCountOverflow)))
}

func TestImageOutOfRangeIndexFails(t *testing.T) {
	a := NewArchive()
	_, werr := a.Image(1)
	require.NotNil(t, werr)
	require.True(t, werr.Is(wimtypes.Err(wimtypes.ErrInvalidImage)))
}

func TestDeleteImageRemovesItAndShiftsIndices(t *testing.T) {
	a := NewArchive()
	idx1, _ := a.AddImage(NewImageMetadata(nil))
	idx2, _ := a.AddImage(NewImageMetadata(nil))
	require.Nil(t, a.DeleteImage(idx1))
	require.Equal(t, 1, a.ImageCount())

	remaining, werr := a.Image(1)
	require.Nil(t, werr)
	_ = idx2
	require.NotNil(t, remaining)
}

func TestSelectImageReturnsBoundHandle(t *testing.T) {
	a := NewArchive()
	idx, _ := a.AddImage(NewImageMetadata(nil))
	img, werr := a.SelectImage(idx)
	require.Nil(t, werr)
	require.Equal(t, idx, img.Index())
	require.EqualValues(t, 1, img.Metadata().SelectedRefcnt)
}
