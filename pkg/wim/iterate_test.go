package wim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

func TestStatReportsStreamsAndHardLinkCount(t *testing.T) {
	img := newTestImage(t)
	branch := newTestBranch(t, "hello")
	hash := blobtable.Hash{}
	copy(hash[:], "world12345678901234")
	desc := blobtable.NewHashedDescriptor(hash, 5)
	img.archive.Blobs.Insert(desc)
	stream := &wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hash}
	branch.Inode.AddStream(stream)
	stream.Resolve(img.archive.Blobs)
	require.Nil(t, img.Add(branch, `\hello`, false))

	entry, werr := img.Stat(`\hello`)
	require.Nil(t, werr)
	require.Equal(t, `\hello`, entry.Path)
	require.Equal(t, "hello", entry.Name)
	require.EqualValues(t, 1, entry.HardLinks)
	require.Len(t, entry.Streams, 1)
	require.Equal(t, wimtypes.StreamTypeData, entry.Streams[0].Type)
}

func TestIterateNonRecursiveVisitsOnlyTheRoot(t *testing.T) {
	img := newTestImage(t)
	dir, err := wimtree.NewFillerDirectory("dir")
	require.NoError(t, err)
	require.Nil(t, img.Add(dir, `\dir`, false))
	require.Nil(t, img.Add(newTestBranch(t, "child"), `\dir\child`, false))

	count := 0
	require.NoError(t, img.Iterate(`\dir`, false, func(DirEntry) error {
		count++
		return nil
	}))
	require.Equal(t, 1, count)
}

func TestIterateRecursiveVisitsWholeSubtree(t *testing.T) {
	img := newTestImage(t)
	dir, err := wimtree.NewFillerDirectory("dir")
	require.NoError(t, err)
	require.Nil(t, img.Add(dir, `\dir`, false))
	require.Nil(t, img.Add(newTestBranch(t, "child"), `\dir\child`, false))

	var paths []string
	require.NoError(t, img.Iterate(`\dir`, true, func(e DirEntry) error {
		paths = append(paths, e.Path)
		return nil
	}))
	require.Contains(t, paths, `\dir`)
	require.Contains(t, paths, `\dir\child`)
}
