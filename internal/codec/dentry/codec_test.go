package dentry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/codec/security"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

func init() {
	encoding.Init()
}

func mustName(t *testing.T, s string) encoding.Name {
	t.Helper()
	n, err := encoding.NewNameFromString(s)
	require.NoError(t, err)
	return n
}

func buildSampleTree(t *testing.T) *wimtree.Dentry {
	t.Helper()
	root, err := wimtree.NewDentryWithNewInode("")
	require.NoError(t, err)
	root.Parent = root
	root.Inode.Attributes = wimtypes.FileAttributeDirectory

	file, err := wimtree.NewDentryWithNewInode("hello.txt")
	require.NoError(t, err)
	file.Inode.AddStream(&wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hashOf(1)})
	require.Nil(t, wimtree.AddChild(root, file))

	sub, err := wimtree.NewDentryWithNewInode("sub")
	require.NoError(t, err)
	sub.Inode.Attributes = wimtypes.FileAttributeDirectory
	require.Nil(t, wimtree.AddChild(root, sub))

	nested, err := wimtree.NewDentryWithNewInode("nested.txt")
	require.NoError(t, err)
	nested.Inode.AddStream(&wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hashOf(2)})
	require.Nil(t, wimtree.AddChild(sub, nested))

	return root
}

func hashOf(b byte) (h [wimtypes.SHA1HashSize]byte) {
	h[0] = b
	return h
}

func TestEncodeThenDecodeRoundTrip(t *testing.T) {
	root := buildSampleTree(t)
	buf, err := EncodeMetadataResource(root, security.Data{})
	require.Nil(t, err)

	decoded, secData, derr := DecodeMetadataResource(buf, func(string) {})
	require.Nil(t, derr)
	require.Empty(t, secData.Descriptors)

	require.True(t, decoded.IsRoot())
	require.True(t, decoded.IsDirectory())

	var names []string
	wimtree.ForEachChild(decoded, func(c *wimtree.Dentry) bool {
		names = append(names, c.Name.String())
		return true
	})
	require.ElementsMatch(t, []string{"hello.txt", "sub"}, names)

	sub := wimtree.Lookup(decoded, mustName(t, "sub"), wimtypes.CaseSensitive, nil)
	require.NotNil(t, sub)
	require.True(t, sub.IsDirectory())
	nested := wimtree.Lookup(sub, mustName(t, "nested.txt"), wimtypes.CaseSensitive, nil)
	require.NotNil(t, nested)
	require.Equal(t, hashOf(2), nested.Inode.UnnamedDataStream().Hash)

	file := wimtree.Lookup(decoded, mustName(t, "hello.txt"), wimtypes.CaseSensitive, nil)
	require.NotNil(t, file)
	require.Equal(t, hashOf(1), file.Inode.UnnamedDataStream().Hash)
}

func TestEncodeDirectoryOmitsUnnamedDataStream(t *testing.T) {
	root, err := wimtree.NewDentryWithNewInode("")
	require.NoError(t, err)
	root.Parent = root
	root.Inode.Attributes = wimtypes.FileAttributeDirectory
	root.Inode.AddStream(&wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hashOf(9)})

	layout := planStreamLayout(true, root.Inode.Streams)
	require.Nil(t, layout.extras)
	require.True(t, layout.mainHash.IsZero())
}

func TestReservedUnusedSurvivesRoundTrip(t *testing.T) {
	root, err := wimtree.NewDentryWithNewInode("")
	require.NoError(t, err)
	root.Parent = root
	root.Inode.Attributes = wimtypes.FileAttributeDirectory

	file, err := wimtree.NewDentryWithNewInode("hello.txt")
	require.NoError(t, err)
	file.Inode.AddStream(&wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hashOf(1)})
	for i := range file.ReservedUnused {
		file.ReservedUnused[i] = byte(i + 1)
	}
	require.Nil(t, wimtree.AddChild(root, file))

	buf, werr := EncodeMetadataResource(root, security.Data{})
	require.Nil(t, werr)

	decoded, _, derr := DecodeMetadataResource(buf, func(string) {})
	require.Nil(t, derr)

	got := wimtree.Lookup(decoded, mustName(t, "hello.txt"), wimtypes.CaseSensitive, nil)
	require.NotNil(t, got)
	require.Equal(t, file.ReservedUnused, got.ReservedUnused)
}

func TestStreamLayoutNamedStreamsForceExtraEntries(t *testing.T) {
	streams := []*wimtree.Stream{
		{Type: wimtree.StreamTypeData, Hash: hashOf(1)},
		{Type: wimtree.StreamTypeData, Name: mustName(t, "ads"), Hash: hashOf(2)},
	}
	layout := planStreamLayout(false, streams)
	require.True(t, layout.mainHash.IsZero())
	require.Len(t, layout.extras, 2)
	require.True(t, layout.extras[0].Name.IsEmpty())
	require.Equal(t, "ads", layout.extras[1].Name.String())
}

func TestHardLinkFixupMergesInodes(t *testing.T) {
	root, err := wimtree.NewDentryWithNewInode("")
	require.NoError(t, err)
	root.Parent = root
	root.Inode.Attributes = wimtypes.FileAttributeDirectory

	a, err := wimtree.NewDentryWithNewInode("a")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, a))

	b, err := wimtree.NewDentryWithExistingInode("b", a.Inode)
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, b))

	buf, err := EncodeMetadataResource(root, security.Data{})
	require.Nil(t, err)

	decoded, _, derr := DecodeMetadataResource(buf, func(string) {})
	require.Nil(t, derr)

	da := wimtree.Lookup(decoded, mustName(t, "a"), wimtypes.CaseSensitive, nil)
	db := wimtree.Lookup(decoded, mustName(t, "b"), wimtypes.CaseSensitive, nil)
	require.NotNil(t, da)
	require.NotNil(t, db)
	require.Same(t, da.Inode, db.Inode)
	require.EqualValues(t, 2, da.Inode.Nlink)
}
