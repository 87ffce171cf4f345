package wimtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtypes"
)

func init() {
	encoding.Init()
}

func newTestRoot(t *testing.T) *Dentry {
	t.Helper()
	root, err := NewDentryWithNewInode("")
	require.NoError(t, err)
	root.Inode.Attributes |= wimtypes.FileAttributeDirectory
	root.Parent = root
	return root
}

func newTestFile(t *testing.T, name string) *Dentry {
	t.Helper()
	d, err := NewDentryWithNewInode(name)
	require.NoError(t, err)
	return d
}

func TestAddChildThenLookupFindsIt(t *testing.T) {
	root := newTestRoot(t)
	a := newTestFile(t, "a")
	require.Nil(t, AddChild(root, a))

	name, err := encoding.NewNameFromString("a")
	require.NoError(t, err)
	require.Same(t, a, Lookup(root, name, wimtypes.CaseSensitive, nil))
	require.Same(t, root, a.Parent)
}

func TestAddChildReturnsExistingOnCollision(t *testing.T) {
	root := newTestRoot(t)
	first := newTestFile(t, "a")
	second := newTestFile(t, "a")
	require.Nil(t, AddChild(root, first))
	require.Same(t, first, AddChild(root, second))
}

func TestUnlinkRemovesFromParentIndex(t *testing.T) {
	root := newTestRoot(t)
	a := newTestFile(t, "a")
	require.Nil(t, AddChild(root, a))
	Unlink(a)

	name, err := encoding.NewNameFromString("a")
	require.NoError(t, err)
	require.Nil(t, Lookup(root, name, wimtypes.CaseSensitive, nil))
}

func TestLookupPathTraversesNestedDirectories(t *testing.T) {
	root := newTestRoot(t)
	sub, err := NewFillerDirectory("sub")
	require.NoError(t, err)
	require.Nil(t, AddChild(root, sub))
	leaf := newTestFile(t, "leaf")
	require.Nil(t, AddChild(sub, leaf))

	found, werr := LookupPath(root, `\sub\leaf`, '\\', wimtypes.CaseSensitive, nil)
	require.Nil(t, werr)
	require.Same(t, leaf, found)
}

func TestLookupPathMissingComponentFails(t *testing.T) {
	root := newTestRoot(t)
	_, werr := LookupPath(root, `\nope\leaf`, '\\', wimtypes.CaseSensitive, nil)
	require.NotNil(t, werr)
}

// TestChildCollationOrdersCaseInsensitiveThenCaseSensitive verifies invariant
// #6: in-order traversal of a directory's children yields the two-level
// (case-insensitive, then case-sensitive) collation order.
func TestChildCollationOrdersCaseInsensitiveThenCaseSensitive(t *testing.T) {
	root := newTestRoot(t)
	for _, n := range []string{"foo", "Bar", "FOO", "bar", "baz"} {
		require.Nil(t, AddChild(root, newTestFile(t, n)))
	}

	var order []string
	ForEachChild(root, func(d *Dentry) bool {
		order = append(order, d.Name.String())
		return true
	})

	for i := 1; i < len(order); i++ {
		nameA, err := encoding.NewNameFromString(order[i-1])
		require.NoError(t, err)
		nameB, err := encoding.NewNameFromString(order[i])
		require.NoError(t, err)
		require.LessOrEqual(t, encoding.CompareCollation(nameA, nameB), 0)
	}
}

// TestHardLinkConsistency verifies invariant #5: an inode's alias count
// equals the number of dentries referencing it, and a shared stream's blob
// refcnt equals the total number of aliasing dentries.
func TestHardLinkConsistency(t *testing.T) {
	root := newTestRoot(t)
	table := blobtable.New()

	first := newTestFile(t, "link1")
	require.Nil(t, AddChild(root, first))

	second, err := NewDentryWithExistingInode("link2", first.Inode)
	require.NoError(t, err)
	require.Nil(t, AddChild(root, second))

	hash := blobtable.Hash{1, 2, 3}
	desc := blobtable.NewHashedDescriptor(hash, 7)
	table.Insert(desc)
	stream := &Stream{Type: StreamTypeData, Hash: hash}
	first.Inode.AddStream(stream)
	stream.Resolve(table)

	RefBlobs(first.Inode, table)

	aliasCount := 0
	first.Inode.ForEachAlias(func(*Dentry) bool {
		aliasCount++
		return true
	})
	require.Equal(t, 2, aliasCount)
	require.EqualValues(t, 2, desc.Refcnt)
}

func TestRenameAtomicRollbackOnFailure(t *testing.T) {
	root := newTestRoot(t)
	table := blobtable.New()
	x, err := NewFillerDirectory("x")
	require.NoError(t, err)
	require.Nil(t, AddChild(root, x))
	a := newTestFile(t, "a")
	require.Nil(t, AddChild(x, a))

	before := FullPath(a, '\\')

	// Renaming into a nonexistent destination directory must fail without
	// touching the tree.
	werr := Rename(root, `\x\a`, `\missing\b`, '\\', wimtypes.CaseSensitive, false, table, nil)
	require.NotNil(t, werr)

	name, nerr := encoding.NewNameFromString("a")
	require.NoError(t, nerr)
	still := Lookup(x, name, wimtypes.CaseSensitive, nil)
	require.NotNil(t, still)
	require.Equal(t, before, FullPath(still, '\\'))
}

func TestFreeDentryTreeUnreferencesBlobs(t *testing.T) {
	root := newTestRoot(t)
	table := blobtable.New()
	a := newTestFile(t, "a")
	hash := blobtable.Hash{9, 9, 9}
	desc := blobtable.NewHashedDescriptor(hash, 3)
	table.Insert(desc)
	stream := &Stream{Type: StreamTypeData, Hash: hash}
	a.Inode.AddStream(stream)
	stream.Resolve(table)
	require.Nil(t, AddChild(root, a))
	RefBlobs(a.Inode, table)
	require.EqualValues(t, 1, desc.Refcnt)

	FreeDentryTree(root, table)
	require.EqualValues(t, 0, desc.Refcnt)
}
