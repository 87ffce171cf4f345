package journal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

func init() {
	encoding.Init()
}

func newRoot(t *testing.T) *wimtree.Dentry {
	t.Helper()
	root, err := wimtree.NewDentryWithNewInode("")
	require.NoError(t, err)
	root.Inode.Attributes |= wimtypes.FileAttributeDirectory
	root.Parent = root
	return root
}

func TestUnlinkThenRollbackRestoresChild(t *testing.T) {
	root := newRoot(t)
	child, err := wimtree.NewDentryWithNewInode("a")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, child))

	j := New(nil)
	j.UnlinkDentry(child)
	require.Nil(t, wimtree.Lookup(root, child.Name, wimtypes.CaseSensitive, nil))

	j.Rollback()
	require.Same(t, child, wimtree.Lookup(root, child.Name, wimtypes.CaseSensitive, nil))
}

func TestChangeNameRollbackRestoresOldNameAndCollation(t *testing.T) {
	root := newRoot(t)
	child, err := wimtree.NewDentryWithNewInode("a")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, child))

	newName, err := encoding.NewNameFromString("z")
	require.NoError(t, err)

	j := New(nil)
	require.Nil(t, j.ChangeName(child, newName))
	require.Equal(t, "z", child.Name.String())
	require.NotNil(t, wimtree.Lookup(root, newName, wimtypes.CaseSensitive, nil))

	j.Rollback()
	require.Equal(t, "a", child.Name.String())
	require.Same(t, child, wimtree.Lookup(root, child.Name, wimtypes.CaseSensitive, nil))
}

func TestAddCreatesFillerDirectoriesAndLinksBranch(t *testing.T) {
	root := newRoot(t)
	branch, err := wimtree.NewDentryWithNewInode("unused")
	require.NoError(t, err)

	werr := Add(root, branch, `\a\b\file.txt`, '\\', wimtypes.CaseSensitive, false, nil, nil)
	require.Nil(t, werr)

	got, lerr := wimtree.LookupPath(root, `\a\b\file.txt`, '\\', wimtypes.CaseSensitive, nil)
	require.Nil(t, lerr)
	require.Same(t, branch, got)
}

func TestAddNoReplaceReturnsNameCollision(t *testing.T) {
	root := newRoot(t)
	first, err := wimtree.NewDentryWithNewInode("unused")
	require.NoError(t, err)
	require.Nil(t, Add(root, first, `\file.txt`, '\\', wimtypes.CaseSensitive, false, nil, nil))

	second, err := wimtree.NewDentryWithNewInode("unused")
	require.NoError(t, err)
	werr := Add(root, second, `\file.txt`, '\\', wimtypes.CaseSensitive, true, nil, nil)
	require.NotNil(t, werr)
	require.True(t, werr.Is(wimtypes.Err(wimtypes.ErrNameCollision)))

	// Tree must be unchanged: the original file is still there, untouched.
	got, lerr := wimtree.LookupPath(root, `\file.txt`, '\\', wimtypes.CaseSensitive, nil)
	require.Nil(t, lerr)
	require.Same(t, first, got)
}

func TestAddMergesDirectories(t *testing.T) {
	root := newRoot(t)
	a, err := wimtree.NewFillerDirectory("a")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, a))
	existingChild, err := wimtree.NewDentryWithNewInode("existing.txt")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(a, existingChild))

	branchDir, err := wimtree.NewFillerDirectory("unused")
	require.NoError(t, err)
	newChild, err := wimtree.NewDentryWithNewInode("new.txt")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(branchDir, newChild))

	werr := Add(root, branchDir, `\a`, '\\', wimtypes.CaseSensitive, false, nil, nil)
	require.Nil(t, werr)

	gotExisting, lerr := wimtree.LookupPath(root, `\a\existing.txt`, '\\', wimtypes.CaseSensitive, nil)
	require.Nil(t, lerr)
	require.Same(t, existingChild, gotExisting)

	gotNew, lerr := wimtree.LookupPath(root, `\a\new.txt`, '\\', wimtypes.CaseSensitive, nil)
	require.Nil(t, lerr)
	require.Same(t, newChild, gotNew)
}

func TestDeleteRequiresRecursiveForNonEmptyDirectory(t *testing.T) {
	root := newRoot(t)
	dir, err := wimtree.NewFillerDirectory("dir")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, dir))
	child, err := wimtree.NewDentryWithNewInode("f")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(dir, child))

	werr := Delete(root, `\dir`, '\\', wimtypes.CaseSensitive, false, false, nil, nil)
	require.NotNil(t, werr)
	require.True(t, werr.Is(wimtypes.Err(wimtypes.ErrNotEmpty)))

	require.Nil(t, Delete(root, `\dir`, '\\', wimtypes.CaseSensitive, true, false, nil, nil))
	require.Nil(t, wimtree.Lookup(root, dir.Name, wimtypes.CaseSensitive, nil))
}

func TestDeleteForceSuppressesMissingPath(t *testing.T) {
	root := newRoot(t)
	require.Nil(t, Delete(root, `\nope`, '\\', wimtypes.CaseSensitive, false, true, nil, nil))
}

// TestScenarioS5BatchRollbackOnThirdOperationFailure implements spec.md §8
// scenario S5: a batch of {add /x/a, rename /x/a -> /x/b, delete /x/b} where
// the add and rename succeed but the delete fails (here, because /x/b still
// has children and the caller did not request a recursive delete); rollback
// must leave /x exactly as it started.
func TestScenarioS5BatchRollbackOnThirdOperationFailure(t *testing.T) {
	root := newRoot(t)
	x, err := wimtree.NewFillerDirectory("x")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, x))
	orig, err := wimtree.NewDentryWithNewInode("orig.txt")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(x, orig))

	j := New(nil)

	// add /x/a
	a, err := wimtree.NewFillerDirectory("a")
	require.NoError(t, err)
	grandchild, err := wimtree.NewDentryWithNewInode("inside.txt")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(a, grandchild))
	require.Nil(t, j.LinkDentry(a, x))

	// rename /x/a -> /x/b
	bName, nerr := encoding.NewNameFromString("b")
	require.NoError(t, nerr)
	require.Nil(t, j.ChangeName(a, bName))

	// delete /x/b fails: it still has a child and this batch does not
	// request a recursive delete, so no primitive is applied for it.
	require.True(t, a.HasChildren())
	require.NotNil(t, Delete(root, `\x\b`, '\\', wimtypes.CaseSensitive, false, false, nil, nil))

	j.Rollback()

	require.Nil(t, wimtree.Lookup(x, bName, wimtypes.CaseSensitive, nil))
	aName, nerr := encoding.NewNameFromString("a")
	require.NoError(t, nerr)
	require.Nil(t, wimtree.Lookup(x, aName, wimtypes.CaseSensitive, nil))

	origName, nerr := encoding.NewNameFromString("orig.txt")
	require.NoError(t, nerr)
	require.Same(t, orig, wimtree.Lookup(x, origName, wimtypes.CaseSensitive, nil))

	var children []string
	wimtree.ForEachChild(x, func(d *wimtree.Dentry) bool {
		children = append(children, d.Name.String())
		return true
	})
	require.Equal(t, []string{"orig.txt"}, children)
}
