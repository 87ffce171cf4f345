package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

func TestOSBackendFullPathStripsLeadingSeparatorAndConvertsSlashes(t *testing.T) {
	b := newOSBackend("/dest")
	require.Equal(t, filepath.Join("/dest", "a", "b"), b.fullPath(`\a\b`))
	require.Equal(t, "/dest", b.fullPath(`\`))
}

func TestOSBackendBeginContinueEndBlobWritesContentAtomically(t *testing.T) {
	dir := t.TempDir()
	b := newOSBackend(dir)

	sink, err := b.BeginBlob([]string{`\file.txt`}, &blobtable.Descriptor{})
	require.NoError(t, err)
	require.NoError(t, b.ContinueBlob(sink, []byte("hello ")))
	require.NoError(t, b.ContinueBlob(sink, []byte("world")))
	require.NoError(t, b.EndBlob(sink))

	got, err := os.ReadFile(filepath.Join(dir, "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestOSBackendCreateHardLinkReplacesDuplicateWithTrueLink(t *testing.T) {
	dir := t.TempDir()
	b := newOSBackend(dir)

	sink, err := b.BeginBlob([]string{`\a\link1`, `\b\link2`}, &blobtable.Descriptor{})
	require.NoError(t, err)
	require.NoError(t, b.ContinueBlob(sink, []byte("shared")))
	require.NoError(t, b.EndBlob(sink))

	require.NoError(t, b.CreateHardLink(`\b\link2`, `\a\link1`))

	info1, err := os.Stat(filepath.Join(dir, "a", "link1"))
	require.NoError(t, err)
	info2, err := os.Stat(filepath.Join(dir, "b", "link2"))
	require.NoError(t, err)
	require.True(t, os.SameFile(info1, info2))

	content, err := os.ReadFile(filepath.Join(dir, "b", "link2"))
	require.NoError(t, err)
	require.Equal(t, "shared", string(content))
}

func TestOSBackendApplyMetadataSetsReadonlyMode(t *testing.T) {
	dir := t.TempDir()
	b := newOSBackend(dir)
	full := filepath.Join(dir, "ro.txt")
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))

	inode := &wimtree.Inode{Attributes: wimtypes.FileAttributeReadonly}
	d := &wimtree.Dentry{Inode: inode}
	require.NoError(t, b.ApplyMetadata(`\ro.txt`, d))

	info, err := os.Stat(full)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())
}
