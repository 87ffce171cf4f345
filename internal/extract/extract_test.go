package extract

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
	"github.com/openwim/wimcore/internal/wiminterfaces"
)

func init() {
	encoding.Init()
}

// fakeBackend records every call it receives, for assertion, and reports a
// fixed FeatureSet.
type fakeBackend struct {
	features      wiminterfaces.FeatureSet
	dirs          []string
	hardlinks     [][2]string
	beginCalls    [][]string
	metadataPaths []string
	order         []string
}

func (f *fakeBackend) Features() wiminterfaces.FeatureSet { return f.features }

func (f *fakeBackend) CreateDirectory(path string, inode *wimtree.Inode) error {
	f.dirs = append(f.dirs, path)
	f.order = append(f.order, "dir:"+path)
	return nil
}

func (f *fakeBackend) CreateHardLink(path, existingPath string) error {
	f.hardlinks = append(f.hardlinks, [2]string{path, existingPath})
	f.order = append(f.order, "link:"+path)
	return nil
}

func (f *fakeBackend) BeginBlob(paths []string, blob *blobtable.Descriptor) (wiminterfaces.ExtractionSink, error) {
	cp := append([]string(nil), paths...)
	f.beginCalls = append(f.beginCalls, cp)
	f.order = append(f.order, "begin:"+paths[0])
	return "sink", nil
}

func (f *fakeBackend) ContinueBlob(sink wiminterfaces.ExtractionSink, chunk []byte) error { return nil }

func (f *fakeBackend) EndBlob(sink wiminterfaces.ExtractionSink) error { return nil }

func (f *fakeBackend) ApplyMetadata(path string, d *wimtree.Dentry) error {
	f.metadataPaths = append(f.metadataPaths, path)
	f.order = append(f.order, "meta:"+path)
	return nil
}

func newRootDir(t *testing.T) *wimtree.Dentry {
	t.Helper()
	root, err := wimtree.NewDentryWithNewInode("")
	require.NoError(t, err)
	root.Inode.Attributes |= wimtypes.FileAttributeDirectory
	root.Inode.Ino = 0
	root.Parent = root
	return root
}

func TestPlannerCaseInsensitiveCollisionFabricatesName(t *testing.T) {
	root := newRootDir(t)
	foo, err := wimtree.NewDentryWithNewInode("foo")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, foo))
	FOO, err := wimtree.NewDentryWithNewInode("FOO")
	require.NoError(t, err)
	// Case-sensitive AddChild allows both to coexist in the in-memory tree;
	// only the case-insensitive extraction target cannot.
	require.Nil(t, wimtree.AddChild(root, FOO))

	table := blobtable.New()
	backend := &fakeBackend{features: wiminterfaces.FeatureSet{CaseInsensitiveNames: true}}
	p := New(backend, table, Options{Flags: FabricateInvalidNames})

	plan, werr := p.Plan([]*wimtree.Dentry{root}, false)
	require.Nil(t, werr)

	var names []string
	for _, d := range plan.Dentries {
		if d != root {
			names = append(names, d.ExtractionName)
		}
	}
	require.Contains(t, names, "foo")
	require.Contains(t, names, "FOO (invalid filename #1)")
}

func TestPlannerHardLinkTallyProducesOneBlobWorkWithTwoTargets(t *testing.T) {
	root := newRootDir(t)
	a, err := wimtree.NewFillerDirectory("a")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, a))
	b, err := wimtree.NewFillerDirectory("b")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, b))

	link1, err := wimtree.NewDentryWithNewInode("link1")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(a, link1))
	link2, err := wimtree.NewDentryWithExistingInode("link2", link1.Inode)
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(b, link2))

	var hash blobtable.Hash
	hash[0] = 0xAB
	desc := blobtable.NewHashedDescriptor(hash, 7)
	table := blobtable.New()
	table.Insert(desc)
	link1.Inode.AddStream(&wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hash})

	backend := &fakeBackend{features: wiminterfaces.FeatureSet{HardLinks: true}}
	p := New(backend, table, Options{})

	plan, werr := p.Plan([]*wimtree.Dentry{root}, false)
	require.Nil(t, werr)
	require.Len(t, plan.Blobs, 1)
	require.Len(t, plan.Blobs[0].Targets, 2)

	werr = p.Execute(plan, nil)
	require.Nil(t, werr)
	require.Len(t, backend.hardlinks, 1)
	require.Len(t, backend.beginCalls, 1)
	require.Len(t, backend.beginCalls[0], 2)
}

// TestExecuteStreamsPrimaryBeforeLinkingAliases guards against re-ordering
// Execute's phases: a backend that materializes real links (e.g. os.Link)
// requires the primary alias's file to already exist on disk, so the primary
// must be streamed before any CreateHardLink call against its path.
func TestExecuteStreamsPrimaryBeforeLinkingAliases(t *testing.T) {
	root := newRootDir(t)
	link1, err := wimtree.NewDentryWithNewInode("link1")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, link1))
	link2, err := wimtree.NewDentryWithExistingInode("link2", link1.Inode)
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, link2))

	var hash blobtable.Hash
	hash[0] = 0xCD
	desc := blobtable.NewHashedDescriptor(hash, 3)
	table := blobtable.New()
	table.Insert(desc)
	link1.Inode.AddStream(&wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hash})

	backend := &fakeBackend{features: wiminterfaces.FeatureSet{HardLinks: true}}
	p := New(backend, table, Options{})

	plan, werr := p.Plan([]*wimtree.Dentry{root}, false)
	require.Nil(t, werr)
	require.Nil(t, p.Execute(plan, nil))

	beginIdx, linkIdx := -1, -1
	for i, entry := range backend.order {
		switch {
		case beginIdx < 0 && len(entry) > 6 && entry[:6] == "begin:":
			beginIdx = i
		case linkIdx < 0 && len(entry) > 5 && entry[:5] == "link:":
			linkIdx = i
		}
	}
	require.GreaterOrEqual(t, beginIdx, 0)
	require.GreaterOrEqual(t, linkIdx, 0)
	require.Less(t, beginIdx, linkIdx)
}

// TestSelectStreamsGatesEfsrpcOnEncryptedFeaturesNotHardLinks guards against
// reusing features.HardLinks to decide whether an EFSRPC raw stream is
// honored: a backend with hard-link support but no EFS support must drop the
// stream, and a backend with EFS support but no hard-link support must keep
// it (spec.md §4.10 phase 5).
func TestSelectStreamsGatesEfsrpcOnEncryptedFeaturesNotHardLinks(t *testing.T) {
	fileInode := &wimtree.Inode{Attributes: wimtypes.FileAttributeEncrypted}
	fileStream := &wimtree.Stream{Type: wimtree.StreamTypeEfsrpcRawData}
	fileInode.AddStream(fileStream)

	dirInode := &wimtree.Inode{Attributes: wimtypes.FileAttributeEncrypted | wimtypes.FileAttributeDirectory}
	dirStream := &wimtree.Stream{Type: wimtree.StreamTypeEfsrpcRawData}
	dirInode.AddStream(dirStream)

	hardLinksOnly := wiminterfaces.FeatureSet{HardLinks: true}
	require.Empty(t, selectStreams(fileInode, hardLinksOnly))
	require.Empty(t, selectStreams(dirInode, hardLinksOnly))

	efsOnly := wiminterfaces.FeatureSet{EncryptedFiles: true, EncryptedDirectories: true}
	require.ElementsMatch(t, []*wimtree.Stream{fileStream}, selectStreams(fileInode, efsOnly))
	require.ElementsMatch(t, []*wimtree.Stream{dirStream}, selectStreams(dirInode, efsOnly))

	filesOnly := wiminterfaces.FeatureSet{EncryptedFiles: true}
	require.ElementsMatch(t, []*wimtree.Stream{fileStream}, selectStreams(fileInode, filesOnly))
	require.Empty(t, selectStreams(dirInode, filesOnly))
}

// TestCheckFeaturesTalliesAndWarnsOnUnsupportedEncryptedFiles covers
// checkFeatures' extended tally (spec.md §4.10 phase 8): an encrypted file
// against a backend that doesn't support EncryptedFiles must be counted and
// produce a warning rather than silently vanish or fail the plan.
func TestCheckFeaturesTalliesAndWarnsOnUnsupportedEncryptedFiles(t *testing.T) {
	root := newRootDir(t)
	encrypted, err := wimtree.NewDentryWithNewInode("secret.txt")
	require.NoError(t, err)
	encrypted.Inode.Attributes |= wimtypes.FileAttributeEncrypted
	require.Nil(t, wimtree.AddChild(root, encrypted))

	table := blobtable.New()
	backend := &fakeBackend{features: wiminterfaces.FeatureSet{}}
	p := New(backend, table, Options{})

	plan, werr := p.Plan([]*wimtree.Dentry{root}, false)
	require.Nil(t, werr)
	require.Equal(t, 1, plan.Features.EncryptedFiles)
	require.Equal(t, 0, plan.Features.EncryptedDirectories)

	found := false
	for _, w := range plan.Warnings {
		if strings.Contains(w, "encrypted files") {
			found = true
		}
	}
	require.True(t, found, "expected a warning about unsupported encrypted files, got %v", plan.Warnings)
}

// TestStreamBlobsStagesOnceWhenTargetsExceedMaxOpenFiles guards against
// re-reading a blob once per chunkTargets batch: a blob with more than
// MaxOpenFiles targets must still invoke read exactly once (spec.md §4.10
// phase 9, "a blob is streamed once regardless of number of targets").
func TestStreamBlobsStagesOnceWhenTargetsExceedMaxOpenFiles(t *testing.T) {
	root := newRootDir(t)

	const aliasCount = wimtypes.MaxOpenFiles + 1
	var inode *wimtree.Inode
	for i := 0; i < aliasCount; i++ {
		name := "link" + strconv.Itoa(i)
		var d *wimtree.Dentry
		var err error
		if inode == nil {
			d, err = wimtree.NewDentryWithNewInode(name)
			require.NoError(t, err)
			inode = d.Inode
		} else {
			d, err = wimtree.NewDentryWithExistingInode(name, inode)
			require.NoError(t, err)
		}
		require.Nil(t, wimtree.AddChild(root, d))
	}

	var hash blobtable.Hash
	hash[0] = 0xEF
	desc := blobtable.NewHashedDescriptor(hash, 1)
	table := blobtable.New()
	table.Insert(desc)
	inode.AddStream(&wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hash})

	backend := &fakeBackend{features: wiminterfaces.FeatureSet{HardLinks: true}}
	p := New(backend, table, Options{})

	plan, werr := p.Plan([]*wimtree.Dentry{root}, false)
	require.Nil(t, werr)
	require.Len(t, plan.Blobs, 1)
	require.Len(t, plan.Blobs[0].Targets, aliasCount)

	readCalls := 0
	read := func(blob *blobtable.Descriptor, emit func([]byte) error) error {
		readCalls++
		return emit([]byte{0x01})
	}

	werr = p.Execute(plan, read)
	require.Nil(t, werr)
	require.Equal(t, 1, readCalls, "blob must be read exactly once regardless of how many batches its targets span")
	require.Len(t, backend.beginCalls, 2, "513 targets over MaxOpenFiles=512 must split into two BeginBlob batches")
}

func TestNormalizeRootsDropsDuplicatesAndDescendants(t *testing.T) {
	root := newRootDir(t)
	dir, err := wimtree.NewFillerDirectory("dir")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(root, dir))
	child, err := wimtree.NewDentryWithNewInode("child")
	require.NoError(t, err)
	require.Nil(t, wimtree.AddChild(dir, child))

	result := normalizeRoots([]*wimtree.Dentry{dir, child, dir})
	require.Len(t, result, 1)
	require.Same(t, dir, result[0])
}
