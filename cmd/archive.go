package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/dentry"
	"github.com/openwim/wimcore/internal/codec/security"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
	"github.com/openwim/wimcore/pkg/wim"
	"github.com/openwim/wimcore/pkg/wimcfg"
)

const (
	metadataFileName = "metadata.bin"
	blobsFileName    = "blobs.json"
)

// blobManifest is the sidecar mapping a blob's digest to the on-disk file
// that backs it. It stands in for the WIM container's own blob table and
// compressed resource storage, both out of this module's scope (spec.md
// §1); the CLI reads the file's bytes directly from FilePath on demand
// instead of decompressing an archived resource.
type blobManifest map[string]string // hex digest -> absolute file path

func manifestPath(dir string) string { return filepath.Join(dir, blobsFileName) }
func metadataPath(dir string) string { return filepath.Join(dir, metadataFileName) }

func loadManifest(dir string) (blobManifest, error) {
	data, err := os.ReadFile(manifestPath(dir))
	if os.IsNotExist(err) {
		return blobManifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := blobManifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", blobsFileName, err)
	}
	return m, nil
}

func saveManifest(dir string, m blobManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(manifestPath(dir), data, 0o644)
}

// openArchiveImage opens (or creates, if absent) a single-image archive
// directory, wiring its blob manifest into the shared blob table so stream
// resolution (internal/wimtree's Stream.Resolve) works against real files.
func openArchiveImage(dir string, cfg *wimcfg.Config) (*wim.Archive, *wim.Image, blobManifest, error) {
	archive := wim.NewArchive()

	manifest, err := loadManifest(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	for hexHash, path := range manifest {
		hash, err := hashFromHex(hexHash)
		if err != nil {
			return nil, nil, nil, err
		}
		size := int64(0)
		if fi, statErr := os.Stat(path); statErr == nil {
			size = fi.Size()
		}
		desc := blobtable.NewHashedDescriptor(hash, uint64(size))
		desc.Location = wimtypes.BlobLocationInFileOnDisk
		desc.FilePath = path
		archive.Blobs.Insert(desc)
	}

	meta := wim.NewImageMetadata(buildDecodeFunc(dir))
	idx, werr := archive.AddImage(meta)
	if werr != nil {
		return nil, nil, nil, werr
	}
	img, werr := archive.SelectImage(idx)
	if werr != nil {
		return nil, nil, nil, werr
	}
	img.SetCaseSensitivity(cfg.CaseSensitivity())
	return archive, img, manifest, nil
}

func buildDecodeFunc(dir string) wim.DecodeFunc {
	return func() (*wimtree.Dentry, security.Data, *wimtypes.WimError) {
		data, err := os.ReadFile(metadataPath(dir))
		if os.IsNotExist(err) {
			return nil, security.Data{}, nil
		}
		if err != nil {
			return nil, security.Data{}, wimtypes.WrapError(wimtypes.ErrOpen, metadataPath(dir), err)
		}
		root, sec, derr := dentry.DecodeMetadataResource(data, func(string) {})
		if derr != nil {
			return nil, security.Data{}, derr
		}
		return root, sec, nil
	}
}

// saveArchiveImage re-encodes the image's current tree and writes it, along
// with the blob manifest, back to dir.
func saveArchiveImage(dir string, img *wim.Image, manifest blobManifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	root := img.Metadata().Root
	if root == nil {
		return saveManifest(dir, manifest)
	}
	buf, werr := dentry.EncodeMetadataResource(root, img.Metadata().Security)
	if werr != nil {
		return werr
	}
	if err := os.WriteFile(metadataPath(dir), buf, 0o644); err != nil {
		return err
	}
	return saveManifest(dir, manifest)
}
