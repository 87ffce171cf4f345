package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
	"github.com/openwim/wimcore/pkg/wim"
	"github.com/openwim/wimcore/pkg/wimcfg"
)

var captureCmd = &cobra.Command{
	Use:   "capture <source-dir> <archive-dir>",
	Short: "Build a fresh image from a source directory",
	Long: `Walk source-dir and build a new image whose dentry tree mirrors it,
writing the encoded metadata resource and blob manifest to archive-dir.

Example:
  wim capture ./myproject ./myproject.wimdir`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCapture(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
}

func runCapture(sourceDir, archiveDir string) error {
	cfg, err := wimcfg.Load()
	if err != nil {
		return err
	}

	archive := wim.NewArchive()
	meta := wim.NewImageMetadata(nil)
	idx, werr := archive.AddImage(meta)
	if werr != nil {
		return werr
	}
	img, werr := archive.SelectImage(idx)
	if werr != nil {
		return werr
	}
	img.SetCaseSensitivity(cfg.CaseSensitivity())

	root, err := wimtree.NewDentryWithNewInode("")
	if err != nil {
		return err
	}
	root.Inode.Attributes |= wimtypes.FileAttributeDirectory
	root.Parent = root
	img.Metadata().Root = root

	manifest := blobManifest{}
	byRelPath := map[string]*wimtree.Dentry{".": root}

	walkErr := filepath.WalkDir(sourceDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}

		parentRel := filepath.Dir(rel)
		parent, ok := byRelPath[parentRel]
		if !ok {
			return fmt.Errorf("internal error: parent %q not yet visited for %q", parentRel, rel)
		}

		var entry *wimtree.Dentry
		if d.IsDir() {
			entry, err = wimtree.NewFillerDirectory(d.Name())
			if err != nil {
				return err
			}
		} else {
			entry, err = wimtree.NewDentryWithNewInode(d.Name())
			if err != nil {
				return err
			}
			hash, size, hashErr := hashFile(path)
			if hashErr != nil {
				return hashErr
			}
			manifest[hash.String()] = path
			desc := archive.Blobs.Lookup(hash)
			if desc == nil {
				desc = blobtable.NewHashedDescriptor(hash, uint64(size))
				desc.Location = wimtypes.BlobLocationInFileOnDisk
				desc.FilePath = path
				archive.Blobs.Insert(desc)
			}
			stream := &wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hash}
			entry.Inode.AddStream(stream)
			stream.Resolve(archive.Blobs)
		}

		entry.Inode.CreationTime = toFiletime(info.ModTime())
		entry.Inode.LastWriteTime = entry.Inode.CreationTime
		entry.Inode.LastAccessTime = entry.Inode.CreationTime

		if existing := wimtree.AddChild(parent, entry); existing != nil {
			return fmt.Errorf("name collision capturing %q", rel)
		}
		if d.IsDir() {
			byRelPath[rel] = entry
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	if err := saveArchiveImage(archiveDir, img, manifest); err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("captured %s into %s\n", sourceDir, archiveDir)
	}
	return nil
}
