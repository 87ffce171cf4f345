package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
	"github.com/openwim/wimcore/pkg/wimcfg"
)

var addNoReplace bool

var addCmd = &cobra.Command{
	Use:   "add <archive-dir> <source-path> <target-path>",
	Short: "Add a file or directory tree into an image",
	Long: `Build a dentry (sub)tree from source-path on the real filesystem and
graft it into the image at target-path, creating intermediate filler
directories as needed.

Example:
  wim add ./myproject.wimdir ./newfile.txt \Users\alice\newfile.txt`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(args[0], args[1], args[2])
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().BoolVar(&addNoReplace, "no-replace", false, "fail instead of merging/replacing an existing target")
}

func runAdd(archiveDir, sourcePath, targetPath string) error {
	cfg, err := wimcfg.Load()
	if err != nil {
		return err
	}
	archive, img, manifest, err := openArchiveImage(archiveDir, cfg)
	if err != nil {
		return err
	}

	branch, err := buildDentryTree(sourcePath, archive.Blobs, manifest)
	if err != nil {
		return err
	}

	if werr := img.Add(branch, targetPath, addNoReplace); werr != nil {
		return werr
	}
	if err := saveArchiveImage(archiveDir, img, manifest); err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("added %s as %s\n", sourcePath, targetPath)
	}
	return nil
}

// buildDentryTree mirrors runCapture's walk, but rooted at a single source
// path instead of a whole capture, returning just the top dentry of the new
// branch for Image.Add to graft in.
func buildDentryTree(sourcePath string, blobs *blobtable.Table, manifest blobManifest) (*wimtree.Dentry, error) {
	info, err := os.Lstat(sourcePath)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(sourcePath)

	if !info.IsDir() {
		entry, err := wimtree.NewDentryWithNewInode(name)
		if err != nil {
			return nil, err
		}
		hash, size, hashErr := hashFile(sourcePath)
		if hashErr != nil {
			return nil, hashErr
		}
		manifest[hash.String()] = sourcePath
		if blobs.Lookup(hash) == nil {
			desc := blobtable.NewHashedDescriptor(hash, uint64(size))
			desc.Location = wimtypes.BlobLocationInFileOnDisk
			desc.FilePath = sourcePath
			blobs.Insert(desc)
		}
		stream := &wimtree.Stream{Type: wimtree.StreamTypeData, Hash: hash}
		entry.Inode.AddStream(stream)
		stream.Resolve(blobs)
		entry.Inode.CreationTime = toFiletime(info.ModTime())
		entry.Inode.LastWriteTime = entry.Inode.CreationTime
		entry.Inode.LastAccessTime = entry.Inode.CreationTime
		return entry, nil
	}

	entry, err := wimtree.NewFillerDirectory(name)
	if err != nil {
		return nil, err
	}
	entry.Inode.CreationTime = toFiletime(info.ModTime())
	entry.Inode.LastWriteTime = entry.Inode.CreationTime
	entry.Inode.LastAccessTime = entry.Inode.CreationTime

	children, err := os.ReadDir(sourcePath)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		child, err := buildDentryTree(filepath.Join(sourcePath, c.Name()), blobs, manifest)
		if err != nil {
			return nil, err
		}
		if existing := wimtree.AddChild(entry, child); existing != nil {
			return nil, fmt.Errorf("name collision building %q", c.Name())
		}
	}
	return entry, nil
}
