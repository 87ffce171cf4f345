package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/extract"
	"github.com/openwim/wimcore/pkg/wimcfg"
)

var (
	extractPath      string
	extractRecursive bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <archive-dir> <dest-dir>",
	Short: "Extract an image onto the real filesystem",
	Long: `Plan and execute extraction of --path (the image root by default) into
dest-dir, a real directory on disk.

Example:
  wim extract ./myproject.wimdir ./restored`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractPath, "path", "p", "", "root path to extract (default: image root)")
	extractCmd.Flags().BoolVarP(&extractRecursive, "recursive", "r", true, "also extract the ancestor directories of --path (descendants are always extracted)")
}

func runExtract(archiveDir, destDir string) error {
	cfg, err := wimcfg.Load()
	if err != nil {
		return err
	}
	_, img, manifest, err := openArchiveImage(archiveDir, cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	root := extractPath
	if root == "" {
		root = `\`
	}
	roots := []string{root}

	backend := newOSBackend(destDir)

	opts := extract.Options{
		WindowsNames: cfg.WindowsNames,
		VolumeNTPath: cfg.VolumeNTPath,
	}
	if cfg.StrictSymlinks {
		opts.Flags |= extract.StrictSymlinks
	}
	if cfg.StrictACLs {
		opts.Flags |= extract.StrictACLs
	}
	opts.Flags |= extract.FabricateInvalidNames
	if extractRecursive {
		opts.Flags |= extract.IncludeAncestors
	}

	read := func(blob *blobtable.Descriptor, emit func(chunk []byte) error) error {
		path, ok := manifest[blob.Hash.String()]
		if !ok {
			return fmt.Errorf("no manifest entry for blob %s", blob.Hash.String())
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer f.Close()

		buf := make([]byte, 256*1024)
		for {
			n, readErr := f.Read(buf)
			if n > 0 {
				if emitErr := emit(buf[:n]); emitErr != nil {
					return emitErr
				}
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					return nil
				}
				return readErr
			}
		}
	}

	plan, werr := img.Extract(roots, backend, opts, false, read)
	if werr != nil {
		return werr
	}
	for _, w := range plan.Warnings {
		logf("warning: %s", w)
	}
	if !quiet {
		fmt.Printf("extracted %d dentries into %s\n", len(plan.Dentries), destDir)
	}
	return nil
}
