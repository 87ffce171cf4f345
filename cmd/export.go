package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openwim/wimcore/internal/wimtypes"
	"github.com/openwim/wimcore/pkg/wimcfg"
)

var exportCmd = &cobra.Command{
	Use:   "export <src-archive-dir> <dest-archive-dir>",
	Short: "Export an image's tree into a fresh destination archive",
	Long: `Deep-copy src-archive-dir's image tree into dest-archive-dir,
re-referencing every blob into the destination's blob table. dest-archive-dir
must not already hold an image.

Example:
  wim export ./myproject.wimdir ./myproject-copy.wimdir`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(srcDir, destDir string) error {
	cfg, err := wimcfg.Load()
	if err != nil {
		return err
	}

	_, srcImg, srcManifest, err := openArchiveImage(srcDir, cfg)
	if err != nil {
		return err
	}

	_, destImg, destManifest, err := openArchiveImage(destDir, cfg)
	if err != nil {
		return err
	}
	if destImg.Metadata().Root != nil {
		return wimtypes.NewError(wimtypes.ErrInvalidParameter, "export destination already holds an image")
	}

	if werr := srcImg.ExportInto(destImg); werr != nil {
		return werr
	}

	for hash, path := range srcManifest {
		destManifest[hash] = path
	}
	if err := saveArchiveImage(destDir, destImg, destManifest); err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("exported %s into %s\n", srcDir, destDir)
	}
	return nil
}
