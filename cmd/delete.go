package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openwim/wimcore/pkg/wimcfg"
)

var (
	deleteRecursive bool
	deleteForce     bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <archive-dir> <path>",
	Short: "Delete a dentry from an image",
	Long: `Delete the dentry at path. --recursive is required to delete a
non-empty directory; --force also suppresses the error when path does not
exist.

Example:
  wim delete ./myproject.wimdir \Users\alice\scratch --recursive`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVarP(&deleteRecursive, "recursive", "r", false, "delete a non-empty directory and its contents")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "ignore a missing path")
}

func runDelete(archiveDir, path string) error {
	cfg, err := wimcfg.Load()
	if err != nil {
		return err
	}
	_, img, manifest, err := openArchiveImage(archiveDir, cfg)
	if err != nil {
		return err
	}

	if werr := img.Delete(path, deleteRecursive, deleteForce); werr != nil {
		return werr
	}
	if err := saveArchiveImage(archiveDir, img, manifest); err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("deleted %s\n", path)
	}
	return nil
}
