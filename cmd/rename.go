package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openwim/wimcore/pkg/wimcfg"
)

var renameNoReplace bool

var renameCmd = &cobra.Command{
	Use:   "rename <archive-dir> <from> <to>",
	Short: "Rename or move a dentry within an image",
	Long: `Move/rename the dentry at from to to, atomically.

Example:
  wim rename ./myproject.wimdir \Users\alice\old.txt \Users\alice\new.txt`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRename(args[0], args[1], args[2])
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
	renameCmd.Flags().BoolVar(&renameNoReplace, "no-replace", false, "fail instead of replacing an existing target")
}

func runRename(archiveDir, from, to string) error {
	cfg, err := wimcfg.Load()
	if err != nil {
		return err
	}
	_, img, manifest, err := openArchiveImage(archiveDir, cfg)
	if err != nil {
		return err
	}

	if werr := img.Rename(from, to, renameNoReplace); werr != nil {
		return werr
	}
	if err := saveArchiveImage(archiveDir, img, manifest); err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("renamed %s to %s\n", from, to)
	}
	return nil
}
