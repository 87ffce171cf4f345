package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openwim/wimcore/pkg/wim"
	"github.com/openwim/wimcore/pkg/wimcfg"
)

var (
	listPath      string
	listRecursive bool
)

var listCmd = &cobra.Command{
	Use:   "list <archive-dir>",
	Short: "List dentries in an image",
	Long: `List the dentries reachable from --path (the image root by default).

Examples:
  wim list ./myproject.wimdir
  wim list ./myproject.wimdir --path \Users\alice --recursive`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(args[0])
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listPath, "path", "p", "", "path to list (default: image root)")
	listCmd.Flags().BoolVarP(&listRecursive, "recursive", "r", false, "recursive listing")
}

func runList(archiveDir string) error {
	cfg, err := wimcfg.Load()
	if err != nil {
		return err
	}
	_, img, _, err := openArchiveImage(archiveDir, cfg)
	if err != nil {
		return err
	}

	count := 0
	err = img.Iterate(listPath, listRecursive, func(e wim.DirEntry) error {
		count++
		fmt.Printf("%s\n", e.Path)
		if verbose {
			for _, s := range e.Streams {
				fmt.Printf("    stream %q (%s, %d bytes)\n", s.Name, s.Type, s.Size)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("%d entries\n", count)
	}
	return nil
}
