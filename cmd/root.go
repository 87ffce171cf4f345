package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global output flags only
	verbose      bool
	quiet        bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "wim",
	Short: "In-memory WIM metadata-resource archive tool",
	Long: `wim is a command-line tool for building, inspecting, and extracting
the dentry/inode/stream tree of a WIM (Windows Imaging) archive image.

An "archive directory" holds one image's encoded metadata resource
(metadata.bin) plus a sidecar blob manifest (blobs.json) mapping content
hashes to the on-disk files that back them; the outer WIM container
(compression, XML info, integrity tables) is outside this tool's scope.

Commands:
  capture   Build a fresh image from a source directory
  list      List dentries in an image
  extract   Extract an image's files to a destination directory
  add       Graft a file or directory into an image
  delete    Remove a path from an image
  rename    Rename or move a path within an image
  export    Copy one image's tree into another archive directory`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (accepted but not used: every command prints plain text)")
}

func logf(format string, args ...any) {
	if !quiet && verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
