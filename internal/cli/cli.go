// Package cli implements the oxy-capture command-line interface.
//
// # Commands
//
//   - export: render a frame range of the calibration scene to OpenEXR files
//   - inspect: print the header and per-channel ranges of an OpenEXR file
//
// All commands support --verbose (-v) for debug-level logging. Loggers are passed
// through context.Context.
package cli

import (
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version.
//
// Parameters:
//   - v: semantic version string
//   - c: git commit SHA
//   - d: build timestamp
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// RootCommand builds the oxy-capture command tree.
//
// Returns:
//   - *cobra.Command: the root command; run it with ExecuteContext
func RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "oxy-capture",
		Short:        "oxy-capture renders HDR frame sequences to OpenEXR",
		Long:         `oxy-capture renders frames on the GPU into a floating-point target, reads them back and writes each one as an uncompressed OpenEXR file.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("oxy-capture %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newExportCmd())
	root.AddCommand(newInspectCmd())
	return root
}
