// Package cli wires the tracegen command surface.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the root cobra command for the tracegen CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracegen",
		Short: "Generate USDT probe wrappers for Go packages",
		Long: `tracegen turns annotated Go interfaces into static tracing probes.

The detect step checks whether the host toolchain can provide native USDT
support and records the outcome; the generate step scans packages for
provider declarations and emits the native wrapper sources together with
matching Go stubs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newDetectCmd(stdout, stderr))
	cmd.AddCommand(newGenerateCmd(stdout, stderr))

	return cmd
}

// Execute runs the CLI with the process stdio.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
