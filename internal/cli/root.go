// Package cli implements FlowRunner's thin command-line surface: enough to
// run or validate a flow file from a terminal without the desktop shell.
// Grounded on the teacher's cli/cmd/root.go cobra wiring.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowrunner",
	Short: "FlowRunner - declarative HTTP API flow authoring and execution",
	Long: `FlowRunner builds and runs declarative flows of HTTP request, condition,
and loop steps against external APIs.

The CLI surface is intentionally thin: the primary interface is the desktop
host application. These subcommands exist to run or check a flow file
headlessly.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
