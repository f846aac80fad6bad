package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flowrunner/flow/codec"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow.json>",
	Short: "Check a flow file for structural and variable-reachability errors",
	Args:  cobra.ExactArgs(1),
	RunE:  validateFlow,
}

func validateFlow(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %q: %w", args[0], err)
	}

	f, err := codec.Deserialize(data)
	if err != nil {
		return fmt.Errorf("failed to parse flow: %w", err)
	}

	result := codec.Validate(f)
	if result.Valid {
		fmt.Fprintln(cmd.OutOrStdout(), "ok: no validation errors")
		return nil
	}

	for _, e := range result.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s: %s\n", e.StepID, e.Field, e.Message)
	}
	return fmt.Errorf("%d validation error(s)", len(result.Errors))
}
