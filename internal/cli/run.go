package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"flowrunner/flow"
	"flowrunner/flow/codec"
	"flowrunner/interp"
)

var runCmd = &cobra.Command{
	Use:   "run <flow.json>",
	Short: "Run a flow file to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlow,
}

func runFlow(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %q: %w", args[0], err)
	}

	f, err := codec.Deserialize(data)
	if err != nil {
		return fmt.Errorf("failed to parse flow: %w", err)
	}

	if result := codec.Validate(f); !result.Valid {
		for _, e := range result.Errors {
			logger.Warn("flow validation error", "step", e.StepID, "field", e.Field, "message", e.Message)
		}
	}

	var exitErr error
	cfg, err := interp.NewConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to build interpreter config: %w", err)
	}

	callbacks := interp.Callbacks{
		OnStepStart: func(step flow.Step, path []flow.Point) int {
			logger.Info("step start", "id", step.ID, "name", step.Name, "kind", string(step.Kind))
			return 0
		},
		OnStepComplete: func(idx int, step flow.Step, result flow.StepResult, ctx flow.RuntimeContext, path []flow.Point) {
			logger.Info("step complete", "id", step.ID, "status", string(result.Status), "error", result.Error)
		},
		OnFlowComplete: func(ctx flow.RuntimeContext, results []flow.StepResult) {
			logger.Info("flow complete", "steps", len(results))
		},
		OnFlowStopped: func(ctx flow.RuntimeContext, results []flow.StepResult) {
			logger.Warn("flow stopped", "steps", len(results))
			exitErr = fmt.Errorf("flow stopped before completion")
		},
		OnError: func(err error) {
			logger.Error("flow error", "error", err.Error())
		},
		OnMessage: func(msg string) {
			logger.Info("flow message", "message", msg)
		},
	}

	ip := interp.New(cfg, interp.NewRestyRequester(), callbacks, logger)
	if err := ip.Run(f, false); err != nil {
		return err
	}
	return exitErr
}
