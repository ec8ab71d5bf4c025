// Package cmd defines and implements the CLI commands for the podcast-ingest executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates a subcommand running one pipeline variant over its
// pending items. Item failures are logged; only run-level failures exit
// non-zero.
func newRunCmd(variant, short string) *cobra.Command {
	return &cobra.Command{
		Use:   variant,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := appInstance.Run(cmd.Context(), variant)
			if err != nil {
				return fmt.Errorf("run %s: %w", variant, err)
			}
			appInstance.GetLogger().Info(fmt.Sprintf("%s command finished.", variant),
				zap.String("run_id", summary.RunID),
				zap.Int("saved", summary.Saved),
				zap.Int("failed", summary.Failed),
			)
			return nil
		},
	}
}
