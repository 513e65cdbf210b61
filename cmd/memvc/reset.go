package main

import (
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewResetCmd(svc func() *internal.HistoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <ref>",
		Short: "Force the current branch to another commit",
		Long: `Move the current branch tip to ref and re-check-out the working view.
Commits left behind stay in the graph and remain reachable by id.`,
		Args: cobra.ExactArgs(1),
		RunE: makeResetRunner(svc),
	}
}

func makeResetRunner(svc func() *internal.HistoryService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")

		result, err := svc().Reset(cmd.Context(), args[0], scopeHint)
		if err != nil {
			return fmt.Errorf("reset: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Reset %s to %s (%d records changed)\n",
			result.Branch, result.Tip[:8], result.Changed())
		return nil
	}
}
