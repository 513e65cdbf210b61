package main

import (
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewDiscardCmd(svc func() *internal.HistoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Drop all staged operations",
		Long:  `Throw away staged operations and restore the working view to the checked-out commit.`,
		RunE:  makeDiscardRunner(svc),
	}
}

func makeDiscardRunner(svc func() *internal.HistoryService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")

		if err := svc().Discard(cmd.Context(), scopeHint); err != nil {
			return fmt.Errorf("discard: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Staged operations discarded")
		return nil
	}
}
