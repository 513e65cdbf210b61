package main

import (
	"errors"
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewCommitCmd(svc func() *internal.HistoryService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Seal staged operations into a commit",
		Long:  `Create an immutable commit from the staged operations and advance the current branch.`,
		RunE:  makeCommitRunner(svc),
	}

	cmd.Flags().StringP("message", "m", "", "Commit message")
	return cmd
}

func makeCommitRunner(svc func() *internal.HistoryService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")
		message, _ := cmd.Flags().GetString("message")

		c, err := svc().Commit(cmd.Context(), message, scopeHint)
		if errors.Is(err, internal.ErrBranchMoved) {
			return fmt.Errorf("branch moved since checkout, refresh first: %w", err)
		}
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s (%d ops)\n", c.ShortID(), c.Message, len(c.Operations))
		return nil
	}
}
