package main

import (
	"errors"
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewMergeCmd(svc func() *internal.MergeService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <from>",
		Short: "Merge another branch into the current one",
		Long: `Three-way merge of from into the current branch. Records changed on
only one side merge cleanly; the rest surface as conflicts handled per
the strategy.`,
		Args: cobra.ExactArgs(1),
		RunE: makeMergeRunner(svc),
	}

	cmd.Flags().StringP("strategy", "s", "", "Merge strategy (fast-forward|prefer-ours|prefer-theirs|manual|assisted)")
	return cmd
}

func makeMergeRunner(svc func() *internal.MergeService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")
		strategy, _ := cmd.Flags().GetString("strategy")

		result, err := svc().Merge(cmd.Context(), args[0], internal.MergeStrategy(strategy), scopeHint)
		if errors.Is(err, internal.ErrMergeConflicts) {
			fmt.Fprintf(cmd.OutOrStdout(), "Merge of %s stopped on %d conflicts:\n\n", args[0], len(result.Conflicts))
			for _, c := range result.Conflicts {
				fmt.Fprintln(cmd.OutOrStdout(), internal.RenderConflict(c))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Resolve with --strategy prefer-ours|prefer-theirs|assisted, or via the API with explicit resolutions.")
			return err
		}
		if err != nil {
			return fmt.Errorf("merge: %w", err)
		}

		switch {
		case result.UpToDate:
			fmt.Fprintln(cmd.OutOrStdout(), "Already up to date")
		case result.FastForwarded:
			fmt.Fprintf(cmd.OutOrStdout(), "Fast-forwarded to %s\n", result.Tip[:8])
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %s: commit %s\n", args[0], result.Commit.ShortID())
		}
		return nil
	}
}
