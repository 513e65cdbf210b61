package main

import (
	"errors"
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewCheckoutCmd(svc func() *internal.BranchService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout <ref>",
		Short: "Switch the working view to a branch or commit",
		Long: `Replay the target commit's history into the working view. Checking out
a branch also moves HEAD there; checking out a commit id detaches.`,
		Args: cobra.ExactArgs(1),
		RunE: makeCheckoutRunner(svc),
	}

	cmd.Flags().BoolP("force", "f", false, "Discard staged operations if any")
	return cmd
}

func makeCheckoutRunner(svc func() *internal.BranchService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")
		force, _ := cmd.Flags().GetBool("force")

		result, err := svc().Switch(cmd.Context(), args[0], force, scopeHint)
		if errors.Is(err, internal.ErrDirtyWorktree) {
			return fmt.Errorf("staged operations present, commit or use --force: %w", err)
		}
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}

		if result.Branch != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to branch %s at %s\n", result.Branch, result.Tip[:8])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Detached at %s\n", result.Tip[:8])
		}
		if n := result.Changed(); n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d records changed\n", n)
		}
		return nil
	}
}
