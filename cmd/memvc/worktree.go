package main

import (
	"encoding/json"
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewWorktreeCmd(svc func() *internal.WorktreeService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worktree",
		Short: "Manage isolated working views",
		Long:  `Each worktree has its own checked-out commit and staging area over the shared commit graph.`,
	}

	cmd.AddCommand(
		newWorktreeListCmd(svc),
		newWorktreeCreateCmd(svc),
		newWorktreeRemoveCmd(svc),
	)
	return cmd
}

func newWorktreeListCmd(svc func() *internal.WorktreeService) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List worktrees",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scopeHint, _ := cmd.Flags().GetString("scope")
			asJSON, _ := cmd.Flags().GetBool("json")

			statuses, err := svc().List(cmd.Context(), scopeHint)
			if err != nil {
				return fmt.Errorf("list worktrees: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}

			for _, st := range statuses {
				branch := st.Branch
				if st.Detached {
					branch = "(detached)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d staged\n", st.ID, branch, st.Tip[:8], len(st.Staged))
			}
			return nil
		},
	}
}

func newWorktreeCreateCmd(svc func() *internal.WorktreeService) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create",
		Aliases: []string{"add"},
		Short:   "Create a worktree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scopeHint, _ := cmd.Flags().GetString("scope")
			branch, _ := cmd.Flags().GetString("branch")

			w, err := svc().Create(cmd.Context(), branch, scopeHint)
			if err != nil {
				return fmt.Errorf("create worktree: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created worktree %s on %s\n", w.ID(), w.Branch())
			return nil
		},
	}

	cmd.Flags().StringP("branch", "b", "", "Branch to check out (default: HEAD)")
	return cmd
}

func newWorktreeRemoveCmd(svc func() *internal.WorktreeService) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a worktree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scopeHint, _ := cmd.Flags().GetString("scope")

			if err := svc().Remove(cmd.Context(), args[0], scopeHint); err != nil {
				return fmt.Errorf("remove worktree: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed worktree %s\n", args[0])
			return nil
		},
	}
}
