package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewBranchCmd(svc func() *internal.BranchService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "List or create branches",
		Long: `With no arguments, list branches and mark the current one. With a name,
create the branch at the current tip and switch to it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: makeBranchRunner(svc),
	}

	cmd.Flags().StringP("delete", "d", "", "Delete a branch")
	cmd.Flags().String("from", "", "Branch point (default: current HEAD)")
	cmd.Flags().String("description", "", "Branch description")
	cmd.Flags().Bool("no-switch", false, "Create without switching to it")
	return cmd
}

func makeBranchRunner(svc func() *internal.BranchService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")
		asJSON, _ := cmd.Flags().GetBool("json")
		toDelete, _ := cmd.Flags().GetString("delete")

		if toDelete != "" {
			err := svc().Delete(cmd.Context(), toDelete, scopeHint)
			if errors.Is(err, internal.ErrBranchInUse) {
				return fmt.Errorf("branch %s is checked out or held by a worktree: %w", toDelete, err)
			}
			if err != nil {
				return fmt.Errorf("delete branch: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted branch %s\n", toDelete)
			return nil
		}

		if len(args) == 0 {
			return listBranches(cmd, svc(), scopeHint, asJSON)
		}

		from, _ := cmd.Flags().GetString("from")
		description, _ := cmd.Flags().GetString("description")
		noSwitch, _ := cmd.Flags().GetBool("no-switch")

		b, err := svc().Create(cmd.Context(), args[0], from, description, scopeHint)
		if err != nil {
			return fmt.Errorf("create branch: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created branch %s at %s\n", b.Name, b.Tip[:8])

		if noSwitch {
			return nil
		}
		if _, err := svc().Switch(cmd.Context(), b.Name, false, scopeHint); err != nil {
			return fmt.Errorf("switch to branch: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to branch %s\n", b.Name)
		return nil
	}
}

func listBranches(cmd *cobra.Command, svc *internal.BranchService, scopeHint string, asJSON bool) error {
	branches, err := svc.List(cmd.Context(), scopeHint)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(branches)
	}

	current, err := svc.Current(cmd.Context(), scopeHint)
	if err != nil {
		return fmt.Errorf("current branch: %w", err)
	}

	for _, b := range branches {
		marker := " "
		if b.Name == current.Name {
			marker = "*"
		}
		if b.Description != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%s\n", marker, b.Name, b.Tip[:8], b.Description)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\n", marker, b.Name, b.Tip[:8])
	}
	return nil
}
