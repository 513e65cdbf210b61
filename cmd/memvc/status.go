package main

import (
	"encoding/json"
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewStatusCmd(svc func() *internal.HistoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the working view state",
		Long:  `Show the current branch, checked-out commit, and staged operations.`,
		RunE:  makeStatusRunner(svc),
	}
}

func makeStatusRunner(svc func() *internal.HistoryService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := svc().Status(cmd.Context(), scopeHint)
		if err != nil {
			return fmt.Errorf("get status: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		if st.Detached {
			fmt.Fprintf(cmd.OutOrStdout(), "Detached at %s\n", st.Tip[:8])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "On branch %s at %s\n", st.Branch, st.Tip[:8])
		}
		if st.Behind {
			fmt.Fprintln(cmd.OutOrStdout(), "Branch has moved; refresh with 'memvc checkout' before committing")
		}

		if len(st.Staged) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing staged")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Staged operations (%d):\n", len(st.Staged))
		for _, op := range st.Staged {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-6s %s\n", op.Kind, op.ID)
		}
		return nil
	}
}
