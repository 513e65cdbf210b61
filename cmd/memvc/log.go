package main

import (
	"encoding/json"
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewLogCmd(svc func() *internal.HistoryService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log [ref]",
		Short: "Show commit history",
		Long:  `Walk first-parent history from a branch or commit, newest first.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  makeLogRunner(svc),
	}

	cmd.Flags().IntP("number", "n", 10, "Limit number of commits")
	cmd.Flags().Bool("oneline", false, "Show each commit on one line")
	return cmd
}

func makeLogRunner(svc func() *internal.HistoryService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("number")
		oneline, _ := cmd.Flags().GetBool("oneline")
		scopeHint, _ := cmd.Flags().GetString("scope")
		asJSON, _ := cmd.Flags().GetBool("json")

		ref := ""
		if len(args) > 0 {
			ref = args[0]
		}

		commits, err := svc().Log(cmd.Context(), ref, limit, scopeHint)
		if err != nil {
			return fmt.Errorf("get log: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(commits)
		}

		for _, c := range commits {
			if oneline {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", c.ShortID(), c.Message)
				continue
			}

			fmt.Fprintf(cmd.OutOrStdout(), "commit %s\n", c.ID)
			if c.IsMerge() {
				fmt.Fprintf(cmd.OutOrStdout(), "Merge:  %s %s\n", c.Parents[0][:8], c.Parents[1][:8])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Author: %s\n", c.Author)
			fmt.Fprintf(cmd.OutOrStdout(), "Date:   %s\n\n", c.Timestamp.Format("Mon Jan 2 15:04:05 2006 -0700"))
			fmt.Fprintf(cmd.OutOrStdout(), "    %s\n\n", c.Message)
			for _, op := range c.Operations {
				fmt.Fprintf(cmd.OutOrStdout(), "    %-6s %s\n", op.Kind, op.ID)
			}
			if len(c.Operations) > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
		}
		return nil
	}
}
