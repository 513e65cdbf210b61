package main

import (
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewSearchCmd(svc func() *internal.RecordService) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search records by keyword",
		Long:  `Scan record ids and contents in the working view for a substring.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeSearchRunner(svc),
	}
}

func makeSearchRunner(svc func() *internal.RecordService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")

		recs, err := svc().Search(cmd.Context(), args[0], scopeHint)
		if err != nil {
			return fmt.Errorf("search records: %w", err)
		}

		for _, rec := range recs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rec.ID, rec.Content)
		}
		return nil
	}
}
