package main

import (
	"encoding/json"
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewListCmd(svc func() *internal.RecordService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List memory records",
		Long:  `List records in the working view, optionally narrowed to an id prefix.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  makeListRunner(svc),
	}

	return cmd
}

func makeListRunner(svc func() *internal.RecordService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")
		asJSON, _ := cmd.Flags().GetBool("json")

		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}

		recs, err := svc().List(cmd.Context(), prefix, scopeHint)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		for _, rec := range recs {
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
		}
		return nil
	}
}
