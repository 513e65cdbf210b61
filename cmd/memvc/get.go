package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewGetCmd(svc func() *internal.RecordService) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Read a memory record",
		Long:  `Read a record from the working view, staged changes included.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeGetRunner(svc),
	}
}

func makeGetRunner(svc func() *internal.RecordService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")
		asJSON, _ := cmd.Flags().GetBool("json")

		rec, err := svc().Get(cmd.Context(), args[0], scopeHint)
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		fmt.Fprintln(cmd.OutOrStdout(), rec.Content)
		if len(rec.Properties) > 0 {
			keys := make([]string, 0, len(rec.Properties))
			for k := range rec.Properties {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s=%s\n", k, rec.Properties[k])
			}
		}
		return nil
	}
}
