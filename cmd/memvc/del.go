package main

import (
	"fmt"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewDelCmd(svc func() *internal.RecordService) *cobra.Command {
	return &cobra.Command{
		Use:   "del <id>",
		Short: "Delete a memory record",
		Long:  `Stage a record deletion in the working view.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeDelRunner(svc),
	}
}

func makeDelRunner(svc func() *internal.RecordService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")

		if err := svc().Delete(cmd.Context(), args[0], scopeHint); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Staged deletion of %s\n", args[0])
		return nil
	}
}
