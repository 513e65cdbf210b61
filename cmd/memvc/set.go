package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewSetCmd(svc func() *internal.RecordService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id> [content]",
		Short: "Create or update a memory record",
		Long:  `Stage a record write in the working view. Reads content from stdin when not provided.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE:  makeSetRunner(svc),
	}

	cmd.Flags().StringArrayP("property", "p", nil, "Record property as key=value (repeatable)")
	return cmd
}

func makeSetRunner(svc func() *internal.RecordService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id := args[0]

		content, err := resolveContent(args)
		if err != nil {
			return err
		}

		scopeHint, _ := cmd.Flags().GetString("scope")
		props, _ := cmd.Flags().GetStringArray("property")

		properties, err := parseProperties(props)
		if err != nil {
			return err
		}

		if err := svc().Set(cmd.Context(), id, content, properties, scopeHint); err != nil {
			return fmt.Errorf("set record: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Staged %s\n", id)
		return nil
	}
}

func resolveContent(args []string) (string, error) {
	if len(args) >= 2 {
		return args[1], nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func parseProperties(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, want key=value", pair)
		}
		props[key] = val
	}
	return props, nil
}
