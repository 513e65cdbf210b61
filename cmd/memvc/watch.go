package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch branch tips for changes",
		Long:  `Print branch tip movements made by other processes until interrupted.`,
		RunE:  makeWatchRunner(),
	}
}

func makeWatchRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		scopeHint, _ := cmd.Flags().GetString("scope")
		asJSON, _ := cmd.Flags().GetBool("json")

		scope := internal.NewScopeResolver().Resolve(scopeHint)
		if _, err := os.Stat(scope.RepoPath); err != nil {
			return fmt.Errorf("no repository at %s, run 'memvc init' first", scope.Path)
		}

		watcher, err := internal.NewRefWatcher(scope.RepoPath, nil)
		if err != nil {
			return fmt.Errorf("watch refs: %w", err)
		}
		defer watcher.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for branch changes...\n", scope.RepoPath)

		ctx := cmd.Context()
		done := make(chan error, 1)
		go func() { done <- watcher.Run(ctx) }()

		enc := json.NewEncoder(cmd.OutOrStdout())
		for {
			select {
			case ev, ok := <-watcher.Events():
				if !ok {
					return nil
				}
				if asJSON {
					if err := enc.Encode(ev); err != nil {
						return err
					}
					continue
				}
				switch {
				case ev.Created:
					fmt.Fprintf(cmd.OutOrStdout(), "branch %s created at %s\n", ev.Branch, short(ev.NewTip))
				case ev.Deleted:
					fmt.Fprintf(cmd.OutOrStdout(), "branch %s deleted (was %s)\n", ev.Branch, short(ev.OldTip))
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "branch %s moved %s -> %s\n", ev.Branch, short(ev.OldTip), short(ev.NewTip))
				}

			case err := <-done:
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
