package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new memory repository",
		Long:  `Initialize a .memvc directory with a root commit and a main branch.`,
		RunE:  runInit,
	}

	cmd.Flags().Bool("global", false, "Initialize global scope (~/.memvc)")
	cmd.Flags().String("author", "", "Default author for commits")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	isGlobal, _ := cmd.Flags().GetBool("global")
	author, _ := cmd.Flags().GetString("author")

	resolver := internal.NewScopeResolver()

	var scope internal.Scope
	if isGlobal {
		scope = resolver.Global()
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		scope = internal.Scope{
			Type:     internal.ScopeProject,
			Path:     cwd,
			RepoPath: filepath.Join(cwd, ".memvc"),
		}
	}

	if _, err := os.Stat(scope.RepoPath); err == nil {
		return fmt.Errorf("already initialized at %s", scope.RepoPath)
	}

	if err := os.MkdirAll(scope.RepoPath, 0755); err != nil {
		return fmt.Errorf("create repository directory: %w", err)
	}

	if err := internal.InitRepository(osfs.New(scope.RepoPath), author); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	cfg := internal.DefaultConfig()
	if author != "" {
		cfg.Author = author
	}
	if err := internal.SaveConfig(scope, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized memory repository at %s\n", scope.RepoPath)
	return nil
}
