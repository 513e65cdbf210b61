package main

import (
	"github.com/memvc/memvc/internal"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "memvc",
		Short:         "Version control for agent memory",
		Long:          `Branch, commit, merge, and replay structured memory records the way git handles files.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)

	if a != nil {
		addSubcommands(rootCmd, a)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("scope", "", "Target scope (global|project)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func addSubcommands(root *cobra.Command, a *app) {
	rec := func() *internal.RecordService { return a.recordSvc }
	hist := func() *internal.HistoryService { return a.historySvc }
	branch := func() *internal.BranchService { return a.branchSvc }
	merge := func() *internal.MergeService { return a.mergeSvc }
	worktree := func() *internal.WorktreeService { return a.worktreeSvc }
	provider := func() *internal.ProviderService { return a.providerSvc }

	root.AddCommand(
		NewInitCmd(),
		NewSetCmd(rec),
		NewGetCmd(rec),
		NewDelCmd(rec),
		NewListCmd(rec),
		NewSearchCmd(rec),
		NewCommitCmd(hist),
		NewStatusCmd(hist),
		NewLogCmd(hist),
		NewDiscardCmd(hist),
		NewResetCmd(hist),
		NewBranchCmd(branch),
		NewCheckoutCmd(branch),
		NewMergeCmd(merge),
		NewWorktreeCmd(worktree),
		NewProviderCmd(provider),
		NewWatchCmd(),
	)
}
