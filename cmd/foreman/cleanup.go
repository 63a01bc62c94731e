package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cbhooper/foreman/internal/config"
	"github.com/cbhooper/foreman/internal/git"
	"github.com/cbhooper/foreman/internal/worktree"
)

var cleanupVerbose bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove orphaned worktrees and branches",
	Long: `Clean up worktrees and work/* branches left behind by crashed runs.

This command:
  - Removes directories under .worktrees/ that no live agent owns
  - Runs git worktree prune
  - Deletes work/* branches with no corresponding worktree

Branches kept by merge conflicts are work/* branches too, so run this
only after salvaging anything you still need from them.

Examples:
  foreman cleanup       # Remove orphans quietly
  foreman cleanup -v    # Show each removal`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupVerbose, "verbose", "v", false, "Show each worktree and branch as it's removed")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runner := git.NewRunnerWithTimeout(cwd, cfg.Timeouts.Git)
	if !runner.IsRepository() {
		return fmt.Errorf("%s is not a git repository", cwd)
	}

	mgr := worktree.NewManagerWithRunner(cwd, runner)
	verbose := func(string) {}
	if cleanupVerbose {
		verbose = func(msg string) { fmt.Println("  " + msg) }
	}

	removed, err := mgr.CleanupOrphans(verbose)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	if removed == 0 {
		fmt.Println("Nothing to clean up.")
	} else {
		fmt.Printf("%s removed %d orphaned worktree(s)\n", color.GreenString("✓"), removed)
	}
	return nil
}
