package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// CheckAgentCLI verifies that the configured agent CLI is available in
// PATH. Returns an error with installation guidance if not found.
func CheckAgentCLI(command string) error {
	_, err := exec.LookPath(command)
	if err != nil {
		return fmt.Errorf("agent CLI %q not found in PATH\n\n"+
			"Foreman drives coding-agent processes through their CLI.\n"+
			"Install the agent binary, or point foreman at a different one:\n"+
			"  foreman config agent.command <binary>", command)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Orchestrate parallel coding agents",
	Long: `Foreman coordinates autonomous coding agents working toward a shared goal.

A coordinator agent breaks the goal into a dependency-ordered plan.
Worker agents execute tasks in parallel, each in an isolated git worktree
on its own branch. A merge agent integrates finished branches into the
mainline one at a time, so the repository only ever absorbs one change
set at once.

Core capabilities:
- Plans work as a dependency graph and dispatches tasks as they unblock
- Isolates each worker in its own git worktree and branch
- Serializes branch integration through a single merge slot
- Records every run in a project-local ledger for later inspection`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}
