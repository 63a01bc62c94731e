package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cbhooper/foreman/internal/signals"
)

var stopAgentID string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running session in this project",
	Long: `Signal the foreman session running in this project to stop.

The running orchestrator watches .foreman/signals/ and cancels itself
when the stop file appears. In-flight agents are killed and their tasks
marked failed.

With --agent, only the named agent is killed; the session keeps running
and the agent's task is marked failed.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopAgentID, "agent", "", "Kill a single agent instead of the whole session")
}

func runStop(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	if stopAgentID != "" {
		if err := signals.RequestKill(cwd, stopAgentID); err != nil {
			return fmt.Errorf("write kill signal: %w", err)
		}
		fmt.Printf("Kill requested for agent %s\n", stopAgentID)
		return nil
	}

	if err := signals.RequestStop(cwd); err != nil {
		return fmt.Errorf("write stop signal: %w", err)
	}
	fmt.Println("Stop requested")
	return nil
}
