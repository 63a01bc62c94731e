package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cbhooper/foreman/internal/agent"
	"github.com/cbhooper/foreman/internal/config"
	"github.com/cbhooper/foreman/internal/git"
	"github.com/cbhooper/foreman/internal/orchestrator"
	"github.com/cbhooper/foreman/internal/signals"
	"github.com/cbhooper/foreman/internal/state"
	"github.com/cbhooper/foreman/internal/worktree"
	"github.com/cbhooper/foreman/pkg/models"
)

var (
	runName       string
	runMaxWorkers int
	runAgentCmd   string
	runMainline   string
	runQuiet      bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Run a goal with agent orchestration",
	Long: `Run a goal using parallel coding agents in the current directory.

A coordinator agent first decomposes the goal into tasks with explicit
dependencies. Workers then execute ready tasks concurrently, each in its
own git worktree. Finished branches merge into the mainline one at a
time.

Failed tasks keep their dependents pending: nothing downstream of a
failure runs, and the session reports itself stuck rather than silently
skipping work. Conflicted branches and worktrees are left on disk for
manual follow-up.

While a session runs, a sibling foreman process can steer it:
  foreman stop                  # cancel the session
  foreman status                # inspect progress from the ledger`,
	Args: cobra.ExactArgs(1),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "Project name (defaults to the directory name)")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "Cap concurrent workers (0 = config default)")
	runCmd.Flags().StringVar(&runAgentCmd, "agent-cmd", "", "Agent CLI binary (overrides config)")
	runCmd.Flags().StringVar(&runMainline, "mainline", "", "Integration branch (overrides config)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Only print task outcomes and the final summary")
}

func runGoal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runAgentCmd != "" {
		cfg.Agent.Command = runAgentCmd
	}
	if runMaxWorkers > 0 {
		cfg.Orchestrator.MaxWorkers = runMaxWorkers
	}
	if runMainline != "" {
		cfg.Orchestrator.Mainline = runMainline
	}

	if err := CheckAgentCLI(cfg.Agent.Command); err != nil {
		return err
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	name := runName
	if name == "" {
		name = filepath.Base(root)
	}

	project := &models.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: args[0],
		Root:        root,
		CreatedAt:   time.Now(),
	}

	db, err := state.OpenProject(root)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state database: %w", err)
	}

	host := agent.NewCLIHost(cfg.Agent.Command)
	if len(cfg.Agent.ExtraArgs) > 0 {
		host.ExtraArgs = cfg.Agent.ExtraArgs
	}

	gitRunner := git.NewRunnerWithTimeout(root, cfg.Timeouts.Git)
	orch := orchestrator.New(project, orchestrator.Options{
		Host:       host,
		MaxWorkers: cfg.Orchestrator.MaxWorkers,
		Mainline:   cfg.Orchestrator.Mainline,
		Timeouts: orchestrator.Timeouts{
			Coordinator: cfg.Timeouts.Coordinator,
			Worker:      cfg.Timeouts.Worker,
			Merger:      cfg.Timeouts.Merger,
		},
		Store:      db,
		Worktrees:  worktree.NewManagerWithRunner(root, gitRunner),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watcher, err := signals.NewWatcher(root, &signalHandler{cancel: cancel, orch: orch}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: signal watcher unavailable: %v\n", err)
	} else {
		defer watcher.Close()
	}

	fmt.Printf("%s %s\n", color.CyanString("goal:"), project.Description)
	fmt.Printf("%s planning...\n", color.CyanString("foreman:"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(orch.Events())
	}()

	runErr := orch.Run(ctx)
	<-done

	printSummary(orch)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("session cancelled")
		}
		return runErr
	}
	return nil
}

// signalHandler routes file-based operator signals into the session.
type signalHandler struct {
	cancel context.CancelFunc
	orch   *orchestrator.Orchestrator
}

func (h *signalHandler) Stop() { h.cancel() }

func (h *signalHandler) KillAgent(agentID string) { h.orch.KillAgent(agentID) }

// printEvents renders the orchestrator's event stream for the terminal.
func printEvents(events <-chan orchestrator.Event) {
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventPlanAccepted:
			fmt.Printf("%s plan accepted: %s\n", color.CyanString("foreman:"), ev.Message)
		case orchestrator.EventTaskDispatched:
			if !runQuiet {
				fmt.Printf("%s task %d (%s) on %s\n", color.YellowString("start:"), ev.TaskOrdinal, ev.TaskTitle, ev.Branch)
			}
		case orchestrator.EventMergeEnqueued:
			if !runQuiet {
				fmt.Printf("%s task %d queued for merge\n", color.YellowString("merge:"), ev.TaskOrdinal)
			}
		case orchestrator.EventTaskDone:
			fmt.Printf("%s task %d (%s)\n", color.GreenString("done:"), ev.TaskOrdinal, ev.TaskTitle)
		case orchestrator.EventTaskFailed:
			msg := ev.Message
			if msg == "" && ev.Err != nil {
				msg = ev.Err.Error()
			}
			fmt.Printf("%s task %d: %s\n", color.RedString("fail:"), ev.TaskOrdinal, msg)
		case orchestrator.EventSessionStuck:
			fmt.Printf("%s remaining tasks depend on failed work\n", color.RedString("stuck:"))
		}
	}
}

// printSummary prints the final per-task outcome table.
func printSummary(orch *orchestrator.Orchestrator) {
	tasks := orch.Scheduler().Tasks()
	if len(tasks) == 0 {
		return
	}

	fmt.Println()
	for _, task := range tasks {
		var marker string
		switch task.Status {
		case models.TaskStatusDone:
			marker = color.GreenString("✓")
		case models.TaskStatusFailed:
			marker = color.RedString("✗")
		default:
			marker = color.YellowString("-")
		}
		line := fmt.Sprintf("%s %d. %s [%s]", marker, task.Ordinal, task.Title, task.Status)
		if task.Error != "" {
			line += " - " + task.Error
		}
		fmt.Println(line)
	}
}
