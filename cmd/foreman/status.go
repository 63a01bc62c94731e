package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cbhooper/foreman/internal/state"
	"github.com/cbhooper/foreman/pkg/models"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the most recent run in this project",
	Long: `Display the state of the most recent foreman run in this project.

Shows the task plan with per-task status, the agents that ran, and every
branch integration with its outcome. The data comes from the project's
run ledger (.foreman/state.db), so it works while a session is running
and after it has finished.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "Output format: text or yaml")
}

// statusReport is the YAML-facing shape of one run's state.
type statusReport struct {
	Project *models.Project      `yaml:"project"`
	Tasks   []*models.Task       `yaml:"tasks"`
	Merges  []*state.MergeRecord `yaml:"merges,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No runs recorded here. Run 'foreman run <goal>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	project, err := db.LatestProject()
	if err != nil {
		return fmt.Errorf("get latest project: %w", err)
	}
	if project == nil {
		fmt.Println("No runs recorded here. Run 'foreman run <goal>' to start.")
		return nil
	}

	tasks, err := db.ListTasks(project.ID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	merges, err := db.ListMerges(project.ID)
	if err != nil {
		return fmt.Errorf("list merges: %w", err)
	}

	if statusFormat == "yaml" {
		out, err := yaml.Marshal(&statusReport{Project: project, Tasks: tasks, Merges: merges})
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	displayStatus(project, tasks, merges)
	return nil
}

func displayStatus(project *models.Project, tasks []*models.Task, merges []*state.MergeRecord) {
	fmt.Printf("%s %s\n", color.CyanString("project:"), project.Name)
	fmt.Printf("%s %s\n", color.CyanString("goal:"), project.Description)
	fmt.Printf("%s %s\n\n", color.CyanString("started:"), project.CreatedAt.Local().Format("2006-01-02 15:04:05"))

	if len(tasks) == 0 {
		fmt.Println("No plan recorded yet.")
		return
	}

	done := 0
	for _, task := range tasks {
		var marker string
		switch task.Status {
		case models.TaskStatusDone:
			marker = color.GreenString("✓")
			done++
		case models.TaskStatusFailed:
			marker = color.RedString("✗")
		case models.TaskStatusDispatched:
			marker = color.YellowString("▸")
		default:
			marker = " "
		}
		line := fmt.Sprintf("%s %d. %s [%s]", marker, task.Ordinal, task.Title, task.Status)
		if len(task.DependsOn) > 0 {
			line += fmt.Sprintf(" (deps: %v)", task.DependsOn)
		}
		if task.Error != "" {
			line += " - " + task.Error
		}
		fmt.Println(line)
	}
	fmt.Printf("\n%d/%d tasks done\n", done, len(tasks))

	if len(merges) > 0 {
		fmt.Println()
		for _, m := range merges {
			if m.Outcome == "success" {
				fmt.Printf("%s %s (task %d)\n", color.GreenString("merged:"), m.Branch, m.TaskOrdinal)
			} else {
				fmt.Printf("%s %s (task %d): %s\n", color.RedString("conflict:"), m.Branch, m.TaskOrdinal, m.Details)
			}
		}
	}
}
