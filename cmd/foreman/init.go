package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cbhooper/foreman/internal/config"
	"github.com/cbhooper/foreman/internal/git"
	"github.com/cbhooper/foreman/internal/worktree"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Prepare the current directory for foreman",
	Long: `Check the environment and prepare the current directory for foreman.

This command:
  - Verifies git and the agent CLI are installed
  - Initializes a git repository with a root commit if none exists
  - Creates the .foreman directory structure (logs, signals)
  - Keeps .worktrees/ and .foreman/ out of version control`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := exec.LookPath("git"); err != nil {
		printStatus("✗", "Git not found", color.FgRed)
		return fmt.Errorf("git is required")
	}
	printStatus("✓", "Git found", color.FgGreen)

	if err := CheckAgentCLI(cfg.Agent.Command); err != nil {
		printStatus("✗", fmt.Sprintf("Agent CLI %q not found", cfg.Agent.Command), color.FgRed)
		return err
	}
	printStatus("✓", fmt.Sprintf("Agent CLI %q found", cfg.Agent.Command), color.FgGreen)

	runner := git.NewRunnerWithTimeout(cwd, cfg.Timeouts.Git)
	mgr := worktree.NewManagerWithRunner(cwd, runner)
	if runner.IsRepository() {
		printStatus("✓", "Git repository exists", color.FgGreen)
	} else if mgr.EnsureRepository() {
		printStatus("✓", "Initialized git repository", color.FgGreen)
	} else {
		printStatus("✗", "Could not initialize git repository", color.FgRed)
		return fmt.Errorf("repository initialization failed")
	}

	for _, dir := range []string{
		filepath.Join(cwd, ".foreman", "logs"),
		filepath.Join(cwd, ".foreman", "signals"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .foreman directory structure", color.FgGreen)

	if err := appendGitignore(cwd); err != nil {
		printStatus("⚠", fmt.Sprintf("Could not update .gitignore: %v", err), color.FgYellow)
	} else {
		printStatus("✓", "Updated .gitignore with foreman entries", color.FgGreen)
	}

	fmt.Printf("\n%s Foreman initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Start a session with:")
	fmt.Println("  foreman run \"<goal>\"")
	return nil
}

// appendGitignore adds foreman's runtime directories to .gitignore if
// they are not already listed.
func appendGitignore(root string) error {
	path := filepath.Join(root, ".gitignore")
	entries := []string{".foreman/", worktree.Dir + "/"}

	existing, _ := os.ReadFile(path)
	content := string(existing)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	lines := strings.Split(content, "\n")
	for _, entry := range entries {
		if slices.Contains(lines, entry) {
			continue
		}
		if _, err := fmt.Fprintln(f, entry); err != nil {
			return err
		}
	}
	return nil
}

// printStatus prints a colored status line.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
