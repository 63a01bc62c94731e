package worktree

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateWorkdir rejects any externally supplied working directory that
// resolves outside the project root. Every workdir handed to an agent
// process must pass this check first.
func ValidateWorkdir(projectRoot, workdir string) error {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	absDir, err := filepath.Abs(workdir)
	if err != nil {
		return fmt.Errorf("resolve workdir: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil {
		return fmt.Errorf("workdir %s is not relative to project root %s", workdir, projectRoot)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("workdir %s resolves outside project root %s", workdir, projectRoot)
	}
	return nil
}
