package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CleanupOrphans removes worktree directories and work/* branches left
// behind by crashed runs. An orphan is a directory under the reserved
// worktree dir that no live worktree owns, or a work/* branch with no
// corresponding live worktree. Returns the number of directories removed.
//
// Removal is best-effort throughout: errors are reported to the verbose
// callback and cleanup continues.
func (m *Manager) CleanupOrphans(verbose func(msg string)) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if verbose == nil {
		verbose = func(string) {}
	}

	liveShorts := make(map[string]bool, len(m.live))
	for id := range m.live {
		liveShorts[ShortID(id)] = true
	}

	removed := 0
	baseDir := filepath.Join(m.projectRoot, Dir)
	entries, err := os.ReadDir(baseDir)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("read worktree directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || liveShorts[entry.Name()] {
			continue
		}
		path := filepath.Join(baseDir, entry.Name())
		if err := m.git.WorktreeRemove(path); err != nil {
			if err := os.RemoveAll(path); err != nil {
				verbose(fmt.Sprintf("could not remove %s: %v", path, err))
				continue
			}
		}
		verbose("removed worktree " + path)
		removed++
	}

	if err := m.git.WorktreePrune(); err != nil {
		verbose(fmt.Sprintf("prune: %v", err))
	}

	branches, err := m.git.ListBranches(BranchPrefix + "*")
	if err != nil {
		verbose(fmt.Sprintf("list branches: %v", err))
		return removed, nil
	}
	for _, branch := range branches {
		short := strings.TrimPrefix(branch, BranchPrefix)
		if liveShorts[short] {
			continue
		}
		if err := m.git.DeleteBranch(branch); err != nil {
			verbose(fmt.Sprintf("could not delete branch %s: %v", branch, err))
			continue
		}
		verbose("deleted branch " + branch)
	}

	return removed, nil
}
