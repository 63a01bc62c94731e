// Package worktree manages branch-backed working directories that give
// each agent an isolated view of a project's repository.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cbhooper/foreman/internal/git"
)

// Dir is the reserved directory under a project root that holds worktrees.
const Dir = ".worktrees"

// BranchPrefix is the naming convention for worker branches.
const BranchPrefix = "work/"

// DefaultBranch is the mainline branch created for fresh repositories.
const DefaultBranch = "main"

// shortIDLen is how much of an agent id goes into branch and directory names.
const shortIDLen = 8

// Worktree is an isolated, branch-backed copy of a project's repository
// bound to exactly one agent.
type Worktree struct {
	// AgentID is the id of the owning agent.
	AgentID string
	// Branch is the branch the worktree is checked out on.
	Branch string
	// Path is the absolute worktree directory.
	Path string
	// CreatedAt is when the worktree was created.
	CreatedAt time.Time
}

// Manager handles worktree lifecycle for one project. All mutating git
// operations are serialized behind the manager's mutex; managers for
// different projects are fully independent.
type Manager struct {
	projectRoot string
	git         git.Runner
	logf        func(format string, args ...interface{})

	mu   sync.Mutex
	live map[string]*Worktree // agent id -> live worktree
}

// NewManager creates a worktree manager for the project at projectRoot.
func NewManager(projectRoot string) *Manager {
	return NewManagerWithRunner(projectRoot, git.NewRunner(projectRoot))
}

// NewManagerWithRunner creates a worktree manager with a custom git runner.
func NewManagerWithRunner(projectRoot string, runner git.Runner) *Manager {
	return &Manager{
		projectRoot: projectRoot,
		git:         runner,
		logf:        func(string, ...interface{}) {},
		live:        make(map[string]*Worktree),
	}
}

// SetLogf installs a debug log sink. Cleanup failures are reported only here.
func (m *Manager) SetLogf(logf func(format string, args ...interface{})) {
	if logf != nil {
		m.logf = logf
	}
}

// EnsureRepository makes sure the project root is a usable git repository,
// initializing one with a main branch and an empty root commit if absent.
// Returns false on unrecoverable failure; the caller should treat the
// project as unusable rather than crash.
func (m *Manager) EnsureRepository() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.git.IsRepository() {
		return true
	}
	if err := m.git.Init(DefaultBranch); err != nil {
		m.logf("[worktree] init repository: %v", err)
		return false
	}
	// Worktrees need a valid base commit to branch from.
	if err := m.git.CommitAllowEmpty("Initial commit"); err != nil {
		m.logf("[worktree] initial commit: %v", err)
		return false
	}
	return true
}

// Create makes a branch-backed worktree for the given agent under the
// project's reserved worktree directory. A stale branch left by a crashed
// prior run is deleted and creation retried exactly once.
func (m *Manager) Create(agentID string) (*Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wt, ok := m.live[agentID]; ok {
		return nil, fmt.Errorf("agent %s already has a live worktree at %s", agentID, wt.Path)
	}

	short := ShortID(agentID)
	branch := BranchPrefix + short
	path := filepath.Join(m.projectRoot, Dir, short)

	if err := os.MkdirAll(filepath.Join(m.projectRoot, Dir), 0755); err != nil {
		return nil, fmt.Errorf("create worktree directory: %w", err)
	}
	m.excludeWorktreeDir()

	base, err := m.git.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("determine base branch: %w", err)
	}

	if err := m.git.WorktreeAddNewBranch(path, branch, base); err != nil {
		// A branch from a crashed earlier attempt blocks creation.
		// Delete it and retry once; any further failure propagates.
		exists, checkErr := m.git.BranchExists(branch)
		if checkErr != nil || !exists {
			return nil, fmt.Errorf("create worktree: %w", err)
		}
		m.logf("[worktree] stale branch %s found, deleting and retrying", branch)
		if delErr := m.git.DeleteBranch(branch); delErr != nil {
			return nil, fmt.Errorf("delete stale branch %s: %w", branch, delErr)
		}
		if err := m.git.WorktreeAddNewBranch(path, branch, base); err != nil {
			return nil, fmt.Errorf("create worktree after stale branch cleanup: %w", err)
		}
	}

	wt := &Worktree{
		AgentID:   agentID,
		Branch:    branch,
		Path:      path,
		CreatedAt: time.Now(),
	}
	m.live[agentID] = wt
	return wt, nil
}

// Remove tears down the agent's worktree, optionally deleting its branch.
// Removal is best-effort and never fails: if the git removal errors (the
// directory may already be gone), the directory is deleted directly and
// stale entries pruned.
func (m *Manager) Remove(agentID string, deleteBranch bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wt, ok := m.live[agentID]
	if !ok {
		return
	}
	delete(m.live, agentID)

	if err := m.git.WorktreeRemove(wt.Path); err != nil {
		m.logf("[worktree] git removal of %s failed, removing directly: %v", wt.Path, err)
		if err := os.RemoveAll(wt.Path); err != nil {
			m.logf("[worktree] direct removal of %s failed: %v", wt.Path, err)
		}
		if err := m.git.WorktreePrune(); err != nil {
			m.logf("[worktree] prune after removal: %v", err)
		}
	}

	if deleteBranch {
		if err := m.git.DeleteBranch(wt.Branch); err != nil {
			m.logf("[worktree] delete branch %s: %v", wt.Branch, err)
		}
	}
}

// PathFor returns the agent's worktree path, or the project root if the
// agent has none. Coordinator and merger agents work in the root itself.
func (m *Manager) PathFor(agentID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wt, ok := m.live[agentID]; ok {
		return wt.Path
	}
	return m.projectRoot
}

// Get returns the agent's live worktree, or nil.
func (m *Manager) Get(agentID string) *Worktree {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[agentID]
}

// Live returns all live worktrees.
func (m *Manager) Live() []*Worktree {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Worktree, 0, len(m.live))
	for _, wt := range m.live {
		out = append(out, wt)
	}
	return out
}

// ProjectRoot returns the project root this manager serves.
func (m *Manager) ProjectRoot() string {
	return m.projectRoot
}

// ShortID derives the short identifier used in branch and directory names.
func ShortID(agentID string) string {
	if len(agentID) <= shortIDLen {
		return agentID
	}
	return agentID[:shortIDLen]
}

// excludeWorktreeDir keeps the reserved worktree directory out of version
// control without touching the project's own .gitignore.
func (m *Manager) excludeWorktreeDir() {
	excludePath := filepath.Join(m.projectRoot, ".git", "info", "exclude")
	data, err := os.ReadFile(excludePath)
	if err == nil && slices.Contains(strings.Split(string(data), "\n"), Dir+"/") {
		return
	}
	if err := os.MkdirAll(filepath.Dir(excludePath), 0755); err != nil {
		m.logf("[worktree] create exclude dir: %v", err)
		return
	}
	f, err := os.OpenFile(excludePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		m.logf("[worktree] open exclude file: %v", err)
		return
	}
	defer f.Close()
	fmt.Fprintln(f, Dir+"/")
}
