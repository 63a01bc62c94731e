// Package git provides an interface for git operations.
package git

// RepoOperations defines the interface for repository-level operations.
type RepoOperations interface {
	// IsRepository returns true if the runner's directory is inside a git repository.
	IsRepository() bool
	// Init initializes a new repository with the given initial branch.
	Init(initialBranch string) error
	// CommitAllowEmpty creates a commit with the given message, allowing an empty tree.
	CommitAllowEmpty(message string) error
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
}

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
	// ListBranches returns branch names matching the given pattern.
	ListBranches(pattern string) ([]string, error)
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAddNewBranch creates a worktree at path on a new branch cut from base.
	WorktreeAddNewBranch(path, branch, base string) error
	// WorktreeRemove removes the worktree at the given path (force).
	WorktreeRemove(path string) error
	// WorktreeList returns the paths of all worktrees.
	WorktreeList() ([]string, error)
	// WorktreePrune removes stale worktree entries.
	WorktreePrune() error
}

// Runner defines the complete interface for git operations used by the
// orchestration core. Consumers should prefer the focused interfaces.
type Runner interface {
	RepoOperations
	BranchOperations
	WorktreeOperations
	// Run executes an arbitrary git command with the given arguments.
	Run(args ...string) (string, error)
}
