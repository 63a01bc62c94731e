package models

import "time"

// AgentRole identifies which part of the workflow an agent performs.
type AgentRole string

const (
	// RoleCoordinator produces the plan for a project.
	RoleCoordinator AgentRole = "coordinator"
	// RoleWorker executes a single task in an isolated worktree.
	RoleWorker AgentRole = "worker"
	// RoleMerger integrates finished worker branches into mainline.
	RoleMerger AgentRole = "merger"
)

// Valid returns true if the role is a known value.
func (r AgentRole) Valid() bool {
	switch r {
	case RoleCoordinator, RoleWorker, RoleMerger:
		return true
	default:
		return false
	}
}

// AgentStatus represents the current state of an agent.
type AgentStatus string

const (
	// AgentStatusLaunched indicates the agent process has been spawned
	// but has not yet produced output.
	AgentStatusLaunched AgentStatus = "launched"
	// AgentStatusRunning indicates the agent is actively producing output.
	AgentStatusRunning AgentStatus = "running"
	// AgentStatusCompleted indicates the agent exited after finishing its work.
	AgentStatusCompleted AgentStatus = "completed"
	// AgentStatusError indicates the agent exited abnormally or was terminated.
	AgentStatusError AgentStatus = "error"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusLaunched, AgentStatusRunning, AgentStatusCompleted, AgentStatusError:
		return true
	default:
		return false
	}
}

// Terminal returns true if the agent can no longer change state.
func (s AgentStatus) Terminal() bool {
	return s == AgentStatusCompleted || s == AgentStatusError
}

// Agent represents one spawned agent process bound to exactly one role.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Role is the workflow role this agent performs.
	Role AgentRole `json:"role"`
	// TaskOrdinal is the ordinal of the bound task: the task a worker
	// executes, or the task whose branch a merger integrates. Zero for
	// the coordinator.
	TaskOrdinal int `json:"task_ordinal,omitempty"`
	// Status is the current state of the agent.
	Status AgentStatus `json:"status"`
	// Workdir is the directory the agent process runs in.
	Workdir string `json:"workdir,omitempty"`
	// StartedAt is when the agent process was spawned.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the agent reached a terminal state, if it has.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
