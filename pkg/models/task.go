package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting on unmet dependencies.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates every dependency is done and the task can be dispatched.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusDispatched indicates a worker agent is executing the task.
	TaskStatusDispatched TaskStatus = "dispatched"
	// TaskStatusDone indicates the task's work has been integrated into mainline.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the task failed or its merge conflicted.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusDispatched, TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is done or failed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// Task represents one unit of plan work.
type Task struct {
	// Ordinal is the 1-based position of the task within its plan.
	// It is the task's identity: dependency references are ordinals.
	Ordinal int `json:"ordinal" yaml:"ordinal"`
	// Title is the short description of the task.
	Title string `json:"title" yaml:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// DependsOn lists ordinals of tasks that must complete before this task.
	DependsOn []int `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"status"`
	// AssignedTo is the ID of the worker agent bound to this task.
	AssignedTo string `json:"assigned_to,omitempty" yaml:"assigned_to,omitempty"`
	// CreatedAt is when the task was accepted into the plan.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	// Error contains failure details if the task failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
