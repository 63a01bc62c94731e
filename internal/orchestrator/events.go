// Package orchestrator drives coordinator, worker, and merger agents
// through the plan, dispatch, and integration workflow for a project.
package orchestrator

import "time"

// EventType represents the kind of orchestrator event.
type EventType string

const (
	// EventPlanAccepted indicates the coordinator's plan was parsed and validated.
	EventPlanAccepted EventType = "plan_accepted"
	// EventTaskReady indicates a task's dependencies are all done.
	EventTaskReady EventType = "task_ready"
	// EventTaskDispatched indicates a worker agent was spawned for a task.
	EventTaskDispatched EventType = "task_dispatched"
	// EventTaskDone indicates a task's branch was integrated into mainline.
	EventTaskDone EventType = "task_done"
	// EventTaskFailed indicates a task failed or its merge conflicted.
	EventTaskFailed EventType = "task_failed"
	// EventMergeEnqueued indicates a completed branch joined the merge queue.
	EventMergeEnqueued EventType = "merge_enqueued"
	// EventMergeResolved indicates the in-flight merge finished.
	EventMergeResolved EventType = "merge_resolved"
	// EventAgentStarted indicates an agent process was spawned.
	EventAgentStarted EventType = "agent_started"
	// EventAgentExited indicates an agent process exited.
	EventAgentExited EventType = "agent_exited"
	// EventSessionDone indicates every task reached a terminal state.
	EventSessionDone EventType = "session_done"
	// EventSessionStuck indicates no task can make progress without
	// operator intervention.
	EventSessionStuck EventType = "session_stuck"
)

// Event is emitted by the orchestrator for external consumption (UI, logs).
// The core never blocks on delivery.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskOrdinal is the related task, if applicable.
	TaskOrdinal int
	// TaskTitle is the related task's title, if applicable.
	TaskTitle string
	// AgentID is the related agent, if applicable.
	AgentID string
	// Branch is the related worker branch, if applicable.
	Branch string
	// Message provides additional context.
	Message string
	// Err carries failure details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
