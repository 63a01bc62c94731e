package orchestrator

import (
	"sync"
	"time"
)

// MergeRequest is a queued integration of one worker branch into mainline.
type MergeRequest struct {
	// Branch is the worker branch to integrate.
	Branch string
	// TaskOrdinal is the task this merge closes.
	TaskOrdinal int
	// TaskTitle is the task's title, for merger prompts and display.
	TaskTitle string
	// AgentID is the worker that produced the branch.
	AgentID string
	// EnqueuedAt is when the completion signal arrived.
	EnqueuedAt time.Time
}

// MergeQueue serializes branch integration. At most one request is in
// flight per project; completions arriving in the meantime queue in FIFO
// order. Concurrent merges into the same mainline interleave non-atomic
// version-control steps, so the single in-flight slot is the only merge
// locking the system needs.
//
// The queue is purely mechanical: the orchestrator performs the side
// effects (spawning the merger agent, marking tasks, cleanup) when
// Enqueue or Resolve hands it a request to dispatch.
type MergeQueue struct {
	mu       sync.Mutex
	pending  []*MergeRequest
	inFlight *MergeRequest
}

// NewMergeQueue creates an empty merge queue.
func NewMergeQueue() *MergeQueue {
	return &MergeQueue{}
}

// Enqueue adds a request. If the queue was idle the request becomes
// in-flight immediately and true is returned: the caller must dispatch
// it to the merger agent.
func (q *MergeQueue) Enqueue(req *MergeRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	req.EnqueuedAt = time.Now()
	if q.inFlight == nil {
		q.inFlight = req
		return true
	}
	q.pending = append(q.pending, req)
	return false
}

// Resolve retires the in-flight request and promotes the oldest pending
// request, if any, to in-flight. It returns the resolved request and the
// next one to dispatch (nil when the queue went idle).
func (q *MergeQueue) Resolve() (resolved, next *MergeRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	resolved = q.inFlight
	q.inFlight = nil
	if len(q.pending) > 0 {
		next = q.pending[0]
		q.pending = q.pending[1:]
		q.inFlight = next
	}
	return resolved, next
}

// InFlight returns the request currently being merged, or nil.
func (q *MergeQueue) InFlight() *MergeRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Len returns the number of pending requests, excluding the in-flight one.
func (q *MergeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
