// Package scheduler owns the task state machine for a plan and answers
// which tasks can be dispatched at any moment.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cbhooper/foreman/pkg/models"
)

// ErrCycle indicates a circular dependency in the plan. The observed plan
// format numbers dependencies by position and cannot reference later tasks,
// so a true cycle is structurally impossible once ordinals are validated;
// the check stays as a defensive guard.
var ErrCycle = errors.New("circular dependency detected")

// ErrUnknownTask indicates an ordinal that is not part of the loaded plan.
var ErrUnknownTask = errors.New("unknown task ordinal")

// ValidationError reports a dependency ordinal that is out of range or a
// task that references itself.
type ValidationError struct {
	// Ordinal is the offending task.
	Ordinal int
	// Dep is the invalid dependency reference.
	Dep int
}

func (e *ValidationError) Error() string {
	if e.Dep == e.Ordinal {
		return fmt.Sprintf("task %d depends on itself", e.Ordinal)
	}
	return fmt.Sprintf("task %d has dependency %d out of range", e.Ordinal, e.Dep)
}

// InvalidTransitionError reports a disallowed task status transition.
type InvalidTransitionError struct {
	Ordinal int
	From    models.TaskStatus
	To      models.TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %d: invalid transition %s -> %s", e.Ordinal, e.From, e.To)
}

// Scheduler tracks task state for one plan. It is safe for concurrent use,
// although the orchestration loop is the only intended mutator.
type Scheduler struct {
	mu    sync.RWMutex
	tasks map[int]*models.Task
	// dependents maps an ordinal to the ordinals that depend on it, so
	// completion recomputes readiness in O(dependents) rather than a
	// full rescan.
	dependents map[int][]int
	count      int
}

// New creates an empty scheduler. Call LoadPlan before anything else.
func New() *Scheduler {
	return &Scheduler{
		tasks:      make(map[int]*models.Task),
		dependents: make(map[int][]int),
	}
}

// LoadPlan validates and installs a plan. Every dependency must reference
// an existing, non-self ordinal; violations return a *ValidationError and
// cycles return ErrCycle. Tasks without dependencies start ready, the rest
// pending. Loading replaces any previous plan.
func (s *Scheduler) LoadPlan(tasks []*models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(tasks)
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if dep < 1 || dep > n {
				return &ValidationError{Ordinal: t.Ordinal, Dep: dep}
			}
			if dep == t.Ordinal {
				return &ValidationError{Ordinal: t.Ordinal, Dep: dep}
			}
		}
	}
	if hasCycle(tasks) {
		return ErrCycle
	}

	s.tasks = make(map[int]*models.Task, n)
	s.dependents = make(map[int][]int)
	s.count = n
	now := time.Now()
	for _, t := range tasks {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if len(t.DependsOn) == 0 {
			t.Status = models.TaskStatusReady
		} else {
			t.Status = models.TaskStatusPending
		}
		s.tasks[t.Ordinal] = t
		for _, dep := range t.DependsOn {
			s.dependents[dep] = append(s.dependents[dep], t.Ordinal)
		}
	}
	return nil
}

// hasCycle runs a DFS with coloring over the dependency edges.
func hasCycle(tasks []*models.Task) bool {
	edges := make(map[int][]int, len(tasks))
	for _, t := range tasks {
		edges[t.Ordinal] = t.DependsOn
	}

	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[int]int, len(tasks))
	var visit func(ordinal int) bool
	visit = func(ordinal int) bool {
		colors[ordinal] = 1
		for _, dep := range edges[ordinal] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[ordinal] = 2
		return false
	}

	for _, t := range tasks {
		if colors[t.Ordinal] == 0 && visit(t.Ordinal) {
			return true
		}
	}
	return false
}

// MarkDispatched transitions a task from ready to dispatched.
func (s *Scheduler) MarkDispatched(ordinal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(ordinal, models.TaskStatusReady, models.TaskStatusDispatched)
}

// MarkDone transitions a task from dispatched to done, then promotes every
// pending task whose full dependency set is now satisfied to ready.
func (s *Scheduler) MarkDone(ordinal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(ordinal, models.TaskStatusDispatched, models.TaskStatusDone); err != nil {
		return err
	}
	for _, depOrdinal := range s.dependents[ordinal] {
		dependent := s.tasks[depOrdinal]
		if dependent.Status != models.TaskStatusPending {
			continue
		}
		if s.depsSatisfied(dependent) {
			dependent.Status = models.TaskStatusReady
		}
	}
	return nil
}

// MarkFailed transitions a task from dispatched to failed. Dependents are
// deliberately left pending: no completion signal for the failed task will
// ever arrive, so they stay blocked until the operator intervenes.
func (s *Scheduler) MarkFailed(ordinal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(ordinal, models.TaskStatusDispatched, models.TaskStatusFailed)
}

// transition applies from -> to, stamping CompletedAt on terminal states.
// Caller must hold s.mu.
func (s *Scheduler) transition(ordinal int, from, to models.TaskStatus) error {
	t, ok := s.tasks[ordinal]
	if !ok {
		return fmt.Errorf("task %d: %w", ordinal, ErrUnknownTask)
	}
	if t.Status != from {
		return &InvalidTransitionError{Ordinal: ordinal, From: t.Status, To: to}
	}
	t.Status = to
	if to.Terminal() {
		now := time.Now()
		t.CompletedAt = &now
	}
	return nil
}

// depsSatisfied reports whether every dependency of t is done.
// Caller must hold s.mu.
func (s *Scheduler) depsSatisfied(t *models.Task) bool {
	for _, dep := range t.DependsOn {
		if s.tasks[dep].Status != models.TaskStatusDone {
			return false
		}
	}
	return true
}

// NextReady returns all ready tasks in ascending ordinal order. The caller
// decides how many to dispatch concurrently.
func (s *Scheduler) NextReady() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ready []*models.Task
	for _, t := range s.tasks {
		if t.Status == models.TaskStatusReady {
			ready = append(ready, t)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Ordinal < ready[j].Ordinal })
	return ready
}

// IsComplete returns true iff every task is done or failed.
func (s *Scheduler) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return false
	}
	for _, t := range s.tasks {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// IsStuck returns true when no task can make progress: nothing is ready or
// dispatched, yet the plan is not complete. This surfaces the deliberate
// "no silent skip" policy for dependents of failed tasks.
func (s *Scheduler) IsStuck() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return false
	}
	sawPending := false
	for _, t := range s.tasks {
		switch t.Status {
		case models.TaskStatusReady, models.TaskStatusDispatched:
			return false
		case models.TaskStatusPending:
			sawPending = true
		}
	}
	return sawPending
}

// Task returns the task with the given ordinal, or nil.
func (s *Scheduler) Task(ordinal int) *models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[ordinal]
}

// Tasks returns all tasks in ascending ordinal order.
func (s *Scheduler) Tasks() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// Size returns the number of tasks in the plan.
func (s *Scheduler) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
