package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbhooper/foreman/pkg/models"
)

func plan(deps ...[]int) []*models.Task {
	tasks := make([]*models.Task, len(deps))
	for i, d := range deps {
		tasks[i] = &models.Task{
			Ordinal:   i + 1,
			Title:     "task",
			DependsOn: d,
		}
	}
	return tasks
}

func TestLoadPlanSeedsStatuses(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadPlan(plan(nil, []int{1}, []int{1, 2})))

	assert.Equal(t, models.TaskStatusReady, s.Task(1).Status)
	assert.Equal(t, models.TaskStatusPending, s.Task(2).Status)
	assert.Equal(t, models.TaskStatusPending, s.Task(3).Status)
}

func TestLoadPlanValidation(t *testing.T) {
	tests := []struct {
		name string
		deps [][]int
	}{
		{"out of range high", [][]int{nil, {3}}},
		{"out of range zero", [][]int{{0}}},
		{"negative", [][]int{{-1}}},
		{"self reference", [][]int{nil, {2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().LoadPlan(plan(tt.deps...))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestLoadPlanCycleDetection(t *testing.T) {
	// Forward references pass range validation in a 3-task plan but
	// form a loop: 2 -> 1 and 1 -> 2.
	tasks := plan([]int{2}, []int{1}, nil)
	err := New().LoadPlan(tasks)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestDispatchRequiresReady(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadPlan(plan(nil, []int{1})))

	require.NoError(t, s.MarkDispatched(1))

	var terr *InvalidTransitionError
	err := s.MarkDispatched(2) // still pending
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 2, terr.Ordinal)

	err = s.MarkDispatched(1) // already dispatched
	require.ErrorAs(t, err, &terr)
}

func TestMarkDoneUnblocksDependents(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadPlan(plan(nil, []int{1})))

	assert.Equal(t, models.TaskStatusPending, s.Task(2).Status)

	require.NoError(t, s.MarkDispatched(1))
	require.NoError(t, s.MarkDone(1))

	assert.Equal(t, models.TaskStatusReady, s.Task(2).Status)
	require.NotNil(t, s.Task(1).CompletedAt)
}

func TestMarkDoneWaitsForFullDependencySet(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadPlan(plan(nil, nil, []int{1, 2})))

	require.NoError(t, s.MarkDispatched(1))
	require.NoError(t, s.MarkDone(1))
	assert.Equal(t, models.TaskStatusPending, s.Task(3).Status)

	require.NoError(t, s.MarkDispatched(2))
	require.NoError(t, s.MarkDone(2))
	assert.Equal(t, models.TaskStatusReady, s.Task(3).Status)
}

func TestFailedTaskLeavesDependentsPending(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadPlan(plan(nil, []int{1})))

	require.NoError(t, s.MarkDispatched(1))
	require.NoError(t, s.MarkFailed(1))

	// The dependent must never be silently unblocked.
	assert.Equal(t, models.TaskStatusPending, s.Task(2).Status)
	assert.Empty(t, s.NextReady())
	assert.False(t, s.IsComplete())
	assert.True(t, s.IsStuck())
}

func TestNextReadyOrdering(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadPlan(plan(nil, nil, nil)))

	ready := s.NextReady()
	require.Len(t, ready, 3)
	assert.Equal(t, 1, ready[0].Ordinal)
	assert.Equal(t, 2, ready[1].Ordinal)
	assert.Equal(t, 3, ready[2].Ordinal)
}

func TestIsComplete(t *testing.T) {
	s := New()
	assert.False(t, s.IsComplete(), "empty scheduler is not complete")

	require.NoError(t, s.LoadPlan(plan(nil, nil)))
	assert.False(t, s.IsComplete())

	require.NoError(t, s.MarkDispatched(1))
	require.NoError(t, s.MarkDone(1))
	require.NoError(t, s.MarkDispatched(2))
	require.NoError(t, s.MarkFailed(2))

	assert.True(t, s.IsComplete(), "done + failed is complete")
}

func TestDispatchOnlyAfterAllDepsDone(t *testing.T) {
	// Invariant check across a diamond: 4 depends on 2 and 3, which both
	// depend on 1.
	s := New()
	require.NoError(t, s.LoadPlan(plan(nil, []int{1}, []int{1}, []int{2, 3})))

	dispatched := map[int]bool{}
	doneSet := map[int]bool{}
	for !s.IsComplete() {
		ready := s.NextReady()
		if len(ready) == 0 {
			break
		}
		for _, task := range ready {
			for _, dep := range task.DependsOn {
				require.True(t, doneSet[dep],
					"task %d became ready before dependency %d was done", task.Ordinal, dep)
			}
			require.NoError(t, s.MarkDispatched(task.Ordinal))
			dispatched[task.Ordinal] = true
		}
		for ordinal := range dispatched {
			if !doneSet[ordinal] {
				require.NoError(t, s.MarkDone(ordinal))
				doneSet[ordinal] = true
			}
		}
	}
	assert.Len(t, doneSet, 4)
}

func TestTransitionErrorsOnUnknownOrdinal(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadPlan(plan(nil)))
	assert.True(t, errors.Is(s.MarkDispatched(99), ErrUnknownTask))
}
