package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func req(ordinal int) *MergeRequest {
	return &MergeRequest{Branch: "work/branch", TaskOrdinal: ordinal}
}

func TestMergeQueueFirstEnqueueGoesInFlight(t *testing.T) {
	q := NewMergeQueue()

	assert.True(t, q.Enqueue(req(1)), "idle queue must hand the request straight to the caller")
	assert.Equal(t, 1, q.InFlight().TaskOrdinal)
	assert.Equal(t, 0, q.Len(), "the in-flight request is not pending")
}

func TestMergeQueueSingleSlot(t *testing.T) {
	q := NewMergeQueue()

	q.Enqueue(req(1))
	assert.False(t, q.Enqueue(req(2)))
	assert.False(t, q.Enqueue(req(3)))

	assert.Equal(t, 1, q.InFlight().TaskOrdinal, "later arrivals must not displace the in-flight merge")
	assert.Equal(t, 2, q.Len(), "two requests wait behind the in-flight merge")
}

func TestMergeQueueResolvesInEnqueueOrder(t *testing.T) {
	q := NewMergeQueue()
	for i := 1; i <= 3; i++ {
		q.Enqueue(req(i))
	}

	var order []int
	for q.InFlight() != nil {
		resolved, next := q.Resolve()
		require.NotNil(t, resolved)
		order = append(order, resolved.TaskOrdinal)
		if next != nil {
			assert.Equal(t, next, q.InFlight())
		}
	}
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Len())
}

func TestMergeQueueResolveWhenIdle(t *testing.T) {
	q := NewMergeQueue()

	resolved, next := q.Resolve()
	assert.Nil(t, resolved)
	assert.Nil(t, next)
}
