package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlan = `Here's my plan for the project:

===PLAN_START===
TASK: Setup
DESC: scaffold
DEPS: none
---
TASK: Build
DESC: build it
DEPS: 1
===PLAN_END===

Let me know if you'd like changes.`

func TestParsePlan(t *testing.T) {
	tasks := ParsePlan(validPlan)
	require.Len(t, tasks, 2)

	assert.Equal(t, "Setup", tasks[0].Title)
	assert.Equal(t, "scaffold", tasks[0].Description)
	assert.Empty(t, tasks[0].Dependencies)

	assert.Equal(t, "Build", tasks[1].Title)
	assert.Equal(t, "build it", tasks[1].Description)
	assert.Equal(t, []int{1}, tasks[1].Dependencies)
}

func TestParsePlanMissingMarkers(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no start", "TASK: A\nDESC: a\n===PLAN_END==="},
		{"no end", "===PLAN_START===\nTASK: A\nDESC: a\n"},
		{"reversed", "===PLAN_END===\nTASK: A\nDESC: a\n===PLAN_START==="},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ParsePlan(tt.text))
		})
	}
}

func TestParsePlanDropsMalformedBlocks(t *testing.T) {
	text := `===PLAN_START===
TASK: Good
DESC: kept
DEPS: none
---
TASK: No description here
---
DESC: no title here
---
TASK: Also good
DESC: kept too
DEPS: 1, bogus, 2
===PLAN_END===`

	tasks := ParsePlan(text)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Good", tasks[0].Title)
	assert.Equal(t, "Also good", tasks[1].Title)
	// Non-numeric dependency tokens are dropped, not fatal.
	assert.Equal(t, []int{1, 2}, tasks[1].Dependencies)
}

func TestParsePlanAllBlocksInvalid(t *testing.T) {
	text := `===PLAN_START===
TASK: only a title
---
DESC: only a description
===PLAN_END===`
	assert.Nil(t, ParsePlan(text))
}

func TestParsePlanDepsVariants(t *testing.T) {
	tests := []struct {
		deps string
		want []int
	}{
		{"none", nil},
		{"NONE", nil},
		{"None", nil},
		{"", nil},
		{"1", []int{1}},
		{"1,2,3", []int{1, 2, 3}},
		{" 2 , 4 ", []int{2, 4}},
		{"a,b", nil},
	}
	for _, tt := range tests {
		t.Run(tt.deps, func(t *testing.T) {
			text := "===PLAN_START===\nTASK: T\nDESC: D\nDEPS: " + tt.deps + "\n===PLAN_END==="
			tasks := ParsePlan(text)
			require.Len(t, tasks, 1)
			assert.Equal(t, tt.want, tasks[0].Dependencies)
		})
	}
}

func TestParsePlanFirstFieldWins(t *testing.T) {
	text := `===PLAN_START===
TASK: First
TASK: Second
DESC: first desc
DESC: second desc
DEPS: none
===PLAN_END===`
	tasks := ParsePlan(text)
	require.Len(t, tasks, 1)
	assert.Equal(t, "First", tasks[0].Title)
	assert.Equal(t, "first desc", tasks[0].Description)
}

func TestPlanRoundTrip(t *testing.T) {
	original := ParsePlan(validPlan)
	require.NotNil(t, original)

	reparsed := ParsePlan(FormatPlan(original))
	assert.Equal(t, original, reparsed)
}

func TestDetectCompletion(t *testing.T) {
	assert.True(t, DetectCompletion("all done\n===TASK_COMPLETE===\n"))
	assert.True(t, DetectCompletion("===TASK_COMPLETE==="))
	assert.False(t, DetectCompletion("===TASK_COMPLETE"))
	assert.False(t, DetectCompletion("still working"))
}

func TestDetectMergeResultSuccess(t *testing.T) {
	text := "noise\n===MERGE_SUCCESS===\nBRANCH: work/ab12cd34\n===END===\nnoise"
	result := DetectMergeResult(text)
	require.NotNil(t, result)
	assert.Equal(t, MergeOutcomeSuccess, result.Outcome)
	assert.Equal(t, "work/ab12cd34", result.Branch)
	assert.Empty(t, result.Details)
}

func TestDetectMergeResultConflict(t *testing.T) {
	text := "===MERGE_CONFLICT===\nBRANCH: work/ff00aa11\nDETAILS: both modified main.go\n===END==="
	result := DetectMergeResult(text)
	require.NotNil(t, result)
	assert.Equal(t, MergeOutcomeConflict, result.Outcome)
	assert.Equal(t, "work/ff00aa11", result.Branch)
	assert.Equal(t, "both modified main.go", result.Details)
}

func TestDetectMergeResultConflictWithoutDetails(t *testing.T) {
	text := "===MERGE_CONFLICT===\nBRANCH: work/ff00aa11\n===END==="
	result := DetectMergeResult(text)
	require.NotNil(t, result)
	assert.Equal(t, MergeOutcomeConflict, result.Outcome)
	assert.Empty(t, result.Details)
}

func TestDetectMergeResultStrictness(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing end", "===MERGE_SUCCESS===\nBRANCH: work/ab12cd34\n"},
		{"missing branch", "===MERGE_SUCCESS===\n===END==="},
		{"empty branch", "===MERGE_SUCCESS===\nBRANCH:\n===END==="},
		{"noise between lines", "===MERGE_SUCCESS===\nhello\nBRANCH: work/ab12cd34\n===END==="},
		{"details on success", "===MERGE_SUCCESS===\nBRANCH: work/ab12cd34\nDETAILS: x\n===END==="},
		{"reordered", "BRANCH: work/ab12cd34\n===MERGE_SUCCESS===\n===END==="},
		{"no markers", "merged cleanly, all good"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, DetectMergeResult(tt.text))
		})
	}
}
