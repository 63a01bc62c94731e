// Package protocol extracts structured data from raw agent output.
// Agents communicate via exact textual markers rather than a typed API,
// so the parser tolerates surrounding prose while being strict about
// the marker envelopes themselves.
package protocol

// Marker strings produced by agents. These are exact and case-sensitive.
const (
	// PlanStartMarker opens a coordinator plan block.
	PlanStartMarker = "===PLAN_START==="
	// PlanEndMarker closes a coordinator plan block.
	PlanEndMarker = "===PLAN_END==="
	// TaskCompleteMarker is emitted by a worker when its task is finished
	// and committed on its branch.
	TaskCompleteMarker = "===TASK_COMPLETE==="
	// MergeSuccessMarker opens a merger success report.
	MergeSuccessMarker = "===MERGE_SUCCESS==="
	// MergeConflictMarker opens a merger conflict report.
	MergeConflictMarker = "===MERGE_CONFLICT==="
	// EndMarker closes a merger report.
	EndMarker = "===END==="
)

// Field prefixes inside plan blocks and merge reports.
const (
	taskFieldPrefix    = "TASK:"
	descFieldPrefix    = "DESC:"
	depsFieldPrefix    = "DEPS:"
	branchFieldPrefix  = "BRANCH:"
	detailsFieldPrefix = "DETAILS:"

	// planBlockSeparator divides task blocks inside a plan. Line-exact.
	planBlockSeparator = "---"
)
