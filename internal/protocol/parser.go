package protocol

import (
	"strconv"
	"strings"
)

// PlanTask is one task extracted from a coordinator plan.
type PlanTask struct {
	// Title is the TASK: field.
	Title string
	// Description is the DESC: field.
	Description string
	// Dependencies lists 1-based ordinals of tasks this one depends on.
	Dependencies []int
}

// MergeOutcome is the result kind reported by a merger agent.
type MergeOutcome string

const (
	// MergeOutcomeSuccess means the branch was integrated into mainline.
	MergeOutcomeSuccess MergeOutcome = "success"
	// MergeOutcomeConflict means integration was abandoned and the branch
	// was left intact for operator follow-up.
	MergeOutcomeConflict MergeOutcome = "conflict"
)

// MergeResult is a structured merger report.
type MergeResult struct {
	Outcome MergeOutcome
	// Branch is the worker branch the report refers to.
	Branch string
	// Details carries conflict context. Only set for conflicts.
	Details string
}

// ParsePlan extracts a task list from coordinator output.
//
// The plan must sit between PlanStartMarker and PlanEndMarker, in that
// order; otherwise nil is returned, never a partial plan. Inside the
// envelope parsing is lenient: blocks missing TASK or DESC are dropped,
// a DEPS value of "none" (case-insensitive) or an absent DEPS line means
// no dependencies, and non-numeric dependency tokens are skipped.
// Returns nil if no valid blocks remain.
func ParsePlan(text string) []PlanTask {
	start := strings.Index(text, PlanStartMarker)
	if start < 0 {
		return nil
	}
	rest := text[start+len(PlanStartMarker):]
	end := strings.Index(rest, PlanEndMarker)
	if end < 0 {
		return nil
	}
	body := rest[:end]

	var tasks []PlanTask
	for _, block := range splitBlocks(body) {
		task, ok := parseBlock(block)
		if !ok {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// splitBlocks divides the plan body on lines containing exactly the
// block separator.
func splitBlocks(body string) [][]string {
	var blocks [][]string
	var current []string
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == planBlockSeparator {
			blocks = append(blocks, current)
			current = nil
			continue
		}
		current = append(current, line)
	}
	blocks = append(blocks, current)
	return blocks
}

// parseBlock extracts a PlanTask from one block of lines. The first
// occurrence of each field wins. Blocks without both TASK and DESC are
// rejected.
func parseBlock(lines []string) (PlanTask, bool) {
	var task PlanTask
	var haveTitle, haveDesc, haveDeps bool

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case !haveTitle && strings.HasPrefix(trimmed, taskFieldPrefix):
			task.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, taskFieldPrefix))
			haveTitle = true
		case !haveDesc && strings.HasPrefix(trimmed, descFieldPrefix):
			task.Description = strings.TrimSpace(strings.TrimPrefix(trimmed, descFieldPrefix))
			haveDesc = true
		case !haveDeps && strings.HasPrefix(trimmed, depsFieldPrefix):
			task.Dependencies = parseDeps(strings.TrimSpace(strings.TrimPrefix(trimmed, depsFieldPrefix)))
			haveDeps = true
		}
	}

	if !haveTitle || task.Title == "" || !haveDesc || task.Description == "" {
		return PlanTask{}, false
	}
	return task, true
}

// parseDeps parses a comma-separated ordinal list. "none" and the empty
// string mean no dependencies; tokens that are not integers are dropped
// rather than failing the parse.
func parseDeps(value string) []int {
	if value == "" || strings.EqualFold(value, "none") {
		return nil
	}
	var deps []int
	for _, tok := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		deps = append(deps, n)
	}
	return deps
}

// DetectCompletion reports whether the text contains the worker
// completion marker.
func DetectCompletion(text string) bool {
	return strings.Contains(text, TaskCompleteMarker)
}

// DetectMergeResult extracts a merger report from text.
//
// Unlike plans, merge reports gate real repository mutation, so the full
// marker sequence must appear as a contiguous block of lines: the outcome
// marker, a BRANCH line, an optional DETAILS line (conflicts only), and
// the end marker. Anything partial or reordered yields nil.
func DetectMergeResult(text string) *MergeResult {
	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		switch strings.TrimSpace(raw) {
		case MergeSuccessMarker:
			if r := parseMergeBlock(lines[i+1:], MergeOutcomeSuccess); r != nil {
				return r
			}
		case MergeConflictMarker:
			if r := parseMergeBlock(lines[i+1:], MergeOutcomeConflict); r != nil {
				return r
			}
		}
	}
	return nil
}

// parseMergeBlock validates the lines immediately following an outcome
// marker: BRANCH, optional DETAILS (conflict only), then the end marker.
func parseMergeBlock(lines []string, outcome MergeOutcome) *MergeResult {
	if len(lines) < 2 {
		return nil
	}
	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(first, branchFieldPrefix) {
		return nil
	}
	result := &MergeResult{
		Outcome: outcome,
		Branch:  strings.TrimSpace(strings.TrimPrefix(first, branchFieldPrefix)),
	}
	if result.Branch == "" {
		return nil
	}

	next := strings.TrimSpace(lines[1])
	if next == EndMarker {
		return result
	}
	if outcome == MergeOutcomeConflict && strings.HasPrefix(next, detailsFieldPrefix) {
		if len(lines) < 3 || strings.TrimSpace(lines[2]) != EndMarker {
			return nil
		}
		result.Details = strings.TrimSpace(strings.TrimPrefix(next, detailsFieldPrefix))
		return result
	}
	return nil
}
