package orchestrator

import (
	"fmt"

	"github.com/cbhooper/foreman/internal/protocol"
	"github.com/cbhooper/foreman/pkg/models"
)

// coordinatorPrompt asks the coordinator agent to decompose the project
// goal into a plan in the exact marker format the parser consumes.
func coordinatorPrompt(p *models.Project) string {
	return fmt.Sprintf(`You are the planning coordinator for the project %q.

Goal:
%s

Explore the repository in your working directory, then break the goal into
independent tasks that workers can execute in parallel where possible.
Keep tasks small and self-contained; a task may depend only on tasks that
appear before it in your list.

Output the plan in EXACTLY this format, with no other text between the
markers:

%s
TASK: <short title>
DESC: <one-paragraph description of what to build and how to verify it>
DEPS: <comma-separated task numbers this depends on, or "none">
---
TASK: ...
DESC: ...
DEPS: ...
%s

Task numbers are 1-based positions in your list. Do not reference a task
that appears later than the one you are describing.`,
		p.Name, p.Description, protocol.PlanStartMarker, protocol.PlanEndMarker)
}

// workerPrompt instructs a worker agent to execute one task in its
// isolated worktree and signal completion through the marker protocol.
func workerPrompt(task *models.Task, branch string) string {
	return fmt.Sprintf(`You are a worker agent on branch %s, in your own git worktree.

Task %d: %s

%s

Rules:
- Work only inside this directory.
- Run the project's build and tests yourself before finishing.
- Commit all of your work to the current branch with clear messages.
- Do not merge, rebase, or switch branches.

When the task is finished and committed, print exactly this line:

%s`,
		branch, task.Ordinal, task.Title, task.Description, protocol.TaskCompleteMarker)
}

// mergerPrompt instructs the merger agent to integrate one worker branch
// and report the outcome through the strict merge-result markers.
func mergerPrompt(req *MergeRequest, mainline string) string {
	return fmt.Sprintf(`You are the merge agent. Integrate the branch %s into %s.
The branch closes the task %q.

Steps:
1. Check out %s and merge %s into it.
2. If the merge applies cleanly, commit it and report success.
3. If there are conflicts you cannot resolve trivially, abort the merge,
   leave the branch untouched, and report a conflict.

Report the outcome with EXACTLY one of these blocks and nothing between
the lines:

%s
BRANCH: %s
%s

or

%s
BRANCH: %s
DETAILS: <one line describing the conflict>
%s`,
		req.Branch, mainline, req.TaskTitle,
		mainline, req.Branch,
		protocol.MergeSuccessMarker, req.Branch, protocol.EndMarker,
		protocol.MergeConflictMarker, req.Branch, protocol.EndMarker)
}
