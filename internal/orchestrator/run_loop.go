package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cbhooper/foreman/internal/agent"
	"github.com/cbhooper/foreman/internal/protocol"
	"github.com/cbhooper/foreman/internal/worktree"
	"github.com/cbhooper/foreman/pkg/models"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// cancelDrainTimeout bounds how long the loop waits for killed agents to
// report their exit after ctx cancellation. Shortened in tests.
var cancelDrainTimeout = 10 * time.Second

type loopEventKind int

const (
	evLine loopEventKind = iota
	evExit
	evKill
)

// loopEvent is the only message type crossing from pump goroutines into
// the decision loop.
type loopEvent struct {
	kind    loopEventKind
	agentID string
	line    string
	exitErr error
}

// runLoop is the single-goroutine decision loop. All scheduler, queue and
// worktree mutations happen here; agents only talk to it through events.
func (o *Orchestrator) runLoop(ctx context.Context) error {
	o.dispatchReady(ctx)

	for {
		if o.sessionDone() {
			o.emit(Event{Type: EventSessionDone})
			o.logger.Log("[orchestrator] session complete")
			_ = o.pumps.Wait()
			o.emitter.Close()
			return nil
		}
		if o.sessionStuck() {
			o.emit(Event{Type: EventSessionStuck, Err: ErrPlanStuck})
			o.logger.Log("[orchestrator] session stuck: pending tasks blocked by failures")
			_ = o.pumps.Wait()
			o.emitter.Close()
			return ErrPlanStuck
		}

		select {
		case <-ctx.Done():
			// Waiting on the pumps is only safe after every killed
			// agent reported its exit; a wedged process would block
			// Wait forever.
			if o.cancelAll(ctx.Err()) {
				_ = o.pumps.Wait()
			}
			o.emitter.Close()
			return ctx.Err()
		case ev := <-o.events:
			o.handleEvent(ctx, ev)
		}
	}
}

// sessionDone reports that every task is terminal, every merge has
// resolved, and no agent process is still attached.
func (o *Orchestrator) sessionDone() bool {
	return len(o.procs) == 0 && o.queue.InFlight() == nil && o.sched.IsComplete()
}

// sessionStuck reports that nothing is running or queued yet pending
// tasks remain. Their dependencies failed; they will never become ready.
func (o *Orchestrator) sessionStuck() bool {
	return len(o.procs) == 0 && o.queue.InFlight() == nil && o.sched.IsStuck()
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev loopEvent) {
	switch ev.kind {
	case evLine:
		o.handleLine(ev.agentID, ev.line)
	case evExit:
		o.handleExit(ctx, ev.agentID, ev.exitErr)
	case evKill:
		if proc, ok := o.procs[ev.agentID]; ok {
			o.logger.Log("[orchestrator] killing agent %s", ev.agentID)
			proc.Kill()
		}
	}
}

func (o *Orchestrator) handleLine(agentID, line string) {
	a, err := o.agents.Get(agentID)
	if err != nil {
		return
	}
	if a.Status == models.AgentStatusLaunched {
		_ = o.agents.Transition(agentID, models.AgentStatusRunning)
	}

	sb, ok := o.transcripts[agentID]
	if !ok {
		sb = &strings.Builder{}
		o.transcripts[agentID] = sb
	}
	sb.WriteString(line)
	sb.WriteString("\n")

	// A worker announces success exactly once; everything after the
	// marker is noise.
	if a.Role == models.RoleWorker && !o.completionSeen[agentID] && protocol.DetectCompletion(line) {
		o.completionSeen[agentID] = true
		o.onWorkerCompleted(agentID, a.TaskOrdinal)
	}
}

// onWorkerCompleted enqueues the worker's branch for integration. The
// worker process may still be flushing output; task bookkeeping waits for
// its exit.
func (o *Orchestrator) onWorkerCompleted(agentID string, ordinal int) {
	wt := o.trees.Get(agentID)
	if wt == nil {
		o.logger.Log("[orchestrator] worker %s completed but has no worktree", agentID)
		return
	}
	task := o.sched.Task(ordinal)
	req := &MergeRequest{
		Branch:      wt.Branch,
		TaskOrdinal: ordinal,
		AgentID:     agentID,
		EnqueuedAt:  timeNow(),
	}
	if task != nil {
		req.TaskTitle = task.Title
	}
	o.emit(Event{Type: EventMergeEnqueued, TaskOrdinal: ordinal, TaskTitle: req.TaskTitle, Branch: wt.Branch, AgentID: agentID})
	o.logger.Log("[orchestrator] task %d enqueued for merge on %s", ordinal, wt.Branch)
	if o.queue.Enqueue(req) {
		o.dispatchMerge(req)
	}
}

func (o *Orchestrator) handleExit(ctx context.Context, agentID string, exitErr error) {
	if _, ok := o.procs[agentID]; !ok {
		return
	}
	delete(o.procs, agentID)
	if cancel, ok := o.cancels[agentID]; ok {
		cancel()
		delete(o.cancels, agentID)
	}

	a, err := o.agents.Get(agentID)
	if err != nil {
		return
	}
	o.emit(Event{Type: EventAgentExited, AgentID: agentID, TaskOrdinal: a.TaskOrdinal, Err: exitErr})

	switch a.Role {
	case models.RoleWorker:
		o.onWorkerExit(a, exitErr)
	case models.RoleMerger:
		o.onMergerExit(a)
	}

	o.dispatchReady(ctx)
}

func (o *Orchestrator) onWorkerExit(a *models.Agent, exitErr error) {
	o.running--

	if o.completionSeen[a.ID] {
		_ = o.agents.Transition(a.ID, models.AgentStatusCompleted)
		o.persistAgent(a)
		// Worktree and branch survive until the merger is done with them.
		return
	}

	// Exit without the completion marker is a failure regardless of the
	// exit code: the task cannot be trusted as done.
	_ = o.agents.Transition(a.ID, models.AgentStatusError)
	o.persistAgent(a)

	task := o.sched.Task(a.TaskOrdinal)
	if err := o.sched.MarkFailed(a.TaskOrdinal); err != nil {
		o.logger.Log("[orchestrator] mark task %d failed: %v", a.TaskOrdinal, err)
	}
	if task != nil {
		if exitErr != nil {
			task.Error = exitErr.Error()
		} else {
			task.Error = "worker exited without completing"
		}
		o.persistTask(task)
	}
	o.emit(Event{Type: EventTaskFailed, TaskOrdinal: a.TaskOrdinal, AgentID: a.ID, Err: exitErr, Message: "worker exited without completing"})
	o.logger.Log("[orchestrator] task %d failed: worker %s exited without completion marker", a.TaskOrdinal, a.ID)

	// Keep the branch for postmortem, drop the directory.
	o.trees.Remove(a.ID, false)
}

func (o *Orchestrator) onMergerExit(a *models.Agent) {
	transcript := ""
	if sb, ok := o.transcripts[a.ID]; ok {
		transcript = sb.String()
	}
	result := protocol.DetectMergeResult(transcript)

	resolved, next := o.queue.Resolve()
	if resolved == nil {
		o.logger.Log("[orchestrator] merger %s exited with no merge in flight", a.ID)
		return
	}

	switch {
	case result != nil && result.Outcome == protocol.MergeOutcomeSuccess:
		_ = o.agents.Transition(a.ID, models.AgentStatusCompleted)
		o.resolveMergeSuccess(resolved)
	case result != nil && result.Outcome == protocol.MergeOutcomeConflict:
		_ = o.agents.Transition(a.ID, models.AgentStatusCompleted)
		o.resolveMergeFailure(resolved, result.Details)
	default:
		// No parseable report. The repository state is unknown, so the
		// task is treated as failed and nothing is cleaned up.
		_ = o.agents.Transition(a.ID, models.AgentStatusError)
		o.resolveMergeFailure(resolved, "merger produced no parseable result")
	}
	o.persistAgent(a)

	if next != nil {
		o.dispatchMerge(next)
	}
}

func (o *Orchestrator) resolveMergeSuccess(req *MergeRequest) {
	if err := o.sched.MarkDone(req.TaskOrdinal); err != nil {
		o.logger.Log("[orchestrator] mark task %d done: %v", req.TaskOrdinal, err)
	}
	o.persistTask(o.sched.Task(req.TaskOrdinal))
	o.persistMerge(req.Branch, req.TaskOrdinal, "success", "")
	o.emit(Event{Type: EventTaskDone, TaskOrdinal: req.TaskOrdinal, TaskTitle: req.TaskTitle, Branch: req.Branch})
	o.emit(Event{Type: EventMergeResolved, TaskOrdinal: req.TaskOrdinal, Branch: req.Branch, Message: "success"})
	o.logger.Log("[orchestrator] task %d merged from %s", req.TaskOrdinal, req.Branch)

	// The branch is integrated; reclaim everything.
	o.trees.Remove(req.AgentID, true)
}

func (o *Orchestrator) resolveMergeFailure(req *MergeRequest, details string) {
	if err := o.sched.MarkFailed(req.TaskOrdinal); err != nil {
		o.logger.Log("[orchestrator] mark task %d failed: %v", req.TaskOrdinal, err)
	}
	task := o.sched.Task(req.TaskOrdinal)
	if task != nil {
		task.Error = details
		o.persistTask(task)
	}
	o.persistMerge(req.Branch, req.TaskOrdinal, "conflict", details)
	o.emit(Event{Type: EventTaskFailed, TaskOrdinal: req.TaskOrdinal, Branch: req.Branch, Message: details})
	o.emit(Event{Type: EventMergeResolved, TaskOrdinal: req.TaskOrdinal, Branch: req.Branch, Message: "conflict"})
	o.logger.Log("[orchestrator] task %d merge failed on %s: %s", req.TaskOrdinal, req.Branch, details)

	// Branch and worktree stay put for manual conflict resolution.
}

// dispatchReady starts a worker for every ready task, respecting the
// concurrency cap.
func (o *Orchestrator) dispatchReady(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	for _, task := range o.sched.NextReady() {
		if o.maxWorkers > 0 && o.running >= o.maxWorkers {
			return
		}
		o.emit(Event{Type: EventTaskReady, TaskOrdinal: task.Ordinal, TaskTitle: task.Title})
		o.spawnWorker(ctx, task)
	}
}

func (o *Orchestrator) spawnWorker(ctx context.Context, task *models.Task) {
	agentID := uuid.New().String()

	wt, err := o.trees.Create(agentID)
	if err != nil {
		o.failBeforeStart(task, agentID, err)
		return
	}
	if err := worktree.ValidateWorkdir(o.project.Root, wt.Path); err != nil {
		o.trees.Remove(agentID, true)
		o.failBeforeStart(task, agentID, err)
		return
	}

	a, err := o.agents.CreateWithID(agentID, models.RoleWorker, task.Ordinal, wt.Path)
	if err != nil {
		o.trees.Remove(agentID, true)
		o.failBeforeStart(task, agentID, err)
		return
	}

	procCtx, procCancel := withOptionalTimeout(ctx, o.timeouts.Worker)
	proc, err := o.host.Start(procCtx, workerPrompt(task, wt.Branch), wt.Path)
	if err != nil {
		procCancel()
		_ = o.agents.Transition(agentID, models.AgentStatusError)
		o.trees.Remove(agentID, true)
		o.failBeforeStart(task, agentID, err)
		return
	}

	if err := o.sched.MarkDispatched(task.Ordinal); err != nil {
		o.logger.Log("[orchestrator] mark task %d dispatched: %v", task.Ordinal, err)
	}
	task.AssignedTo = agentID
	o.procs[agentID] = proc
	o.cancels[agentID] = procCancel
	o.running++
	o.persistTask(task)
	o.persistAgent(a)
	o.emit(Event{Type: EventTaskDispatched, TaskOrdinal: task.Ordinal, TaskTitle: task.Title, AgentID: agentID, Branch: wt.Branch})
	o.emit(Event{Type: EventAgentStarted, AgentID: agentID, TaskOrdinal: task.Ordinal, Message: string(models.RoleWorker)})
	o.logger.Log("[orchestrator] task %d dispatched to worker %s on %s", task.Ordinal, agentID, wt.Branch)

	o.pump(agentID, proc)
}

// failBeforeStart records a task failure that happened before the worker
// process ever ran.
func (o *Orchestrator) failBeforeStart(task *models.Task, agentID string, err error) {
	// The task is still ready; move it through dispatched so the failure
	// transition is legal.
	if terr := o.sched.MarkDispatched(task.Ordinal); terr != nil {
		o.logger.Log("[orchestrator] mark task %d dispatched: %v", task.Ordinal, terr)
	}
	if terr := o.sched.MarkFailed(task.Ordinal); terr != nil {
		o.logger.Log("[orchestrator] mark task %d failed: %v", task.Ordinal, terr)
	}
	task.Error = err.Error()
	o.persistTask(task)
	o.emit(Event{Type: EventTaskFailed, TaskOrdinal: task.Ordinal, TaskTitle: task.Title, AgentID: agentID, Err: err})
	o.logger.Log("[orchestrator] task %d failed before start: %v", task.Ordinal, err)
}

func (o *Orchestrator) dispatchMerge(req *MergeRequest) {
	agentID := uuid.New().String()
	workdir := o.trees.PathFor("") // mergers operate on the project root

	a, err := o.agents.CreateWithID(agentID, models.RoleMerger, req.TaskOrdinal, workdir)
	if err != nil {
		o.logger.Log("[orchestrator] create merger: %v", err)
		resolved, next := o.queue.Resolve()
		if resolved != nil {
			o.resolveMergeFailure(resolved, "merger could not be created: "+err.Error())
		}
		if next != nil {
			o.dispatchMerge(next)
		}
		return
	}

	// Mergers finish their report even when the session context ends, so
	// they hang off a fresh context bounded only by the role timeout.
	procCtx, procCancel := withOptionalTimeout(context.Background(), o.timeouts.Merger)
	proc, err := o.host.Start(procCtx, mergerPrompt(req, o.mainline), workdir)
	if err != nil {
		procCancel()
		_ = o.agents.Transition(agentID, models.AgentStatusError)
		o.logger.Log("[orchestrator] start merger: %v", err)
		resolved, next := o.queue.Resolve()
		if resolved != nil {
			o.resolveMergeFailure(resolved, "merger failed to start: "+err.Error())
		}
		if next != nil {
			o.dispatchMerge(next)
		}
		return
	}

	o.procs[agentID] = proc
	o.cancels[agentID] = procCancel
	o.persistAgent(a)
	o.emit(Event{Type: EventAgentStarted, AgentID: agentID, TaskOrdinal: req.TaskOrdinal, Branch: req.Branch, Message: string(models.RoleMerger)})
	o.logger.Log("[orchestrator] merger %s started for %s", agentID, req.Branch)

	o.pump(agentID, proc)
}

// pump forwards one process's output and exit into the decision loop.
func (o *Orchestrator) pump(agentID string, proc agent.Process) {
	o.pumps.Go(func() error {
		for line := range proc.Lines() {
			o.events <- loopEvent{kind: evLine, agentID: agentID, line: line}
		}
		o.events <- loopEvent{kind: evExit, agentID: agentID, exitErr: proc.Wait()}
		return nil
	})
}

// cancelAll kills every live agent, marks their tasks failed, and drains
// exit events so pump goroutines can finish. It returns false when some
// agent never reported its exit within the drain deadline.
func (o *Orchestrator) cancelAll(cause error) bool {
	o.logger.Log("[orchestrator] cancelling session: %v", cause)
	for id, cancel := range o.cancels {
		cancel()
		delete(o.cancels, id)
	}
	for id, proc := range o.procs {
		proc.Kill()
		a, err := o.agents.Get(id)
		if err != nil {
			continue
		}
		_ = o.agents.Transition(a.ID, models.AgentStatusError)
		if a.Role == models.RoleWorker {
			if terr := o.sched.MarkFailed(a.TaskOrdinal); terr == nil {
				if t := o.sched.Task(a.TaskOrdinal); t != nil {
					t.Error = "cancelled"
					o.persistTask(t)
				}
			}
			o.trees.Remove(id, false)
		}
		o.persistAgent(a)
	}

	deadline := time.NewTimer(cancelDrainTimeout)
	defer deadline.Stop()
	for len(o.procs) > 0 {
		select {
		case ev := <-o.events:
			if ev.kind == evExit {
				delete(o.procs, ev.agentID)
			}
		case <-deadline.C:
			o.logger.Log("[orchestrator] gave up waiting for %d agents to exit", len(o.procs))
			return false
		}
	}
	return true
}
