package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/cbhooper/foreman/internal/agent"
	"github.com/cbhooper/foreman/internal/protocol"
	"github.com/cbhooper/foreman/internal/scheduler"
	"github.com/cbhooper/foreman/internal/worktree"
	"github.com/cbhooper/foreman/pkg/models"
)

// Orchestration-level failures.
var (
	// ErrRepositoryInit indicates the project repository could not be
	// created or accessed. Fatal for the project.
	ErrRepositoryInit = errors.New("repository initialization failed")
	// ErrNoPlanProduced indicates the coordinator exited without a
	// parseable plan.
	ErrNoPlanProduced = errors.New("coordinator produced no valid plan")
	// ErrPlanStuck indicates no task can make progress: dependents of
	// failed tasks stay pending until the operator intervenes.
	ErrPlanStuck = errors.New("plan is stuck: remaining tasks depend on failed work")
)

// Store persists orchestration state for later inspection. Implemented by
// the state package; nil disables persistence.
type Store interface {
	SaveProject(p *models.Project) error
	SaveTask(projectID string, t *models.Task) error
	SaveAgent(projectID string, a *models.Agent) error
	SaveMerge(projectID, branch string, taskOrdinal int, outcome, details string) error
}

// Timeouts bounds each agent role's runtime. Zero values disable the
// limit for that role.
type Timeouts struct {
	Coordinator time.Duration
	Worker      time.Duration
	Merger      time.Duration
}

// Options configures an Orchestrator.
type Options struct {
	// Host spawns agent processes. Required.
	Host agent.Host
	// MaxWorkers caps concurrently dispatched workers. 0 means the number
	// of simultaneously ready tasks is the only limit.
	MaxWorkers int
	// Timeouts bounds agent runtimes per role.
	Timeouts Timeouts
	// Mainline is the integration branch. Defaults to the worktree
	// package's default branch.
	Mainline string
	// Logger receives debug output. Defaults to a project-local file logger.
	Logger *DebugLogger
	// Emitter receives lifecycle events. Defaults to a buffered emitter.
	Emitter *EventEmitter
	// Store persists run state. Optional.
	Store Store
	// Worktrees overrides the worktree manager, for tests.
	Worktrees *worktree.Manager
}

// Orchestrator owns all per-project managers and drives the workflow.
// Its decision-making runs on a single goroutine fed by agent lifecycle
// events; the agents themselves run genuinely in parallel.
type Orchestrator struct {
	project *models.Project
	sched   *scheduler.Scheduler
	trees   *worktree.Manager
	agents  *agent.Manager
	queue   *MergeQueue

	host       agent.Host
	emitter    *EventEmitter
	logger     *DebugLogger
	store      Store
	mainline   string
	maxWorkers int
	timeouts   Timeouts

	// events feeds the decision loop. Only pump goroutines and KillAgent
	// send into it.
	events chan loopEvent

	// Loop-goroutine state. Touched only by the decision loop.
	procs          map[string]agent.Process
	cancels        map[string]context.CancelFunc
	transcripts    map[string]*strings.Builder
	completionSeen map[string]bool
	running        int
	pumps          *errgroup.Group
}

// New creates an orchestrator for the project.
func New(project *models.Project, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = NewDebugLoggerForProject(project.Root)
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = NewEventEmitter(256)
	}
	trees := opts.Worktrees
	if trees == nil {
		trees = worktree.NewManager(project.Root)
	}
	trees.SetLogf(logger.Log)
	mainline := opts.Mainline
	if mainline == "" {
		mainline = worktree.DefaultBranch
	}

	return &Orchestrator{
		project:        project,
		sched:          scheduler.New(),
		trees:          trees,
		agents:         agent.NewManager(),
		queue:          NewMergeQueue(),
		host:           opts.Host,
		emitter:        emitter,
		logger:         logger,
		store:          opts.Store,
		mainline:       mainline,
		maxWorkers:     opts.MaxWorkers,
		timeouts:       opts.Timeouts,
		events:         make(chan loopEvent, 256),
		procs:          make(map[string]agent.Process),
		cancels:        make(map[string]context.CancelFunc),
		transcripts:    make(map[string]*strings.Builder),
		completionSeen: make(map[string]bool),
		pumps:          &errgroup.Group{},
	}
}

// Events exposes the orchestrator's event stream for UI and logging layers.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Scheduler exposes the task scheduler for status inspection.
func (o *Orchestrator) Scheduler() *scheduler.Scheduler {
	return o.sched
}

// Run executes the full workflow: plan, dispatch, integrate. It returns
// when every task is terminal, the plan is stuck, or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.logger.Close()

	if !o.trees.EnsureRepository() {
		return fmt.Errorf("%w: %s", ErrRepositoryInit, o.project.Root)
	}

	planTasks, err := o.runCoordinator(ctx)
	if err != nil {
		return err
	}

	tasks := tasksFromPlan(planTasks)
	if err := o.sched.LoadPlan(tasks); err != nil {
		return fmt.Errorf("plan rejected: %w", err)
	}
	o.project.Tasks = o.sched.Tasks()
	o.persistProject()
	o.savePlanSnapshot()
	o.emit(Event{Type: EventPlanAccepted, Message: fmt.Sprintf("%d tasks", len(tasks))})
	o.logger.Log("[orchestrator] plan accepted with %d tasks", len(tasks))

	return o.runLoop(ctx)
}

// runCoordinator spawns the coordinator agent in the project root and
// parses a plan out of its complete output. The coordinator runs alone,
// so this phase is synchronous.
func (o *Orchestrator) runCoordinator(ctx context.Context) ([]protocol.PlanTask, error) {
	workdir := o.trees.PathFor("") // project root: coordinators get no worktree
	if err := worktree.ValidateWorkdir(o.project.Root, workdir); err != nil {
		return nil, err
	}

	ctx, cancel := withOptionalTimeout(ctx, o.timeouts.Coordinator)
	defer cancel()

	a, err := o.agents.CreateWithID(uuid.New().String(), models.RoleCoordinator, 0, workdir)
	if err != nil {
		return nil, err
	}
	o.persistAgent(a)
	o.emit(Event{Type: EventAgentStarted, AgentID: a.ID, Message: string(models.RoleCoordinator)})

	proc, err := o.host.Start(ctx, coordinatorPrompt(o.project), workdir)
	if err != nil {
		_ = o.agents.Transition(a.ID, models.AgentStatusError)
		return nil, fmt.Errorf("start coordinator: %w", err)
	}

	var transcript strings.Builder
	first := true
	for line := range proc.Lines() {
		if first {
			_ = o.agents.Transition(a.ID, models.AgentStatusRunning)
			first = false
		}
		transcript.WriteString(line)
		transcript.WriteString("\n")
	}
	exitErr := proc.Wait()
	o.emit(Event{Type: EventAgentExited, AgentID: a.ID, Err: exitErr})

	plan := protocol.ParsePlan(transcript.String())
	if plan == nil {
		_ = o.agents.Transition(a.ID, models.AgentStatusError)
		o.persistAgent(a)
		if exitErr != nil {
			return nil, fmt.Errorf("%w: coordinator exited: %v", ErrNoPlanProduced, exitErr)
		}
		return nil, ErrNoPlanProduced
	}
	_ = o.agents.Transition(a.ID, models.AgentStatusCompleted)
	o.persistAgent(a)
	return plan, nil
}

// tasksFromPlan converts parsed plan tasks into scheduler tasks, assigning
// ordinals by position.
func tasksFromPlan(plan []protocol.PlanTask) []*models.Task {
	tasks := make([]*models.Task, len(plan))
	for i, pt := range plan {
		tasks[i] = &models.Task{
			Ordinal:     i + 1,
			Title:       pt.Title,
			Description: pt.Description,
			DependsOn:   pt.Dependencies,
		}
	}
	return tasks
}

// withOptionalTimeout derives a bounded context when d is positive and a
// plain cancellable one otherwise.
func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// savePlanSnapshot writes the accepted plan to .foreman/plan.yaml so
// operators can read it without the database.
func (o *Orchestrator) savePlanSnapshot() {
	data, err := yaml.Marshal(o.project.Tasks)
	if err != nil {
		o.logger.Log("[orchestrator] marshal plan snapshot: %v", err)
		return
	}
	dir := filepath.Join(o.project.Root, ".foreman")
	if err := os.MkdirAll(dir, 0755); err != nil {
		o.logger.Log("[orchestrator] create snapshot dir: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "plan.yaml"), data, 0644); err != nil {
		o.logger.Log("[orchestrator] write plan snapshot: %v", err)
	}
}

// KillAgent requests termination of one agent. The agent's task is marked
// failed when its exit is observed; dependents are not cascade-cancelled.
func (o *Orchestrator) KillAgent(agentID string) {
	select {
	case o.events <- loopEvent{kind: evKill, agentID: agentID}:
	default:
		o.logger.Log("[orchestrator] kill request for %s dropped: event queue full", agentID)
	}
}

func (o *Orchestrator) emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = timeNow()
	}
	o.emitter.Emit(event)
}

func (o *Orchestrator) persistProject() {
	if o.store == nil {
		return
	}
	if err := o.store.SaveProject(o.project); err != nil {
		o.logger.Log("[orchestrator] persist project: %v", err)
	}
}

func (o *Orchestrator) persistTask(t *models.Task) {
	if o.store == nil || t == nil {
		return
	}
	if err := o.store.SaveTask(o.project.ID, t); err != nil {
		o.logger.Log("[orchestrator] persist task %d: %v", t.Ordinal, err)
	}
}

func (o *Orchestrator) persistAgent(a *models.Agent) {
	if o.store == nil || a == nil {
		return
	}
	if err := o.store.SaveAgent(o.project.ID, a); err != nil {
		o.logger.Log("[orchestrator] persist agent %s: %v", a.ID, err)
	}
}

func (o *Orchestrator) persistMerge(branch string, ordinal int, outcome, details string) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveMerge(o.project.ID, branch, ordinal, outcome, details); err != nil {
		o.logger.Log("[orchestrator] persist merge %s: %v", branch, err)
	}
}
