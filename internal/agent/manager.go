// Package agent provides agent lifecycle tracking and the process host
// that runs agent subprocesses.
package agent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbhooper/foreman/pkg/models"
)

// Common errors for agent lifecycle management.
var (
	// ErrAgentNotFound indicates the requested agent does not exist.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrInvalidTransition indicates an invalid state transition was attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrAgentAlreadyExists indicates an agent with that ID already exists.
	ErrAgentAlreadyExists = errors.New("agent already exists")
)

// LifecycleEvent describes an agent status change.
type LifecycleEvent struct {
	// AgentID is the agent that changed state.
	AgentID string
	// Role is the agent's workflow role.
	Role models.AgentRole
	// TaskOrdinal is the bound task for workers, zero otherwise.
	TaskOrdinal int
	// FromStatus is the previous status (empty on creation).
	FromStatus models.AgentStatus
	// ToStatus is the new status.
	ToStatus models.AgentStatus
	// Timestamp is when the change happened.
	Timestamp time.Time
}

// LifecycleEventHandler handles agent lifecycle events.
type LifecycleEventHandler func(LifecycleEvent)

// validTransitions defines the allowed status transitions.
var validTransitions = map[models.AgentStatus]map[models.AgentStatus]bool{
	models.AgentStatusLaunched: {
		models.AgentStatusRunning:   true,
		models.AgentStatusCompleted: true,
		models.AgentStatusError:     true,
	},
	models.AgentStatusRunning: {
		models.AgentStatusCompleted: true,
		models.AgentStatusError:     true,
	},
	// Terminal states.
	models.AgentStatusCompleted: {},
	models.AgentStatusError:     {},
}

// CanTransition checks whether a status transition is valid.
func CanTransition(from, to models.AgentStatus) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Manager tracks agent state. The orchestration loop is the only component
// that mutates agent status; everything else observes through events.
type Manager struct {
	mu       sync.RWMutex
	agents   map[string]*models.Agent
	handlers []LifecycleEventHandler
}

// NewManager creates a new agent lifecycle manager.
func NewManager() *Manager {
	return &Manager{agents: make(map[string]*models.Agent)}
}

// OnEvent registers a handler called for every lifecycle event.
func (m *Manager) OnEvent(handler LifecycleEventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Create registers an agent with a generated ID in the launched state.
func (m *Manager) Create(role models.AgentRole, taskOrdinal int, workdir string) (*models.Agent, error) {
	return m.CreateWithID(uuid.New().String(), role, taskOrdinal, workdir)
}

// CreateWithID registers an agent with an explicit ID in the launched state.
func (m *Manager) CreateWithID(id string, role models.AgentRole, taskOrdinal int, workdir string) (*models.Agent, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	m.mu.Lock()
	if _, exists := m.agents[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("agent %s: %w", id, ErrAgentAlreadyExists)
	}
	a := &models.Agent{
		ID:          id,
		Role:        role,
		TaskOrdinal: taskOrdinal,
		Status:      models.AgentStatusLaunched,
		Workdir:     workdir,
		StartedAt:   time.Now(),
	}
	m.agents[id] = a
	handlers := append([]LifecycleEventHandler(nil), m.handlers...)
	m.mu.Unlock()

	emit(handlers, LifecycleEvent{
		AgentID:     id,
		Role:        role,
		TaskOrdinal: taskOrdinal,
		ToStatus:    models.AgentStatusLaunched,
		Timestamp:   a.StartedAt,
	})
	return a, nil
}

// Transition moves an agent to a new status, enforcing the transition
// table. Terminal statuses stamp FinishedAt.
func (m *Manager) Transition(id string, to models.AgentStatus) error {
	m.mu.Lock()
	a, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	from := a.Status
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("agent %s: %s -> %s: %w", id, from, to, ErrInvalidTransition)
	}
	a.Status = to
	now := time.Now()
	if to.Terminal() {
		a.FinishedAt = &now
	}
	handlers := append([]LifecycleEventHandler(nil), m.handlers...)
	role, ordinal := a.Role, a.TaskOrdinal
	m.mu.Unlock()

	emit(handlers, LifecycleEvent{
		AgentID:     id,
		Role:        role,
		TaskOrdinal: ordinal,
		FromStatus:  from,
		ToStatus:    to,
		Timestamp:   now,
	})
	return nil
}

// Get returns the agent with the given ID.
func (m *Manager) Get(id string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	return a, nil
}

// List returns all registered agents.
func (m *Manager) List() []*models.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out
}

// Active returns agents that have not reached a terminal status.
func (m *Manager) Active() []*models.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Agent
	for _, a := range m.agents {
		if !a.Status.Terminal() {
			out = append(out, a)
		}
	}
	return out
}

func emit(handlers []LifecycleEventHandler, event LifecycleEvent) {
	for _, h := range handlers {
		h(event)
	}
}
