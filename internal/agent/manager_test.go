package agent

import (
	"errors"
	"testing"

	"github.com/cbhooper/foreman/pkg/models"
)

func TestCreateStartsLaunched(t *testing.T) {
	m := NewManager()

	a, err := m.Create(models.RoleWorker, 3, "/work/dir")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a.Status != models.AgentStatusLaunched {
		t.Errorf("Status = %q, want launched", a.Status)
	}
	if a.TaskOrdinal != 3 {
		t.Errorf("TaskOrdinal = %d, want 3", a.TaskOrdinal)
	}
	if a.ID == "" {
		t.Error("ID is empty")
	}
}

func TestCreateRejectsInvalidRole(t *testing.T) {
	m := NewManager()
	if _, err := m.Create(models.AgentRole("reviewer"), 0, ""); err == nil {
		t.Error("Create() with invalid role succeeded, want error")
	}
}

func TestCreateWithDuplicateID(t *testing.T) {
	m := NewManager()
	if _, err := m.CreateWithID("a1", models.RoleCoordinator, 0, ""); err != nil {
		t.Fatal(err)
	}
	_, err := m.CreateWithID("a1", models.RoleCoordinator, 0, "")
	if !errors.Is(err, ErrAgentAlreadyExists) {
		t.Errorf("error = %v, want ErrAgentAlreadyExists", err)
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to models.AgentStatus
		want     bool
	}{
		{models.AgentStatusLaunched, models.AgentStatusRunning, true},
		{models.AgentStatusLaunched, models.AgentStatusCompleted, true},
		{models.AgentStatusLaunched, models.AgentStatusError, true},
		{models.AgentStatusRunning, models.AgentStatusCompleted, true},
		{models.AgentStatusRunning, models.AgentStatusError, true},
		{models.AgentStatusRunning, models.AgentStatusLaunched, false},
		{models.AgentStatusCompleted, models.AgentStatusRunning, false},
		{models.AgentStatusError, models.AgentStatusRunning, false},
		{models.AgentStatusCompleted, models.AgentStatusError, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionEnforced(t *testing.T) {
	m := NewManager()
	a, _ := m.CreateWithID("a1", models.RoleWorker, 1, "")

	if err := m.Transition("a1", models.AgentStatusRunning); err != nil {
		t.Fatalf("Transition to running error = %v", err)
	}
	if err := m.Transition("a1", models.AgentStatusCompleted); err != nil {
		t.Fatalf("Transition to completed error = %v", err)
	}
	if a.FinishedAt == nil {
		t.Error("FinishedAt not stamped on terminal status")
	}

	err := m.Transition("a1", models.AgentStatusRunning)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}

	err = m.Transition("missing", models.AgentStatusRunning)
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("error = %v, want ErrAgentNotFound", err)
	}
}

func TestLifecycleEventsEmitted(t *testing.T) {
	m := NewManager()

	var events []LifecycleEvent
	m.OnEvent(func(e LifecycleEvent) { events = append(events, e) })

	m.CreateWithID("a1", models.RoleWorker, 2, "")
	m.Transition("a1", models.AgentStatusRunning)
	m.Transition("a1", models.AgentStatusError)

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].ToStatus != models.AgentStatusLaunched {
		t.Errorf("first event ToStatus = %q, want launched", events[0].ToStatus)
	}
	if events[2].FromStatus != models.AgentStatusRunning || events[2].ToStatus != models.AgentStatusError {
		t.Errorf("last event = %s -> %s, want running -> error", events[2].FromStatus, events[2].ToStatus)
	}
}

func TestActiveExcludesTerminal(t *testing.T) {
	m := NewManager()
	m.CreateWithID("a1", models.RoleWorker, 1, "")
	m.CreateWithID("a2", models.RoleWorker, 2, "")
	m.Transition("a1", models.AgentStatusError)

	active := m.Active()
	if len(active) != 1 || active[0].ID != "a2" {
		t.Errorf("Active() = %v, want just a2", active)
	}
}
