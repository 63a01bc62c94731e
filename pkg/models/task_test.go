package models

import "testing"

func TestTaskStatusValid(t *testing.T) {
	valid := []TaskStatus{
		TaskStatusPending,
		TaskStatusReady,
		TaskStatusDispatched,
		TaskStatusDone,
		TaskStatusFailed,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("Valid() = false for %q, want true", s)
		}
	}

	invalid := []TaskStatus{"", "unknown", "Done", "PENDING"}
	for _, s := range invalid {
		if s.Valid() {
			t.Errorf("Valid() = true for %q, want false", s)
		}
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusPending, false},
		{TaskStatusReady, false},
		{TaskStatusDispatched, false},
		{TaskStatusDone, true},
		{TaskStatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal() for %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestProjectTask(t *testing.T) {
	p := &Project{
		Tasks: []*Task{
			{Ordinal: 1, Title: "Setup"},
			{Ordinal: 2, Title: "Build"},
		},
	}

	if got := p.Task(2); got == nil || got.Title != "Build" {
		t.Errorf("Task(2) = %v, want Build", got)
	}
	if got := p.Task(3); got != nil {
		t.Errorf("Task(3) = %v, want nil", got)
	}
}
