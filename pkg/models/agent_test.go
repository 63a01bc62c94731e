package models

import "testing"

func TestAgentRoleValid(t *testing.T) {
	for _, r := range []AgentRole{RoleCoordinator, RoleWorker, RoleMerger} {
		if !r.Valid() {
			t.Errorf("Valid() = false for %q, want true", r)
		}
	}
	if AgentRole("reviewer").Valid() {
		t.Error("Valid() = true for unknown role, want false")
	}
}

func TestAgentStatusTerminal(t *testing.T) {
	tests := []struct {
		status AgentStatus
		want   bool
	}{
		{AgentStatusLaunched, false},
		{AgentStatusRunning, false},
		{AgentStatusCompleted, true},
		{AgentStatusError, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal() for %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}
