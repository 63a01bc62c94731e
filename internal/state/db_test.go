package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cbhooper/foreman/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	db := openTestDB(t)

	p := &models.Project{
		ID:          "p1",
		Name:        "demo",
		Description: "build the demo",
		Root:        "/tmp/demo",
		CreatedAt:   time.Now(),
	}
	if err := db.SaveProject(p); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.GetProject("p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected project, got nil")
	}
	if got.Name != "demo" || got.Root != "/tmp/demo" {
		t.Errorf("unexpected project: %+v", got)
	}

	// Upsert keeps the row unique.
	p.Name = "renamed"
	if err := db.SaveProject(p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = db.GetProject("p1")
	if got.Name != "renamed" {
		t.Errorf("expected upserted name 'renamed', got %q", got.Name)
	}
}

func TestGetProjectMissing(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetProject("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing project, got %+v", got)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	db := openTestDB(t)

	completed := time.Now().UTC().Truncate(time.Second)
	tasks := []*models.Task{
		{Ordinal: 1, Title: "base", Status: models.TaskStatusDone, CreatedAt: time.Now(), CompletedAt: &completed},
		{Ordinal: 2, Title: "tower", DependsOn: []int{1}, Status: models.TaskStatusPending, CreatedAt: time.Now()},
	}
	for _, task := range tasks {
		if err := db.SaveTask("p1", task); err != nil {
			t.Fatalf("save task %d: %v", task.Ordinal, err)
		}
	}

	got, err := db.ListTasks("p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(got))
	}
	if got[0].Ordinal != 1 || got[1].Ordinal != 2 {
		t.Errorf("tasks out of ordinal order: %d, %d", got[0].Ordinal, got[1].Ordinal)
	}
	if len(got[1].DependsOn) != 1 || got[1].DependsOn[0] != 1 {
		t.Errorf("expected deps [1], got %v", got[1].DependsOn)
	}
	if got[0].CompletedAt == nil || !got[0].CompletedAt.Equal(completed) {
		t.Errorf("expected completed_at %v, got %v", completed, got[0].CompletedAt)
	}
	if got[1].CompletedAt != nil {
		t.Errorf("expected nil completed_at, got %v", got[1].CompletedAt)
	}

	// Status updates replace the existing row.
	tasks[1].Status = models.TaskStatusFailed
	tasks[1].Error = "worker died"
	if err := db.SaveTask("p1", tasks[1]); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = db.ListTasks("p1")
	if got[1].Status != models.TaskStatusFailed || got[1].Error != "worker died" {
		t.Errorf("unexpected updated task: %+v", got[1])
	}
}

func TestAgentRoundTrip(t *testing.T) {
	db := openTestDB(t)

	a := &models.Agent{
		ID:          "a1",
		Role:        models.RoleWorker,
		TaskOrdinal: 3,
		Status:      models.AgentStatusRunning,
		Workdir:     "/tmp/demo/.worktrees/a1",
		StartedAt:   time.Now(),
	}
	if err := db.SaveAgent("p1", a); err != nil {
		t.Fatalf("save: %v", err)
	}

	finished := time.Now().UTC().Truncate(time.Second)
	a.Status = models.AgentStatusCompleted
	a.FinishedAt = &finished
	if err := db.SaveAgent("p1", a); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.ListAgents("p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(got))
	}
	if got[0].Role != models.RoleWorker || got[0].TaskOrdinal != 3 {
		t.Errorf("unexpected agent: %+v", got[0])
	}
	if got[0].Status != models.AgentStatusCompleted {
		t.Errorf("expected completed status, got %s", got[0].Status)
	}
	if got[0].FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
}

func TestMergesKeepResolutionOrder(t *testing.T) {
	db := openTestDB(t)

	if err := db.SaveMerge("p1", "work/aaaa", 1, "success", ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveMerge("p1", "work/bbbb", 2, "conflict", "both edited main.go"); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.ListMerges("p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 merges, got %d", len(got))
	}
	if got[0].Branch != "work/aaaa" || got[1].Branch != "work/bbbb" {
		t.Errorf("merges out of order: %s, %s", got[0].Branch, got[1].Branch)
	}
	if got[1].Outcome != "conflict" || got[1].Details != "both edited main.go" {
		t.Errorf("unexpected conflict record: %+v", got[1])
	}
}

func TestEncodeDecodeDeps(t *testing.T) {
	cases := []struct {
		deps    []int
		encoded string
	}{
		{nil, ""},
		{[]int{1}, "1"},
		{[]int{1, 2, 5}, "1,2,5"},
	}
	for _, tc := range cases {
		if got := encodeDeps(tc.deps); got != tc.encoded {
			t.Errorf("encodeDeps(%v) = %q, want %q", tc.deps, got, tc.encoded)
		}
		decoded := decodeDeps(tc.encoded)
		if len(decoded) != len(tc.deps) {
			t.Errorf("decodeDeps(%q) = %v, want %v", tc.encoded, decoded, tc.deps)
		}
	}
}
