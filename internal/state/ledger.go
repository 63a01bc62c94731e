package state

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cbhooper/foreman/pkg/models"
)

// MergeRecord is one resolved branch integration.
type MergeRecord struct {
	Branch      string    `json:"branch"`
	TaskOrdinal int       `json:"task_ordinal"`
	Outcome     string    `json:"outcome"`
	Details     string    `json:"details,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// SaveProject upserts a project row.
func (db *DB) SaveProject(p *models.Project) error {
	_, err := db.Exec(`
		INSERT INTO projects (id, name, description, root, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			description = excluded.description, root = excluded.root
	`, p.ID, p.Name, p.Description, p.Root, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID, or nil if absent.
func (db *DB) GetProject(id string) (*models.Project, error) {
	row := db.QueryRow(`
		SELECT id, name, description, root, created_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

// LatestProject returns the most recently created project, or nil.
func (db *DB) LatestProject() (*models.Project, error) {
	row := db.QueryRow(`
		SELECT id, name, description, root, created_at
		FROM projects ORDER BY created_at DESC LIMIT 1
	`)
	return scanProject(row)
}

func scanProject(row *sql.Row) (*models.Project, error) {
	var p models.Project
	var createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Root, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	p.CreatedAt, _ = parseTime(createdAt)
	return &p, nil
}

// SaveTask upserts a task row.
func (db *DB) SaveTask(projectID string, t *models.Task) error {
	_, err := db.Exec(`
		INSERT INTO tasks (project_id, ordinal, title, description, depends_on,
			status, assigned_to, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, ordinal) DO UPDATE SET
			title = excluded.title, description = excluded.description,
			depends_on = excluded.depends_on, status = excluded.status,
			assigned_to = excluded.assigned_to, error = excluded.error,
			completed_at = excluded.completed_at
	`, projectID, t.Ordinal, t.Title, t.Description, encodeDeps(t.DependsOn),
		string(t.Status), t.AssignedTo, t.Error, formatTime(t.CreatedAt),
		formatNullableTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("save task %d: %w", t.Ordinal, err)
	}
	return nil
}

// ListTasks returns a project's tasks in ordinal order.
func (db *DB) ListTasks(projectID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT ordinal, title, description, depends_on, status, assigned_to,
			error, created_at, completed_at
		FROM tasks WHERE project_id = ? ORDER BY ordinal
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		var deps, createdAt string
		var completedAt sql.NullString
		if err := rows.Scan(&t.Ordinal, &t.Title, &t.Description, &deps,
			&t.Status, &t.AssignedTo, &t.Error, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.DependsOn = decodeDeps(deps)
		t.CreatedAt, _ = parseTime(createdAt)
		t.CompletedAt = parseNullableTime(completedAt)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// SaveAgent upserts an agent row.
func (db *DB) SaveAgent(projectID string, a *models.Agent) error {
	_, err := db.Exec(`
		INSERT INTO agents (id, project_id, role, task_ordinal, status,
			workdir, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status,
			finished_at = excluded.finished_at
	`, a.ID, projectID, string(a.Role), a.TaskOrdinal, string(a.Status),
		a.Workdir, formatTime(a.StartedAt), formatNullableTime(a.FinishedAt))
	if err != nil {
		return fmt.Errorf("save agent %s: %w", a.ID, err)
	}
	return nil
}

// ListAgents returns a project's agents in start order.
func (db *DB) ListAgents(projectID string) ([]*models.Agent, error) {
	rows, err := db.Query(`
		SELECT id, role, task_ordinal, status, workdir, started_at, finished_at
		FROM agents WHERE project_id = ? ORDER BY started_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		var a models.Agent
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.Role, &a.TaskOrdinal, &a.Status,
			&a.Workdir, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.StartedAt, _ = parseTime(startedAt)
		a.FinishedAt = parseNullableTime(finishedAt)
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}

// SaveMerge records a resolved merge.
func (db *DB) SaveMerge(projectID, branch string, taskOrdinal int, outcome, details string) error {
	_, err := db.Exec(`
		INSERT INTO merges (project_id, branch, task_ordinal, outcome, details, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, projectID, branch, taskOrdinal, outcome, details, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save merge %s: %w", branch, err)
	}
	return nil
}

// ListMerges returns a project's merges in resolution order.
func (db *DB) ListMerges(projectID string) ([]*MergeRecord, error) {
	rows, err := db.Query(`
		SELECT branch, task_ordinal, outcome, details, resolved_at
		FROM merges WHERE project_id = ? ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list merges: %w", err)
	}
	defer rows.Close()

	var merges []*MergeRecord
	for rows.Next() {
		var m MergeRecord
		var resolvedAt string
		if err := rows.Scan(&m.Branch, &m.TaskOrdinal, &m.Outcome, &m.Details, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan merge: %w", err)
		}
		m.ResolvedAt, _ = parseTime(resolvedAt)
		merges = append(merges, &m)
	}
	return merges, rows.Err()
}

// encodeDeps packs dependency ordinals into a comma-separated string.
func encodeDeps(deps []int) string {
	if len(deps) == 0 {
		return ""
	}
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// decodeDeps unpacks a comma-separated dependency string.
func decodeDeps(s string) []int {
	if s == "" {
		return nil
	}
	var deps []int
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(part); err == nil {
			deps = append(deps, n)
		}
	}
	return deps
}
