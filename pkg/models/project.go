package models

import "time"

// Project is a unit of work rooted at a version-controlled directory.
// Tasks are ordered by ordinal; all agent activity for the project stays
// inside the root directory's tree.
type Project struct {
	// ID is the unique identifier for this project.
	ID string `json:"id"`
	// Name is the human-readable project name.
	Name string `json:"name"`
	// Description states the goal handed to the coordinator agent.
	Description string `json:"description,omitempty"`
	// Root is the absolute path to the project's repository.
	Root string `json:"root"`
	// Tasks is the accepted plan, ordered by ordinal.
	Tasks []*Task `json:"tasks,omitempty"`
	// CreatedAt is when the project was created by the operator.
	CreatedAt time.Time `json:"created_at"`
}

// Task returns the task with the given ordinal, or nil if none exists.
func (p *Project) Task(ordinal int) *Task {
	for _, t := range p.Tasks {
		if t.Ordinal == ordinal {
			return t
		}
	}
	return nil
}
