package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableProjects holds client engagements.
const TableProjects = "projects"

// ProjectStatus is a project lifecycle stage.
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectPaused    ProjectStatus = "paused"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

// DefaultCurrency is assumed when a project budget names none.
const DefaultCurrency = "USD"

// Project is one client engagement.
type Project struct {
	ID          string        `db:"id" json:"id"`
	ClientID    string        `db:"client_id" json:"client_id"`
	Name        string        `db:"name" json:"name"`
	Description *string       `db:"description" json:"description"`
	Status      ProjectStatus `db:"status" json:"status"`
	Budget      *float64      `db:"budget" json:"budget"`
	Currency    string        `db:"currency" json:"currency"`
	Deadline    *time.Time    `db:"deadline" json:"deadline"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

func (p Project) EntityID() string { return p.ID }

// ProjectDefaults starts new projects in planning.
func ProjectDefaults(p Project) Project {
	if p.Status == "" {
		p.Status = ProjectPlanning
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	return p
}

// ValidateProject rejects projects without a name or owning client.
func ValidateProject(p Project) error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p.ClientID == "" {
		errs = append(errs, errors.New("client_id is required"))
	}
	switch p.Status {
	case ProjectPlanning, ProjectActive, ProjectPaused, ProjectCompleted, ProjectCancelled:
	default:
		errs = append(errs, fmt.Errorf("unknown status %q", p.Status))
	}
	if err := errors.Join(errs...); err != nil {
		return &resource.ValidationError{Table: TableProjects, Reason: "project", Err: err}
	}
	return nil
}

// ProjectLess sorts newest first.
func ProjectLess(a, b Project) bool { return a.CreatedAt.After(b.CreatedAt) }
