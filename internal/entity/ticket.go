package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableTickets is the kanban board's backing table.
const TableTickets = "tickets"

// TicketStatus is a kanban column.
type TicketStatus string

const (
	TicketBacklog TicketStatus = "backlog"
	TicketActive  TicketStatus = "active"
	TicketReview  TicketStatus = "review"
	TicketDone    TicketStatus = "done"
)

// TicketPriority orders tickets within a column.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// AgentMode controls how much of a ticket the assistant may work on without
// being asked.
type AgentMode string

const (
	ModeManual     AgentMode = "manual"
	ModeAssisted   AgentMode = "assisted"
	ModeAutonomous AgentMode = "autonomous"
)

// TicketSource records which channel a ticket arrived through.
type TicketSource string

const (
	SourceInternal TicketSource = "internal"
	SourceTelegram TicketSource = "telegram"
	SourceEmail    TicketSource = "email"
	SourceWeb      TicketSource = "web"
)

// Ticket is one card on the kanban board.
type Ticket struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description *string        `db:"description" json:"description"`
	Status      TicketStatus   `db:"status" json:"status"`
	AgentMode   AgentMode      `db:"agent_mode" json:"agent_mode"`
	Priority    TicketPriority `db:"priority" json:"priority"`
	Source      TicketSource   `db:"source" json:"source"`
	Assignee    *string        `db:"assignee" json:"assignee"`
	DueDate     *time.Time     `db:"due_date" json:"due_date"`
	ClientID    *string        `db:"client_id" json:"client_id"`
	ProjectID   *string        `db:"project_id" json:"project_id"`
	Context     map[string]any `db:"context" json:"context"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

func (t Ticket) EntityID() string { return t.ID }

// TicketDefaults fills the fields the board omits on create: new cards land
// in the backlog at medium priority, worked manually, created internally.
func TicketDefaults(t Ticket) Ticket {
	if t.Status == "" {
		t.Status = TicketBacklog
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.AgentMode == "" {
		t.AgentMode = ModeManual
	}
	if t.Source == "" {
		t.Source = SourceInternal
	}
	return t
}

// ValidateTicket rejects tickets with no title or out-of-enum fields.
func ValidateTicket(t Ticket) error {
	var errs []error
	if t.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	switch t.Status {
	case TicketBacklog, TicketActive, TicketReview, TicketDone:
	default:
		errs = append(errs, fmt.Errorf("unknown status %q", t.Status))
	}
	switch t.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
	default:
		errs = append(errs, fmt.Errorf("unknown priority %q", t.Priority))
	}
	switch t.AgentMode {
	case ModeManual, ModeAssisted, ModeAutonomous:
	default:
		errs = append(errs, fmt.Errorf("unknown agent_mode %q", t.AgentMode))
	}
	switch t.Source {
	case SourceInternal, SourceTelegram, SourceEmail, SourceWeb:
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", t.Source))
	}
	if err := errors.Join(errs...); err != nil {
		return &resource.ValidationError{Table: TableTickets, Reason: "ticket", Err: err}
	}
	return nil
}

// TicketLess sorts newest first, the board's column order.
func TicketLess(a, b Ticket) bool { return a.CreatedAt.After(b.CreatedAt) }
