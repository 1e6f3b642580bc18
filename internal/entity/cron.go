package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableCron holds the assistant's scheduled commands.
const TableCron = "bot_cron"

// CronJob is one scheduled command. Execution happens in the assistant
// runtime; this service only stores and syncs the definitions.
type CronJob struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description"`
	Schedule    string     `db:"schedule" json:"schedule"`
	Command     string     `db:"command" json:"command"`
	Enabled     bool       `db:"enabled" json:"enabled"`
	LastRun     *time.Time `db:"last_run" json:"last_run"`
	NextRun     *time.Time `db:"next_run" json:"next_run"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func (j CronJob) EntityID() string { return j.ID }

// ValidateCronJob rejects jobs without a name, command, or well-formed
// schedule.
func ValidateCronJob(j CronJob) error {
	var errs []error
	if j.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if j.Command == "" {
		errs = append(errs, errors.New("command is required"))
	}
	if err := ValidateSchedule(j.Schedule); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return &resource.ValidationError{Table: TableCron, Reason: "cron job", Err: err}
	}
	return nil
}

// ValidateSchedule checks the five-field cron expression shape
// (minute hour day-of-month month day-of-week). It does not evaluate the
// expression; the assistant runtime owns execution semantics.
func ValidateSchedule(schedule string) error {
	fields := strings.Fields(schedule)
	if len(fields) != 5 {
		return fmt.Errorf("schedule %q must have 5 fields, has %d", schedule, len(fields))
	}
	for i, f := range fields {
		for _, r := range f {
			switch {
			case r >= '0' && r <= '9':
			case r == '*' || r == ',' || r == '-' || r == '/':
			default:
				return fmt.Errorf("schedule field %d contains %q", i+1, r)
			}
		}
	}
	return nil
}

// CronLess sorts by schedule string, grouping similar cadences together.
func CronLess(a, b CronJob) bool {
	if a.Schedule != b.Schedule {
		return a.Schedule < b.Schedule
	}
	return a.Name < b.Name
}
