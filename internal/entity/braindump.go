package entity

import (
	"errors"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableBrainDump holds quick unprocessed capture notes.
const TableBrainDump = "brain_dump"

// BrainDumpNote is one capture note, triaged later into tickets or wiki
// entries and then marked processed.
type BrainDumpNote struct {
	ID        string    `db:"id" json:"id"`
	Content   string    `db:"content" json:"content"`
	Processed bool      `db:"processed" json:"processed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (n BrainDumpNote) EntityID() string { return n.ID }

// ValidateBrainDump rejects empty notes.
func ValidateBrainDump(n BrainDumpNote) error {
	if n.Content == "" {
		return &resource.ValidationError{Table: TableBrainDump, Reason: "note", Err: errors.New("content is required")}
	}
	return nil
}

// BrainDumpLess sorts newest first.
func BrainDumpLess(a, b BrainDumpNote) bool { return a.CreatedAt.After(b.CreatedAt) }

// Unprocessed returns the notes still waiting for triage, in input order.
func Unprocessed(notes []BrainDumpNote) []BrainDumpNote {
	var out []BrainDumpNote
	for _, n := range notes {
		if !n.Processed {
			out = append(out, n)
		}
	}
	return out
}
