// Package feed models the change-notification channel that keeps resource
// collections in sync with the backing database.
//
// A [Feed] delivers an [Event] for every committed insert, update, or delete
// on a subscribed table. Events carry the affected row's post-image when the
// transport supports it; subscribers must treat a missing post-image as a
// signal to refetch. Delivery is best effort: a slow subscriber may miss
// events, and consumers recover by reloading from the database.
//
// Three drivers exist: [Bus] (in-process, used with the in-memory table and
// in tests), [github.com/archos-hq/archos/pkg/feed/pglisten] (PostgreSQL
// LISTEN/NOTIFY), and [github.com/archos-hq/archos/pkg/feed/redisfeed]
// (Redis pub/sub).
package feed

import (
	"context"
	"encoding/json"
)

// Op is the kind of row change an [Event] describes.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// IsValid reports whether o is a recognised operation.
func (o Op) IsValid() bool {
	switch o {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Event is a single committed change to one row of one table.
type Event struct {
	// Table is the database table the change was committed to.
	Table string `json:"table"`

	// Op is the kind of change.
	Op Op `json:"op"`

	// ID is the primary key of the affected row. It may be empty for
	// synthetic resync events emitted after a transport reconnect, in which
	// case subscribers should refetch the whole table.
	ID string `json:"id"`

	// Row is the JSON post-image of the affected row, if the transport could
	// deliver it. Nil for deletes, for oversized rows, and for resync events.
	Row json.RawMessage `json:"row,omitempty"`
}

// Feed is a source of change events. Implementations must be safe for
// concurrent use.
type Feed interface {
	// Subscribe opens a subscription for all events on the named table.
	// The returned subscription must be closed when the consumer's lifetime
	// ends; an unclosed subscription leaks a listener.
	Subscribe(table string) (*Subscription, error)
}

// Publisher is implemented by drivers that need mutations to be announced
// explicitly after commit (the Redis driver, the in-process bus). The
// PostgreSQL driver does not need one: triggers announce changes server-side.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Runner is implemented by drivers that own a background receive loop.
type Runner interface {
	// Run blocks consuming the transport until ctx is cancelled.
	Run(ctx context.Context) error
}
