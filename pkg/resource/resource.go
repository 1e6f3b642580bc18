// Package resource implements the synchronized collection every ARCHOS
// dashboard surface is built on: an in-memory snapshot of one database table
// that is loaded once, mutated through create/update/delete calls, and kept
// consistent with concurrent server-side writes through a change feed.
//
// The package is generic over the entity type. Persistence is abstracted
// behind [Table]; change notifications behind [feed.Feed]. The concrete
// PostgreSQL table lives in internal/store, and [MemTable] provides an
// in-memory implementation for offline use and tests.
package resource

import (
	"context"
)

// Entity is one row of a resource table. Identity is by ID: two entities
// with the same ID are the same row at different points in time.
type Entity interface {
	EntityID() string
}

// Patch is a partial update: column name to new value. Only the named
// columns are written; the backend returns the full updated row.
type Patch map[string]any

// Filter is a conjunction of equality predicates, column name to required
// value. A nil or empty filter matches every row.
type Filter map[string]any

// Table is the persistence contract a [Collection] runs over. Implementations
// must be safe for concurrent use.
type Table[T Entity] interface {
	// SelectAll reads every row matching filter, in the table's configured
	// order.
	SelectAll(ctx context.Context, filter Filter) ([]T, error)

	// Insert persists a new row and returns it with server-assigned ID and
	// timestamps filled in.
	Insert(ctx context.Context, row T) (T, error)

	// Update applies a partial patch to the row with the given ID and
	// returns the full updated row. Returns a [NotFoundError] if no such
	// row exists.
	Update(ctx context.Context, id string, patch Patch) (T, error)

	// Delete removes the row with the given ID. Returns a [NotFoundError]
	// if no such row exists.
	Delete(ctx context.Context, id string) error
}
