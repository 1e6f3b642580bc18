package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/archos-hq/archos/pkg/feed"
	"github.com/archos-hq/archos/pkg/resource"
)

// Spec binds the generic [Table] to one resource.
type Spec[T resource.Entity] struct {
	// Table is the SQL table name.
	Table string

	// Columns maps an entity to its insertable column values. Server-managed
	// columns (id, created_at, updated_at) are excluded; the database fills
	// them and RETURNING reads them back.
	Columns func(T) map[string]any

	// HasUpdatedAt makes every update bump the updated_at column.
	HasUpdatedAt bool
}

// Table is a [resource.Table] backed by PostgreSQL. Row decoding relies on
// the entity's db struct tags matching the column names.
type Table[T resource.Entity] struct {
	db   DB
	spec Spec[T]
	pub  feed.Publisher
	log  *slog.Logger
}

// TableOption configures a [Table].
type TableOption[T resource.Entity] func(*Table[T])

// WithPublisher announces every committed mutation on pub. Used with the
// Redis feed driver; the Postgres driver gets its events from the schema
// triggers instead.
func WithPublisher[T resource.Entity](pub feed.Publisher) TableOption[T] {
	return func(t *Table[T]) { t.pub = pub }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger[T resource.Entity](log *slog.Logger) TableOption[T] {
	return func(t *Table[T]) { t.log = log }
}

// NewTable creates a table for one resource.
func NewTable[T resource.Entity](db DB, spec Spec[T], opts ...TableOption[T]) *Table[T] {
	t := &Table[T]{db: db, spec: spec, log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SelectAll implements [resource.Table]. Filter keys become equality
// predicates; ordering is left to the collection's sort.
func (t *Table[T]) SelectAll(ctx context.Context, filter resource.Filter) ([]T, error) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(pgx.Identifier{t.spec.Table}.Sanitize())

	args := make([]any, 0, len(filter))
	for i, k := range sortedKeys(filter) {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "%s = $%d", pgx.Identifier{k}.Sanitize(), i+1)
		args = append(args, filter[k])
	}

	rows, err := t.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, t.wrapErr("select", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, t.wrapErr("select", err)
	}
	return out, nil
}

// Insert implements [resource.Table]. The returned entity carries the
// server-assigned id and timestamps.
func (t *Table[T]) Insert(ctx context.Context, row T) (T, error) {
	var zero T

	cols := t.spec.Columns(row)
	if id := row.EntityID(); id != "" {
		cols["id"] = id
	}
	keys := sortedKeys(cols)

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(pgx.Identifier{t.spec.Table}.Sanitize())
	sb.WriteString(" (")
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(pgx.Identifier{k}.Sanitize())
		args = append(args, cols[k])
	}
	sb.WriteString(") VALUES (")
	for i := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "$%d", i+1)
	}
	sb.WriteString(") RETURNING *")

	rows, err := t.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return zero, t.wrapErr("insert", err)
	}
	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		return zero, t.wrapErr("insert", err)
	}
	t.publish(ctx, feed.OpInsert, created.EntityID(), created)
	return created, nil
}

// Update implements [resource.Table]. The patch applies only the named
// columns; id and created_at are immutable.
func (t *Table[T]) Update(ctx context.Context, id string, patch resource.Patch) (T, error) {
	var zero T

	if len(patch) == 0 {
		return zero, &resource.ValidationError{Table: t.spec.Table, Reason: "empty patch"}
	}
	for _, k := range []string{"id", "created_at"} {
		if _, ok := patch[k]; ok {
			return zero, &resource.ValidationError{Table: t.spec.Table, Reason: fmt.Sprintf("column %s is immutable", k)}
		}
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(pgx.Identifier{t.spec.Table}.Sanitize())
	sb.WriteString(" SET ")
	args := []any{id}
	for i, k := range sortedKeys(patch) {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = $%d", pgx.Identifier{k}.Sanitize(), i+2)
		args = append(args, patch[k])
	}
	if t.spec.HasUpdatedAt {
		sb.WriteString(", updated_at = now()")
	}
	sb.WriteString(" WHERE id = $1 RETURNING *")

	rows, err := t.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return zero, t.wrapErr("update", err)
	}
	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, &resource.NotFoundError{Table: t.spec.Table, ID: id}
		}
		return zero, t.wrapErr("update", err)
	}
	t.publish(ctx, feed.OpUpdate, id, updated)
	return updated, nil
}

// Delete implements [resource.Table]. Deleting an absent row returns a
// [resource.NotFoundError].
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	sql := "DELETE FROM " + pgx.Identifier{t.spec.Table}.Sanitize() + " WHERE id = $1"
	tag, err := t.db.Exec(ctx, sql, id)
	if err != nil {
		return t.wrapErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return &resource.NotFoundError{Table: t.spec.Table, ID: id}
	}
	t.publish(ctx, feed.OpDelete, id, nil)
	return nil
}

// publish announces a committed mutation when a publisher is configured.
// Failures are logged, not returned: the database write already succeeded
// and subscribers recover via refetch.
func (t *Table[T]) publish(ctx context.Context, op feed.Op, id string, row any) {
	if t.pub == nil {
		return
	}
	var raw json.RawMessage
	if row != nil {
		b, err := json.Marshal(row)
		if err != nil {
			t.log.Warn("change event encode failed", "table", t.spec.Table, "err", err)
		} else {
			raw = b
		}
	}
	ev := feed.Event{Table: t.spec.Table, Op: op, ID: id, Row: raw}
	if err := t.pub.Publish(ctx, ev); err != nil {
		t.log.Warn("change event publish failed", "table", t.spec.Table, "op", string(op), "err", err)
	}
}

// wrapErr maps database failures onto the resource error taxonomy.
func (t *Table[T]) wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &resource.NotFoundError{Table: t.spec.Table}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// not-null, foreign-key, unique, check, bad input syntax
		case "23502", "23503", "23505", "23514", "22P02":
			return &resource.ValidationError{Table: t.spec.Table, Reason: pgErr.Message, Err: err}
		// insufficient privilege, invalid authorization
		case "42501", "28000", "28P01":
			return &resource.PermissionError{Table: t.spec.Table, Op: op, Err: err}
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return &resource.ConnectivityError{Op: t.spec.Table + " " + op, Err: err}
		}
		return fmt.Errorf("store: %s %s: %w", t.spec.Table, op, err)
	}
	return &resource.ConnectivityError{Op: t.spec.Table + " " + op, Err: err}
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
