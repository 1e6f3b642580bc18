package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archos-hq/archos/pkg/feed"
)

// MemTable is an in-memory [Table] with the same observable semantics as the
// PostgreSQL one: server-assigned UUIDs, server-side timestamps, partial
// patches, and post-commit change events through an optional publisher.
// Rows are held as JSON documents so that patch application and filtering
// work for any entity type whose db columns match its json tags.
//
// It backs the offline mode of archosd and most tests.
type MemTable[T Entity] struct {
	table string
	now   func() time.Time
	newID func() string
	pub   feed.Publisher

	mu    sync.Mutex
	rows  map[string]map[string]any
	order []string
}

// MemOption configures a [MemTable].
type MemOption func(*memOptions)

type memOptions struct {
	now   func() time.Time
	newID func() string
	pub   feed.Publisher
}

// WithClock overrides the timestamp source. Used in tests.
func WithClock(now func() time.Time) MemOption {
	return func(o *memOptions) { o.now = now }
}

// WithIDFunc overrides the ID generator. Used in tests.
func WithIDFunc(newID func() string) MemOption {
	return func(o *memOptions) { o.newID = newID }
}

// WithPublisher announces every committed mutation on pub, mirroring the
// database trigger of the PostgreSQL backend.
func WithPublisher(pub feed.Publisher) MemOption {
	return func(o *memOptions) { o.pub = pub }
}

// NewMemTable creates an empty in-memory table for the named resource.
func NewMemTable[T Entity](table string, opts ...MemOption) *MemTable[T] {
	o := memOptions{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemTable[T]{
		table: table,
		now:   o.now,
		newID: o.newID,
		pub:   o.pub,
		rows:  make(map[string]map[string]any),
	}
}

// SelectAll implements [Table]. Rows are returned in insertion order; the
// collection applies its own sort.
func (t *MemTable[T]) SelectAll(_ context.Context, filter Filter) ([]T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []T
	for _, id := range t.order {
		doc := t.rows[id]
		if !matches(doc, filter) {
			continue
		}
		row, err := fromDoc[T](doc)
		if err != nil {
			return nil, fmt.Errorf("memtable %s: decode row %q: %w", t.table, id, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// Insert implements [Table].
func (t *MemTable[T]) Insert(ctx context.Context, row T) (T, error) {
	var zero T
	doc, err := toDoc(row)
	if err != nil {
		return zero, fmt.Errorf("memtable %s: encode row: %w", t.table, err)
	}

	id, _ := doc["id"].(string)
	if id == "" {
		id = t.newID()
		doc["id"] = id
	}
	now := t.now().UTC().Format(time.RFC3339Nano)
	if hasZeroTime(doc, "created_at") {
		doc["created_at"] = now
	}
	if hasZeroTime(doc, "updated_at") {
		doc["updated_at"] = now
	}

	// Snapshot the row before the doc becomes visible to concurrent patches.
	raw, err := json.Marshal(doc)
	if err != nil {
		return zero, fmt.Errorf("memtable %s: encode row %q: %w", t.table, id, err)
	}
	var created T
	if err := json.Unmarshal(raw, &created); err != nil {
		return zero, fmt.Errorf("memtable %s: decode row %q: %w", t.table, id, err)
	}

	t.mu.Lock()
	if _, exists := t.rows[id]; exists {
		t.mu.Unlock()
		return zero, &ValidationError{Table: t.table, Reason: fmt.Sprintf("row %q already exists", id)}
	}
	t.rows[id] = doc
	t.order = append(t.order, id)
	t.mu.Unlock()

	t.publish(ctx, feed.OpInsert, id, raw)
	return created, nil
}

// Update implements [Table]. The id and created_at columns are immutable.
func (t *MemTable[T]) Update(ctx context.Context, id string, patch Patch) (T, error) {
	var zero T
	for k := range patch {
		if k == "id" || k == "created_at" {
			return zero, &ValidationError{Table: t.table, Reason: fmt.Sprintf("column %q is immutable", k)}
		}
	}

	t.mu.Lock()
	doc, ok := t.rows[id]
	if !ok {
		t.mu.Unlock()
		return zero, &NotFoundError{Table: t.table, ID: id}
	}
	for k, v := range patch {
		nv, err := normalize(v)
		if err != nil {
			t.mu.Unlock()
			return zero, &ValidationError{Table: t.table, Reason: fmt.Sprintf("column %q", k), Err: err}
		}
		doc[k] = nv
	}
	if _, ok := doc["updated_at"]; ok {
		doc["updated_at"] = t.now().UTC().Format(time.RFC3339Nano)
	}
	// Snapshot under the lock: a concurrent patch to the same row must not
	// race the encode.
	raw, err := json.Marshal(doc)
	t.mu.Unlock()
	if err != nil {
		return zero, fmt.Errorf("memtable %s: encode row %q: %w", t.table, id, err)
	}

	var updated T
	if err := json.Unmarshal(raw, &updated); err != nil {
		return zero, fmt.Errorf("memtable %s: decode row %q: %w", t.table, id, err)
	}
	t.publish(ctx, feed.OpUpdate, id, raw)
	return updated, nil
}

// Delete implements [Table].
func (t *MemTable[T]) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	if _, ok := t.rows[id]; !ok {
		t.mu.Unlock()
		return &NotFoundError{Table: t.table, ID: id}
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.mu.Unlock()

	t.publish(ctx, feed.OpDelete, id, nil)
	return nil
}

// Len returns the number of stored rows.
func (t *MemTable[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

func (t *MemTable[T]) publish(ctx context.Context, op feed.Op, id string, raw json.RawMessage) {
	if t.pub == nil {
		return
	}
	// Best effort, like the database trigger: a failed notification is
	// recovered by the next refetch.
	_ = t.pub.Publish(ctx, feed.Event{Table: t.table, Op: op, ID: id, Row: raw})
}

// ── document helpers ─────────────────────────────────────────────────────────

func toDoc[T any](row T) (map[string]any, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDoc[T any](doc map[string]any) (T, error) {
	var row T
	b, err := json.Marshal(doc)
	if err != nil {
		return row, err
	}
	err = json.Unmarshal(b, &row)
	return row, err
}

// normalize round-trips v through JSON so that patch values compare and
// store identically to decoded row values.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(doc map[string]any, filter Filter) bool {
	for k, want := range filter {
		nw, err := normalize(want)
		if err != nil {
			return false
		}
		if !reflect.DeepEqual(doc[k], nw) {
			return false
		}
	}
	return true
}

// hasZeroTime reports whether doc has the named timestamp column and it is
// still the zero value (unset by the caller).
func hasZeroTime(doc map[string]any, key string) bool {
	v, ok := doc[key]
	if !ok {
		return false
	}
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return s == "" || strings.HasPrefix(s, "0001-01-01T")
}
