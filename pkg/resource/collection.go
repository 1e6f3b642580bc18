package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/archos-hq/archos/pkg/feed"
)

// ErrClosed is returned by operations on a collection after Close.
var ErrClosed = errors.New("resource: collection closed")

// Options configures a [Collection]. Table and Name are required; everything
// else is optional.
type Options[T Entity] struct {
	// Table is the persistence backend.
	Table Table[T]

	// Name is the backend table name, used to scope feed subscriptions.
	Name string

	// Feed is the change-notification source. When nil the collection only
	// reflects local mutations and explicit loads.
	Feed feed.Feed

	// Filter constrains every load to rows matching these equality
	// predicates. Collections with a non-empty filter always refetch on
	// change events instead of merging the notification post-image, since
	// the post-image alone cannot be tested against server-side joins.
	Filter Filter

	// Less defines the collection's sort order. When nil the backend's
	// order is kept and merged rows are appended.
	Less func(a, b T) bool

	// Defaults fills caller-omitted fields before an insert.
	Defaults func(T) T

	// Validate rejects malformed rows before an insert. It should return a
	// [*ValidationError].
	Validate func(T) error

	// Decode unmarshals a feed post-image into an entity. When nil, change
	// events always trigger a full refetch.
	Decode func([]byte) (T, error)

	// Limit caps the snapshot size after loads and merges. Zero means
	// unlimited.
	Limit int

	// Logger receives refetch failures and decode warnings. Defaults to
	// [slog.Default].
	Logger *slog.Logger

	// OnEvent is called for every feed event this collection consumes,
	// before the event is applied. Optional; used for instrumentation.
	OnEvent func(table string, op string)
}

// Collection is a synchronized in-memory snapshot of one backend table.
//
// After a successful Load the snapshot always reflects a state the backend
// had at some point; between a remote write and the next notification or
// refetch it may lag, but it never contains two entries with the same ID and
// it is never cleared by a transient failure. All methods are safe for
// concurrent use.
type Collection[T Entity] struct {
	opts Options[T]
	log  *slog.Logger

	mu      sync.Mutex
	items   []T
	loading bool
	loaded  bool
	lastErr error
	closed  bool

	sub      *feed.Subscription
	watchCtx context.Context
	done     chan struct{}

	closeOnce sync.Once
}

// New creates a collection over the given table. It performs no I/O; call
// [Collection.Load] to populate the snapshot and [Collection.Watch] to start
// consuming change events.
func New[T Entity](opts Options[T]) (*Collection[T], error) {
	if opts.Table == nil {
		return nil, fmt.Errorf("resource: options for %q: Table is required", opts.Name)
	}
	if opts.Name == "" {
		return nil, errors.New("resource: options: Name is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Collection[T]{
		opts: opts,
		log:  log.With("resource", opts.Name),
	}, nil
}

// Name returns the backend table name this collection mirrors.
func (c *Collection[T]) Name() string { return c.opts.Name }

// Load performs a full read of the backend table and replaces the snapshot.
// On failure the previous snapshot is left untouched, the error is recorded,
// and the same error is returned; the UI keeps showing stale-but-valid data.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.loading = true
	c.mu.Unlock()

	rows, err := c.opts.Table.SelectAll(ctx, c.opts.Filter)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if c.closed {
		return nil, ErrClosed
	}
	if err != nil {
		c.lastErr = err
		return nil, err
	}

	if c.opts.Less != nil {
		sort.SliceStable(rows, func(i, j int) bool { return c.opts.Less(rows[i], rows[j]) })
	}
	if c.opts.Limit > 0 && len(rows) > c.opts.Limit {
		rows = rows[:c.opts.Limit]
	}
	c.items = rows
	c.loaded = true
	c.lastErr = nil
	return c.snapshotLocked(), nil
}

// Create persists a new entity. Caller-omitted fields are filled by the
// resource's defaults policy, the row is validated, and on success the
// server-assigned row is merged into the snapshot at its sort position.
func (c *Collection[T]) Create(ctx context.Context, row T) (T, error) {
	var zero T
	if c.isClosed() {
		return zero, ErrClosed
	}

	if c.opts.Defaults != nil {
		row = c.opts.Defaults(row)
	}
	if c.opts.Validate != nil {
		if err := c.opts.Validate(row); err != nil {
			return zero, err
		}
	}

	created, err := c.opts.Table.Insert(ctx, row)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.mergeLocked(created)
	}
	return created, nil
}

// Update sends a partial patch and replaces the local entry wholesale with
// the returned row. Replacing rather than field-merging avoids stale-field
// drift when concurrent writers touch disjoint columns. A [NotFoundError]
// is returned unchanged and never resurrects a locally deleted entry.
func (c *Collection[T]) Update(ctx context.Context, id string, patch Patch) (T, error) {
	var zero T
	if c.isClosed() {
		return zero, ErrClosed
	}

	updated, err := c.opts.Table.Update(ctx, id, patch)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.mergeLocked(updated)
	}
	return updated, nil
}

// Remove deletes the entity with the given ID. The local entry is removed
// even when the backend reports the row already gone, so a second Remove is
// harmless; callers may surface the returned [NotFoundError] non-fatally or
// ignore it.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	if c.isClosed() {
		return ErrClosed
	}

	err := c.opts.Table.Delete(ctx, id)
	if err != nil && !IsNotFound(err) {
		return err
	}

	c.mu.Lock()
	if !c.closed {
		c.removeLocked(id)
	}
	c.mu.Unlock()
	return err
}

// Watch subscribes to the change feed and keeps the snapshot consistent with
// writes from any source until the collection is closed or ctx is cancelled.
// Events carrying a decodable post-image are merged directly; everything else
// triggers a full refetch. A collection without a feed ignores Watch.
func (c *Collection[T]) Watch(ctx context.Context) error {
	if c.opts.Feed == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.sub != nil {
		c.mu.Unlock()
		return fmt.Errorf("resource: %s: already watching", c.opts.Name)
	}
	sub, err := c.opts.Feed.Subscribe(c.opts.Name)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("resource: %s: subscribe: %w", c.opts.Name, err)
	}
	c.sub = sub
	c.watchCtx = ctx
	c.done = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if c.opts.OnEvent != nil {
					c.opts.OnEvent(ev.Table, string(ev.Op))
				}
				c.handleEvent(ctx, ev)
			}
		}
	}()
	return nil
}

// Close tears the collection down: the feed subscription is released and all
// further operations and notifications become no-ops. Idempotent.
func (c *Collection[T]) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		sub := c.sub
		done := c.done
		c.mu.Unlock()

		if sub != nil {
			sub.Close()
		}
		if done != nil {
			<-done
		}
	})
}

// SetLimit changes the snapshot cap at runtime. Zero means unlimited. The
// current snapshot is trimmed immediately; a later load restores rows when
// the limit grows again.
func (c *Collection[T]) SetLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Limit = n
	if n > 0 && len(c.items) > n {
		c.items = c.items[:n]
	}
}

// Snapshot returns a copy of the current collection contents.
func (c *Collection[T]) Snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Get returns the entity with the given ID, if present.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Len returns the number of entities in the snapshot.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Loading reports whether a load (initial or feed-triggered) is in flight.
func (c *Collection[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Loaded reports whether at least one load has completed successfully.
func (c *Collection[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// LastError returns the most recent load failure, or nil after a successful
// load. Mutation failures are returned to the caller, not recorded here.
func (c *Collection[T]) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ── internals ────────────────────────────────────────────────────────────────

func (c *Collection[T]) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// handleEvent resolves the new snapshot state for one change event. Failures
// here have no caller to report to, so they are logged and recorded in the
// collection's error state per the load-failure policy.
func (c *Collection[T]) handleEvent(ctx context.Context, ev feed.Event) {
	if c.isClosed() {
		return
	}

	if ev.Op == feed.OpDelete {
		c.mu.Lock()
		c.removeLocked(ev.ID)
		c.mu.Unlock()
		return
	}

	// Merge the post-image when it is present and sufficient; a filtered
	// collection cannot judge membership from the row alone and refetches.
	if c.opts.Decode != nil && len(ev.Row) > 0 && ev.ID != "" && len(c.opts.Filter) == 0 {
		row, err := c.opts.Decode(ev.Row)
		if err == nil {
			c.mu.Lock()
			if !c.closed {
				c.mergeLocked(row)
			}
			c.mu.Unlock()
			return
		}
		c.log.Warn("feed post-image decode failed, refetching", "err", err)
	}

	if _, err := c.Load(ctx); err != nil && !errors.Is(err, ErrClosed) {
		c.log.Warn("feed-triggered refetch failed, keeping stale snapshot", "err", err)
	}
}

// mergeLocked inserts row at its sort position, replacing any existing entry
// with the same ID. This is the de-duplication point between optimistic
// mutation results and their own change-feed notifications.
func (c *Collection[T]) mergeLocked(row T) {
	c.removeLocked(row.EntityID())

	if c.opts.Less == nil {
		c.items = append(c.items, row)
	} else {
		i := sort.Search(len(c.items), func(i int) bool {
			return c.opts.Less(row, c.items[i])
		})
		c.items = append(c.items, row)
		copy(c.items[i+1:], c.items[i:])
		c.items[i] = row
	}

	if c.opts.Limit > 0 && len(c.items) > c.opts.Limit {
		c.items = c.items[:c.opts.Limit]
	}
}

func (c *Collection[T]) removeLocked(id string) {
	if id == "" {
		return
	}
	if i := c.indexLocked(id); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

func (c *Collection[T]) indexLocked(id string) int {
	for i, it := range c.items {
		if it.EntityID() == id {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) snapshotLocked() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}
