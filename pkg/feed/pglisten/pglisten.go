// Package pglisten implements the change feed over PostgreSQL LISTEN/NOTIFY.
//
// The archos_notify_change trigger (see internal/store.Schema) emits one
// notification per committed row change on a single channel, carrying the
// table name, operation, row ID, and — when it fits under the NOTIFY payload
// limit — the row's JSON post-image. This driver holds a dedicated listen
// connection, decodes payloads into [feed.Event] values, and fans them out
// to per-table subscribers.
//
// The connection is re-established with exponential backoff after any
// failure. Subscribers cannot tell how many notifications were missed while
// disconnected, so every reconnect emits a synthetic resync event per
// subscribed table, forcing a full refetch.
package pglisten

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/archos-hq/archos/pkg/feed"
)

// Compile-time interface checks.
var (
	_ feed.Feed   = (*Feed)(nil)
	_ feed.Runner = (*Feed)(nil)
)

// DefaultChannel is the NOTIFY channel the schema triggers publish on.
const DefaultChannel = "archos_changes"

// Default reconnection parameters.
const (
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Feed is a [feed.Feed] backed by PostgreSQL LISTEN/NOTIFY.
type Feed struct {
	dsn         string
	channel     string
	backoff     time.Duration
	maxBackoff  time.Duration
	log         *slog.Logger
	onReconnect func()

	connected atomic.Bool
	bus       *feed.Bus
}

// Option configures a [Feed].
type Option func(*Feed)

// WithChannel overrides the NOTIFY channel name. Must match the channel the
// schema triggers publish on.
func WithChannel(channel string) Option {
	return func(f *Feed) { f.channel = channel }
}

// WithBackoff overrides the reconnect backoff bounds.
func WithBackoff(initial, max time.Duration) Option {
	return func(f *Feed) { f.backoff, f.maxBackoff = initial, max }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(f *Feed) { f.log = log }
}

// WithOnReconnect registers a callback invoked each time the listen
// connection is re-established after a failure. The initial connect does
// not count. Optional; used for instrumentation.
func WithOnReconnect(fn func()) Option {
	return func(f *Feed) { f.onReconnect = fn }
}

// New creates a LISTEN/NOTIFY feed for the database at dsn. Call
// [Feed.Run] to start the receive loop.
func New(dsn string, opts ...Option) *Feed {
	f := &Feed{
		dsn:        dsn,
		channel:    DefaultChannel,
		backoff:    defaultBackoff,
		maxBackoff: defaultMaxBackoff,
		log:        slog.Default(),
		bus:        feed.NewBus(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Subscribe implements [feed.Feed].
func (f *Feed) Subscribe(table string) (*feed.Subscription, error) {
	return f.bus.Subscribe(table)
}

// Connected reports whether a LISTEN connection is currently established.
func (f *Feed) Connected() bool {
	return f.connected.Load()
}

// Run connects, listens, and dispatches notifications until ctx is
// cancelled. Connection failures are retried with exponential backoff.
func (f *Feed) Run(ctx context.Context) error {
	backoff := f.backoff
	first := true
	for {
		err := f.listen(ctx, func() {
			backoff = f.backoff
			if !first && f.onReconnect != nil {
				f.onReconnect()
			}
			first = false
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("change feed connection lost, reconnecting",
			"channel", f.channel, "backoff", backoff, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, f.maxBackoff)
	}
}

// Close closes all active subscriptions. Call after Run has returned.
func (f *Feed) Close() {
	f.bus.Close()
}

// listen holds one LISTEN connection until it fails or ctx is cancelled.
// onReady is invoked once the subscription is established.
func (f *Feed) listen(ctx context.Context, onReady func()) error {
	conn, err := pgx.Connect(ctx, f.dsn)
	if err != nil {
		return fmt.Errorf("pglisten: connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return fmt.Errorf("pglisten: listen %s: %w", f.channel, err)
	}
	f.connected.Store(true)
	defer f.connected.Store(false)
	onReady()
	f.resync(ctx)

	for {
		notif, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("pglisten: wait: %w", err)
		}
		ev, err := DecodePayload([]byte(notif.Payload))
		if err != nil {
			f.log.Warn("discarding malformed change notification", "err", err)
			continue
		}
		_ = f.bus.Publish(ctx, ev)
	}
}

// resync tells every subscribed table to refetch. Emitted after each
// (re)connect because notifications sent while disconnected are gone.
func (f *Feed) resync(ctx context.Context) {
	for _, table := range f.bus.Tables() {
		_ = f.bus.Publish(ctx, feed.Event{Table: table, Op: feed.OpUpdate})
	}
}

// DecodePayload parses one trigger notification payload into an event.
func DecodePayload(payload []byte) (feed.Event, error) {
	var ev feed.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return feed.Event{}, fmt.Errorf("pglisten: decode payload: %w", err)
	}
	if ev.Table == "" {
		return feed.Event{}, fmt.Errorf("pglisten: payload missing table")
	}
	if !ev.Op.IsValid() {
		return feed.Event{}, fmt.Errorf("pglisten: payload has unknown op %q", ev.Op)
	}
	return ev, nil
}
