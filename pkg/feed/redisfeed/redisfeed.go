// Package redisfeed implements the change feed over Redis pub/sub.
//
// Unlike the PostgreSQL driver, Redis knows nothing about the database, so
// the store must announce every committed mutation itself via [Feed.Publish].
// Events travel as JSON on one channel per table ("<prefix><table>"); the
// receive loop pattern-subscribes to all of them and fans out locally.
//
// This driver exists for deployments where the dashboard backend is split
// across processes that share a database but cannot install triggers.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/archos-hq/archos/pkg/feed"
)

// Compile-time interface checks.
var (
	_ feed.Feed      = (*Feed)(nil)
	_ feed.Publisher = (*Feed)(nil)
	_ feed.Runner    = (*Feed)(nil)
)

// DefaultPrefix is prepended to the table name to form the pub/sub channel.
const DefaultPrefix = "archos:changes:"

// Feed is a [feed.Feed] and [feed.Publisher] backed by Redis pub/sub.
type Feed struct {
	client *redis.Client
	prefix string
	log    *slog.Logger

	bus *feed.Bus
}

// Option configures a [Feed].
type Option func(*Feed)

// WithPrefix overrides the channel name prefix.
func WithPrefix(prefix string) Option {
	return func(f *Feed) { f.prefix = prefix }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(f *Feed) { f.log = log }
}

// New creates a Redis-backed feed on the given client. Call [Feed.Run] to
// start the receive loop.
func New(client *redis.Client, opts ...Option) *Feed {
	f := &Feed{
		client: client,
		prefix: DefaultPrefix,
		log:    slog.Default(),
		bus:    feed.NewBus(),
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

// Publish implements [feed.Publisher]. The store calls this after every
// committed mutation.
func (f *Feed) Publish(ctx context.Context, ev feed.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redisfeed: encode event: %w", err)
	}
	if err := f.client.Publish(ctx, f.prefix+ev.Table, b).Err(); err != nil {
		return fmt.Errorf("redisfeed: publish %s: %w", ev.Table, err)
	}
	return nil
}

// Run consumes the pub/sub channels until ctx is cancelled. go-redis
// transparently re-subscribes after connection loss.
func (f *Feed) Run(ctx context.Context) error {
	pubsub := f.client.PSubscribe(ctx, f.prefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redisfeed: pubsub channel closed")
			}
			var ev feed.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.log.Warn("discarding malformed change event", "channel", msg.Channel, "err", err)
				continue
			}
			if ev.Table == "" {
				// Tolerate events published without a body table by
				// recovering it from the channel name.
				ev.Table = strings.TrimPrefix(msg.Channel, f.prefix)
			}
			_ = f.bus.Publish(ctx, ev)
		}
	}
}

// Close closes all active subscriptions. Call after Run has returned.
func (f *Feed) Close() {
	f.bus.Close()
}
