package feed

import "context"

// Compile-time interface checks.
var (
	_ Feed      = (*Bus)(nil)
	_ Publisher = (*Bus)(nil)
)

// Bus is an in-process [Feed] and [Publisher]. Mutators publish events
// directly and subscribers receive them without any external transport.
// It backs the in-memory table in offline mode and is the standard feed
// double in tests. The zero value is not usable; use [NewBus].
type Bus struct {
	fan *fanout
}

// NewBus returns a ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{fan: newFanout()}
}

// Subscribe implements [Feed].
func (b *Bus) Subscribe(table string) (*Subscription, error) {
	return b.fan.subscribe(table), nil
}

// Publish implements [Publisher]. Delivery is synchronous with respect to
// enqueueing: by the time Publish returns, the event sits in every
// subscriber's buffer (or was dropped because the buffer was full).
func (b *Bus) Publish(_ context.Context, ev Event) error {
	b.fan.dispatch(ev)
	return nil
}

// Tables returns the tables that currently have at least one subscriber.
// Transport drivers use this to emit resync events after a reconnect.
func (b *Bus) Tables() []string {
	return b.fan.tables()
}

// Close closes all active subscriptions.
func (b *Bus) Close() {
	b.fan.closeAll()
}
