package feed

import (
	"sync"
)

// subscriptionBuffer is the per-subscription event buffer size. When a
// consumer falls this far behind, further events are dropped; the consumer
// recovers on its next full reload.
const subscriptionBuffer = 32

// Subscription is a handle on a stream of change events for one table.
// Close it exactly once per logical consumer; Close is idempotent.
type Subscription struct {
	table  string
	events chan Event

	closeOnce  sync.Once
	unregister func(*Subscription)
}

func newSubscription(table string, unregister func(*Subscription)) *Subscription {
	return &Subscription{
		table:      table,
		events:     make(chan Event, subscriptionBuffer),
		unregister: unregister,
	}
}

// Table returns the table this subscription is scoped to.
func (s *Subscription) Table() string { return s.table }

// Events returns the channel change events are delivered on. The channel is
// closed when the subscription is closed.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close releases the subscription. After Close returns no further events are
// delivered. Safe to call multiple times.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.unregister != nil {
			s.unregister(s)
		}
		close(s.events)
	})
}

// fanout routes events to per-table subscriptions. It is shared by every
// feed driver: drivers decode transport messages into [Event] values and
// hand them to dispatch.
type fanout struct {
	mu   sync.Mutex
	subs map[string][]*Subscription

	// dropped is incremented when a subscriber's buffer is full.
	dropped uint64
}

func newFanout() *fanout {
	return &fanout{subs: make(map[string][]*Subscription)}
}

func (f *fanout) subscribe(table string) *Subscription {
	sub := newSubscription(table, f.remove)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[table] = append(f.subs[table], sub)
	return sub
}

func (f *fanout) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.subs[sub.table]
	for i, s := range list {
		if s == sub {
			f.subs[sub.table] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(f.subs[sub.table]) == 0 {
		delete(f.subs, sub.table)
	}
}

// dispatch delivers ev to every subscription on ev.Table. Full buffers are
// skipped rather than blocked on.
func (f *fanout) dispatch(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, sub := range f.subs[ev.Table] {
		select {
		case sub.events <- ev:
		default:
			f.dropped++
		}
	}
}

// tables returns the tables that currently have at least one subscriber.
func (f *fanout) tables() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ts := make([]string, 0, len(f.subs))
	for t := range f.subs {
		ts = append(ts, t)
	}
	return ts
}

// closeAll closes every active subscription. Used by driver teardown.
func (f *fanout) closeAll() {
	f.mu.Lock()
	var all []*Subscription
	for _, list := range f.subs {
		all = append(all, list...)
	}
	f.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}
