package health

import (
	"context"
	"errors"
	"fmt"
)

// Pinger is satisfied by anything that can probe its backing connection,
// such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Database returns a checker that pings the database pool.
func Database(p Pinger) Checker {
	return Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			return p.Ping(ctx)
		},
	}
}

// FeedState is satisfied by change-feed drivers that hold a persistent
// transport connection.
type FeedState interface {
	Connected() bool
}

// Feed returns a checker that fails while the change-feed transport is
// disconnected. Collections keep serving stale snapshots during an outage,
// so this is a readiness signal, not a liveness one.
func Feed(s FeedState) Checker {
	return Checker{
		Name: "feed",
		Check: func(_ context.Context) error {
			if !s.Connected() {
				return errors.New("change feed disconnected")
			}
			return nil
		},
	}
}

// LoadState reports the load state of a named collection.
type LoadState interface {
	Name() string
	Loaded() bool
	LastError() error
}

// Resources returns a checker that fails when any collection has never
// completed an initial load or is carrying a load error. A collection that
// loaded once and then lost connectivity still reports its stale snapshot,
// so only the last error is surfaced here.
func Resources(states func() []LoadState) Checker {
	return Checker{
		Name: "resources",
		Check: func(_ context.Context) error {
			for _, s := range states() {
				if err := s.LastError(); err != nil {
					return fmt.Errorf("%s: %w", s.Name(), err)
				}
				if !s.Loaded() {
					return fmt.Errorf("%s: initial load pending", s.Name())
				}
			}
			return nil
		},
	}
}
