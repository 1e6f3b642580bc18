// Package app wires all ARCHOS subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject in-memory backends via functional options
// (WithBackend). When no option is provided, New builds the real backend
// selected by the config's feed driver.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/archos-hq/archos/internal/config"
	"github.com/archos-hq/archos/internal/gateway"
	"github.com/archos-hq/archos/internal/health"
	"github.com/archos-hq/archos/internal/hub"
	"github.com/archos-hq/archos/internal/observe"
	"github.com/archos-hq/archos/internal/secretbox"
	"github.com/archos-hq/archos/internal/store"
	"github.com/archos-hq/archos/pkg/feed"
	"github.com/archos-hq/archos/pkg/feed/pglisten"
	"github.com/archos-hq/archos/pkg/feed/redisfeed"
)

// shutdownTimeout bounds the HTTP server drain during Run teardown.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes: storage, feed, hub, and HTTP server.
type App struct {
	cfg *config.Config

	hub     *hub.Hub
	gateway *gateway.Gateway
	srv     *http.Server

	// backend, when injected, replaces driver selection entirely.
	tables *hub.Tables
	feed   feed.Feed
	pool   *pgxpool.Pool

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once

	mu        sync.Mutex
	boundAddr string
}

// Addr returns the address the HTTP listener is bound to. Empty until Run
// has opened the listener. Useful when the config asks for port 0.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.boundAddr
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBackend injects tables and a feed instead of building them from the
// config. The app then skips database and telemetry setup.
func WithBackend(tables hub.Tables, f feed.Feed) Option {
	return func(a *App) {
		a.tables = &tables
		a.feed = f
	}
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Initialisation is
// synchronous: telemetry providers, database connection and migration, feed
// driver, hub, and gateway are all ready when New returns.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	injected := a.tables != nil

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if !injected {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "archos"})
		if err != nil {
			return nil, fmt.Errorf("app: init telemetry: %w", err)
		}
		a.closers = append(a.closers, func() error { return shutdown(context.Background()) })
	}

	// ── 2. Storage + feed driver ─────────────────────────────────────────
	if !injected {
		if err := a.initBackend(ctx); err != nil {
			return nil, fmt.Errorf("app: init backend: %w", err)
		}
	}

	// ── 3. Secret encryption ─────────────────────────────────────────────
	var box *secretbox.Box
	if cfg.Secrets.Key != "" {
		b, err := secretbox.NewFromBase64(cfg.Secrets.Key)
		if err != nil {
			return nil, fmt.Errorf("app: secrets key: %w", err)
		}
		box = b
	}

	// ── 4. Hub ───────────────────────────────────────────────────────────
	h, err := hub.New(*a.tables, a.feed,
		hub.WithHistoryLimit(cfg.Chat.HistoryLimit),
		hub.WithHeartbeatFreshness(cfg.Heartbeat.Freshness()),
	)
	if err != nil {
		return nil, fmt.Errorf("app: init hub: %w", err)
	}
	a.hub = h

	// ── 5. Gateway + HTTP server ─────────────────────────────────────────
	checks := []health.Checker{health.Resources(a.loadStates)}
	if a.pool != nil {
		checks = append(checks, health.Database(a.pool))
	}
	if fs, ok := a.feed.(health.FeedState); ok {
		checks = append(checks, health.Feed(fs))
	}

	gwOpts := []gateway.Option{gateway.WithHealthChecks(checks...)}
	if box != nil {
		gwOpts = append(gwOpts, gateway.WithSecretBox(box))
	}
	a.gateway = gateway.New(h, a.feed, gwOpts...)

	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initBackend connects storage and constructs the feed driver named in the
// config.
func (a *App) initBackend(ctx context.Context) error {
	switch a.cfg.Feed.Driver {
	case config.FeedMemory:
		bus := feed.NewBus()
		tables := hub.NewMemTables(bus)
		a.tables = &tables
		a.feed = bus
		a.closers = append(a.closers, func() error { bus.Close(); return nil })
		return nil

	case config.FeedPostgres:
		pool, err := a.connectStore(ctx)
		if err != nil {
			return err
		}

		metrics := observe.DefaultMetrics()
		lopts := []pglisten.Option{
			pglisten.WithOnReconnect(func() {
				metrics.FeedReconnects.Add(context.Background(), 1)
			}),
		}
		if a.cfg.Feed.Channel != "" {
			lopts = append(lopts, pglisten.WithChannel(a.cfg.Feed.Channel))
		}
		listener := pglisten.New(a.cfg.Database.DSN, lopts...)
		a.closers = append(a.closers, func() error { listener.Close(); return nil })

		// Triggers announce changes server-side, so tables publish nothing.
		tables := hub.NewStoreTables(pool, nil)
		a.tables = &tables
		a.feed = listener
		return nil

	case config.FeedRedis:
		pool, err := a.connectStore(ctx)
		if err != nil {
			return err
		}

		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Feed.Redis.Addr,
			Password: a.cfg.Feed.Redis.Password,
			DB:       a.cfg.Feed.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)

		fopts := []redisfeed.Option{}
		if a.cfg.Feed.Redis.Prefix != "" {
			fopts = append(fopts, redisfeed.WithPrefix(a.cfg.Feed.Redis.Prefix))
		}
		rf := redisfeed.New(client, fopts...)
		a.closers = append(a.closers, func() error { rf.Close(); return nil })

		// Redis carries events, so the store publishes after each commit.
		tables := hub.NewStoreTables(pool, rf)
		a.tables = &tables
		a.feed = rf
		return nil

	default:
		return fmt.Errorf("unknown feed driver %q", a.cfg.Feed.Driver)
	}
}

// connectStore opens the pgx pool and applies the schema.
func (a *App) connectStore(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := store.Connect(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	return pool, nil
}

// loadStates adapts the hub's resources for the readiness checker.
func (a *App) loadStates() []health.LoadState {
	names := a.hub.Names()
	states := make([]health.LoadState, 0, len(names))
	for _, name := range names {
		if res, ok := a.hub.Resource(name); ok {
			states = append(states, res)
		}
	}
	return states
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the feed driver, loads all collections, and serves HTTP until
// ctx is cancelled. It returns nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	// Watchers subscribe during Start; the driver's receive loop below then
	// delivers (and, after reconnects, resyncs) into those subscriptions.
	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("app: start hub: %w", err)
	}

	ln, err := net.Listen("tcp", a.srv.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.srv.Addr, err)
	}
	a.mu.Lock()
	a.boundAddr = ln.Addr().String()
	a.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)

	if runner, ok := a.feed.(feed.Runner); ok {
		g.Go(func() error { return runner.Run(ctx) })
	}

	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(drainCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Hub exposes the running hub, mainly for tests and embedders.
func (a *App) Hub() *hub.Hub { return a.hub }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.hub.Close()

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
