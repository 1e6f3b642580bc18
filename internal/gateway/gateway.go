// Package gateway exposes the hub over HTTP for the dashboard UI.
//
// The surface is deliberately uniform: every resource gets the same four
// CRUD routes under /api/{resource}, change events stream over /ws, and
// the operational endpoints (/healthz, /readyz, /metrics) sit beside them.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archos-hq/archos/internal/health"
	"github.com/archos-hq/archos/internal/hub"
	"github.com/archos-hq/archos/internal/observe"
	"github.com/archos-hq/archos/internal/resilience"
	"github.com/archos-hq/archos/internal/secretbox"
	"github.com/archos-hq/archos/pkg/feed"
	"github.com/archos-hq/archos/pkg/resource"
)

// maxBodyBytes caps request bodies. Rows are small; anything larger is a
// client bug.
const maxBodyBytes = 1 << 20

// Gateway serves the REST and WebSocket front over a [hub.Hub].
type Gateway struct {
	hub     *hub.Hub
	feed    feed.Feed
	metrics *observe.Metrics
	log     *slog.Logger
	box     *secretbox.Box
	checks  []health.Checker
	breaker *resilience.CircuitBreaker
}

// Option configures a [Gateway].
type Option func(*Gateway)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithSecretBox enables encryption of secret values on write and masked
// decryption on read. Without it, secret mutations are rejected.
func WithSecretBox(b *secretbox.Box) Option {
	return func(g *Gateway) { g.box = b }
}

// WithHealthChecks adds readiness checkers served on /readyz.
func WithHealthChecks(checks ...health.Checker) Option {
	return func(g *Gateway) { g.checks = append(g.checks, checks...) }
}

// New creates a Gateway over h. Events for /ws are read from f, which must
// be the same feed the hub's collections watch.
func New(h *hub.Hub, f feed.Feed, opts ...Option) *Gateway {
	g := &Gateway{hub: h, feed: f}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	// Only backend unreachability trips the breaker; client mistakes pass
	// straight through.
	g.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:      "backend",
		IsFailure: resource.IsConnectivity,
	})
	return g
}

// Handler returns the full route table wrapped in the telemetry middleware.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/{resource}", g.handleList)
	mux.HandleFunc("POST /api/{resource}", g.handleCreate)
	mux.HandleFunc("PATCH /api/{resource}/{id}", g.handleUpdate)
	mux.HandleFunc("DELETE /api/{resource}/{id}", g.handleRemove)

	// Derived read-only views the dashboard renders directly.
	mux.HandleFunc("GET /api/knowledge_vault/categories", g.handleCategories)
	mux.HandleFunc("GET /api/knowledge_vault/search", g.handleSearch)
	mux.HandleFunc("GET /api/defaults", g.handleDefaults)
	mux.HandleFunc("GET /api/services", g.handleServices)

	mux.HandleFunc("GET /ws", g.handleWS)

	health.New(g.checks...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(g.metrics)(mux)
}
