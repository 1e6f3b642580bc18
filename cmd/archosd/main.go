// Command archosd is the main entry point for the ARCHOS sync server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/archos-hq/archos/internal/app"
	"github.com/archos-hq/archos/internal/config"
	"github.com/archos-hq/archos/internal/secretbox"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	genKey := flag.Bool("gen-secrets-key", false, "print a fresh base64 secrets key and exit")
	flag.Parse()

	if *genKey {
		key, err := secretbox.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "archosd: %v\n", err)
			return 1
		}
		fmt.Println(key)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "archosd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "archosd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("archos starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"feed_driver", cfg.Feed.Driver,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		d := config.Diff(old, updated)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.HeartbeatChanged {
			application.Hub().SetHeartbeatFreshness(updated.Heartbeat.Freshness())
			slog.Info("heartbeat window changed", "seconds", updated.Heartbeat.FreshnessSeconds)
		}
		if d.HistoryChanged {
			application.Hub().SetHistoryLimit(updated.Chat.HistoryLimit)
			slog.Info("chat history limit changed", "limit", updated.Chat.HistoryLimit)
		}
		if d.RestartRequired {
			slog.Warn("config change requires a restart to take effect")
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          ARCHOS — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.ListenAddr)
	printRow("Feed driver", string(cfg.Feed.Driver))
	if cfg.Database.DSN != "" {
		printRow("Database", "configured")
	} else {
		printRow("Database", "(in-memory)")
	}
	if cfg.Feed.Driver == config.FeedRedis {
		printRow("Redis", cfg.Feed.Redis.Addr)
	}
	if cfg.Secrets.Key != "" {
		printRow("Secrets", "encrypted")
	} else {
		printRow("Secrets", "(read-only)")
	}
	printRow("Heartbeat window", fmt.Sprintf("%ds", cfg.Heartbeat.FreshnessSeconds))
	printRow("Chat history", fmt.Sprintf("%d messages", cfg.Chat.HistoryLimit))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-16s: %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
