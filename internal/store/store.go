// Package store is the PostgreSQL persistence layer. One generic [Table]
// implements the CRUD surface for every resource; per-resource constructors
// in tables.go bind it to a concrete entity type.
//
// The schema installs an AFTER-row trigger on every table that emits the
// change as JSON on the archos_changes NOTIFY channel, which feeds
// pkg/feed/pglisten. Rows too large for the NOTIFY payload limit are
// announced with a null post-image so subscribers refetch instead.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archos-hq/archos/pkg/resource"
)

// DB is the database interface used by [Table]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &resource.ConnectivityError{Op: "connect", Err: err}
	}
	return pool, nil
}

// Migrate executes the [Schema] DDL, creating tables, indexes, and the
// change-notification triggers if they do not already exist.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// NotifyChannel is the NOTIFY channel the schema triggers publish on. It
// must match the channel pkg/feed/pglisten listens on.
const NotifyChannel = "archos_changes"

// Schema is the SQL DDL for all ARCHOS tables. Execute it via [Migrate] or
// apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS clients (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name       TEXT NOT NULL,
    email      TEXT,
    phone      TEXT,
    status     TEXT NOT NULL DEFAULT 'lead'
               CHECK (status IN ('lead', 'prospect', 'active', 'churned')),
    industry   TEXT,
    notes      TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS projects (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    client_id   UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    description TEXT,
    status      TEXT NOT NULL DEFAULT 'planning'
                CHECK (status IN ('planning', 'active', 'paused', 'completed', 'cancelled')),
    budget      NUMERIC(12,2),
    currency    TEXT NOT NULL DEFAULT 'USD',
    deadline    TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_projects_client ON projects(client_id);

CREATE TABLE IF NOT EXISTS tickets (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title       TEXT NOT NULL,
    description TEXT,
    status      TEXT NOT NULL DEFAULT 'backlog'
                CHECK (status IN ('backlog', 'active', 'review', 'done')),
    agent_mode  TEXT NOT NULL DEFAULT 'manual'
                CHECK (agent_mode IN ('manual', 'assisted', 'autonomous')),
    priority    TEXT NOT NULL DEFAULT 'medium'
                CHECK (priority IN ('low', 'medium', 'high', 'critical')),
    source      TEXT NOT NULL DEFAULT 'internal'
                CHECK (source IN ('internal', 'telegram', 'email', 'web')),
    assignee    TEXT,
    due_date    TIMESTAMPTZ,
    client_id   UUID REFERENCES clients(id) ON DELETE SET NULL,
    project_id  UUID REFERENCES projects(id) ON DELETE SET NULL,
    context     JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);

CREATE TABLE IF NOT EXISTS messages (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    ticket_id  UUID REFERENCES tickets(id) ON DELETE SET NULL,
    role       TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
    channel    TEXT NOT NULL DEFAULT 'web'
               CHECK (channel IN ('web', 'telegram', 'email')),
    content    TEXT NOT NULL,
    metadata   JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);

CREATE TABLE IF NOT EXISTS brain_dump (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    content    TEXT NOT NULL,
    processed  BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS knowledge_vault (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title      TEXT NOT NULL,
    content    TEXT NOT NULL DEFAULT '',
    category   TEXT,
    tags       TEXT[],
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_knowledge_category ON knowledge_vault(category);

CREATE TABLE IF NOT EXISTS bot_config (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    key        TEXT NOT NULL UNIQUE,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bot_secrets (
    id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name            TEXT NOT NULL UNIQUE,
    encrypted_value TEXT NOT NULL,
    provider        TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bot_skills (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name        TEXT NOT NULL UNIQUE,
    description TEXT,
    enabled     BOOLEAN NOT NULL DEFAULT false,
    config      JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bot_cron (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name        TEXT NOT NULL,
    description TEXT,
    schedule    TEXT NOT NULL,
    command     TEXT NOT NULL,
    enabled     BOOLEAN NOT NULL DEFAULT true,
    last_run    TIMESTAMPTZ,
    next_run    TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bot_heartbeat (
    id        UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    service   TEXT NOT NULL UNIQUE DEFAULT 'klaus',
    status    TEXT NOT NULL DEFAULT 'online'
              CHECK (status IN ('online', 'offline', 'error')),
    last_beat TIMESTAMPTZ NOT NULL DEFAULT now(),
    metadata  JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS bot_files (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name       TEXT NOT NULL,
    path       TEXT NOT NULL UNIQUE,
    size_bytes BIGINT,
    mime_type  TEXT,
    category   TEXT NOT NULL DEFAULT 'context'
               CHECK (category IN ('context', 'template', 'asset', 'export')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bot_models (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name       TEXT NOT NULL,
    provider   TEXT NOT NULL,
    model_id   TEXT NOT NULL,
    enabled    BOOLEAN NOT NULL DEFAULT true,
    is_default BOOLEAN NOT NULL DEFAULT false,
    config     JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS bot_voices (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name       TEXT NOT NULL,
    provider   TEXT NOT NULL,
    voice_id   TEXT NOT NULL,
    language   TEXT NOT NULL DEFAULT 'en',
    enabled    BOOLEAN NOT NULL DEFAULT true,
    is_default BOOLEAN NOT NULL DEFAULT false
);

-- Change notification. NOTIFY payloads are capped at 8000 bytes; oversized
-- post-images are replaced with null so subscribers refetch the table.
CREATE OR REPLACE FUNCTION archos_notify_change() RETURNS trigger AS $$
DECLARE
    payload TEXT;
BEGIN
    IF TG_OP = 'DELETE' THEN
        payload := json_build_object(
            'table', TG_TABLE_NAME, 'op', 'delete', 'id', OLD.id::text)::text;
    ELSE
        payload := json_build_object(
            'table', TG_TABLE_NAME, 'op', lower(TG_OP), 'id', NEW.id::text,
            'row', row_to_json(NEW))::text;
        IF octet_length(payload) > 7500 THEN
            payload := json_build_object(
                'table', TG_TABLE_NAME, 'op', lower(TG_OP), 'id', NEW.id::text,
                'row', NULL)::text;
        END IF;
    END IF;
    PERFORM pg_notify('archos_changes', payload);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DO $$
DECLARE
    t TEXT;
BEGIN
    FOREACH t IN ARRAY ARRAY[
        'tickets', 'clients', 'projects', 'messages', 'brain_dump',
        'knowledge_vault', 'bot_config', 'bot_secrets', 'bot_skills',
        'bot_cron', 'bot_heartbeat', 'bot_files', 'bot_models', 'bot_voices'
    ] LOOP
        EXECUTE format('DROP TRIGGER IF EXISTS archos_notify ON %I', t);
        EXECUTE format(
            'CREATE TRIGGER archos_notify
             AFTER INSERT OR UPDATE OR DELETE ON %I
             FOR EACH ROW EXECUTE FUNCTION archos_notify_change()', t);
    END LOOP;
END;
$$;
`
