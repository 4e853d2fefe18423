//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_records (
    id UUID PRIMARY KEY,
    device_id TEXT NOT NULL,
    scan_timestamp TIMESTAMPTZ NOT NULL,
    categories JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    UNIQUE (device_id, scan_timestamp)
);

CREATE INDEX IF NOT EXISTS idx_scan_records_device_ts
    ON scan_records (device_id, scan_timestamp DESC);

CREATE TABLE IF NOT EXISTS health_assessments (
    scan_id UUID PRIMARY KEY REFERENCES scan_records (id) ON DELETE CASCADE,
    device_id TEXT NOT NULL,
    sub_scores JSONB NOT NULL,
    overall DOUBLE PRECISION NOT NULL,
    level TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS device_links (
    user_id UUID NOT NULL,
    device_id TEXT NOT NULL,
    device_name TEXT NOT NULL,
    linked_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, device_id)
);

CREATE TABLE IF NOT EXISTS audit_events (
    id UUID PRIMARY KEY,
    event_time TIMESTAMPTZ NOT NULL,
    action TEXT NOT NULL,
    principal TEXT NOT NULL,
    user_id UUID,
    device_id TEXT NOT NULL,
    scan_id TEXT NOT NULL,
    outcome TEXT NOT NULL,
    reason TEXT NOT NULL,
    request_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_device
    ON audit_events (device_id, event_time);
`

// PostgresContainer wraps a testcontainers Postgres instance with the service
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("evscan"),
		tcpostgres.WithUsername("evscan"),
		tcpostgres.WithPassword("evscan"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// Truncate clears all tables. Use between tests to ensure isolation.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx,
		"TRUNCATE scan_records, health_assessments, device_links, audit_events CASCADE")
	return err
}
