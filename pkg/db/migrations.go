package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is a single schema change. Migrations are compiled into the
// binary so the migrate command needs nothing but a database connection.
type Migration struct {
	Version string
	SQL     string
}

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	Applied []string
	Skipped []string
}

// Migrations is the ordered schema for the nexa store. Versions are applied
// in slice order and tracked in schema_migrations.
var Migrations = []Migration{
	{
		Version: "001_create_agents",
		SQL: `
			CREATE TABLE IF NOT EXISTS agents (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL,
				instructions TEXT NOT NULL,
				user_id TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_agents_user_id ON agents (user_id);
		`,
	},
	{
		Version: "002_create_meetings",
		SQL: `
			CREATE TABLE IF NOT EXISTS meetings (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL,
				agent_id UUID NOT NULL REFERENCES agents(id) ON DELETE RESTRICT,
				user_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'upcoming'
					CHECK (status IN ('upcoming', 'active', 'processing', 'completed', 'cancelled')),
				started_at TIMESTAMPTZ,
				ended_at TIMESTAMPTZ,
				transcript_url TEXT,
				recording_url TEXT,
				summary TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_meetings_user_id ON meetings (user_id);
			CREATE INDEX IF NOT EXISTS idx_meetings_agent_id ON meetings (agent_id);
			CREATE INDEX IF NOT EXISTS idx_meetings_status ON meetings (status);
		`,
	},
}

// RunMigrations applies all pending migrations in order. A tracking table
// prevents re-running migrations; each migration runs in its own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) (*MigrationResult, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	result := &MigrationResult{}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range Migrations {
		if applied[m.Version] {
			result.Skipped = append(result.Skipped, m.Version)
			continue
		}

		if err := applyMigration(ctx, pool, m); err != nil {
			return result, fmt.Errorf("migration %s failed: %w", m.Version, err)
		}

		result.Applied = append(result.Applied, m.Version)
	}

	return result, nil
}

// PendingMigrations returns the versions that have not been applied yet.
func PendingMigrations(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, m := range Migrations {
		if !applied[m.Version] {
			pending = append(pending, m.Version)
		}
	}

	return pending, nil
}

// ensureMigrationsTable creates the schema migrations tracking table if it doesn't exist.
func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// getAppliedMigrations returns a map of already-applied migration versions.
func getAppliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// applyMigration executes a single migration inside a transaction.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, m Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}

	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// MigrationStatusEntry is one row of the migrate status report.
type MigrationStatusEntry struct {
	Version   string
	AppliedAt *time.Time // nil when pending
}

// MigrationStatus reports each known migration with its applied timestamp.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool) ([]MigrationStatusEntry, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	rows, err := pool.Query(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appliedAt := make(map[string]time.Time)
	for rows.Next() {
		var version string
		var ts time.Time
		if err := rows.Scan(&version, &ts); err != nil {
			return nil, err
		}
		appliedAt[version] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]MigrationStatusEntry, 0, len(Migrations))
	for _, m := range Migrations {
		entry := MigrationStatusEntry{Version: m.Version}
		if ts, ok := appliedAt[m.Version]; ok {
			entry.AppliedAt = &ts
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
