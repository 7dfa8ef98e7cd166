// Package cmd implements the nexa-server subcommands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ismaeeldev/nexa-server/config"
	"github.com/ismaeeldev/nexa-server/pkg/db"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

// newLogger builds the service logger from configuration.
func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.Config{
		Level:       logging.Level(cfg.Logging.Level),
		ServiceName: "nexa-server",
		Environment: cfg.Logging.Environment,
		JSONFormat:  cfg.Logging.JSON,
	})
}

// dbConfig maps server configuration onto the database package config.
func dbConfig(cfg *config.Config) *db.Config {
	dc := db.DefaultConfig()
	dc.Host = cfg.Database.Host
	dc.Port = cfg.Database.Port
	dc.Database = cfg.Database.Name
	dc.User = cfg.Database.User
	dc.Password = cfg.Database.Password
	if cfg.Database.SSLMode != "" {
		dc.SSLMode = cfg.Database.SSLMode
	}
	if cfg.Database.MaxConns > 0 {
		dc.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		dc.MinConns = cfg.Database.MinConns
	}
	return dc
}

// connectDB opens a pool against the configured database.
func connectDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, dbConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatTime renders a nullable timestamp for table output.
func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// stringOrDash renders a nullable string for table output.
func stringOrDash(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

// truncate shortens a string for table output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
