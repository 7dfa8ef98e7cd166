package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ismaeeldev/nexa-server/config"
)

// ==================== Output helpers ====================

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "a-very-...", truncate("a-very-long-string", 10))
}

func TestStringOrDash(t *testing.T) {
	assert.Equal(t, "-", stringOrDash(nil))
	s := "value"
	assert.Equal(t, "value", stringOrDash(&s))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(nil))

	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01T10:30:00Z", formatTime(&ts))
}

// ==================== Config mapping ====================

func TestDBConfigMapping(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = 5433
	cfg.Database.Name = "nexa_test"
	cfg.Database.User = "svc"
	cfg.Database.Password = "secret"
	cfg.Database.SSLMode = "require"
	cfg.Database.MaxConns = 10
	cfg.Database.MinConns = 2

	dc := dbConfig(cfg)
	assert.Equal(t, "db.internal", dc.Host)
	assert.Equal(t, 5433, dc.Port)
	assert.Equal(t, "nexa_test", dc.Database)
	assert.Equal(t, "svc", dc.User)
	assert.Equal(t, "secret", dc.Password)
	assert.Equal(t, "require", dc.SSLMode)
	assert.Equal(t, int32(10), dc.MaxConns)
	assert.Equal(t, int32(2), dc.MinConns)
}

func TestDBConfigKeepsDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.MaxConns = 0
	cfg.Database.MinConns = 0

	dc := dbConfig(cfg)
	assert.Equal(t, int32(25), dc.MaxConns)
	assert.Equal(t, int32(5), dc.MinConns)
}
