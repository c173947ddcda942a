package cli

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rowlink/dialect"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rowlink.yaml")
	writeFile(t, path, `
dialect: postgres
dsn: postgres://localhost/app
migrations_dir: db/migrations
log_level: warn
slow_threshold: 250ms
`)
	cfg, err := LoadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Dialect:       "postgres",
		DSN:           "postgres://localhost/app",
		MigrationsDir: "db/migrations",
		Table:         "rowlink_migrations",
		LogLevel:      "warn",
		SlowThreshold: 250 * time.Millisecond,
	}, cfg)

	t.Setenv(EnvDSN, "postgres://prod/app")
	t.Setenv(EnvDialect, "pgx")
	cfg, err = LoadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, "postgres://prod/app", cfg.DSN)
	require.NoError(t, cfg.Validate(true))
	assert.Equal(t, dialect.Postgres, cfg.Dialect)
}

func TestLoadConfigMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(path, false)
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, bad, "dialect: [")
	_, err = LoadConfig(bad, true)
	require.ErrorContains(t, err, "parse config")
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Dialect = "mysql"
		cfg.DSN = "user:pass@tcp(localhost:3306)/app"
		return cfg
	}
	tests := []struct {
		name    string
		change  func(*Config)
		connect bool
		wantErr string
	}{
		{name: "valid", change: func(*Config) {}, connect: true},
		{name: "no dialect", change: func(c *Config) { c.Dialect = "" }, wantErr: "dialect is required"},
		{name: "unknown dialect", change: func(c *Config) { c.Dialect = "oracle" }, wantErr: "unsupported dialect"},
		{name: "no dir", change: func(c *Config) { c.MigrationsDir = "" }, wantErr: "migrations_dir is required"},
		{name: "negative threshold", change: func(c *Config) { c.SlowThreshold = -time.Second }, wantErr: "slow_threshold"},
		{name: "bad level", change: func(c *Config) { c.LogLevel = "loud" }, wantErr: "invalid log_level"},
		{name: "no dsn offline", change: func(c *Config) { c.DSN = "" }},
		{name: "no dsn", change: func(c *Config) { c.DSN = "" }, connect: true, wantErr: "dsn is required"},
		{name: "bad mysql dsn", change: func(c *Config) { c.DSN = "localhost:3306" }, connect: true, wantErr: "invalid mysql dsn"},
		{name: "ansi offline", change: func(c *Config) { c.Dialect = "ansi" }},
		{name: "ansi", change: func(c *Config) { c.Dialect = "ansi" }, connect: true, wantErr: "cannot connect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.change(&cfg)
			err := cfg.Validate(tt.connect)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfigLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	l := cfg.Logger(os.Stderr)
	assert.False(t, l.Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, l.Enabled(t.Context(), slog.LevelError))
}
