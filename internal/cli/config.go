package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/syssam/rowlink/dialect"
	"github.com/syssam/rowlink/dialect/sql/schema"
)

// Environment variables overriding the configuration file.
const (
	EnvDSN     = "ROWLINK_DSN"
	EnvDialect = "ROWLINK_DIALECT"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "rowlink.yaml"

// Config is the rowlink.yaml configuration.
//
//	dialect: postgres
//	dsn: postgres://localhost/app?sslmode=disable
//	migrations_dir: migrations
//	table: rowlink_migrations
//	log_level: info
//	slow_threshold: 200ms
type Config struct {
	Dialect       string        `yaml:"dialect"`
	DSN           string        `yaml:"dsn"`
	MigrationsDir string        `yaml:"migrations_dir"`
	Table         string        `yaml:"table"`
	LogLevel      string        `yaml:"log_level"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// DefaultConfig returns the configuration used for missing keys.
func DefaultConfig() Config {
	return Config{
		MigrationsDir: "migrations",
		Table:         schema.DefaultMigrationTable,
		LogLevel:      "info",
		SlowThreshold: 100 * time.Millisecond,
	}
}

// LoadConfig reads the configuration at path on top of the defaults and
// applies the environment overrides. A missing file is not an error when
// optional is set.
func LoadConfig(path string, optional bool) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && optional:
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv(EnvDSN); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv(EnvDialect); v != "" {
		cfg.Dialect = v
	}
	return cfg, nil
}

// Validate normalizes the dialect and checks the other settings. The DSN
// is only checked when connect is set.
func (c *Config) Validate(connect bool) error {
	if c.Dialect == "" {
		return errors.New("config: dialect is required")
	}
	d, err := dialect.Normalize(c.Dialect)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Dialect = d
	if c.MigrationsDir == "" {
		return errors.New("config: migrations_dir is required")
	}
	if c.SlowThreshold < 0 {
		return fmt.Errorf("config: slow_threshold must not be negative, got %s", c.SlowThreshold)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if !connect {
		return nil
	}
	switch {
	case c.Dialect == dialect.ANSI:
		return errors.New("config: the ansi dialect cannot connect to a database")
	case c.DSN == "":
		return fmt.Errorf("config: dsn is required (or set %s)", EnvDSN)
	case c.Dialect == dialect.MySQL:
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return fmt.Errorf("config: invalid mysql dsn: %w", err)
		}
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	return l, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	l, _ := c.Level()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}
