package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// NOTE: Load creates the file with defaults on first run (0600, atomic
// write), then applies PLANCAL_* environment overrides on top.

// StoreConfig selects where the event list is persisted.
type StoreConfig struct {
	// Backend is "file" (one JSON file per key under Dir) or "sqlite".
	Backend    string `yaml:"backend" json:"backend" env:"BACKEND"`
	Dir        string `yaml:"dir" json:"dir" env:"DIR"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path" env:"SQLITE_PATH"`
	// Watch reloads the list when another process edits the store file.
	Watch bool `yaml:"watch" json:"watch" env:"WATCH"`
}

// BackupConfig controls the periodic snapshot of the event list.
type BackupConfig struct {
	// Cron is a 5-field cron spec. Empty disables backups.
	Cron string `yaml:"cron" json:"cron" env:"CRON"`
	Dir  string `yaml:"dir" json:"dir" env:"DIR"`
	Keep int    `yaml:"keep" json:"keep" env:"KEEP"`
}

// CaptureConfig controls PNG snapshots of the month view.
type CaptureConfig struct {
	// Cron is a 5-field cron spec. Empty disables periodic capture.
	Cron   string `yaml:"cron" json:"cron" env:"CRON"`
	Output string `yaml:"output" json:"output" env:"OUTPUT"`
	Width  int    `yaml:"width" json:"width" env:"WIDTH"`
	Height int    `yaml:"height" json:"height" env:"HEIGHT"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" env:"LEVEL"`
	Format string `yaml:"format" json:"format" env:"FORMAT"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen" env:"LISTEN"`

	// Timezone is the IANA zone used to decide "today" and shown on the
	// event detail page.
	Timezone string `yaml:"timezone" json:"timezone" env:"TIMEZONE"`

	// WeekStart is "monday" (ISO weeks, default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start" env:"WEEK_START"`

	// SeedPath optionally replaces the built-in first-run event list.
	SeedPath string `yaml:"seed_path" json:"seed_path" env:"SEED_PATH"`

	Store   StoreConfig   `yaml:"store" json:"store" envPrefix:"STORE_"`
	Backup  BackupConfig  `yaml:"backup" json:"backup" envPrefix:"BACKUP_"`
	Capture CaptureConfig `yaml:"capture" json:"capture" envPrefix:"CAPTURE_"`
	Log     LogConfig     `yaml:"log" json:"log" envPrefix:"LOG_"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// authEnv is parsed separately so an unset environment never allocates
// an empty BasicAuth block.
type authEnv struct {
	Username string `env:"BASIC_AUTH_USERNAME"`
	Password string `env:"BASIC_AUTH_PASSWORD"`
}

const EnvPrefix = "PLANCAL_"

const (
	defaultListen    = "127.0.0.1:8080"
	defaultTimezone  = "Asia/Kolkata"
	defaultWeekStart = "monday"
	defaultDataDir   = "./data"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Listen:    defaultListen,
		Timezone:  defaultTimezone,
		WeekStart: defaultWeekStart,
		Store: StoreConfig{
			Backend: "file",
			Dir:     defaultDataDir,
			Watch:   true,
		},
		Backup: BackupConfig{
			Cron: "0 3 * * *",
			Keep: 14,
		},
		Capture: CaptureConfig{
			Width:  1280,
			Height: 960,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	// WeekStart default & validation.
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = defaultWeekStart
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = defaultDataDir
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(c.Store.Dir, "plancal.db")
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = filepath.Join(c.Store.Dir, "backup")
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = 14
	}
	if c.Capture.Output == "" {
		c.Capture.Output = filepath.Join(c.Store.Dir, "preview.png")
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1280
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 960
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate reports settings that cannot be repaired by Normalize.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - Environment variables (PLANCAL_*) override file values.
//   - Normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overrides fields from PLANCAL_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	var auth authEnv
	if err := env.ParseWithOptions(&auth, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	if auth.Username != "" || auth.Password != "" {
		c.BasicAuth = &BasicAuthConfig{Username: auth.Username, Password: auth.Password}
	}
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".plancal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
