// Package config loads client settings. Later sources override earlier ones:
// built-in defaults, the YAML config file, a .env file, CHEFRIEND_*
// environment variables, and finally command-line flags (applied by the
// CLI).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chefriend/chefriend-cli/internal/session"
)

// EnvPrefix prefixes every environment variable the client reads.
const EnvPrefix = "CHEFRIEND_"

// Config holds client settings.
type Config struct {
	APIURL            string        `yaml:"api_url"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRPS            float64       `yaml:"max_rps"`
	Proxy             string        `yaml:"proxy"`
	DBDriver          string        `yaml:"db_driver"`
	DBDSN             string        `yaml:"db_dsn"`
	UploadConcurrency int           `yaml:"upload_concurrency"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	CacheSize         int           `yaml:"cache_size"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		APIURL:            "http://localhost:8080",
		Timeout:           15 * time.Second,
		DBDriver:          session.DriverSQLite,
		DBDSN:             DefaultDSN(),
		UploadConcurrency: 1,
		CacheTTL:          time.Minute,
		CacheSize:         128,
	}
}

// Dir is the per-user directory holding the config file and local state.
func Dir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "chefriend")
	}
	return ".chefriend"
}

// DefaultPath is where the YAML config file is looked up.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultDSN is the local SQLite database for session state.
func DefaultDSN() string {
	return filepath.Join(Dir(), "state.db")
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// ConfigPath is an explicit YAML file; it must exist. Empty means
	// DefaultPath, which may be absent.
	ConfigPath string

	// EnvFile is an explicit .env file; it must exist. Empty means ".env" in
	// the working directory, which may be absent.
	EnvFile string

	// LookupEnv reads the process environment. nil means os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Load builds the configuration from defaults, files and environment.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	path, required := opts.ConfigPath, true
	if path == "" {
		path, required = DefaultPath(), false
	}
	if err := cfg.loadYAML(path, required); err != nil {
		return nil, err
	}

	dotenv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	required := path != ""
	if !required {
		path = ".env"
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := env(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("API_URL", &c.APIURL)
	str("PROXY", &c.Proxy)
	str("DB_DRIVER", &c.DBDriver)
	str("DB_DSN", &c.DBDSN)

	var errs []error
	parse := func(name string, fn func(string) error) {
		v, ok := env(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		if err := fn(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("config: %s%s=%q: %w", EnvPrefix, name, v, err))
		}
	}
	parse("TIMEOUT", func(v string) (err error) { c.Timeout, err = time.ParseDuration(v); return })
	parse("CACHE_TTL", func(v string) (err error) { c.CacheTTL, err = time.ParseDuration(v); return })
	parse("MAX_RPS", func(v string) (err error) { c.MaxRPS, err = strconv.ParseFloat(v, 64); return })
	parse("UPLOAD_CONCURRENCY", func(v string) (err error) { c.UploadConcurrency, err = strconv.Atoi(v); return })
	parse("CACHE_SIZE", func(v string) (err error) { c.CacheSize, err = strconv.Atoi(v); return })
	return errors.Join(errs...)
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api_url must be an http(s) URL, got %q", c.APIURL)
	}
	switch c.DBDriver {
	case session.DriverSQLite, session.DriverPostgres:
	default:
		return fmt.Errorf("config: unsupported db_driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("config: db_dsn is required")
	}
	if c.Timeout < 0 || c.CacheTTL < 0 || c.MaxRPS < 0 || c.CacheSize < 0 {
		return errors.New("config: timeout, cache_ttl, max_rps and cache_size must not be negative")
	}
	if c.UploadConcurrency < 1 {
		return fmt.Errorf("config: upload_concurrency must be at least 1, got %d", c.UploadConcurrency)
	}
	return nil
}

// EnsureDir creates the directory for a SQLite DSN that is a file path.
func (c *Config) EnsureDir() error {
	if c.DBDriver != session.DriverSQLite || c.DBDSN == ":memory:" || strings.HasPrefix(c.DBDSN, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.DBDSN), 0o700); err != nil {
		return fmt.Errorf("config: create state directory: %w", err)
	}
	return nil
}
