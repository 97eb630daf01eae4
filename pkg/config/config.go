// Package config loads the RunGhost configuration from a TOML file.
//
// The configuration is read once at process start and is immutable for the
// lifetime of every request. The workspace path can be overridden with the
// RUNGHOST_WORKSPACE environment variable, which takes precedence over the
// file value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/runghost/runghost/pkg/errors"
)

// EnvWorkspace overrides the configured workspace path.
const EnvWorkspace = "RUNGHOST_WORKSPACE"

// Duration wraps time.Duration so TTLs can be written as "5m" in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Identity binds a human-readable id to a GitHub username and an optional
// registry scope.
type Identity struct {
	Username string `toml:"username"`
	Scope    string `toml:"scope"`
	Token    string `toml:"token"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `toml:"addr"`
}

// Cache selects and configures the store backend.
type Cache struct {
	Backend       string `toml:"backend"` // "sqlite", "redis", "mongo", "memory"
	Path          string `toml:"path"`    // sqlite database file
	RedisURL      string `toml:"redis_url"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// Registry configures the package registry client.
type Registry struct {
	URL               string  `toml:"url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Workers           int     `toml:"workers"`
}

// TTL holds the advisory freshness windows. forceRefresh bypasses them.
type TTL struct {
	Scan    Duration `toml:"scan"`
	Listing Duration `toml:"listing"`
	Package Duration `toml:"package"`
}

// Config is the root configuration value.
type Config struct {
	Workspace  string              `toml:"workspace"`
	ScanDepth  int                 `toml:"scan_depth"`
	Server     Server              `toml:"server"`
	Cache      Cache               `toml:"cache"`
	Registry   Registry            `toml:"registry"`
	TTL        TTL                 `toml:"ttl"`
	Identities map[string]Identity `toml:"identities"`
}

// Default returns a Config with every knob at its default.
func Default() *Config {
	cacheDir, _ := os.UserCacheDir()
	return &Config{
		ScanDepth: 4,
		Server:    Server{Addr: ":8090"},
		Cache: Cache{
			Backend:       "sqlite",
			Path:          filepath.Join(cacheDir, "runghost", "cache.db"),
			MongoDatabase: "runghost",
		},
		Registry: Registry{
			URL:               "https://registry.npmjs.org",
			RequestsPerSecond: 10,
			Workers:           8,
		},
		TTL: TTL{
			Scan:    Duration(5 * time.Minute),
			Listing: Duration(time.Hour),
			Package: Duration(6 * time.Hour),
		},
		Identities: map[string]Identity{},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "runghost", "config.toml")
}

// Load reads the configuration from path, falling back to defaults for
// missing fields. A missing file is not an error; the env override may still
// provide the workspace. Call [Config.Validate] before use.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, err, "parsing %s", path)
	}

	if ws := os.Getenv(EnvWorkspace); ws != "" {
		cfg.Workspace = ws
	}
	cfg.Workspace = expandHome(cfg.Workspace)
	return cfg, nil
}

// Validate checks the invariants the rest of the system assumes.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return errors.New(errors.ErrCodeConfigInvalid,
			"workspace path missing (set workspace in config or %s)", EnvWorkspace)
	}
	for id, ident := range c.Identities {
		if ident.Username == "" {
			return errors.New(errors.ErrCodeConfigInvalid, "identity %s: username missing", id)
		}
		if ident.Scope != "" && !strings.HasPrefix(ident.Scope, "@") {
			return errors.New(errors.ErrCodeConfigInvalid,
				"identity %s: scope %q must start with @", id, ident.Scope)
		}
	}
	switch c.Cache.Backend {
	case "sqlite", "redis", "mongo", "memory":
	default:
		return errors.New(errors.ErrCodeConfigInvalid,
			"unknown cache backend %q", c.Cache.Backend)
	}
	if c.Registry.Workers <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "registry workers must be positive")
	}
	return nil
}

// Scopes returns the configured registry scopes, one per identity that has
// one, in no particular order.
func (c *Config) Scopes() []string {
	var scopes []string
	for _, ident := range c.Identities {
		if ident.Scope != "" {
			scopes = append(scopes, ident.Scope)
		}
	}
	return scopes
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// String renders a redacted summary for debug logging. Tokens never appear.
func (c *Config) String() string {
	return fmt.Sprintf("workspace=%s identities=%d backend=%s registry=%s",
		c.Workspace, len(c.Identities), c.Cache.Backend, c.Registry.URL)
}
