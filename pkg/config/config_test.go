package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/runghost/runghost/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
workspace = "/srv/workspace"
scan_depth = 6

[server]
addr = ":9000"

[cache]
backend = "redis"
redis_url = "redis://localhost:6379/1"

[registry]
url = "https://registry.example.org"
requests_per_second = 4.5
workers = 2

[ttl]
scan = "1m"
listing = "30m"
package = "12h"

[identities.acme]
username = "acme-dev"
scope = "@acme"

[identities.ghost]
username = "runghost"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	if cfg.Workspace != "/srv/workspace" {
		t.Errorf("Workspace = %q", cfg.Workspace)
	}
	if cfg.ScanDepth != 6 {
		t.Errorf("ScanDepth = %d, want 6", cfg.ScanDepth)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("Cache.Backend = %q", cfg.Cache.Backend)
	}
	if cfg.TTL.Scan.Std() != time.Minute {
		t.Errorf("TTL.Scan = %v, want 1m", cfg.TTL.Scan.Std())
	}
	if cfg.TTL.Package.Std() != 12*time.Hour {
		t.Errorf("TTL.Package = %v, want 12h", cfg.TTL.Package.Std())
	}
	if got := cfg.Identities["acme"].Scope; got != "@acme" {
		t.Errorf("acme scope = %q", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `workspace = "/srv/ws"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ScanDepth != 4 {
		t.Errorf("ScanDepth = %d, want default 4", cfg.ScanDepth)
	}
	if cfg.Registry.Workers != 8 {
		t.Errorf("Registry.Workers = %d, want default 8", cfg.Registry.Workers)
	}
	if cfg.TTL.Scan.Std() != 5*time.Minute {
		t.Errorf("TTL.Scan = %v, want default 5m", cfg.TTL.Scan.Std())
	}
	if cfg.TTL.Listing.Std() != time.Hour {
		t.Errorf("TTL.Listing = %v, want default 1h", cfg.TTL.Listing.Std())
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("Cache.Backend = %q, want sqlite", cfg.Cache.Backend)
	}
}

func TestLoad_EnvOverridesWorkspace(t *testing.T) {
	path := writeConfig(t, `workspace = "/from/file"`)
	t.Setenv(EnvWorkspace, "/from/env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Workspace != "/from/env" {
		t.Errorf("Workspace = %q, want env override", cfg.Workspace)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvWorkspace, "/env/ws")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() failed for missing file: %v", err)
	}
	if cfg.Workspace != "/env/ws" {
		t.Errorf("Workspace = %q", cfg.Workspace)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing workspace", func(c *Config) { c.Workspace = "" }, true},
		{"scope without @", func(c *Config) {
			c.Identities["x"] = Identity{Username: "u", Scope: "acme"}
		}, true},
		{"identity without username", func(c *Config) {
			c.Identities["x"] = Identity{Scope: "@acme"}
		}, true},
		{"bad backend", func(c *Config) { c.Cache.Backend = "etcd" }, true},
		{"zero workers", func(c *Config) { c.Registry.Workers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Workspace = "/srv/ws"
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeConfigInvalid) {
				t.Errorf("error code = %q, want CONFIG_INVALID", errors.GetCode(err))
			}
		})
	}
}

func TestScopes(t *testing.T) {
	cfg := Default()
	cfg.Identities = map[string]Identity{
		"acme":  {Username: "acme-dev", Scope: "@acme"},
		"ghost": {Username: "runghost"},
	}
	scopes := cfg.Scopes()
	if len(scopes) != 1 || scopes[0] != "@acme" {
		t.Errorf("Scopes() = %v, want [@acme]", scopes)
	}
}

func TestString_RedactsTokens(t *testing.T) {
	cfg := Default()
	cfg.Workspace = "/srv/ws"
	cfg.Identities["acme"] = Identity{Username: "u", Token: "sekret"}
	if s := cfg.String(); s == "" || strings.Contains(s, "sekret") {
		t.Errorf("String() = %q should not include tokens", s)
	}
}
