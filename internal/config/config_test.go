package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig documents the defaults; a failing case means a default changed.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("depth is 3", func(t *testing.T) {
		t.Parallel()
		if cfg.Depth != 3 {
			t.Errorf("expected Depth 3, got %d", cfg.Depth)
		}
	})

	t.Run("pools are 16 workers each", func(t *testing.T) {
		t.Parallel()
		if cfg.Downloaders != 16 || cfg.Extractors != 16 {
			t.Errorf("expected 16/16 workers, got %d/%d", cfg.Downloaders, cfg.Extractors)
		}
	})

	t.Run("per-host cap is 2", func(t *testing.T) {
		t.Parallel()
		if cfg.PerHost != 2 {
			t.Errorf("expected PerHost 2, got %d", cfg.PerHost)
		}
	})

	t.Run("timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("shutdown timeout is 1 second", func(t *testing.T) {
		t.Parallel()
		if cfg.ShutdownTimeout != time.Second {
			t.Errorf("expected ShutdownTimeout 1s, got %v", cfg.ShutdownTimeout)
		}
	})

	t.Run("tor is off", func(t *testing.T) {
		t.Parallel()
		if cfg.UseTor || cfg.ProxyAddress != "" {
			t.Error("expected direct connections by default")
		}
	})

	t.Run("db dir is the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("kafka topic has a default", func(t *testing.T) {
		t.Parallel()
		if cfg.KafkaTopic != DefaultKafkaTopic {
			t.Errorf("expected KafkaTopic %q, got %q", DefaultKafkaTopic, cfg.KafkaTopic)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://example.com/"}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid config", modify: func(*Config) {}, wantErr: nil},
		{name: "no targets", modify: func(c *Config) { c.Targets = nil }, wantErr: ErrNoTarget},
		{name: "zero depth", modify: func(c *Config) { c.Depth = 0 }, wantErr: ErrInvalidDepth},
		{name: "zero downloaders", modify: func(c *Config) { c.Downloaders = 0 }, wantErr: ErrInvalidDownloaders},
		{name: "negative extractors", modify: func(c *Config) { c.Extractors = -1 }, wantErr: ErrInvalidExtractors},
		{name: "zero per host", modify: func(c *Config) { c.PerHost = 0 }, wantErr: ErrInvalidPerHost},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero batch size", modify: func(c *Config) { c.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{name: "negative delay", modify: func(c *Config) { c.CrawlDelay = -time.Second }, wantErr: ErrInvalidCrawlDelay},
		{name: "zero delay is fine", modify: func(c *Config) { c.CrawlDelay = 0 }, wantErr: nil},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
		{
			name:    "json and markdown",
			modify:  func(c *Config) { c.JSONReport, c.MarkdownReport = true, true },
			wantErr: ErrConflictingReportFormats,
		},
		{
			name:    "proxy and tor",
			modify:  func(c *Config) { c.UseTor, c.ProxyAddress = true, "127.0.0.1:9050" },
			wantErr: ErrConflictingProxy,
		},
		{
			name:    "allow-host and same-site",
			modify:  func(c *Config) { c.SameSite, c.AllowedHosts = true, []string{"example.com"} },
			wantErr: ErrConflictingHostFilter,
		},
		{
			name:    "kafka without topic",
			modify:  func(c *Config) { c.KafkaBrokers, c.KafkaTopic = []string{"localhost:9092"}, "" },
			wantErr: ErrMissingKafkaTopic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, expected %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	file := &File{
		Defaults: SiteConfig{
			Cookie:         "default=1",
			Depth:          2,
			Headers:        map[string]string{"Accept-Language": "en", "X-Team": "crawl"},
			IgnorePatterns: []string{"*.pdf"},
		},
		Sites: map[string]SiteConfig{
			"docs.example.com": {
				Cookie:       "session=abc",
				Headers:      map[string]string{"X-Team": "docs"},
				AllowedHosts: []string{"docs.example.com", "cdn.example.com"},
			},
		},
	}

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		got := file.GetSiteConfig("other.example.com")
		if got.Cookie != "default=1" || got.Depth != 2 {
			t.Errorf("unexpected config: %+v", got)
		}
	})

	t.Run("site values override defaults", func(t *testing.T) {
		t.Parallel()

		got := file.GetSiteConfig("docs.example.com")
		if got.Cookie != "session=abc" {
			t.Errorf("Cookie = %q", got.Cookie)
		}
		if got.Depth != 2 {
			t.Errorf("Depth = %d, expected the default", got.Depth)
		}
		if got.Headers["X-Team"] != "docs" || got.Headers["Accept-Language"] != "en" {
			t.Errorf("Headers = %v", got.Headers)
		}
		if len(got.AllowedHosts) != 2 {
			t.Errorf("AllowedHosts = %v", got.AllowedHosts)
		}
		if len(got.IgnorePatterns) != 1 {
			t.Errorf("IgnorePatterns = %v", got.IgnorePatterns)
		}
	})

	t.Run("merging does not modify the defaults", func(t *testing.T) {
		t.Parallel()

		_ = file.GetSiteConfig("docs.example.com")
		if file.Defaults.Headers["X-Team"] != "crawl" {
			t.Errorf("defaults were modified: %v", file.Defaults.Headers)
		}
	})
}

func TestConfigSiteFor(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if got := cfg.SiteFor("example.com"); got.Cookie != "" || got.Depth != 0 {
		t.Errorf("expected zero SiteConfig without a file, got %+v", got)
	}

	cfg.SiteConfigs = &File{Sites: map[string]SiteConfig{"example.com": {Depth: 7}}}
	if got := cfg.SiteFor("example.com"); got.Depth != 7 {
		t.Errorf("Depth = %d, expected 7", got.Depth)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.hostcrawl")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `defaults:
  depth: 4
  ignorePatterns:
    - "/logout*"
sites:
  docs.example.com:
    depth: 6
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
    allowedHosts:
      - docs.example.com
      - cdn.example.com
    followPatterns:
      - "/guide/*"
`
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.Depth != 4 || len(cfg.Defaults.IgnorePatterns) != 1 {
			t.Errorf("unexpected defaults: %+v", cfg.Defaults)
		}

		site, ok := cfg.Sites["docs.example.com"]
		if !ok {
			t.Fatal("expected docs.example.com in sites")
		}
		if site.Depth != 6 || site.Cookie != "session=xyz" {
			t.Errorf("unexpected site: %+v", site)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Error("expected Authorization header")
		}
		if len(site.AllowedHosts) != 2 || len(site.FollowPatterns) != 1 {
			t.Errorf("unexpected lists: %+v", site)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfigFile(configPath)
		if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("expected parse error, got %v", err)
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte("defaults:\n  depth: 2\n"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		if filepath.Base(dir) != AppName {
			t.Errorf("%s dir %q does not end in %q", name, dir, AppName)
		}
	}
}
