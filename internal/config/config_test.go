package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestLoadReadsPortsAndFetchSettings(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("FETCH_MAX_ITEMS", "not-a-number")
	t.Setenv("RETENTION_DAYS", "7")

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.FetchTimeout != 3*time.Second {
		t.Fatalf("FetchTimeout = %v, want 3s", cfg.FetchTimeout)
	}
	// 非法值回落到默认值
	if cfg.FetchMaxItems != 20 {
		t.Fatalf("FetchMaxItems = %d, want 20", cfg.FetchMaxItems)
	}
	if cfg.RetentionWindow() != 7*24*time.Hour {
		t.Fatalf("RetentionWindow = %v, want 168h", cfg.RetentionWindow())
	}
}

func TestLoadSourcesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	content := `sources:
  - code: club
    name: Club Official
    url: https://club.example.com/rss
    tier: official
  - code: blog
    name: Fan Blog
    url: https://blog.example.com/feed
    active: false
  - name: Broken
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	srcs, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources error: %v", err)
	}
	if len(srcs) != 2 {
		t.Fatalf("expected 2 valid sources, got %d", len(srcs))
	}
	if srcs[0].Tier != "official" || !srcs[0].IsActive() {
		t.Fatalf("unexpected first source: %+v", srcs[0])
	}
	// 未配置 tier 的源默认为 tier3
	if srcs[1].Tier != "tier3" || srcs[1].IsActive() {
		t.Fatalf("unexpected second source: %+v", srcs[1])
	}
	if srcs[1].Language != "en" {
		t.Fatalf("language default = %q, want en", srcs[1].Language)
	}
}

func TestSourcesFallsBackToDefaults(t *testing.T) {
	cfg := &Config{}
	srcs, err := cfg.Sources()
	if err != nil {
		t.Fatalf("Sources error: %v", err)
	}
	if len(srcs) == 0 {
		t.Fatalf("expected built-in sources")
	}
}
