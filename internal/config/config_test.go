package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seriate/internal/services"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("missing file reported as existing")
	}
	if cfg.Feed.URL == "" {
		t.Fatal("default feed url empty")
	}
	if cfg.Grouping.MaxGapDays != 14 {
		t.Fatalf("max gap days = %d", cfg.Grouping.MaxGapDays)
	}
	if cfg.LLM.MaxCalls != -1 {
		t.Fatalf("max calls = %d", cfg.LLM.MaxCalls)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
[paths]
data_dir = "/tmp/seriate-test"

[feed]
url = "https://example.com/feed.xml"

[grouping]
max_gap_days = 7

[logging]
format = "JSON"
level = "Debug"
`)
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Grouping.MaxGapDays != 7 {
		t.Fatalf("max gap days = %d", cfg.Grouping.MaxGapDays)
	}
	if cfg.Paths.DatabasePath != filepath.Join("/tmp/seriate-test", "seriate.db") {
		t.Fatalf("database path = %q", cfg.Paths.DatabasePath)
	}
	if cfg.Grouping.OverridesPath != filepath.Join("/tmp/seriate-test", "series_overrides.json") {
		t.Fatalf("overrides path = %q", cfg.Grouping.OverridesPath)
	}
}

func TestLoadRejectsBadFeedURL(t *testing.T) {
	path := writeConfig(t, `
[feed]
url = "not a url"
`)
	_, _, _, err := Load(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	path := writeConfig(t, `
[logging]
format = "xml"
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnvOverridesAPIKey(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-secret")
	path := writeConfig(t, `
[llm]
api_key = "file-secret"
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "env-secret" {
		t.Fatalf("api key = %q", cfg.LLM.APIKey)
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	expanded, err := ExpandPath("~/data")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if !strings.HasPrefix(expanded, home) {
		t.Fatalf("expanded = %q", expanded)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("Load sample: exists=%v err=%v", exists, err)
	}
}
