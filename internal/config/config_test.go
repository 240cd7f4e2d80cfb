package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/pders01/skim/internal/prefetch"
)

func TestGetDefaultOpener(t *testing.T) {
	expected := map[string]string{
		"darwin":  "open",
		"linux":   "xdg-open",
		"windows": "start",
	}

	opener := getDefaultOpener()

	if expectedOpener, ok := expected[runtime.GOOS]; ok {
		if opener != expectedOpener {
			t.Errorf("getDefaultOpener() = %s, want %s for %s", opener, expectedOpener, runtime.GOOS)
		}
	} else if opener != "open" {
		t.Errorf("getDefaultOpener() = %s, want 'open' for unknown OS", opener)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Feed.Source != "r/rust" {
		t.Errorf("Feed.Source = %q, want r/rust", cfg.Feed.Source)
	}
	if cfg.Feed.PageSize != 15 {
		t.Errorf("Feed.PageSize = %d, want 15", cfg.Feed.PageSize)
	}
	if cfg.Feed.HTTPTimeout != 30*time.Second {
		t.Errorf("Feed.HTTPTimeout = %v, want 30s", cfg.Feed.HTTPTimeout)
	}
	if cfg.Buffer.Size != 25 || cfg.Buffer.FrontRatio != 0.75 {
		t.Errorf("Buffer = %+v, want size 25 ratio 0.75", cfg.Buffer)
	}
	if cfg.Cache.Capacity != 250 {
		t.Errorf("Cache.Capacity = %d, want 250", cfg.Cache.Capacity)
	}
	if !cfg.Database.Archive {
		t.Error("Database.Archive should default to true")
	}
	if cfg.Media.DefaultOpener == "" {
		t.Error("Media.DefaultOpener should not be empty")
	}
	if cfg.Keys.Bindings.Quit != "q" {
		t.Errorf("Keys.Bindings.Quit = %s, want 'q'", cfg.Keys.Bindings.Quit)
	}
	if cfg.Log.Strict {
		t.Error("Log.Strict should default to false")
	}
}

func TestLoad_DefaultConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Buffer.Size != prefetch.DefaultBufferSize {
		t.Errorf("Buffer.Size = %d, want %d", cfg.Buffer.Size, prefetch.DefaultBufferSize)
	}
	if cfg.UI.FrameInterval != 16*time.Millisecond {
		t.Errorf("UI.FrameInterval = %v, want 16ms", cfg.UI.FrameInterval)
	}
}

func TestLoad_FromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test-config.toml")
	configContent := `
[feed]
source = "https://example.com/feed.xml"
http_timeout = "60s"
user_agent = "test-agent"

[buffer]
size = 12
front_ratio = 0.5

[database]
path = "/tmp/test.db"
archive = false

[ui.colors]
primary = "#FF0000"

[log]
strict = true
`

	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Feed.Source != "https://example.com/feed.xml" {
		t.Errorf("Feed.Source = %s", cfg.Feed.Source)
	}
	if cfg.Feed.HTTPTimeout != 60*time.Second {
		t.Errorf("Feed.HTTPTimeout = %v, want 60s", cfg.Feed.HTTPTimeout)
	}
	if cfg.Feed.UserAgent != "test-agent" {
		t.Errorf("Feed.UserAgent = %s, want 'test-agent'", cfg.Feed.UserAgent)
	}
	if cfg.Feed.PageSize != 15 {
		t.Errorf("Feed.PageSize = %d, keys missing from the file should keep defaults", cfg.Feed.PageSize)
	}
	if cfg.Buffer.Size != 12 || cfg.Buffer.FrontRatio != 0.5 {
		t.Errorf("Buffer = %+v", cfg.Buffer)
	}
	if cfg.Database.Path != "/tmp/test.db" || cfg.Database.Archive {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.UI.Colors.Primary != "#FF0000" {
		t.Errorf("UI.Colors.Primary = %s, want '#FF0000'", cfg.UI.Colors.Primary)
	}
	if cfg.UI.Colors.Secondary != "#4ECDC4" {
		t.Errorf("UI.Colors.Secondary = %s, want the default", cfg.UI.Colors.Secondary)
	}
	if !cfg.Log.Strict {
		t.Error("Log.Strict should be true")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.toml")
	if err := os.WriteFile(configPath, []byte("[feed]\nsource = \"r/golang\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SKIM_FEED_SOURCE", "r/programming")
	t.Setenv("SKIM_LOG_LEVEL", "debug")
	t.Setenv("SKIM_BUFFER_SIZE", "30")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Feed.Source != "r/programming" {
		t.Errorf("Feed.Source = %s, want env override", cfg.Feed.Source)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
	if cfg.Buffer.Size != 30 {
		t.Errorf("Buffer.Size = %d, want 30", cfg.Buffer.Size)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(configPath, []byte("[feed\nsource = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("Load() should fail on malformed TOML")
	}
}

func TestNormalize(t *testing.T) {
	cfg := defaultConfig()
	cfg.Buffer.Size = 500
	cfg.Buffer.FrontRatio = 2
	cfg.Buffer.PageAhead = 0
	cfg.Cache.Capacity = 10
	cfg.Feed.PageSize = 0
	cfg.UI.FrameInterval = 0

	cfg.Normalize()

	if cfg.Buffer.Size != prefetch.MaxBufferSize {
		t.Errorf("Buffer.Size = %d, want %d", cfg.Buffer.Size, prefetch.MaxBufferSize)
	}
	if cfg.Buffer.FrontRatio != 1 {
		t.Errorf("Buffer.FrontRatio = %v, want 1", cfg.Buffer.FrontRatio)
	}
	if cfg.Buffer.PageAhead != cfg.Buffer.Size {
		t.Errorf("Buffer.PageAhead = %d, want %d", cfg.Buffer.PageAhead, cfg.Buffer.Size)
	}
	if cfg.Cache.Capacity != cfg.Buffer.Size {
		t.Errorf("Cache.Capacity = %d, should grow to hold a whole window", cfg.Cache.Capacity)
	}
	if cfg.Feed.PageSize != 1 {
		t.Errorf("Feed.PageSize = %d, want 1", cfg.Feed.PageSize)
	}
	if cfg.UI.FrameInterval <= 0 {
		t.Error("UI.FrameInterval should be restored")
	}
}

func TestPrefetchOptions(t *testing.T) {
	cfg := TestConfig()
	opts := cfg.PrefetchOptions()

	if opts.BufferSize != 10 || opts.PageAhead != 10 {
		t.Errorf("options = %+v", opts)
	}
	if opts.CacheCapacity != cfg.Cache.Capacity {
		t.Errorf("CacheCapacity = %d, want %d", opts.CacheCapacity, cfg.Cache.Capacity)
	}
	if !opts.Strict {
		t.Error("test config should be strict")
	}
}

func TestSave(t *testing.T) {
	cfg := defaultConfig()
	cfg.Feed.Source = "r/golang"
	cfg.Feed.HTTPTimeout = 45 * time.Second
	cfg.Buffer.Size = 7
	cfg.Database.Path = "/test/path.db"
	cfg.UI.Colors.Primary = "#00FF00"
	cfg.UI.Article.WordWrapMaxWidth = 90
	cfg.Keys.Bindings.Quit = "x"

	savePath := filepath.Join(t.TempDir(), "nested", "saved-config.toml")
	if err := Save(cfg, savePath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(savePath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Feed.Source != "r/golang" {
		t.Errorf("Loaded Feed.Source = %s", loaded.Feed.Source)
	}
	if loaded.Feed.HTTPTimeout != 45*time.Second {
		t.Errorf("Loaded Feed.HTTPTimeout = %v", loaded.Feed.HTTPTimeout)
	}
	if loaded.Buffer.Size != 7 {
		t.Errorf("Loaded Buffer.Size = %d", loaded.Buffer.Size)
	}
	if loaded.Database.Path != cfg.Database.Path {
		t.Errorf("Loaded Database.Path = %s, want %s", loaded.Database.Path, cfg.Database.Path)
	}
	if loaded.UI.Colors.Primary != "#00FF00" {
		t.Errorf("Loaded UI.Colors.Primary = %s", loaded.UI.Colors.Primary)
	}
	if loaded.UI.Article.WordWrapMaxWidth != 90 {
		t.Errorf("Loaded UI.Article.WordWrapMaxWidth = %d", loaded.UI.Article.WordWrapMaxWidth)
	}
	if loaded.Keys.Bindings.Quit != "x" {
		t.Errorf("Loaded Keys.Bindings.Quit = %s", loaded.Keys.Bindings.Quit)
	}
}

func TestGenerateDefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "generated.toml")
	if err := GenerateDefaultConfig(configPath); err != nil {
		t.Fatalf("GenerateDefaultConfig() error = %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}

	if cfg.Keys.Modifier != "ctrl" {
		t.Errorf("Generated config has Keys.Modifier = %s, want 'ctrl'", cfg.Keys.Modifier)
	}
	if cfg.Cache.Capacity != 250 {
		t.Errorf("Generated config has Cache.Capacity = %d, want 250", cfg.Cache.Capacity)
	}
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()

	if cfg.Database.Path != "" {
		t.Errorf("TestConfig Database.Path = %s, want empty", cfg.Database.Path)
	}
	if cfg.Feed.UserAgent != "skim-test/1.0" {
		t.Errorf("TestConfig Feed.UserAgent = %s, want 'skim-test/1.0'", cfg.Feed.UserAgent)
	}
}
