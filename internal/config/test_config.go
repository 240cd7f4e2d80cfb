package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	cfg := defaultConfig()
	cfg.Database = DatabaseConfig{
		Path:    "",
		Timeout: 1 * time.Second,
	}
	cfg.Feed.HTTPTimeout = 5 * time.Second
	cfg.Feed.UserAgent = "skim-test/1.0"
	cfg.Feed.RequestsPerSecond = 0 // unlimited
	cfg.Buffer.Size = 10
	cfg.Buffer.PageAhead = 10
	cfg.Log.Strict = true
	return cfg
}
