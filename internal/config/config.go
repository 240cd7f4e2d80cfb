package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pders01/skim/internal/prefetch"
	"github.com/pders01/skim/internal/validation"
	"github.com/spf13/viper"
)

type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Buffer   BufferConfig   `mapstructure:"buffer"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	UI       UIConfig       `mapstructure:"ui"`
	Media    MediaConfig    `mapstructure:"media"`
	Keys     KeyConfig      `mapstructure:"keys"`
	Log      LogConfig      `mapstructure:"log"`
}

type FeedConfig struct {
	// Source is what skim opens when no feed is given on the command line:
	// a subreddit such as "r/rust" or any feed URL.
	Source            string        `mapstructure:"source"`
	Sort              string        `mapstructure:"sort"`
	PageSize          int           `mapstructure:"page_size"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
}

type BufferConfig struct {
	Size       int     `mapstructure:"size"`
	FrontRatio float64 `mapstructure:"front_ratio"`
	PageAhead  int     `mapstructure:"page_ahead"`
}

type CacheConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type DatabaseConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Archive stores every pulled page so the feed can be read offline.
	Archive bool `mapstructure:"archive"`
}

type UIConfig struct {
	Colors         UIColors      `mapstructure:"colors"`
	Article        ArticleConfig `mapstructure:"article"`
	ImmediatePosts bool          `mapstructure:"immediate_posts"`
	ShowTitleBars  bool          `mapstructure:"show_title_bars"`
	FrameInterval  time.Duration `mapstructure:"frame_interval"`
	IdleInterval   time.Duration `mapstructure:"idle_interval"`
}

type UIColors struct {
	Primary    string `mapstructure:"primary"`
	Secondary  string `mapstructure:"secondary"`
	Accent     string `mapstructure:"accent"`
	Background string `mapstructure:"background"`
	Surface    string `mapstructure:"surface"`
	Text       string `mapstructure:"text"`
	Muted      string `mapstructure:"muted"`
	Error      string `mapstructure:"error"`
	Success    string `mapstructure:"success"`
}

type ArticleConfig struct {
	WordWrapMaxWidth int `mapstructure:"word_wrap_max_width"`
	WordWrapMinWidth int `mapstructure:"word_wrap_min_width"`
}

type MediaConfig struct {
	Darwin        MediaPlayers `mapstructure:"darwin"`
	Linux         MediaPlayers `mapstructure:"linux"`
	Windows       MediaPlayers `mapstructure:"windows"`
	DefaultOpener string       `mapstructure:"default_opener"`
}

type MediaPlayers struct {
	Video []string `mapstructure:"video"`
	Image []string `mapstructure:"image"`
	Audio []string `mapstructure:"audio"`
	PDF   []string `mapstructure:"pdf"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings"`
}

type KeyBindings struct {
	Quit       string `mapstructure:"quit"`
	Search     string `mapstructure:"search"`
	SwitchFeed string `mapstructure:"switch_feed"`
	Refresh    string `mapstructure:"refresh"`
	Retry      string `mapstructure:"retry"`
	More       string `mapstructure:"more"`
	OpenMedia  string `mapstructure:"open_media"`
	Back       string `mapstructure:"back"`
	Help       string `mapstructure:"help"`
	Feeds      string `mapstructure:"feeds"`
	Delete     string `mapstructure:"delete"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	// Strict panics on internal protocol violations instead of logging them.
	Strict bool `mapstructure:"strict"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Feed: FeedConfig{
			Source:            "r/rust",
			Sort:              "hot",
			PageSize:          15,
			HTTPTimeout:       30 * time.Second,
			UserAgent:         "skim/1.0 (https://github.com/pders01/skim)",
			RequestsPerSecond: 1,
			MaxBodyBytes:      10 << 20,
		},
		Buffer: BufferConfig{
			Size:       prefetch.DefaultBufferSize,
			FrontRatio: prefetch.DefaultFrontRatio,
			PageAhead:  prefetch.DefaultBufferSize,
		},
		Cache: CacheConfig{
			Capacity: prefetch.DefaultCacheCapacity,
		},
		Database: DatabaseConfig{
			Path:    filepath.Join(homeDir, ".skim", "skim.db"),
			Timeout: 1 * time.Second,
			Archive: true,
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:    "#FF6B6B",
				Secondary:  "#4ECDC4",
				Accent:     "#95E1D3",
				Background: "#1A1A2E",
				Surface:    "#16213E",
				Text:       "#EAEAEA",
				Muted:      "#94A3B8",
				Error:      "#F87171",
				Success:    "#4ADE80",
			},
			Article: ArticleConfig{
				WordWrapMaxWidth: 120,
				WordWrapMinWidth: 40,
			},
			ImmediatePosts: false,
			ShowTitleBars:  true,
			FrameInterval:  16 * time.Millisecond,
			IdleInterval:   250 * time.Millisecond,
		},
		Media: MediaConfig{
			Darwin: MediaPlayers{
				Video: []string{"iina", "mpv", "vlc"},
				Image: []string{"preview", "open"},
				Audio: []string{"mpv", "vlc", "open"},
				PDF:   []string{"preview", "open"},
			},
			Linux: MediaPlayers{
				Video: []string{"mpv", "vlc", "mplayer"},
				Image: []string{"sxiv", "feh", "eog", "xdg-open"},
				Audio: []string{"mpv", "vlc", "mplayer"},
				PDF:   []string{"zathura", "evince", "xdg-open"},
			},
			Windows: MediaPlayers{
				Video: []string{"mpv", "vlc"},
				Image: []string{"start"},
				Audio: []string{"mpv", "vlc"},
				PDF:   []string{"start"},
			},
			DefaultOpener: getDefaultOpener(),
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:       "q",
				Search:     "s",
				SwitchFeed: "n",
				Refresh:    "r",
				Retry:      "e",
				More:       "l",
				OpenMedia:  "o",
				Back:       "esc",
				Help:       "?",
				Feeds:      "f",
				Delete:     "d",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "start"
	default:
		return "open"
	}
}

// envKeys are the settings that can be overridden with SKIM_* variables,
// e.g. SKIM_FEED_SOURCE or SKIM_LOG_LEVEL.
var envKeys = []string{
	"feed.source",
	"feed.sort",
	"feed.user_agent",
	"buffer.size",
	"cache.capacity",
	"database.path",
	"database.archive",
	"log.level",
	"log.file",
	"log.strict",
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "skim")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SKIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Decoding over the defaults keeps every key the file leaves out.
	config := defaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(config)
	config.Normalize()

	return config, nil
}

// Normalize clamps buffering values into their supported ranges and fills
// intervals that were set to zero.
func (c *Config) Normalize() {
	c.Buffer.Size = prefetch.ClampBufferSize(c.Buffer.Size)
	c.Buffer.FrontRatio = prefetch.ClampFrontRatio(c.Buffer.FrontRatio)
	if c.Buffer.PageAhead <= 0 {
		c.Buffer.PageAhead = c.Buffer.Size
	}
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = prefetch.DefaultCacheCapacity
	}
	c.Cache.Capacity = max(c.Cache.Capacity, c.Buffer.Size)

	c.Feed.PageSize = min(max(c.Feed.PageSize, 1), 100)
	if c.Feed.Sort == "" {
		c.Feed.Sort = "hot"
	}

	defaults := defaultConfig()
	if c.UI.FrameInterval <= 0 {
		c.UI.FrameInterval = defaults.UI.FrameInterval
	}
	if c.UI.IdleInterval <= 0 {
		c.UI.IdleInterval = defaults.UI.IdleInterval
	}
}

// PrefetchOptions maps the buffer, cache and log sections onto session options.
func (c *Config) PrefetchOptions() prefetch.Options {
	return prefetch.Options{
		BufferSize:    c.Buffer.Size,
		FrontRatio:    c.Buffer.FrontRatio,
		CacheCapacity: c.Cache.Capacity,
		PageAhead:     c.Buffer.PageAhead,
		Strict:        c.Log.Strict,
	}
}

// expandPath resolves ~ and relative paths. Invalid paths are kept as
// written so the component opening them reports the error.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	expanded, err := validation.ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations are written as strings for TOML readability
	v.Set("feed", map[string]any{
		"source":              config.Feed.Source,
		"sort":                config.Feed.Sort,
		"page_size":           config.Feed.PageSize,
		"http_timeout":        config.Feed.HTTPTimeout.String(),
		"user_agent":          config.Feed.UserAgent,
		"requests_per_second": config.Feed.RequestsPerSecond,
		"max_body_bytes":      config.Feed.MaxBodyBytes,
	})
	v.Set("buffer", map[string]any{
		"size":        config.Buffer.Size,
		"front_ratio": config.Buffer.FrontRatio,
		"page_ahead":  config.Buffer.PageAhead,
	})
	v.Set("cache", map[string]any{
		"capacity": config.Cache.Capacity,
	})
	v.Set("database", map[string]any{
		"path":    config.Database.Path,
		"timeout": config.Database.Timeout.String(),
		"archive": config.Database.Archive,
	})
	v.Set("ui", map[string]any{
		"immediate_posts": config.UI.ImmediatePosts,
		"show_title_bars": config.UI.ShowTitleBars,
		"frame_interval":  config.UI.FrameInterval.String(),
		"idle_interval":   config.UI.IdleInterval.String(),
		"colors": map[string]any{
			"primary":    config.UI.Colors.Primary,
			"secondary":  config.UI.Colors.Secondary,
			"accent":     config.UI.Colors.Accent,
			"background": config.UI.Colors.Background,
			"surface":    config.UI.Colors.Surface,
			"text":       config.UI.Colors.Text,
			"muted":      config.UI.Colors.Muted,
			"error":      config.UI.Colors.Error,
			"success":    config.UI.Colors.Success,
		},
		"article": map[string]any{
			"word_wrap_max_width": config.UI.Article.WordWrapMaxWidth,
			"word_wrap_min_width": config.UI.Article.WordWrapMinWidth,
		},
	})
	v.Set("media", map[string]any{
		"default_opener": config.Media.DefaultOpener,
		"darwin":         playersMap(config.Media.Darwin),
		"linux":          playersMap(config.Media.Linux),
		"windows":        playersMap(config.Media.Windows),
	})
	v.Set("keys", map[string]any{
		"modifier": config.Keys.Modifier,
		"bindings": map[string]any{
			"quit":        config.Keys.Bindings.Quit,
			"search":      config.Keys.Bindings.Search,
			"switch_feed": config.Keys.Bindings.SwitchFeed,
			"refresh":     config.Keys.Bindings.Refresh,
			"retry":       config.Keys.Bindings.Retry,
			"more":        config.Keys.Bindings.More,
			"open_media":  config.Keys.Bindings.OpenMedia,
			"back":        config.Keys.Bindings.Back,
			"help":        config.Keys.Bindings.Help,
			"feeds":       config.Keys.Bindings.Feeds,
			"delete":      config.Keys.Bindings.Delete,
		},
	})
	v.Set("log", map[string]any{
		"level":  config.Log.Level,
		"file":   config.Log.File,
		"strict": config.Log.Strict,
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func playersMap(p MediaPlayers) map[string]any {
	return map[string]any{
		"video": p.Video,
		"image": p.Image,
		"audio": p.Audio,
		"pdf":   p.PDF,
	}
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
