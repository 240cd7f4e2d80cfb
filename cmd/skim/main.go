package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/debuglog"
	"github.com/pders01/skim/internal/feed"
	"github.com/pders01/skim/internal/media"
	"github.com/pders01/skim/internal/search"
	"github.com/pders01/skim/internal/storage"
	"github.com/pders01/skim/internal/tui"
	"github.com/pders01/skim/internal/validation"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type rootOptions struct {
	configPath string
	dbPath     string
	offline    bool
	quiet      bool
	permissive bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "skim [feed]",
		Short:         "Buffered feed reader for the terminal",
		Long:          "skim reads subreddits and RSS/Atom feeds, fetching posts and their content in the background while you read.",
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			if len(args) == 1 {
				source = args[0]
			}
			if err := run(cmd.Context(), opts, source); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return err
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("skim {{.Version}}\n")

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.config/skim/config.toml)")
	flags.StringVar(&opts.dbPath, "db", "", "database path, overrides the config")
	flags.BoolVar(&opts.offline, "offline", false, "read archived feeds without touching the network")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "disable logging")
	flags.BoolVar(&opts.permissive, "allow-private", false, "allow feeds on localhost and private networks")

	cmd.AddCommand(newVersionCmd(), newConfigCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	var banner bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout(), banner)
		},
	}
	cmd.Flags().BoolVar(&banner, "banner", false, "show the logo")
	return cmd
}

func printVersion(w io.Writer, banner bool) {
	if banner {
		fmt.Fprintln(w, tui.Banner(Version))
		return
	}
	fmt.Fprintf(w, "skim %s\n", Version)
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			written, err := generateConfig(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", written)
			return nil
		},
	})
	return cmd
}

// generateConfig writes the defaults to path, or to the standard location
// when path is empty. It refuses to overwrite an existing file.
func generateConfig(path string) (string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "skim", "config.toml")
	}
	path, err := validation.PrepareFile(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config already exists at %s", path)
	}
	if err := config.GenerateDefaultConfig(path); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}
	return path, nil
}

func run(ctx context.Context, opts *rootOptions, source string) error {
	// .env is optional; SKIM_* variables may come from it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}

	level := debuglog.ParseLogLevel(cfg.Log.Level)
	if opts.quiet {
		level = debuglog.LevelOff
	}
	if err := debuglog.Setup(level, cfg.Log.File); err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer debuglog.Close()

	tui.ApplyColors(cfg.UI.Colors)

	store, err := openStore(cfg, opts.offline)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	detector, err := media.NewTypeDetector()
	if err != nil {
		return fmt.Errorf("loading media types: %w", err)
	}
	manager := feed.NewManager(store, cfg, detector)
	if opts.permissive {
		manager.SetPermissiveValidation(true)
	}

	index, err := search.NewIndex()
	if err != nil {
		return fmt.Errorf("creating search index: %w", err)
	}
	defer index.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := tui.NewApp(ctx, cfg, manager, index, media.NewLauncher(&cfg.Media, detector), tui.Options{
		Source:  source,
		Offline: opts.offline,
	})
	defer app.Close()

	debuglog.Infof("skim %s starting", Version)
	if _, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// openStore opens the archive database. Without archiving the database is
// optional; offline reading requires it.
func openStore(cfg *config.Config, offline bool) (*storage.Store, error) {
	if !cfg.Database.Archive && !offline {
		return nil, nil
	}
	path, err := validation.PrepareFile(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}
	store, err := storage.NewStore(path, cfg.Database.Timeout)
	if err != nil {
		if offline {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		debuglog.Warnf("archiving disabled: %v", err)
		return nil, nil
	}
	return store, nil
}
