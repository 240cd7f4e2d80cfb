package media

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/debuglog"
)

// Launcher opens links in external applications chosen by media type.
type Launcher struct {
	players       map[Type]string
	defaultOpener string
	detector      *TypeDetector
	lookPath      func(string) (string, error)
}

func NewLauncher(cfg *config.MediaConfig, detector *TypeDetector) *Launcher {
	return newLauncher(cfg, detector, exec.LookPath)
}

func newLauncher(cfg *config.MediaConfig, detector *TypeDetector, lookPath func(string) (string, error)) *Launcher {
	l := &Launcher{
		players:       make(map[Type]string),
		defaultOpener: cfg.DefaultOpener,
		detector:      detector,
		lookPath:      lookPath,
	}
	if l.defaultOpener == "" {
		l.defaultOpener = detector.GetDefaultOpener()
	}

	players := platformPlayers(cfg, runtime.GOOS)
	for typ, candidates := range map[Type][]string{
		TypeVideo: players.Video,
		TypeImage: players.Image,
		TypeAudio: players.Audio,
		TypePDF:   players.PDF,
	} {
		if name := l.findCommand(candidates); name != "" {
			l.players[typ] = name
		}
	}

	return l
}

func platformPlayers(cfg *config.MediaConfig, goos string) config.MediaPlayers {
	switch goos {
	case "linux":
		return cfg.Linux
	case "windows":
		return cfg.Windows
	default:
		return cfg.Darwin
	}
}

// Player returns the application chosen for t, falling back to the default
// opener.
func (l *Launcher) Player(t Type) string {
	if name, ok := l.players[t]; ok {
		return name
	}
	return l.defaultOpener
}

// Command builds the command that opens rawURL without starting it.
func (l *Launcher) Command(rawURL string) (*exec.Cmd, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("no link to open")
	}
	t := l.detector.DetectType(rawURL)
	name := l.Player(t)
	if name == "" {
		return nil, fmt.Errorf("no application found for %s links", t)
	}

	args := append([]string{}, l.detector.PlayerArgs(name)...)
	args = append(args, rawURL)
	return exec.Command(name, args...), nil
}

// Open starts the external application detached from skim.
func (l *Launcher) Open(rawURL string) error {
	cmd, err := l.Command(rawURL)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	debuglog.Infof("opened %s with %s", rawURL, cmd.Path)

	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func (l *Launcher) findCommand(commands []string) string {
	for _, cmd := range commands {
		if _, err := l.lookPath(cmd); err == nil {
			return cmd
		}
	}
	return ""
}
