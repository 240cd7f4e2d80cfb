package media

import (
	_ "embed"
	"fmt"
	"net/url"
	"path"
	"runtime"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed media_types.toml
var mediaTypesTOML []byte

type Type int

const (
	TypeUnknown Type = iota
	TypeVideo
	TypeImage
	TypeAudio
	TypePDF
)

func (t Type) String() string {
	switch t {
	case TypeVideo:
		return "video"
	case TypeImage:
		return "image"
	case TypeAudio:
		return "audio"
	case TypePDF:
		return "pdf"
	default:
		return "unknown"
	}
}

type rule struct {
	Extensions []string `toml:"extensions"`
	Hosts      []string `toml:"hosts"`
	Decodable  []string `toml:"decodable"`
}

type platform struct {
	DefaultOpener string `toml:"default_opener"`
}

type player struct {
	Args []string `toml:"args"`
}

type typesFile struct {
	Video     rule                `toml:"video"`
	Audio     rule                `toml:"audio"`
	Image     rule                `toml:"image"`
	PDF       rule                `toml:"pdf"`
	Platforms map[string]platform `toml:"platforms"`
	Players   map[string]player   `toml:"players"`
}

// TypeDetector classifies links by extension and host.
type TypeDetector struct {
	types *typesFile
}

func NewTypeDetector() (*TypeDetector, error) {
	var types typesFile
	if err := toml.Unmarshal(mediaTypesTOML, &types); err != nil {
		return nil, fmt.Errorf("parsing media_types.toml: %w", err)
	}
	return &TypeDetector{types: &types}, nil
}

// DetectType classifies rawURL. Extensions win over host patterns, so a PNG
// on a video site is still an image.
func (d *TypeDetector) DetectType(rawURL string) Type {
	host, ext := splitURL(rawURL)

	if ext != "" {
		for _, c := range d.rules() {
			if slices.Contains(c.rule.Extensions, ext) {
				return c.typ
			}
		}
	}
	if host != "" {
		for _, c := range d.rules() {
			if matchesHost(host, c.rule.Hosts) {
				return c.typ
			}
		}
	}
	return TypeUnknown
}

// Decodable reports whether rawURL points at an image format skim renders
// inline.
func (d *TypeDetector) Decodable(rawURL string) bool {
	_, ext := splitURL(rawURL)
	return ext != "" && slices.Contains(d.types.Image.Decodable, ext)
}

// TypeForContentType maps a Content-Type header value to a Type.
func TypeForContentType(contentType string) Type {
	major, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), "/")
	switch {
	case major == "image":
		return TypeImage
	case major == "video":
		return TypeVideo
	case major == "audio":
		return TypeAudio
	case strings.HasPrefix(strings.ToLower(contentType), "application/pdf"):
		return TypePDF
	default:
		return TypeUnknown
	}
}

func (d *TypeDetector) GetDefaultOpener() string {
	if p, ok := d.types.Platforms[runtime.GOOS]; ok {
		return p.DefaultOpener
	}
	if p, ok := d.types.Platforms["fallback"]; ok {
		return p.DefaultOpener
	}
	return "open"
}

// PlayerArgs returns the extra arguments configured for a player binary.
func (d *TypeDetector) PlayerArgs(name string) []string {
	return d.types.Players[name].Args
}

type classified struct {
	typ  Type
	rule rule
}

func (d *TypeDetector) rules() []classified {
	return []classified{
		{TypeVideo, d.types.Video},
		{TypeAudio, d.types.Audio},
		{TypeImage, d.types.Image},
		{TypePDF, d.types.PDF},
	}
}

func splitURL(rawURL string) (host, ext string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ""
	}
	ext = strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	return strings.ToLower(u.Hostname()), ext
}

func matchesHost(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
