package validation

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL    = errors.New("invalid URL")
	ErrForbiddenHost = errors.New("host not permitted")
)

// FeedURLValidator checks URLs before skim requests them: feed sources typed
// by the user and the item links the resolver follows.
type FeedURLValidator struct {
	// AllowLocalhost determines if localhost URLs are permitted
	AllowLocalhost bool
	// AllowPrivateIPs determines if private IP addresses are permitted
	AllowPrivateIPs bool
	MaxLength       int
}

// NewFeedURLValidator creates a new validator with secure defaults
func NewFeedURLValidator() *FeedURLValidator {
	return &FeedURLValidator{MaxLength: 2048}
}

// NewPermissiveFeedURLValidator allows loopback and private hosts, for local
// development and tests.
func NewPermissiveFeedURLValidator() *FeedURLValidator {
	return &FeedURLValidator{
		AllowLocalhost:  true,
		AllowPrivateIPs: true,
		MaxLength:       2048,
	}
}

// ValidateAndNormalize validates user input naming a feed and returns the
// normalized URL. A missing scheme defaults to https.
func (v *FeedURLValidator) ValidateAndNormalize(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: URL cannot be empty", ErrInvalidURL)
	}
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	u, err := v.check(input)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

// ValidateLink checks an absolute link taken from feed content. Unlike
// ValidateAndNormalize it never guesses a scheme.
func (v *FeedURLValidator) ValidateLink(raw string) (*url.URL, error) {
	return v.check(strings.TrimSpace(raw))
}

func (v *FeedURLValidator) check(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: URL cannot be empty", ErrInvalidURL)
	}
	if v.MaxLength > 0 && len(raw) > v.MaxLength {
		return nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidURL, v.MaxLength)
	}
	if strings.ContainsAny(raw, "<>\"'` \t\r\n") {
		return nil, fmt.Errorf("%w: contains invalid characters", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q is not http or https", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials in URL", ErrInvalidURL)
	}
	if strings.Contains(u.Path, "..") {
		return nil, fmt.Errorf("%w: directory traversal in path", ErrInvalidURL)
	}
	if strings.Contains(strings.ToLower(u.RawQuery), "javascript:") {
		return nil, fmt.Errorf("%w: suspicious query", ErrInvalidURL)
	}

	if err := v.checkHost(u.Hostname()); err != nil {
		return nil, err
	}
	return u, nil
}

func (v *FeedURLValidator) checkHost(host string) error {
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		if !v.AllowLocalhost {
			return fmt.Errorf("%w: localhost", ErrForbiddenHost)
		}
		return nil
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// a name, not an address
		return nil
	}
	addr = addr.Unmap()

	switch {
	case addr.IsUnspecified() || addr == netip.AddrFrom4([4]byte{255, 255, 255, 255}):
		return fmt.Errorf("%w: %s", ErrForbiddenHost, addr)
	case addr.IsLoopback():
		if !v.AllowLocalhost {
			return fmt.Errorf("%w: loopback address %s", ErrForbiddenHost, addr)
		}
	case addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast():
		if !v.AllowPrivateIPs {
			return fmt.Errorf("%w: private address %s", ErrForbiddenHost, addr)
		}
	}
	return nil
}
