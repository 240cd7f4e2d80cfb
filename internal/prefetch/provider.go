package prefetch

import (
	"context"
	"errors"
)

var (
	// ErrProvider marks a failed page pull or content resolution.
	ErrProvider = errors.New("content provider failed")
	// ErrDecode marks image bytes that could not be decoded.
	ErrDecode = errors.New("image decode failed")
	// ErrProtocol marks an outcome that does not match the cache state.
	ErrProtocol = errors.New("protocol violation")

	ErrNotCached   = errors.New("no cache entry")
	ErrNotPending  = errors.New("cache entry is not pending")
	ErrStaleTicket = errors.New("result belongs to an earlier cache entry")
)

// Cursor is an opaque continuation token. The empty cursor means "first page".
type Cursor string

// Page is one pull from a provider.
type Page struct {
	Items     []Item
	Next      Cursor
	Exhausted bool
}

// Provider yields pages of items and resolves single items to content.
// Both methods block and are only called from worker goroutines.
type Provider interface {
	PullPage(ctx context.Context, cursor Cursor) (Page, error)
	Resolve(ctx context.Context, item *Item) (Payload, error)
}

// Decoder turns raw image bytes into pixels. It is CPU bound and only called
// from worker goroutines.
type Decoder interface {
	Decode(raw []byte) (*Image, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(raw []byte) (*Image, error)

func (f DecoderFunc) Decode(raw []byte) (*Image, error) {
	return f(raw)
}
