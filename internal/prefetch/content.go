package prefetch

import (
	"image"
	"image/color"
)

// Content is the resolved, renderable payload of an item. The set of
// implementations is closed: Text, Unsupported and Image.
type Content interface {
	content()
}

// Text is plain or markdown text.
type Text struct {
	Body string
}

// Unsupported stands in for rendered markup such as a linked web page.
// Summary is a short human readable description when one could be extracted.
type Unsupported struct {
	URL     string
	Summary string
}

// Image is a decoded, non-premultiplied RGBA bitmap.
type Image struct {
	Pixels []byte
	Width  int
	Height int
}

func (Text) content()        {}
func (Unsupported) content() {}
func (*Image) content()      {}

// At returns the pixel at (x, y). Out of range coordinates yield transparent black.
func (im *Image) At(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= im.Width || y >= im.Height {
		return color.NRGBA{}
	}
	i := (y*im.Width + x) * 4
	return color.NRGBA{R: im.Pixels[i], G: im.Pixels[i+1], B: im.Pixels[i+2], A: im.Pixels[i+3]}
}

// NRGBA wraps the pixels in an image.NRGBA without copying.
func (im *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    im.Pixels,
		Stride: im.Width * 4,
		Rect:   image.Rect(0, 0, im.Width, im.Height),
	}
}

// PayloadKind classifies what a provider returned for an item.
type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadMarkup
	PayloadImage
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadText:
		return "text"
	case PayloadMarkup:
		return "markup"
	case PayloadImage:
		return "image"
	default:
		return "unknown"
	}
}

// Payload is the raw result of resolving an item. Raw holds undecoded image
// bytes when Kind is PayloadImage.
type Payload struct {
	Kind PayloadKind
	Text string
	URL  string
	Raw  []byte
}
