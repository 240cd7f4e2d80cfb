package prefetch

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxImageSide bounds the longest side of a decoded image.
const DefaultMaxImageSide = 2048

// ImageDecoder decodes GIF, JPEG, PNG, BMP and WebP bytes into NRGBA pixels,
// downscaling anything larger than MaxSide.
type ImageDecoder struct {
	MaxSide int
}

func NewImageDecoder() *ImageDecoder {
	return &ImageDecoder{MaxSide: DefaultMaxImageSide}
}

func (d *ImageDecoder) Decode(raw []byte) (*Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), d.MaxSide)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("decoding %s image: empty bounds", format)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	return &Image{Pixels: dst.Pix, Width: w, Height: h}, nil
}

// fitWithin scales (w, h) down so neither side exceeds limit, keeping aspect.
// A limit <= 0 disables scaling.
func fitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
