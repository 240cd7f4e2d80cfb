package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"

	"github.com/pders01/skim/internal/prefetch"
)

const (
	upperHalf = "▀"
	lowerHalf = "▄"
	// pixels below this alpha are drawn as terminal background
	alphaThreshold = 128
)

// renderHalfBlocks draws img into at most cols x rows terminal cells. Each
// cell shows two vertically stacked pixels. Images are scaled down to fit and
// never scaled up.
func renderHalfBlocks(img *prefetch.Image, cols, rows int) string {
	if img == nil || img.Width <= 0 || img.Height <= 0 || cols <= 0 || rows <= 0 {
		return ""
	}

	w, h := fitBox(img.Width, img.Height, cols, rows*2)
	src := img.NRGBA()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var b strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			var bottom color.NRGBA
			if y+1 < h {
				bottom = dst.NRGBAAt(x, y+1)
			}
			b.WriteString(halfBlockCell(dst.NRGBAAt(x, y), bottom))
		}
	}
	return b.String()
}

func halfBlockCell(top, bottom color.NRGBA) string {
	topOn, bottomOn := top.A >= alphaThreshold, bottom.A >= alphaThreshold
	switch {
	case topOn && bottomOn:
		return lipgloss.NewStyle().Foreground(hexColor(top)).Background(hexColor(bottom)).Render(upperHalf)
	case topOn:
		return lipgloss.NewStyle().Foreground(hexColor(top)).Render(upperHalf)
	case bottomOn:
		return lipgloss.NewStyle().Foreground(hexColor(bottom)).Render(lowerHalf)
	default:
		return " "
	}
}

func hexColor(c color.NRGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// fitBox scales w x h down to fit within maxW x maxH, keeping the aspect
// ratio. Both results are at least 1.
func fitBox(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	return max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
}
