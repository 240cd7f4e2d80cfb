package prefetch

import "math"

const (
	MinBufferSize = 1
	MaxBufferSize = 50

	DefaultBufferSize = 25
	DefaultFrontRatio = 0.75
)

// Window is the half-open range [Lo, Hi) of visible positions that should
// have cached content.
type Window struct {
	Lo int
	Hi int
}

func (w Window) Len() int {
	return w.Hi - w.Lo
}

func (w Window) Contains(pos int) bool {
	return pos >= w.Lo && pos < w.Hi
}

// ClampBufferSize limits size to [MinBufferSize, MaxBufferSize].
func ClampBufferSize(size int) int {
	return min(max(size, MinBufferSize), MaxBufferSize)
}

// ClampFrontRatio limits ratio to [0, 1].
func ClampFrontRatio(ratio float64) float64 {
	if math.IsNaN(ratio) {
		return DefaultFrontRatio
	}
	return math.Min(math.Max(ratio, 0), 1)
}

// Select computes which visible positions to keep cached around focus.
// frontRatio of the buffer lies ahead of the focus (higher positions), the
// rest behind it. The result always contains focus when total > 0.
func Select(total, focus, size int, frontRatio float64) Window {
	if total <= 0 {
		return Window{}
	}
	size = ClampBufferSize(size)
	frontRatio = ClampFrontRatio(frontRatio)
	focus = min(max(focus, 0), total-1)

	if total <= size {
		return Window{Lo: 0, Hi: total}
	}

	ahead := int(math.Round(frontRatio * float64(size)))
	ahead = min(max(ahead, 1), size)
	behind := size - ahead

	switch {
	case focus < behind:
		return Window{Lo: 0, Hi: min(total, max(ahead, focus+1))}
	case focus+ahead > total:
		return Window{Lo: total - size, Hi: total}
	default:
		return Window{Lo: focus - behind, Hi: focus + ahead}
	}
}
