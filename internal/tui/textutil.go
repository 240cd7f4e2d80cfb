package tui

import "github.com/mattn/go-runewidth"

const ellipsis = "…"

// truncateEnd cuts s to at most limit terminal cells, ending in an ellipsis
// when anything was dropped. Wide runes count as two cells.
func truncateEnd(s string, limit int) string {
	switch {
	case limit <= 0:
		return ""
	case runewidth.StringWidth(s) <= limit:
		return s
	case limit == 1:
		return ellipsis
	}
	return runewidth.Truncate(s, limit, ellipsis)
}

// truncateMiddle keeps both ends of s, for URLs and paths, with an ellipsis
// in place of the cells that do not fit.
func truncateMiddle(s string, limit int) string {
	switch {
	case limit <= 0:
		return ""
	case runewidth.StringWidth(s) <= limit:
		return s
	case limit == 1:
		return ellipsis
	}

	keep := limit - runewidth.StringWidth(ellipsis)
	right := keep - keep/2
	head := runewidth.Truncate(s, keep/2, "")
	return head + ellipsis + tailCells(s, right)
}

// tailCells returns the longest suffix of s that fits in width cells.
func tailCells(s string, width int) string {
	r := []rune(s)
	used, i := 0, len(r)
	for i > 0 {
		w := runewidth.RuneWidth(r[i-1])
		if used+w > width {
			break
		}
		used += w
		i--
	}
	return string(r[i:])
}
