package feed

import (
	"fmt"
	"strconv"

	"github.com/pders01/skim/internal/prefetch"
)

// offsetCursor reads the decimal offset cursors used by the RSS and archive
// providers. The empty cursor is offset zero.
func offsetCursor(c prefetch.Cursor) (int, error) {
	if c == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(string(c))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad page cursor %q", c)
	}
	return n, nil
}

func nextCursor(offset int) prefetch.Cursor {
	return prefetch.Cursor(strconv.Itoa(offset))
}
