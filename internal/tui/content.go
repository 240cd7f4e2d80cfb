package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pders01/skim/internal/prefetch"
)

// focusedView renders whatever is resolved for the focused post.
func (a *App) focusedView(width, height int) string {
	if a.session == nil {
		return ""
	}
	item, ok := a.session.Focused()
	if !ok {
		return muted(MsgNoPosts)
	}

	var header string
	if a.config.UI.ShowTitleBars {
		header = postHeader(item.Title, metaLine(item), width)
	}
	bodyHeight := max(height-lipgloss.Height(header)-1, 1)
	body := a.contentView(item, a.session.Focus(), width, bodyHeight)
	if header == "" {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body)
}

// contentView draws the resolved content of the visible item at pos into a
// width x height pane. Absent and pending entries show a loading placeholder.
func (a *App) contentView(item *prefetch.Item, pos, width, height int) string {
	c, ok := a.session.Content(pos)
	if !ok {
		return muted(MsgLoading)
	}

	key := renderKey{index: item.Index, width: width, height: height}
	if out, ok := a.rendered[key]; ok {
		return out
	}

	var out string
	switch c := c.(type) {
	case prefetch.Text:
		out = a.renderText(c.Body, width)
	case prefetch.Unsupported:
		out = a.renderUnsupported(c, width)
	case *prefetch.Image:
		out = renderHalfBlocks(c, width, height)
	default:
		out = muted(fmt.Sprintf("cannot display %T", c))
	}
	a.rendered[key] = out
	return out
}

func (a *App) renderText(body string, width int) string {
	if strings.TrimSpace(body) == "" {
		return muted("(no text)")
	}
	r, err := a.getRenderer(width)
	if err != nil {
		return body
	}
	out, err := r.Render(body)
	if err != nil {
		return body
	}
	return strings.TrimRight(out, "\n")
}

func (a *App) renderUnsupported(c prefetch.Unsupported, width int) string {
	inner := max(width-4, 10)
	rows := []string{HeaderStyle.Render("Linked content")}
	if c.Summary != "" {
		rows = append(rows, "", lipgloss.NewStyle().Width(inner).Render(c.Summary))
	}
	if c.URL != "" {
		rows = append(rows, "", muted(truncateMiddle(c.URL, inner)))
	}
	rows = append(rows, "", helpLine(a.keyHandler.key(a.config.Keys.Bindings.OpenMedia)+": open externally"))
	return PlaceholderStyle.Width(inner).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// metaLine is the author, score and age of a post.
func metaLine(item *prefetch.Item) string {
	var parts []string
	if item.Author != "" {
		parts = append(parts, item.Author)
	}
	if item.Score != 0 {
		parts = append(parts, humanize.Comma(int64(item.Score))+" points")
	}
	if !item.Published.IsZero() {
		parts = append(parts, humanize.Time(item.Published))
	}
	return strings.Join(parts, " • ")
}

// refreshReader redraws the reader when the focused item or its cache state
// changed since the last frame.
func (a *App) refreshReader() {
	if a.view != ViewReader {
		return
	}
	item, ok := a.session.Focused()
	if !ok {
		return
	}
	next := readerState{index: item.Index, state: a.session.State(a.session.Focus()), width: a.width}
	if next == a.reader {
		return
	}
	moved := next.index != a.reader.index
	a.reader = next
	a.viewport.SetContent(a.focusedView(a.viewport.Width, a.viewport.Height))
	if moved {
		a.viewport.GotoTop()
	}
}

var mutedStyle = lipgloss.NewStyle().Foreground(MutedColor)

func muted(text string) string {
	return mutedStyle.Render(text)
}

func helpLine(text string) string {
	return HelpStyle.Render(text)
}

// postHeader is the title of a post over its muted meta line, both cut to
// fit width.
func postHeader(title, meta string, width int) string {
	limit := max(width-2, 1)
	head := HeaderStyle.Render(truncateEnd(title, limit))
	if meta == "" {
		return head
	}
	return lipgloss.JoinVertical(lipgloss.Left, head, muted(truncateEnd(meta, limit)))
}

// inputBox frames a text input. The border lights up while it has focus.
func inputBox(view string, focused bool, inputWidth int) string {
	border := MutedColor
	if focused {
		border = AccentColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(inputWidth + 4).
		Render(view)
}

// centerIn places block in the middle of a width x height pane.
func centerIn(width, height int, block string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, block)
}
