package tui

import (
	"fmt"
	"strings"
)

// pageLayout splits the window into the sidebar, the graph pane and the tab pane.
// Rows are counted from the top of the window.
type pageLayout struct {
	windowWidth  int
	windowHeight int

	sidebarWidth int
	mainWidth    int
	bodyHeight   int

	graphTop  int
	graphRows int
	tabRows   int
	chatRows  int
}

func newPageLayout() pageLayout {
	l := pageLayout{}
	l.Update(120, 40)
	return l
}

const (
	headerHeight = 1
	footerHeight = 2
	// graph title, legend line, tab bar
	mainChrome = 3
	// composer line and its hint
	composerHeight = 2
)

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height

	l.sidebarWidth = sidebarWidth
	if width-l.sidebarWidth < minMainWidth {
		l.sidebarWidth = max(width-minMainWidth, 16)
	}
	l.mainWidth = max(width-l.sidebarWidth, minMainWidth)

	l.bodyHeight = max(height-headerHeight-footerHeight, minGraphHeight+mainChrome+4)
	l.graphTop = headerHeight + 1
	l.graphRows = max((l.bodyHeight-mainChrome)*2/5, minGraphHeight)
	l.tabRows = max(l.bodyHeight-mainChrome-l.graphRows, 4)
	l.chatRows = max(l.tabRows-composerHeight, 2)
}

// canvasCell maps a window coordinate to a graph canvas cell.
func (l pageLayout) canvasCell(x, y int) (int, int, bool) {
	col := x - l.sidebarWidth
	row := y - l.graphTop
	if col < 0 || col >= l.mainWidth || row < 0 || row >= l.graphRows {
		return 0, 0, false
	}
	return col, row, true
}

// sidebarRow reports whether a window coordinate falls on a sidebar paper row, and
// which one.
func (l pageLayout) sidebarRow(x, y int) (int, bool) {
	if x >= l.sidebarWidth {
		return 0, false
	}
	row := y - headerHeight - 2
	if row < 0 || row >= l.bodyHeight-2 {
		return 0, false
	}
	return row, true
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Blank() {
	if cb.lines > 0 {
		cb.WriteRune('\n')
	}
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func shortenList(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s…", strings.Join(items[:limit], ", "))
}

func (m *model) wrapWidth(padding int) int {
	available := m.layout.mainWidth - max(padding, 0)
	if available < 20 {
		available = 20
	}
	return available
}

func previewText(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
