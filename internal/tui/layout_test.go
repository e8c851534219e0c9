package tui

import "testing"

func TestPageLayoutUpdate(t *testing.T) {
	cases := []struct {
		name         string
		width        int
		height       int
		sidebarWidth int
		mainWidth    int
		graphRows    int
		tabRows      int
		chatRows     int
	}{
		{name: "default", width: 120, height: 40, sidebarWidth: 30, mainWidth: 90, graphRows: 13, tabRows: 21, chatRows: 19},
		{name: "narrow", width: 60, height: 20, sidebarWidth: 20, mainWidth: 40, graphRows: 8, tabRows: 6, chatRows: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			layout := newPageLayout()
			layout.Update(tc.width, tc.height)
			if layout.sidebarWidth != tc.sidebarWidth {
				t.Fatalf("sidebar width mismatch: got %d want %d", layout.sidebarWidth, tc.sidebarWidth)
			}
			if layout.mainWidth != tc.mainWidth {
				t.Fatalf("main width mismatch: got %d want %d", layout.mainWidth, tc.mainWidth)
			}
			if layout.graphRows != tc.graphRows {
				t.Fatalf("graph rows mismatch: got %d want %d", layout.graphRows, tc.graphRows)
			}
			if layout.tabRows != tc.tabRows {
				t.Fatalf("tab rows mismatch: got %d want %d", layout.tabRows, tc.tabRows)
			}
			if layout.chatRows != tc.chatRows {
				t.Fatalf("chat rows mismatch: got %d want %d", layout.chatRows, tc.chatRows)
			}
			if got := mainChrome + layout.graphRows + layout.tabRows; got != layout.bodyHeight {
				t.Fatalf("main column rows %d do not fill body %d", got, layout.bodyHeight)
			}
		})
	}
}

func TestCanvasCell(t *testing.T) {
	layout := newPageLayout()
	col, row, ok := layout.canvasCell(layout.sidebarWidth+5, layout.graphTop+3)
	if !ok || col != 5 || row != 3 {
		t.Fatalf("canvasCell = (%d, %d, %v)", col, row, ok)
	}
	if _, _, ok := layout.canvasCell(layout.sidebarWidth-1, layout.graphTop); ok {
		t.Fatal("sidebar column should not map to the canvas")
	}
	if _, _, ok := layout.canvasCell(layout.sidebarWidth, layout.graphTop+layout.graphRows); ok {
		t.Fatal("row below the graph should not map to the canvas")
	}
}

func TestSidebarRow(t *testing.T) {
	layout := newPageLayout()
	if row, ok := layout.sidebarRow(3, headerHeight+2); !ok || row != 0 {
		t.Fatalf("first paper row = (%d, %v)", row, ok)
	}
	if _, ok := layout.sidebarRow(3, headerHeight); ok {
		t.Fatal("sidebar title should not be a paper row")
	}
	if _, ok := layout.sidebarRow(layout.sidebarWidth, headerHeight+3); ok {
		t.Fatal("main column should not be a sidebar row")
	}
}

func TestIndentAndShorten(t *testing.T) {
	if got := indentMultiline("a\nb", "  "); got != "  a\n  b" {
		t.Fatalf("indentMultiline = %q", got)
	}
	if got := shortenList([]string{"a", "b", "c"}, 2); got != "a, b…" {
		t.Fatalf("shortenList = %q", got)
	}
	if got := previewText("  hello world  ", 5); got != "hello…" {
		t.Fatalf("previewText = %q", got)
	}
}
