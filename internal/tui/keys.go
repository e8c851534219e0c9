package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	quit        key.Binding
	nextPane    key.Binding
	prevPane    key.Binding
	nextTab     key.Binding
	prevTab     key.Binding
	closeTab    key.Binding
	toggleHelp  key.Binding
	refresh     key.Binding
	up          key.Binding
	down        key.Binding
	left        key.Binding
	right       key.Binding
	pageUp      key.Binding
	pageDown    key.Binding
	open        key.Binding
	remove      key.Binding
	confirm     key.Binding
	cancel      key.Binding
	zoomIn      key.Binding
	zoomOut     key.Binding
	fit         key.Binding
	nextNode    key.Binding
	prevNode    key.Binding
	nextEdge    key.Binding
	prevEdge    key.Binding
	compose     key.Binding
	send        key.Binding
	blur        key.Binding
	clearChat   key.Binding
	category    key.Binding
	pick        key.Binding
	refView     key.Binding
	fullText    key.Binding
	dismissPick key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		nextPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next pane"),
		),
		prevPane: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev pane"),
		),
		nextTab: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next tab"),
		),
		prevTab: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev tab"),
		),
		closeTab: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close tab"),
		),
		toggleHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		refresh: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "refresh"),
		),
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right"),
		),
		pageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "scroll up"),
		),
		pageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "scroll down"),
		),
		open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		remove: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
		cancel: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n", "cancel"),
		),
		zoomIn: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "zoom in"),
		),
		zoomOut: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "zoom out"),
		),
		fit: key.NewBinding(
			key.WithKeys("0", "f"),
			key.WithHelp("f", "fit"),
		),
		nextNode: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n/N", "cycle papers"),
		),
		prevNode: key.NewBinding(
			key.WithKeys("N"),
		),
		nextEdge: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e/E", "cycle connections"),
		),
		prevEdge: key.NewBinding(
			key.WithKeys("E"),
		),
		compose: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "write"),
		),
		send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		blur: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop writing"),
		),
		clearChat: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "clear chat"),
		),
		category: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "category"),
		),
		pick: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "pick"),
		),
		refView: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "citations/arXiv refs"),
		),
		fullText: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "full text"),
		),
		dismissPick: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss"),
		),
	}
}

// paneHelp adapts the bindings relevant to the focused pane to help.KeyMap.
type paneHelp struct {
	short []key.Binding
	full  [][]key.Binding
}

func (h paneHelp) ShortHelp() []key.Binding  { return h.short }
func (h paneHelp) FullHelp() [][]key.Binding { return h.full }

func (m *model) helpKeys() paneHelp {
	k := m.keys
	global := []key.Binding{k.nextPane, k.nextTab, k.prevTab, k.refresh, k.toggleHelp, k.quit}
	var local []key.Binding
	switch {
	case m.confirmDelete != nil:
		local = []key.Binding{k.confirm, k.cancel}
	case m.composer.Focused():
		local = []key.Binding{k.send, k.blur, k.pageUp, k.pageDown}
		global = []key.Binding{k.nextPane, k.nextTab, k.prevTab}
	case m.focus == paneSidebar:
		local = []key.Binding{k.up, k.down, k.open, k.remove}
	case m.focus == paneGraph:
		local = []key.Binding{k.nextNode, k.nextEdge, k.open, k.zoomIn, k.zoomOut, k.fit, k.left, k.right, k.remove, k.dismissPick}
	case m.activeTab() == "" || m.onChatTab():
		local = []key.Binding{k.compose, k.pick, k.category, k.clearChat, k.up, k.down}
	default:
		local = []key.Binding{k.up, k.down, k.open, k.pick, k.dismissPick, k.refView, k.fullText, k.closeTab, k.pageUp, k.pageDown}
	}
	short := local
	if len(short) > 4 {
		short = short[:4]
	}
	return paneHelp{
		short: append(append([]key.Binding{}, short...), k.toggleHelp, k.quit),
		full:  [][]key.Binding{local, global},
	}
}
