// Package tabs tracks the open reading tabs next to the permanent chat tab.
package tabs

import (
	"sync"

	"github.com/csheth/papergraph/internal/api"
)

// ChatID identifies the chat tab.
const ChatID = "chat"

const titleLimit = 20

// Tab is an open tab. The chat tab has ID ChatID.
type Tab struct {
	ID    string
	Title string
}

// Closable reports whether the tab can be closed.
func (t Tab) Closable() bool {
	return t.ID != ChatID
}

// Title shortens a paper title for the tab bar.
func Title(paper api.Paper) string {
	runes := []rune(paper.Title)
	if len(runes) <= titleLimit {
		return paper.Title
	}
	return string(runes[:titleLimit]) + "..."
}

// Manager holds the ordered tab list and the active tab. The active id is always one of
// the open tabs.
type Manager struct {
	mu     sync.RWMutex
	tabs   []Tab
	active string
}

// NewManager returns a manager with only the chat tab open.
func NewManager() *Manager {
	return &Manager{tabs: []Tab{{ID: ChatID, Title: "Chat"}}, active: ChatID}
}

// Open activates the paper's tab, appending it first if needed.
func (m *Manager) Open(paper api.Paper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if paper.ID == "" || paper.ID == ChatID {
		m.active = ChatID
		return
	}
	if m.indexLocked(paper.ID) < 0 {
		m.tabs = append(m.tabs, Tab{ID: paper.ID, Title: Title(paper)})
	}
	m.active = paper.ID
}

// Close removes a paper tab. Closing the active tab activates chat; the chat tab
// itself cannot be closed.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == ChatID {
		return
	}
	i := m.indexLocked(id)
	if i < 0 {
		return
	}
	m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
	if m.active == id {
		m.active = ChatID
	}
}

// Select activates an open tab. An empty id selects chat; unknown ids are ignored.
func (m *Manager) Select(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		m.active = ChatID
		return
	}
	if m.indexLocked(id) >= 0 {
		m.active = id
	}
}

// Cycle moves the active tab by delta positions, wrapping around.
func (m *Manager) Cycle(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.tabs)
	i := m.indexLocked(m.active)
	m.active = m.tabs[((i+delta)%n+n)%n].ID
}

// Active returns the active tab id.
func (m *Manager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// IsOpen reports whether a tab exists for id.
func (m *Manager) IsOpen(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexLocked(id) >= 0
}

// Tabs returns the open tabs in order, chat first.
func (m *Manager) Tabs() []Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Tab(nil), m.tabs...)
}

func (m *Manager) indexLocked(id string) int {
	for i, t := range m.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}
