package tabs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/csheth/papergraph/internal/api"
)

func ids(m *Manager) []string {
	var out []string
	for _, t := range m.Tabs() {
		out = append(out, t.ID)
	}
	return out
}

func TestOpenIsIdempotent(t *testing.T) {
	m := NewManager()
	paper := api.Paper{ID: "1706.03762", Title: "Attention Is All You Need"}

	m.Open(paper)
	m.Select(ChatID)
	m.Open(paper)

	assert.Equal(t, []string{ChatID, "1706.03762"}, ids(m))
	assert.Equal(t, "1706.03762", m.Active())
}

func TestCloseActiveFallsBackToChat(t *testing.T) {
	m := NewManager()
	m.Open(api.Paper{ID: "a"})
	m.Open(api.Paper{ID: "b"})

	m.Close("b")
	assert.Equal(t, ChatID, m.Active())
	assert.Equal(t, []string{ChatID, "a"}, ids(m))
}

func TestCloseInactiveKeepsActive(t *testing.T) {
	m := NewManager()
	m.Open(api.Paper{ID: "a"})
	m.Open(api.Paper{ID: "b"})

	m.Close("a")
	assert.Equal(t, "b", m.Active())
	assert.False(t, m.IsOpen("a"))
}

func TestChatCannotBeClosed(t *testing.T) {
	m := NewManager()
	m.Close(ChatID)
	m.Close("not-open")

	assert.Equal(t, []string{ChatID}, ids(m))
	assert.False(t, m.Tabs()[0].Closable())
}

func TestSelectRules(t *testing.T) {
	m := NewManager()
	m.Open(api.Paper{ID: "a"})

	m.Select("ghost")
	assert.Equal(t, "a", m.Active())

	m.Select("")
	assert.Equal(t, ChatID, m.Active())

	m.Select("a")
	assert.Equal(t, "a", m.Active())
}

func TestCycleWraps(t *testing.T) {
	m := NewManager()
	m.Open(api.Paper{ID: "a"})
	m.Open(api.Paper{ID: "b"})

	m.Cycle(1)
	assert.Equal(t, ChatID, m.Active())
	m.Cycle(-1)
	assert.Equal(t, "b", m.Active())
	m.Cycle(-2)
	assert.Equal(t, ChatID, m.Active())
}

func TestTitleTruncation(t *testing.T) {
	assert.Equal(t, "BERT", Title(api.Paper{Title: "BERT"}))
	assert.Equal(t, "Attention Is All You...", Title(api.Paper{Title: "Attention Is All You Need"}))
	assert.Equal(t, "Exactly twenty chars", Title(api.Paper{Title: "Exactly twenty chars"}))
}
