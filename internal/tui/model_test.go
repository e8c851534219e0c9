package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/api/apitest"
	"github.com/csheth/papergraph/internal/citations"
	"github.com/csheth/papergraph/internal/graph"
	"github.com/csheth/papergraph/internal/localstore"
	"github.com/csheth/papergraph/internal/tabs"
	"github.com/csheth/papergraph/internal/workspace"
)

const (
	attentionID = "1706.03762"
	bertID      = "1810.04805"
)

func seededBackend(t *testing.T) *apitest.Backend {
	t.Helper()
	backend := apitest.New(t)
	backend.AddPaper(api.Paper{
		ID:        attentionID,
		Title:     "Attention Is All You Need",
		Authors:   []string{"Ashish Vaswani", "Noam Shazeer"},
		Summary:   "The dominant sequence transduction models are based on recurrent networks.",
		Published: "2017-06-12T17:57:34Z",
		Citations: []api.Citation{
			{Title: "Deep Residual Learning for Image Recognition"},
			{Title: "Layer Normalization", ArxivID: "1607.06450"},
		},
	})
	backend.AddPaper(api.Paper{ID: bertID, Title: "BERT: Pre-training of Deep Bidirectional Transformers"})
	backend.AddEdge(apitest.Edge{ID: "e1", Source: bertID, Target: attentionID, Kind: "citation", Evidence: "BERT builds on the Transformer."})
	return backend
}

func newTestModel(t *testing.T, backend *apitest.Backend) *model {
	t.Helper()
	canvas := graph.NewCanvas(80, 24)
	ws := workspace.New(workspace.Config{Backend: backend.Client(), Storage: localstore.NewMemory(), Renderer: canvas})
	if err := ws.Load(context.Background()); err != nil {
		t.Fatalf("load workspace: %v", err)
	}
	teaModel, ok := New(Config{Workspace: ws, Canvas: canvas, BackendURL: backend.URL()}).(*model)
	if !ok {
		t.Fatalf("expected *model, got %T", teaModel)
	}
	t.Cleanup(func() { teaModel.quit() })
	teaModel.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	teaModel.Update(loadResultMsg{initial: true})
	return teaModel
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m *model, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func sidebarIndex(t *testing.T, m *model, id string) int {
	t.Helper()
	for i, p := range m.snap.Papers {
		if p.ID == id {
			return i
		}
	}
	t.Fatalf("paper %s not in sidebar", id)
	return -1
}

func TestSidebarEnterOpensPaperTab(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	m.focus = paneSidebar
	m.sidebarCursor = sidebarIndex(t, m, bertID)

	press(m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.snap.Active != bertID {
		t.Fatalf("active tab = %q, want %q", m.snap.Active, bertID)
	}
	if m.focus != paneTab {
		t.Fatalf("focus = %v, want tab pane", m.focus)
	}
	if len(m.snap.Tabs) != 2 {
		t.Fatalf("expected chat and paper tabs, got %+v", m.snap.Tabs)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	m.focus = paneSidebar
	m.sidebarCursor = sidebarIndex(t, m, bertID)

	if cmd := press(m, keyRunes("d")); cmd != nil {
		t.Fatalf("asking for confirmation should not start a job")
	}
	if m.confirmDelete == nil || m.confirmDelete.id != bertID {
		t.Fatalf("expected pending delete for %s, got %+v", bertID, m.confirmDelete)
	}
	if !strings.Contains(m.statusView(), "Delete BERT") {
		t.Fatalf("status line should ask for confirmation: %q", m.statusView())
	}

	press(m, keyRunes("n"))
	if m.confirmDelete != nil {
		t.Fatal("n should cancel the delete")
	}

	press(m, keyRunes("d"))
	if cmd := press(m, keyRunes("y")); cmd == nil {
		t.Fatal("y should start the delete job")
	}
	if m.confirmDelete != nil {
		t.Fatal("confirmation should be consumed")
	}

	payload, err := deletePaperJob(m.ws, bertID, "BERT")(context.Background())
	if err != nil {
		t.Fatalf("delete job: %v", err)
	}
	press(m, payload)
	for _, p := range m.snap.Papers {
		if p.ID == bertID {
			t.Fatalf("deleted paper still listed")
		}
	}
	if m.infoMessage != "Deleted BERT." {
		t.Fatalf("info = %q", m.infoMessage)
	}
}

func TestGraphKeysFocusAndOpenNode(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	m.focus = paneGraph

	press(m, keyRunes("n"))
	if m.focusedNode == "" {
		t.Fatal("n should focus a node")
	}
	focused := m.focusedNode

	press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.snap.Active != focused {
		t.Fatalf("active tab = %q, want %q", m.snap.Active, focused)
	}
	if m.focus != paneTab {
		t.Fatalf("focus = %v, want tab pane", m.focus)
	}
}

func TestGraphEdgeSelectionAndZoom(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	m.focus = paneGraph

	press(m, keyRunes("e"))
	if m.snap.SelectedEdge == nil || m.snap.SelectedEdge.ID != "e1" {
		t.Fatalf("expected e1 selected, got %+v", m.snap.SelectedEdge)
	}
	if footer := m.graphFooterView(); !strings.Contains(footer, "Citation") || !strings.Contains(footer, "d delete") {
		t.Fatalf("edge panel missing details: %q", footer)
	}

	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.snap.SelectedEdge != nil {
		t.Fatal("esc should dismiss the edge panel")
	}

	before := m.canvas.Zoom()
	press(m, keyRunes("+"))
	if m.canvas.Zoom() <= before {
		t.Fatalf("zoom in: %v -> %v", before, m.canvas.Zoom())
	}
	before = m.canvas.Zoom()
	press(m, keyRunes("-"))
	if m.canvas.Zoom() >= before {
		t.Fatalf("zoom out: %v -> %v", before, m.canvas.Zoom())
	}
}

func TestDeleteSelectedEdgeAsksFirst(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	m.focus = paneGraph
	press(m, keyRunes("e"), keyRunes("d"))

	if m.confirmDelete == nil || m.confirmDelete.kind != "edge" || m.confirmDelete.id != "e1" {
		t.Fatalf("expected edge delete prompt, got %+v", m.confirmDelete)
	}
}

func TestMouseClickOnNodeOpensTab(t *testing.T) {
	m := newTestModel(t, seededBackend(t))

	var (
		target    string
		col, row  int
		foundNode bool
	)
	for r := 0; r < m.layout.graphRows && !foundNode; r++ {
		for c := 0; c < m.layout.mainWidth; c++ {
			if id, ok := m.canvas.NodeAt(c, r); ok {
				target, col, row, foundNode = id, c, r, true
				break
			}
		}
	}
	if !foundNode {
		t.Fatal("no node drawn on the canvas")
	}

	press(m, tea.MouseMsg{X: col + m.layout.sidebarWidth, Y: row + m.layout.graphTop, Type: tea.MouseLeft})
	if m.snap.Active != target {
		t.Fatalf("active tab = %q, want %q", m.snap.Active, target)
	}
}

func TestMouseClickOnSidebarMovesCursor(t *testing.T) {
	m := newTestModel(t, seededBackend(t))

	press(m, tea.MouseMsg{X: 2, Y: headerHeight + 2 + 1, Type: tea.MouseLeft})
	if m.focus != paneSidebar || m.sidebarCursor != 1 {
		t.Fatalf("focus=%v cursor=%d", m.focus, m.sidebarCursor)
	}
}

func TestStarterPromptsNeedCategory(t *testing.T) {
	m := newTestModel(t, apitest.New(t))
	if !m.ws.Chat().Empty() {
		t.Fatal("chat should start empty")
	}

	if cmd := press(m, keyRunes("1")); cmd != nil {
		t.Fatal("picking a prompt without a field should do nothing")
	}
	if !strings.Contains(m.infoMessage, "pick a field") {
		t.Fatalf("info = %q", m.infoMessage)
	}

	press(m, keyRunes("c"))
	if m.category != 0 {
		t.Fatalf("category = %d, want 0", m.category)
	}
	if view := m.View(); !strings.Contains(view, promptsFor(categories[0].ID)[0]) {
		t.Fatalf("starter prompts not rendered")
	}
	if cmd := press(m, keyRunes("1")); cmd == nil {
		t.Fatal("picking a prompt should send it")
	}
	if m.infoMessage != "Sending…" {
		t.Fatalf("info = %q", m.infoMessage)
	}
}

func TestChatCandidatesCanBeChosen(t *testing.T) {
	backend := apitest.New(t)
	backend.OnChat(func(b *apitest.Backend, message string) api.ChatResponse {
		return api.ChatResponse{
			Message: "I found two matches.",
			PaperCandidates: []api.PaperCandidate{
				{ArxivID: "1706.03762", Title: "Attention Is All You Need", Year: 2017},
				{ArxivID: "2005.14165", Title: "Language Models are Few-Shot Learners", Year: 2020},
			},
		}
	})
	m := newTestModel(t, backend)

	payload, err := sendChatJob(m.ws, "attention paper")(context.Background())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	press(m, payload)

	if got := len(m.ws.Chat().Messages()); got != 2 {
		t.Fatalf("expected user and assistant messages, got %d", got)
	}
	if !strings.Contains(m.infoMessage, "2 candidates") {
		t.Fatalf("info = %q", m.infoMessage)
	}
	if view := m.View(); !strings.Contains(view, "1. Attention Is All You Need") {
		t.Fatalf("candidates not numbered in transcript")
	}

	m.focus = paneTab
	if cmd := press(m, keyRunes("2")); cmd == nil {
		t.Fatal("choosing a candidate should start a job")
	}
	if !strings.Contains(m.infoMessage, "Language Models") {
		t.Fatalf("info = %q", m.infoMessage)
	}
}

func TestComposerSendsAndBlurs(t *testing.T) {
	m := newTestModel(t, apitest.New(t))

	press(m, keyRunes("i"))
	if !m.composer.Focused() {
		t.Fatal("i should focus the composer")
	}
	press(m, keyRunes("q"))
	if m.composer.Value() != "q" {
		t.Fatalf("q should be typed while composing, got %q", m.composer.Value())
	}
	if cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
		t.Fatal("enter should send")
	}
	if m.composer.Value() != "" {
		t.Fatal("composer should be cleared after sending")
	}
	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.composer.Focused() {
		t.Fatal("esc should blur the composer")
	}
}

func TestJobEnvelopeSurfacesErrors(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	snapshot := jobSnapshot{ID: "refresh-9", Kind: jobKindRefresh, Status: jobStatusRunning}

	press(m, jobSignalMsg{Snapshot: snapshot})
	if _, ok := m.running["refresh-9"]; !ok {
		t.Fatal("job should be tracked as running")
	}
	if !strings.Contains(m.statusView(), "refresh") {
		t.Fatalf("status should list running jobs: %q", m.statusView())
	}

	press(m, jobResultEnvelope{Snapshot: snapshot, Payload: loadResultMsg{err: errors.New("connection refused")}})
	if len(m.running) != 0 {
		t.Fatalf("job should be cleared, running=%v", m.running)
	}
	if !strings.Contains(m.errorMessage, "connection refused") {
		t.Fatalf("error = %q", m.errorMessage)
	}
}

func TestPaperTabResolvesReference(t *testing.T) {
	backend := seededBackend(t)
	backend.OnSelect(func(b *apitest.Backend, req apitest.SelectRequest) api.ChatResponse {
		b.LockedAddPaper(api.Paper{ID: req.ArxivID, Title: "Layer Normalization"})
		return api.ChatResponse{Message: "Added Layer Normalization.", PapersAdded: []string{req.ArxivID}}
	})
	m := newTestModel(t, backend)
	if err := m.ws.OpenPaper(attentionID); err != nil {
		t.Fatalf("open: %v", err)
	}
	m.focus = paneTab
	m.syncNow()

	press(m, keyRunes("j"))
	if cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
		t.Fatal("enter should start resolving")
	}
	if !strings.Contains(m.infoMessage, "1607.06450") {
		t.Fatalf("info = %q", m.infoMessage)
	}

	resolver, err := m.ws.Resolver(attentionID)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	ref := resolver.List(citations.ViewCitations).References[1]
	payload, err := resolveReferenceJob(m.ws, attentionID, citations.ViewCitations, ref.Key)(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	press(m, payload)

	if m.infoMessage != "Added Layer Normalization." {
		t.Fatalf("info = %q", m.infoMessage)
	}
	if !resolver.State(ref.Key).Resolved {
		t.Fatal("reference should be marked resolved")
	}
	if !strings.Contains(m.View(), "✓ added") {
		t.Fatal("resolved reference should be marked in the view")
	}
	if len(m.snap.Papers) != 3 {
		t.Fatalf("expected the new paper in the sidebar, got %d papers", len(m.snap.Papers))
	}

	press(m, keyRunes("r"))
	if cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatal("a reference added from citations should not resolve again from arXiv references")
	}
	if m.infoMessage != "Already added." {
		t.Fatalf("info = %q", m.infoMessage)
	}
}

func TestPaperTabKeys(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	if err := m.ws.OpenPaper(attentionID); err != nil {
		t.Fatalf("open: %v", err)
	}
	m.focus = paneTab
	m.syncNow()

	view := m.View()
	for _, want := range []string{"Attention Is All You Need", "Published June 12, 2017", "Abstract", "Layer Normalization"} {
		if !strings.Contains(view, want) {
			t.Fatalf("paper tab missing %q", want)
		}
	}

	press(m, keyRunes("r"))
	if m.papers[attentionID].view != citations.ViewArxiv {
		t.Fatal("r should switch to arXiv references")
	}

	press(m, keyRunes("t"))
	if !strings.Contains(m.infoMessage, "not configured") {
		t.Fatalf("full text without a cache: info = %q", m.infoMessage)
	}

	press(m, keyRunes("x"))
	if m.snap.Active != tabs.ChatID {
		t.Fatalf("x should close the tab, active = %q", m.snap.Active)
	}
	if _, ok := m.papers[attentionID]; ok {
		t.Fatal("per-tab state should be dropped with the tab")
	}
}

func TestTabCyclingAndHelp(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	if err := m.ws.OpenPaper(bertID); err != nil {
		t.Fatalf("open: %v", err)
	}
	m.syncNow()

	press(m, keyRunes("["))
	if m.snap.Active != tabs.ChatID {
		t.Fatalf("[ should move to chat, active = %q", m.snap.Active)
	}
	press(m, keyRunes("]"))
	if m.snap.Active != bertID {
		t.Fatalf("] should move to the paper, active = %q", m.snap.Active)
	}

	press(m, keyRunes("?"))
	if !m.helpVisible {
		t.Fatal("? should toggle full help")
	}
}

func TestViewShowsWorkspace(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	view := m.View()
	for _, want := range []string{"papergraph", "Papers (2)", "2 papers · 1 connections", "Chat"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
	if lines := strings.Count(view, "\n") + 1; lines != 40 {
		t.Fatalf("view should fill the window, got %d lines", lines)
	}
}

func TestQuitUnsubscribes(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	cmd := press(m, keyRunes("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected a quit message")
	}
	if m.unsubscribe != nil {
		t.Fatal("quitting should drop the workspace subscription")
	}
}

func TestPickIndexAndCycleID(t *testing.T) {
	if got := pickIndex(keyRunes("3")); got != 2 {
		t.Fatalf("pickIndex(3) = %d", got)
	}
	if got := pickIndex(keyRunes("a")); got != -1 {
		t.Fatalf("pickIndex(a) = %d", got)
	}
	ids := []string{"a", "b", "c"}
	if got := cycleID(ids, "", 1); got != "a" {
		t.Fatalf("cycle from none = %q", got)
	}
	if got := cycleID(ids, "", -1); got != "c" {
		t.Fatalf("cycle back from none = %q", got)
	}
	if got := cycleID(ids, "c", 1); got != "a" {
		t.Fatalf("cycle wraps = %q", got)
	}
	if got := cycleID(nil, "a", 1); got != "" {
		t.Fatalf("empty cycle = %q", got)
	}
}
