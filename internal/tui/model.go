package tui

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/chat"
	"github.com/csheth/papergraph/internal/citations"
	"github.com/csheth/papergraph/internal/graph"
	"github.com/csheth/papergraph/internal/pdftext"
	"github.com/csheth/papergraph/internal/tabs"
	"github.com/csheth/papergraph/internal/workspace"
)

// Config wires runtime dependencies into the TUI program.
type Config struct {
	Workspace *workspace.Workspace
	// Canvas must be the renderer the workspace draws into.
	Canvas *graph.Canvas
	// PDF enables the full-text preview.
	PDF        *pdftext.Cache
	BackendURL string
	Logger     *log.Logger
}

type pendingDelete struct {
	kind  string
	id    string
	title string
}

type model struct {
	config      Config
	ws          *workspace.Workspace
	canvas      *graph.Canvas
	logger      *log.Logger
	keys        keyMap
	help        help.Model
	jobs        *jobBus
	feed        *snapshotFeed
	unsubscribe func()

	composer textinput.Model
	spinner  spinner.Model
	chatView viewport.Model
	tabView  viewport.Model
	layout   pageLayout

	snap     workspace.Snapshot
	focus    pane
	loaded   bool
	running  map[string]jobSnapshot
	spinning bool

	chatCount int
	scrolling bool
	category  int

	sidebarCursor int
	sidebarOffset int
	focusedNode   string

	papers        map[string]*paperView
	confirmDelete *pendingDelete

	infoMessage  string
	errorMessage string
	helpVisible  bool

	markdown      *glamour.TermRenderer
	markdownWidth int
	markdownCache map[string]string
}

// New returns a tea.Model ready to be mounted into a Program. It subscribes to the
// workspace; quitting through the model unsubscribes.
func New(config Config) tea.Model {
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	canvas := config.Canvas
	if canvas == nil {
		canvas = graph.NewCanvas(80, 24)
	}

	composer := textinput.New()
	composer.Placeholder = composerPlaceholder
	composer.Prompt = "› "
	composer.CharLimit = 2000

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	chatView := viewport.New(80, 10)
	chatView.MouseWheelEnabled = true
	tabView := viewport.New(80, 10)
	tabView.MouseWheelEnabled = true

	m := &model{
		config:        config,
		ws:            config.Workspace,
		canvas:        canvas,
		logger:        logger,
		keys:          newKeyMap(),
		help:          help.New(),
		jobs:          newJobBus(logger),
		feed:          newSnapshotFeed(),
		composer:      composer,
		spinner:       spin,
		chatView:      chatView,
		tabView:       tabView,
		layout:        newPageLayout(),
		focus:         paneTab,
		running:       map[string]jobSnapshot{},
		category:      -1,
		papers:        map[string]*paperView{},
		markdownCache: map[string]string{},
		infoMessage:   "Connecting to the backend…",
	}
	m.unsubscribe = m.ws.Subscribe(m.feed.push)
	m.snap = m.ws.Snapshot()
	m.resize(120, 40)
	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.feed.wait(),
		m.jobs.Start(jobKindLoad, loadJob(m.ws, true)),
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if len(m.running) == 0 && !m.ws.Chat().Busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, tea.Batch(cmd, m.followChat())
	case jobSignalMsg:
		m.running[msg.Snapshot.ID] = msg.Snapshot
		if !m.spinning {
			m.spinning = true
			return m, m.spinner.Tick
		}
		return m, nil
	case jobResultEnvelope:
		delete(m.running, msg.Snapshot.ID)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case snapshotMsg:
		return m, tea.Batch(m.applySnapshot(msg.snap), m.feed.wait())
	case scrollTickMsg:
		if m.chatView.AtBottom() {
			m.scrolling = false
			return m, nil
		}
		m.chatView.LineDown(2)
		return m, scrollTick()
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	case loadResultMsg:
		if msg.initial {
			m.loaded = true
		}
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("Backend unavailable: %v", msg.err)
			m.infoMessage = "Press R to retry."
		} else {
			m.errorMessage = ""
			m.infoMessage = fmt.Sprintf("%d papers, %d connections.", m.ws.Papers().Len(), m.ws.Graph().Counts().Edges)
		}
		return m, m.syncNow()
	case chatResultMsg:
		switch {
		case errors.Is(msg.err, chat.ErrBusy):
			m.infoMessage = "Waiting for the current reply…"
		case errors.Is(msg.err, chat.ErrEmptyMessage):
		case msg.err != nil:
			m.errorMessage = msg.err.Error()
			m.infoMessage = ""
		default:
			m.errorMessage = ""
			if n := len(msg.reply.Candidates); n > 0 {
				m.infoMessage = fmt.Sprintf("%d candidates: press 1-%d on the chat tab to add one.", n, min(n, 9))
			} else {
				m.infoMessage = "Reply received."
			}
		}
		return m, m.syncNow()
	case clearResultMsg:
		if msg.err != nil {
			if errors.Is(msg.err, chat.ErrBusy) {
				m.infoMessage = "Waiting for the current reply…"
			} else {
				m.errorMessage = fmt.Sprintf("Clear failed: %v", msg.err)
			}
			return m, nil
		}
		m.errorMessage = ""
		m.infoMessage = "Conversation cleared."
		m.category = -1
		return m, m.syncNow()
	case referenceResultMsg:
		m.applyReferenceResult(msg)
		return m, m.syncNow()
	case deleteResultMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("Delete failed: %v", msg.err)
			return m, m.syncNow()
		}
		m.errorMessage = ""
		if msg.kind == "edge" {
			m.infoMessage = "Connection removed."
		} else {
			m.infoMessage = fmt.Sprintf("Deleted %s.", msg.title)
		}
		return m, m.syncNow()
	case fullTextMsg:
		pv, ok := m.papers[msg.paperID]
		if !ok {
			return m, nil
		}
		pv.loading = false
		if msg.err != nil {
			pv.err = msg.err.Error()
			return m, nil
		}
		pv.err = ""
		pv.fullText = msg.text
		return m, nil
	}
	return m, nil
}

func (m *model) applyReferenceResult(msg referenceResultMsg) {
	switch {
	case errors.Is(msg.err, citations.ErrResolving):
		m.infoMessage = "Another reference is being resolved."
	case errors.Is(msg.err, citations.ErrResolved):
		m.infoMessage = "Already added."
	case errors.Is(msg.err, citations.ErrNoPending):
	case msg.err != nil:
		m.errorMessage = msg.err.Error()
	default:
		m.errorMessage = ""
		switch msg.result.Outcome {
		case citations.OutcomeAdded:
			m.infoMessage = firstNonEmpty(msg.result.Message, "Paper added.")
		case citations.OutcomeCandidates:
			n := len(msg.result.Candidates)
			m.infoMessage = fmt.Sprintf("Pick one of %d candidates with 1-%d, esc to dismiss.", n, min(n, 9))
		default:
			m.infoMessage = firstNonEmpty(msg.result.Message, "No matching paper found.")
		}
	}
}

func (m *model) resize(width, height int) {
	m.layout.Update(width, height)
	m.canvas.Resize(m.layout.mainWidth, m.layout.graphRows)
	m.ws.Graph().FitView()
	m.chatView.Width = m.layout.mainWidth
	m.chatView.Height = m.layout.chatRows
	m.tabView.Width = m.layout.mainWidth
	m.tabView.Height = m.layout.tabRows
	m.composer.Width = max(m.layout.mainWidth-4, 10)
	m.help.Width = width
}

func (m *model) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	return tea.Quit
}

// syncNow applies the workspace state directly, for changes made synchronously in
// Update; the published copy arrives later and is idempotent.
func (m *model) syncNow() tea.Cmd {
	return m.applySnapshot(m.ws.Snapshot())
}

func (m *model) applySnapshot(snap workspace.Snapshot) tea.Cmd {
	m.snap = snap
	if m.sidebarCursor >= len(snap.Papers) {
		m.sidebarCursor = max(len(snap.Papers)-1, 0)
	}
	for id := range m.papers {
		if !m.tabOpen(id) {
			delete(m.papers, id)
		}
	}
	if m.focusedNode != "" && !hasNode(snap.Nodes, m.focusedNode) {
		m.focusedNode = ""
	}
	m.syncHighlight()
	if !m.onChatTab() && m.composer.Focused() {
		m.composer.Blur()
	}
	return m.followChat()
}

func (m *model) syncHighlight() {
	edgeID := ""
	if m.snap.SelectedEdge != nil {
		edgeID = m.snap.SelectedEdge.ID
	}
	m.canvas.Highlight(m.focusedNode, edgeID)
}

// followChat keeps the transcript pinned to its newest message: the first messages of a
// session snap into place, later ones scroll smoothly.
func (m *model) followChat() tea.Cmd {
	engine := m.ws.Chat()
	count := len(engine.Messages())
	if count == m.chatCount {
		return nil
	}
	grew := count > m.chatCount
	m.chatCount = count
	mode := engine.ScrollMode()
	m.refreshChatView()
	if !grew {
		m.chatView.GotoTop()
		return nil
	}
	if mode == chat.ScrollInstant {
		m.chatView.GotoBottom()
		return nil
	}
	if m.scrolling {
		return nil
	}
	m.scrolling = true
	return scrollTick()
}

func scrollTick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(time.Time) tea.Msg {
		return scrollTickMsg{}
	})
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, m.quit()
	}
	if m.confirmDelete != nil {
		return m, m.handleConfirmKey(msg)
	}
	if m.composer.Focused() {
		return m, m.handleComposerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.nextPane):
		m.cycleFocus(1)
		return m, nil
	case key.Matches(msg, m.keys.prevPane):
		m.cycleFocus(-1)
		return m, nil
	case key.Matches(msg, m.keys.nextTab):
		return m, m.cycleTab(1)
	case key.Matches(msg, m.keys.prevTab):
		return m, m.cycleTab(-1)
	case key.Matches(msg, m.keys.toggleHelp):
		m.helpVisible = !m.helpVisible
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.infoMessage = "Refreshing…"
		return m, m.jobs.Start(jobKindRefresh, loadJob(m.ws, false))
	}

	switch m.focus {
	case paneSidebar:
		return m, m.handleSidebarKey(msg)
	case paneGraph:
		return m, m.handleGraphKey(msg)
	default:
		if m.onChatTab() {
			return m, m.handleChatKey(msg)
		}
		return m, m.handlePaperKey(msg)
	}
}

func (m *model) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.confirm):
		pending := *m.confirmDelete
		m.confirmDelete = nil
		m.errorMessage = ""
		if pending.kind == "edge" {
			m.infoMessage = "Removing connection…"
			return m.jobs.Start(jobKindDelete, deleteEdgeJob(m.ws, pending.id))
		}
		m.infoMessage = fmt.Sprintf("Deleting %s…", pending.title)
		return m.jobs.Start(jobKindDelete, deletePaperJob(m.ws, pending.id, pending.title))
	case key.Matches(msg, m.keys.cancel):
		m.confirmDelete = nil
		m.infoMessage = "Delete canceled."
	}
	return nil
}

func (m *model) askDelete(kind, id, title string) {
	if kind == "paper" && m.snap.Deleting != "" {
		m.infoMessage = "A delete is already running."
		return
	}
	m.confirmDelete = &pendingDelete{kind: kind, id: id, title: title}
}

func (m *model) handleComposerKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.blur):
		m.composer.Blur()
		return nil
	case msg.Type == tea.KeyEnter:
		text := strings.TrimSpace(m.composer.Value())
		if text == "" {
			return nil
		}
		return m.sendChat(text)
	case key.Matches(msg, m.keys.nextPane):
		m.composer.Blur()
		m.cycleFocus(1)
		return nil
	case key.Matches(msg, m.keys.prevPane):
		m.composer.Blur()
		m.cycleFocus(-1)
		return nil
	case key.Matches(msg, m.keys.pageUp):
		m.chatView.HalfViewUp()
		return nil
	case key.Matches(msg, m.keys.pageDown):
		m.chatView.HalfViewDown()
		return nil
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return cmd
}

func (m *model) sendChat(text string) tea.Cmd {
	engine := m.ws.Chat()
	if engine.Busy() || engine.Clearing() {
		m.infoMessage = "Waiting for the current reply…"
		return nil
	}
	m.composer.SetValue("")
	m.errorMessage = ""
	m.infoMessage = "Sending…"
	return m.jobs.Start(jobKindChat, sendChatJob(m.ws, text))
}

func (m *model) handleChatKey(msg tea.KeyMsg) tea.Cmd {
	engine := m.ws.Chat()
	switch {
	case key.Matches(msg, m.keys.compose), key.Matches(msg, m.keys.open):
		m.composer.Focus()
		return textinput.Blink
	case key.Matches(msg, m.keys.up):
		m.chatView.LineUp(1)
	case key.Matches(msg, m.keys.down):
		m.chatView.LineDown(1)
	case key.Matches(msg, m.keys.pageUp):
		m.chatView.HalfViewUp()
	case key.Matches(msg, m.keys.pageDown):
		m.chatView.HalfViewDown()
	case key.Matches(msg, m.keys.category):
		if engine.Empty() {
			m.category++
			if m.category >= len(categories) {
				m.category = -1
			}
		}
	case key.Matches(msg, m.keys.clearChat):
		if engine.Busy() || engine.Clearing() {
			m.infoMessage = "Waiting for the current reply…"
			return nil
		}
		m.infoMessage = "Clearing conversation…"
		return m.jobs.Start(jobKindClear, clearChatJob(m.ws))
	case key.Matches(msg, m.keys.pick):
		return m.pickInChat(pickIndex(msg))
	}
	return nil
}

func (m *model) pickInChat(idx int) tea.Cmd {
	engine := m.ws.Chat()
	if engine.Empty() {
		if m.category < 0 {
			m.infoMessage = "Press c to pick a field first."
			return nil
		}
		prompts := promptsFor(categories[m.category].ID)
		if idx < 0 || idx >= len(prompts) {
			return nil
		}
		return m.sendChat(prompts[idx])
	}
	candidates := latestCandidates(engine.Messages())
	if idx < 0 || idx >= len(candidates) {
		return nil
	}
	if engine.Busy() || engine.Clearing() {
		m.infoMessage = "Waiting for the current reply…"
		return nil
	}
	candidate := candidates[idx]
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Adding %s…", candidateLabel(candidate))
	return m.jobs.Start(jobKindChoose, chooseCandidateJob(m.ws, candidate))
}

func (m *model) handlePaperKey(msg tea.KeyMsg) tea.Cmd {
	paperID := m.snap.Active
	pv := m.paperState(paperID)
	resolver, err := m.ws.Resolver(paperID)
	if err != nil {
		m.errorMessage = err.Error()
		return nil
	}
	refs := resolver.List(pv.view).References

	switch {
	case key.Matches(msg, m.keys.up):
		if pv.cursor > 0 {
			pv.cursor--
		}
		pv.follow = true
	case key.Matches(msg, m.keys.down):
		if pv.cursor < len(refs)-1 {
			pv.cursor++
		}
		pv.follow = true
	case key.Matches(msg, m.keys.pageUp):
		m.tabView.HalfViewUp()
	case key.Matches(msg, m.keys.pageDown):
		m.tabView.HalfViewDown()
	case key.Matches(msg, m.keys.open):
		if len(refs) == 0 {
			return nil
		}
		ref := refs[min(pv.cursor, len(refs)-1)]
		if resolver.State(ref.Key).Resolved {
			m.infoMessage = "Already added."
			return nil
		}
		if resolver.Busy() {
			m.infoMessage = "Another reference is being resolved."
			return nil
		}
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Looking up %s…", ref.Query())
		return m.jobs.Start(jobKindResolve, resolveReferenceJob(m.ws, paperID, pv.view, ref.Key))
	case key.Matches(msg, m.keys.pick):
		pending, ok := resolver.Pending()
		idx := pickIndex(msg)
		if !ok || idx < 0 || idx >= len(pending.Candidates) {
			return nil
		}
		candidate := pending.Candidates[idx]
		m.infoMessage = fmt.Sprintf("Adding %s…", candidateLabel(candidate))
		return m.jobs.Start(jobKindResolve, chooseReferenceJob(m.ws, paperID, candidate))
	case key.Matches(msg, m.keys.dismissPick):
		resolver.Dismiss()
	case key.Matches(msg, m.keys.refView):
		if pv.view == citations.ViewCitations {
			pv.view = citations.ViewArxiv
		} else {
			pv.view = citations.ViewCitations
		}
		pv.cursor = 0
	case key.Matches(msg, m.keys.fullText):
		return m.loadFullText(paperID, pv)
	case key.Matches(msg, m.keys.closeTab):
		m.ws.CloseTab(paperID)
		return m.syncNow()
	case key.Matches(msg, m.keys.remove):
		if paper, ok := m.ws.Papers().Get(paperID); ok {
			m.askDelete("paper", paper.ID, paperTitle(paper))
		}
	}
	return nil
}

func (m *model) loadFullText(paperID string, pv *paperView) tea.Cmd {
	if m.config.PDF == nil {
		m.infoMessage = "Full-text preview is not configured."
		return nil
	}
	if pv.loading {
		return nil
	}
	paper, ok := m.ws.Papers().Get(paperID)
	if !ok {
		return nil
	}
	pv.loading = true
	pv.err = ""
	return m.jobs.Start(jobKindFullText, fullTextJob(m.config.PDF, paper))
}

func (m *model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	list := m.snap.Papers
	switch {
	case key.Matches(msg, m.keys.up):
		if m.sidebarCursor > 0 {
			m.sidebarCursor--
		}
	case key.Matches(msg, m.keys.down):
		if m.sidebarCursor < len(list)-1 {
			m.sidebarCursor++
		}
	case key.Matches(msg, m.keys.open):
		if len(list) == 0 {
			return nil
		}
		if err := m.ws.OpenPaper(list[m.sidebarCursor].ID); err != nil {
			m.errorMessage = err.Error()
			return nil
		}
		m.focus = paneTab
		return m.syncNow()
	case key.Matches(msg, m.keys.remove):
		if len(list) == 0 {
			return nil
		}
		paper := list[m.sidebarCursor]
		m.askDelete("paper", paper.ID, paperTitle(paper))
	}
	return nil
}

func (m *model) handleGraphKey(msg tea.KeyMsg) tea.Cmd {
	projection := m.ws.Graph()
	switch {
	case key.Matches(msg, m.keys.nextNode), key.Matches(msg, m.keys.prevNode):
		delta := 1
		if key.Matches(msg, m.keys.prevNode) {
			delta = -1
		}
		ids := make([]string, 0, len(m.snap.Nodes))
		for _, n := range m.snap.Nodes {
			ids = append(ids, n.ID)
		}
		m.focusedNode = cycleID(ids, m.focusedNode, delta)
		m.syncHighlight()
		if node, ok := findNode(m.snap.Nodes, m.focusedNode); ok {
			m.infoMessage = node.Title
		}
	case key.Matches(msg, m.keys.nextEdge), key.Matches(msg, m.keys.prevEdge):
		delta := 1
		if key.Matches(msg, m.keys.prevEdge) {
			delta = -1
		}
		ids := make([]string, 0, len(m.snap.Edges))
		for _, e := range m.snap.Edges {
			ids = append(ids, e.ID)
		}
		current := ""
		if m.snap.SelectedEdge != nil {
			current = m.snap.SelectedEdge.ID
		}
		if next := cycleID(ids, current, delta); next != "" {
			projection.TapEdge(next)
			return m.syncNow()
		}
	case key.Matches(msg, m.keys.open):
		if m.focusedNode == "" {
			return nil
		}
		projection.TapNode(m.focusedNode)
		m.focus = paneTab
		return m.syncNow()
	case key.Matches(msg, m.keys.zoomIn):
		projection.ZoomIn()
	case key.Matches(msg, m.keys.zoomOut):
		projection.ZoomOut()
	case key.Matches(msg, m.keys.fit):
		projection.FitView()
	case key.Matches(msg, m.keys.left):
		m.canvas.Pan(-4, 0)
	case key.Matches(msg, m.keys.right):
		m.canvas.Pan(4, 0)
	case key.Matches(msg, m.keys.up):
		m.canvas.Pan(0, -2)
	case key.Matches(msg, m.keys.down):
		m.canvas.Pan(0, 2)
	case key.Matches(msg, m.keys.remove):
		if edge := m.snap.SelectedEdge; edge != nil {
			m.askDelete("edge", edge.ID, m.edgeLabel(*edge))
		}
	case key.Matches(msg, m.keys.dismissPick):
		projection.TapBackground()
		return m.syncNow()
	}
	return nil
}

func (m *model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.MouseWheelUp, tea.MouseWheelDown:
		var cmd tea.Cmd
		if m.onChatTab() {
			m.chatView, cmd = m.chatView.Update(msg)
		} else {
			m.tabView, cmd = m.tabView.Update(msg)
		}
		return m, cmd
	case tea.MouseLeft:
		if col, row, ok := m.layout.canvasCell(msg.X, msg.Y); ok {
			projection := m.ws.Graph()
			m.focus = paneGraph
			if id, ok := m.canvas.NodeAt(col, row); ok {
				m.focusedNode = id
				projection.TapNode(id)
				m.focus = paneTab
				return m, m.syncNow()
			}
			if id, ok := m.canvas.EdgeAt(col, row); ok {
				projection.TapEdge(id)
				return m, m.syncNow()
			}
			projection.TapBackground()
			return m, m.syncNow()
		}
		if row, ok := m.layout.sidebarRow(msg.X, msg.Y); ok {
			if idx := row + m.sidebarOffset; idx < len(m.snap.Papers) {
				m.sidebarCursor = idx
				m.focus = paneSidebar
			}
		}
	}
	return m, nil
}

func (m *model) cycleFocus(delta int) {
	order := []pane{paneSidebar, paneGraph, paneTab}
	idx := 0
	for i, p := range order {
		if p == m.focus {
			idx = i
		}
	}
	m.focus = order[(idx+delta+len(order))%len(order)]
}

func (m *model) cycleTab(delta int) tea.Cmd {
	ids := make([]string, 0, len(m.snap.Tabs))
	for _, t := range m.snap.Tabs {
		ids = append(ids, t.ID)
	}
	next := cycleID(ids, m.snap.Active, delta)
	if next == "" {
		return nil
	}
	m.ws.SelectTab(next)
	m.focus = paneTab
	return m.syncNow()
}

func (m *model) activeTab() string {
	return m.snap.Active
}

func (m *model) onChatTab() bool {
	return m.snap.Active == "" || m.snap.Active == tabs.ChatID
}

func (m *model) tabOpen(id string) bool {
	for _, t := range m.snap.Tabs {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (m *model) paperState(paperID string) *paperView {
	pv, ok := m.papers[paperID]
	if !ok {
		pv = &paperView{view: citations.ViewCitations}
		m.papers[paperID] = pv
	}
	return pv
}

func (m *model) runningKinds() []string {
	seen := map[jobKind]bool{}
	var kinds []string
	for _, job := range m.running {
		if !seen[job.Kind] {
			seen[job.Kind] = true
			kinds = append(kinds, string(job.Kind))
		}
	}
	sort.Strings(kinds)
	return kinds
}

func (m *model) edgeLabel(edge graph.Edge) string {
	source, target := edge.Source, edge.Target
	if n, ok := findNode(m.snap.Nodes, source); ok {
		source = n.Label
	}
	if n, ok := findNode(m.snap.Nodes, target); ok {
		target = n.Label
	}
	return fmt.Sprintf("%s → %s", source, target)
}

func latestCandidates(messages []chat.Message) []api.PaperCandidate {
	idx := latestCandidateIndex(messages)
	if idx < 0 {
		return nil
	}
	return messages[idx].Candidates
}

func latestCandidateIndex(messages []chat.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if len(messages[i].Candidates) > 0 {
			return i
		}
	}
	return -1
}

func pickIndex(msg tea.KeyMsg) int {
	s := msg.String()
	if len(s) != 1 || s[0] < '1' || s[0] > '9' {
		return -1
	}
	return int(s[0] - '1')
}

// cycleID steps through ids from current; an unknown current starts at either end.
func cycleID(ids []string, current string, delta int) string {
	if len(ids) == 0 {
		return ""
	}
	for i, id := range ids {
		if id == current {
			return ids[(i+delta+len(ids))%len(ids)]
		}
	}
	if delta < 0 {
		return ids[len(ids)-1]
	}
	return ids[0]
}

func hasNode(nodes []graph.Node, id string) bool {
	_, ok := findNode(nodes, id)
	return ok
}

func findNode(nodes []graph.Node, id string) (graph.Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return graph.Node{}, false
}

func paperTitle(p api.Paper) string {
	return firstNonEmpty(strings.TrimSpace(p.Title), p.ID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4A9D9A"))
	taglineStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	paneTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	focusedTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#4A9D9A")).Padding(0, 1)
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	sidebarStyle       = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderRight(true).BorderForeground(lipgloss.Color("#56526e"))
	activeItemStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4A9D9A"))
	deletingItemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)
	tabStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Padding(0, 1)
	activeTabStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	userLabelStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd166"))
	assistantLabel     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4A9D9A"))
	candidateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	chipStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Border(lipgloss.NormalBorder(), false, true).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	activeChipStyle    = chipStyle.Copy().Foreground(lipgloss.Color("#ffffff")).BorderForeground(lipgloss.Color("#4A9D9A"))
	paperTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff8c00"))
	addedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#a3be8c"))
	cursorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
)
