package tui

import (
	"github.com/csheth/papergraph/internal/chat"
	"github.com/csheth/papergraph/internal/citations"
	"github.com/csheth/papergraph/internal/workspace"
)

type pane int

const (
	paneSidebar pane = iota
	paneGraph
	paneTab
)

func (p pane) String() string {
	switch p {
	case paneSidebar:
		return "papers"
	case paneGraph:
		return "graph"
	default:
		return "tab"
	}
}

const heroTagline = "Map the literature one conversation at a time."

const (
	sidebarWidth         = 30
	minMainWidth         = 40
	minGraphHeight       = 8
	fullTextPreviewLimit = 1800
	composerPlaceholder  = "Ask about papers, or ask to add one…"
)

type snapshotMsg struct {
	snap workspace.Snapshot
}

type loadResultMsg struct {
	initial bool
	err     error
}

type chatResultMsg struct {
	reply chat.Message
	err   error
}

type clearResultMsg struct {
	err error
}

type referenceResultMsg struct {
	paperID string
	result  citations.Result
	err     error
}

type deleteResultMsg struct {
	kind  string
	id    string
	title string
	err   error
}

type fullTextMsg struct {
	paperID string
	text    string
	err     error
}

type scrollTickMsg struct{}

// paperView is the per-tab state the workspace does not own.
type paperView struct {
	view     citations.View
	cursor   int
	follow   bool
	fullText string
	loading  bool
	err      string
}
