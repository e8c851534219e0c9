package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/pdftext"
	"github.com/csheth/papergraph/internal/workspace"
)

func loadJob(ws *workspace.Workspace, initial bool) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		var err error
		if initial {
			err = ws.Load(ctx)
		} else {
			err = ws.Refresh(ctx)
		}
		return loadResultMsg{initial: initial, err: err}, err
	}
}

func sendChatJob(ws *workspace.Workspace, text string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		reply, err := ws.SendChat(ctx, text)
		return chatResultMsg{reply: reply, err: err}, err
	}
}

func chooseCandidateJob(ws *workspace.Workspace, candidate api.PaperCandidate) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		reply, err := ws.ChooseCandidate(ctx, candidate)
		return chatResultMsg{reply: reply, err: err}, err
	}
}

func clearChatJob(ws *workspace.Workspace) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		err := ws.ClearChat(ctx)
		return clearResultMsg{err: err}, err
	}
}

func resolveReferenceJob(ws *workspace.Workspace, paperID string, view citations.View, key string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		result, err := ws.ResolveReference(ctx, paperID, view, key)
		return referenceResultMsg{paperID: paperID, result: result, err: err}, err
	}
}

func chooseReferenceJob(ws *workspace.Workspace, paperID string, candidate api.PaperCandidate) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		result, err := ws.ChooseReferenceCandidate(ctx, paperID, candidate)
		return referenceResultMsg{paperID: paperID, result: result, err: err}, err
	}
}

func deletePaperJob(ws *workspace.Workspace, paperID, title string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		err := ws.DeletePaper(ctx, paperID)
		return deleteResultMsg{kind: "paper", id: paperID, title: title, err: err}, err
	}
}

func deleteEdgeJob(ws *workspace.Workspace, edgeID string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		err := ws.DeleteEdge(ctx, edgeID)
		return deleteResultMsg{kind: "edge", id: edgeID, err: err}, err
	}
}

func fullTextJob(cache *pdftext.Cache, paper api.Paper) jobRunner {
	paperID := paper.ID
	url := pdftext.URL(paper.ID, paper.PDFURL)
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		text, err := cache.Text(ctx, url)
		if err != nil {
			return fullTextMsg{paperID: paperID, err: err}, err
		}
		return fullTextMsg{paperID: paperID, text: pdftext.Preview(text, fullTextPreviewLimit)}, nil
	}
}

// snapshotFeed hands workspace snapshots to the update loop. It keeps only the
// latest one and never blocks the publisher, which may be running inside Update.
type snapshotFeed struct {
	ch chan workspace.Snapshot
}

func newSnapshotFeed() *snapshotFeed {
	return &snapshotFeed{ch: make(chan workspace.Snapshot, 1)}
}

func (f *snapshotFeed) push(snap workspace.Snapshot) {
	for {
		select {
		case f.ch <- snap:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

func (f *snapshotFeed) wait() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snap: <-f.ch}
	}
}

func trimmedTitle(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit < 2 {
		return "…"
	}
	return fmt.Sprintf("%s…", strings.TrimSpace(string(runes[:limit-1])))
}

func candidateLabel(c api.PaperCandidate) string {
	label := c.Title
	if label == "" {
		label = c.ArxivID
	}
	var meta []string
	if len(c.Authors) > 0 {
		meta = append(meta, shortenList(c.Authors, 2))
	}
	if c.Year > 0 {
		meta = append(meta, fmt.Sprintf("%d", c.Year))
	}
	if c.ArxivID != "" {
		meta = append(meta, "arXiv:"+c.ArxivID)
	}
	if len(meta) == 0 {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, strings.Join(meta, ", "))
}
