package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/api/apitest"
	"github.com/csheth/papergraph/internal/tabs"
	"github.com/csheth/papergraph/internal/workspace"
)

func TestSnapshotFeedKeepsLatest(t *testing.T) {
	feed := newSnapshotFeed()
	done := make(chan struct{})
	go func() {
		for _, id := range []string{"a", "b", "c"} {
			feed.push(workspace.Snapshot{Active: id})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push blocked without a reader")
	}

	msg, ok := feed.wait()().(snapshotMsg)
	if !ok {
		t.Fatalf("expected snapshotMsg")
	}
	if msg.snap.Active != "c" {
		t.Fatalf("feed delivered %q, want the latest snapshot", msg.snap.Active)
	}
}

func TestWorkspacePublishesIntoFeed(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	if err := m.ws.OpenPaper(attentionID); err != nil {
		t.Fatalf("open: %v", err)
	}
	msg, ok := m.feed.wait()().(snapshotMsg)
	if !ok {
		t.Fatalf("expected snapshotMsg")
	}
	if msg.snap.Active != attentionID {
		t.Fatalf("published active = %q", msg.snap.Active)
	}

	if cmd := press(m, msg); cmd == nil {
		t.Fatal("a snapshot should re-arm the feed")
	}
	if m.snap.Active != attentionID {
		t.Fatalf("model active = %q", m.snap.Active)
	}
}

func TestLoadJobReportsInitialAndRefresh(t *testing.T) {
	backend := seededBackend(t)
	m := newTestModel(t, backend)

	payload, err := loadJob(m.ws, false)(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	result, ok := payload.(loadResultMsg)
	if !ok || result.initial {
		t.Fatalf("unexpected payload %#v", payload)
	}

	backend.FailNext("GET /papers", 1)
	payload, err = loadJob(m.ws, false)(context.Background())
	if err == nil {
		t.Fatal("expected refresh failure")
	}
	press(m, payload)
	if !strings.Contains(m.errorMessage, "Backend unavailable") {
		t.Fatalf("error = %q", m.errorMessage)
	}
}

func TestClearChatJobResetsTranscript(t *testing.T) {
	m := newTestModel(t, apitest.New(t))
	payload, err := sendChatJob(m.ws, "hello")(context.Background())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	press(m, payload)
	m.category = 2

	payload, err = clearChatJob(m.ws)(context.Background())
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	press(m, payload)
	if len(m.ws.Chat().Messages()) != 0 {
		t.Fatal("transcript should be empty")
	}
	if m.category != -1 {
		t.Fatal("starter category should reset")
	}
	if m.infoMessage != "Conversation cleared." {
		t.Fatalf("info = %q", m.infoMessage)
	}
}

func TestDeleteEdgeJob(t *testing.T) {
	m := newTestModel(t, seededBackend(t))
	payload, err := deleteEdgeJob(m.ws, "e1")(context.Background())
	if err != nil {
		t.Fatalf("delete edge: %v", err)
	}
	press(m, payload)
	if m.snap.Counts.Edges != 0 {
		t.Fatalf("edge still counted: %+v", m.snap.Counts)
	}
	if m.infoMessage != "Connection removed." {
		t.Fatalf("info = %q", m.infoMessage)
	}
	if m.snap.Active != tabs.ChatID {
		t.Fatalf("active = %q", m.snap.Active)
	}
}

func TestTrimmedTitle(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{in: "Short", limit: 10, want: "Short"},
		{in: "Attention Is All You Need", limit: 10, want: "Attention…"},
		{in: "Anything", limit: 1, want: "…"},
	}
	for _, tc := range cases {
		if got := trimmedTitle(tc.in, tc.limit); got != tc.want {
			t.Fatalf("trimmedTitle(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestCandidateLabel(t *testing.T) {
	got := candidateLabel(api.PaperCandidate{
		ArxivID: "1706.03762",
		Title:   "Attention Is All You Need",
		Authors: []string{"Vaswani", "Shazeer", "Parmar"},
		Year:    2017,
	})
	want := "Attention Is All You Need (Vaswani, Shazeer…, 2017, arXiv:1706.03762)"
	if got != want {
		t.Fatalf("candidateLabel = %q, want %q", got, want)
	}
	if got := candidateLabel(api.PaperCandidate{ArxivID: "2005.14165"}); got != "2005.14165 (arXiv:2005.14165)" {
		t.Fatalf("id-only label = %q", got)
	}
}

func TestJobIDsAreUnique(t *testing.T) {
	bus := newJobBus(nil)
	first := bus.nextID(jobKindChat)
	second := bus.nextID(jobKindChat)
	if first == second || !strings.HasPrefix(first, "chat-") {
		t.Fatalf("ids %q and %q", first, second)
	}
	if bus.Start(jobKindChat, sendChatJob(nil, "")) == nil {
		t.Fatal("Start should return a command")
	}
}
