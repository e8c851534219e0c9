// Package workspace keeps the paper store, graph, tabs and conversation consistent with
// the backend. Every mutation that can change the graph ends in a full refetch.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/chat"
	"github.com/csheth/papergraph/internal/citations"
	"github.com/csheth/papergraph/internal/graph"
	"github.com/csheth/papergraph/internal/papers"
	"github.com/csheth/papergraph/internal/tabs"
)

var (
	// ErrDeleteInFlight is returned when a paper delete is already running.
	ErrDeleteInFlight = errors.New("workspace: a delete is already in progress")
	// ErrUnknownPaper is returned for ids that are not in the paper store.
	ErrUnknownPaper = errors.New("workspace: unknown paper")
)

// Backend is everything the workspace needs from the service.
type Backend interface {
	papers.Backend
	chat.Backend
	Graph(ctx context.Context) (api.Graph, error)
	DeleteEdge(ctx context.Context, edgeID string) error
}

// Config wires a Workspace.
type Config struct {
	Backend Backend
	Storage chat.Storage
	// Renderer draws the graph; nil uses an 80x24 Canvas.
	Renderer graph.Renderer
	Logger   *log.Logger
}

// Snapshot is a consistent copy of the workspace state for rendering.
type Snapshot struct {
	Papers       []api.Paper
	Counts       graph.Counts
	Nodes        []graph.Node
	Edges        []graph.Edge
	SelectedEdge *graph.Edge
	Tabs         []tabs.Tab
	Active       string
	Deleting     string
	ChatBusy     bool
	Clearing     bool
	Refreshed    time.Time
}

// Workspace is the sync coordinator.
type Workspace struct {
	backend    Backend
	logger     *log.Logger
	papers     *papers.Store
	projection *graph.Projection
	tabs       *tabs.Manager
	chat       *chat.Engine

	flight singleflight.Group

	mu          sync.Mutex
	requested   uint64
	completed   uint64
	refreshed   time.Time
	deleting    string
	resolvers   map[string]*citations.Resolver
	subscribers map[int]func(Snapshot)
	nextSub     int
}

// New assembles the components around backend.
func New(cfg Config) *Workspace {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = graph.NewCanvas(80, 24)
	}
	w := &Workspace{
		backend:     cfg.Backend,
		logger:      logger,
		papers:      papers.NewStore(cfg.Backend),
		projection:  graph.NewProjection(renderer),
		tabs:        tabs.NewManager(),
		resolvers:   map[string]*citations.Resolver{},
		subscribers: map[int]func(Snapshot){},
	}
	w.chat = chat.NewEngine(chat.Config{
		Backend:      cfg.Backend,
		Storage:      cfg.Storage,
		GraphChanged: w.graphChanged,
		Logger:       logger.WithPrefix("chat"),
	})
	w.projection.OnNodeClick(func(id string) {
		if err := w.OpenPaper(id); err != nil {
			w.logger.Warn("open paper from graph failed", "paper", id, "err", err)
		}
	})
	w.projection.OnEdgeClick(func(graph.Edge) {
		w.publish()
	})
	return w
}

// Papers returns the paper store.
func (w *Workspace) Papers() *papers.Store { return w.papers }

// Graph returns the graph projection.
func (w *Workspace) Graph() *graph.Projection { return w.projection }

// Tabs returns the tab manager.
func (w *Workspace) Tabs() *tabs.Manager { return w.tabs }

// Chat returns the conversation engine.
func (w *Workspace) Chat() *chat.Engine { return w.chat }

// Load performs the initial reads. The transcript and the paper/graph state load
// concurrently; failures are logged and returned but leave the workspace usable.
func (w *Workspace) Load(ctx context.Context) error {
	var chatErr, refreshErr error
	var g errgroup.Group
	g.Go(func() error {
		chatErr = w.chat.Bootstrap(ctx)
		return nil
	})
	g.Go(func() error {
		refreshErr = w.Refresh(ctx)
		return nil
	})
	_ = g.Wait()
	w.publish()
	return errors.Join(chatErr, refreshErr)
}

// Refresh refetches papers and graph together and publishes the result. Calls that
// overlap share a fetch, but a caller never returns on a fetch that started before it asked.
func (w *Workspace) Refresh(ctx context.Context) error {
	w.mu.Lock()
	w.requested++
	want := w.requested
	w.mu.Unlock()

	for {
		_, err, _ := w.flight.Do("refresh", func() (any, error) {
			return nil, w.fetch(ctx)
		})
		if err != nil {
			return err
		}
		w.mu.Lock()
		done := w.completed >= want
		w.mu.Unlock()
		if done {
			return nil
		}
	}
}

func (w *Workspace) fetch(ctx context.Context) error {
	w.mu.Lock()
	started := w.requested
	w.mu.Unlock()

	var (
		list     []api.Paper
		elements api.Graph
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = w.backend.ListPapers(gctx)
		if err != nil {
			return fmt.Errorf("list papers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		elements, err = w.backend.Graph(gctx)
		if err != nil {
			return fmt.Errorf("get graph: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		w.logger.Error("refresh failed", "err", err)
		return err
	}

	w.papers.Replace(list)
	w.refreshResolvers()
	set := graph.Partition(elements.Elements)
	w.projection.Apply(set, w.papers.Has)

	w.mu.Lock()
	if started > w.completed {
		w.completed = started
	}
	w.refreshed = time.Now()
	w.mu.Unlock()

	w.logger.Debug("refreshed", "papers", len(list), "nodes", len(set.Nodes), "edges", len(set.Edges))
	w.publish()
	return nil
}

func (w *Workspace) graphChanged(ctx context.Context) {
	if err := w.Refresh(ctx); err != nil {
		w.logger.Warn("refresh after graph change failed", "err", err)
	}
}

// SendChat sends a chat message; a graph update in the reply triggers a refresh.
func (w *Workspace) SendChat(ctx context.Context, text string) (chat.Message, error) {
	w.publish()
	defer w.publish()
	return w.chat.Send(ctx, text)
}

// ChooseCandidate adds a candidate offered in the chat.
func (w *Workspace) ChooseCandidate(ctx context.Context, candidate api.PaperCandidate) (chat.Message, error) {
	w.publish()
	defer w.publish()
	return w.chat.Choose(ctx, candidate)
}

// ClearChat clears the conversation on the backend and locally.
func (w *Workspace) ClearChat(ctx context.Context) error {
	w.publish()
	defer w.publish()
	return w.chat.Clear(ctx)
}

// OpenPaper opens (or focuses) the paper's tab.
func (w *Workspace) OpenPaper(paperID string) error {
	paper, ok := w.papers.Get(paperID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPaper, paperID)
	}
	w.tabs.Open(paper)
	w.publish()
	return nil
}

// CloseTab closes a paper tab and forgets its reference state.
func (w *Workspace) CloseTab(id string) {
	w.tabs.Close(id)
	w.dropResolvers(id)
	w.publish()
}

// SelectTab activates a tab; an empty id focuses chat.
func (w *Workspace) SelectTab(id string) {
	w.tabs.Select(id)
	w.publish()
}

// Resolver returns the reference resolver of an open paper tab, creating it on first use.
// Both reference lists of the tab share it.
func (w *Workspace) Resolver(paperID string) (*citations.Resolver, error) {
	paper, ok := w.papers.Get(paperID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPaper, paperID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.resolvers[paperID]; ok {
		return r, nil
	}
	r := citations.NewResolver(citations.Config{
		Selector:     w.backend,
		Paper:        paper,
		GraphChanged: w.graphChanged,
		Logger:       w.logger.WithPrefix("citations"),
	})
	w.resolvers[paperID] = r
	return r, nil
}

// ResolveReference resolves one row of a paper's reference list.
func (w *Workspace) ResolveReference(ctx context.Context, paperID string, view citations.View, key string) (citations.Result, error) {
	r, err := w.Resolver(paperID)
	if err != nil {
		return citations.Result{}, err
	}
	w.publish()
	defer w.publish()
	return r.Resolve(ctx, view, key)
}

// ChooseReferenceCandidate settles a paper tab's pending disambiguation.
func (w *Workspace) ChooseReferenceCandidate(ctx context.Context, paperID string, candidate api.PaperCandidate) (citations.Result, error) {
	r, err := w.Resolver(paperID)
	if err != nil {
		return citations.Result{}, err
	}
	w.publish()
	defer w.publish()
	return r.Choose(ctx, candidate)
}

// refreshResolvers hands refetched paper records to their resolvers and drops the
// resolvers of papers that are gone.
func (w *Workspace) refreshResolvers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, r := range w.resolvers {
		paper, ok := w.papers.Get(id)
		if !ok {
			delete(w.resolvers, id)
			continue
		}
		r.SetPaper(paper)
	}
}

func (w *Workspace) dropResolvers(paperID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.resolvers, paperID)
}

// DeletePaper removes a paper, closes its tab and refetches. Only one delete runs at a
// time; a failed delete leaves the paper and its tab in place.
func (w *Workspace) DeletePaper(ctx context.Context, paperID string) error {
	w.mu.Lock()
	if w.deleting != "" {
		w.mu.Unlock()
		return ErrDeleteInFlight
	}
	w.deleting = paperID
	w.mu.Unlock()
	w.publish()

	defer func() {
		w.mu.Lock()
		w.deleting = ""
		w.mu.Unlock()
		w.publish()
	}()

	if err := w.papers.Remove(ctx, paperID); err != nil {
		w.logger.Error("delete paper failed", "paper", paperID, "err", err)
		return err
	}
	w.tabs.Close(paperID)
	w.dropResolvers(paperID)
	return w.Refresh(ctx)
}

// DeleteEdge removes an edge, clears the edge selection and refetches.
func (w *Workspace) DeleteEdge(ctx context.Context, edgeID string) error {
	if err := w.backend.DeleteEdge(ctx, edgeID); err != nil {
		w.logger.Error("delete edge failed", "edge", edgeID, "err", err)
		return fmt.Errorf("delete edge %s: %w", edgeID, err)
	}
	w.projection.DismissEdge()
	return w.Refresh(ctx)
}

// Deleting returns the id of the paper being deleted, if any.
func (w *Workspace) Deleting() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.deleting
}

// Snapshot copies the current state.
func (w *Workspace) Snapshot() Snapshot {
	snap := Snapshot{
		Papers:   w.papers.All(),
		Counts:   w.projection.Counts(),
		Nodes:    w.projection.Nodes(),
		Edges:    w.projection.Edges(),
		Tabs:     w.tabs.Tabs(),
		Active:   w.tabs.Active(),
		ChatBusy: w.chat.Busy(),
		Clearing: w.chat.Clearing(),
	}
	if edge, ok := w.projection.SelectedEdge(); ok {
		snap.SelectedEdge = &edge
	}
	w.mu.Lock()
	snap.Deleting = w.deleting
	snap.Refreshed = w.refreshed
	w.mu.Unlock()
	return snap
}

// Subscribe registers fn to receive a snapshot after every state change. The returned
// func unregisters it.
func (w *Workspace) Subscribe(fn func(Snapshot)) func() {
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subscribers[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.subscribers, id)
		w.mu.Unlock()
	}
}

func (w *Workspace) publish() {
	w.mu.Lock()
	if len(w.subscribers) == 0 {
		w.mu.Unlock()
		return
	}
	subs := make([]func(Snapshot), 0, len(w.subscribers))
	for _, fn := range w.subscribers {
		subs = append(subs, fn)
	}
	w.mu.Unlock()

	snap := w.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}
