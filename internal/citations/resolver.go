package citations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/csheth/papergraph/internal/api"
)

var (
	// ErrResolving is returned while another reference of the same paper tab is in flight.
	ErrResolving = errors.New("citations: a reference is already being resolved")
	// ErrResolved is returned for references that were already added.
	ErrResolved = errors.New("citations: reference already added")
	// ErrNoPending is returned by Choose when no candidate list is held.
	ErrNoPending = errors.New("citations: no candidates to choose from")
	// ErrUnknownReference is returned for keys that are not in the list.
	ErrUnknownReference = errors.New("citations: unknown reference")
)

// Selector asks the backend to add a paper.
type Selector interface {
	SelectPaper(ctx context.Context, reference, sourcePaperID string) (api.ChatResponse, error)
}

// Config wires a Resolver.
type Config struct {
	Selector Selector
	// Paper holds the references; its id is sent as the source hint.
	Paper api.Paper
	// GraphChanged runs once per successful addition.
	GraphChanged func(ctx context.Context)
	Logger       *log.Logger
}

// State is the display state of one reference row.
type State struct {
	Resolving bool
	Resolved  bool
}

// Pending is a held candidate list awaiting a choice.
type Pending struct {
	Key        string
	Candidates []api.PaperCandidate
}

// Resolver runs the resolve and disambiguate flow for every reference list of one paper
// tab. Row state is keyed by reference, so a reference added from one list shows as added
// in the other. At most one reference resolves at a time.
type Resolver struct {
	selector     Selector
	graphChanged func(ctx context.Context)
	logger       *log.Logger

	mu        sync.Mutex
	paper     api.Paper
	resolving string
	resolved  map[string]bool
	pending   *Pending
}

// NewResolver builds a Resolver.
func NewResolver(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{
		selector:     cfg.Selector,
		paper:        cfg.Paper,
		graphChanged: cfg.GraphChanged,
		logger:       logger,
		resolved:     map[string]bool{},
	}
}

// PaperID returns the paper this resolver belongs to.
func (r *Resolver) PaperID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paper.ID
}

// List returns the reference list for view.
func (r *Resolver) List(view View) ReferenceList {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ListFor(r.paper, view)
}

// SetPaper swaps in a refetched record of the same paper. Row state carries over by key;
// a held candidate list whose reference is gone is dropped.
func (r *Resolver) SetPaper(paper api.Paper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paper = paper
	if r.pending != nil {
		if _, ok := Citations(paper).Find(r.pending.Key); !ok {
			r.pending = nil
		}
	}
}

// Resolve sends the reference with key from view's list to the backend. Any held
// candidate list is dropped first.
func (r *Resolver) Resolve(ctx context.Context, view View, key string) (Result, error) {
	r.mu.Lock()
	paperID := r.paper.ID
	list := ListFor(r.paper, view)
	ref, ok := list.Find(key)
	if !ok {
		r.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownReference, key)
	}
	if r.resolved[key] {
		r.mu.Unlock()
		return Result{}, ErrResolved
	}
	if r.resolving != "" {
		r.mu.Unlock()
		return Result{}, ErrResolving
	}
	r.resolving = key
	r.pending = nil
	r.mu.Unlock()

	resp, err := r.selector.SelectPaper(ctx, ref.Query(), paperID)

	r.mu.Lock()
	r.resolving = ""
	if err != nil {
		r.mu.Unlock()
		r.logger.Error("resolve reference failed", "paper", paperID, "reference", ref.Query(), "err", err)
		return Result{}, fmt.Errorf("resolve %q: %w", ref.Query(), err)
	}
	result := Interpret(resp, list.Disambiguates)
	switch result.Outcome {
	case OutcomeAdded:
		r.resolved[key] = true
	case OutcomeCandidates:
		r.pending = &Pending{Key: key, Candidates: result.Candidates}
	}
	r.mu.Unlock()

	r.logger.Debug("reference resolved", "paper", paperID, "reference", ref.Query(), "outcome", result.Outcome)
	if result.GraphChanged() {
		r.notify(ctx)
	}
	return result, nil
}

// Choose resolves the held reference with one of its candidates. The candidate list is
// dropped whatever the outcome.
func (r *Resolver) Choose(ctx context.Context, candidate api.PaperCandidate) (Result, error) {
	r.mu.Lock()
	if r.resolving != "" {
		r.mu.Unlock()
		return Result{}, ErrResolving
	}
	if r.pending == nil {
		r.mu.Unlock()
		return Result{}, ErrNoPending
	}
	key := r.pending.Key
	paperID := r.paper.ID
	r.pending = nil
	r.resolving = key
	r.mu.Unlock()

	resp, err := r.selector.SelectPaper(ctx, candidate.ArxivID, paperID)

	r.mu.Lock()
	r.resolving = ""
	if err != nil {
		r.mu.Unlock()
		r.logger.Error("choose candidate failed", "paper", paperID, "candidate", candidate.ArxivID, "err", err)
		return Result{}, fmt.Errorf("select candidate %s: %w", candidate.ArxivID, err)
	}
	result := Interpret(resp, false)
	if result.Outcome == OutcomeAdded {
		r.resolved[key] = true
	}
	r.mu.Unlock()

	if result.GraphChanged() {
		r.notify(ctx)
	}
	return result, nil
}

// Dismiss drops the held candidate list.
func (r *Resolver) Dismiss() {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
}

// State returns the row state for key.
func (r *Resolver) State(key string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{Resolving: r.resolving != "" && r.resolving == key, Resolved: r.resolved[key]}
}

// Busy reports whether a resolution is in flight.
func (r *Resolver) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolving != ""
}

// Pending returns the held candidate list.
func (r *Resolver) Pending() (Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return Pending{}, false
	}
	return Pending{Key: r.pending.Key, Candidates: append([]api.PaperCandidate(nil), r.pending.Candidates...)}, true
}

func (r *Resolver) notify(ctx context.Context) {
	if r.graphChanged != nil {
		r.graphChanged(ctx)
	}
}
