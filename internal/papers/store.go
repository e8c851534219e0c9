// Package papers holds the client's copy of the paper list.
package papers

import (
	"context"
	"fmt"
	"sync"

	"github.com/csheth/papergraph/internal/api"
)

// Backend is the subset of the service the store talks to.
type Backend interface {
	ListPapers(ctx context.Context) ([]api.Paper, error)
	DeletePaper(ctx context.Context, paperID string) error
}

// Store is a snapshot of the backend's paper list. Every refresh replaces the whole
// snapshot; a failed refresh keeps the previous one.
type Store struct {
	backend Backend

	mu     sync.RWMutex
	papers []api.Paper
	index  map[string]int
}

// NewStore returns an empty store.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend, index: map[string]int{}}
}

// Refresh refetches the list and swaps it in.
func (s *Store) Refresh(ctx context.Context) error {
	list, err := s.backend.ListPapers(ctx)
	if err != nil {
		return fmt.Errorf("refresh papers: %w", err)
	}
	s.Replace(list)
	return nil
}

// Replace installs list as the current snapshot. Later duplicates of an id win.
func (s *Store) Replace(list []api.Paper) {
	papers := make([]api.Paper, 0, len(list))
	index := make(map[string]int, len(list))
	for _, p := range list {
		if i, ok := index[p.ID]; ok {
			papers[i] = p
			continue
		}
		index[p.ID] = len(papers)
		papers = append(papers, p)
	}
	s.mu.Lock()
	s.papers = papers
	s.index = index
	s.mu.Unlock()
}

// Remove asks the backend to delete a paper without refetching.
func (s *Store) Remove(ctx context.Context, paperID string) error {
	if err := s.backend.DeletePaper(ctx, paperID); err != nil {
		return fmt.Errorf("delete paper %s: %w", paperID, err)
	}
	return nil
}

// Delete removes a paper on the backend and then refreshes.
func (s *Store) Delete(ctx context.Context, paperID string) error {
	if err := s.Remove(ctx, paperID); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// All returns a copy of the snapshot in backend order.
func (s *Store) All() []api.Paper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Paper(nil), s.papers...)
}

// Get looks a paper up by id.
func (s *Store) Get(paperID string) (api.Paper, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[paperID]
	if !ok {
		return api.Paper{}, false
	}
	return s.papers[i], true
}

// Has reports whether paperID is in the snapshot.
func (s *Store) Has(paperID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[paperID]
	return ok
}

// Len returns the number of papers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.papers)
}
