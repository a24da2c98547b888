// Package catalog implements the paginated voice catalog search. A Session
// accumulates results across pages, post-filters providers the backend cannot
// filter natively, and rewrites duplicate voice IDs so downstream consumers
// always see unique keys.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Naqued/speechlink/internal/backendapi"
	"github.com/Naqued/speechlink/pkg/types"
)

// defaultPageSize is used when a query does not set its own.
const defaultPageSize = 20

// ErrNoSearch is returned by LoadMore before any Search has run.
var ErrNoSearch = errors.New("catalog: no active search")

// ErrExhausted is returned by LoadMore when the backend reported no further
// pages.
var ErrExhausted = errors.New("catalog: no more results")

// Searcher is the backend capability the session needs. *backendapi.Client
// satisfies it.
type Searcher interface {
	SearchVoices(ctx context.Context, query, language string, provider types.Provider, page, pageSize int) (*backendapi.CatalogPage, error)
}

// Query describes one catalog search.
type Query struct {
	// Text is the free-text search term. May be empty to browse.
	Text string

	// Language optionally restricts results to a language tag.
	Language string

	// Provider optionally restricts results to one provider. ElevenLabs is
	// filtered by the backend; other providers are filtered client-side
	// after each page arrives.
	Provider types.Provider

	// PageSize is the page size requested from the backend. Zero means the
	// default.
	PageSize int
}

// Session is one search-and-paginate interaction. A new Search resets all
// accumulated state; LoadMore extends it page by page.
//
// Session is safe for concurrent use, though callers normally drive it from
// a single UI goroutine.
type Session struct {
	searcher Searcher

	mu      sync.Mutex
	query   Query
	active  bool
	page    int
	hasMore bool
	results []types.Voice
	seen    map[string]int
}

// NewSession creates a Session backed by the given searcher.
func NewSession(searcher Searcher) *Session {
	return &Session{searcher: searcher}
}

// Search starts a fresh search, discarding any previous results, and loads
// the first page. It returns the first page of results.
func (s *Session) Search(ctx context.Context, q Query) ([]types.Voice, error) {
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}

	s.mu.Lock()
	s.query = q
	s.active = true
	s.page = 0
	s.hasMore = false
	s.results = nil
	s.seen = make(map[string]int)
	s.mu.Unlock()

	return s.loadPage(ctx, 0)
}

// LoadMore fetches the next page and returns just the newly added results.
// Returns [ErrNoSearch] before the first Search and [ErrExhausted] when the
// backend reported no further pages.
func (s *Session) LoadMore(ctx context.Context) ([]types.Voice, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil, ErrNoSearch
	}
	if !s.hasMore {
		s.mu.Unlock()
		return nil, ErrExhausted
	}
	next := s.page + 1
	s.mu.Unlock()

	return s.loadPage(ctx, next)
}

// Results returns a snapshot of all accumulated results, in arrival order.
func (s *Session) Results() []types.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Voice, len(s.results))
	copy(out, s.results)
	return out
}

// HasMore reports whether the backend indicated further pages.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// loadPage fetches one page, applies the client-side provider filter, dedups
// IDs against everything seen so far, and appends to the accumulated results.
func (s *Session) loadPage(ctx context.Context, page int) ([]types.Voice, error) {
	s.mu.Lock()
	q := s.query
	s.mu.Unlock()

	resp, err := s.searcher.SearchVoices(ctx, q.Text, q.Language, q.Provider, page, q.PageSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: load page %d: %w", page, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]types.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		if !providerMatches(q.Provider, v.Provider) {
			continue
		}
		v.ID = s.dedupID(v.ID)
		added = append(added, v)
	}

	s.page = page
	s.hasMore = resp.HasMore
	s.results = append(s.results, added...)
	return added, nil
}

// dedupID returns id unchanged on first sight and "<id>#<n>" (n starting at
// 2) for repeats, so accumulated results always have unique IDs. Must be
// called with s.mu held.
func (s *Session) dedupID(id string) string {
	s.seen[id]++
	if n := s.seen[id]; n > 1 {
		return fmt.Sprintf("%s#%d", id, n)
	}
	return id
}

// ResolveVoice returns the catalog entry for voiceID. Accumulated search
// results are checked first, since preferences are normally picked from
// results already on screen; on a miss a one-page backend lookup is issued.
func (s *Session) ResolveVoice(ctx context.Context, voiceID string) (*types.Voice, error) {
	s.mu.Lock()
	for _, v := range s.results {
		if v.ID == voiceID {
			s.mu.Unlock()
			out := v
			return &out, nil
		}
	}
	s.mu.Unlock()

	resp, err := s.searcher.SearchVoices(ctx, voiceID, "", "", 0, defaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve voice %q: %w", voiceID, err)
	}
	for _, v := range resp.Voices {
		if v.ID == voiceID {
			out := v
			return &out, nil
		}
	}
	return nil, fmt.Errorf("catalog: voice %q not found", voiceID)
}

// providerMatches applies the client-side provider filter. ElevenLabs is
// already filtered by the backend, so it passes everything through; for other
// providers every page is filtered here.
func providerMatches(want, got types.Provider) bool {
	if want == "" || want == types.ProviderElevenLabs {
		return true
	}
	return want == got
}
