package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gigchat/internal/backend"
	"gigchat/internal/domain"
	"gigchat/pkg/logger"
)

const (
	// MinQueryLength below which the backend is never contacted.
	MinQueryLength = 2
	// DefaultDebounce between the last keystroke and the query.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultLimit caps merged results.
	DefaultLimit = 10
)

// ResultsFunc receives the results for the most recent query. Superseded
// queries never deliver.
type ResultsFunc func(results []domain.SearchResult, err error)

// Search resolves free-text partner queries with debouncing. The backend
// runs the two prefix range queries and the merge; this layer owns the
// typing-time behavior.
type Search struct {
	backend   backend.Backend
	log       *logger.Logger
	debounce  time.Duration
	limit     int
	onResults ResultsFunc

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

func New(b backend.Backend, log *logger.Logger, onResults ResultsFunc) *Search {
	if onResults == nil {
		onResults = func([]domain.SearchResult, error) {}
	}
	return &Search{
		backend:   b,
		log:       log,
		debounce:  DefaultDebounce,
		limit:     DefaultLimit,
		onResults: onResults,
	}
}

// SetDebounce overrides the debounce interval. Used in tests.
func (s *Search) SetDebounce(d time.Duration) {
	s.mu.Lock()
	s.debounce = d
	s.mu.Unlock()
}

// Query schedules a search for query on behalf of userID, superseding any
// pending one. Queries shorter than the minimum clear results immediately
// without contacting the backend.
func (s *Search) Query(ctx context.Context, userID, query string) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if len([]rune(query)) < MinQueryLength {
		s.mu.Unlock()
		s.onResults(nil, nil)
		return
	}

	s.timer = time.AfterFunc(s.debounce, func() {
		s.run(ctx, seq, userID, query)
	})
	s.mu.Unlock()
}

// Cancel drops any pending query and invalidates in-flight ones.
func (s *Search) Cancel() {
	s.mu.Lock()
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
}

func (s *Search) run(ctx context.Context, seq uint64, userID, query string) {
	results, err := s.backend.SearchUsers(ctx, userID, query, s.limit)

	s.mu.Lock()
	stale := seq != s.seq
	s.mu.Unlock()
	if stale {
		// A newer query superseded this one; discard.
		return
	}
	if err != nil {
		s.log.Logger.Warn("user search failed", zap.String("query", query), zap.Error(err))
	}
	s.onResults(results, err)
}
