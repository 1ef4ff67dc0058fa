package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigchat/internal/backend/backendtest"
	"gigchat/internal/domain"
	apperrors "gigchat/pkg/errors"
	"gigchat/pkg/logger"
)

type delivery struct {
	results []domain.SearchResult
	err     error
}

func newRecorder() (chan delivery, ResultsFunc) {
	ch := make(chan delivery, 8)
	return ch, func(results []domain.SearchResult, err error) {
		ch <- delivery{results: results, err: err}
	}
}

func waitDelivery(t *testing.T, ch chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no results delivered")
		return delivery{}
	}
}

func TestShortQueryClearsWithoutBackendCall(t *testing.T) {
	fake := backendtest.New()
	ch, fn := newRecorder()
	s := New(fake, logger.NewNop(), fn)

	s.Query(context.Background(), "alice", "b")

	d := waitDelivery(t, ch)
	assert.Nil(t, d.results)
	assert.NoError(t, d.err)
	assert.Empty(t, fake.SearchCalls)
}

func TestDebounceCoalescesKeystrokes(t *testing.T) {
	fake := backendtest.New()
	fake.Results = []domain.SearchResult{{Profile: domain.Profile{ID: "bob", Username: "bobby"}}}
	ch, fn := newRecorder()
	s := New(fake, logger.NewNop(), fn)
	s.SetDebounce(20 * time.Millisecond)

	s.Query(context.Background(), "alice", "bo")
	s.Query(context.Background(), "alice", "bob")
	s.Query(context.Background(), "alice", "bobb")

	d := waitDelivery(t, ch)
	require.Len(t, d.results, 1)
	assert.Equal(t, "bob", d.results[0].ID)

	// Only the final keystroke reached the backend.
	assert.Equal(t, []string{"bobb"}, fake.SearchCalls)
	select {
	case <-ch:
		t.Fatal("superseded query delivered results")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelDropsPendingQuery(t *testing.T) {
	fake := backendtest.New()
	ch, fn := newRecorder()
	s := New(fake, logger.NewNop(), fn)
	s.SetDebounce(20 * time.Millisecond)

	s.Query(context.Background(), "alice", "bob")
	s.Cancel()

	select {
	case <-ch:
		t.Fatal("cancelled query delivered results")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Empty(t, fake.SearchCalls)
}

func TestSearchErrorIsDelivered(t *testing.T) {
	fake := backendtest.New()
	fake.SearchErr = apperrors.ErrBackendUnavailable
	ch, fn := newRecorder()
	s := New(fake, logger.NewNop(), fn)
	s.SetDebounce(5 * time.Millisecond)

	s.Query(context.Background(), "alice", "bob")

	d := waitDelivery(t, ch)
	assert.ErrorIs(t, d.err, apperrors.ErrBackendUnavailable)
	assert.Nil(t, d.results)
}
