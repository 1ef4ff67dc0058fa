package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigchat/internal/events"
	"gigchat/internal/repository"
	"gigchat/pkg/logger"
)

type memoryOutbox struct {
	rows []repository.OutboxRow
}

func (m *memoryOutbox) Enqueue(ctx context.Context, row *repository.OutboxRow) error {
	m.rows = append(m.rows, *row)
	return nil
}

func (m *memoryOutbox) PendingBatch(ctx context.Context, limit int, now time.Time) ([]repository.OutboxRow, error) {
	var out []repository.OutboxRow
	for _, r := range m.rows {
		if r.PublishedAt == nil && !r.NextAttemptAt.After(now) {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryOutbox) MarkPublished(ctx context.Context, id string, at time.Time) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			published := at
			m.rows[i].PublishedAt = &published
		}
	}
	return nil
}

func (m *memoryOutbox) MarkFailed(ctx context.Context, id string, nextAttempt time.Time, lastError string) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].RetryCount++
			m.rows[i].NextAttemptAt = nextAttempt
			m.rows[i].LastError = lastError
		}
	}
	return nil
}

type recordingPublisher struct {
	err       error
	published []struct {
		channel string
		env     events.Envelope
	}
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, env events.Envelope) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, struct {
		channel string
		env     events.Envelope
	}{channel, env})
	return nil
}

func pendingRow(id, channel string) repository.OutboxRow {
	return repository.OutboxRow{
		ID:             id,
		Channel:        channel,
		EventType:      events.EventConversationChanged,
		ConversationID: "alice_bob",
		UserID:         "alice",
		CreatedAt:      time.Now().Add(-time.Second),
		NextAttemptAt:  time.Now().Add(-time.Second),
	}
}

func TestProcessBatchPublishesAndMarksRows(t *testing.T) {
	repo := &memoryOutbox{rows: []repository.OutboxRow{
		pendingRow("r1", "gigchat:directory:alice"),
		pendingRow("r2", "gigchat:directory:bob"),
	}}
	pub := &recordingPublisher{}
	p := NewProcessor(repo, pub, logger.NewNop(), 0)

	p.ProcessBatch(context.Background())

	require.Len(t, pub.published, 2)
	assert.Equal(t, "gigchat:directory:alice", pub.published[0].channel)
	for _, r := range repo.rows {
		assert.NotNil(t, r.PublishedAt)
	}

	// A drained outbox publishes nothing further.
	p.ProcessBatch(context.Background())
	assert.Len(t, pub.published, 2)
}

func TestProcessBatchRetriesFailedPublishes(t *testing.T) {
	repo := &memoryOutbox{rows: []repository.OutboxRow{pendingRow("r1", "gigchat:directory:alice")}}
	pub := &recordingPublisher{err: errors.New("redis down")}
	p := NewProcessor(repo, pub, logger.NewNop(), 0)

	p.ProcessBatch(context.Background())

	row := repo.rows[0]
	assert.Nil(t, row.PublishedAt)
	assert.Equal(t, 1, row.RetryCount)
	assert.Equal(t, "redis down", row.LastError)
	assert.True(t, row.NextAttemptAt.After(time.Now()))
}

func TestProcessBatchGivesUpAfterMaxRetries(t *testing.T) {
	row := pendingRow("r1", "gigchat:directory:alice")
	row.RetryCount = DefaultMaxRetries
	repo := &memoryOutbox{rows: []repository.OutboxRow{row}}
	pub := &recordingPublisher{}
	p := NewProcessor(repo, pub, logger.NewNop(), 0)

	p.ProcessBatch(context.Background())

	assert.Empty(t, pub.published)
	assert.Equal(t, "max retries exceeded", repo.rows[0].LastError)
}
