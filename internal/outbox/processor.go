// Package outbox drains change signals the live store wrote transactionally
// and publishes them to the event bus. A signal is only visible to
// subscribers once the state change that produced it has committed.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gigchat/internal/events"
	"gigchat/internal/repository"
	"gigchat/pkg/logger"
)

const (
	DefaultBatchSize  = 100
	DefaultInterval   = 200 * time.Millisecond
	DefaultMaxRetries = 5
)

// Publisher is the slice of the event bus the processor needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, env events.Envelope) error
}

type Processor struct {
	repo       repository.OutboxRepository
	bus        Publisher
	log        *logger.Logger
	clock      func() time.Time
	batchSize  int
	interval   time.Duration
	maxRetries int
}

func NewProcessor(repo repository.OutboxRepository, bus Publisher, log *logger.Logger, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Processor{
		repo:       repo,
		bus:        bus,
		log:        log,
		clock:      time.Now,
		batchSize:  DefaultBatchSize,
		interval:   interval,
		maxRetries: DefaultMaxRetries,
	}
}

// Run drains batches until ctx is cancelled. It blocks; run it on its own
// goroutine.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publishes one batch of pending rows. Exported so tests can
// drive draining without the ticker.
func (p *Processor) ProcessBatch(ctx context.Context) {
	now := p.clock()
	batch, err := p.repo.PendingBatch(ctx, p.batchSize, now)
	if err != nil {
		p.log.Logger.Warn("outbox fetch failed", zap.Error(err))
		return
	}

	for _, row := range batch {
		if row.RetryCount >= p.maxRetries {
			_ = p.repo.MarkFailed(ctx, row.ID, now.Add(time.Hour), "max retries exceeded")
			continue
		}

		env := events.Envelope{
			EventType:      row.EventType,
			ConversationID: row.ConversationID,
			UserID:         row.UserID,
			OccurredAt:     row.CreatedAt.UTC(),
		}
		if err := p.bus.Publish(ctx, row.Channel, env); err != nil {
			p.log.Logger.Warn("outbox publish failed",
				zap.String("channel", row.Channel), zap.Error(err))
			_ = p.repo.MarkFailed(ctx, row.ID, now.Add(time.Minute), err.Error())
			continue
		}
		if err := p.repo.MarkPublished(ctx, row.ID, p.clock()); err != nil {
			p.log.Logger.Warn("outbox mark published failed",
				zap.String("id", row.ID), zap.Error(err))
		}
	}
}
