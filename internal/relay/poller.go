package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/guard"
	"github.com/accredit/compliance/internal/metrics"
	"github.com/accredit/compliance/internal/repository"
)

// Publisher is satisfied by *infra.KafkaProducer.
type Publisher interface {
	Publish(ctx context.Context, topic string, eventType domain.EventType, key, value []byte) error
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	repository.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Options tunes the poller.
type Options struct {
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
}

// Poller drains the event_outbox table into the broker in id order.
// A failed or breaker-blocked publish stops the batch so later events never
// overtake earlier ones. Each batch runs under an advisory lock, so when the
// in-process relay and cmd/outbox-relay share a database only one publishes
// at a time.
type Poller struct {
	db        DB
	outbox    repository.OutboxRepository
	publisher Publisher
	breaker   *guard.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	opts      Options
}

// NewPoller creates an outbox poller.
func NewPoller(
	db DB,
	outbox repository.OutboxRepository,
	publisher Publisher,
	breaker *guard.CircuitBreaker,
	opts Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Poller{
		db:        db,
		outbox:    outbox,
		publisher: publisher,
		breaker:   breaker,
		metrics:   m,
		logger:    logger,
		opts:      opts,
	}
}

// Run polls until ctx is cancelled. It always returns nil so it can share an
// errgroup with the HTTP server.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("outbox poller started", "interval", p.opts.Interval, "batch_size", p.opts.BatchSize)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// PollOnce publishes one batch and returns how many events left the outbox.
// It returns 0 without touching the outbox when another relay holds the lock.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	locked, err := p.outbox.TryLockRelay(ctx, tx)
	if err != nil {
		return 0, err
	}
	if !locked {
		p.logger.Debug("outbox batch held by another relay")
		return 0, nil
	}

	n, fetched, err := p.drain(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}

	p.metrics.AddOutboxEvents("published", n)
	p.reportBacklog(ctx)
	if fetched > 0 {
		p.logger.Debug("outbox poll complete", "published", n, "fetched", fetched)
	}
	return n, nil
}

// drain publishes fetched events until the first failure and deletes the
// published ones inside tx.
func (p *Poller) drain(ctx context.Context, tx pgx.Tx) (int, int, error) {
	events, err := p.outbox.FetchUnpublished(ctx, tx, p.opts.BatchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(events) == 0 {
		return 0, 0, nil
	}

	published := make([]int64, 0, len(events))
	for _, e := range events {
		topic := p.Topic(e.EventType)

		if res := p.breaker.Check(topic); !res.Allowed {
			p.logger.Warn("outbox publish skipped", "topic", topic, "reason", res.Reason)
			p.metrics.AddOutboxEvents("skipped", len(events)-len(published))
			break
		}

		msg, err := envelope(e)
		if err != nil {
			return 0, 0, err
		}
		if err := p.publisher.Publish(ctx, topic, e.EventType, []byte(e.PartitionKey), msg); err != nil {
			p.breaker.RecordFailure(topic)
			p.metrics.AddOutboxEvents("failed", 1)
			p.logger.Error("kafka publish failed", "event_id", e.EventID, "topic", topic, "error", err)
			break
		}
		p.breaker.RecordSuccess(topic)
		published = append(published, e.SeqID)
	}

	if err := p.outbox.MarkPublished(ctx, tx, published); err != nil {
		return 0, 0, err
	}
	return len(published), len(events), nil
}

// reportBacklog refreshes the backlog gauges. Failures only cost a stale gauge.
func (p *Poller) reportBacklog(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	b, err := p.outbox.Backlog(ctx, p.db)
	if err != nil {
		p.logger.Warn("outbox backlog query failed", "error", err)
		return
	}
	p.metrics.SetOutboxBacklog(b, time.Now())
}

// Topic returns the broker topic of an event type.
func (p *Poller) Topic(t domain.EventType) string {
	return p.opts.TopicPrefix + string(t)
}

func envelope(e domain.OutboxDraft) ([]byte, error) {
	msg, err := json.Marshal(map[string]interface{}{
		"event_id":       e.EventID,
		"aggregate_type": e.AggregateType,
		"aggregate_id":   e.AggregateID,
		"event_type":     e.EventType,
		"payload":        e.Payload,
		"occurred_at":    e.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	return msg, nil
}
