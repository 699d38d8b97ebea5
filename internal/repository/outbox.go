package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/accredit/compliance/internal/domain"
)

// relayLockKey is the advisory lock id shared by every outbox relay process.
const relayLockKey int64 = 0x6f7574626f78

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

func (r *outboxRepo) Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error {
	_, err := db.Exec(ctx, `
		INSERT INTO event_outbox
		  (event_id, aggregate_type, aggregate_id, event_type, partition_key, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		draft.EventID,
		string(draft.AggregateType),
		draft.AggregateID,
		string(draft.EventType),
		draft.PartitionKey,
		draft.Payload,
		draft.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepo) FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error) {
	rows, err := db.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type,
		       partition_key, payload, occurred_at
		FROM event_outbox
		ORDER BY id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxDraft
	for rows.Next() {
		var d domain.OutboxDraft
		var aggType, eventType string
		err := rows.Scan(&d.SeqID, &d.EventID, &aggType, &d.AggregateID,
			&eventType, &d.PartitionKey, &d.Payload, &d.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		d.AggregateType = domain.AggregateType(aggType)
		d.EventType = domain.EventType(eventType)
		events = append(events, d)
	}
	return events, rows.Err()
}

func (r *outboxRepo) MarkPublished(ctx context.Context, db DBTX, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `DELETE FROM event_outbox WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

func (r *outboxRepo) Backlog(ctx context.Context, db DBTX) (domain.OutboxBacklog, error) {
	var b domain.OutboxBacklog
	var oldest *time.Time
	err := db.QueryRow(ctx, `SELECT count(*), min(occurred_at) FROM event_outbox`).Scan(&b.Pending, &oldest)
	if err != nil {
		return b, fmt.Errorf("outbox backlog: %w", err)
	}
	if oldest != nil {
		b.Oldest = *oldest
	}
	return b, nil
}

func (r *outboxRepo) TryLockRelay(ctx context.Context, db DBTX) (bool, error) {
	var ok bool
	if err := db.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, relayLockKey).Scan(&ok); err != nil {
		return false, fmt.Errorf("lock outbox relay: %w", err)
	}
	return ok, nil
}
