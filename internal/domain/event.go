package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventTransferApproved EventType = "compliance.transfer.approved"
	EventTransferRejected EventType = "compliance.transfer.rejected"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateEntry AggregateType = "whitelist_entry"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	SeqID         int64           `json:"-"`
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	PartitionKey  string          `json:"partition_key"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// OutboxBacklog summarizes events still waiting for the relay.
type OutboxBacklog struct {
	Pending int64
	Oldest  time.Time // zero when Pending is 0
}

// transferEventPayload is the body shared by approved and rejected events.
type transferEventPayload struct {
	TransferID string    `json:"transfer_id,omitempty"`
	Registry   Key       `json:"registry"`
	Sender     Key       `json:"sender"`
	Receiver   Key       `json:"receiver,omitempty"`
	Amount     uint64    `json:"amount"`
	Decision   Decision  `json:"decision"`
	Usage      *Usage    `json:"usage,omitempty"`
	RecordID   uuid.UUID `json:"record_id,omitempty"`
}

// EntryAggregateID is the aggregate id of a (registry, wallet) entry.
func EntryAggregateID(registry, wallet Key) string {
	return string(registry) + "/" + string(wallet)
}

// NewTransferApprovedEvent builds the outbox event for an applied transfer.
func NewTransferApprovedEvent(req TransferRequest, d Decision, rec *TransferRecord, usage *Usage) OutboxDraft {
	payload := transferEventPayload{
		TransferID: req.TransferID,
		Registry:   req.Registry,
		Sender:     req.Sender,
		Receiver:   req.Receiver,
		Amount:     req.Amount,
		Decision:   d,
		Usage:      usage,
	}
	if rec != nil {
		payload.RecordID = rec.ID
	}
	return newTransferEvent(EventTransferApproved, req, payload)
}

// NewTransferRejectedEvent builds the outbox event for a denied transfer.
func NewTransferRejectedEvent(req TransferRequest, d Decision) OutboxDraft {
	return newTransferEvent(EventTransferRejected, req, transferEventPayload{
		TransferID: req.TransferID,
		Registry:   req.Registry,
		Sender:     req.Sender,
		Receiver:   req.Receiver,
		Amount:     req.Amount,
		Decision:   d,
	})
}

func newTransferEvent(t EventType, req TransferRequest, payload transferEventPayload) OutboxDraft {
	body, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateEntry,
		AggregateID:   EntryAggregateID(req.Registry, req.Sender),
		EventType:     t,
		PartitionKey:  string(req.Sender),
		Payload:       body,
		OccurredAt:    time.Now().UTC(),
	}
}
