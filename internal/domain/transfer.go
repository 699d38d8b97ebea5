package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ParticipantSender   = "sender"
	ParticipantReceiver = "receiver"
)

// TransferRequest is one transfer attempt presented to the gate.
type TransferRequest struct {
	TransferID string `json:"transfer_id,omitempty"` // idempotency key, optional
	Registry   Key    `json:"registry"`
	Sender     Key    `json:"sender"`
	Receiver   Key    `json:"receiver,omitempty"`
	Amount     uint64 `json:"amount"`
}

// Decision is the outcome of assessing a transfer against one consistent snapshot.
type Decision struct {
	Allowed         bool      `json:"allowed"`
	Reason          ErrorCode `json:"reason,omitempty"`
	Participant     string    `json:"participant,omitempty"`
	Message         string    `json:"message,omitempty"`
	KycChecked      bool      `json:"kyc_checked"`
	EffectiveLimit  uint64    `json:"effective_limit"`
	EffectiveVolume uint64    `json:"effective_volume"`
	Remaining       uint64    `json:"remaining"`
	Amount          uint64    `json:"amount"`
	EvaluatedAt     int64     `json:"evaluated_at"`

	err *AppError
}

// Allow builds an allowing decision.
func Allow(amount uint64, now int64) Decision {
	return Decision{Allowed: true, Amount: amount, EvaluatedAt: now}
}

// Deny builds a denying decision carrying the error that aborts the transfer.
func Deny(participant string, appErr *AppError, amount uint64, now int64) Decision {
	return Decision{
		Allowed:     false,
		Reason:      appErr.Code,
		Participant: participant,
		Message:     appErr.Message,
		Amount:      amount,
		EvaluatedAt: now,
		err:         appErr,
	}
}

// Err returns nil for allowed decisions and the denial error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.err != nil {
		return d.err
	}
	return &AppError{Code: d.Reason, Message: d.Message, Status: 403}
}

// TransferRecord is the audit row written for every applied transfer.
type TransferRecord struct {
	ID               uuid.UUID `json:"id"`
	TransferID       *string   `json:"transfer_id,omitempty"`
	Registry         Key       `json:"registry"`
	Sender           Key       `json:"sender"`
	Receiver         *Key      `json:"receiver,omitempty"`
	Amount           uint64    `json:"amount"`
	KycChecked       bool      `json:"kyc_checked"`
	EffectiveLimit   uint64    `json:"effective_limit"`
	DailyVolumeAfter uint64    `json:"daily_volume_after"`
	ExecutedAt       int64     `json:"executed_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// ApplyResult is returned by an atomic apply.
type ApplyResult struct {
	Decision   Decision        `json:"decision"`
	Record     *TransferRecord `json:"record"`
	Usage      *Usage          `json:"usage,omitempty"`
	Idempotent bool            `json:"idempotent"` // true if the transfer id was already applied
}
