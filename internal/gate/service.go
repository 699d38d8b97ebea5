package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/metrics"
	"github.com/accredit/compliance/internal/policy"
	"github.com/accredit/compliance/internal/repository"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	repository.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EntryView is an entry together with its rate-limit position at a point in time.
type EntryView struct {
	domain.WhitelistEntry
	Valid           bool   `json:"valid"`
	EffectiveLimit  uint64 `json:"effective_limit"`
	EffectiveVolume uint64 `json:"effective_volume"`
	Remaining       uint64 `json:"remaining"`
	WindowResetsAt  int64  `json:"window_resets_at,omitempty"` // 0 when no window is open
	AsOf            int64  `json:"as_of"`
}

// Service owns transaction boundaries around the Engine.
type Service struct {
	db      DB
	engine  *Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService creates a gate service.
func NewService(db DB, engine *Engine, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{db: db, engine: engine, metrics: m, logger: logger}
}

// Check evaluates req without side effects. A non-zero at simulates another time.
func (s *Service) Check(ctx context.Context, req domain.TransferRequest, at int64) (domain.Decision, error) {
	d, err := s.engine.Evaluate(ctx, s.db, req, at)
	if err != nil {
		return d, err
	}
	s.metrics.ObserveDecision("check", d)
	return d, nil
}

// ApplyTransfer runs Engine.Apply in its own transaction and commits only an
// allowed transfer. A denial rolls back, then writes a rejection event outside
// the failed transaction; losing that event is logged, not returned.
func (s *Service) ApplyTransfer(ctx context.Context, req domain.TransferRequest) (*domain.ApplyResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveApplyLatency(time.Since(start)) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := s.engine.Apply(ctx, tx, req)
	if err != nil {
		if res != nil && !res.Decision.Allowed {
			_ = tx.Rollback(ctx)
			s.metrics.ObserveDecision("apply", res.Decision)
			s.logger.Info("transfer denied",
				"registry", req.Registry,
				"sender", req.Sender,
				"receiver", req.Receiver,
				"amount", req.Amount,
				"reason", res.Decision.Reason,
				"participant", res.Decision.Participant)
			s.recordRejection(ctx, req, res.Decision)
		}
		return res, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if !res.Idempotent {
		s.metrics.ObserveDecision("apply", res.Decision)
	}
	s.logger.Info("transfer applied",
		"registry", req.Registry,
		"sender", req.Sender,
		"amount", req.Amount,
		"transfer_id", req.TransferID,
		"idempotent", res.Idempotent)
	return res, nil
}

func (s *Service) recordRejection(ctx context.Context, req domain.TransferRequest, d domain.Decision) {
	if err := s.engine.outbox.Insert(ctx, s.db, domain.NewTransferRejectedEvent(req, d)); err != nil {
		s.logger.Error("record rejection event failed",
			"registry", req.Registry,
			"sender", req.Sender,
			"error", err)
	}
}

// Entry returns the entry of wallet in registry with its limits at now.
func (s *Service) Entry(ctx context.Context, registry, wallet domain.Key) (*EntryView, error) {
	entry, err := s.findEntry(ctx, registry, wallet)
	if err != nil {
		return nil, err
	}

	now := s.engine.Now()
	tiers := s.engine.Tables().Tiers
	limit := policy.EffectiveLimit(entry.DailyLimit, entry.KycLevel, tiers)

	view := &EntryView{
		WhitelistEntry:  *entry,
		Valid:           policy.IsEntryValid(entry.IsActive, entry.ExpiryTimestamp, now),
		EffectiveLimit:  limit,
		EffectiveVolume: policy.EffectiveVolume(entry.DailyVolume, entry.VolumeResetTime, now),
		Remaining:       policy.Remaining(limit, entry.DailyVolume, entry.VolumeResetTime, now),
		AsOf:            now,
	}
	if !policy.WindowExpired(entry.VolumeResetTime, now) {
		view.WindowResetsAt = entry.VolumeResetTime + policy.SecondsPerDay
	}
	return view, nil
}

// Compliance runs the standalone trader check for wallet. A missing entry is a
// non-compliant result, not an error.
func (s *Service) Compliance(ctx context.Context, registry, wallet domain.Key, minLevel domain.KycLevel, mask uint8) (policy.TraderCompliance, error) {
	if err := validateEntryKeys(registry, wallet); err != nil {
		return policy.TraderCompliance{}, err
	}
	entry, err := s.engine.entries.Find(ctx, s.db, registry, wallet)
	if err != nil {
		return policy.TraderCompliance{}, fmt.Errorf("find entry: %w", err)
	}
	return policy.CheckTraderCompliance(entry, minLevel, mask, s.engine.Now()), nil
}

// Transfers lists the most recent transfers sent by wallet.
func (s *Service) Transfers(ctx context.Context, registry, wallet domain.Key, limit int) ([]domain.TransferRecord, error) {
	if err := validateEntryKeys(registry, wallet); err != nil {
		return nil, err
	}
	records, err := s.engine.transfers.ListByWallet(ctx, s.db, registry, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	if records == nil {
		records = []domain.TransferRecord{}
	}
	return records, nil
}

func (s *Service) findEntry(ctx context.Context, registry, wallet domain.Key) (*domain.WhitelistEntry, error) {
	if err := validateEntryKeys(registry, wallet); err != nil {
		return nil, err
	}
	entry, err := s.engine.entries.Find(ctx, s.db, registry, wallet)
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	if entry == nil {
		return nil, domain.ErrNotFound("whitelist entry", string(registry)+"/"+string(wallet))
	}
	return entry, nil
}

func validateEntryKeys(registry, wallet domain.Key) error {
	if err := domain.ValidateKey("registry", registry); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateKey("wallet", wallet); err != nil {
		return domain.ErrValidation(err.Error())
	}
	return nil
}
