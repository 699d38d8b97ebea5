package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/accredit/compliance/internal/cache"
	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/policy"
	"github.com/accredit/compliance/internal/repository"
)

// Engine evaluates and applies transfers against stored registries and entries:
//  1. Evaluate: dry run on a consistent read, mutates nothing
//  2. Apply: lock, idempotency check, assess, record usage, write audit row and outbox event
//
// Apply runs inside the caller's transaction; the caller commits or rolls back.
type Engine struct {
	registries repository.RegistryRepository
	entries    repository.EntryRepository
	transfers  repository.TransferRepository
	outbox     repository.OutboxRepository

	tables policy.Tables
	cache  *cache.RegistryCache
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistryCache routes dry-run registry reads through c.
func WithRegistryCache(c *cache.RegistryCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine with the given repositories and policy tables.
func NewEngine(
	registries repository.RegistryRepository,
	entries repository.EntryRepository,
	transfers repository.TransferRepository,
	outbox repository.OutboxRepository,
	tables policy.Tables,
	opts ...Option,
) *Engine {
	e := &Engine{
		registries: registries,
		entries:    entries,
		transfers:  transfers,
		outbox:     outbox,
		tables:     tables,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Tables returns the policy tables the engine assesses against.
func (e *Engine) Tables() policy.Tables { return e.tables }

// Now returns the engine clock in unix seconds.
func (e *Engine) Now() int64 { return e.now().Unix() }

// Evaluate returns the decision for req without changing any state. A non-zero
// at simulates the check at that unix time. db must be safe for concurrent use
// (a pool, not a transaction): registry and entries are read in parallel.
func (e *Engine) Evaluate(ctx context.Context, db repository.DBTX, req domain.TransferRequest, at int64) (domain.Decision, error) {
	if err := domain.ValidateTransferRequest(req); err != nil {
		return domain.Decision{}, domain.ErrValidation(err.Error())
	}

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reg, err := e.loadRegistry(gctx, db, req.Registry)
		snap.Registry = reg
		return err
	})
	g.Go(func() error {
		entry, err := e.entries.Find(gctx, db, req.Registry, req.Sender)
		if err != nil {
			return fmt.Errorf("find sender entry: %w", err)
		}
		snap.Sender = entry
		return nil
	})
	if req.Receiver != "" {
		g.Go(func() error {
			entry, err := e.entries.Find(gctx, db, req.Registry, req.Receiver)
			if err != nil {
				return fmt.Errorf("find receiver entry: %w", err)
			}
			snap.Receiver = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Decision{}, err
	}
	if snap.Registry == nil {
		return domain.Decision{}, domain.ErrNotFound("registry", string(req.Registry))
	}

	now := at
	if now == 0 {
		now = e.Now()
	}
	return Assess(snap, e.tables, req.Amount, now), nil
}

// Apply checks req and, only if allowed, records it: the sender's usage is
// updated, a transfer record and an approval event are written. Every write
// happens in tx, so a failure at any step leaves no partial state once the
// caller rolls back.
//
// A denial returns the denied decision together with its *domain.AppError.
// A repeated TransferID returns the original record with Idempotent set.
func (e *Engine) Apply(ctx context.Context, tx pgx.Tx, req domain.TransferRequest) (*domain.ApplyResult, error) {
	if err := domain.ValidateTransferRequest(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	reg, err := e.registries.FindByKey(ctx, tx, req.Registry)
	if err != nil {
		return nil, fmt.Errorf("find registry: %w", err)
	}
	if reg == nil {
		return nil, domain.ErrNotFound("registry", string(req.Registry))
	}

	snap := Snapshot{Registry: reg}
	if policy.FlagsOf(reg).ChecksEntries() {
		snap.Sender, snap.Receiver, err = e.lockParticipants(ctx, tx, req)
		if err != nil {
			return nil, err
		}
	}

	if req.TransferID != "" {
		existing, err := e.transfers.FindByTransferID(ctx, tx, req.Registry, req.TransferID)
		if err != nil {
			return nil, fmt.Errorf("find existing transfer: %w", err)
		}
		if existing != nil {
			return replay(existing, req)
		}
	}

	now := e.Now()
	d := Assess(snap, e.tables, req.Amount, now)
	if !d.Allowed {
		return &domain.ApplyResult{Decision: d}, d.Err()
	}

	rec := &domain.TransferRecord{
		TransferID:     optional(req.TransferID),
		Registry:       req.Registry,
		Sender:         req.Sender,
		Amount:         req.Amount,
		KycChecked:     d.KycChecked,
		EffectiveLimit: d.EffectiveLimit,
		ExecutedAt:     now,
	}
	if req.Receiver != "" {
		receiver := req.Receiver
		rec.Receiver = &receiver
	}

	var usage *domain.Usage
	if d.KycChecked {
		updated := *snap.Sender
		policy.RecordTransfer(&updated, req.Amount, now)
		u := updated.Usage()
		if err := e.entries.UpdateUsage(ctx, tx, req.Registry, req.Sender, u); err != nil {
			return nil, fmt.Errorf("record usage: %w", err)
		}
		usage = &u
		rec.DailyVolumeAfter = u.DailyVolume
	}

	stored, err := e.transfers.Insert(ctx, tx, rec)
	if err != nil {
		return nil, fmt.Errorf("insert transfer record: %w", err)
	}

	if err := e.outbox.Insert(ctx, tx, domain.NewTransferApprovedEvent(req, d, stored, usage)); err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}

	return &domain.ApplyResult{Decision: d, Record: stored, Usage: usage}, nil
}

// lockParticipants locks the sender entry and, when present, the receiver
// entry. Rows are locked in wallet order so opposing transfers cannot deadlock.
func (e *Engine) lockParticipants(ctx context.Context, tx pgx.Tx, req domain.TransferRequest) (sender, receiver *domain.WhitelistEntry, err error) {
	wallets := []domain.Key{req.Sender}
	if req.Receiver != "" {
		if req.Receiver < req.Sender {
			wallets = []domain.Key{req.Receiver, req.Sender}
		} else {
			wallets = append(wallets, req.Receiver)
		}
	}

	for _, w := range wallets {
		entry, err := e.entries.LockForUpdate(ctx, tx, req.Registry, w)
		if err != nil {
			return nil, nil, fmt.Errorf("lock entry %s: %w", w, err)
		}
		if w == req.Sender {
			sender = entry
		} else {
			receiver = entry
		}
	}
	return sender, receiver, nil
}

func (e *Engine) loadRegistry(ctx context.Context, db repository.DBTX, key domain.Key) (*domain.KycRegistry, error) {
	load := func(ctx context.Context, key domain.Key) (*domain.KycRegistry, error) {
		reg, err := e.registries.FindByKey(ctx, db, key)
		if err != nil {
			return nil, fmt.Errorf("find registry: %w", err)
		}
		return reg, nil
	}
	if e.cache == nil {
		return load(ctx, key)
	}
	return e.cache.Get(ctx, key, load)
}

// replay answers a retried TransferID from its stored record. Reusing an id for
// a different transfer is a conflict.
func replay(rec *domain.TransferRecord, req domain.TransferRequest) (*domain.ApplyResult, error) {
	sameReceiver := (rec.Receiver == nil && req.Receiver == "") ||
		(rec.Receiver != nil && *rec.Receiver == req.Receiver)
	if rec.Sender != req.Sender || rec.Amount != req.Amount || !sameReceiver {
		return nil, domain.ErrConflict("transfer_id already used for a different transfer")
	}

	d := domain.Allow(rec.Amount, rec.ExecutedAt)
	d.KycChecked = rec.KycChecked
	d.EffectiveLimit = rec.EffectiveLimit
	return &domain.ApplyResult{Decision: d, Record: rec, Idempotent: true}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
