package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/policy"
)

// maxReplayRecords bounds how many transfer records the harness reads back.
const maxReplayRecords = 100

// ReplayResult holds the outcome of a deterministic replay run.
type ReplayResult struct {
	Registry   domain.Key
	Sender     domain.Key
	Applied    int
	Denied     map[domain.ErrorCode]int
	Idempotent int
	FinalUsage *domain.Usage
	Invariants []InvariantCheck
	AllPassed  bool
}

// InvariantCheck records a single invariant validation.
type InvariantCheck struct {
	Name   string
	Passed bool
	Detail string
}

// ReplayHarness applies a sequence of transfers from one sender through the
// Service and validates the stored state afterwards.
//
// Invariants:
//  1. volume_within_limit: stored daily volume never exceeds the effective limit
//  2. record_parity: the newest record's daily_volume_after matches the entry
//  3. record_count: one new record per applied, non-idempotent transfer
//  4. window_volume: records executed in the open window sum to the stored volume
type ReplayHarness struct {
	svc *Service
}

// NewReplayHarness creates a replay harness.
func NewReplayHarness(svc *Service) *ReplayHarness {
	return &ReplayHarness{svc: svc}
}

// Execute applies reqs in order. Every request must name registry and sender.
// Compliance denials are counted, not returned; any other failure aborts.
func (h *ReplayHarness) Execute(ctx context.Context, registry, sender domain.Key, reqs []domain.TransferRequest) (*ReplayResult, error) {
	before, err := h.records(ctx, registry, sender)
	if err != nil {
		return nil, err
	}

	res := &ReplayResult{Registry: registry, Sender: sender, Denied: map[domain.ErrorCode]int{}}
	for i, req := range reqs {
		if req.Registry != registry || req.Sender != sender {
			return nil, fmt.Errorf("replay step %d: request is not from %s/%s", i, registry, sender)
		}
		out, err := h.svc.ApplyTransfer(ctx, req)
		switch {
		case err == nil && out.Idempotent:
			res.Idempotent++
		case err == nil:
			res.Applied++
		case out != nil && !out.Decision.Allowed:
			res.Denied[out.Decision.Reason]++
		default:
			var appErr *domain.AppError
			if errors.As(err, &appErr) && appErr.Code == domain.CodeConflict {
				res.Denied[domain.CodeConflict]++
				continue
			}
			return nil, fmt.Errorf("replay step %d: %w", i, err)
		}
	}

	entry, err := h.svc.engine.entries.Find(ctx, h.svc.db, registry, sender)
	if err != nil {
		return nil, fmt.Errorf("replay fetch entry: %w", err)
	}
	after, err := h.records(ctx, registry, sender)
	if err != nil {
		return nil, err
	}

	if entry != nil {
		u := entry.Usage()
		res.FinalUsage = &u
	}
	res.Invariants = h.validateInvariants(entry, before, after, res.Applied)
	res.AllPassed = true
	for _, inv := range res.Invariants {
		if !inv.Passed {
			res.AllPassed = false
		}
	}
	return res, nil
}

func (h *ReplayHarness) records(ctx context.Context, registry, sender domain.Key) ([]domain.TransferRecord, error) {
	recs, err := h.svc.engine.transfers.ListByWallet(ctx, h.svc.db, registry, sender, maxReplayRecords)
	if err != nil {
		return nil, fmt.Errorf("replay list transfers: %w", err)
	}
	return recs, nil
}

func (h *ReplayHarness) validateInvariants(entry *domain.WhitelistEntry, before, after []domain.TransferRecord, applied int) []InvariantCheck {
	checks := make([]InvariantCheck, 0, 4)

	if entry == nil {
		checks = append(checks, InvariantCheck{
			Name:   "volume_within_limit",
			Passed: true,
			Detail: "no entry; registry does not track usage",
		})
	} else {
		limit := policy.EffectiveLimit(entry.DailyLimit, entry.KycLevel, h.svc.engine.Tables().Tiers)
		checks = append(checks, InvariantCheck{
			Name:   "volume_within_limit",
			Passed: entry.DailyVolume <= limit,
			Detail: fmt.Sprintf("volume=%d limit=%d", entry.DailyVolume, limit),
		})
	}

	switch {
	case entry == nil || len(after) == 0 || !after[0].KycChecked:
		checks = append(checks, InvariantCheck{
			Name:   "record_parity",
			Passed: true,
			Detail: "no usage-tracked records",
		})
	default:
		checks = append(checks, InvariantCheck{
			Name:   "record_parity",
			Passed: after[0].DailyVolumeAfter == entry.DailyVolume,
			Detail: fmt.Sprintf("entry=%d lastRecord=%d", entry.DailyVolume, after[0].DailyVolumeAfter),
		})
	}

	if len(after) >= maxReplayRecords {
		checks = append(checks, InvariantCheck{
			Name:   "record_count",
			Passed: true,
			Detail: fmt.Sprintf("skipped: more than %d records", maxReplayRecords-1),
		})
	} else {
		checks = append(checks, InvariantCheck{
			Name:   "record_count",
			Passed: len(after)-len(before) == applied,
			Detail: fmt.Sprintf("expected=%d got=%d", applied, len(after)-len(before)),
		})
	}

	if entry != nil && len(after) < maxReplayRecords {
		var sum uint64
		for _, rec := range after {
			if rec.KycChecked && rec.ExecutedAt >= entry.VolumeResetTime &&
				rec.ExecutedAt < entry.VolumeResetTime+policy.SecondsPerDay {
				sum = policy.SaturatingAdd(sum, rec.Amount)
			}
		}
		checks = append(checks, InvariantCheck{
			Name:   "window_volume",
			Passed: sum == entry.DailyVolume,
			Detail: fmt.Sprintf("records=%d entry=%d", sum, entry.DailyVolume),
		})
	}

	return checks
}
