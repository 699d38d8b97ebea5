package gate

import (
	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/policy"
)

// Snapshot is one consistent read of everything a decision depends on.
// Sender and Receiver are nil when the wallet has no entry in the registry.
type Snapshot struct {
	Registry *domain.KycRegistry
	Sender   *domain.WhitelistEntry
	Receiver *domain.WhitelistEntry
}

type participant struct {
	role  string
	entry *domain.WhitelistEntry
}

// Assess decides whether amount may move from the snapshot's sender at now.
// Checks run in a fixed order and the first failure wins: registry flags,
// entry validity of each checked participant, jurisdiction of each checked
// participant, then the sender's rolling daily limit. Assess never mutates
// the snapshot.
func Assess(s Snapshot, tables policy.Tables, amount uint64, now int64) domain.Decision {
	if s.Registry == nil {
		return domain.Deny("", domain.ErrNotFound("registry", ""), amount, now)
	}

	flags := policy.FlagsOf(s.Registry)
	switch policy.EvaluateRegistry(flags, s.Sender != nil, s.Receiver != nil) {
	case domain.CodeRegistryInactive:
		return domain.Deny("", domain.ErrRegistryInactive(), amount, now)
	case domain.CodeKycRequired:
		return domain.Deny(domain.ParticipantSender, domain.ErrKycRequired(), amount, now)
	case domain.CodeVerifiedOnlyViolation:
		return domain.Deny(domain.ParticipantReceiver, domain.ErrVerifiedOnlyViolation(), amount, now)
	}
	if !flags.ChecksEntries() {
		return domain.Allow(amount, now)
	}

	checked := []participant{{domain.ParticipantSender, s.Sender}}
	if flags.ChecksReceiver() {
		checked = append(checked, participant{domain.ParticipantReceiver, s.Receiver})
	}

	for _, p := range checked {
		switch policy.EntryStatus(p.entry.IsActive, p.entry.ExpiryTimestamp, now) {
		case domain.CodeEntryInactive:
			return domain.Deny(p.role, domain.ErrEntryInactive(p.role), amount, now)
		case domain.CodeEntryExpired:
			return domain.Deny(p.role, domain.ErrEntryExpired(p.role), amount, now)
		}
	}

	rule := tables.JurisdictionRuleFor(s.Registry.JurisdictionMask)
	for _, p := range checked {
		if !policy.EvaluateJurisdiction(p.entry.Jurisdiction, rule) {
			return domain.Deny(p.role, domain.ErrJurisdictionRestricted(p.role, p.entry.Jurisdiction), amount, now)
		}
	}

	sender := s.Sender
	limit := policy.EffectiveLimit(sender.DailyLimit, sender.KycLevel, tables.Tiers)
	volume := policy.EffectiveVolume(sender.DailyVolume, sender.VolumeResetTime, now)

	var d domain.Decision
	if policy.CanTransfer(sender.IsActive, sender.ExpiryTimestamp, limit, sender.DailyVolume, sender.VolumeResetTime, amount, now) {
		d = domain.Allow(amount, now)
	} else {
		d = domain.Deny(domain.ParticipantSender, domain.ErrDailyLimitExceeded(limit, volume, amount), amount, now)
	}
	d.KycChecked = true
	d.EffectiveLimit = limit
	d.EffectiveVolume = volume
	d.Remaining = policy.Remaining(limit, sender.DailyVolume, sender.VolumeResetTime, now)
	return d
}
