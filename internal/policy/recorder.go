package policy

import "github.com/accredit/compliance/internal/domain"

// RecordTransfer commits an executed transfer to the entry's rolling window.
// It does not re-check eligibility; callers must have assessed the same amount
// at the same now. On rollover the new window starts at exactly amount.
func RecordTransfer(entry *domain.WhitelistEntry, amount uint64, now int64) {
	if WindowExpired(entry.VolumeResetTime, now) {
		entry.DailyVolume = amount
		entry.VolumeResetTime = now
	} else {
		entry.DailyVolume = SaturatingAdd(entry.DailyVolume, amount)
	}
	entry.LastActivity = now
}
