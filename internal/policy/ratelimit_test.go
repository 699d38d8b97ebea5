package policy

import (
	"math"
	"testing"

	"github.com/accredit/compliance/internal/domain"
	"github.com/stretchr/testify/assert"
)

const now int64 = 1_700_000_000

func TestIsEntryValid_InactiveNeverValid(t *testing.T) {
	assert.False(t, IsEntryValid(false, 0, now))
	assert.False(t, IsEntryValid(false, now+1000, now))
	assert.False(t, IsEntryValid(false, now-1000, now))
}

func TestIsEntryValid_NoExpiry(t *testing.T) {
	assert.True(t, IsEntryValid(true, 0, now))
	assert.True(t, IsEntryValid(true, 0, math.MaxInt64))
}

func TestIsEntryValid_ExpiryBoundaryIsExclusive(t *testing.T) {
	assert.False(t, IsEntryValid(true, 1000, 1000))
	assert.True(t, IsEntryValid(true, 1000, 999))
	assert.False(t, IsEntryValid(true, 1000, 1001))
}

func TestEntryStatus(t *testing.T) {
	assert.Equal(t, domain.ErrorCode(""), EntryStatus(true, 0, now))
	assert.Equal(t, domain.CodeEntryInactive, EntryStatus(false, now-1, now), "inactive wins over expired")
	assert.Equal(t, domain.CodeEntryExpired, EntryStatus(true, now, now))
}

func TestCanTransfer_UnlimitedOverride(t *testing.T) {
	assert.True(t, CanTransfer(true, 0, 0, 0, now, 1, now))
	assert.True(t, CanTransfer(true, 0, 0, math.MaxUint64, now, math.MaxUint64, now))
}

func TestCanTransfer_InvalidEntryShortCircuits(t *testing.T) {
	assert.False(t, CanTransfer(false, 0, 0, 0, now, 1, now))
	assert.False(t, CanTransfer(true, now, 0, 0, now, 1, now))
}

func TestCanTransfer_WithinWindow(t *testing.T) {
	reset := now - 100
	assert.True(t, CanTransfer(true, 0, 1000, 900, reset, 50, now), "950 <= 1000")
	assert.True(t, CanTransfer(true, 0, 1000, 900, reset, 100, now), "1000 <= 1000")
	assert.False(t, CanTransfer(true, 0, 1000, 900, reset, 150, now), "1050 > 1000")
}

func TestCanTransfer_WindowResetsAtExactlyOneDay(t *testing.T) {
	reset := now - SecondsPerDay
	assert.True(t, CanTransfer(true, 0, 1000, 900, reset, 999, now))

	// One second earlier the stale volume still counts.
	assert.False(t, CanTransfer(true, 0, 1000, 900, reset+1, 999, now))
}

func TestCanTransfer_SaturatesInsteadOfWrapping(t *testing.T) {
	// Without saturation 2 + MaxUint64 would wrap to 1 and pass a limit of 1000.
	assert.False(t, CanTransfer(true, 0, 1000, 2, now, math.MaxUint64, now))
	assert.False(t, CanTransfer(true, 0, math.MaxUint64-1, math.MaxUint64-5, now, math.MaxUint64-5, now))
}

func TestCanTransfer_DoesNotMutate(t *testing.T) {
	entry := domain.WhitelistEntry{IsActive: true, DailyLimit: 1000, DailyVolume: 10, VolumeResetTime: now}
	before := entry
	CanTransfer(entry.IsActive, entry.ExpiryTimestamp, entry.DailyLimit, entry.DailyVolume, entry.VolumeResetTime, 5, now)
	assert.Equal(t, before, entry)
}

func TestSaturatingAdd(t *testing.T) {
	assert.Equal(t, uint64(3), SaturatingAdd(1, 2))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64, 1))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64-1, 1))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64, math.MaxUint64))
}

func TestWindowExpired(t *testing.T) {
	assert.False(t, WindowExpired(now, now))
	assert.False(t, WindowExpired(now, now+SecondsPerDay-1))
	assert.True(t, WindowExpired(now, now+SecondsPerDay))
	assert.False(t, WindowExpired(now, now-10), "clock behind window start keeps the window open")
	assert.True(t, WindowExpired(math.MinInt64, math.MaxInt64), "no signed overflow")
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, uint64(100), Remaining(1000, 900, now-100, now))
	assert.Equal(t, uint64(1000), Remaining(1000, 900, now-SecondsPerDay, now))
	assert.Equal(t, uint64(0), Remaining(1000, 5000, now, now))
}
