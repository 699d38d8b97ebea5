package policy

import "math"

// SecondsPerDay is the length of the rolling volume window.
const SecondsPerDay int64 = 86400

// SaturatingAdd returns a+b clamped at math.MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// WindowExpired reports whether now - resetTime >= SecondsPerDay. The difference
// is taken in uint64 so extreme timestamps cannot overflow; a clock behind the
// window start keeps the window open.
func WindowExpired(resetTime, now int64) bool {
	if now < resetTime {
		return false
	}
	return uint64(now)-uint64(resetTime) >= uint64(SecondsPerDay)
}

// EffectiveVolume is the stored volume if the window is still open, else 0.
func EffectiveVolume(dailyVolume uint64, resetTime, now int64) uint64 {
	if WindowExpired(resetTime, now) {
		return 0
	}
	return dailyVolume
}

// CanTransfer reports whether amount fits the entry's daily limit at now.
// A zero dailyLimit means no cap. Pure: safe for dry runs.
func CanTransfer(
	isActive bool,
	expiryTimestamp int64,
	dailyLimit uint64,
	dailyVolume uint64,
	volumeResetTime int64,
	amount uint64,
	now int64,
) bool {
	if !IsEntryValid(isActive, expiryTimestamp, now) {
		return false
	}
	if dailyLimit == 0 {
		return true
	}
	return FitsLimit(dailyLimit, dailyVolume, volumeResetTime, amount, now)
}

// FitsLimit is the window check alone: effective volume + amount <= limit,
// with the sum saturating so an overflow always reads as over the limit.
func FitsLimit(limit, dailyVolume uint64, volumeResetTime int64, amount uint64, now int64) bool {
	return SaturatingAdd(EffectiveVolume(dailyVolume, volumeResetTime, now), amount) <= limit
}

// Remaining returns how much more can be transferred in the current window.
func Remaining(limit, dailyVolume uint64, volumeResetTime, now int64) uint64 {
	used := EffectiveVolume(dailyVolume, volumeResetTime, now)
	if used >= limit {
		return 0
	}
	return limit - used
}
