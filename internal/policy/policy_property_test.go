//go:build property
// +build property

package policy_test

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/policy"
)

const base int64 = 1_700_000_000

// Property: an inactive entry is never valid and never passes CanTransfer.
func TestInactiveNeverTransfers(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("inactive entries are rejected", prop.ForAll(
		func(expiry int64, limit, volume, amount uint64, reset, now int64) bool {
			return !policy.IsEntryValid(false, expiry, now) &&
				!policy.CanTransfer(false, expiry, limit, volume, reset, amount, now)
		},
		gen.Int64(), gen.UInt64(), gen.UInt64(), gen.UInt64(), gen.Int64(), gen.Int64(),
	))

	properties.TestingRun(t)
}

// Property: SaturatingAdd never wraps below either operand.
func TestSaturatingAddMonotone(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("sum is at least each operand", prop.ForAll(
		func(a, b uint64) bool {
			s := policy.SaturatingAdd(a, b)
			return s >= a && s >= b
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.Property("exact when no overflow", prop.ForAll(
		func(a, b uint64) bool {
			if a > math.MaxUint64-b {
				return policy.SaturatingAdd(a, b) == math.MaxUint64
			}
			return policy.SaturatingAdd(a, b) == a+b
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.TestingRun(t)
}

// Property: a capped entry that passes CanTransfer and then records the amount
// never ends the window above its limit.
func TestRecordedVolumeStaysUnderLimit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("check then record respects the cap", prop.ForAll(
		func(limit, volume, amount uint64, age, step int64) bool {
			e := &domain.WhitelistEntry{
				IsActive:        true,
				DailyLimit:      limit,
				DailyVolume:     volume,
				VolumeResetTime: base - age,
			}
			now := base + step
			if !policy.CanTransfer(e.IsActive, e.ExpiryTimestamp, e.DailyLimit, e.DailyVolume, e.VolumeResetTime, amount, now) {
				return true
			}
			policy.RecordTransfer(e, amount, now)
			return e.DailyVolume <= limit && e.LastActivity == now
		},
		gen.UInt64Range(1, math.MaxUint64),
		gen.UInt64(),
		gen.UInt64(),
		gen.Int64Range(0, 3*policy.SecondsPerDay),
		gen.Int64Range(0, policy.SecondsPerDay),
	))

	properties.TestingRun(t)
}

// Property: after a rollover the stored volume equals the recorded amount.
func TestRolloverResetsVolume(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("rollover volume equals amount", prop.ForAll(
		func(volume, amount uint64, extra int64) bool {
			e := &domain.WhitelistEntry{DailyVolume: volume, VolumeResetTime: base}
			now := base + policy.SecondsPerDay + extra
			policy.RecordTransfer(e, amount, now)
			return e.DailyVolume == amount && e.VolumeResetTime == now
		},
		gen.UInt64(), gen.UInt64(), gen.Int64Range(0, 10*policy.SecondsPerDay),
	))

	properties.TestingRun(t)
}

// Property: only the jurisdiction whose bit is set matches a single-bit mask.
func TestBitmaskMembership(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	all := domain.AllJurisdictions()

	properties.Property("membership follows the bit table", prop.ForAll(
		func(mask uint8) bool {
			for _, j := range all {
				bit, _ := j.Bit()
				if policy.IsJurisdictionInBitmask(j, mask) != (mask&(1<<bit) != 0) {
					return false
				}
			}
			return true
		},
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
