package policy

import (
	"fmt"
	"math"

	"github.com/accredit/compliance/internal/domain"
)

// Unlimited is the sentinel cap for the Institutional tier.
const Unlimited uint64 = math.MaxUint64

// TierLimits holds the default daily caps per KYC tier, in the asset's smallest
// unit (6 decimals). Institutional is always Unlimited.
type TierLimits struct {
	Basic    uint64 `yaml:"basic" json:"basic"`
	Standard uint64 `yaml:"standard" json:"standard"`
	Enhanced uint64 `yaml:"enhanced" json:"enhanced"`
}

// DefaultTierLimits returns the stock caps (100k / 10M / 100M JPY).
func DefaultTierLimits() TierLimits {
	return TierLimits{
		Basic:    100_000_000_000,     // 100,000 JPY
		Standard: 10_000_000_000_000,  // 10,000,000 JPY
		Enhanced: 100_000_000_000_000, // 100,000,000 JPY
	}
}

// Validate enforces 0 < Basic < Standard < Enhanced < Unlimited.
func (t TierLimits) Validate() error {
	if t.Basic == 0 {
		return fmt.Errorf("basic tier limit must be positive")
	}
	if t.Basic >= t.Standard {
		return fmt.Errorf("basic tier limit %d must be below standard %d", t.Basic, t.Standard)
	}
	if t.Standard >= t.Enhanced {
		return fmt.Errorf("standard tier limit %d must be below enhanced %d", t.Standard, t.Enhanced)
	}
	if t.Enhanced == Unlimited {
		return fmt.Errorf("enhanced tier limit must be finite")
	}
	return nil
}

// ForLevel returns the cap for level. Unknown levels get the Basic cap.
func (t TierLimits) ForLevel(level domain.KycLevel) uint64 {
	switch level {
	case domain.KycStandard:
		return t.Standard
	case domain.KycEnhanced:
		return t.Enhanced
	case domain.KycInstitutional:
		return Unlimited
	default:
		return t.Basic
	}
}

// TradeLimitForLevel returns the stock cap for level.
func TradeLimitForLevel(level domain.KycLevel) uint64 {
	return DefaultTierLimits().ForLevel(level)
}

// EffectiveLimit returns the entry override when set, else the tier default.
func EffectiveLimit(dailyLimit uint64, level domain.KycLevel, tiers TierLimits) uint64 {
	if dailyLimit != 0 {
		return dailyLimit
	}
	return tiers.ForLevel(level)
}
