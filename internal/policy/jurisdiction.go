package policy

import "github.com/accredit/compliance/internal/domain"

// JurisdictionAllowed is the fixed rule: every jurisdiction except Usa.
func JurisdictionAllowed(j domain.Jurisdiction) bool {
	return j.Valid() && j != domain.JurisdictionUsa
}

// IsJurisdictionInBitmask tests j's bit in mask using the fixed bit table.
// Bit mapping: 0=Japan, 1=Singapore, 2=HongKong, 3=Eu, 4=Usa, 5=Other.
func IsJurisdictionInBitmask(j domain.Jurisdiction, mask uint8) bool {
	bit, ok := j.Bit()
	if !ok {
		return false
	}
	return (mask>>bit)&1 == 1
}

// JurisdictionRule selects which of the two independent checks apply.
type JurisdictionRule struct {
	EnforceFixedRule bool  `json:"enforce_fixed_rule"`
	Mask             uint8 `json:"mask"` // 0 disables the bitmask check
}

// EvaluateJurisdiction applies every enabled check; all must pass.
func EvaluateJurisdiction(j domain.Jurisdiction, rule JurisdictionRule) bool {
	if !j.Valid() {
		return false
	}
	if rule.EnforceFixedRule && !JurisdictionAllowed(j) {
		return false
	}
	if rule.Mask != 0 && !IsJurisdictionInBitmask(j, rule.Mask) {
		return false
	}
	return true
}
