package policy

import "github.com/accredit/compliance/internal/domain"

// RegistryFlags are the coarse switches a registry exposes to the gate.
type RegistryFlags struct {
	IsActive     bool `json:"is_active"`
	RequireKyc   bool `json:"require_kyc"`
	VerifiedOnly bool `json:"verified_only"`
}

// FlagsOf extracts the policy flags from a registry.
func FlagsOf(r *domain.KycRegistry) RegistryFlags {
	return RegistryFlags{
		IsActive:     r.IsActive,
		RequireKyc:   r.RequireKyc,
		VerifiedOnly: r.VerifiedOnly,
	}
}

// ChecksEntries reports whether whitelist checks apply at all.
func (f RegistryFlags) ChecksEntries() bool { return f.RequireKyc }

// ChecksReceiver reports whether the receiver must be verified as well.
func (f RegistryFlags) ChecksReceiver() bool { return f.RequireKyc && f.VerifiedOnly }

// EvaluateRegistry applies the registry-level gates given which participants
// have an entry. It returns "" when the registry admits the transfer.
func EvaluateRegistry(f RegistryFlags, senderFound, receiverFound bool) domain.ErrorCode {
	if !f.IsActive {
		return domain.CodeRegistryInactive
	}
	if !f.RequireKyc {
		return ""
	}
	if !senderFound {
		return domain.CodeKycRequired
	}
	if f.VerifiedOnly && !receiverFound {
		return domain.CodeVerifiedOnlyViolation
	}
	return ""
}
