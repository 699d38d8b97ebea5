package policy

import (
	"fmt"

	"github.com/accredit/compliance/internal/domain"
)

// TraderCompliance holds the result of a standalone trader check.
type TraderCompliance struct {
	Compliant bool             `json:"compliant"`
	Code      domain.ErrorCode `json:"code,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// CheckTraderCompliance verifies an entry meets a minimum KYC tier and belongs to
// an admissible jurisdiction. A nil entry means no KYC record exists. The mask
// is always applied: a zero mask admits nothing.
func CheckTraderCompliance(entry *domain.WhitelistEntry, minLevel domain.KycLevel, mask uint8, now int64) TraderCompliance {
	if entry == nil {
		return TraderCompliance{Code: domain.CodeKycRequired, Reason: "no KYC record found"}
	}

	switch EntryStatus(entry.IsActive, entry.ExpiryTimestamp, now) {
	case domain.CodeEntryInactive:
		return TraderCompliance{Code: domain.CodeEntryInactive, Reason: "KYC record is inactive"}
	case domain.CodeEntryExpired:
		return TraderCompliance{Code: domain.CodeEntryExpired, Reason: "KYC verification has expired"}
	}

	if entry.KycLevel < minLevel {
		return TraderCompliance{
			Code:   domain.CodeKycRequired,
			Reason: fmt.Sprintf("KYC level %s below minimum %s", entry.KycLevel, minLevel),
		}
	}

	if !IsJurisdictionInBitmask(entry.Jurisdiction, mask) {
		return TraderCompliance{
			Code:   domain.CodeJurisdictionRestricted,
			Reason: fmt.Sprintf("jurisdiction %s is not allowed", entry.Jurisdiction),
		}
	}

	return TraderCompliance{Compliant: true}
}
