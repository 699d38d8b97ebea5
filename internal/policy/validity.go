package policy

import "github.com/accredit/compliance/internal/domain"

// IsEntryValid reports whether an entry may take part in a transfer at now.
// The expiry boundary is exclusive: an entry expiring at t is invalid at t.
func IsEntryValid(isActive bool, expiryTimestamp, now int64) bool {
	return isActive && (expiryTimestamp == 0 || now < expiryTimestamp)
}

// EntryStatus names why an entry is not valid, or "" if it is.
// Inactive takes precedence over expired.
func EntryStatus(isActive bool, expiryTimestamp, now int64) domain.ErrorCode {
	if !isActive {
		return domain.CodeEntryInactive
	}
	if expiryTimestamp != 0 && now >= expiryTimestamp {
		return domain.CodeEntryExpired
	}
	return ""
}
