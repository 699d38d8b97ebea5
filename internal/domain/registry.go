package domain

// KycRegistry is the per-asset compliance configuration. It does not own or
// enumerate its entries; WhitelistCount is advisory.
type KycRegistry struct {
	Key            Key    `json:"key"`
	Authority      Key    `json:"authority"`
	Mint           Key    `json:"mint"`
	WhitelistCount uint64 `json:"whitelist_count"`

	IsActive     bool `json:"is_active"`
	RequireKyc   bool `json:"require_kyc"`
	VerifiedOnly bool `json:"verified_only"`

	// JurisdictionMask is the registry's admissible set; 0 disables the bitmask check.
	JurisdictionMask uint8 `json:"jurisdiction_mask"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}
