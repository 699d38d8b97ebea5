package domain

// Key is an opaque identifier for wallets, registries, authorities and mints.
// The service never derives or decodes keys.
type Key string

func (k Key) String() string { return string(k) }

// WhitelistEntry is the compliance record of one verified wallet within one registry.
// Entries reference their registry by key; (Registry, Wallet) identifies an entry.
type WhitelistEntry struct {
	Wallet       Key          `json:"wallet"`
	Registry     Key          `json:"registry"`
	KycLevel     KycLevel     `json:"kyc_level"`
	Jurisdiction Jurisdiction `json:"jurisdiction"`
	KycHash      KycHash      `json:"kyc_hash"`

	IsActive        bool  `json:"is_active"`
	VerifiedAt      int64 `json:"verified_at"`
	ExpiryTimestamp int64 `json:"expiry_timestamp"` // 0 = never expires
	CreatedAt       int64 `json:"created_at"`
	LastActivity    int64 `json:"last_activity"`

	DailyLimit      uint64 `json:"daily_limit"`       // 0 = tier default
	DailyVolume     uint64 `json:"daily_volume"`      // valid within [VolumeResetTime, VolumeResetTime+86400)
	VolumeResetTime int64  `json:"volume_reset_time"` // window start
}

// Usage is the rate-limit state written back after a recorded transfer.
type Usage struct {
	DailyVolume     uint64 `json:"daily_volume"`
	VolumeResetTime int64  `json:"volume_reset_time"`
	LastActivity    int64  `json:"last_activity"`
}

// Usage returns the entry's current rate-limit state.
func (e *WhitelistEntry) Usage() Usage {
	return Usage{
		DailyVolume:     e.DailyVolume,
		VolumeResetTime: e.VolumeResetTime,
		LastActivity:    e.LastActivity,
	}
}

// NewWhitelistEntry returns an active entry with zeroed volume state, the shape a
// provisioning step produces.
func NewWhitelistEntry(registry, wallet Key, level KycLevel, j Jurisdiction, hash KycHash, now int64) *WhitelistEntry {
	return &WhitelistEntry{
		Wallet:          wallet,
		Registry:        registry,
		KycLevel:        level,
		Jurisdiction:    j,
		KycHash:         hash,
		IsActive:        true,
		VerifiedAt:      now,
		CreatedAt:       now,
		VolumeResetTime: now,
	}
}
