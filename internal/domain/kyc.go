package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// KycLevel is the ordered KYC verification tier. Higher tiers carry higher default limits.
type KycLevel uint8

const (
	KycBasic         KycLevel = iota // email, phone
	KycStandard                      // ID document
	KycEnhanced                      // video call, address proof
	KycInstitutional                 // corporate KYB
)

var kycLevelNames = map[KycLevel]string{
	KycBasic:         "basic",
	KycStandard:      "standard",
	KycEnhanced:      "enhanced",
	KycInstitutional: "institutional",
}

// Valid reports whether l is one of the four defined tiers.
func (l KycLevel) Valid() bool {
	_, ok := kycLevelNames[l]
	return ok
}

func (l KycLevel) String() string {
	if name, ok := kycLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("kyc_level(%d)", uint8(l))
}

// ParseKycLevel accepts the lowercase tier name.
func ParseKycLevel(s string) (KycLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range kycLevelNames {
		if name == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown kyc level: %q", s)
}

func (l KycLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid kyc level %d", uint8(l))
	}
	return []byte(l.String()), nil
}

func (l *KycLevel) UnmarshalText(b []byte) error {
	v, err := ParseKycLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Jurisdiction is the declared regulatory region of a wallet owner.
type Jurisdiction uint8

const (
	JurisdictionJapan Jurisdiction = iota
	JurisdictionSingapore
	JurisdictionHongKong
	JurisdictionEu
	JurisdictionUsa
	JurisdictionOther
)

// jurisdictionBits is the bitmask contract shared with external callers.
// Do not reorder; do not derive from the constant values above.
var jurisdictionBits = map[Jurisdiction]uint8{
	JurisdictionJapan:     0,
	JurisdictionSingapore: 1,
	JurisdictionHongKong:  2,
	JurisdictionEu:        3,
	JurisdictionUsa:       4,
	JurisdictionOther:     5,
}

var jurisdictionNames = map[Jurisdiction]string{
	JurisdictionJapan:     "japan",
	JurisdictionSingapore: "singapore",
	JurisdictionHongKong:  "hong_kong",
	JurisdictionEu:        "eu",
	JurisdictionUsa:       "usa",
	JurisdictionOther:     "other",
}

// AllJurisdictions returns the closed set in bit order.
func AllJurisdictions() []Jurisdiction {
	return []Jurisdiction{
		JurisdictionJapan,
		JurisdictionSingapore,
		JurisdictionHongKong,
		JurisdictionEu,
		JurisdictionUsa,
		JurisdictionOther,
	}
}

// Bit returns the mask bit position for j.
func (j Jurisdiction) Bit() (uint8, bool) {
	b, ok := jurisdictionBits[j]
	return b, ok
}

// Valid reports whether j is a member of the closed set.
func (j Jurisdiction) Valid() bool {
	_, ok := jurisdictionBits[j]
	return ok
}

func (j Jurisdiction) String() string {
	if name, ok := jurisdictionNames[j]; ok {
		return name
	}
	return fmt.Sprintf("jurisdiction(%d)", uint8(j))
}

// ParseJurisdiction accepts the lowercase jurisdiction name.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for j, name := range jurisdictionNames {
		if name == s {
			return j, nil
		}
	}
	return 0, fmt.Errorf("unknown jurisdiction: %q", s)
}

func (j Jurisdiction) MarshalText() ([]byte, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("invalid jurisdiction %d", uint8(j))
	}
	return []byte(j.String()), nil
}

func (j *Jurisdiction) UnmarshalText(b []byte) error {
	v, err := ParseJurisdiction(string(b))
	if err != nil {
		return err
	}
	*j = v
	return nil
}

// JurisdictionMask builds an admissibility mask with the bits of js set.
func JurisdictionMask(js ...Jurisdiction) uint8 {
	var mask uint8
	for _, j := range js {
		if b, ok := j.Bit(); ok {
			mask |= 1 << b
		}
	}
	return mask
}

// KycHashSize is the size of the opaque off-chain KYC digest.
const KycHashSize = 32

// KycHash is an uninterpreted digest of off-chain KYC data.
type KycHash [KycHashSize]byte

func (h KycHash) String() string { return hex.EncodeToString(h[:]) }

func (h KycHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *KycHash) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return fmt.Errorf("decode kyc hash: %w", err)
	}
	if len(raw) != KycHashSize {
		return fmt.Errorf("kyc hash must be %d bytes, got %d", KycHashSize, len(raw))
	}
	copy(h[:], raw)
	return nil
}
