package policy

import (
	"errors"
	"fmt"
	"os"

	"github.com/accredit/compliance/internal/domain"
	"gopkg.in/yaml.v3"
)

// Tables is the configurable part of the policy: tier caps and the default
// jurisdiction rule applied when a registry has no mask of its own.
type Tables struct {
	Tiers                        TierLimits `json:"tiers"`
	EnforceFixedJurisdictionRule bool       `json:"enforce_fixed_jurisdiction_rule"`
	DefaultJurisdictionMask      uint8      `json:"default_jurisdiction_mask"`
}

// DefaultTables returns stock tiers with the fixed USA restriction and no default mask.
func DefaultTables() Tables {
	return Tables{
		Tiers:                        DefaultTierLimits(),
		EnforceFixedJurisdictionRule: true,
	}
}

// JurisdictionRuleFor combines the tables with a registry's own mask, which
// takes precedence over the default mask.
func (t Tables) JurisdictionRuleFor(registryMask uint8) JurisdictionRule {
	mask := t.DefaultJurisdictionMask
	if registryMask != 0 {
		mask = registryMask
	}
	return JurisdictionRule{EnforceFixedRule: t.EnforceFixedJurisdictionRule, Mask: mask}
}

// tablesFile is the YAML shape of a policy file.
//
//	version: 1
//	tiers:
//	  basic: 100000000000
//	  standard: 10000000000000
//	  enhanced: 100000000000000
//	jurisdictions:
//	  enforce_fixed_rule: true
//	  allowed: [japan, singapore, hong_kong, eu, other]
type tablesFile struct {
	Version       int         `yaml:"version"`
	Tiers         *TierLimits `yaml:"tiers"`
	Jurisdictions *struct {
		EnforceFixedRule *bool     `yaml:"enforce_fixed_rule"`
		Allowed          *[]string `yaml:"allowed"`
	} `yaml:"jurisdictions"`
}

// ParseTablesYAML parses a policy file. Omitted sections keep their defaults.
func ParseTablesYAML(b []byte) (Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Tables{}, fmt.Errorf("parse policy tables: %w", err)
	}
	if f.Version != 1 {
		return Tables{}, errors.New("policy tables: unsupported version")
	}

	t := DefaultTables()
	if f.Tiers != nil {
		t.Tiers = *f.Tiers
	}
	if err := t.Tiers.Validate(); err != nil {
		return Tables{}, fmt.Errorf("policy tables: %w", err)
	}

	if f.Jurisdictions != nil {
		if f.Jurisdictions.EnforceFixedRule != nil {
			t.EnforceFixedJurisdictionRule = *f.Jurisdictions.EnforceFixedRule
		}
		if allowed := f.Jurisdictions.Allowed; allowed != nil {
			// A zero default mask means "no bitmask check", so an empty list
			// cannot be expressed as deny-all and is rejected.
			if len(*allowed) == 0 {
				return Tables{}, errors.New("policy tables: jurisdictions.allowed must not be empty; omit it to disable the bitmask check")
			}
			js := make([]domain.Jurisdiction, 0, len(*allowed))
			for _, name := range *allowed {
				j, err := domain.ParseJurisdiction(name)
				if err != nil {
					return Tables{}, fmt.Errorf("policy tables: %w", err)
				}
				js = append(js, j)
			}
			t.DefaultJurisdictionMask = domain.JurisdictionMask(js...)
		}
	}

	return t, nil
}

// LoadTables reads a policy file, or returns DefaultTables when path is empty.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read policy tables: %w", err)
	}
	return ParseTablesYAML(b)
}
