package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/accredit/compliance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTablesYAML_Full(t *testing.T) {
	tables, err := ParseTablesYAML([]byte(`
version: 1
tiers:
  basic: 1000
  standard: 2000
  enhanced: 3000
jurisdictions:
  enforce_fixed_rule: false
  allowed: [japan, hong_kong]
`))
	require.NoError(t, err)

	assert.Equal(t, TierLimits{Basic: 1000, Standard: 2000, Enhanced: 3000}, tables.Tiers)
	assert.False(t, tables.EnforceFixedJurisdictionRule)
	assert.Equal(t, uint8(0b000101), tables.DefaultJurisdictionMask)
}

func TestParseTablesYAML_DefaultsKept(t *testing.T) {
	tables, err := ParseTablesYAML([]byte("version: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTables(), tables)
}

func TestParseTablesYAML_Rejects(t *testing.T) {
	tests := map[string]string{
		"bad version":     "version: 2\n",
		"unordered tiers": "version: 1\ntiers: {basic: 5, standard: 4, enhanced: 6}\n",
		"unknown region":  "version: 1\njurisdictions: {allowed: [mars]}\n",
		"empty allowed":   "version: 1\njurisdictions: {allowed: []}\n",
		"empty block list": "version: 1\njurisdictions:\n  allowed: []\n  enforce_fixed_rule: true\n",
		"malformed":       "version: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTablesYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseTablesYAML_AbsentAllowedKeepsBitmaskOff(t *testing.T) {
	tables, err := ParseTablesYAML([]byte("version: 1\njurisdictions: {enforce_fixed_rule: true}\n"))
	require.NoError(t, err)
	assert.Zero(t, tables.DefaultJurisdictionMask)
	assert.False(t, EvaluateJurisdiction(domain.JurisdictionUsa, tables.JurisdictionRuleFor(0)))
	assert.True(t, EvaluateJurisdiction(domain.JurisdictionEu, tables.JurisdictionRuleFor(0)))
}

func TestLoadTables(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		tables, err := LoadTables("")
		require.NoError(t, err)
		assert.Equal(t, DefaultTables(), tables)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 1\njurisdictions: {allowed: [eu]}\n"), 0o600))

		tables, err := LoadTables(path)
		require.NoError(t, err)
		assert.Equal(t, domain.JurisdictionMask(domain.JurisdictionEu), tables.DefaultJurisdictionMask)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTables(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestTables_JurisdictionRuleFor(t *testing.T) {
	tables := DefaultTables()
	tables.DefaultJurisdictionMask = 0b1

	assert.Equal(t, JurisdictionRule{EnforceFixedRule: true, Mask: 0b1}, tables.JurisdictionRuleFor(0))
	assert.Equal(t, JurisdictionRule{EnforceFixedRule: true, Mask: 0b10}, tables.JurisdictionRuleFor(0b10))
}
