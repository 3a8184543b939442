package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsentry/chainsentry/api/schemas"
)

// TestSeverityValue pins the weight map and its case sensitivity.
func TestSeverityValue(t *testing.T) {
	assert.Equal(t, 3, schemas.SeverityValue("High"))
	assert.Equal(t, 2, schemas.SeverityValue("Medium"))
	assert.Equal(t, 1, schemas.SeverityValue("Low"))
	assert.Equal(t, 0, schemas.SeverityValue("Informational"))

	// Lookup is case-sensitive and unknown labels degrade to zero.
	assert.Equal(t, 0, schemas.SeverityValue("high"))
	assert.Equal(t, 0, schemas.SeverityValue("HIGH"))
	assert.Equal(t, 0, schemas.SeverityValue("Critical"))
	assert.Equal(t, 0, schemas.SeverityValue(""))
}

// TestNormalizeSeverity verifies case-insensitive canonicalization, the info
// alias, and title-casing of unknown labels.
func TestNormalizeSeverity(t *testing.T) {
	cases := []struct {
		in       string
		expected schemas.Severity
	}{
		{"high", schemas.SeverityHigh},
		{"HIGH", schemas.SeverityHigh},
		{"  Medium ", schemas.SeverityMedium},
		{"low", schemas.SeverityLow},
		{"informational", schemas.SeverityInformational},
		{"info", schemas.SeverityInformational},
		{"critical", schemas.Severity("Critical")},
		{"EXOTIC", schemas.Severity("Exotic")},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.expected, schemas.NormalizeSeverity(tc.in))
		})
	}
}

// TestSeverity_Value verifies the method form agrees with the function.
func TestSeverity_Value(t *testing.T) {
	assert.Equal(t, 3, schemas.SeverityHigh.Value())
	assert.Equal(t, 0, schemas.Severity("Critical").Value())
}

// TestVulnerability_JSONShape verifies unenriched fields serialize as
// explicit nulls while optional analyzer fields are omitted when empty.
func TestVulnerability_JSONShape(t *testing.T) {
	v := schemas.Vulnerability{
		ID:                 "HED-001",
		Title:              "Missing Token Association",
		Severity:           schemas.SeverityMedium,
		SeverityLevelValue: 2,
	}

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	// Enrichment fields are present and null before the pipeline runs.
	for _, key := range []string{"explanation", "fixed_code", "test_case"} {
		val, ok := decoded[key]
		require.True(t, ok, key)
		assert.Nil(t, val)
	}

	// Empty analyzer extras are omitted entirely.
	assert.NotContains(t, decoded, "code_snippet")
	assert.NotContains(t, decoded, "cwe")
	assert.Equal(t, float64(2), decoded["severity_level_value"])
}
