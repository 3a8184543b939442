package analyzer

import (
	"strings"

	"github.com/chainsentry/chainsentry/api/schemas"
)

// hederaRule is one deterministic textual check encoding a Hedera-specific
// security heuristic the upstream analyzer does not know about.
type hederaRule struct {
	finding schemas.Vulnerability
	applies func(source string) bool
}

// hederaRules are evaluated independently against the raw contract source;
// every applicable finding is appended, in this order, after the analyzer
// findings. They run even when the external analyzer is unavailable.
var hederaRules = []hederaRule{
	{
		finding: schemas.Vulnerability{
			ID:                 "HED-001",
			Title:              "Missing Token Association",
			Description:        "Contract doesn't implement token association logic which is required for HTS tokens",
			Severity:           schemas.SeverityMedium,
			SeverityLevelValue: 2,
			CWE:                []string{"CWE-362"},
		},
		applies: func(source string) bool {
			return !strings.Contains(source, "associateToken") && !strings.Contains(source, "TokenAssociate")
		},
	},
	{
		finding: schemas.Vulnerability{
			ID:                 "HED-002",
			Title:              "Unsafe HBAR Handling",
			Description:        "Payable function without HBAR amount validation could lead to unexpected behavior",
			Severity:           schemas.SeverityHigh,
			SeverityLevelValue: 3,
			CWE:                []string{"CWE-840"},
		},
		applies: func(source string) bool {
			return strings.Contains(source, "payable") && !strings.Contains(source, "require(msg.value")
		},
	},
	{
		finding: schemas.Vulnerability{
			ID:                 "HED-003",
			Title:              "Improper Timestamp Usage",
			Description:        "Using block.timestamp instead of Hedera's ConsensusTimestamp may lead to inconsistencies",
			Severity:           schemas.SeverityMedium,
			SeverityLevelValue: 2,
			CWE:                []string{"CWE-829"},
		},
		applies: func(source string) bool {
			return strings.Contains(source, "block.timestamp") && !strings.Contains(source, "ConsensusTimestamp")
		},
	},
}

// checkHederaRules evaluates every platform rule against the contract source.
func checkHederaRules(source string) []schemas.Vulnerability {
	var vulns []schemas.Vulnerability
	for _, rule := range hederaRules {
		if rule.applies(source) {
			vulns = append(vulns, rule.finding)
		}
	}
	return vulns
}
