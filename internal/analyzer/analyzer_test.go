package analyzer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/internal/analyzer"
	"github.com/chainsentry/chainsentry/internal/config"
	"github.com/chainsentry/chainsentry/internal/scoring"
)

func newTestAnalyzer(binary string) *analyzer.Slither {
	return analyzer.NewSlither(config.AnalyzerConfig{
		Binary:    binary,
		Detectors: []string{"reentrancy-eth"},
		Timeout:   5 * time.Second,
	}, zap.NewNop())
}

// TestAnalyze_MissingBinary verifies the adapter is total: a nonexistent
// analyzer binary degrades to platform rules only, never an error.
func TestAnalyze_MissingBinary(t *testing.T) {
	a := newTestAnalyzer("definitely-not-a-real-binary-4f8a")

	source := "pragma solidity ^0.8.0;\ncontract Empty {}\n"
	result := a.Analyze(context.Background(), source, "solidity")

	require.NotNil(t, result)
	assert.Equal(t, 2, result.ContractMetrics.LOC)
	assert.Equal(t, 5, result.ContractMetrics.Complexity)

	// Only the token-association rule applies to this source.
	require.Len(t, result.Vulnerabilities, 1)
	assert.Equal(t, "HED-001", result.Vulnerabilities[0].ID)
}

// TestAnalyze_VulnerableDeposit covers the reference scenario: an unvalidated
// payable deposit with no token association yields two platform findings and
// a passing score of 90.
func TestAnalyze_VulnerableDeposit(t *testing.T) {
	a := newTestAnalyzer("definitely-not-a-real-binary-4f8a")

	source := `pragma solidity ^0.8.0;
contract Vault {
    mapping(address => uint) balances;
    function deposit() public payable {
        balances[msg.sender] += msg.value;
    }
}
`
	result := a.Analyze(context.Background(), source, "solidity")

	require.Len(t, result.Vulnerabilities, 2)
	assert.Equal(t, "HED-001", result.Vulnerabilities[0].ID)
	assert.Equal(t, "HED-002", result.Vulnerabilities[1].ID)

	score := scoring.Score(result.Vulnerabilities)
	assert.Equal(t, 90, score)
	assert.True(t, scoring.Passed(score))
}

// TestAnalyze_EmptySource verifies zero LOC for an empty contract body.
func TestAnalyze_EmptySource(t *testing.T) {
	a := newTestAnalyzer("definitely-not-a-real-binary-4f8a")

	result := a.Analyze(context.Background(), "", "solidity")
	assert.Equal(t, 0, result.ContractMetrics.LOC)
	// The association rule still fires on an empty source.
	require.Len(t, result.Vulnerabilities, 1)
	assert.Equal(t, "HED-001", result.Vulnerabilities[0].ID)
}

// TestAnalyze_CanceledContext verifies cancellation degrades like any other
// analyzer failure instead of panicking or erroring.
func TestAnalyze_CanceledContext(t *testing.T) {
	a := newTestAnalyzer("definitely-not-a-real-binary-4f8a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := a.Analyze(ctx, "contract C {}", "solidity")
	require.NotNil(t, result)
	assert.Equal(t, 1, result.ContractMetrics.LOC)
}
