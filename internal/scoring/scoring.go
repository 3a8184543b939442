// Package scoring reduces a vulnerability list to a deterministic audit
// score and pass/fail verdict.
package scoring

import "github.com/chainsentry/chainsentry/api/schemas"

// PassThreshold is the minimum score for a passing audit. It is fixed, not
// configurable.
const PassThreshold = 80

// Penalty returns the score deduction for a single vulnerability:
// max(0, 5 - severity_level_value) * 2. A missing severity value is zero,
// which yields the maximum deduction of 10.
//
// Note the shape: lower severity values cost more points. External consumers
// depend on the resulting scores, so the formula is preserved exactly.
func Penalty(v schemas.Vulnerability) int {
	d := 5 - v.SeverityLevelValue
	if d < 0 {
		d = 0
	}
	return d * 2
}

// Score computes the audit score in [0,100] for the vulnerability list.
// Scoring is a pure function of its input: the same list always produces the
// same score.
func Score(vulns []schemas.Vulnerability) int {
	total := 0
	for _, v := range vulns {
		total += Penalty(v)
	}
	score := 100 - total
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Passed reports whether a score clears the pass threshold.
func Passed(score int) bool {
	return score >= PassThreshold
}

// Apply fills in AuditScore and Passed on the record from its own
// vulnerability list.
func Apply(record *schemas.AuditRecord) {
	record.AuditScore = Score(record.Vulnerabilities)
	record.Passed = Passed(record.AuditScore)
}
