package schemas

import (
	"strings"
	"unicode"
)

// -- Severity Model --

// Severity is the canonical, title-cased severity label attached to a
// vulnerability. All scoring arithmetic goes through SeverityValue; the
// string form exists for display and serialization only.
type Severity string

// Canonical severity labels, ordered from most to least severe.
const (
	SeverityHigh          Severity = "High"
	SeverityMedium        Severity = "Medium"
	SeverityLow           Severity = "Low"
	SeverityInformational Severity = "Informational"
)

// severityWeights maps canonical labels to their numeric weight. The match is
// case-sensitive on purpose: anything that is not exactly a canonical label
// degrades to 0 rather than failing, so an unknown analyzer impact string can
// never abort an audit.
var severityWeights = map[string]int{
	string(SeverityHigh):          3,
	string(SeverityMedium):        2,
	string(SeverityLow):           1,
	string(SeverityInformational): 0,
}

// SeverityValue converts a severity label to its numeric weight in {0,1,2,3}.
// Unrecognized labels map to 0. It never fails.
func SeverityValue(label string) int {
	return severityWeights[label]
}

// NormalizeSeverity maps an arbitrary-case severity label onto its canonical
// form. Labels outside the canonical set are title-cased as-is so they remain
// readable in reports; their weight is still 0.
func NormalizeSeverity(label string) Severity {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	case "low":
		return SeverityLow
	case "informational", "info":
		return SeverityInformational
	}
	return Severity(titleCase(strings.TrimSpace(label)))
}

// Value returns the numeric weight of the severity.
func (s Severity) Value() int {
	return SeverityValue(string(s))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// -- Vulnerability Schemas --

// Location pinpoints where in the contract source a vulnerability was found.
// Column and Function are nullable because the analyzer frequently reports
// only a line or only an enclosing function name.
type Location struct {
	Line     int     `json:"line"`
	Column   *int    `json:"column"`
	Function *string `json:"function"`
}

// Vulnerability is the unit of work flowing through the audit pipeline. The
// adapter creates it, each enrichment stage adds fields to it, and the scorer
// reduces a list of them to a verdict. Fields are added, never removed.
//
// Explanation, FixedCode and TestCase stay nil until the enrichment pipeline
// has run; they remain nil for a vulnerability whose model lookup produced no
// match.
type Vulnerability struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Severity           Severity `json:"severity"`
	SeverityLevelValue int      `json:"severity_level_value"`
	Location           Location `json:"location"`
	CodeSnippet        string   `json:"code_snippet,omitempty"`
	CWE                []string `json:"cwe,omitempty"`

	Explanation *string `json:"explanation"`
	FixedCode   *string `json:"fixed_code"`
	TestCase    *string `json:"test_case"`
}
