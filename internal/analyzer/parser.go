package analyzer

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/chainsentry/chainsentry/api/schemas"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// defaultComplexity is reported when the analyzer output carries no metrics.
const defaultComplexity = 5

// -- Slither JSON output structures --
//
// Slither emits either the full envelope {"success":..,"results":{"detectors":[..]}}
// or a bare {"detectors":[..]} document depending on version and flags; both
// shapes are accepted.

type slitherReport struct {
	Success   bool              `json:"success"`
	Results   *slitherResults   `json:"results"`
	Detectors []slitherDetector `json:"detectors"`
	Metrics   slitherMetrics    `json:"metrics"`
}

type slitherResults struct {
	Detectors []slitherDetector `json:"detectors"`
}

type slitherDetector struct {
	Check       string           `json:"check"`
	Description string           `json:"description"`
	Impact      string           `json:"impact"`
	CWE         []string         `json:"cwe"`
	Elements    []slitherElement `json:"elements"`
}

type slitherElement struct {
	Name          string               `json:"name"`
	SourceMapping slitherSourceMapping `json:"source_mapping"`
}

type slitherSourceMapping struct {
	Start int   `json:"start"`
	Lines []int `json:"lines"`
}

type slitherMetrics struct {
	Complexity int `json:"complexity"`
}

// parseOutput decodes raw analyzer stdout and normalizes every detector
// finding into a Vulnerability. Findings keep emission order and get
// sequential VULN-<n> ids.
func parseOutput(raw string) ([]schemas.Vulnerability, slitherMetrics, error) {
	var report slitherReport
	if err := jsonAPI.UnmarshalFromString(raw, &report); err != nil {
		return nil, slitherMetrics{}, fmt.Errorf("failed to parse analyzer output: %w", err)
	}

	detectors := report.Detectors
	if report.Results != nil {
		detectors = report.Results.Detectors
	}

	vulns := make([]schemas.Vulnerability, 0, len(detectors))
	for _, det := range detectors {
		vulns = append(vulns, normalizeDetector(det, len(vulns)+1))
	}
	return vulns, report.Metrics, nil
}

func normalizeDetector(det slitherDetector, seq int) schemas.Vulnerability {
	title := det.Check
	if title == "" {
		title = "Unknown"
	}
	description := det.Description
	if description == "" {
		description = "No description"
	}
	impact := det.Impact
	if impact == "" {
		impact = "Medium"
	}
	severity := schemas.NormalizeSeverity(impact)

	v := schemas.Vulnerability{
		ID:                 fmt.Sprintf("VULN-%d", seq),
		Title:              title,
		Description:        description,
		Severity:           severity,
		SeverityLevelValue: severity.Value(),
		CWE:                det.CWE,
	}

	if len(det.Elements) > 0 {
		element := det.Elements[0]
		v.Location.Line = element.SourceMapping.Start
		if element.Name != "" {
			name := element.Name
			v.Location.Function = &name
		}
		// Slither reports only a function name, not an excerpt; synthesize a
		// minimal placeholder so the enrichment prompts have something to cite.
		v.CodeSnippet = fmt.Sprintf("// In %s\n// Vulnerable code here", elementName(element))
	}

	return v
}

func elementName(e slitherElement) string {
	if e.Name == "" {
		return "unknown"
	}
	return e.Name
}
