// Package report renders finished audit records as PDF documents.
package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/api/schemas"
	"github.com/chainsentry/chainsentry/internal/config"
)

// PDFGenerator implements schemas.ReportRenderer with go-pdf/fpdf.
type PDFGenerator struct {
	cfg    config.ReportConfig
	logger *zap.Logger
}

// NewPDFGenerator constructs the renderer.
func NewPDFGenerator(cfg config.ReportConfig, logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		cfg:    cfg,
		logger: logger.Named("report.pdf"),
	}
}

// severityFill returns the header fill color for a severity band.
func severityFill(s schemas.Severity) (r, g, b int) {
	switch s {
	case schemas.SeverityHigh:
		return 220, 53, 69
	case schemas.SeverityMedium:
		return 255, 193, 7
	case schemas.SeverityLow:
		return 23, 162, 184
	default:
		return 173, 181, 189
	}
}

// Render produces the PDF bytes for an audit record.
func (g *PDFGenerator) Render(record *schemas.AuditRecord) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s - page %d", g.cfg.Footer, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// Title block.
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(33, 37, 41)
	pdf.CellFormat(0, 12, g.cfg.Title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Contract summary.
	g.summaryRow(pdf, "Contract", record.ContractMetadata.Name)
	g.summaryRow(pdf, "Language", record.ContractMetadata.Language)
	g.summaryRow(pdf, "Source hash", record.ContractMetadata.Hash)
	g.summaryRow(pdf, "Audit score", fmt.Sprintf("%d / 100", record.AuditScore))
	verdict := "FAILED"
	if record.Passed {
		verdict = "PASSED"
	}
	g.summaryRow(pdf, "Verdict", verdict)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("Findings (%d)", len(record.Vulnerabilities)), "", 1, "L", false, 0, "")

	if len(record.Vulnerabilities) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No vulnerabilities were identified in this contract.", "", "L", false)
	}

	for _, v := range record.Vulnerabilities {
		g.writeVulnerability(pdf, v)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF report: %w", err)
	}

	g.logger.Info("Rendered audit report",
		zap.String("contract", record.ContractMetadata.Name),
		zap.Int("bytes", buf.Len()),
	)
	return buf.Bytes(), nil
}

func (g *PDFGenerator) summaryRow(pdf *fpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(35, 7, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 7, value, "", "L", false)
}

func (g *PDFGenerator) writeVulnerability(pdf *fpdf.Fpdf, v schemas.Vulnerability) {
	r, gr, b := severityFill(v.Severity)
	pdf.SetFillColor(r, gr, b)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s  %s  [%s]", v.ID, v.Title, v.Severity), "", 1, "L", true, 0, "")

	pdf.SetTextColor(33, 37, 41)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, v.Description, "", "L", false)

	if v.Location.Line > 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, fmt.Sprintf("Location: line %d", v.Location.Line), "", "L", false)
	}

	if v.CodeSnippet != "" {
		g.codeBlock(pdf, v.CodeSnippet)
	}

	g.textSection(pdf, "Explanation", v.Explanation)
	if v.FixedCode != nil {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, "Suggested fix", "", 1, "L", false, 0, "")
		g.codeBlock(pdf, *v.FixedCode)
	}
	if v.TestCase != nil {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, "Test case", "", 1, "L", false, 0, "")
		g.codeBlock(pdf, *v.TestCase)
	}
	pdf.Ln(4)
}

func (g *PDFGenerator) textSection(pdf *fpdf.Fpdf, heading string, text *string) {
	if text == nil {
		return
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, heading, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, *text, "", "L", false)
}

func (g *PDFGenerator) codeBlock(pdf *fpdf.Fpdf, code string) {
	pdf.SetFillColor(245, 245, 245)
	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 4, code, "1", "L", true)
	pdf.SetFont("Helvetica", "", 10)
}
