package schemas

import "context"

// -- LLM Client Schemas & Interface --

// GenerationOptions tunes a single text generation. Each enrichment stage
// uses its own temperature and token budget.
type GenerationOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// GenerationRequest encapsulates one complete request to the language model.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient abstracts the language model provider. The completion is used
// verbatim downstream; no structured-output contract is assumed.
type LLMClient interface {
	// Generate produces a free-text completion for the request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// -- Pipeline Interfaces --

// ContractAnalyzer turns raw contract source into a normalized analysis
// result. Implementations are total: they absorb every internal failure and
// always return a usable result, degrading to platform rule findings and
// locally computed metrics when the external tool is unavailable.
type ContractAnalyzer interface {
	Analyze(ctx context.Context, source, language string) *AnalysisResult
}

// Enricher attaches model-generated explanation, fix and test content to a
// vulnerability list. Unlike the analyzer it is allowed to fail; callers fall
// back to the unenriched list when it does.
type Enricher interface {
	Enrich(ctx context.Context, vulns []Vulnerability, source string) ([]Vulnerability, error)
}

// ReportRenderer turns a finished audit record into a binary document.
type ReportRenderer interface {
	Render(record *AuditRecord) ([]byte, error)
}

// AuditStore persists finished audit records keyed by contract hash.
type AuditStore interface {
	SaveAudit(ctx context.Context, record *AuditRecord) error
	GetAuditByHash(ctx context.Context, hash string) (*AuditRecord, error)
}
