package schemas

// -- Contract & Audit Schemas --

// ContractMetadata identifies the contract submitted for auditing. Hash is
// the SHA-256 hex digest of the exact source bytes; the API layer computes it
// once when the caller did not supply it and it is never recomputed
// mid-pipeline.
type ContractMetadata struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Hash     string `json:"hash,omitempty"`
}

// ContractMetrics carries basic size and complexity numbers for the analyzed
// source. LOC is always computed locally from the submitted source, so it is
// accurate even when the external analyzer never ran.
type ContractMetrics struct {
	Complexity int `json:"complexity"`
	LOC        int `json:"loc"`
}

// AnalysisResult is the static-analysis adapter's output: normalized
// vulnerabilities in analyzer-emission order (platform rule findings
// appended last) plus contract metrics.
type AnalysisResult struct {
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	ContractMetrics ContractMetrics `json:"contract_metrics"`
}

// AuditRecord is the terminal artifact of one full pipeline run. AuditScore
// and Passed are pure functions of Vulnerabilities; recomputing them from the
// same list always yields the same result.
type AuditRecord struct {
	ContractMetadata ContractMetadata `json:"contract_metadata"`
	Vulnerabilities  []Vulnerability  `json:"vulnerabilities"`
	AuditScore       int              `json:"audit_score"`
	Passed           bool             `json:"passed"`
}

// -- REST API Payloads --

// AuditRequest is the body of POST /analyze.
type AuditRequest struct {
	ContractCode     string           `json:"contract_code"`
	ContractMetadata ContractMetadata `json:"contract_metadata"`
}

// ReportRequest is the body of POST /generate-report.
type ReportRequest struct {
	AuditData AuditRecord `json:"audit_data"`
}

// ReportResponse describes where the rendered report ended up.
type ReportResponse struct {
	FileID  string  `json:"file_id"`
	NFTID   *string `json:"nft_id"`
	ViewURL string  `json:"view_url"`
}

// UploadResponse echoes an uploaded contract back with computed metadata.
type UploadResponse struct {
	ContractCode     string           `json:"contract_code"`
	ContractMetadata ContractMetadata `json:"contract_metadata"`
}

// -- HCS-10 API Payloads --

// AgentTopicsResponse lists the ledger topics the audit agent communicates on.
type AgentTopicsResponse struct {
	InboundTopicID  string `json:"inbound_topic_id"`
	OutboundTopicID string `json:"outbound_topic_id"`
	MetadataTopicID string `json:"metadata_topic_id"`
}

// ConnectionRequest asks the agent to open a connection with another account.
type ConnectionRequest struct {
	AccountID string `json:"account_id"`
}

// ConnectionResponse describes an established agent connection.
type ConnectionResponse struct {
	ConnectionID       int    `json:"connection_id"`
	ConnectionTopicID  string `json:"connection_topic_id"`
	ConnectedAccountID string `json:"connected_account_id"`
}

// AuditRequestHCS10 submits a contract for auditing over an agent connection.
type AuditRequestHCS10 struct {
	ConnectionID     int              `json:"connection_id"`
	ContractCode     string           `json:"contract_code"`
	ContractMetadata ContractMetadata `json:"contract_metadata"`
}

// AuditResultHCS10 forwards a finished audit over an agent connection.
type AuditResultHCS10 struct {
	ConnectionID int         `json:"connection_id"`
	AuditResult  AuditRecord `json:"audit_result"`
	FileID       string      `json:"file_id"`
	NFTID        *string     `json:"nft_id"`
}

// ApprovalRequest asks the connected account to approve minting an audit NFT.
type ApprovalRequest struct {
	ConnectionID int         `json:"connection_id"`
	AuditResult  AuditRecord `json:"audit_result"`
	FileID       string      `json:"file_id"`
}
