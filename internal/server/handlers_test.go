package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/api/schemas"
	"github.com/chainsentry/chainsentry/internal/config"
	"github.com/chainsentry/chainsentry/internal/ledger"
	"github.com/chainsentry/chainsentry/internal/server"
)

// stubAnalyzer returns a fixed finding list.
type stubAnalyzer struct {
	vulns []schemas.Vulnerability
}

func (s *stubAnalyzer) Analyze(ctx context.Context, source, language string) *schemas.AnalysisResult {
	return &schemas.AnalysisResult{
		Vulnerabilities: append([]schemas.Vulnerability{}, s.vulns...),
		ContractMetrics: schemas.ContractMetrics{Complexity: 5, LOC: 10},
	}
}

// stubEnricher attaches a canned explanation, or fails on demand.
type stubEnricher struct {
	fail bool
}

func (s *stubEnricher) Enrich(ctx context.Context, vulns []schemas.Vulnerability, source string) ([]schemas.Vulnerability, error) {
	if s.fail {
		return nil, errors.New("model unavailable")
	}
	out := make([]schemas.Vulnerability, len(vulns))
	for i, v := range vulns {
		text := "explained"
		v.Explanation = &text
		out[i] = v
	}
	return out, nil
}

// stubRenderer produces a fake PDF.
type stubRenderer struct{}

func (stubRenderer) Render(record *schemas.AuditRecord) ([]byte, error) {
	return []byte("%PDF-1.4 stub"), nil
}

// memoryStore records saved audits.
type memoryStore struct {
	saved []*schemas.AuditRecord
}

func (m *memoryStore) SaveAudit(ctx context.Context, record *schemas.AuditRecord) error {
	m.saved = append(m.saved, record)
	return nil
}

func (m *memoryStore) GetAuditByHash(ctx context.Context, hash string) (*schemas.AuditRecord, error) {
	return nil, errors.New("not found")
}

func highFinding() schemas.Vulnerability {
	return schemas.Vulnerability{
		ID:                 "HED-002",
		Title:              "Unsafe HBAR Handling",
		Severity:           schemas.SeverityHigh,
		SeverityLevelValue: 3,
	}
}

type serverOpts struct {
	analyzer schemas.ContractAnalyzer
	enricher schemas.Enricher
	store    schemas.AuditStore
}

func newTestServer(t *testing.T, opts serverOpts) (*server.Server, *ledger.Agent) {
	t.Helper()
	if opts.analyzer == nil {
		opts.analyzer = &stubAnalyzer{}
	}
	if opts.enricher == nil {
		opts.enricher = &stubEnricher{}
	}
	agent := ledger.NewAgent(config.LedgerConfig{
		Network:         "testnet",
		AgentName:       "ChainSentry",
		InboundTopicID:  "0.0.6374135",
		OutboundTopicID: "0.0.6374137",
		MetadataTopicID: "0.0.6374143",
	}, ledger.NewMemoryClient(), zap.NewNop())

	srv := server.New(
		config.ServerConfig{Address: ":0", ShutdownTimeout: time.Second, AuditTimeout: 5 * time.Second},
		"testnet",
		opts.analyzer,
		opts.enricher,
		stubRenderer{},
		agent,
		opts.store,
		zap.NewNop(),
	)
	return srv, agent
}

func doJSON(t *testing.T, srv *server.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// TestHealth verifies the liveness endpoint.
func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

// TestAnalyze_FullPipeline verifies analysis, enrichment, scoring and hash
// computation in one request.
func TestAnalyze_FullPipeline(t *testing.T) {
	st := &memoryStore{}
	srv, _ := newTestServer(t, serverOpts{
		analyzer: &stubAnalyzer{vulns: []schemas.Vulnerability{highFinding()}},
		store:    st,
	})

	rec := doJSON(t, srv, http.MethodPost, "/analyze", schemas.AuditRequest{
		ContractCode:     "contract C {}",
		ContractMetadata: schemas.ContractMetadata{Name: "C", Language: "solidity"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var record schemas.AuditRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))

	assert.Equal(t, 96, record.AuditScore)
	assert.True(t, record.Passed)
	// The hash was computed server-side from the source bytes.
	assert.Len(t, record.ContractMetadata.Hash, 64)
	require.Len(t, record.Vulnerabilities, 1)
	require.NotNil(t, record.Vulnerabilities[0].Explanation)
	assert.Equal(t, "explained", *record.Vulnerabilities[0].Explanation)

	// The finished record was persisted.
	require.Len(t, st.saved, 1)
	assert.Equal(t, 96, st.saved[0].AuditScore)
}

// TestAnalyze_EnrichmentFallback verifies an enrichment failure degrades to
// the unenriched findings with a 200 response.
func TestAnalyze_EnrichmentFallback(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{
		analyzer: &stubAnalyzer{vulns: []schemas.Vulnerability{highFinding()}},
		enricher: &stubEnricher{fail: true},
	})

	rec := doJSON(t, srv, http.MethodPost, "/analyze", schemas.AuditRequest{
		ContractCode:     "contract C {}",
		ContractMetadata: schemas.ContractMetadata{Name: "C", Language: "solidity"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var record schemas.AuditRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	require.Len(t, record.Vulnerabilities, 1)
	assert.Nil(t, record.Vulnerabilities[0].Explanation)
	assert.Equal(t, 96, record.AuditScore)
}

// TestAnalyze_EmptyCode rejects a request without contract source.
func TestAnalyze_EmptyCode(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})
	rec := doJSON(t, srv, http.MethodPost, "/analyze", schemas.AuditRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestAnalyze_KeepsCallerHash verifies a caller-supplied hash is not
// overwritten.
func TestAnalyze_KeepsCallerHash(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})
	rec := doJSON(t, srv, http.MethodPost, "/analyze", schemas.AuditRequest{
		ContractCode:     "contract C {}",
		ContractMetadata: schemas.ContractMetadata{Name: "C", Hash: "caller-hash"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var record schemas.AuditRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "caller-hash", record.ContractMetadata.Hash)
}

// TestUploadContract verifies multipart upload returns the source with
// computed metadata.
func TestUploadContract(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "Vault.sol")
	require.NoError(t, err)
	_, err = fw.Write([]byte("contract Vault {}"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-contract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp schemas.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "contract Vault {}", resp.ContractCode)
	assert.Equal(t, "Vault", resp.ContractMetadata.Name)
	assert.Equal(t, "solidity", resp.ContractMetadata.Language)
	assert.Len(t, resp.ContractMetadata.Hash, 64)
}

// TestGenerateReport_PassedMintsNFT verifies passing audits get an NFT and a
// hashscan view URL.
func TestGenerateReport_PassedMintsNFT(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	rec := doJSON(t, srv, http.MethodPost, "/generate-report", schemas.ReportRequest{
		AuditData: schemas.AuditRecord{
			ContractMetadata: schemas.ContractMetadata{Name: "Vault"},
			AuditScore:       100,
			Passed:           true,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp schemas.ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.FileID)
	require.NotNil(t, resp.NFTID)
	assert.True(t, strings.HasPrefix(resp.ViewURL, "https://hashscan.io/testnet/file/"))
}

// TestGenerateReport_FailedSkipsNFT verifies failing audits store the report
// but mint nothing.
func TestGenerateReport_FailedSkipsNFT(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	rec := doJSON(t, srv, http.MethodPost, "/generate-report", schemas.ReportRequest{
		AuditData: schemas.AuditRecord{
			ContractMetadata: schemas.ContractMetadata{Name: "Vault"},
			AuditScore:       40,
			Passed:           false,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp schemas.ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.FileID)
	assert.Nil(t, resp.NFTID)
}

// TestHCS10_TopicsAndConnections exercises the agent surface end to end.
func TestHCS10_TopicsAndConnections(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	rec := doJSON(t, srv, http.MethodGet, "/hcs10/topics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var topics schemas.AgentTopicsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &topics))
	assert.Equal(t, "0.0.6374135", topics.InboundTopicID)

	rec = doJSON(t, srv, http.MethodPost, "/hcs10/connections", schemas.ConnectionRequest{AccountID: "0.0.12345"})
	require.Equal(t, http.StatusOK, rec.Code)
	var conn schemas.ConnectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conn))
	assert.Equal(t, 1, conn.ConnectionID)
	assert.NotEmpty(t, conn.ConnectionTopicID)

	// Missing account id is rejected.
	rec = doJSON(t, srv, http.MethodPost, "/hcs10/connections", schemas.ConnectionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestHCS10_AuditRequest verifies the accepted response and the unknown
// connection rejection.
func TestHCS10_AuditRequest(t *testing.T) {
	srv, agent := newTestServer(t, serverOpts{})
	conn, err := agent.CreateConnection(context.Background(), "0.0.12345")
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/hcs10/audit-request", schemas.AuditRequestHCS10{
		ConnectionID: conn.ID,
		ContractCode: "contract C {}",
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "processing")

	rec = doJSON(t, srv, http.MethodPost, "/hcs10/audit-request", schemas.AuditRequestHCS10{
		ConnectionID: 99,
		ContractCode: "contract C {}",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestHCS10_AuditResultAndApproval verifies result forwarding and approval
// scheduling over an open connection.
func TestHCS10_AuditResultAndApproval(t *testing.T) {
	srv, agent := newTestServer(t, serverOpts{})
	conn, err := agent.CreateConnection(context.Background(), "0.0.12345")
	require.NoError(t, err)

	record := schemas.AuditRecord{
		ContractMetadata: schemas.ContractMetadata{Name: "Vault"},
		AuditScore:       100,
		Passed:           true,
	}

	rec := doJSON(t, srv, http.MethodPost, "/hcs10/audit-result", schemas.AuditResultHCS10{
		ConnectionID: conn.ID,
		AuditResult:  record,
		FileID:       "0.0.8000001",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transaction_id")

	rec = doJSON(t, srv, http.MethodPost, "/hcs10/request-approval", schemas.ApprovalRequest{
		ConnectionID: conn.ID,
		AuditResult:  record,
		FileID:       "0.0.8000001",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "schedule_id")

	// Unknown connections are rejected on both endpoints.
	rec = doJSON(t, srv, http.MethodPost, "/hcs10/audit-result", schemas.AuditResultHCS10{ConnectionID: 99})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/hcs10/request-approval", schemas.ApprovalRequest{ConnectionID: 99})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
