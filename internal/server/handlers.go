package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/api/schemas"
	"github.com/chainsentry/chainsentry/internal/scoring"
)

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "chainsentry",
		"status":  "running",
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// handleAnalyze runs the full audit pipeline: analyze, enrich, score. An
// enrichment failure degrades to the unenriched findings rather than failing
// the request.
func (s *Server) handleAnalyze(c echo.Context) error {
	var req schemas.AuditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ContractCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contract_code must not be empty")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.AuditTimeout)
	defer cancel()

	record := s.runAudit(ctx, req.ContractCode, req.ContractMetadata)
	return c.JSON(http.StatusOK, record)
}

// runAudit is the shared pipeline core behind /analyze and the HCS-10
// request processor.
func (s *Server) runAudit(ctx context.Context, code string, metadata schemas.ContractMetadata) *schemas.AuditRecord {
	auditID := uuid.New().String()
	if metadata.Hash == "" {
		metadata.Hash = sourceHash(code)
	}

	s.logger.Info("Starting audit",
		zap.String("audit_id", auditID),
		zap.String("contract", metadata.Name),
		zap.String("hash", metadata.Hash),
	)

	analysis := s.analyzer.Analyze(ctx, code, metadata.Language)

	vulns := analysis.Vulnerabilities
	enriched, err := s.enricher.Enrich(ctx, vulns, code)
	if err != nil {
		s.logger.Warn("Enrichment failed, returning unenriched findings",
			zap.String("contract", metadata.Name),
			zap.Error(err),
		)
	} else {
		vulns = enriched
	}

	record := &schemas.AuditRecord{
		ContractMetadata: metadata,
		Vulnerabilities:  vulns,
	}
	scoring.Apply(record)

	if s.store != nil {
		if err := s.store.SaveAudit(ctx, record); err != nil {
			s.logger.Warn("Failed to persist audit record",
				zap.String("hash", metadata.Hash),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Audit completed",
		zap.String("audit_id", auditID),
		zap.String("contract", metadata.Name),
		zap.Int("findings", len(record.Vulnerabilities)),
		zap.Int("score", record.AuditScore),
		zap.Bool("passed", record.Passed),
	)
	return record
}

func (s *Server) handleUploadContract(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing contract file")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot open uploaded file")
	}
	defer f.Close()

	code, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read uploaded file")
	}

	name := strings.TrimSuffix(fileHeader.Filename, ".sol")
	return c.JSON(http.StatusOK, schemas.UploadResponse{
		ContractCode: string(code),
		ContractMetadata: schemas.ContractMetadata{
			Name:     name,
			Language: "solidity",
			Hash:     sourceHash(string(code)),
		},
	})
}

// handleGenerateReport renders the audit PDF, stores it on the ledger and
// mints an NFT for passing audits.
func (s *Server) handleGenerateReport(c echo.Context) error {
	var req schemas.ReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pdf, err := s.renderer.Render(&req.AuditData)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("report rendering failed: %v", err))
	}

	ctx := c.Request().Context()
	fileID, err := s.agent.StoreReport(ctx, pdf)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("report storage failed: %v", err))
	}

	var nftID *string
	if req.AuditData.Passed {
		id, err := s.agent.MintAuditNFT(ctx, req.AuditData, fileID)
		if err != nil {
			s.logger.Warn("Failed to mint audit NFT", zap.Error(err))
		} else {
			nftID = &id
		}
	}

	return c.JSON(http.StatusOK, schemas.ReportResponse{
		FileID:  fileID,
		NFTID:   nftID,
		ViewURL: fmt.Sprintf("https://hashscan.io/%s/file/%s", s.network, fileID),
	})
}

// -- HCS-10 handlers --

func (s *Server) handleTopics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.agent.Topics())
}

func (s *Server) handleCreateConnection(c echo.Context) error {
	var req schemas.ConnectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AccountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id must not be empty")
	}

	conn, err := s.agent.CreateConnection(c.Request().Context(), req.AccountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("connection failed: %v", err))
	}

	return c.JSON(http.StatusOK, schemas.ConnectionResponse{
		ConnectionID:       conn.ID,
		ConnectionTopicID:  conn.TopicID,
		ConnectedAccountID: conn.AccountID,
	})
}

// handleAuditRequest publishes the request on the connection topic and kicks
// off the audit in the background. The result is delivered over the same
// connection when the pipeline finishes.
func (s *Server) handleAuditRequest(c echo.Context) error {
	var req schemas.AuditRequestHCS10
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ContractCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contract_code must not be empty")
	}
	if _, err := s.agent.Connection(req.ConnectionID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	txID, err := s.agent.SendAuditRequest(c.Request().Context(), req.ConnectionID, req.ContractCode, req.ContractMetadata)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("audit request failed: %v", err))
	}

	go s.processAuditRequest(req)

	return c.JSON(http.StatusAccepted, map[string]string{
		"status":         "processing",
		"transaction_id": txID,
	})
}

// processAuditRequest runs the pipeline for an HCS-10 request and publishes
// the result back on the connection topic.
func (s *Server) processAuditRequest(req schemas.AuditRequestHCS10) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AuditTimeout)
	defer cancel()

	record := s.runAudit(ctx, req.ContractCode, req.ContractMetadata)

	pdf, err := s.renderer.Render(record)
	if err != nil {
		s.logger.Error("Failed to render report for connection audit", zap.Error(err))
		return
	}
	fileID, err := s.agent.StoreReport(ctx, pdf)
	if err != nil {
		s.logger.Error("Failed to store report for connection audit", zap.Error(err))
		return
	}

	var nftID *string
	if record.Passed {
		if id, err := s.agent.MintAuditNFT(ctx, *record, fileID); err != nil {
			s.logger.Warn("Failed to mint audit NFT for connection audit", zap.Error(err))
		} else {
			nftID = &id
		}
	}

	if _, err := s.agent.SendAuditResult(ctx, req.ConnectionID, *record, fileID, nftID); err != nil {
		s.logger.Error("Failed to publish audit result",
			zap.Int("connection_id", req.ConnectionID),
			zap.Error(err),
		)
	}
}

func (s *Server) handleAuditResult(c echo.Context) error {
	var req schemas.AuditResultHCS10
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	txID, err := s.agent.SendAuditResult(c.Request().Context(), req.ConnectionID, req.AuditResult, req.FileID, req.NFTID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"transaction_id": txID})
}

func (s *Server) handleRequestApproval(c echo.Context) error {
	var req schemas.ApprovalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	scheduleID, err := s.agent.RequestApproval(c.Request().Context(), req.ConnectionID, req.AuditResult, req.FileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"schedule_id": scheduleID})
}

// sourceHash is the canonical contract identity: SHA-256 over the exact
// source bytes.
func sourceHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
