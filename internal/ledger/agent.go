package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/api/schemas"
	"github.com/chainsentry/chainsentry/internal/config"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const protocolID = "hcs-10"

// envelope is the standard HCS-10 message frame. The short field names are
// part of the wire format.
type envelope struct {
	Protocol  string `json:"p"`
	Op        string `json:"op"`
	Type      string `json:"type,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Connection is an open channel with another account, backed by a dedicated
// consensus topic.
type Connection struct {
	ID        int
	TopicID   string
	AccountID string
}

// Agent is the HCS-10 audit agent. It owns the inbound, outbound and metadata
// topics and a set of per-account connections. All methods are safe for
// concurrent use.
type Agent struct {
	cfg    config.LedgerConfig
	client Client
	logger *zap.Logger

	mu          sync.Mutex
	connections map[int]Connection
	nextConnID  int
}

// NewAgent constructs the agent over the given ledger client.
func NewAgent(cfg config.LedgerConfig, client Client, logger *zap.Logger) *Agent {
	return &Agent{
		cfg:         cfg,
		client:      client,
		logger:      logger.Named("ledger.agent"),
		connections: make(map[int]Connection),
	}
}

// Topics reports the agent's communication topics.
func (a *Agent) Topics() schemas.AgentTopicsResponse {
	return schemas.AgentTopicsResponse{
		InboundTopicID:  a.cfg.InboundTopicID,
		OutboundTopicID: a.cfg.OutboundTopicID,
		MetadataTopicID: a.cfg.MetadataTopicID,
	}
}

// CreateConnection opens a connection with the given account. A fresh topic
// is created for the connection and its id is announced on the inbound topic.
func (a *Agent) CreateConnection(ctx context.Context, accountID string) (Connection, error) {
	topicID, err := a.client.CreateTopic(ctx, fmt.Sprintf("%s connection with %s", a.cfg.AgentName, accountID))
	if err != nil {
		return Connection{}, fmt.Errorf("failed to create connection topic: %w", err)
	}

	a.mu.Lock()
	a.nextConnID++
	conn := Connection{
		ID:        a.nextConnID,
		TopicID:   topicID,
		AccountID: accountID,
	}
	a.connections[conn.ID] = conn
	a.mu.Unlock()

	if _, err := a.submit(ctx, a.cfg.InboundTopicID, "connection_created", map[string]any{
		"connection_id":       conn.ID,
		"connection_topic_id": conn.TopicID,
		"account_id":          conn.AccountID,
	}, "connection_created"); err != nil {
		a.logger.Warn("Failed to announce connection on inbound topic", zap.Error(err))
	}

	a.logger.Info("Created agent connection",
		zap.Int("connection_id", conn.ID),
		zap.String("topic_id", conn.TopicID),
		zap.String("account_id", conn.AccountID),
	)
	return conn, nil
}

// Connection looks up an open connection by id.
func (a *Agent) Connection(id int) (Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	conn, ok := a.connections[id]
	if !ok {
		return Connection{}, fmt.Errorf("connection %d not found", id)
	}
	return conn, nil
}

// SendAuditRequest publishes a contract audit request on a connection topic
// and returns the transaction id.
func (a *Agent) SendAuditRequest(ctx context.Context, connectionID int, code string, metadata schemas.ContractMetadata) (string, error) {
	conn, err := a.Connection(connectionID)
	if err != nil {
		return "", err
	}
	return a.submit(ctx, conn.TopicID, "audit_request", map[string]any{
		"contract_code":     code,
		"contract_metadata": metadata,
	}, "audit_request")
}

// SendAuditResult publishes a finished audit on a connection topic and
// returns the transaction id.
func (a *Agent) SendAuditResult(ctx context.Context, connectionID int, result schemas.AuditRecord, fileID string, nftID *string) (string, error) {
	conn, err := a.Connection(connectionID)
	if err != nil {
		return "", err
	}
	return a.submit(ctx, conn.TopicID, "audit_result", map[string]any{
		"audit_result": result,
		"file_id":      fileID,
		"nft_id":       nftID,
	}, "audit_result")
}

// RequestApproval schedules an NFT mint on a connection topic, to be approved
// by the connected account. It returns the schedule id.
func (a *Agent) RequestApproval(ctx context.Context, connectionID int, result schemas.AuditRecord, fileID string) (string, error) {
	conn, err := a.Connection(connectionID)
	if err != nil {
		return "", err
	}

	payload, err := jsonAPI.Marshal(map[string]any{
		"type": "mint_nft",
		"metadata": map[string]any{
			"contract":  result.ContractMetadata.Name,
			"score":     result.AuditScore,
			"file_id":   fileID,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal approval payload: %w", err)
	}

	memo := fmt.Sprintf("Approval requested for minting audit NFT with score %d", result.AuditScore)
	scheduleID, err := a.client.ScheduleTransaction(ctx, conn.TopicID, payload, memo)
	if err != nil {
		return "", fmt.Errorf("failed to schedule approval transaction: %w", err)
	}

	a.logger.Info("Requested mint approval",
		zap.Int("connection_id", connectionID),
		zap.String("schedule_id", scheduleID),
	)
	return scheduleID, nil
}

// StoreReport persists a rendered report on the ledger and returns its
// file id.
func (a *Agent) StoreReport(ctx context.Context, contents []byte) (string, error) {
	fileID, err := a.client.StoreFile(ctx, contents)
	if err != nil {
		return "", fmt.Errorf("failed to store report file: %w", err)
	}
	a.logger.Info("Stored audit report",
		zap.String("file_id", fileID),
		zap.Int("bytes", len(contents)),
	)
	return fileID, nil
}

// MintAuditNFT mints an NFT referencing a stored report and returns the
// token id.
func (a *Agent) MintAuditNFT(ctx context.Context, record schemas.AuditRecord, fileID string) (string, error) {
	metadata, err := jsonAPI.Marshal(map[string]any{
		"name":        fmt.Sprintf("Audit: %s", record.ContractMetadata.Name),
		"description": a.cfg.AgentDescription,
		"score":       record.AuditScore,
		"passed":      record.Passed,
		"file_id":     fileID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal NFT metadata: %w", err)
	}

	nftID, err := a.client.MintNFT(ctx, metadata)
	if err != nil {
		return "", fmt.Errorf("failed to mint audit NFT: %w", err)
	}
	a.logger.Info("Minted audit NFT",
		zap.String("nft_id", nftID),
		zap.Int("score", record.AuditScore),
	)
	return nftID, nil
}

// submit wraps data in an HCS-10 envelope and publishes it.
func (a *Agent) submit(ctx context.Context, topicID, msgType string, data any, memo string) (string, error) {
	msg, err := jsonAPI.Marshal(envelope{
		Protocol:  protocolID,
		Op:        "message",
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s envelope: %w", msgType, err)
	}

	txID, err := a.client.SubmitMessage(ctx, topicID, msg, memo)
	if err != nil {
		return "", fmt.Errorf("failed to submit %s message: %w", msgType, err)
	}

	a.logger.Debug("Submitted topic message",
		zap.String("topic_id", topicID),
		zap.String("type", msgType),
		zap.String("transaction_id", txID),
	)
	return txID, nil
}
