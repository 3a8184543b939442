// Package ledger implements the HCS-10 agent layer: audit requests and
// results exchanged as JSON envelopes over Hedera consensus topics, plus
// report file storage and audit NFT minting.
package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Client abstracts the ledger operations the agent needs. The pipeline
// treats every returned identifier as opaque.
type Client interface {
	// CreateTopic creates a consensus topic and returns its id.
	CreateTopic(ctx context.Context, memo string) (string, error)
	// SubmitMessage publishes a message to a topic and returns the
	// transaction id.
	SubmitMessage(ctx context.Context, topicID string, message []byte, memo string) (string, error)
	// StoreFile persists a binary document on the ledger and returns its
	// file id.
	StoreFile(ctx context.Context, contents []byte) (string, error)
	// MintNFT mints an audit NFT with the given metadata and returns the
	// token id.
	MintNFT(ctx context.Context, metadata []byte) (string, error)
	// ScheduleTransaction creates a scheduled transaction awaiting approval
	// and returns the schedule id.
	ScheduleTransaction(ctx context.Context, topicID string, payload []byte, memo string) (string, error)
}

// -- In-memory client --

// MemoryClient is the default transport: it records every operation locally
// and issues deterministic mock identifiers. It stands in for the real
// network on development setups and in tests.
type MemoryClient struct {
	mu       sync.Mutex
	seq      int
	Messages map[string][][]byte
	Files    map[string][]byte
}

// NewMemoryClient constructs an empty in-memory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		Messages: make(map[string][][]byte),
		Files:    make(map[string][]byte),
	}
}

func (m *MemoryClient) next() int {
	m.seq++
	return m.seq
}

func (m *MemoryClient) CreateTopic(ctx context.Context, memo string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("0.0.%d", 7000000+m.next()), nil
}

func (m *MemoryClient) SubmitMessage(ctx context.Context, topicID string, message []byte, memo string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages[topicID] = append(m.Messages[topicID], message)
	n := m.next()
	return fmt.Sprintf("0.0.%d@%d.%d00000", n, time.Now().Unix(), n), nil
}

func (m *MemoryClient) StoreFile(ctx context.Context, contents []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fileID := fmt.Sprintf("0.0.%d", 8000000+m.next())
	m.Files[fileID] = contents
	return fileID, nil
}

func (m *MemoryClient) MintNFT(ctx context.Context, metadata []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("0.0.%d", 9000000+m.next()), nil
}

func (m *MemoryClient) ScheduleTransaction(ctx context.Context, topicID string, payload []byte, memo string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages[topicID] = append(m.Messages[topicID], payload)
	return fmt.Sprintf("0.0.%d", 6000000+m.next()), nil
}

// -- HTTP relay client --

// RelayClient talks to an HTTP relay service that signs and submits ledger
// transactions on the agent's behalf. Transient relay failures are retried
// with exponential backoff.
type RelayClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRelayClient constructs a client for the given relay endpoint.
func NewRelayClient(endpoint string, logger *zap.Logger) *RelayClient {
	return &RelayClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Named("ledger.relay"),
	}
}

func (c *RelayClient) CreateTopic(ctx context.Context, memo string) (string, error) {
	return c.post(ctx, "/v1/topics", map[string]any{"memo": memo}, "topic_id")
}

func (c *RelayClient) SubmitMessage(ctx context.Context, topicID string, message []byte, memo string) (string, error) {
	return c.post(ctx, fmt.Sprintf("/v1/topics/%s/messages", topicID), map[string]any{
		"message": json.RawMessage(message),
		"memo":    memo,
	}, "transaction_id")
}

func (c *RelayClient) StoreFile(ctx context.Context, contents []byte) (string, error) {
	return c.post(ctx, "/v1/files", map[string]any{
		"contents": base64.StdEncoding.EncodeToString(contents),
	}, "file_id")
}

func (c *RelayClient) MintNFT(ctx context.Context, metadata []byte) (string, error) {
	return c.post(ctx, "/v1/nfts", map[string]any{
		"metadata": json.RawMessage(metadata),
	}, "nft_id")
}

func (c *RelayClient) ScheduleTransaction(ctx context.Context, topicID string, payload []byte, memo string) (string, error) {
	return c.post(ctx, "/v1/schedules", map[string]any{
		"topic_id": topicID,
		"payload":  json.RawMessage(payload),
		"memo":     memo,
	}, "schedule_id")
}

// post sends a JSON body to the relay and extracts the identifier field from
// the response.
func (c *RelayClient) post(ctx context.Context, path string, body map[string]any, idField string) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal relay payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 1 * time.Minute
	b.MaxInterval = 10 * time.Second

	var id string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create relay request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("Network error during relay request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute relay request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read relay response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("relay error: status %d, body: %s", resp.StatusCode, string(respBody))
		default:
			return backoff.Permanent(fmt.Errorf("relay error: status %d, body: %s", resp.StatusCode, string(respBody)))
		}

		var decoded map[string]string
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode relay response: %w", err))
		}
		if decoded[idField] == "" {
			return backoff.Permanent(fmt.Errorf("relay response missing %q", idField))
		}
		id = decoded[idField]
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return id, nil
}
