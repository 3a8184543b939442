// Package store persists finished audit records in PostgreSQL, keyed by the
// contract source hash.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/api/schemas"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when no audit exists for the requested hash.
var ErrNotFound = errors.New("audit record not found")

// PgxIface is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements schemas.AuditStore on a pgx connection pool.
type PostgresStore struct {
	db     PgxIface
	logger *zap.Logger
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(db PgxIface, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.Named("store.postgres"),
	}
}

// Connect opens a pool for the given URL, verifies it, and ensures the audit
// table exists.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresStore(pool, logger)
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audits (
			contract_hash   TEXT PRIMARY KEY,
			contract_name   TEXT NOT NULL,
			language        TEXT NOT NULL,
			vulnerabilities JSONB NOT NULL,
			audit_score     INT NOT NULL,
			passed          BOOLEAN NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure audits table: %w", err)
	}
	return nil
}

// SaveAudit upserts a record by contract hash. Re-auditing the same source
// replaces the stored findings and score.
func (s *PostgresStore) SaveAudit(ctx context.Context, record *schemas.AuditRecord) error {
	if record.ContractMetadata.Hash == "" {
		return fmt.Errorf("cannot save audit without a contract hash")
	}

	vulns, err := jsonAPI.Marshal(record.Vulnerabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal vulnerabilities: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO audits (contract_hash, contract_name, language, vulnerabilities, audit_score, passed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contract_hash) DO UPDATE SET
			contract_name   = EXCLUDED.contract_name,
			language        = EXCLUDED.language,
			vulnerabilities = EXCLUDED.vulnerabilities,
			audit_score     = EXCLUDED.audit_score,
			passed          = EXCLUDED.passed,
			updated_at      = now()`,
		record.ContractMetadata.Hash,
		record.ContractMetadata.Name,
		record.ContractMetadata.Language,
		vulns,
		record.AuditScore,
		record.Passed,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}

	s.logger.Debug("Saved audit record",
		zap.String("hash", record.ContractMetadata.Hash),
		zap.Int("score", record.AuditScore),
	)
	return nil
}

// GetAuditByHash loads the stored record for a contract hash, or ErrNotFound.
func (s *PostgresStore) GetAuditByHash(ctx context.Context, hash string) (*schemas.AuditRecord, error) {
	var (
		record schemas.AuditRecord
		vulns  []byte
	)
	record.ContractMetadata.Hash = hash

	err := s.db.QueryRow(ctx, `
		SELECT contract_name, language, vulnerabilities, audit_score, passed
		FROM audits WHERE contract_hash = $1`, hash,
	).Scan(
		&record.ContractMetadata.Name,
		&record.ContractMetadata.Language,
		&vulns,
		&record.AuditScore,
		&record.Passed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load audit record: %w", err)
	}

	if err := jsonAPI.Unmarshal(vulns, &record.Vulnerabilities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vulnerabilities: %w", err)
	}
	return &record, nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}
