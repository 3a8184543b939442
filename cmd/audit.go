package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/api/schemas"
	"github.com/chainsentry/chainsentry/internal/analyzer"
	"github.com/chainsentry/chainsentry/internal/config"
	"github.com/chainsentry/chainsentry/internal/enrich"
	"github.com/chainsentry/chainsentry/internal/llmclient"
	"github.com/chainsentry/chainsentry/internal/observability"
	"github.com/chainsentry/chainsentry/internal/report"
	"github.com/chainsentry/chainsentry/internal/scoring"
)

// newAuditCmd creates the one-shot `audit` command: analyze a contract file
// and print the audit record without running the server.
func newAuditCmd() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit [contract file]",
		Short: "Audits a single contract file and prints the result as JSON",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			path := args[0]
			source, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read contract file: %w", err)
			}

			code := string(source)
			sum := sha256.Sum256(source)
			metadata := schemas.ContractMetadata{
				Name:     strings.TrimSuffix(filepath.Base(path), ".sol"),
				Language: "solidity",
				Hash:     hex.EncodeToString(sum[:]),
			}

			slither := analyzer.NewSlither(cfg.Analyzer, logger)
			analysis := slither.Analyze(ctx, code, metadata.Language)
			vulns := analysis.Vulnerabilities

			if viper.GetBool("enrich") {
				enriched, err := enrichFindings(ctx, cfg, logger, vulns, code)
				if err != nil {
					logger.Warn("Enrichment failed, printing unenriched findings", zap.Error(err))
				} else {
					vulns = enriched
				}
			}

			record := &schemas.AuditRecord{
				ContractMetadata: metadata,
				Vulnerabilities:  vulns,
			}
			scoring.Apply(record)

			if out := viper.GetString("report"); out != "" {
				renderer := report.NewPDFGenerator(cfg.Report, logger)
				pdf, err := renderer.Render(record)
				if err != nil {
					return fmt.Errorf("failed to render report: %w", err)
				}
				if err := os.WriteFile(out, pdf, 0o644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				logger.Info("Wrote PDF report", zap.String("path", out))
			}

			encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(record, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode audit record: %w", err)
			}
			fmt.Println(string(encoded))

			if !record.Passed {
				return fmt.Errorf("audit failed with score %d", record.AuditScore)
			}
			return nil
		},
	}

	auditCmd.Flags().Bool("enrich", false, "Run LLM enrichment on the findings (requires CHAINSENTRY_LLM_API_KEY)")
	auditCmd.Flags().String("report", "", "Write a PDF report to this path")
	return auditCmd
}

// enrichFindings builds a short-lived LLM client and runs the enrichment
// pipeline over the findings.
func enrichFindings(ctx context.Context, cfg *config.Config, logger *zap.Logger, vulns []schemas.Vulnerability, code string) ([]schemas.Vulnerability, error) {
	llm, err := llmclient.NewClient(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	defer llm.Close()

	pipeline := enrich.NewPipeline(llm, cfg.LLM.RequestsPerSecond, logger)
	return pipeline.Enrich(ctx, vulns, code)
}
