package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/api/schemas"
	"github.com/chainsentry/chainsentry/internal/analyzer"
	"github.com/chainsentry/chainsentry/internal/config"
	"github.com/chainsentry/chainsentry/internal/enrich"
	"github.com/chainsentry/chainsentry/internal/ledger"
	"github.com/chainsentry/chainsentry/internal/llmclient"
	"github.com/chainsentry/chainsentry/internal/observability"
	"github.com/chainsentry/chainsentry/internal/report"
	"github.com/chainsentry/chainsentry/internal/server"
	"github.com/chainsentry/chainsentry/internal/store"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the audit API server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.address", cmd.Flags().Lookup("address")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			components, err := initializeServerComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize server components: %w", err)
			}
			defer components.Shutdown()

			srv := server.New(
				cfg.Server,
				cfg.Ledger.Network,
				components.Analyzer,
				components.Enricher,
				components.Renderer,
				components.Agent,
				components.Store,
				logger,
			)
			return srv.Start(ctx)
		},
	}

	serveCmd.Flags().StringP("address", "a", "", "Listen address for the API server. (Overrides config/env)")
	return serveCmd
}

// serverComponents holds initialized services.
type serverComponents struct {
	LLM      schemas.LLMClient
	Analyzer schemas.ContractAnalyzer
	Enricher schemas.Enricher
	Renderer schemas.ReportRenderer
	Agent    *ledger.Agent
	Store    schemas.AuditStore
	pgStore  *store.PostgresStore
	logger   *zap.Logger
}

// Shutdown gracefully closes all components.
func (sc *serverComponents) Shutdown() {
	if sc.LLM != nil {
		if err := sc.LLM.Close(); err != nil {
			sc.logger.Warn("Error closing LLM client", zap.Error(err))
		}
	}
	if sc.pgStore != nil {
		sc.pgStore.Close()
	}
}

// initializeServerComponents handles dependency injection.
func initializeServerComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*serverComponents, error) {
	components := &serverComponents{logger: logger}

	// 1. Analyzer and renderer.
	components.Analyzer = analyzer.NewSlither(cfg.Analyzer, logger)
	components.Renderer = report.NewPDFGenerator(cfg.Report, logger)

	// 2. Enrichment. Without an API key the service still audits, it just
	// returns unenriched findings.
	if cfg.LLM.APIKey == "" {
		logger.Warn("No LLM API key configured, enrichment disabled (set CHAINSENTRY_LLM_API_KEY)")
		components.Enricher = enrich.Passthrough{}
	} else {
		llm, err := llmclient.NewClient(cfg.LLM, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize LLM client: %w", err)
		}
		components.LLM = llm
		components.Enricher = enrich.NewPipeline(llm, cfg.LLM.RequestsPerSecond, logger)
	}

	// 3. Ledger agent.
	var client ledger.Client
	if cfg.Ledger.RelayEndpoint != "" {
		client = ledger.NewRelayClient(cfg.Ledger.RelayEndpoint, logger)
	} else {
		logger.Info("No ledger relay configured, using in-memory ledger client")
		client = ledger.NewMemoryClient()
	}
	components.Agent = ledger.NewAgent(cfg.Ledger, client, logger)

	// 4. Audit store (optional).
	if cfg.Database.URL != "" {
		pg, err := store.Connect(ctx, cfg.Database.URL, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize audit store: %w", err)
		}
		components.pgStore = pg
		components.Store = pg
	} else {
		logger.Info("No database configured, audit persistence disabled")
	}

	return components, nil
}
