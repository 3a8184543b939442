// Package server exposes the audit pipeline over a REST API.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainsentry/chainsentry/api/schemas"
	"github.com/chainsentry/chainsentry/internal/config"
	"github.com/chainsentry/chainsentry/internal/ledger"
)

// Server wires the pipeline components behind HTTP handlers. Every
// dependency is injected; store may be nil, which disables persistence.
type Server struct {
	cfg      config.ServerConfig
	network  string
	echo     *echo.Echo
	logger   *zap.Logger
	analyzer schemas.ContractAnalyzer
	enricher schemas.Enricher
	renderer schemas.ReportRenderer
	agent    *ledger.Agent
	store    schemas.AuditStore
}

// New constructs the server and registers its routes.
func New(
	cfg config.ServerConfig,
	network string,
	analyzer schemas.ContractAnalyzer,
	enricher schemas.Enricher,
	renderer schemas.ReportRenderer,
	agent *ledger.Agent,
	store schemas.AuditStore,
	logger *zap.Logger,
) *Server {
	s := &Server{
		cfg:      cfg,
		network:  network,
		echo:     echo.New(),
		logger:   logger.Named("server"),
		analyzer: analyzer,
		enricher: enricher,
		renderer: renderer,
		agent:    agent,
		store:    store,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/analyze", s.handleAnalyze)
	s.echo.POST("/upload-contract", s.handleUploadContract)
	s.echo.POST("/generate-report", s.handleGenerateReport)

	hcs := s.echo.Group("/hcs10")
	hcs.GET("/topics", s.handleTopics)
	hcs.POST("/connections", s.handleCreateConnection)
	hcs.POST("/audit-request", s.handleAuditRequest)
	hcs.POST("/audit-result", s.handleAuditResult)
	hcs.POST("/request-approval", s.handleRequestApproval)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				s.logger.Warn("Request failed", fields...)
				return nil
			}
			s.logger.Info("Request handled", fields...)
			return nil
		},
	})
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting API server", zap.String("address", s.cfg.Address))
		if err := s.echo.Start(s.cfg.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down API server")
		return s.echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Handler exposes the echo instance for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
