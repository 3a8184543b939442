// Package analyzer adapts the external Slither CLI into a normalized,
// failure-absorbing static-analysis step, and layers deterministic
// Hedera-specific textual checks on top of it.
package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/api/schemas"
	"github.com/chainsentry/chainsentry/internal/config"
)

// Slither shells out to the Slither static analyzer. It is total: Analyze
// absorbs every external failure mode (missing binary, timeout, malformed
// output) and always returns a usable result, so an analyzer outage can never
// take down an audit.
type Slither struct {
	cfg    config.AnalyzerConfig
	logger *zap.Logger
}

// NewSlither constructs the adapter.
func NewSlither(cfg config.AnalyzerConfig, logger *zap.Logger) *Slither {
	return &Slither{
		cfg:    cfg,
		logger: logger.Named("analyzer.slither"),
	}
}

// Analyze writes the contract source to a uniquely named temporary file, runs
// Slither against it with a bounded timeout, normalizes whatever output came
// back, and appends the Hedera rule findings. The temporary file is removed
// on every exit path.
//
// The language argument is informational; only the Solidity family is
// materially supported.
func (s *Slither) Analyze(ctx context.Context, source, language string) *schemas.AnalysisResult {
	result := &schemas.AnalysisResult{
		Vulnerabilities: []schemas.Vulnerability{},
		ContractMetrics: schemas.ContractMetrics{
			Complexity: defaultComplexity,
			LOC:        countLines(source),
		},
	}

	s.logger.Info("Analyzing contract",
		zap.Int("source_bytes", len(source)),
		zap.String("language", language),
	)

	if vulns, metrics, ok := s.runSlither(ctx, source); ok {
		result.Vulnerabilities = vulns
		if metrics.Complexity > 0 {
			result.ContractMetrics.Complexity = metrics.Complexity
		}
	}

	// Platform rules run regardless of analyzer availability and always come
	// after the analyzer findings.
	result.Vulnerabilities = append(result.Vulnerabilities, checkHederaRules(source)...)

	s.logger.Info("Analysis complete",
		zap.Int("vulnerabilities", len(result.Vulnerabilities)),
		zap.Int("loc", result.ContractMetrics.LOC),
	)
	return result
}

// runSlither performs the subprocess invocation and parse. ok is false when
// no analyzer findings could be obtained for any reason.
func (s *Slither) runSlither(ctx context.Context, source string) ([]schemas.Vulnerability, slitherMetrics, bool) {
	tmp, err := os.CreateTemp("", "contract-*.sol")
	if err != nil {
		s.logger.Error("Failed to create temporary contract file", zap.Error(err))
		return nil, slitherMetrics{}, false
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		s.logger.Error("Failed to write temporary contract file", zap.Error(err))
		return nil, slitherMetrics{}, false
	}
	if err := tmp.Close(); err != nil {
		s.logger.Error("Failed to close temporary contract file", zap.Error(err))
		return nil, slitherMetrics{}, false
	}

	args := []string{tmpPath}
	for _, detector := range s.cfg.Detectors {
		args = append(args, "--detect", detector)
	}
	args = append(args, "--json", "-")

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	// Run in the temp file's directory so relative imports resolve.
	res := run(runCtx, s.cfg.Binary, args, filepath.Dir(tmpPath))

	s.logger.Debug("Analyzer subprocess finished",
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
		zap.Int("stdout_bytes", len(res.Stdout)),
	)

	switch {
	case res.ExitCode == exitNotFound:
		s.logger.Warn("Analyzer binary not found, falling back to platform rules only",
			zap.String("binary", s.cfg.Binary))
		return nil, slitherMetrics{}, false
	case res.ExitCode == exitTimeout:
		s.logger.Error("Analyzer timed out", zap.Duration("timeout", s.cfg.Timeout))
		return nil, slitherMetrics{}, false
	case strings.TrimSpace(res.Stdout) == "":
		if res.ExitCode != 0 {
			s.logger.Error("Analyzer failed with no output",
				zap.Int("exit_code", res.ExitCode),
				zap.String("stderr", res.Stderr))
		}
		return nil, slitherMetrics{}, false
	}

	// Slither exits non-zero whenever findings exist, so a non-zero exit with
	// output is still parsed.
	vulns, metrics, err := parseOutput(res.Stdout)
	if err != nil {
		s.logger.Error("Failed to parse analyzer output", zap.Error(err))
		return nil, slitherMetrics{}, false
	}
	return vulns, metrics, true
}

// countLines counts newline-delimited lines the way a text editor would: a
// trailing newline does not start an extra line and the empty string has
// zero lines.
func countLines(source string) int {
	if source == "" {
		return 0
	}
	n := strings.Count(source, "\n")
	if !strings.HasSuffix(source, "\n") {
		n++
	}
	return n
}
