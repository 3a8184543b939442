// Package enrich runs the vulnerability enrichment workflow: a strictly
// sequential explain -> fix -> test -> compile pipeline that attaches
// model-generated content to each finding.
package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainsentry/chainsentry/api/schemas"
)

// Pipeline implements schemas.Enricher on top of an LLM client. One pipeline
// invocation issues exactly one model call per vulnerability per generation
// stage, with no concurrency and no retries of its own: a failed model call
// aborts the run and the caller decides whether to fall back to the
// unenriched findings.
type Pipeline struct {
	llm     schemas.LLMClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewPipeline constructs the enrichment pipeline. requestsPerSecond bounds
// the model call rate; zero or negative disables the limiter.
func NewPipeline(llm schemas.LLMClient, requestsPerSecond float64, logger *zap.Logger) *Pipeline {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &Pipeline{
		llm:     llm,
		limiter: limiter,
		logger:  logger.Named("enrich"),
	}
}

// stageResult pairs one generated text with the vulnerability it belongs to.
type stageResult struct {
	id   string
	text string
}

// state is the record threaded through the pipeline stages. Each generation
// stage appends to exactly one of the side lists; compile merges them back
// onto the vulnerabilities by id.
type state struct {
	vulns        []schemas.Vulnerability
	source       string
	explanations []stageResult
	fixes        []stageResult
	testCases    []stageResult
}

// Enrich runs the full workflow over the vulnerability list. An empty list
// short-circuits immediately with zero model calls.
func (p *Pipeline) Enrich(ctx context.Context, vulns []schemas.Vulnerability, source string) ([]schemas.Vulnerability, error) {
	if len(vulns) == 0 {
		return []schemas.Vulnerability{}, nil
	}

	st := &state{vulns: vulns, source: source}

	stages := []struct {
		name string
		run  func(context.Context, *state) error
	}{
		{"explain", p.explain},
		{"fix", p.fix},
		{"test", p.test},
	}

	for _, stage := range stages {
		p.logger.Debug("Running enrichment stage",
			zap.String("stage", stage.name),
			zap.Int("vulnerabilities", len(st.vulns)),
		)
		if err := stage.run(ctx, st); err != nil {
			return nil, fmt.Errorf("enrichment stage %q failed: %w", stage.name, err)
		}
	}

	return compile(st), nil
}

func (p *Pipeline) explain(ctx context.Context, st *state) error {
	for _, v := range st.vulns {
		text, err := p.generate(ctx, explainPrompt(v), explainOptions)
		if err != nil {
			return err
		}
		st.explanations = append(st.explanations, stageResult{id: v.ID, text: text})
	}
	return nil
}

func (p *Pipeline) fix(ctx context.Context, st *state) error {
	for _, v := range st.vulns {
		text, err := p.generate(ctx, fixPrompt(v), fixOptions)
		if err != nil {
			return err
		}
		st.fixes = append(st.fixes, stageResult{id: v.ID, text: text})
	}
	return nil
}

func (p *Pipeline) test(ctx context.Context, st *state) error {
	for _, v := range st.vulns {
		text, err := p.generate(ctx, testPrompt(v), testOptions)
		if err != nil {
			return err
		}
		st.testCases = append(st.testCases, stageResult{id: v.ID, text: text})
	}
	return nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string, opts schemas.GenerationOptions) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return p.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Options:      opts,
	})
}

// compile merges the side lists back onto the original vulnerabilities by
// id. Lookups that find nothing leave the field nil; duplicate ids resolve
// to the first match. Emission order is preserved.
func compile(st *state) []schemas.Vulnerability {
	results := make([]schemas.Vulnerability, 0, len(st.vulns))
	for _, v := range st.vulns {
		v.Explanation = lookup(st.explanations, v.ID)
		v.FixedCode = lookup(st.fixes, v.ID)
		v.TestCase = lookup(st.testCases, v.ID)
		results = append(results, v)
	}
	return results
}

func lookup(results []stageResult, id string) *string {
	for _, r := range results {
		if r.id == id {
			text := r.text
			return &text
		}
	}
	return nil
}
