package enrich

import (
	"context"

	"github.com/chainsentry/chainsentry/api/schemas"
)

// Passthrough is the enricher used when no model backend is configured. It
// returns the findings untouched.
type Passthrough struct{}

func (Passthrough) Enrich(ctx context.Context, vulns []schemas.Vulnerability, source string) ([]schemas.Vulnerability, error) {
	return vulns, nil
}
