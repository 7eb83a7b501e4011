package catalog

import (
	"context"
	"fmt"

	"dinepick/internal/metrics"
	"dinepick/pkg/types"
)

// Static serves candidates from an in-memory list.
type Static struct {
	candidates []types.Candidate
}

// NewStatic creates a provider over candidates. A nil list uses the
// built-in restaurants.
func NewStatic(candidates []types.Candidate) *Static {
	if candidates == nil {
		candidates = seed
	}
	return &Static{candidates: clone(candidates)}
}

// Search implements interfaces.CandidateProvider.
func (s *Static) Search(ctx context.Context, query types.CandidateQuery) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		metrics.CatalogSearches.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamProvider, err)
	}
	metrics.CatalogSearches.WithLabelValues(metrics.ResultOK).Inc()
	return clone(Filter(s.candidates, query)), nil
}
