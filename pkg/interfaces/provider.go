package interfaces

import (
	"context"

	"dinepick/pkg/types"
)

// CandidateProvider produces the candidates a session votes on.
type CandidateProvider interface {
	// Search returns candidates matching the query. Failures wrap
	// ErrUpstreamProvider.
	Search(ctx context.Context, query types.CandidateQuery) ([]types.Candidate, error)
}

// HealthChecker is implemented by providers with an external dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
