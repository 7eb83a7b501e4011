package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrUpstreamProvider = errors.New("candidate provider failed")
)
