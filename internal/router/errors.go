package router

import (
	"errors"
	"fmt"

	"dinepick/pkg/types"
)

// Router-specific error types
var (
	ErrMalformedEvent    = fmt.Errorf("%w: malformed event", types.ErrInvalidPayload)
	ErrUnknownEvent      = fmt.Errorf("%w: unknown event", types.ErrInvalidPayload)
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// CodeRateLimited is the wire code for a rejected burst.
const CodeRateLimited = "rate_limited"
