package catalog

import (
	"errors"

	"dinepick/pkg/interfaces"
)

// Catalog errors
var (
	// ErrUpstreamProvider is returned, wrapped, by every failed Search.
	ErrUpstreamProvider = interfaces.ErrUpstreamProvider
	ErrUnknownDriver    = errors.New("unknown catalog driver")
)
