package catalog

import (
	"slices"
	"strings"

	"dinepick/pkg/types"
)

// Filter narrows candidates by query.
//
// A candidate matches the type filter when any requested type is a
// case-insensitive substring of any of its cuisine tags. The location filter
// matches the location label or the address. Each stage falls back to its
// input when nothing matches, so a query never yields an empty deck from a
// non-empty catalog.
func Filter(candidates []types.Candidate, query types.CandidateQuery) []types.Candidate {
	out := fallback(candidates, func(c types.Candidate) bool { return matchesTypes(c, query.Types) })
	return fallback(out, func(c types.Candidate) bool { return matchesLocation(c, query.Location) })
}

func fallback(in []types.Candidate, keep func(types.Candidate) bool) []types.Candidate {
	var out []types.Candidate
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return in
	}
	return out
}

func matchesTypes(c types.Candidate, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		for _, cuisine := range c.Cuisines {
			if strings.Contains(strings.ToLower(cuisine), w) {
				return true
			}
		}
	}
	return false
}

func matchesLocation(c types.Candidate, location string) bool {
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Location), location) ||
		strings.Contains(strings.ToLower(c.Address), location)
}

// normalize returns a stable cache key for a query.
func normalize(query types.CandidateQuery) string {
	parts := make([]string, 0, len(query.Types))
	for _, t := range query.Types {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			parts = append(parts, t)
		}
	}
	slices.Sort(parts)
	parts = slices.Compact(parts)
	return strings.Join(parts, ",") + "|" + strings.ToLower(strings.TrimSpace(query.Location))
}

func clone(candidates []types.Candidate) []types.Candidate {
	out := make([]types.Candidate, len(candidates))
	for i, c := range candidates {
		c.Cuisines = slices.Clone(c.Cuisines)
		out[i] = c
	}
	return out
}
