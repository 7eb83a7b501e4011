package session

import (
	"slices"
	"sort"

	"dinepick/pkg/types"
)

// ComputeOutcome ranks every candidate by score, highest first.
// Candidates without votes get a zero tally. Ties keep candidate order.
// Votes for ids outside candidates are ignored.
func ComputeOutcome(candidates []types.Candidate, votes map[string]types.Tally) types.Outcome {
	outcome := make(types.Outcome, 0, len(candidates))
	for _, c := range candidates {
		c.Cuisines = slices.Clone(c.Cuisines)
		tally := votes[c.ID]
		outcome = append(outcome, types.OutcomeEntry{
			Candidate: c,
			Votes:     tally,
			Score:     tally.Score(),
		})
	}

	sort.SliceStable(outcome, func(i, j int) bool {
		return outcome[i].Score > outcome[j].Score
	})
	return outcome
}

func cloneOutcome(o types.Outcome) types.Outcome {
	out := make(types.Outcome, len(o))
	for i, entry := range o {
		entry.Cuisines = slices.Clone(entry.Cuisines)
		out[i] = entry
	}
	return out
}
