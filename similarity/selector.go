package similarity

import (
	"sort"

	"fixmycity-be/models"
)

// Candidate pairs an eligible issue with its similarity verdict. Candidates
// live only for the duration of one request.
type Candidate struct {
	Issue          models.Issue
	Score          float64
	MatchedOnTitle bool
	MatchedOnGeo   bool
}

// SelectDuplicates filters scored candidates to those at or above the
// threshold, orders them by score descending with ties broken by the more
// recent dateOfComplaint, and caps the result at MaxResults. An empty result
// means "no duplicate, proceed to create".
func (c Config) SelectDuplicates(candidates []Candidate) []Candidate {
	selected := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Score >= c.Threshold {
			selected = append(selected, cand)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Score != selected[j].Score {
			return selected[i].Score > selected[j].Score
		}
		return selected[i].Issue.DateOfComplaint.After(selected[j].Issue.DateOfComplaint)
	})

	if len(selected) > c.MaxResults {
		selected = selected[:c.MaxResults]
	}
	return selected
}
