// Package rank orders scored candidates and applies the acceptance threshold.
package rank

import (
	"sort"

	"github.com/ppiankov/qidlink/internal/model"
)

// Rank sorts candidates by confidence descending and returns those at or
// above the threshold alongside the full ordering. Equal confidences keep
// the order the search endpoint returned them in. The input is not modified.
func Rank(scored []model.ScoredCandidate, threshold float64) (accepted, all []model.ScoredCandidate) {
	all = make([]model.ScoredCandidate, len(scored))
	copy(all, scored)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Confidence > all[j].Confidence
	})

	accepted = make([]model.ScoredCandidate, 0, len(all))
	for _, c := range all {
		if c.Confidence >= threshold {
			accepted = append(accepted, c)
		}
	}

	return accepted, all
}

// Top returns at most n leading candidates of a ranked list
func Top(ranked []model.ScoredCandidate, n int) []model.ScoredCandidate {
	if n <= 0 {
		return []model.ScoredCandidate{}
	}
	if len(ranked) < n {
		n = len(ranked)
	}
	top := make([]model.ScoredCandidate, n)
	copy(top, ranked[:n])
	return top
}
