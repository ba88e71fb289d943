package usecase

import (
	"sort"

	"answer-engine/internal/domain"
)

// DefaultTopK is how many results are forwarded to the completion gateway.
const DefaultTopK = 5

// SelectTop returns the k highest scoring results, missing scores counting as
// 0. Equal scores keep their original order. The input is not modified.
func SelectTop(results []domain.Result, k int) []domain.Result {
	if k <= 0 {
		k = DefaultTopK
	}
	ranked := make([]domain.Result, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ScoreOrZero() > ranked[j].ScoreOrZero()
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
