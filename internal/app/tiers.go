package app

import (
	"fmt"
	"sort"

	"ambient-quiz-service/internal/domain"
)

// TierTable maps a score to its achievement tier. Its ranges are checked to
// partition [0, maxScore] when the table is built, so Lookup never falls through.
type TierTable struct {
	tiers    []domain.Tier
	maxScore int
}

// NewTierTable validates tiers against a quiz of questionCount questions.
func NewTierTable(tiers []domain.Tier, questionCount int) (*TierTable, error) {
	if questionCount < 0 {
		return nil, fmt.Errorf("%w: negative question count %d", domain.ErrTierTable, questionCount)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", domain.ErrTierTable)
	}

	sorted := append([]domain.Tier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinScore < sorted[j].MinScore })

	next := 0
	for _, tier := range sorted {
		if tier.Name == "" {
			return nil, fmt.Errorf("%w: tier starting at %d has no name", domain.ErrTierTable, tier.MinScore)
		}
		if tier.MinScore > tier.MaxScore {
			return nil, fmt.Errorf("%w: %q has min %d above max %d", domain.ErrTierTable, tier.Name, tier.MinScore, tier.MaxScore)
		}
		if tier.MinScore < next {
			return nil, fmt.Errorf("%w: %q overlaps at score %d", domain.ErrTierTable, tier.Name, tier.MinScore)
		}
		if tier.MinScore > next {
			return nil, fmt.Errorf("%w: no tier covers scores %d-%d", domain.ErrTierTable, next, tier.MinScore-1)
		}
		next = tier.MaxScore + 1
	}
	if next != questionCount+1 {
		return nil, fmt.Errorf("%w: tiers end at %d, want %d", domain.ErrTierTable, next-1, questionCount)
	}

	return &TierTable{tiers: sorted, maxScore: questionCount}, nil
}

// Lookup returns the single tier whose range contains score.
func (t *TierTable) Lookup(score int) (domain.Tier, error) {
	if score < 0 || score > t.maxScore {
		return domain.Tier{}, &domain.ValidationError{Field: "score", Reason: fmt.Sprintf("%d outside [0, %d]", score, t.maxScore)}
	}
	i := sort.Search(len(t.tiers), func(i int) bool { return t.tiers[i].MaxScore >= score })
	return t.tiers[i], nil
}

// Tiers returns the table in ascending score order.
func (t *TierTable) Tiers() []domain.Tier {
	return append([]domain.Tier(nil), t.tiers...)
}

func (t *TierTable) MaxScore() int { return t.maxScore }
