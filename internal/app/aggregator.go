package app

import "compliscore/internal/domain"

// Pure read-model helpers over a progress record. None of these mutate.

// LatestAttemptNumber returns the highest attempt number present in the
// assessment history, or 0 when no assessment has been completed.
func LatestAttemptNumber(p domain.Progress) int {
	latest := 0
	for _, row := range p.AssessmentHistory {
		if row.AttemptNumber > latest {
			latest = row.AttemptNumber
		}
	}
	return latest
}

// LatestSnapshot filters the category rows down to the latest attempt,
// preserving their stored order.
func LatestSnapshot(p domain.Progress) []domain.CategoryStanding {
	latest := LatestAttemptNumber(p)
	var out []domain.CategoryStanding
	for _, row := range p.CategoryScores {
		if row.AttemptNumber == latest {
			out = append(out, domain.CategoryStanding{Category: row.Category, Percentage: row.Percentage})
		}
	}
	return out
}

// ScoreDelta is the overall-percentage change between the two most recent
// attempts, or 0 when fewer than two attempts exist.
func ScoreDelta(p domain.Progress) float64 {
	n := len(p.AssessmentHistory)
	if n < 2 {
		return 0
	}
	return p.AssessmentHistory[n-1].OverallPercentage - p.AssessmentHistory[n-2].OverallPercentage
}

// WeakAreas returns the latest-snapshot categories strictly below cutoff.
// Detection keys on the percentage field; the upstream system filtered on a
// field its individual records never populated, which made this list always
// empty there.
func WeakAreas(p domain.Progress, cutoff float64) []domain.CategoryStanding {
	var out []domain.CategoryStanding
	for _, standing := range LatestSnapshot(p) {
		if standing.Percentage < cutoff {
			out = append(out, standing)
		}
	}
	return out
}
