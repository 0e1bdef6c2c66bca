package app_test

import (
	"testing"
	"time"

	"compliscore/internal/app"
	"compliscore/internal/domain"
)

func historyProgress() domain.Progress {
	completed := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	return domain.Progress{
		UserID:             "u1",
		AssessmentAttempts: 2,
		CategoryScores: []domain.CategoryScore{
			{AttemptNumber: 1, Category: "Password Management", Percentage: 50},
			{AttemptNumber: 1, Category: "Phishing Awareness", Percentage: 40},
			{AttemptNumber: 2, Category: "Password Management", Percentage: 85},
			{AttemptNumber: 2, Category: "Phishing Awareness", Percentage: 62.5},
		},
		AssessmentHistory: []domain.AttemptSummary{
			{AttemptNumber: 1, OverallPercentage: 45, CompletedAt: completed},
			{AttemptNumber: 2, OverallPercentage: 73.75, CompletedAt: completed.AddDate(0, 0, 7)},
		},
		OverallPercentage: 73.75,
	}
}

func TestLatestSnapshotFiltersToNewestAttempt(t *testing.T) {
	snapshot := app.LatestSnapshot(historyProgress())
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 standings, got %d", len(snapshot))
	}
	if snapshot[0].Category != "Password Management" || snapshot[0].Percentage != 85 {
		t.Fatalf("unexpected first standing %+v", snapshot[0])
	}
	if snapshot[1].Category != "Phishing Awareness" || snapshot[1].Percentage != 62.5 {
		t.Fatalf("unexpected second standing %+v", snapshot[1])
	}
}

func TestLatestSnapshotEmptyRecord(t *testing.T) {
	if snapshot := app.LatestSnapshot(domain.Progress{UserID: "u1"}); len(snapshot) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}
}

func TestScoreDelta(t *testing.T) {
	if delta := app.ScoreDelta(historyProgress()); !closeTo(delta, 28.75) {
		t.Fatalf("expected delta 28.75, got %v", delta)
	}
	single := domain.Progress{
		AssessmentHistory: []domain.AttemptSummary{{AttemptNumber: 1, OverallPercentage: 60}},
	}
	if delta := app.ScoreDelta(single); delta != 0 {
		t.Fatalf("expected 0 delta with one attempt, got %v", delta)
	}
	if delta := app.ScoreDelta(domain.Progress{}); delta != 0 {
		t.Fatalf("expected 0 delta with no attempts, got %v", delta)
	}
}

func TestWeakAreas(t *testing.T) {
	weak := app.WeakAreas(historyProgress(), domain.RecommendationCutoff)
	if len(weak) != 1 {
		t.Fatalf("expected 1 weak area, got %+v", weak)
	}
	if weak[0].Category != "Phishing Awareness" {
		t.Fatalf("unexpected weak area %+v", weak[0])
	}
}
