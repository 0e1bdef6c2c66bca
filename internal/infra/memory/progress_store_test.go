package memory

import (
	"context"
	"errors"
	"testing"

	"compliscore/internal/domain"
)

func TestProgressStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	if _, err := store.GetProgress(ctx, "u1"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}

	record := domain.Progress{UserID: "u1", AssessmentAttempts: 1}
	if err := store.SaveProgress(ctx, &record); err != nil {
		t.Fatalf("save: %v", err)
	}
	if record.Revision != 1 {
		t.Fatalf("expected revision 1 after first save, got %d", record.Revision)
	}

	loaded, err := store.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.AssessmentAttempts != 1 || loaded.Revision != 1 {
		t.Fatalf("unexpected record %+v", loaded)
	}
}

// Two readers of the same revision race to write; the loser must get a
// conflict instead of silently overwriting (the last-write-wins hazard).
func TestProgressStoreRevisionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	record := domain.Progress{UserID: "u1"}
	if err := store.SaveProgress(ctx, &record); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first, _ := store.GetProgress(ctx, "u1")
	second, _ := store.GetProgress(ctx, "u1")

	first.AssessmentAttempts = 1
	if err := store.SaveProgress(ctx, &first); err != nil {
		t.Fatalf("first writer: %v", err)
	}

	second.AssessmentAttempts = 2
	if err := store.SaveProgress(ctx, &second); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}

	final, _ := store.GetProgress(ctx, "u1")
	if final.AssessmentAttempts != 1 {
		t.Fatalf("losing write leaked through: %+v", final)
	}
}

func TestProgressStoreCloneIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	record := domain.Progress{
		UserID:          "u1",
		QuestionHistory: []domain.Answer{{QuestionID: "q1", OptionLabel: "a"}},
	}
	if err := store.SaveProgress(ctx, &record); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, _ := store.GetProgress(ctx, "u1")
	loaded.QuestionHistory[0].OptionLabel = "mutated"

	fresh, _ := store.GetProgress(ctx, "u1")
	if fresh.QuestionHistory[0].OptionLabel != "a" {
		t.Fatalf("store leaked a shared slice: %+v", fresh.QuestionHistory[0])
	}
}
