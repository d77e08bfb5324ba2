package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/pipeline"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "jobscan.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func batch(id string, created time.Time, scores ...int) pipeline.Batch {
	b := pipeline.Batch{
		ID:               id,
		ProcessingMethod: "llm_direct+static:2",
		Tier:             domain.TierLLMDirect,
		Elapsed:          1500 * time.Millisecond,
		ExtractionStats:  map[domain.ExtractionMethod]int{domain.MethodStatic: len(scores)},
		CreatedAt:        created,
	}
	for i, s := range scores {
		b.Results = append(b.Results, domain.MatchResult{
			ID:             id + "-" + string(rune('a'+i)),
			Job:            domain.JobContent{URL: "https://jobs.example.com/" + id, Title: "Go Engineer"},
			MatchScore:     s,
			MatchingSkills: []string{"Go"},
			Confidence:     domain.ConfidenceHigh,
			ScoringTier:    domain.TierLLMDirect,
			Rank:           i + 1,
		})
	}
	return b
}

func TestSaveAndListMatches(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := db.SaveBatch(ctx, "alice", batch("older", base, 80)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.SaveBatch(ctx, "alice", batch("newer", base.Add(time.Hour), 90, 70)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.SaveBatch(ctx, "bob", batch("other", base.Add(2*time.Hour), 50)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.RecentMatches(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	if got[0].BatchID != "newer" || got[0].Rank != 1 || got[0].Score != 90 {
		t.Fatalf("unexpected first match %+v", got[0])
	}
	if got[2].BatchID != "older" {
		t.Fatalf("expected oldest batch last, got %s", got[2].BatchID)
	}
	if got[0].Company != "Unknown company" || len(got[0].MatchingSkills) != 1 || got[0].MissingSkills == nil {
		t.Fatalf("unexpected decoded match %+v", got[0])
	}
	if !got[0].CreatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected created_at %s", got[0].CreatedAt)
	}

	all, err := db.RecentMatches(ctx, "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 || all[0].BatchID != "other" {
		t.Fatalf("unexpected unfiltered listing %+v", all)
	}
}

func TestSaveBatchDuplicateID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	b := batch("same", time.Now(), 60)
	if err := db.SaveBatch(ctx, "alice", b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.SaveBatch(ctx, "alice", b); err == nil {
		t.Fatal("expected duplicate batch id to fail")
	}

	got, err := db.RecentMatches(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected failed save to roll back, got %d matches", len(got))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobscan.db")

	for i := 0; i < 2; i++ {
		db, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("open %d: unexpected error: %v", i, err)
		}
		_ = db.Close()
	}
}

var _ pipeline.Recorder = (*DB)(nil)
