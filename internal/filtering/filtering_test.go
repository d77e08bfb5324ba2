package filtering

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobscan/internal/domain"
)

func result(url, company string, score int) domain.MatchResult {
	return domain.MatchResult{
		ID:         url,
		Job:        domain.JobContent{URL: url, Company: company},
		MatchScore: score,
	}
}

func urls(results []domain.MatchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Job.URL)
	}
	return out
}

func TestRunDefaultPipeline(t *testing.T) {
	input := []domain.MatchResult{
		result("a", "Acme", 72),
		result("b", "Globex", 91),
		result("c", "Initech", 40),
		result("d", "acme ", 99),
		result("e", "Umbrella", 72),
		result("f", "Hooli", 70),
	}

	core, logs := observer.New(zapcore.InfoLevel)
	cfg := &Config{Threshold: 0.7, MaxResults: 3, ExcludeCompanies: []string{"ACME"}}

	got, err := Run(context.Background(), cfg, Deps{Logger: zap.New(core)}, Default(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"b", "e", "f"}
	if gotURLs := urls(got); len(gotURLs) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotURLs)
	} else {
		for i := range want {
			if gotURLs[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, gotURLs)
			}
		}
	}

	for i, r := range got {
		if r.Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, r.Rank)
		}
	}

	if logs.FilterMessage("filter step").Len() != len(Default()) {
		t.Fatalf("expected one log per step, got %d", logs.FilterMessage("filter step").Len())
	}
}

func TestOrderIsStable(t *testing.T) {
	input := []domain.MatchResult{result("x", "", 60), result("y", "", 80), result("z", "", 60)}

	got, err := Run(context.Background(), &Config{}, Deps{}, []Filter{NewOrder(), NewRank()}, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if u := urls(got); u[0] != "y" || u[1] != "x" || u[2] != "z" {
		t.Fatalf("unexpected order %v", u)
	}
	if input[0].Job.URL != "x" {
		t.Fatal("expected input slice to be left untouched")
	}
}

func TestThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		score     int
		kept      bool
	}{
		{name: "equal is kept", threshold: 0.7, score: 70, kept: true},
		{name: "below is dropped", threshold: 0.7, score: 69, kept: false},
		{name: "float error", threshold: 0.07, score: 7, kept: true},
		{name: "zero keeps all", threshold: 0, score: 0, kept: true},
		{name: "one needs hundred", threshold: 1, score: 99, kept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Run(context.Background(), &Config{Threshold: tt.threshold}, Deps{}, []Filter{NewThreshold()},
				[]domain.MatchResult{result("a", "", tt.score)})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (len(got) == 1) != tt.kept {
				t.Fatalf("expected kept=%v, got %d results", tt.kept, len(got))
			}
		})
	}
}

func TestInvalidThreshold(t *testing.T) {
	for _, th := range []float64{-0.1, 1.5} {
		_, err := Run(context.Background(), &Config{Threshold: th}, Deps{}, Default(), nil)
		if !errors.Is(err, ErrInvalidThreshold) {
			t.Fatalf("expected ErrInvalidThreshold for %v, got %v", th, err)
		}
	}
}

func TestLimitNonPositiveKeepsAll(t *testing.T) {
	input := []domain.MatchResult{result("a", "", 1), result("b", "", 2)}

	got, err := Run(context.Background(), &Config{MaxResults: 0}, Deps{}, []Filter{NewLimit()}, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected all results, got %d", len(got))
	}
}

func TestDisableByNameAndDescribe(t *testing.T) {
	steps := Default()
	DisableByName(steps, "limit", "interactive review")

	got, err := Run(context.Background(), &Config{MaxResults: 1}, Deps{Logger: zap.NewNop()}, steps,
		[]domain.MatchResult{result("a", "", 10), result("b", "", 20)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected disabled limit to keep results, got %d", len(got))
	}

	for _, st := range Describe(steps) {
		if st.Name == "limit" && (st.Enabled || st.Reason != "interactive review") {
			t.Fatalf("unexpected limit status %+v", st)
		}
	}
}
