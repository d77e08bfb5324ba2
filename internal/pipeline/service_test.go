package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/extract"
	"github.com/spigell/jobscan/internal/match"
	"github.com/spigell/jobscan/internal/quota"
)

type fakeExtractor struct {
	mu       sync.Mutex
	contents map[string]domain.JobContent
	calls    []string
}

func (f *fakeExtractor) Extract(_ context.Context, ref domain.JobReference) (domain.JobContent, extract.Diagnostics) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, ref.URL)
	if c, ok := f.contents[ref.URL]; ok {
		c.URL = ref.URL
		return c, extract.Diagnostics{Method: c.ExtractionMethod}
	}
	return domain.JobContent{
		URL:              ref.URL,
		Description:      "Extraction failed for " + ref.URL + ": static: bad status",
		ExtractionMethod: domain.MethodFailed,
	}, extract.Diagnostics{Method: domain.MethodFailed, Err: extract.ErrExhausted}
}

type fakeScorer struct {
	calls []int
}

func (f *fakeScorer) ScoreBatch(_ context.Context, _ string, jobs []domain.JobContent, _ domain.CandidateProfile, _ float64, _ int) (match.Outcome, error) {
	f.calls = append(f.calls, len(jobs))
	results := make([]domain.MatchResult, len(jobs))
	for i, j := range jobs {
		results[i] = domain.MatchResult{Job: j, MatchScore: 70, ScoringTier: domain.TierLLMDirect, Rank: i + 1}
	}
	return match.Outcome{Results: results, Tier: domain.TierLLMDirect}, nil
}

type fakeRecorder struct {
	batches []Batch
	err     error
}

func (f *fakeRecorder) SaveBatch(_ context.Context, _ string, b Batch) error {
	f.batches = append(f.batches, b)
	return f.err
}

type fakeDiscoverer struct {
	refs []domain.JobReference
	seed string
}

func (f *fakeDiscoverer) Discover(_ context.Context, seedURL string, _ int) ([]domain.JobReference, error) {
	f.seed = seedURL
	return f.refs, nil
}

func fetched(method domain.ExtractionMethod) domain.JobContent {
	return domain.JobContent{
		Title:            "Go Engineer",
		Company:          "Acme",
		Description:      "We build backend services in Go with PostgreSQL and Kubernetes.",
		ExtractionMethod: method,
		FetchSucceeded:   true,
	}
}

func profile() domain.CandidateProfile {
	return domain.CandidateProfile{Skills: []string{"Go"}}
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.Politeness = time.Millisecond
	return opts
}

func TestRunDedupesAndFormatsMethod(t *testing.T) {
	ext := &fakeExtractor{contents: map[string]domain.JobContent{
		"https://a.example.com/jobs/1": fetched(domain.MethodStatic),
		"https://a.example.com/jobs/2": fetched(domain.MethodStatic),
		"https://b.example.com/jobs/3": fetched(domain.MethodHeadless),
		"https://c.example.com/jobs/4": fetched(domain.MethodStatic),
	}}
	scorer := &fakeScorer{}
	rec := &fakeRecorder{}
	svc := NewService(ext, nil, scorer, nil, rec, fastOptions(), zap.NewNop())

	refs := []domain.JobReference{
		{URL: "https://a.example.com/jobs/1"},
		{URL: "https://A.example.com/jobs/1?utm_source=feed#apply"},
		{URL: "https://a.example.com/jobs/2"},
		{URL: "https://b.example.com/jobs/3"},
		{URL: "https://c.example.com/jobs/4"},
		{URL: "ftp://bad.example.com/x"},
	}

	batch, err := svc.Run(context.Background(), "alice", refs, profile(), 0.5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ext.calls) != 4 {
		t.Fatalf("expected 4 extractions after dedupe, got %v", ext.calls)
	}
	if batch.ProcessingMethod != "llm_direct+static:3,headless:1" {
		t.Fatalf("unexpected processing method %q", batch.ProcessingMethod)
	}
	if batch.ID == "" || len(batch.Results) != 4 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if len(rec.batches) != 1 || rec.batches[0].ID != batch.ID {
		t.Fatalf("expected batch to be recorded once, got %d", len(rec.batches))
	}
	if strings.Join(batch.SkillGap.Missing, ",") != "PostgreSQL,Kubernetes" {
		t.Fatalf("unexpected skill gap %+v", batch.SkillGap)
	}
}

func TestRunSkipsScoringWhenNothingUsable(t *testing.T) {
	ext := &fakeExtractor{contents: map[string]domain.JobContent{}}
	scorer := &fakeScorer{}
	svc := NewService(ext, nil, scorer, nil, nil, fastOptions(), zap.NewNop())

	batch, err := svc.Run(context.Background(), "alice", []domain.JobReference{
		{URL: "https://down.example.com/jobs/1"},
		{URL: "https://down.example.com/jobs/2"},
	}, profile(), 0.7, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scorer.calls) != 0 {
		t.Fatalf("expected scorer to be skipped, got %v", scorer.calls)
	}
	if len(batch.Results) != 0 || batch.Results == nil {
		t.Fatalf("expected empty non-nil results, got %v", batch.Results)
	}
	if batch.ProcessingMethod != "similarity+failed:2" {
		t.Fatalf("unexpected processing method %q", batch.ProcessingMethod)
	}
}

func TestRunKeepsSeedSummaryAndDropsPlaceholders(t *testing.T) {
	placeholder := fetched(domain.MethodHeadless)
	placeholder.Description = "Workday job content could not be extracted (JavaScript rendering issue)"

	ext := &fakeExtractor{contents: map[string]domain.JobContent{
		"https://ok.example.com/jobs/1": fetched(domain.MethodStatic),
		"https://wd.example.com/jobs/2": placeholder,
	}}
	scorer := &fakeScorer{}
	svc := NewService(ext, nil, scorer, nil, nil, fastOptions(), zap.NewNop())

	_, err := svc.Run(context.Background(), "alice", []domain.JobReference{
		{URL: "https://ok.example.com/jobs/1"},
		{URL: "https://wd.example.com/jobs/2"},
		{URL: "https://down.example.com/jobs/3", SeedSummary: "Go role on payments"},
		{URL: "https://down.example.com/jobs/4"},
	}, profile(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scorer.calls) != 1 || scorer.calls[0] != 2 {
		t.Fatalf("expected one scoring call with 2 jobs, got %v", scorer.calls)
	}
}

func TestRunValidation(t *testing.T) {
	svc := NewService(&fakeExtractor{}, nil, &fakeScorer{}, nil, nil, fastOptions(), zap.NewNop())

	if _, err := svc.Run(context.Background(), "alice", nil, profile(), 0.5, 0); !errors.Is(err, ErrNoJobReferences) {
		t.Fatalf("expected ErrNoJobReferences, got %v", err)
	}

	refs := []domain.JobReference{{URL: "https://a.example.com/jobs/1"}}
	if _, err := svc.Run(context.Background(), "alice", refs, profile(), 2, 0); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
	if _, err := svc.Run(context.Background(), "alice", refs, domain.CandidateProfile{}, 0.5, 0); err == nil {
		t.Fatal("expected empty profile to be rejected")
	}
}

func TestScoreJobBatchQuota(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tracker := quota.NewWithClock(func() time.Time { return now })

	opts := fastOptions()
	opts.GeneralQuota = quota.Limit{MaxCalls: 10, Window: time.Hour}
	ext := &fakeExtractor{contents: map[string]domain.JobContent{"https://a.example.com/jobs/1": fetched(domain.MethodStatic)}}
	svc := NewService(ext, nil, &fakeScorer{}, tracker, nil, opts, zap.NewNop())

	req := Request{
		Identity:       "alice",
		References:     []domain.JobReference{{URL: "https://a.example.com/jobs/1"}},
		Profile:        profile(),
		MatchThreshold: 0.5,
	}

	for i := 1; i <= 10; i++ {
		resp, err := svc.ScoreJobBatch(context.Background(), req)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if got := resp.Usage.Classes[quota.ClassGeneral].Count; got != i {
			t.Fatalf("expected usage %d, got %d", i, got)
		}
	}

	_, err := svc.ScoreJobBatch(context.Background(), req)
	var qerr *QuotaExceededError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qerr.Used != 10 || qerr.Limit != 10 || qerr.Identity != "alice" {
		t.Fatalf("unexpected quota error %+v", qerr)
	}
	if !strings.Contains(qerr.Error(), "try again later") || !strings.Contains(qerr.Error(), "10/10") {
		t.Fatalf("unexpected message %q", qerr.Error())
	}
	if qerr.RetryAfter != time.Hour {
		t.Fatalf("expected retry after one hour, got %s", qerr.RetryAfter)
	}

	if _, err := svc.FetchSingleJob(context.Background(), "alice", "https://a.example.com/jobs/1"); !errors.As(err, &qerr) {
		t.Fatalf("expected single fetch to share the general budget, got %v", err)
	}
}

func TestScoreJobBatchValidatesBeforeCharging(t *testing.T) {
	tracker := quota.New()
	opts := fastOptions()
	opts.GeneralQuota = quota.Limit{MaxCalls: 10, Window: time.Hour}
	svc := NewService(&fakeExtractor{}, nil, &fakeScorer{}, tracker, nil, opts, zap.NewNop())

	if _, err := svc.ScoreJobBatch(context.Background(), Request{Identity: "alice", Profile: profile(), MatchThreshold: 0.5}); !errors.Is(err, ErrNoJobReferences) {
		t.Fatalf("expected ErrNoJobReferences, got %v", err)
	}
	if _, err := svc.ScoreJobBatch(context.Background(), Request{
		Identity:       "alice",
		References:     []domain.JobReference{{URL: "https://a.example.com/jobs/1"}},
		Profile:        profile(),
		MatchThreshold: 1.5,
	}); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
	if _, err := svc.FetchSingleJob(context.Background(), "alice", "not a url"); err == nil {
		t.Fatal("expected invalid url to be rejected")
	}

	if got := tracker.UsageStats("alice").Classes[quota.ClassGeneral].Count; got != 0 {
		t.Fatalf("expected rejected requests to leave the budget untouched, got %d used", got)
	}
}

func TestRunRecordsFetchOffsets(t *testing.T) {
	ext := &fakeExtractor{contents: map[string]domain.JobContent{
		"https://a.example.com/jobs/1": fetched(domain.MethodStatic),
		"https://a.example.com/jobs/2": fetched(domain.MethodStatic),
	}}
	svc := NewService(ext, nil, &fakeScorer{}, nil, nil, fastOptions(), zap.NewNop())

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	batch, err := svc.Run(context.Background(), "alice", []domain.JobReference{
		{URL: "https://a.example.com/jobs/1"},
		{URL: "https://a.example.com/jobs/2"},
	}, profile(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batch.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(batch.Results))
	}
	first, second := batch.Results[0].Job.FetchedAtOffset, batch.Results[1].Job.FetchedAtOffset
	if first <= 0 {
		t.Fatalf("expected positive offset for the first job, got %s", first)
	}
	if second <= first {
		t.Fatalf("expected second offset %s to be after first %s", second, first)
	}
}

func TestScoreJobBatchDiscoversFromSeed(t *testing.T) {
	disc := &fakeDiscoverer{refs: []domain.JobReference{
		{URL: "https://a.example.com/jobs/1"},
		{URL: "https://a.example.com/jobs/2"},
	}}
	ext := &fakeExtractor{contents: map[string]domain.JobContent{
		"https://a.example.com/jobs/1": fetched(domain.MethodStatic),
		"https://a.example.com/jobs/2": fetched(domain.MethodAPI),
	}}
	svc := NewService(ext, disc, &fakeScorer{}, nil, nil, fastOptions(), zap.NewNop())

	resp, err := svc.ScoreJobBatch(context.Background(), Request{
		SeedURL:        "https://a.example.com/careers",
		Profile:        profile(),
		MatchThreshold: 0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if disc.seed != "https://a.example.com/careers" {
		t.Fatalf("expected seed to be discovered, got %q", disc.seed)
	}
	if resp.ProcessingMethod != "llm_direct+static:1,api:1" {
		t.Fatalf("unexpected processing method %q", resp.ProcessingMethod)
	}
	if resp.Usage.Identity != DefaultIdentity {
		t.Fatalf("expected default identity, got %q", resp.Usage.Identity)
	}
}

func TestRunRecorderFailureIsNotFatal(t *testing.T) {
	ext := &fakeExtractor{contents: map[string]domain.JobContent{"https://a.example.com/jobs/1": fetched(domain.MethodStatic)}}
	rec := &fakeRecorder{err: errors.New("disk full")}
	svc := NewService(ext, nil, &fakeScorer{}, nil, rec, fastOptions(), zap.NewNop())

	if _, err := svc.Run(context.Background(), "alice", []domain.JobReference{{URL: "https://a.example.com/jobs/1"}}, profile(), 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchSingleJob(t *testing.T) {
	ext := &fakeExtractor{contents: map[string]domain.JobContent{"https://a.example.com/jobs/1": fetched(domain.MethodStatic)}}
	svc := NewService(ext, nil, &fakeScorer{}, nil, nil, fastOptions(), zap.NewNop())

	job, err := svc.FetchSingleJob(context.Background(), "", " https://a.example.com/jobs/1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Content.Title != "Go Engineer" || job.Diagnostics.Method != domain.MethodStatic {
		t.Fatalf("unexpected single job %+v", job)
	}

	if _, err := svc.FetchSingleJob(context.Background(), "", "not a url"); err == nil {
		t.Fatal("expected invalid url to be rejected")
	}
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		desc string
		want bool
	}{
		{"", true},
		{"Content could not be extracted - page may require user interaction", true},
		{"No description available", true},
		{"We build backend services in Go.", false},
		{strings.Repeat("Real posting text. ", 20) + "could not be extracted", false},
	}

	for _, tt := range tests {
		if got := isPlaceholder(tt.desc); got != tt.want {
			t.Fatalf("isPlaceholder(%q) = %v, want %v", tt.desc, got, tt.want)
		}
	}
}
