// Package match scores a batch of postings against a candidate profile,
// choosing one scoring tier for the whole batch.
package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/jobscan/internal/ai"
	"github.com/spigell/jobscan/internal/compress"
	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/filtering"
	"github.com/spigell/jobscan/internal/logger"
	"github.com/spigell/jobscan/internal/quota"
	"github.com/spigell/jobscan/internal/utils"
)

const (
	DefaultMaxContextJobs = 5
	DefaultContextSpacing = 2500 * time.Millisecond
	DefaultLLMTimeout     = 60 * time.Second

	// Share of a recommended profile's match percentage added to the score.
	profileBoostFactor = 0.15
)

// ErrLLMQuota is reported when the llm budget of an identity is spent.
var ErrLLMQuota = errors.New("llm quota exceeded")

// Assessor is the LLM side of scoring.
type Assessor interface {
	ScoreBatch(ctx context.Context, profile domain.CandidateProfile, jobs []domain.JobContent) ([]ai.ScoreEntry, error)
	ExtractContext(ctx context.Context, job domain.JobContent) (ai.JobContext, error)
	Model() string
}

type Options struct {
	ContextExtraction bool             `mapstructure:"context-extraction"`
	MaxContextJobs    int              `mapstructure:"max-context-jobs"`
	ContextSpacing    time.Duration    `mapstructure:"context-spacing"`
	LLMTimeout        time.Duration    `mapstructure:"llm-timeout"`
	Retry             utils.Backoff    `mapstructure:"retry"`
	Similarity        SimilarityPolicy `mapstructure:"similarity"`
	ExcludeCompanies  []string         `mapstructure:"exclude-companies"`
	// LLMQuota is filled from the quota section.
	LLMQuota quota.Limit `mapstructure:"-"`
}

func DefaultOptions() Options {
	return Options{
		ContextExtraction: true,
		MaxContextJobs:    DefaultMaxContextJobs,
		ContextSpacing:    DefaultContextSpacing,
		LLMTimeout:        DefaultLLMTimeout,
		Retry:             utils.DefaultBackoff(),
		Similarity:        DefaultSimilarityPolicy(),
		LLMQuota:          quota.Limit{MaxCalls: 20, Window: time.Hour},
	}
}

// Outcome is the scored batch. Every result carries Tier.
type Outcome struct {
	Results       []domain.MatchResult
	Tier          domain.Tier
	Degraded      bool
	DegradeReason string
}

type Scorer struct {
	assessor   Assessor
	tracker    *quota.Tracker
	compressor *compress.Compressor
	opts       Options
	logger     *zap.Logger
}

// NewScorer builds a scorer. A nil assessor restricts it to similarity scoring.
func NewScorer(assessor Assessor, tracker *quota.Tracker, compressor *compress.Compressor, opts Options, log *zap.Logger) *Scorer {
	def := DefaultOptions()
	if opts.MaxContextJobs <= 0 {
		opts.MaxContextJobs = def.MaxContextJobs
	}
	if opts.ContextSpacing <= 0 {
		opts.ContextSpacing = def.ContextSpacing
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = def.LLMTimeout
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = def.Retry
	}
	if opts.LLMQuota.MaxCalls <= 0 || opts.LLMQuota.Window <= 0 {
		opts.LLMQuota = def.LLMQuota
	}
	opts.Similarity = opts.Similarity.normalized()

	if tracker == nil {
		tracker = quota.New()
	}
	if compressor == nil {
		compressor = compress.New(compress.DefaultOptions())
	}

	return &Scorer{
		assessor:   assessor,
		tracker:    tracker,
		compressor: compressor,
		opts:       opts,
		logger:     logger.OrNop(log),
	}
}

// ScoreBatch scores jobs, then filters, sorts, limits and ranks the results.
// LLM failures never surface as errors; the batch is scored by similarity instead.
func (s *Scorer) ScoreBatch(ctx context.Context, identity string, jobs []domain.JobContent, profile domain.CandidateProfile, threshold float64, maxResults int) (Outcome, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return Outcome{}, fmt.Errorf("%w: got %v", filtering.ErrInvalidThreshold, threshold)
	}
	if len(jobs) == 0 {
		return Outcome{Tier: domain.TierSimilarity, Results: []domain.MatchResult{}}, nil
	}

	log := logger.WithFields(s.logger, zap.String(logger.FieldIdentity, identity))

	tier, reason := s.selectTier(identity)
	log.Info("scoring tier selected",
		zap.String(logger.FieldTier, tier.Name()),
		zap.Int("jobs", len(jobs)),
		zap.String("reason", reason),
	)

	out := Outcome{Tier: tier}
	if reason != "" && s.assessor != nil {
		out.Degraded = true
		out.DegradeReason = reason
	}

	var results []domain.MatchResult
	if tier != domain.TierSimilarity {
		var err error
		results, err = s.scoreWithLLM(ctx, log, identity, tier, jobs, profile)
		if err != nil {
			log.Warn("llm scoring failed, scoring batch by similarity",
				zap.String(logger.FieldTier, tier.Name()),
				zap.Error(err),
			)
			out.Tier = domain.TierSimilarity
			out.Degraded = true
			out.DegradeReason = err.Error()
		}
	}
	if out.Tier == domain.TierSimilarity {
		results = s.scoreSimilarity(jobs, profile)
	}

	for i := range results {
		results[i].MatchScore = s.boosted(results[i], profile, out.Tier)
	}

	cfg := &filtering.Config{
		Threshold:        threshold,
		MaxResults:       maxResults,
		ExcludeCompanies: s.opts.ExcludeCompanies,
	}
	filtered, err := filtering.Run(ctx, cfg, filtering.Deps{Logger: log}, filtering.Default(), results)
	if err != nil {
		return Outcome{}, err
	}
	out.Results = filtered

	log.Info("batch scored",
		zap.String(logger.FieldTier, out.Tier.Name()),
		zap.Int("scored", len(results)),
		zap.Int("returned", len(filtered)),
		zap.Bool("degraded", out.Degraded),
	)

	return out, nil
}

func (s *Scorer) selectTier(identity string) (domain.Tier, string) {
	switch {
	case s.assessor == nil:
		return domain.TierSimilarity, "llm not configured"
	case !s.tracker.AllowLimit(identity, quota.ClassLLM, s.opts.LLMQuota):
		return domain.TierSimilarity, ErrLLMQuota.Error()
	case s.opts.ContextExtraction:
		return domain.TierLLMEnhanced, ""
	default:
		return domain.TierLLMDirect, ""
	}
}

func (s *Scorer) scoreWithLLM(ctx context.Context, log *zap.Logger, identity string, tier domain.Tier, jobs []domain.JobContent, profile domain.CandidateProfile) ([]domain.MatchResult, error) {
	prepared, err := s.prepare(ctx, log, identity, tier, jobs)
	if err != nil {
		return nil, err
	}

	var entries []ai.ScoreEntry
	err = s.opts.Retry.Do(ctx, ai.IsRateLimited, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.LLMTimeout)
		defer cancel()

		var callErr error
		entries, callErr = s.assessor.ScoreBatch(callCtx, profile, prepared)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(entries) != len(jobs) {
		return nil, fmt.Errorf("%w: got %d results for %d jobs", ai.ErrMalformedResponse, len(entries), len(jobs))
	}

	results := make([]domain.MatchResult, len(jobs))
	for i, e := range entries {
		score := domain.ClampScore(int(math.Round(e.MatchScore)))
		narrative := strings.TrimSpace(e.Summary)
		if narrative == "" {
			narrative = fmt.Sprintf("Scored %d/100 by LLM assessment.", score)
		}
		results[i] = domain.MatchResult{
			ID:             uuid.NewString(),
			Job:            jobs[i],
			MatchScore:     score,
			MatchingSkills: nonNil(e.MatchingSkills),
			MissingSkills:  nonNil(e.MissingSkills),
			Narrative:      narrative,
			Confidence:     domain.ParseConfidence(e.Confidence),
			ScoringTier:    tier,
		}
	}

	return results, nil
}

// prepare compresses every job and, for the enhanced tier, replaces the
// first MaxContextJobs descriptions with an LLM extracted context.
func (s *Scorer) prepare(ctx context.Context, log *zap.Logger, identity string, tier domain.Tier, jobs []domain.JobContent) ([]domain.JobContent, error) {
	prepared := make([]domain.JobContent, len(jobs))
	for i, job := range jobs {
		prepared[i] = s.compressor.Compress(job)
	}
	if tier != domain.TierLLMEnhanced {
		return prepared, nil
	}

	limiter := rate.NewLimiter(rate.Every(s.opts.ContextSpacing), 1)
	for i := range prepared {
		if i >= s.opts.MaxContextJobs {
			break
		}
		if !s.tracker.AllowLimit(identity, quota.ClassLLM, s.opts.LLMQuota) {
			return nil, fmt.Errorf("context extraction for job %d: %w", i, ErrLLMQuota)
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for context extraction slot: %w", err)
		}

		jc, err := s.extractContext(ctx, prepared[i])
		if err != nil {
			log.Warn("context extraction failed, using compressed description",
				zap.String(logger.FieldURL, jobs[i].URL),
				zap.Error(err),
			)
			continue
		}

		before := utf8.RuneCountInString(prepared[i].Description)
		prepared[i].Description = jc.Describe()
		if len(jc.Requirements) > 0 {
			prepared[i].Requirements = jc.Requirements
		}
		log.Debug("context extracted",
			zap.String(logger.FieldURL, jobs[i].URL),
			zap.Int("chars_before", before),
			zap.Int("chars_after", utf8.RuneCountInString(prepared[i].Description)),
		)
	}

	return prepared, nil
}

func (s *Scorer) extractContext(ctx context.Context, job domain.JobContent) (ai.JobContext, error) {
	var jc ai.JobContext
	err := s.opts.Retry.Do(ctx, ai.IsRateLimited, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.LLMTimeout)
		defer cancel()

		var callErr error
		jc, callErr = s.assessor.ExtractContext(callCtx, job)
		return callErr
	})
	return jc, err
}

func (s *Scorer) scoreSimilarity(jobs []domain.JobContent, profile domain.CandidateProfile) []domain.MatchResult {
	skills := profile.NormalizedSkills()
	results := make([]domain.MatchResult, len(jobs))
	for i, job := range jobs {
		sim := s.opts.Similarity.Assess(job, skills)
		results[i] = domain.MatchResult{
			ID:             uuid.NewString(),
			Job:            job,
			MatchScore:     sim.Score,
			MatchingSkills: sim.Matching,
			MissingSkills:  sim.Missing,
			Narrative:      sim.Narrative,
			Confidence:     sim.Confidence,
			ScoringTier:    domain.TierSimilarity,
		}
	}
	return results
}

// boosted adds the share of the best recommended profile whose title shares a
// significant word with the job title.
func (s *Scorer) boosted(r domain.MatchResult, profile domain.CandidateProfile, tier domain.Tier) int {
	ceiling := 100
	if tier == domain.TierSimilarity {
		ceiling = s.opts.Similarity.Ceiling
	}

	boost := profileBoost(profile, r.Job.Title)
	if boost <= 0 {
		return domain.ClampScore(r.MatchScore)
	}

	score := int(math.Round(float64(r.MatchScore) + boost))
	return domain.ClampScore(min(score, max(ceiling, r.MatchScore)))
}

func profileBoost(profile domain.CandidateProfile, jobTitle string) float64 {
	if profile.CareerInsights == nil {
		return 0
	}

	titleWords := significantWords(jobTitle)
	if len(titleWords) == 0 {
		return 0
	}

	best := 0.0
	for _, rp := range profile.CareerInsights.RecommendedProfiles {
		if rp.MatchPercentage <= best {
			continue
		}
		for w := range significantWords(rp.Title) {
			if titleWords[w] {
				best = rp.MatchPercentage
				break
			}
		}
	}

	return best * profileBoostFactor
}

func significantWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r < 0x80
	}) {
		if utf8.RuneCountInString(w) >= 4 {
			out[w] = true
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
