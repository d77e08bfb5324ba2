// Package pipeline runs extraction and scoring for one batch of references.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/extract"
	"github.com/spigell/jobscan/internal/logger"
	"github.com/spigell/jobscan/internal/match"
	"github.com/spigell/jobscan/internal/quota"
)

const (
	DefaultPoliteness = 500 * time.Millisecond
	DefaultIdentity   = "local"
)

type Extractor interface {
	Extract(ctx context.Context, ref domain.JobReference) (domain.JobContent, extract.Diagnostics)
}

type Discoverer interface {
	Discover(ctx context.Context, seedURL string, limit int) ([]domain.JobReference, error)
}

type Scorer interface {
	ScoreBatch(ctx context.Context, identity string, jobs []domain.JobContent, profile domain.CandidateProfile, threshold float64, maxResults int) (match.Outcome, error)
}

// Recorder persists finished batches. It is optional.
type Recorder interface {
	SaveBatch(ctx context.Context, identity string, batch Batch) error
}

type Options struct {
	Politeness         time.Duration `mapstructure:"politeness-delay"`
	MaxDiscoveredLinks int           `mapstructure:"max-discovered-links"`
	// GeneralQuota is filled from the quota section.
	GeneralQuota quota.Limit `mapstructure:"-"`
}

func DefaultOptions() Options {
	return Options{
		Politeness:         DefaultPoliteness,
		MaxDiscoveredLinks: extract.DefaultMaxLinks,
		GeneralQuota:       quota.Limit{MaxCalls: 100, Window: time.Hour},
	}
}

type Service struct {
	extractor  Extractor
	discoverer Discoverer
	scorer     Scorer
	tracker    *quota.Tracker
	recorder   Recorder
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires the pipeline. discoverer and recorder may be nil.
func NewService(extractor Extractor, discoverer Discoverer, scorer Scorer, tracker *quota.Tracker, recorder Recorder, opts Options, log *zap.Logger) *Service {
	def := DefaultOptions()
	if opts.Politeness <= 0 {
		opts.Politeness = def.Politeness
	}
	if opts.MaxDiscoveredLinks <= 0 {
		opts.MaxDiscoveredLinks = def.MaxDiscoveredLinks
	}
	if opts.GeneralQuota.MaxCalls <= 0 || opts.GeneralQuota.Window <= 0 {
		opts.GeneralQuota = def.GeneralQuota
	}
	if tracker == nil {
		tracker = quota.New()
	}

	return &Service{
		extractor:  extractor,
		discoverer: discoverer,
		scorer:     scorer,
		tracker:    tracker,
		recorder:   recorder,
		opts:       opts,
		logger:     logger.OrNop(log),
		now:        time.Now,
	}
}

// ScoreJobBatch is the gated entry point: it validates the request, charges the
// general quota, discovers references from SeedURL when none are given, then runs the batch.
func (s *Service) ScoreJobBatch(ctx context.Context, req Request) (Response, error) {
	identity := identityOrDefault(req.Identity)
	if err := validateThreshold(req.MatchThreshold); err != nil {
		return Response{}, err
	}
	if len(req.References) == 0 && strings.TrimSpace(req.SeedURL) == "" {
		return Response{}, ErrNoJobReferences
	}
	if err := s.gate(identity); err != nil {
		return Response{}, err
	}

	refs := req.References
	if len(refs) == 0 && strings.TrimSpace(req.SeedURL) != "" {
		if s.discoverer == nil {
			return Response{}, fmt.Errorf("link discovery is not configured: %w", ErrNoJobReferences)
		}
		discovered, err := s.discoverer.Discover(ctx, req.SeedURL, s.opts.MaxDiscoveredLinks)
		if err != nil {
			return Response{}, fmt.Errorf("discover links: %w", err)
		}
		refs = discovered
	}

	batch, err := s.Run(ctx, identity, refs, req.Profile, req.MatchThreshold, req.MaxResults)
	if err != nil {
		return Response{}, err
	}

	return Response{
		BatchID:          batch.ID,
		Results:          batch.Results,
		ProcessingMethod: batch.ProcessingMethod,
		Elapsed:          batch.Elapsed,
		SkillGap:         batch.SkillGap,
		Usage:            s.tracker.UsageStats(identity),
	}, nil
}

// Run extracts every reference and scores the usable ones in a single batch.
func (s *Service) Run(ctx context.Context, identity string, refs []domain.JobReference, profile domain.CandidateProfile, threshold float64, maxResults int) (Batch, error) {
	started := s.now()
	identity = identityOrDefault(identity)

	if err := validateThreshold(threshold); err != nil {
		return Batch{}, err
	}
	if err := profile.Validate(); err != nil {
		return Batch{}, fmt.Errorf("invalid profile: %w", err)
	}

	batch := Batch{
		ID:              uuid.NewString(),
		Results:         []domain.MatchResult{},
		Tier:            domain.TierSimilarity,
		ExtractionStats: make(map[domain.ExtractionMethod]int),
		CreatedAt:       started,
	}
	log := logger.WithFields(s.logger, logger.BatchFields(batch.ID, identity)...)

	refs = s.dedupe(log, refs)
	if len(refs) == 0 {
		return Batch{}, ErrNoJobReferences
	}

	log.Info("batch started", zap.Int("references", len(refs)))

	jobs, err := s.extractAll(ctx, log, started, refs, batch.ExtractionStats)
	if err != nil {
		return Batch{}, err
	}

	if len(jobs) == 0 {
		log.Warn("no usable job content, skipping scoring")
	} else {
		outcome, err := s.scorer.ScoreBatch(ctx, identity, jobs, profile, threshold, maxResults)
		if err != nil {
			return Batch{}, fmt.Errorf("score batch: %w", err)
		}
		batch.Results = outcome.Results
		batch.Tier = outcome.Tier
		batch.Degraded = outcome.Degraded
		batch.DegradeReason = outcome.DegradeReason
	}
	batch.SkillGap = match.SkillGaps(jobs, profile, match.DefaultMaxGaps)

	batch.ProcessingMethod = processingMethod(batch.Tier, batch.ExtractionStats)
	batch.Elapsed = s.now().Sub(started)

	log.Info("batch finished",
		zap.String("processing_method", batch.ProcessingMethod),
		zap.Int("usable", len(jobs)),
		zap.Int("results", len(batch.Results)),
		zap.Duration("elapsed", batch.Elapsed),
	)

	if s.recorder != nil {
		if err := s.recorder.SaveBatch(ctx, identity, batch); err != nil {
			log.Warn("failed to record batch", zap.Error(err))
		}
	}

	return batch, nil
}

// FetchSingleJob extracts one posting for inspection. It is charged to the general quota.
func (s *Service) FetchSingleJob(ctx context.Context, identity, rawURL string) (SingleJob, error) {
	identity = identityOrDefault(identity)
	ref := domain.JobReference{URL: strings.TrimSpace(rawURL)}
	if err := ref.Validate(); err != nil {
		return SingleJob{}, err
	}

	if err := s.gate(identity); err != nil {
		return SingleJob{}, err
	}

	started := s.now()
	content, diag := s.extractor.Extract(ctx, ref)
	content.FetchedAtOffset = s.now().Sub(started)

	return SingleJob{Content: content, Diagnostics: diag, Elapsed: content.FetchedAtOffset}, nil
}

func (s *Service) gate(identity string) error {
	if s.tracker.AllowLimit(identity, quota.ClassGeneral, s.opts.GeneralQuota) {
		return nil
	}

	usage := s.tracker.UsageStats(identity).Classes[quota.ClassGeneral]
	qerr := &QuotaExceededError{
		Identity: identity,
		Class:    quota.ClassGeneral,
		Used:     usage.Count,
		Limit:    usage.Limit,
	}
	if !usage.ResetAt.IsZero() {
		qerr.RetryAfter = max(usage.ResetAt.Sub(usage.WindowEnd), 0)
	}

	s.logger.Warn("quota exceeded",
		zap.String(logger.FieldIdentity, identity),
		zap.Int("used", qerr.Used),
		zap.Int("limit", qerr.Limit),
	)

	return qerr
}

func (s *Service) dedupe(log *zap.Logger, refs []domain.JobReference) []domain.JobReference {
	seen := make(map[string]bool, len(refs))
	out := make([]domain.JobReference, 0, len(refs))
	for _, ref := range refs {
		if err := ref.Validate(); err != nil {
			log.Warn("skipping invalid job reference", zap.Error(err))
			continue
		}
		key := extract.CanonicalURL(ref.URL)
		if seen[key] {
			log.Debug("skipping duplicate job reference", zap.String(logger.FieldURL, ref.URL))
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}

func (s *Service) extractAll(ctx context.Context, log *zap.Logger, started time.Time, refs []domain.JobReference, stats map[domain.ExtractionMethod]int) ([]domain.JobContent, error) {
	limiter := rate.NewLimiter(rate.Every(s.opts.Politeness), 1)
	jobs := make([]domain.JobContent, 0, len(refs))

	for _, ref := range refs {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for extraction slot: %w", err)
		}

		content, diag := s.extractor.Extract(ctx, ref)
		content.FetchedAtOffset = s.now().Sub(started)
		stats[content.ExtractionMethod]++

		if !usable(content, ref) {
			log.Info("dropping unusable job content",
				zap.String(logger.FieldURL, ref.URL),
				zap.String(logger.FieldMethod, string(diag.Method)),
			)
			continue
		}
		jobs = append(jobs, content)
	}

	return jobs, nil
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

func identityOrDefault(identity string) string {
	if identity = strings.TrimSpace(identity); identity == "" {
		return DefaultIdentity
	}
	return identity
}
