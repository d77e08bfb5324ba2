package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/ai"
	"github.com/spigell/jobscan/internal/ai/gemini"
	"github.com/spigell/jobscan/internal/compress"
	"github.com/spigell/jobscan/internal/extract"
	"github.com/spigell/jobscan/internal/match"
	"github.com/spigell/jobscan/internal/pipeline"
	"github.com/spigell/jobscan/internal/quota"
	"github.com/spigell/jobscan/internal/secrets"
	"github.com/spigell/jobscan/internal/store"
)

type services struct {
	pipeline *pipeline.Service
	db       *store.DB
}

func (s *services) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func buildServices(ctx context.Context, config *Config, dbPath string, logger *zap.Logger) (*services, error) {
	tracker := quota.New()
	ext := config.Extraction

	fetcher := extract.NewFetcher(ext.HTTPTimeout, ext.UserAgent, logger)
	registry := extract.DefaultRegistry()
	parser := extract.NewParser(registry)

	strategies := []extract.Strategy{extract.NewStaticStrategy(fetcher, parser, ext.StaticMinChars)}
	if ext.Headless != nil && ext.Headless.Enabled {
		renderer := extract.NewChromeRenderer(ext.Headless.Timeout, ext.Headless.Settle, ext.Headless.ExecPath, ext.UserAgent, logger)
		strategies = append(strategies, extract.NewHeadlessStrategy(renderer, parser, ext.HeadlessMinChars))
	}
	if ext.APIDiscovery {
		strategies = append(strategies, extract.NewAPIStrategy(fetcher, registry, ext.APIMinChars, logger))
	}
	chain := extract.NewChain(registry, logger, strategies...)

	assessor, err := newAssessor(ctx, config.AI, config.Scoring.LLMTimeout, logger)
	if err != nil {
		return nil, err
	}

	scorer := match.NewScorer(assessor, tracker, compress.New(config.Scoring.Compression), config.Scoring.Options, logger)

	s := &services{}
	var recorder pipeline.Recorder
	if dbPath = strings.TrimSpace(dbPath); dbPath != "" {
		db, err := store.Open(ctx, dbPath)
		if err != nil {
			return nil, fmt.Errorf("open result store: %w", err)
		}
		s.db = db
		recorder = db
	}

	s.pipeline = pipeline.NewService(
		chain,
		extract.NewLinkDiscoverer(fetcher, logger),
		scorer,
		tracker,
		recorder,
		pipeline.Options{
			Politeness:         ext.PolitenessDelay,
			MaxDiscoveredLinks: ext.MaxDiscoveredLinks,
			GeneralQuota:       config.Quota.General,
		},
		logger,
	)

	return s, nil
}

// newAssessor returns nil when no credential is configured.
func newAssessor(ctx context.Context, cfg *AIConfig, timeout time.Duration, logger *zap.Logger) (match.Assessor, error) {
	if cfg == nil || cfg.Gemini == nil {
		logger.Warn("llm is not configured, scoring by similarity only")
		return nil, nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  cfg.Gemini.APIKeyFile,
	})
	if errors.Is(err, secrets.ErrNotConfigured) {
		logger.Warn("llm is not configured, scoring by similarity only",
			zap.String("hint", "set GEMINI_API_KEY, GEMINI_API_KEY_FILE or ai.gemini.api-key-file"),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("building gemini generator: %w", err)
	}

	return ai.NewAssessor(generator, logger.With(zap.String("provider", gemini.ProviderName)), cfg.Gemini.MaxLogLength), nil
}
