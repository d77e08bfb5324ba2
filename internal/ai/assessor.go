package ai

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/logger"
	"github.com/spigell/jobscan/internal/utils"
)

const defaultMaxLogLength = 200

// Assessor turns postings into LLM prompts and parses the answers.
type Assessor struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewAssessor(generator Generator, log *zap.Logger, maxLogLength int) *Assessor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Assessor{
		generator: generator,
		logger:    logger.OrNop(log),
		maxLogLen: maxLogLength,
	}
}

func (a *Assessor) Model() string {
	if a == nil || a.generator == nil {
		return ""
	}
	return a.generator.Model()
}

// ScoreBatch asks for scores of all jobs in one call. The entries are ordered
// like jobs.
func (a *Assessor) ScoreBatch(ctx context.Context, profile domain.CandidateProfile, jobs []domain.JobContent) ([]ScoreEntry, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	prompt, err := BuildScorePrompt(profile, jobs)
	if err != nil {
		return nil, err
	}

	raw, err := a.generate(ctx, "score batch", prompt, zap.Int("jobs", len(jobs)))
	if err != nil {
		return nil, err
	}

	return ParseScores(raw, len(jobs))
}

// ExtractContext condenses one posting.
func (a *Assessor) ExtractContext(ctx context.Context, job domain.JobContent) (JobContext, error) {
	raw, err := a.generate(ctx, "extract context", BuildContextPrompt(job), zap.String(logger.FieldURL, job.URL))
	if err != nil {
		return JobContext{}, err
	}

	return ParseContext(raw)
}

func (a *Assessor) generate(ctx context.Context, purpose, prompt string, fields ...zap.Field) (string, error) {
	if a == nil || a.generator == nil {
		return "", errors.New("llm generator is not configured")
	}

	a.logger.Debug("llm generate content request", append(fields,
		zap.String("purpose", purpose),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)...)

	raw, err := a.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", purpose, err)
	}

	a.logger.Debug("llm generate content response", append(fields,
		zap.String("purpose", purpose),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)...)

	return raw, nil
}
