package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/logger"
)

// ErrExhausted is reported in diagnostics when no strategy produced sufficient content.
var ErrExhausted = errors.New("all extraction strategies exhausted")

// Attempt is the outcome of one strategy for one reference.
type Attempt struct {
	Content    domain.JobContent
	Sufficient bool
	Dynamic    bool
}

// Strategy turns a reference into content. Implementations hold no per-call
// state and report network, parse and timeout problems as errors.
type Strategy interface {
	Method() domain.ExtractionMethod
	Attempt(ctx context.Context, ref domain.JobReference) (*Attempt, error)
}

type AttemptReport struct {
	Method     domain.ExtractionMethod `json:"method"`
	Sufficient bool                    `json:"sufficient"`
	Dynamic    bool                    `json:"dynamic,omitempty"`
	Chars      int                     `json:"chars"`
	Err        string                  `json:"error,omitempty"`
}

type Diagnostics struct {
	Method     domain.ExtractionMethod `json:"method"`
	SiteFamily string                  `json:"site_family"`
	Attempts   []AttemptReport         `json:"attempts"`
	Err        error                   `json:"-"`
}

// Chain runs strategies in order and stops at the first sufficient attempt.
type Chain struct {
	strategies []Strategy
	registry   *Registry
	logger     *zap.Logger
}

func NewChain(registry *Registry, log *zap.Logger, strategies ...Strategy) *Chain {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Chain{
		strategies: strategies,
		registry:   registry,
		logger:     logger.OrNop(log),
	}
}

// Registry exposes the site classification used by the chain.
func (c *Chain) Registry() *Registry {
	return c.registry
}

// Extract always returns content with a non-empty description. Strategy
// failures are recorded in the diagnostics and never returned.
func (c *Chain) Extract(ctx context.Context, ref domain.JobReference) (domain.JobContent, Diagnostics) {
	family := c.registry.Classify(ref.URL)
	diag := Diagnostics{SiteFamily: family}
	log := logger.WithFields(c.logger, logger.JobFields(ref.URL, family)...)

	for _, s := range c.strategies {
		if ctx.Err() != nil {
			diag.Attempts = append(diag.Attempts, AttemptReport{Method: s.Method(), Err: ctx.Err().Error()})
			break
		}

		attempt, err := s.Attempt(ctx, ref)
		report := AttemptReport{Method: s.Method()}

		if err != nil {
			report.Err = err.Error()
			diag.Attempts = append(diag.Attempts, report)
			log.Info("extraction attempt failed",
				zap.String(logger.FieldMethod, string(s.Method())),
				zap.Error(err),
			)
			continue
		}

		report.Sufficient = attempt.Sufficient
		report.Dynamic = attempt.Dynamic
		report.Chars = utf8.RuneCountInString(attempt.Content.Description)
		diag.Attempts = append(diag.Attempts, report)

		log.Info("extraction attempt",
			zap.String(logger.FieldMethod, string(s.Method())),
			zap.Bool("sufficient", attempt.Sufficient),
			zap.Bool("dynamic", attempt.Dynamic),
			zap.Int("chars", report.Chars),
		)

		if attempt.Sufficient {
			content := finalize(attempt.Content, ref, s.Method(), family)
			diag.Method = content.ExtractionMethod
			return content, diag
		}
	}

	diag.Method = domain.MethodFailed
	diag.Err = ErrExhausted
	log.Warn("extraction exhausted", zap.Int("attempts", len(diag.Attempts)))

	return failedContent(ref, family, diag.Attempts), diag
}

func finalize(content domain.JobContent, ref domain.JobReference, method domain.ExtractionMethod, family string) domain.JobContent {
	content.ID = uuid.NewString()
	content.URL = ref.URL
	content.ExtractionMethod = method
	content.FetchSucceeded = true
	content.SiteFamily = family

	if content.Title == "" {
		content.Title = strings.TrimSpace(ref.SeedTitle)
	}
	if content.Company == "" {
		content.Company = strings.TrimSpace(ref.SeedCompany)
	}
	if content.Location == "" {
		content.Location = strings.TrimSpace(ref.SeedLocation)
	}

	return content
}

func failedContent(ref domain.JobReference, family string, attempts []AttemptReport) domain.JobContent {
	reasons := make([]string, 0, len(attempts))
	for _, a := range attempts {
		switch {
		case a.Err != "":
			reasons = append(reasons, fmt.Sprintf("%s: %s", a.Method, a.Err))
		default:
			reasons = append(reasons, fmt.Sprintf("%s: insufficient content (%d chars)", a.Method, a.Chars))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no extraction strategy available")
	}

	desc := fmt.Sprintf("Extraction failed for %s: %s", ref.URL, strings.Join(reasons, "; "))
	if summary := strings.TrimSpace(ref.SeedSummary); summary != "" {
		desc += "\n\nSummary: " + summary
	}

	return domain.JobContent{
		ID:               uuid.NewString(),
		URL:              ref.URL,
		Title:            strings.TrimSpace(ref.SeedTitle),
		Company:          strings.TrimSpace(ref.SeedCompany),
		Location:         strings.TrimSpace(ref.SeedLocation),
		Description:      desc,
		ExtractionMethod: domain.MethodFailed,
		FetchSucceeded:   false,
		SiteFamily:       family,
	}
}

// contentFromParsed maps parser output onto a JobContent.
func contentFromParsed(p *Parsed) domain.JobContent {
	return domain.JobContent{
		Title:          p.Title,
		Company:        p.Company,
		Location:       p.Location,
		Description:    p.Description,
		Requirements:   p.Requirements,
		Qualifications: p.Qualifications,
		Benefits:       p.Benefits,
	}
}
