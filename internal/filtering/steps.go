package filtering

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/domain"
)

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// Absorbs float error in threshold*100, e.g. 0.07*100.
const scoreEpsilon = 1e-9

type thresholdFilter struct {
	toggle
	minScore float64
}

// NewThreshold drops results scoring below threshold*100.
func NewThreshold() Filter {
	return &thresholdFilter{}
}

func (f *thresholdFilter) Name() string { return "threshold" }

func (f *thresholdFilter) Validate(cfg *Config) error {
	f.minScore = 0
	if cfg == nil {
		return nil
	}
	if math.IsNaN(cfg.Threshold) || cfg.Threshold < 0 || cfg.Threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, cfg.Threshold)
	}
	f.minScore = cfg.Threshold * 100
	return nil
}

func (f *thresholdFilter) Apply(_ context.Context, deps Deps, results []domain.MatchResult) ([]domain.MatchResult, Step, error) {
	initial := len(results)
	kept := make([]domain.MatchResult, 0, initial)
	for _, r := range results {
		if float64(r.MatchScore)+scoreEpsilon >= f.minScore {
			kept = append(kept, r)
		}
	}

	if deps.Logger != nil && len(kept) < initial {
		deps.Logger.Debug("dropping results below threshold",
			zap.Float64("min_score", f.minScore),
			zap.Int("results_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

func (f *thresholdFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_score": strconv.FormatFloat(f.minScore, 'f', -1, 64)},
	}
}

type orderFilter struct {
	toggle
}

// NewOrder sorts results by score, highest first. Equal scores keep their input order.
func NewOrder() Filter {
	return &orderFilter{}
}

func (f *orderFilter) Name() string { return "order" }

func (f *orderFilter) Validate(*Config) error { return nil }

func (f *orderFilter) Apply(_ context.Context, _ Deps, results []domain.MatchResult) ([]domain.MatchResult, Step, error) {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b domain.MatchResult) int {
		return b.MatchScore - a.MatchScore
	})
	return sorted, Step{Initial: len(results), Left: len(sorted)}, nil
}

type limitFilter struct {
	toggle
	max int
}

// NewLimit keeps the first MaxResults results.
func NewLimit() Filter {
	return &limitFilter{}
}

func (f *limitFilter) Name() string { return "limit" }

func (f *limitFilter) Validate(cfg *Config) error {
	f.max = 0
	if cfg != nil {
		f.max = cfg.MaxResults
	}
	return nil
}

func (f *limitFilter) Apply(_ context.Context, _ Deps, results []domain.MatchResult) ([]domain.MatchResult, Step, error) {
	initial := len(results)
	if f.max <= 0 || initial <= f.max {
		return results, Step{Initial: initial, Left: initial}, nil
	}
	return results[:f.max], Step{Initial: initial, Dropped: initial - f.max, Left: f.max}, nil
}

func (f *limitFilter) Status() Status {
	details := map[string]string{}
	if f.max > 0 {
		details["max_results"] = strconv.Itoa(f.max)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type rankFilter struct {
	toggle
}

// NewRank numbers results from 1 in their current order.
func NewRank() Filter {
	return &rankFilter{}
}

func (f *rankFilter) Name() string { return "rank" }

func (f *rankFilter) Validate(*Config) error { return nil }

func (f *rankFilter) Apply(_ context.Context, _ Deps, results []domain.MatchResult) ([]domain.MatchResult, Step, error) {
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, Step{Initial: len(results), Left: len(results)}, nil
}

type excludedCompaniesFilter struct {
	toggle
	companies []string
}

// NewExcludedCompanies removes results whose company matches the configured list, ignoring case.
func NewExcludedCompanies() Filter {
	return &excludedCompaniesFilter{}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) Validate(cfg *Config) error {
	f.companies = nil
	if cfg == nil {
		return nil
	}
	for _, c := range cfg.ExcludeCompanies {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			f.companies = append(f.companies, c)
		}
	}
	return nil
}

func (f *excludedCompaniesFilter) Apply(_ context.Context, deps Deps, results []domain.MatchResult) ([]domain.MatchResult, Step, error) {
	initial := len(results)
	if len(f.companies) == 0 {
		return results, Step{Initial: initial, Left: initial}, nil
	}

	kept := make([]domain.MatchResult, 0, initial)
	excluded := make([]string, 0)
	for _, r := range results {
		if slices.Contains(f.companies, strings.ToLower(strings.TrimSpace(r.Job.Company))) {
			excluded = append(excluded, r.Job.URL)
			continue
		}
		kept = append(kept, r)
	}

	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding results by company",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_jobs", excluded),
			zap.Int("results_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(excluded), Left: len(kept)}, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
