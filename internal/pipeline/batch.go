package pipeline

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/extract"
	"github.com/spigell/jobscan/internal/match"
	"github.com/spigell/jobscan/internal/quota"
)

// Batch is one processed request.
type Batch struct {
	ID               string                          `json:"id"`
	Results          []domain.MatchResult            `json:"results"`
	ProcessingMethod string                          `json:"processing_method"`
	Tier             domain.Tier                     `json:"tier"`
	Degraded         bool                            `json:"degraded"`
	DegradeReason    string                          `json:"degrade_reason,omitempty"`
	Elapsed          time.Duration                   `json:"elapsed"`
	ExtractionStats  map[domain.ExtractionMethod]int `json:"extraction_stats"`
	SkillGap         match.SkillGap                  `json:"skill_gap"`
	CreatedAt        time.Time                       `json:"created_at"`
}

type Request struct {
	Identity       string
	References     []domain.JobReference
	SeedURL        string
	Profile        domain.CandidateProfile
	MatchThreshold float64
	MaxResults     int
}

type Response struct {
	BatchID          string               `json:"batch_id"`
	Results          []domain.MatchResult `json:"results"`
	ProcessingMethod string               `json:"processing_method"`
	Elapsed          time.Duration        `json:"elapsed"`
	SkillGap         match.SkillGap       `json:"skill_gap"`
	Usage            quota.Usage          `json:"usage"`
}

// SingleJob is the outcome of extracting one posting without scoring.
type SingleJob struct {
	Content     domain.JobContent   `json:"content"`
	Diagnostics extract.Diagnostics `json:"diagnostics"`
	Elapsed     time.Duration       `json:"elapsed"`
}

var methodOrder = []domain.ExtractionMethod{
	domain.MethodStatic,
	domain.MethodHeadless,
	domain.MethodAPI,
	domain.MethodFailed,
}

// processingMethod renders e.g. "llm_direct+static:3,headless:1".
func processingMethod(tier domain.Tier, stats map[domain.ExtractionMethod]int) string {
	parts := make([]string, 0, len(methodOrder))
	for _, m := range methodOrder {
		if n := stats[m]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", m, n))
		}
	}
	if len(parts) == 0 {
		return tier.Name()
	}
	return tier.Name() + "+" + strings.Join(parts, ",")
}

var placeholders = []string{
	"could not be extracted",
	"no description available",
	"description not available",
	"javascript rendering issue",
	"page may require user interaction",
}

// isPlaceholder reports descriptions that only say content is missing.
func isPlaceholder(desc string) bool {
	desc = strings.ToLower(strings.TrimSpace(desc))
	if desc == "" {
		return true
	}
	if utf8.RuneCountInString(desc) > 200 {
		return false
	}
	for _, p := range placeholders {
		if strings.Contains(desc, p) {
			return true
		}
	}
	return false
}

// usable keeps fetched content and failures that still carry a seed summary.
func usable(content domain.JobContent, ref domain.JobReference) bool {
	if content.FetchSucceeded {
		return !isPlaceholder(content.Description)
	}
	return strings.TrimSpace(ref.SeedSummary) != ""
}
