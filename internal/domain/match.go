package domain

import "strings"

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence maps free-form labels onto the known set, defaulting to medium.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow
	case "high":
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

// Tier is the scoring mode chosen for a whole batch.
type Tier string

const (
	TierLLMEnhanced Tier = "A"
	TierLLMDirect   Tier = "B"
	TierSimilarity  Tier = "C"
)

// Name returns the label used in processing method strings.
func (t Tier) Name() string {
	switch t {
	case TierLLMEnhanced:
		return "llm_enhanced"
	case TierLLMDirect:
		return "llm_direct"
	case TierSimilarity:
		return "similarity"
	default:
		return "unknown"
	}
}

type MatchResult struct {
	ID             string     `json:"id"`
	Job            JobContent `json:"job"`
	MatchScore     int        `json:"match_score"`
	MatchingSkills []string   `json:"matching_skills"`
	MissingSkills  []string   `json:"missing_skills"`
	Narrative      string     `json:"narrative"`
	Confidence     Confidence `json:"confidence"`
	ScoringTier    Tier       `json:"scoring_tier"`
	Rank           int        `json:"rank"`
}

// ClampScore bounds a score to [0,100].
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
