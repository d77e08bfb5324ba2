package domain

import (
	"errors"
	"strings"
)

type Experience struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	DurationText string   `json:"duration_text,omitempty"`
	Description  string   `json:"description,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

type Education struct {
	Degree string `json:"degree"`
	Field  string `json:"field,omitempty"`
}

// RecommendedProfile is a job profile suggested by resume analysis.
type RecommendedProfile struct {
	Title           string  `json:"title"`
	MatchPercentage float64 `json:"match_percentage"`
}

type CareerInsights struct {
	RecommendedProfiles []RecommendedProfile `json:"recommended_job_profiles,omitempty"`
	StrongSkills        []string             `json:"strong_skills,omitempty"`
	CareerLevel         string               `json:"career_level,omitempty"`
}

// CandidateProfile is supplied by the resume processing collaborator and never mutated here.
type CandidateProfile struct {
	Skills         []string        `json:"skills"`
	Experience     []Experience    `json:"experience,omitempty"`
	Education      []Education     `json:"education,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	CareerInsights *CareerInsights `json:"career_insights,omitempty"`
}

// Validate rejects a profile that carries nothing to match against.
func (p CandidateProfile) Validate() error {
	if len(p.NormalizedSkills()) == 0 && strings.TrimSpace(p.Summary) == "" && len(p.Experience) == 0 {
		return errors.New("candidate profile has no skills, summary or experience")
	}
	return nil
}

// NormalizedSkills returns trimmed, deduplicated skills in their original order.
// Technologies listed under experience entries are appended after explicit skills.
func (p CandidateProfile) NormalizedSkills() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(p.Skills))

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}

	for _, s := range p.Skills {
		add(s)
	}
	for _, exp := range p.Experience {
		for _, tech := range exp.Technologies {
			add(tech)
		}
	}

	return out
}
