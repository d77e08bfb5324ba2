package match

import (
	"slices"
	"strings"

	"github.com/spigell/jobscan/internal/domain"
)

// DefaultMaxGaps caps the missing skills reported for a batch.
const DefaultMaxGaps = 10

// SkillGap summarizes which in-demand terms of a batch the profile covers.
type SkillGap struct {
	Covered []string `json:"covered_skills"`
	Missing []string `json:"missing_skills"`
	// Coverage is the covered share of demanded terms, 0 when nothing was demanded.
	Coverage float64 `json:"skill_coverage"`
}

// SkillGaps aggregates vocabulary terms over jobs and splits them by whether
// the profile covers them. Missing terms are ordered by how many jobs ask for
// them and capped at limit.
func SkillGaps(jobs []domain.JobContent, profile domain.CandidateProfile, limit int) SkillGap {
	if limit <= 0 {
		limit = DefaultMaxGaps
	}

	demand := make(map[string]int)
	for _, job := range jobs {
		text := strings.ToLower(strings.Join(slices.Concat(
			[]string{job.Title, job.Description}, job.Requirements, job.Qualifications,
		), "\n"))
		for _, term := range TechVocabulary {
			if containsWord(text, strings.ToLower(term)) {
				demand[term]++
			}
		}
	}

	gap := SkillGap{Covered: []string{}, Missing: []string{}}
	if len(demand) == 0 {
		return gap
	}

	skills := profile.NormalizedSkills()
	var missing []string
	for _, term := range TechVocabulary {
		if demand[term] == 0 {
			continue
		}
		if covered(skills, strings.ToLower(term)) {
			gap.Covered = append(gap.Covered, term)
			continue
		}
		missing = append(missing, term)
	}

	slices.SortStableFunc(missing, func(a, b string) int {
		return demand[b] - demand[a]
	})
	if len(missing) > limit {
		missing = missing[:limit]
	}
	if missing != nil {
		gap.Missing = missing
	}
	gap.Coverage = float64(len(gap.Covered)) / float64(len(demand))

	return gap
}
