package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/jobscan/internal/domain"
)

//go:embed score_prompt.md
var scorePromptTemplate string

//go:embed context_prompt.md
var contextPromptTemplate string

type promptProfile struct {
	Skills         []string                    `json:"skills"`
	Summary        string                      `json:"summary,omitempty"`
	Experience     []domain.Experience         `json:"experience,omitempty"`
	Education      []domain.Education          `json:"education,omitempty"`
	StrongSkills   []string                    `json:"strong_skills,omitempty"`
	CareerLevel    string                      `json:"career_level,omitempty"`
	TargetProfiles []domain.RecommendedProfile `json:"target_profiles,omitempty"`
}

type promptJob struct {
	JobIndex       int      `json:"job_index"`
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description"`
	Requirements   []string `json:"requirements,omitempty"`
	Qualifications []string `json:"qualifications,omitempty"`
}

// BuildScorePrompt renders the batched scoring prompt. Jobs are indexed by
// their position in jobs.
func BuildScorePrompt(profile domain.CandidateProfile, jobs []domain.JobContent) (string, error) {
	pp := promptProfile{
		Skills:     profile.NormalizedSkills(),
		Summary:    strings.TrimSpace(profile.Summary),
		Experience: profile.Experience,
		Education:  profile.Education,
	}
	if ci := profile.CareerInsights; ci != nil {
		pp.StrongSkills = ci.StrongSkills
		pp.CareerLevel = ci.CareerLevel
		pp.TargetProfiles = ci.RecommendedProfiles
	}

	profileJSON, err := json.MarshalIndent(pp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile payload: %w", err)
	}

	pj := make([]promptJob, 0, len(jobs))
	for i, job := range jobs {
		pj = append(pj, promptJob{
			JobIndex:       i,
			Title:          job.DisplayTitle(),
			Company:        job.DisplayCompany(),
			Location:       job.Location,
			Description:    job.Description,
			Requirements:   job.Requirements,
			Qualifications: job.Qualifications,
		})
	}

	jobsJSON, err := json.MarshalIndent(pj, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal jobs payload: %w", err)
	}

	return strings.NewReplacer(
		"{{PROFILE_JSON}}", string(profileJSON),
		"{{JOBS_JSON}}", string(jobsJSON),
		"{{JOB_COUNT}}", strconv.Itoa(len(jobs)),
		"{{LAST_INDEX}}", strconv.Itoa(len(jobs)-1),
	).Replace(scorePromptTemplate), nil
}

// BuildContextPrompt renders the per job context extraction prompt.
func BuildContextPrompt(job domain.JobContent) string {
	return strings.NewReplacer(
		"{{JOB_TITLE}}", job.DisplayTitle(),
		"{{COMPANY}}", job.DisplayCompany(),
		"{{DESCRIPTION}}", job.Description,
	).Replace(contextPromptTemplate)
}
