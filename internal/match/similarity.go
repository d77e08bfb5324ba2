package match

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spigell/jobscan/internal/domain"
)

// Band maps a minimum number of matched skills to a base score.
type Band struct {
	MinMatches int    `mapstructure:"min-matches"`
	Score      int    `mapstructure:"score"`
	Label      string `mapstructure:"label"`
}

// SimilarityPolicy configures the local fallback scoring.
type SimilarityPolicy struct {
	Bands            []Band `mapstructure:"bands"`
	TechBonusPerTerm int    `mapstructure:"tech-bonus-per-term"`
	TechBonusMax     int    `mapstructure:"tech-bonus-max"`
	Floor            int    `mapstructure:"floor"`
	Ceiling          int    `mapstructure:"ceiling"`
	MaxMissing       int    `mapstructure:"max-missing"`
}

func DefaultSimilarityPolicy() SimilarityPolicy {
	return SimilarityPolicy{
		Bands: []Band{
			{MinMatches: 6, Score: 80, Label: "high"},
			{MinMatches: 4, Score: 70, Label: "medium-high"},
			{MinMatches: 2, Score: 60, Label: "medium"},
			{MinMatches: 1, Score: 45, Label: "low"},
			{MinMatches: 0, Score: 30, Label: "lowest"},
		},
		TechBonusPerTerm: 1,
		TechBonusMax:     5,
		Floor:            30,
		Ceiling:          85,
		MaxMissing:       5,
	}
}

// normalized fills unset fields from the defaults and orders bands from the
// highest requirement down.
func (p SimilarityPolicy) normalized() SimilarityPolicy {
	def := DefaultSimilarityPolicy()
	if len(p.Bands) == 0 {
		p.Bands = def.Bands
	} else {
		p.Bands = slices.Clone(p.Bands)
	}
	slices.SortStableFunc(p.Bands, func(a, b Band) int { return b.MinMatches - a.MinMatches })

	if p.TechBonusPerTerm < 0 {
		p.TechBonusPerTerm = 0
	}
	if p.TechBonusMax < 0 {
		p.TechBonusMax = 0
	}
	if p.Ceiling <= 0 || p.Ceiling > 100 {
		p.Ceiling = def.Ceiling
	}
	if p.Floor < 0 || p.Floor > p.Ceiling {
		p.Floor = def.Floor
	}
	if p.MaxMissing <= 0 {
		p.MaxMissing = def.MaxMissing
	}
	return p
}

// Similarity is the local assessment of one posting.
type Similarity struct {
	Score      int
	Band       string
	Matching   []string
	Missing    []string
	TechTerms  int
	Confidence domain.Confidence
	Narrative  string
}

// Assess scores job against skills without any external call.
func (p SimilarityPolicy) Assess(job domain.JobContent, skills []string) Similarity {
	p = p.normalized()
	text := strings.ToLower(strings.Join(slices.Concat(
		[]string{job.Description}, job.Requirements, job.Qualifications,
	), "\n"))

	matching := make([]string, 0)
	seen := make(map[string]bool)
	for _, skill := range skills {
		key := strings.ToLower(strings.TrimSpace(skill))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if skillInText(text, skill) {
			matching = append(matching, strings.TrimSpace(skill))
		}
	}

	terms := 0
	missing := make([]string, 0)
	for _, term := range TechVocabulary {
		lower := strings.ToLower(term)
		if !containsWord(text, lower) {
			continue
		}
		terms++
		if !covered(skills, lower) && len(missing) < p.MaxMissing {
			missing = append(missing, term)
		}
	}

	band := Band{Score: p.Floor, Label: "lowest"}
	for _, b := range p.Bands {
		if len(matching) >= b.MinMatches {
			band = b
			break
		}
	}

	bonus := min(terms*p.TechBonusPerTerm, p.TechBonusMax)
	score := min(max(band.Score+bonus, p.Floor), p.Ceiling)

	confidence := domain.ConfidenceMedium
	if len(matching) <= 1 {
		confidence = domain.ConfidenceLow
	}

	return Similarity{
		Score:      domain.ClampScore(score),
		Band:       band.Label,
		Matching:   matching,
		Missing:    missing,
		TechTerms:  terms,
		Confidence: confidence,
		Narrative:  narrative(matching, len(skills)),
	}
}

func covered(skills []string, term string) bool {
	for _, s := range skills {
		lower := strings.ToLower(strings.TrimSpace(s))
		if lower == term || containsWord(lower, term) {
			return true
		}
	}
	return false
}

func narrative(matching []string, total int) string {
	if len(matching) == 0 {
		return "No profile skills were found in the posting."
	}

	top := matching
	if len(top) > 3 {
		top = top[:3]
	}
	return fmt.Sprintf("Matched %d of %d profile skills, including %s.", len(matching), total, strings.Join(top, ", "))
}
