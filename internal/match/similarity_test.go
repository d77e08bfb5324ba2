package match

import (
	"slices"
	"testing"

	"github.com/spigell/jobscan/internal/domain"
)

func TestSimilarityBackendPosting(t *testing.T) {
	job := domain.JobContent{Description: "Backend developer needed. Must know Python and AWS well."}

	got := DefaultSimilarityPolicy().Assess(job, []string{"Python", "AWS", "React"})

	if got.Band != "medium" {
		t.Fatalf("expected medium band, got %q", got.Band)
	}
	if got.Score != 62 {
		t.Fatalf("expected score 62, got %d", got.Score)
	}
	if !slices.Equal(got.Matching, []string{"Python", "AWS"}) {
		t.Fatalf("unexpected matching skills %v", got.Matching)
	}
	if len(got.Missing) != 0 {
		t.Fatalf("expected no missing skills, got %v", got.Missing)
	}
	if got.Confidence != domain.ConfidenceMedium {
		t.Fatalf("expected medium confidence, got %s", got.Confidence)
	}
}

func TestSimilarityBands(t *testing.T) {
	tests := []struct {
		name       string
		skills     []string
		text       string
		score      int
		band       string
		confidence domain.Confidence
	}{
		{
			name:       "nothing matches",
			skills:     []string{"Cobol"},
			text:       "We need a baker for the morning shift.",
			score:      30,
			band:       "lowest",
			confidence: domain.ConfidenceLow,
		},
		{
			name:       "single match",
			skills:     []string{"Baking"},
			text:       "Baking bread every morning.",
			score:      45,
			band:       "low",
			confidence: domain.ConfidenceLow,
		},
		{
			name:       "ceiling",
			skills:     []string{"Python", "Java", "Docker", "Kubernetes", "Terraform", "Kafka"},
			text:       "Python, Java, Docker, Kubernetes, Terraform and Kafka.",
			score:      85,
			band:       "high",
			confidence: domain.ConfidenceMedium,
		},
		{
			name:       "short skill needs word boundary",
			skills:     []string{"Go"},
			text:       "Google cloud experience.",
			score:      30,
			band:       "lowest",
			confidence: domain.ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultSimilarityPolicy().Assess(domain.JobContent{Description: tt.text}, tt.skills)
			if got.Score != tt.score || got.Band != tt.band || got.Confidence != tt.confidence {
				t.Fatalf("expected %d/%s/%s, got %d/%s/%s", tt.score, tt.band, tt.confidence, got.Score, got.Band, got.Confidence)
			}
		})
	}
}

func TestSimilarityMissingIsCapped(t *testing.T) {
	job := domain.JobContent{Description: "Python Java Rust Ruby PHP Kotlin Swift"}

	got := DefaultSimilarityPolicy().Assess(job, nil)

	want := []string{"Python", "Java", "Rust", "Ruby", "PHP"}
	if !slices.Equal(got.Missing, want) {
		t.Fatalf("expected %v, got %v", want, got.Missing)
	}
	if got.Score != 35 {
		t.Fatalf("expected floor plus capped bonus, got %d", got.Score)
	}
}

func TestSimilaritySearchesRequirements(t *testing.T) {
	job := domain.JobContent{
		Description:  "Join our team.",
		Requirements: []string{"Strong PostgreSQL skills"},
	}

	got := DefaultSimilarityPolicy().Assess(job, []string{"postgresql"})
	if len(got.Matching) != 1 {
		t.Fatalf("expected requirement text to be searched, got %v", got.Matching)
	}
}

func TestSimilarityPolicyNormalized(t *testing.T) {
	p := SimilarityPolicy{
		Bands:   []Band{{MinMatches: 1, Score: 50, Label: "some"}, {MinMatches: 3, Score: 75, Label: "many"}},
		Ceiling: 200,
		Floor:   -5,
	}

	n := p.normalized()
	if n.Bands[0].Label != "many" {
		t.Fatalf("expected bands ordered by requirement, got %+v", n.Bands)
	}
	if n.Ceiling != 85 || n.Floor != 30 || n.MaxMissing != 5 {
		t.Fatalf("unexpected normalized policy %+v", n)
	}
	if p.Bands[0].Label != "some" {
		t.Fatal("expected caller bands to be left untouched")
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, term string
		want       bool
	}{
		{"we write go daily", "go", true},
		{"google", "go", false},
		{"c++ and c#", "c++", true},
		{"node.js services", "node.js", true},
		{"ci/cd pipelines", "ci/cd", true},
		{"restful apis", "rest", false},
		{"", "go", false},
	}

	for _, tt := range tests {
		if got := containsWord(tt.text, tt.term); got != tt.want {
			t.Fatalf("containsWord(%q, %q) = %v, want %v", tt.text, tt.term, got, tt.want)
		}
	}
}
