package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ScoreEntry is one element of the batched scoring answer.
type ScoreEntry struct {
	JobIndex       int      `mapstructure:"job_index"`
	MatchScore     float64  `mapstructure:"match_score"`
	MatchingSkills []string `mapstructure:"matching_skills"`
	MissingSkills  []string `mapstructure:"missing_skills"`
	Summary        string   `mapstructure:"summary"`
	Confidence     string   `mapstructure:"confidence"`
}

// JobContext is the condensed view of one posting returned by context extraction.
type JobContext struct {
	Summary          string   `mapstructure:"summary"`
	Responsibilities []string `mapstructure:"responsibilities"`
	Requirements     []string `mapstructure:"requirements"`
	Skills           []string `mapstructure:"skills"`
	Seniority        string   `mapstructure:"seniority"`
}

// Describe renders the context as a compact posting description.
func (c JobContext) Describe() string {
	var parts []string
	if s := strings.TrimSpace(c.Summary); s != "" {
		parts = append(parts, "Summary: "+s)
	}
	if len(c.Responsibilities) > 0 {
		parts = append(parts, "Responsibilities:\n- "+strings.Join(c.Responsibilities, "\n- "))
	}
	if len(c.Requirements) > 0 {
		parts = append(parts, "Requirements:\n- "+strings.Join(c.Requirements, "\n- "))
	}
	if len(c.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(c.Skills, ", "))
	}
	if s := strings.TrimSpace(c.Seniority); s != "" && s != "unknown" {
		parts = append(parts, "Seniority: "+s)
	}
	return strings.Join(parts, "\n\n")
}

// ExtractJSON strips markdown fences and any prose around the outermost JSON value.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	if raw == "" || raw[0] == '[' || raw[0] == '{' {
		return raw
	}

	start := strings.IndexAny(raw, "[{")
	end := strings.LastIndexAny(raw, "]}")
	if start == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}

// ParseScores decodes a batched answer for n jobs. Every index in [0,n) must
// appear exactly once.
func ParseScores(raw string, n int) ([]ScoreEntry, error) {
	var payload any
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode scores: %v", ErrMalformedResponse, err)
	}

	items, ok := payload.([]any)
	if !ok {
		if obj, isObj := payload.(map[string]any); isObj {
			items, ok = obj["results"].([]any)
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of results", ErrMalformedResponse)
	}

	byIndex := make([]*ScoreEntry, n)
	for _, item := range items {
		var entry ScoreEntry
		if err := weakDecode(item, &entry); err != nil {
			return nil, fmt.Errorf("%w: decode score entry: %v", ErrMalformedResponse, err)
		}
		if entry.JobIndex < 0 || entry.JobIndex >= n {
			return nil, fmt.Errorf("%w: job index %d out of range", ErrMalformedResponse, entry.JobIndex)
		}
		if byIndex[entry.JobIndex] != nil {
			return nil, fmt.Errorf("%w: duplicate job index %d", ErrMalformedResponse, entry.JobIndex)
		}
		byIndex[entry.JobIndex] = &entry
	}

	out := make([]ScoreEntry, n)
	for i, entry := range byIndex {
		if entry == nil {
			return nil, fmt.Errorf("%w: missing job index %d", ErrMalformedResponse, i)
		}
		out[i] = *entry
	}

	return out, nil
}

// ParseContext decodes a context extraction answer.
func ParseContext(raw string) (JobContext, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &payload); err != nil {
		return JobContext{}, fmt.Errorf("%w: decode context: %v", ErrMalformedResponse, err)
	}

	var jc JobContext
	if err := weakDecode(payload, &jc); err != nil {
		return JobContext{}, fmt.Errorf("%w: decode context: %v", ErrMalformedResponse, err)
	}

	if strings.TrimSpace(jc.Summary) == "" && len(jc.Requirements) == 0 && len(jc.Responsibilities) == 0 {
		return JobContext{}, fmt.Errorf("%w: empty context", ErrMalformedResponse)
	}

	return jc, nil
}

func weakDecode(input, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
