package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigValidateCollectsErrors(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Scoring.Threshold = 1.5
	cfg.Quota.LLM.MaxCalls = 0
	cfg.AI.Provider = "openai"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"scoring.threshold", "quota.llm.max-calls", "unsupported ai provider"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestLoadReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	body := `[{"url": "https://boards.greenhouse.io/acme/jobs/1", "seed_title": "Go Engineer"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refs, err := loadReferences(path, []string{" https://jobs.lever.co/acme/2 ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[0].SeedTitle != "Go Engineer" || refs[1].URL != "https://jobs.lever.co/acme/2" {
		t.Fatalf("unexpected references %+v", refs)
	}
}

func TestRedactedHidesAPIKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.AI.Gemini.APIKey = "secret-value"

	if out := redacted(cfg); strings.Contains(out, "secret-value") {
		t.Fatalf("expected api key to be masked, got %s", out)
	}
	if cfg.AI.Gemini.APIKey != "secret-value" {
		t.Fatal("expected original config to be left untouched")
	}
}
