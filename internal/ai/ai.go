// Package ai holds the provider independent side of LLM scoring: the
// generator contract, prompts and response parsing.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited marks provider refusals that are worth retrying later.
	ErrRateLimited = errors.New("llm rate limited")
	// ErrMalformedResponse is returned when a response does not match the expected schema.
	ErrMalformedResponse = errors.New("malformed llm response")
)

// Generator sends a prompt and returns the textual answer.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// IsRateLimited is the retry predicate for backoff policies.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
