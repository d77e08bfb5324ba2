package extract

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/spigell/jobscan/internal/domain"
)

const DefaultStaticMinChars = 500

// StaticStrategy fetches the page over plain HTTP and parses the served HTML.
type StaticStrategy struct {
	fetcher  *Fetcher
	parser   *Parser
	minChars int
}

func NewStaticStrategy(fetcher *Fetcher, parser *Parser, minChars int) *StaticStrategy {
	if minChars <= 0 {
		minChars = DefaultStaticMinChars
	}
	return &StaticStrategy{fetcher: fetcher, parser: parser, minChars: minChars}
}

func (s *StaticStrategy) Method() domain.ExtractionMethod { return domain.MethodStatic }

func (s *StaticStrategy) Attempt(ctx context.Context, ref domain.JobReference) (*Attempt, error) {
	body, err := s.fetcher.GetHTML(ctx, ref.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	parsed, err := s.parser.Parse(ref.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	return &Attempt{
		Content:    contentFromParsed(parsed),
		Sufficient: utf8.RuneCountInString(parsed.Description) > s.minChars && !parsed.Dynamic,
		Dynamic:    parsed.Dynamic,
	}, nil
}
