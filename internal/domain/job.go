package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ExtractionMethod names the strategy that produced a JobContent.
type ExtractionMethod string

const (
	MethodStatic   ExtractionMethod = "static"
	MethodHeadless ExtractionMethod = "headless"
	MethodAPI      ExtractionMethod = "api"
	MethodFailed   ExtractionMethod = "failed"
)

// JobReference is the identifying data known about a posting before extraction.
type JobReference struct {
	URL          string `json:"url"`
	SeedTitle    string `json:"seed_title,omitempty"`
	SeedCompany  string `json:"seed_company,omitempty"`
	SeedLocation string `json:"seed_location,omitempty"`
	SeedSummary  string `json:"seed_summary,omitempty"`
}

// Validate reports whether the reference carries a fetchable http(s) URL.
func (r JobReference) Validate() error {
	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return errors.New("job reference url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse job reference url %q: %w", raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("job reference url %q must use http or https", raw)
	}

	if u.Host == "" {
		return fmt.Errorf("job reference url %q has no host", raw)
	}

	return nil
}

// JobContent is the normalized result of extraction.
// Description is never empty: failed extractions carry a diagnostic text.
type JobContent struct {
	ID               string           `json:"id"`
	URL              string           `json:"url"`
	Title            string           `json:"title"`
	Company          string           `json:"company"`
	Location         string           `json:"location,omitempty"`
	Description      string           `json:"description"`
	Requirements     []string         `json:"requirements,omitempty"`
	Qualifications   []string         `json:"qualifications,omitempty"`
	Benefits         []string         `json:"benefits,omitempty"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	FetchSucceeded   bool             `json:"fetch_succeeded"`
	FetchedAtOffset  time.Duration    `json:"fetched_at_offset"`
	SiteFamily       string           `json:"site_family,omitempty"`
}

// DisplayTitle falls back to a neutral label when extraction could not find a title.
func (j JobContent) DisplayTitle() string {
	if t := strings.TrimSpace(j.Title); t != "" {
		return t
	}
	return "Unknown position"
}

// DisplayCompany falls back to a neutral label when extraction could not find a company.
func (j JobContent) DisplayCompany() string {
	if c := strings.TrimSpace(j.Company); c != "" {
		return c
	}
	return "Unknown company"
}
