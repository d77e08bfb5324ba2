package extract

import (
	"net/url"
	"strings"
)

const GenericFamily = "generic"

// SiteRule maps a URL signature to the selectors of one site family.
type SiteRule struct {
	Name        string
	Match       func(u *url.URL) bool
	Title       []string
	Company     []string
	Location    []string
	Description []string
	// CompanyFromPath derives the company from the URL when the page does not show it.
	CompanyFromPath func(u *url.URL) string
}

// Registry is an ordered list of site rules ending with the generic entry.
type Registry struct {
	rules   []SiteRule
	generic SiteRule
}

func NewRegistry(rules ...SiteRule) *Registry {
	return &Registry{
		rules:   rules,
		generic: SiteRule{Name: GenericFamily},
	}
}

// DefaultRegistry knows the common applicant tracking systems.
func DefaultRegistry() *Registry {
	return NewRegistry(
		SiteRule{
			Name:            "greenhouse",
			Match:           hostContains("greenhouse.io", "grnh.se"),
			Title:           []string{".app-title", "h1.section-header", "h1"},
			Company:         []string{".company-name"},
			Location:        []string{".location", ".job__location"},
			Description:     []string{"#content", ".job__description", "#app_body"},
			CompanyFromPath: firstPathSegment,
		},
		SiteRule{
			Name:            "lever",
			Match:           hostContains("jobs.lever.co"),
			Title:           []string{".posting-headline h2", "h2"},
			Location:        []string{".posting-categories .location", ".sort-by-time.posting-category"},
			Description:     []string{".posting-page .content", ".posting-content", ".section-wrapper.page-full-width"},
			CompanyFromPath: firstPathSegment,
		},
		SiteRule{
			Name:     "workday",
			Match:    hostContains("myworkdayjobs.com", "workday"),
			Title:    []string{`[data-automation-id="jobPostingHeader"]`, "h2", "h1"},
			Location: []string{`[data-automation-id="locations"]`},
			Description: []string{
				`[data-automation-id="jobPostingDescription"]`,
				`[data-automation-id="job-posting-details"]`,
			},
			CompanyFromPath: func(u *url.URL) string {
				return companyFromHost(strings.Split(u.Host, ".")[0] + ".com")
			},
		},
		SiteRule{
			Name:            "smartrecruiters",
			Match:           hostContains("smartrecruiters.com"),
			Title:           []string{`h1[itemprop="title"]`, "h1.job-title", "h1"},
			Company:         []string{`[itemprop="hiringOrganization"] [itemprop="name"]`},
			Location:        []string{`[itemprop="jobLocation"]`, ".job-details .location"},
			Description:     []string{`[itemprop="description"]`, ".job-sections"},
			CompanyFromPath: firstPathSegment,
		},
		SiteRule{
			Name:            "ashby",
			Match:           hostContains("jobs.ashbyhq.com"),
			Title:           []string{"h1"},
			Location:        []string{`[class*="_location"]`},
			Description:     []string{`[class*="_descriptionText"]`, `[class*="jobPosting"]`},
			CompanyFromPath: firstPathSegment,
		},
		SiteRule{
			Name:        "amazon",
			Match:       hostContains("amazon.jobs"),
			Title:       []string{"h1.title", "h1"},
			Location:    []string{".location-icon + *", ".location"},
			Description: []string{"#job-detail-body", ".job-detail-body", ".section.description"},
			CompanyFromPath: func(*url.URL) string {
				return "Amazon"
			},
		},
	)
}

// Rule returns the first matching rule or the generic entry.
func (r *Registry) Rule(rawURL string) SiteRule {
	u, err := url.Parse(rawURL)
	if err != nil {
		return r.generic
	}
	for _, rule := range r.rules {
		if rule.Match != nil && rule.Match(u) {
			return rule
		}
	}
	return r.generic
}

// Classify returns the site family of a URL.
func (r *Registry) Classify(rawURL string) string {
	return r.Rule(rawURL).Name
}

func hostContains(needles ...string) func(*url.URL) bool {
	return func(u *url.URL) bool {
		host := strings.ToLower(u.Host)
		for _, n := range needles {
			if strings.Contains(host, n) {
				return true
			}
		}
		return false
	}
}

func firstPathSegment(u *url.URL) string {
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" && seg != "embed" {
			return titleCase(strings.NewReplacer("-", " ", "_", " ").Replace(seg))
		}
	}
	return ""
}
