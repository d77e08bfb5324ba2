package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/logger"
)

const DefaultMaxLinks = 50

var (
	jobPathHints = []string{"/job", "/jobs/", "/position", "/opening", "/careers/", "/vacanc", "/posting"}
	atsHosts     = []string{"greenhouse.io", "lever.co", "myworkdayjobs.com", "smartrecruiters.com", "ashbyhq.com", "amazon.jobs"}
	junkHints    = []string{
		"privacy", "terms", "cookie", "login", "signin", "sign-in", "register",
		"unsubscribe", "preferences", "/alerts", "/settings", "/help", "/legal",
		"mailto:", "javascript:", "/search", "facebook.com", "twitter.com", "linkedin.com/company",
	}
	companyHints = []string{`[class*="company"]`, `[class*="employer"]`, `[data-company]`}
)

// LinkDiscoverer finds posting links on a seed page, standing in for an
// external page scan when no references are supplied.
type LinkDiscoverer struct {
	fetcher *Fetcher
	logger  *zap.Logger
}

func NewLinkDiscoverer(fetcher *Fetcher, log *zap.Logger) *LinkDiscoverer {
	return &LinkDiscoverer{fetcher: fetcher, logger: logger.OrNop(log)}
}

// Discover returns at most limit references in page order.
func (d *LinkDiscoverer) Discover(ctx context.Context, seedURL string, limit int) ([]domain.JobReference, error) {
	if limit <= 0 {
		limit = DefaultMaxLinks
	}

	base, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}

	body, err := d.fetcher.GetHTML(ctx, seedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch seed page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse seed page: %w", err)
	}

	refs := linksFromDocument(doc, base, limit)
	d.logger.Info("discovered job links", zap.String(logger.FieldURL, seedURL), zap.Int("count", len(refs)))

	return refs, nil
}

func linksFromDocument(doc *goquery.Document, base *url.URL, limit int) []domain.JobReference {
	seen := map[string]bool{canonicalURL(base.String()): true}
	refs := make([]domain.JobReference, 0)

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		abs, ok := resolveLink(base, href)
		if !ok || !looksLikePosting(abs) {
			return true
		}

		key := canonicalURL(abs.String())
		if seen[key] {
			return true
		}
		seen[key] = true

		title := CleanText(a.Text())
		if title == "" {
			title, _ = a.Attr("title")
		}

		refs = append(refs, domain.JobReference{
			URL:          key,
			SeedTitle:    title,
			SeedCompany:  nearestCompany(a, abs),
			SeedLocation: nearestText(a, `[class*="location"]`),
		})

		return len(refs) < limit
	})

	return refs
}

func resolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	return abs, true
}

func looksLikePosting(u *url.URL) bool {
	full := strings.ToLower(u.String())
	for _, j := range junkHints {
		if strings.Contains(full, j) {
			return false
		}
	}

	host := strings.ToLower(u.Host)
	path := strings.TrimRight(strings.ToLower(u.Path), "/")
	for _, h := range atsHosts {
		if strings.Contains(host, h) && len(pathSegments(path)) >= 2 {
			return true
		}
	}
	for _, hint := range jobPathHints {
		if idx := strings.Index(path, hint); idx >= 0 && len(path) > idx+len(hint)+1 {
			return true
		}
	}
	return false
}

// nearestCompany looks for a company label in the link's card, falling back to the link host.
func nearestCompany(a *goquery.Selection, u *url.URL) string {
	for _, sel := range companyHints {
		if text := nearestText(a, sel); text != "" {
			return text
		}
	}
	if rule := DefaultRegistry().Rule(u.String()); rule.CompanyFromPath != nil {
		if c := rule.CompanyFromPath(u); c != "" {
			return c
		}
	}
	return companyFromHost(u.Host)
}

func nearestText(a *goquery.Selection, selector string) string {
	card := a.ParentsFiltered("li, article, tr, div").First()
	if card.Length() == 0 {
		return ""
	}
	text := CleanText(card.Find(selector).First().Text())
	if len(text) > 100 {
		return ""
	}
	return text
}
