package extract

import (
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/jobscan/internal/sections"
)

const (
	strippedSelectors = "nav, footer, header, script, style, noscript, iframe, svg, form, aside, " +
		`[role="navigation"], [role="banner"], [role="contentinfo"]`
	appRootSelectors = `#root, #app, #__next, #__nuxt, [ng-app], app-root, [data-reactroot]`

	minLineChars      = 30
	maxFallbackLines  = 50
	minContainerChars = 100
	keywordTrail      = 2
)

var (
	genericTitle    = []string{"h1", `meta[property="og:title"]`, `[class*="job-title"]`, `[class*="jobTitle"]`}
	genericCompany  = []string{`meta[property="og:site_name"]`, `[class*="company-name"]`, `[class*="companyName"]`, `[itemprop="hiringOrganization"]`}
	genericLocation = []string{`[class*="location"]`, `[data-automation-id="locations"]`, `[itemprop="jobLocation"]`}

	contentSelectors = []string{
		"main", "article", ".content", ".job-description", ".job-details", ".description",
		"#content", ".main-content", ".posting-content", ".job-content",
		`[class*="description"]`, `[class*="posting"]`,
	}
)

// Parsed is the structured view of one page.
type Parsed struct {
	Title          string
	Company        string
	Location       string
	Description    string
	Requirements   []string
	Qualifications []string
	Benefits       []string
	Family         string
	// Dynamic is set when the page looks like an unrendered single page app.
	Dynamic bool
	// Heuristic names the step that produced Description.
	Heuristic string
}

type Parser struct {
	registry *Registry
}

func NewParser(registry *Registry) *Parser {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Parser{registry: registry}
}

// Parse extracts posting fields from an HTML document served at rawURL.
func (p *Parser) Parse(rawURL string, r io.Reader) (*Parsed, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	rule := p.registry.Rule(rawURL)
	out := &Parsed{Family: rule.Name, Dynamic: looksDynamic(doc)}

	out.Title = firstText(doc, slices.Concat(rule.Title, genericTitle), 200)
	if out.Title == "" {
		out.Title = titleFromHead(doc)
	}

	out.Company = firstText(doc, slices.Concat(rule.Company, genericCompany), 100)
	if out.Company == "" {
		out.Company = companyFromURL(rawURL, rule)
	}

	out.Location = strings.TrimSpace(strings.TrimPrefix(
		firstText(doc, slices.Concat(rule.Location, genericLocation), 120), "Location:"))

	doc.Find(strippedSelectors).Remove()

	var secs []sections.Section
	if lines := ruleLines(doc, rule.Description); len(lines) > 0 {
		grouped, matched := sections.Group(lines)
		if matched {
			secs = grouped
			out.Description = sections.Render(grouped)
		} else {
			out.Description = strings.Join(lines, "\n")
		}
		out.Heuristic = "rule"
	}

	if out.Description == "" {
		out.Description, secs, out.Heuristic = universal(doc)
	}

	out.Requirements = sections.LinesOf(secs, sections.KindRequirements)
	out.Requirements = append(out.Requirements, sections.LinesOf(secs, sections.KindResponsibilities)...)
	out.Qualifications = sections.LinesOf(secs, sections.KindQualifications)
	out.Benefits = sections.LinesOf(secs, sections.KindBenefits)

	return out, nil
}

func ruleLines(doc *goquery.Document, selectors []string) []string {
	for _, s := range selectors {
		if lines := selectionLines(doc.Find(s).First()); len(lines) > 0 {
			return lines
		}
	}
	return nil
}

// universal runs the heuristic steps in order and returns the first non-empty description.
func universal(doc *goquery.Document) (string, []sections.Section, string) {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	lines := selectionLines(body)

	if secs, matched := sections.Group(lines); matched {
		kept := make([]sections.Section, 0, len(secs))
		for _, s := range secs {
			if s.Header == "" {
				s.Lines = filterLines(s.Lines, len(s.Lines))
				if len(s.Lines) == 0 {
					continue
				}
			}
			kept = append(kept, s)
		}
		if desc := sections.Render(kept); desc != "" {
			return desc, kept, "sections"
		}
	}

	if desc := keywordProximity(lines); desc != "" {
		return desc, nil, "keywords"
	}

	if desc := largestContainer(doc); desc != "" {
		return desc, nil, "container"
	}

	return strings.Join(filterLines(lines, maxFallbackLines), "\n"), nil, "lines"
}

func keywordProximity(lines []string) string {
	picked := make(map[int]bool)
	order := make([]int, 0)

	for i, line := range lines {
		if len(line) < 20 || !sections.IsJobIndicator(line) || sections.HasStopWord(line) {
			continue
		}
		for j := i; j < len(lines) && j <= i+keywordTrail; j++ {
			if picked[j] || len(lines[j]) < 20 || sections.HasStopWord(lines[j]) {
				continue
			}
			picked[j] = true
			order = append(order, j)
		}
	}

	if len(order) < 2 {
		return ""
	}

	slices.Sort(order)
	out := make([]string, 0, len(order))
	for _, idx := range order {
		out = append(out, lines[idx])
	}
	return strings.Join(out, "\n")
}

func largestContainer(doc *goquery.Document) string {
	best := ""
	for _, s := range contentSelectors {
		doc.Find(s).Each(func(_ int, sel *goquery.Selection) {
			text := strings.Join(selectionLines(sel), "\n")
			if len(text) > minContainerChars && len(text) > len(best) {
				best = text
			}
		})
	}
	return best
}

func filterLines(lines []string, limit int) []string {
	out := make([]string, 0)
	for _, line := range lines {
		if len(out) >= limit {
			break
		}
		if len(line) > minLineChars && !sections.HasStopWord(line) {
			out = append(out, line)
		}
	}
	return out
}

// looksDynamic flags pages whose content is rendered client side.
func looksDynamic(doc *goquery.Document) bool {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	textLen := len(strings.Join(selectionLines(body), " "))
	scripts := doc.Find("script").Length()
	appRoot := doc.Find(appRootSelectors).Length() > 0

	switch {
	case textLen < 200:
		return true
	case appRoot && textLen < 1000:
		return true
	case scripts >= 15 && textLen < 1000:
		return true
	default:
		return false
	}
}

func titleFromHead(doc *goquery.Document) string {
	title := CleanText(doc.Find("title").First().Text())
	for _, sep := range []string{" | ", " - ", " – "} {
		if before, _, ok := strings.Cut(title, sep); ok {
			return strings.TrimSpace(before)
		}
	}
	return title
}

func companyFromURL(rawURL string, rule SiteRule) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if rule.CompanyFromPath != nil {
		if c := rule.CompanyFromPath(u); c != "" {
			return c
		}
	}
	return companyFromHost(u.Host)
}
