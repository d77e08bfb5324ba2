package extract

import (
	"context"
	"errors"
	"fmt"
	stdhtml "html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/logger"
	"github.com/spigell/jobscan/internal/sections"
)

const (
	DefaultAPIMinChars = 200
	probeConcurrency   = 3
)

var (
	errNoCandidates = errors.New("no api endpoint candidates for url")
	errNoPosting    = errors.New("no posting fields in response")
	idSegment       = regexp.MustCompile(`^[A-Za-z0-9_-]*\d[A-Za-z0-9_-]*$`)
	leadingDigits   = regexp.MustCompile(`^\d+`)
	wrapperKeys     = []string{"jobPostingInfo", "job", "posting", "data", "result"}
)

// APIStrategy guesses internal JSON endpoints from the posting URL.
type APIStrategy struct {
	fetcher  *Fetcher
	registry *Registry
	minChars int
	logger   *zap.Logger
}

func NewAPIStrategy(fetcher *Fetcher, registry *Registry, minChars int, log *zap.Logger) *APIStrategy {
	if minChars <= 0 {
		minChars = DefaultAPIMinChars
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &APIStrategy{fetcher: fetcher, registry: registry, minChars: minChars, logger: logger.OrNop(log)}
}

func (s *APIStrategy) Method() domain.ExtractionMethod { return domain.MethodAPI }

func (s *APIStrategy) Attempt(ctx context.Context, ref domain.JobReference) (*Attempt, error) {
	u, err := url.Parse(ref.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	candidates := endpointCandidates(u)
	if len(candidates) == 0 {
		return nil, errNoCandidates
	}

	results := make([]*domain.JobContent, len(candidates))
	errs := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(probeConcurrency)
	for i, endpoint := range candidates {
		g.Go(func() error {
			var payload any
			if err := s.fetcher.GetJSON(ctx, endpoint, &payload); err != nil {
				errs[i] = err
				return nil
			}
			content, err := postingFromJSON(payload)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = content
			return nil
		})
	}
	_ = g.Wait()

	// The first sufficient candidate wins, otherwise the first one that parsed.
	best := -1
	for i, content := range results {
		if content == nil {
			s.logger.Debug("api candidate rejected", zap.String("endpoint", candidates[i]), zap.Error(errs[i]))
			continue
		}
		if utf8.RuneCountInString(content.Description) > s.minChars {
			best = i
			break
		}
		s.logger.Debug("api candidate is too short", zap.String("endpoint", candidates[i]))
		if best < 0 {
			best = i
		}
	}

	if best >= 0 {
		content := results[best]
		s.logger.Debug("api candidate accepted", zap.String("endpoint", candidates[best]))
		if content.Company == "" {
			content.Company = companyFromURL(ref.URL, s.registry.Rule(ref.URL))
		}
		return &Attempt{
			Content:    *content,
			Sufficient: utf8.RuneCountInString(content.Description) > s.minChars,
		}, nil
	}

	return nil, fmt.Errorf("%d api candidates failed: %w", len(candidates), errors.Join(errs...))
}

// endpointCandidates derives JSON endpoints in priority order.
func endpointCandidates(u *url.URL) []string {
	host := strings.ToLower(u.Host)
	segs := pathSegments(u.Path)
	var out []string

	switch {
	case strings.Contains(host, "greenhouse.io"):
		if board, id, ok := segmentAfter(segs, "jobs"); ok {
			out = append(out, fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs/%s", url.PathEscape(board), url.PathEscape(id)))
		}
		if id := u.Query().Get("gh_jid"); id != "" && len(segs) > 0 {
			out = append(out, fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs/%s", url.PathEscape(segs[0]), url.PathEscape(id)))
		}
	case host == "jobs.lever.co":
		if len(segs) >= 2 {
			out = append(out, fmt.Sprintf("https://api.lever.co/v0/postings/%s/%s", url.PathEscape(segs[0]), url.PathEscape(segs[1])))
		}
	case strings.Contains(host, "myworkdayjobs.com"):
		if endpoint := workdayEndpoint(u, segs); endpoint != "" {
			out = append(out, endpoint)
		}
	case strings.Contains(host, "smartrecruiters.com"):
		if len(segs) >= 2 {
			if id := leadingDigits.FindString(segs[1]); id != "" {
				out = append(out, fmt.Sprintf("https://api.smartrecruiters.com/v1/companies/%s/postings/%s", url.PathEscape(segs[0]), id))
			}
		}
	}

	if len(segs) > 0 {
		last := segs[len(segs)-1]
		if idSegment.MatchString(last) && len(last) <= 40 {
			origin := u.Scheme + "://" + u.Host
			for _, pattern := range []string{"/api/jobs/%s", "/api/v1/jobs/%s", "/api/postings/%s"} {
				out = append(out, origin+fmt.Sprintf(pattern, url.PathEscape(last)))
			}
		}
	}

	return out
}

// workdayEndpoint maps https://acme.wd5.myworkdayjobs.com/en-US/External/job/City/Title_R123
// to the CXS endpoint https://acme.wd5.myworkdayjobs.com/wday/cxs/acme/External/job/City/Title_R123.
func workdayEndpoint(u *url.URL, segs []string) string {
	tenant := strings.Split(u.Host, ".")[0]

	jobIdx := -1
	for i, s := range segs {
		if s == "job" {
			jobIdx = i
			break
		}
	}
	if jobIdx < 1 || jobIdx == len(segs)-1 {
		return ""
	}

	site := segs[jobIdx-1]
	rest := strings.Join(segs[jobIdx+1:], "/")
	return fmt.Sprintf("%s://%s/wday/cxs/%s/%s/job/%s", u.Scheme, u.Host, tenant, site, rest)
}

func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// segmentAfter returns the segment before marker and the one after it.
func segmentAfter(segs []string, marker string) (string, string, bool) {
	for i := 1; i < len(segs)-1; i++ {
		if segs[i] == marker {
			return segs[i-1], segs[i+1], true
		}
	}
	return "", "", false
}

// apiPosting lists the key aliases seen across job board APIs. Keys are
// matched case-insensitively by mapstructure.
type apiPosting struct {
	Title         any `mapstructure:"title"`
	JobTitle      any `mapstructure:"jobTitle"`
	PositionTitle any `mapstructure:"positionTitle"`
	Text          any `mapstructure:"text"`
	Name          any `mapstructure:"name"`

	Description      any `mapstructure:"description"`
	JobDescription   any `mapstructure:"jobDescription"`
	Summary          any `mapstructure:"summary"`
	Content          any `mapstructure:"content"`
	DescriptionPlain any `mapstructure:"descriptionPlain"`
	JobAd            any `mapstructure:"jobAd"`
	Lists            any `mapstructure:"lists"`

	Location      any `mapstructure:"location"`
	JobLocation   any `mapstructure:"jobLocation"`
	LocationsText any `mapstructure:"locationsText"`
	Categories    any `mapstructure:"categories"`

	Company            any `mapstructure:"company"`
	Employer           any `mapstructure:"employer"`
	CompanyName        any `mapstructure:"companyName"`
	HiringOrganization any `mapstructure:"hiringOrganization"`
}

func postingFromJSON(payload any) (*domain.JobContent, error) {
	obj := findPosting(payload, 0)
	if obj == nil {
		return nil, errNoPosting
	}

	var p apiPosting
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &p, WeaklyTypedInput: true})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(obj); err != nil {
		return nil, fmt.Errorf("decode posting: %w", err)
	}

	desc := firstNonEmpty(p.DescriptionPlain, p.Description, p.JobDescription, p.Content, p.JobAd, p.Summary)
	desc = htmlToText(desc)
	if lists := listsText(p.Lists); lists != "" {
		desc = strings.TrimSpace(desc + "\n\n" + lists)
	}
	if desc == "" {
		return nil, errNoPosting
	}

	secs := sections.Split(desc)

	return &domain.JobContent{
		Title:          firstNonEmpty(p.Title, p.JobTitle, p.PositionTitle, p.Text, p.Name),
		Company:        firstNonEmpty(p.Company, p.Employer, p.CompanyName, p.HiringOrganization),
		Location:       firstNonEmpty(p.Location, p.JobLocation, p.LocationsText, p.Categories),
		Description:    desc,
		Requirements:   sections.LinesOf(secs, sections.KindRequirements),
		Qualifications: sections.LinesOf(secs, sections.KindQualifications),
		Benefits:       sections.LinesOf(secs, sections.KindBenefits),
	}, nil
}

// findPosting returns the first object that carries a title or description
// key, unwrapping known envelopes and arrays.
func findPosting(v any, depth int) map[string]any {
	if depth > 3 {
		return nil
	}

	switch val := v.(type) {
	case map[string]any:
		for _, k := range []string{"title", "jobTitle", "positionTitle", "description", "jobDescription", "descriptionPlain", "jobAd"} {
			if _, ok := val[k]; ok {
				return val
			}
		}
		for _, k := range wrapperKeys {
			if inner, ok := val[k]; ok {
				if found := findPosting(inner, depth+1); found != nil {
					return found
				}
			}
		}
	case []any:
		if len(val) > 0 {
			return findPosting(val[0], depth+1)
		}
	}

	return nil
}

// textOf flattens strings, {name|text|value|content} objects and lists.
func textOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		for _, k := range []string{"name", "text", "value", "content", "descriptor", "location", "city"} {
			if s := textOf(val[k]); s != "" {
				return s
			}
		}
		if secs, ok := val["sections"]; ok {
			return textOf(secs)
		}
		parts := make([]string, 0)
		for _, k := range []string{"companyDescription", "jobDescription", "qualifications", "additionalInformation"} {
			if s := textOf(val[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := textOf(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// listsText renders Lever style [{text, content}] lists as headed sections.
func listsText(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		body := htmlToText(textOf(m["content"]))
		if body == "" {
			continue
		}
		if header := textOf(m["text"]); header != "" {
			body = header + ":\n" + body
		}
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n\n")
}

func firstNonEmpty(values ...any) string {
	for _, v := range values {
		if s := textOf(v); s != "" {
			return s
		}
	}
	return ""
}

// htmlToText converts HTML, possibly entity-escaped, into line-separated text.
func htmlToText(s string) string {
	if strings.Contains(s, "&lt;") {
		s = stdhtml.UnescapeString(s)
	}
	if !strings.Contains(s, "<") || !strings.Contains(s, ">") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(selectionLines(doc.Selection), "\n")
}
