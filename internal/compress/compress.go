package compress

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/sections"
	"github.com/spigell/jobscan/internal/utils"
)

const (
	DefaultThreshold       = 2000
	DefaultEssentialBudget = 1200
	DefaultAncillaryBudget = 300
	DefaultCeiling         = 1500
)

// Options bound the size of compressed descriptions, in runes.
type Options struct {
	Threshold       int `mapstructure:"threshold"`
	EssentialBudget int `mapstructure:"essential-budget"`
	AncillaryBudget int `mapstructure:"ancillary-budget"`
	Ceiling         int `mapstructure:"ceiling"`
}

func DefaultOptions() Options {
	return Options{
		Threshold:       DefaultThreshold,
		EssentialBudget: DefaultEssentialBudget,
		AncillaryBudget: DefaultAncillaryBudget,
		Ceiling:         DefaultCeiling,
	}
}

type Compressor struct {
	opts Options
}

// New fills zero options with defaults. The ceiling is kept below the
// threshold so a compressed description is never compressed again.
func New(opts Options) *Compressor {
	def := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.EssentialBudget <= 0 {
		opts.EssentialBudget = def.EssentialBudget
	}
	if opts.AncillaryBudget < 0 {
		opts.AncillaryBudget = 0
	} else if opts.AncillaryBudget == 0 {
		opts.AncillaryBudget = def.AncillaryBudget
	}
	if opts.Ceiling <= 0 {
		opts.Ceiling = def.Ceiling
	}
	if opts.Ceiling >= opts.Threshold {
		opts.Ceiling = opts.Threshold - 1
	}
	return &Compressor{opts: opts}
}

// Compress returns job with a bounded description that keeps requirement
// sections first. Short descriptions are returned unchanged.
func (c *Compressor) Compress(job domain.JobContent) domain.JobContent {
	if utf8.RuneCountInString(job.Description) < c.opts.Threshold {
		return job
	}

	header := fmt.Sprintf("Position: %s at %s", job.DisplayTitle(), job.DisplayCompany())

	var essential, ancillary budgeted
	essential.limit = c.opts.EssentialBudget
	ancillary.limit = c.opts.AncillaryBudget

	secs := sections.Split(job.Description)
	for _, sec := range secs {
		if isEssential(sec) {
			essential.add(sec.Text())
		} else {
			ancillary.add(sec.Text())
		}
	}

	fallback := essential.used == 0
	if fallback {
		essential.add(job.Description)
	}

	body := essential.String()
	if !fallback && essential.used < essential.limit && ancillary.used > 0 {
		body += "\n\n" + ancillary.String()
	}

	bodyLimit := c.opts.Ceiling - utf8.RuneCountInString(header) - 2
	if bodyLimit < 0 {
		header = utils.TruncateRunes(header, c.opts.Ceiling)
		bodyLimit = 0
	}

	out := header
	if body = strings.TrimSpace(utils.TruncateRunes(body, bodyLimit)); body != "" {
		out += "\n\n" + body
	}

	job.Description = out
	return job
}

func isEssential(sec sections.Section) bool {
	switch sec.Kind {
	case sections.KindBenefits, sections.KindAbout:
		return false
	case sections.KindOther:
		return sections.HasEssentialTerms(sec.Body())
	default:
		return sec.Kind.Essential()
	}
}

type budgeted struct {
	parts []string
	used  int
	limit int
}

func (b *budgeted) add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	sep := 0
	if len(b.parts) > 0 {
		sep = 2
	}

	remaining := b.limit - b.used - sep
	if remaining <= 0 {
		return
	}

	n := utf8.RuneCountInString(text)
	if n > remaining {
		text = cutAtWord(text, remaining)
		n = utf8.RuneCountInString(text)
		if n == 0 {
			return
		}
	}

	b.parts = append(b.parts, text)
	b.used += n + sep
}

func (b *budgeted) String() string {
	return strings.Join(b.parts, "\n\n")
}

// cutAtWord truncates to limit runes, backing off to the last space when one is close.
func cutAtWord(s string, limit int) string {
	cut := utils.TruncateRunes(s, limit)
	if idx := strings.LastIndexAny(cut, " \n"); idx > len(cut)*3/4 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
