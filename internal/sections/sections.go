// Package sections holds the posting section vocabulary shared by extraction and compression.
package sections

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Kind string

const (
	KindResponsibilities Kind = "responsibilities"
	KindRequirements     Kind = "requirements"
	KindQualifications   Kind = "qualifications"
	KindBenefits         Kind = "benefits"
	KindAbout            Kind = "about"
	KindOther            Kind = "other"
)

// Essential reports whether the kind carries decision-relevant content.
func (k Kind) Essential() bool {
	switch k {
	case KindResponsibilities, KindRequirements, KindQualifications:
		return true
	default:
		return false
	}
}

type header struct {
	phrase string
	kind   Kind
}

var headers = func() []header {
	hs := []header{
		{"responsibilities", KindResponsibilities},
		{"key responsibilities", KindResponsibilities},
		{"what you'll do", KindResponsibilities},
		{"what you will do", KindResponsibilities},
		{"what you'll be doing", KindResponsibilities},
		{"your role", KindResponsibilities},
		{"the role", KindResponsibilities},
		{"about the role", KindResponsibilities},
		{"job description", KindResponsibilities},
		{"duties", KindResponsibilities},
		{"your impact", KindResponsibilities},

		{"requirements", KindRequirements},
		{"what you'll need", KindRequirements},
		{"what you need", KindRequirements},
		{"what we're looking for", KindRequirements},
		{"what we are looking for", KindRequirements},
		{"who you are", KindRequirements},
		{"must have", KindRequirements},
		{"must haves", KindRequirements},
		{"skills", KindRequirements},
		{"technical skills", KindRequirements},
		{"experience", KindRequirements},

		{"qualifications", KindQualifications},
		{"basic qualifications", KindQualifications},
		{"minimum qualifications", KindQualifications},
		{"preferred qualifications", KindQualifications},
		{"nice to have", KindQualifications},
		{"nice to haves", KindQualifications},
		{"bonus points", KindQualifications},
		{"education", KindQualifications},

		{"benefits", KindBenefits},
		{"perks", KindBenefits},
		{"perks and benefits", KindBenefits},
		{"what we offer", KindBenefits},
		{"compensation", KindBenefits},
		{"why join us", KindBenefits},
		{"salary", KindBenefits},

		{"about us", KindAbout},
		{"about the company", KindAbout},
		{"about the team", KindAbout},
		{"who we are", KindAbout},
		{"our mission", KindAbout},
		{"company overview", KindAbout},
	}
	// Longer phrases first so "preferred qualifications" wins over "qualifications".
	sort.SliceStable(hs, func(i, j int) bool { return len(hs[i].phrase) > len(hs[j].phrase) })
	return hs
}()

// Words that turn "Preferred Qualifications" style lines into headers.
var suffixHeaders = map[string]Kind{
	"responsibilities": KindResponsibilities,
	"requirements":     KindRequirements,
	"qualifications":   KindQualifications,
	"benefits":         KindBenefits,
}

var boundaries = []string{
	"similar jobs",
	"related jobs",
	"share this job",
	"follow us",
	"privacy policy",
	"cookie policy",
	"cookie settings",
	"terms of use",
	"terms and conditions",
	"all rights reserved",
	"copyright",
	"©",
	"subscribe to",
	"job alerts",
}

var stopWords = []string{
	"cookie",
	"privacy",
	"terms",
	"copyright",
	"navigation",
	"menu",
	"search",
	"login",
	"sign in",
	"register",
	"footer",
}

var jobIndicators = []string{
	"experience",
	"responsib",
	"requirement",
	"qualif",
	"skills",
	"you will",
	"you'll",
	"we are looking",
	"we're looking",
	"degree",
	"years",
	"knowledge of",
	"ability to",
	"proficien",
	"familiar",
}

var essentialTerms = []string{
	"require",
	"qualif",
	"responsib",
	"experience",
	"skill",
	"must",
	"degree",
	"proficien",
	"knowledge",
	"ability to",
}

// Normalize lowercases a candidate header line and strips bullets, hashes and trailing colons.
func Normalize(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "#*-•·> \t")
	line = strings.TrimRight(line, ": \t")
	return strings.ToLower(strings.Join(strings.Fields(line), " "))
}

// Classify reports whether line is a section header and which kind it opens.
func Classify(line string) (Kind, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > 60 || strings.HasSuffix(trimmed, ".") {
		return "", false
	}
	if strings.IndexFunc(trimmed, unicode.IsDigit) >= 0 {
		return "", false
	}

	norm := Normalize(trimmed)
	words := strings.Fields(norm)
	if len(words) == 0 || len(words) > 6 {
		return "", false
	}

	for _, h := range headers {
		if norm == h.phrase {
			return h.kind, true
		}
		if rest, ok := strings.CutPrefix(norm, h.phrase+" "); ok && joinsHeader(rest) {
			return h.kind, true
		}
	}

	if len(words) <= 3 {
		if kind, ok := suffixHeaders[words[len(words)-1]]; ok {
			return kind, true
		}
	}

	return "", false
}

// joinsHeader accepts "Requirements & Skills" or "Qualifications (preferred)" but not
// sentence-like lines such as "Experience with Go".
func joinsHeader(rest string) bool {
	fields := strings.Fields(rest)
	if len(fields) == 0 || len(fields) > 3 {
		return false
	}
	switch first := fields[0]; {
	case first == "&", first == "and", first == "/", first == "-", first == "|":
		return true
	case strings.HasPrefix(first, "("):
		return true
	default:
		return false
	}
}

// IsBoundary reports whether line marks the start of navigation or footer content.
func IsBoundary(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	if lower == "" || utf8.RuneCountInString(lower) > 80 {
		return false
	}
	for _, b := range boundaries {
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}

// HasStopWord reports whether line contains any navigational blacklist term.
// Single words match at the start of a token, so "research" is not "search".
func HasStopWord(line string) bool {
	lower := strings.ToLower(line)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, w := range stopWords {
		if strings.Contains(w, " ") {
			if strings.Contains(lower, w) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if strings.HasPrefix(tok, w) {
				return true
			}
		}
	}
	return false
}

// IsJobIndicator reports whether line carries typical posting vocabulary.
func IsJobIndicator(line string) bool {
	return containsAny(strings.ToLower(line), jobIndicators)
}

// HasEssentialTerms reports whether text mentions requirement or responsibility vocabulary.
func HasEssentialTerms(text string) bool {
	return containsAny(strings.ToLower(text), essentialTerms)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
