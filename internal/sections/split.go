package sections

import "strings"

// Section is a header and the lines grouped under it. Intro text before the
// first header has an empty Header and KindOther.
type Section struct {
	Header string
	Kind   Kind
	Lines  []string
}

func (s Section) Body() string {
	return strings.Join(s.Lines, "\n")
}

// Text renders the section the way extracted descriptions are laid out.
func (s Section) Text() string {
	if s.Header == "" {
		return s.Body()
	}
	return s.Header + ":\n" + s.Body()
}

// Group walks lines and collects them under matched headers until the next
// header or a boundary. matched is false when no header was recognised.
func Group(lines []string) (secs []Section, matched bool) {
	current := Section{Kind: KindOther}

	flush := func() {
		if len(current.Lines) > 0 {
			secs = append(secs, current)
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if IsBoundary(line) {
			if matched {
				break
			}
			continue
		}

		if kind, ok := Classify(line); ok {
			flush()
			matched = true
			current = Section{Header: strings.TrimRight(line, ": \t"), Kind: kind}
			continue
		}

		current.Lines = append(current.Lines, line)
	}
	flush()

	return secs, matched
}

// Split breaks a description into sections by header, or by paragraph breaks
// when no header is present.
func Split(text string) []Section {
	if secs, matched := Group(strings.Split(text, "\n")); matched {
		return secs
	}

	var secs []Section
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		secs = append(secs, Section{Kind: KindOther, Lines: strings.Split(para, "\n")})
	}

	if len(secs) == 1 && len(secs[0].Lines) > 1 {
		lines := secs[0].Lines
		secs = secs[:0]
		for _, line := range lines {
			if line = strings.TrimSpace(line); line != "" {
				secs = append(secs, Section{Kind: KindOther, Lines: []string{line}})
			}
		}
	}

	return secs
}

// Render joins sections with blank lines between them.
func Render(secs []Section) string {
	parts := make([]string, 0, len(secs))
	for _, s := range secs {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// LinesOf returns every line grouped under sections of the given kind.
func LinesOf(secs []Section, kind Kind) []string {
	var out []string
	for _, s := range secs {
		if s.Kind == kind {
			out = append(out, s.Lines...)
		}
	}
	return out
}
