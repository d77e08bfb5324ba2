package extract

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Ul: true,
}

var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Svg: true, atom.Iframe: true, atom.Head: true,
}

// CleanText collapses whitespace, including non-breaking spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// selectionLines returns cleaned text lines, breaking at block-level elements.
func selectionLines(sel *goquery.Selection) []string {
	var (
		lines []string
		buf   strings.Builder
	)

	flush := func() {
		if line := CleanText(buf.String()); line != "" {
			lines = append(lines, line)
		}
		buf.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedElements[n.DataAtom] {
				return
			}
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
		flush()
	}

	return lines
}

// firstText returns the first non-empty, cleaned text among selectors.
func firstText(doc *goquery.Document, selectors []string, maxLen int) string {
	for _, s := range selectors {
		var found string
		doc.Find(s).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := CleanText(sel.Text())
			if text == "" {
				if content, ok := sel.Attr("content"); ok {
					text = CleanText(content)
				}
			}
			if text != "" && (maxLen <= 0 || len(text) <= maxLen) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// canonicalURL lowercases scheme and host, drops fragments and tracking parameters.
func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "mc_cid" || lk == "mc_eid" || lk == "mkt_tok" {
			q.Del(k)
		}
	}
	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// CanonicalURL is exported for deduplication by callers.
func CanonicalURL(raw string) string {
	return canonicalURL(raw)
}

// companyFromHost derives a display name from the registrable part of a host,
// e.g. careers.acme-corp.com becomes "Acme Corp".
func companyFromHost(host string) string {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return titleCase(host)
	}

	name := labels[len(labels)-2]
	if len(labels) >= 3 && len(name) <= 3 && len(labels[len(labels)-1]) <= 2 {
		name = labels[len(labels)-3]
	}

	return titleCase(strings.NewReplacer("-", " ", "_", " ").Replace(name))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
