package normalize

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// markupRe matches the elements scrapers leave in listing text. Anything else
// in angle brackets is kept as typed.
var markupRe = regexp.MustCompile(`(?i)</?(?:a|b|br|div|em|font|h[1-6]|i|li|ol|p|small|span|strong|table|td|tr|u|ul)(?:\s[^<>]*)?/?>`)

// CleanText trims a free-text cell, flattens HTML markup left behind by the
// scraper and decodes entities. Runs of spaces are collapsed within each
// line; line breaks are kept.
func CleanText(cell string) string {
	s := strings.TrimSpace(cell)
	switch {
	case markupRe.MatchString(s):
		s = flatten(s)
	case strings.Contains(s, "&"):
		s = html.UnescapeString(s)
	}
	return collapseSpaces(s)
}

func flatten(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return html.UnescapeString(s)
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	return doc.Text()
}

func collapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" && (len(out) == 0 || out[len(out)-1] == "") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
