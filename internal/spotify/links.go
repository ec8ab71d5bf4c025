package spotify

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LinkSeparator joins extracted links. URLs may legally contain commas, so a
// character that never appears in them is used instead.
const LinkSeparator = "◙"

// A match ends at any Unicode space separator, not just ASCII whitespace;
// descriptions often put a no-break space right after a URL.
var linkPattern = regexp.MustCompile(`(?i)https?://[^\s\p{Z}\x{0B}\x{FEFF}"'<>]+`)

// ExtractLinks returns every http(s) URL in text whose host is not denied,
// joined with LinkSeparator in order of appearance.
func ExtractLinks(text string, deny Denylist) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	var kept []string
	for _, match := range linkPattern.FindAllString(text, -1) {
		match = strings.TrimSpace(match)
		if match == "" || deny.Contains(match) {
			continue
		}
		kept = append(kept, match)
	}
	return strings.Join(kept, LinkSeparator)
}

// MergeLinks joins separator-delimited link lists, dropping repeats.
func MergeLinks(lists ...string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		if list == "" {
			continue
		}
		for _, link := range strings.Split(list, LinkSeparator) {
			if _, dup := seen[link]; dup || link == "" {
				continue
			}
			seen[link] = struct{}{}
			out = append(out, link)
		}
	}
	return strings.Join(out, LinkSeparator)
}

// DescriptionText flattens an HTML description into plain text that still
// carries every anchor target, so ExtractLinks sees hrefs hidden behind
// link text.
func DescriptionText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	parts := []string{doc.Text()}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			parts = append(parts, href)
		}
	})
	return strings.Join(parts, "\n")
}
