package processors

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	commentRegex    = regexp.MustCompile(`<!--[\s\S]*?-->`)
	spaceRunRegex   = regexp.MustCompile(`[ \t\f\v]+`)
	blankLinesRegex = regexp.MustCompile(`\n\s*\n+`)
	looksLikeHTML   = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
)

// TextCleaner turns seller-written ad descriptions into compact plain text for prompts
type TextCleaner struct {
	// Tags to remove completely
	removeTags []string
	// MaxRunes caps the cleaned text; 0 disables truncation
	MaxRunes int
}

// NewTextCleaner creates a new cleaner instance
func NewTextCleaner(maxRunes int) *TextCleaner {
	return &TextCleaner{
		removeTags: []string{
			"script", "style", "noscript", "iframe", "object", "embed",
			"form", "button", "svg", "meta", "link",
		},
		MaxRunes: maxRunes,
	}
}

// Clean strips markup, collapses whitespace and keeps paragraph breaks
func (tc *TextCleaner) Clean(text string) string {
	if looksLikeHTML.MatchString(text) {
		if plain, err := tc.htmlToText(text); err == nil {
			text = plain
		}
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRunRegex.ReplaceAllString(text, " ")
	text = blankLinesRegex.ReplaceAllString(text, "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	text = strings.Join(kept, "\n")

	if tc.MaxRunes > 0 {
		if runes := []rune(text); len(runes) > tc.MaxRunes {
			text = string(runes[:tc.MaxRunes]) + "..."
		}
	}
	return text
}

func (tc *TextCleaner) htmlToText(html string) (string, error) {
	html = commentRegex.ReplaceAllString(html, "")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	for _, tag := range tc.removeTags {
		doc.Find(tag).Remove()
	}
	// block boundaries become line breaks before text extraction
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return doc.Text(), nil
}

// KeyValueLines extracts "key: value" lines from a description
func KeyValueLines(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" || len([]rune(key)) > 40 || strings.Contains(key, "http") {
			continue
		}
		if _, exists := out[key]; !exists {
			out[key] = value
		}
	}
	return out
}
