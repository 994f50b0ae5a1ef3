package ingestion

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pageCharBudget caps how much text counts as one "page" for formats that
// carry no page breaks of their own. Keeping pages bounded keeps citations
// meaningful.
const pageCharBudget = 4000

var whitespaceRE = regexp.MustCompile(`\s+`)

// extractPages turns one uploaded file into an ordered list of page texts.
// HTML is stripped to body text; everything else is treated as plain text
// with form-feed characters honored as explicit page breaks. Oversized
// segments are paginated by the character budget.
func extractPages(filename string, data []byte) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var raw string
	switch ext {
	case ".html", ".htm":
		text, err := htmlToText(data)
		if err != nil {
			return nil, fmt.Errorf("invalid html: %w", err)
		}
		raw = text
	default:
		raw = string(data)
	}

	var pages []string
	for _, segment := range strings.Split(raw, "\f") {
		pages = append(pages, paginate(segment)...)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text content")
	}
	return pages, nil
}

func htmlToText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespaceRE.ReplaceAllString(text, " ")

	return strings.TrimSpace(text), nil
}

// paginate splits one text segment into budget-sized pages, preferring to
// break at a space near the boundary so sentences stay intact.
func paginate(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= pageCharBudget {
		return []string{text}
	}

	var pages []string
	start := 0
	for start < len(runes) {
		end := start + pageCharBudget
		if end >= len(runes) {
			end = len(runes)
		} else {
			cut := end
			for cut > start && runes[cut] != ' ' {
				cut--
			}
			if cut > start {
				end = cut
			}
		}

		page := strings.TrimSpace(string(runes[start:end]))
		if page != "" {
			pages = append(pages, page)
		}
		start = end
	}

	return pages
}
