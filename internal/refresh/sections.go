package refresh

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
)

const maxContextExcerpt = 120

// SplitContent breaks raw content HTML into heading-delimited sections and
// collects every absolute-scheme hyperlink. Relative and fragment links are
// discarded. Any markup before the first heading becomes an unheaded leading
// section.
func SplitContent(content string) ([]model.Section, []model.Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("parse content: %w", err)
	}

	sections := splitSections(doc)
	links := collectLinks(doc)
	return sections, links, nil
}

func splitSections(doc *goquery.Document) []model.Section {
	var sections []model.Section
	var current *model.Section

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(current.Content)
		if current.Heading == "" && current.Content == "" {
			current = nil
			return
		}
		sections = append(sections, *current)
		current = nil
	}

	doc.Find("body").Contents().Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)

		if node.Type == html.ElementNode && isHeadingTag(node.Data) {
			flush()
			current = &model.Section{Heading: strings.TrimSpace(sel.Text())}
			return
		}

		markup, err := goquery.OuterHtml(sel)
		if err != nil || strings.TrimSpace(markup) == "" {
			return
		}
		if current == nil {
			current = &model.Section{}
		}
		current.Content += markup
	})
	flush()

	for i := range sections {
		sections[i].ID = fmt.Sprintf("section-%d", i)
		sections[i].OriginalIndex = i
	}
	return sections
}

func collectLinks(doc *goquery.Document) []model.Link {
	var links []model.Link

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return
		}

		links = append(links, model.Link{
			ID:      fmt.Sprintf("link-%d", len(links)),
			URL:     href,
			Text:    strings.TrimSpace(sel.Text()),
			Context: contextExcerpt(sel),
		})
	})
	return links
}

// contextExcerpt returns a short run of the text surrounding the anchor.
func contextExcerpt(sel *goquery.Selection) string {
	text := strings.Join(strings.Fields(sel.Parent().Text()), " ")
	if runes := []rune(text); len(runes) > maxContextExcerpt {
		text = string(runes[:maxContextExcerpt]) + "..."
	}
	return text
}

func isHeadingTag(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}
