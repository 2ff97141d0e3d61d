package refresh

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
)

// contentSelectors is the prioritized list of places a blog post's main
// content usually lives. The first selector with non-empty text wins.
var contentSelectors = []string{
	"article",
	"main",
	".post-content",
	".entry-content",
	".post-body",
	"body",
}

const untitledFallback = "Untitled"

// ExtractPage pulls the title and main content markup out of an arbitrary
// page. Title fallback chain: first h1, then the document title, then
// "Untitled".
func ExtractPage(body io.Reader, pageURL string) (*model.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		title = untitledFallback
	}

	var content string
	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 || strings.TrimSpace(sel.Text()) == "" {
			continue
		}
		if html, err := sel.Html(); err == nil {
			content = strings.TrimSpace(html)
			break
		}
	}

	return &model.PageContent{
		Title:   title,
		Content: content,
		URL:     pageURL,
	}, nil
}
