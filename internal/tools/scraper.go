package tools

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rahul/webpilot/internal/browser"
)

// Article is the readable summary of a page.
type Article struct {
	Title   string
	Excerpt string
}

// ExtractArticle runs readability over html. Title and excerpt are stripped
// of any markup.
func ExtractArticle(html, pageURL string) (Article, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return Article{}, err
	}

	p := bluemonday.StrictPolicy()
	return Article{
		Title:   strings.TrimSpace(p.Sanitize(article.Title)),
		Excerpt: strings.TrimSpace(p.Sanitize(article.Excerpt)),
	}, nil
}

// TextFromHTML extracts visible text from raw markup.
func TextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return browser.HTMLText(doc), nil
}
