package browser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// StaticPage is a read-only Page over a saved HTML document. It has no layout
// engine, so visibility is inferred from markup and every element reports a
// zero-sized box.
type StaticPage struct {
	url string
	doc *goquery.Document
}

var _ Page = (*StaticPage)(nil)

// NewStaticPage parses an HTML document read from r.
func NewStaticPage(url string, r io.Reader) (*StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &StaticPage{url: url, doc: doc}, nil
}

// NewStaticPageFromString parses an in-memory HTML document.
func NewStaticPageFromString(url, html string) (*StaticPage, error) {
	return NewStaticPage(url, strings.NewReader(html))
}

// LoadStaticPage parses the HTML file at path.
func LoadStaticPage(path string) (*StaticPage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewStaticPage("file://"+path, f)
}

func (s *StaticPage) Navigate(context.Context, string) error { return ErrStaticPage }

func (s *StaticPage) Screenshot(context.Context, string) (string, error) { return "", ErrStaticPage }

func (s *StaticPage) Capture(context.Context) ([]byte, error) { return nil, ErrStaticPage }

func (s *StaticPage) Info(context.Context) (PageInfo, error) {
	html, _ := s.doc.Html()
	return PageInfo{
		URL:           s.url,
		Title:         strings.TrimSpace(s.doc.Find("title").First().Text()),
		ContentLength: len(html),
	}, nil
}

func (s *StaticPage) QueryAll(_ context.Context, selector string) ([]Element, error) {
	css, needle := SplitSelector(selector)
	needle = strings.ToLower(needle)

	// An invalid selector matches nothing.
	positions := s.positions()
	var elements []Element
	s.doc.Find(css).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if needle != "" && !strings.Contains(strings.ToLower(text), needle) {
			value, _ := sel.Attr("value")
			if !strings.Contains(strings.ToLower(value), needle) {
				return
			}
		}
		elements = append(elements, &staticElement{
			key:  strconv.Itoa(positions[sel.Get(0)]),
			info: staticInfo(sel, text),
		})
	})
	return elements, nil
}

func (s *StaticPage) WaitVisible(ctx context.Context, selector string, _ time.Duration) bool {
	elements, err := s.QueryAll(ctx, selector)
	if err != nil {
		return false
	}
	for _, el := range elements {
		if el.Info().Visible {
			return true
		}
	}
	return false
}

func (s *StaticPage) ClickAt(context.Context, float64, float64) error { return ErrStaticPage }

func (s *StaticPage) Type(context.Context, string, time.Duration) error { return ErrStaticPage }

func (s *StaticPage) Press(context.Context, string) error { return ErrStaticPage }

func (s *StaticPage) Wheel(context.Context, float64) error { return ErrStaticPage }

func (s *StaticPage) Text(context.Context) (string, error) {
	return HTMLText(s.doc), nil
}

func (s *StaticPage) HTML(context.Context) (string, error) {
	return s.doc.Html()
}

func (s *StaticPage) Viewport(context.Context) (int, int, error) {
	return 0, 0, ErrStaticPage
}

func (s *StaticPage) positions() map[any]int {
	positions := make(map[any]int)
	s.doc.Find("*").Each(func(i int, sel *goquery.Selection) {
		positions[sel.Get(0)] = i
	})
	return positions
}

// HTMLText extracts readable text from a parsed document, dropping scripts,
// styles and hidden elements.
func HTMLText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	if body.Length() == 0 {
		body = doc.Selection.Clone()
	}
	body.Find("script, style, noscript, template, [hidden]").Remove()

	var lines []string
	for _, line := range strings.Split(body.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func staticInfo(sel *goquery.Selection, text string) ElementInfo {
	attr := func(name string) string {
		v, _ := sel.Attr(name)
		return v
	}
	visible := true
	if _, hidden := sel.Attr("hidden"); hidden || strings.EqualFold(attr("type"), "hidden") {
		visible = false
	}
	style := strings.ToLower(strings.ReplaceAll(attr("style"), " ", ""))
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		visible = false
	}
	sel.Parents().EachWithBreak(func(_ int, parent *goquery.Selection) bool {
		if _, hidden := parent.Attr("hidden"); hidden {
			visible = false
			return false
		}
		ps, _ := parent.Attr("style")
		ps = strings.ToLower(strings.ReplaceAll(ps, " ", ""))
		if strings.Contains(ps, "display:none") {
			visible = false
			return false
		}
		return true
	})
	_, disabled := sel.Attr("disabled")

	if r := []rune(text); len(r) > 200 {
		text = string(r[:200])
	}
	return ElementInfo{
		Tag:     strings.ToLower(goquery.NodeName(sel)),
		Text:    text,
		ID:      attr("id"),
		Class:   attr("class"),
		Type:    attr("type"),
		Visible: visible,
		Enabled: !disabled,
	}
}

type staticElement struct {
	key  string
	info ElementInfo
}

func (e *staticElement) Key() string                 { return e.key }
func (e *staticElement) Info() ElementInfo           { return e.info }
func (e *staticElement) Click(context.Context) error { return ErrStaticPage }
func (e *staticElement) Clear(context.Context) error { return ErrStaticPage }
