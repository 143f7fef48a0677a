package browser

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrStaticPage is returned by StaticPage for operations that need a live browser.
var ErrStaticPage = errors.New("browser: operation requires a live page")

// PageInfo is the metadata of the currently loaded page.
type PageInfo struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	ContentLength int    `json:"content_length"`
}

// ElementInfo is a snapshot of one element taken at query time.
type ElementInfo struct {
	Tag     string
	Text    string
	ID      string
	Class   string
	Type    string
	X       float64
	Y       float64
	Width   float64
	Height  float64
	Visible bool
	Enabled bool
}

// Center returns the centre of the element's bounding box.
func (i ElementInfo) Center() (float64, float64) {
	return i.X + i.Width/2, i.Y + i.Height/2
}

// Interactable reports whether the element can receive input.
func (i ElementInfo) Interactable() bool {
	return i.Visible && i.Enabled
}

// Element is a handle to an element returned by Page.QueryAll.
type Element interface {
	// Key identifies the element within an unchanged document.
	Key() string
	Info() ElementInfo
	Click(ctx context.Context) error
	// Clear focuses the element and empties its value.
	Clear(ctx context.Context) error
}

// Page is the capability set the executors need from one browser page.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Screenshot writes a full-page screenshot and returns its path.
	Screenshot(ctx context.Context, name string) (string, error)
	// Capture returns a PNG of the current viewport.
	Capture(ctx context.Context) ([]byte, error)
	Info(ctx context.Context) (PageInfo, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool
	ClickAt(ctx context.Context, x, y float64) error
	// Type sends text to the focused element one keystroke at a time.
	Type(ctx context.Context, text string, perKey time.Duration) error
	Press(ctx context.Context, key string) error
	Wheel(ctx context.Context, deltaY float64) error
	Text(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Viewport(ctx context.Context) (width, height int, err error)
}

// Session owns the primary page and can open independent tabs.
type Session interface {
	Page
	// OpenTab opens a new tab on url. The tab is not closed by the caller;
	// it lives until the session is closed.
	OpenTab(ctx context.Context, url string) (Page, error)
	Close() error
}

const hasTextPseudo = ":has-text("

// SplitSelector separates a trailing :has-text("...") filter from a CSS
// selector. The returned text is empty when no filter is present.
func SplitSelector(selector string) (css, text string) {
	idx := strings.Index(selector, hasTextPseudo)
	if idx < 0 {
		return selector, ""
	}
	css = strings.TrimSpace(selector[:idx])
	if css == "" {
		css = "*"
	}
	text = strings.TrimSuffix(selector[idx+len(hasTextPseudo):], ")")
	text = strings.Trim(text, `"'`)
	return css, text
}

// NormalizeURL adds an https scheme when url has none.
func NormalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return url
	}
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "about:") {
		return url
	}
	return "https://" + url
}
