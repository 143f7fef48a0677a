package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rahul/webpilot/internal/browser"
	"github.com/stretchr/testify/require"
)

var errFake = errors.New("fake failure")

// fakeSession is an in-memory Session. Element queries are answered by a
// goquery document; input operations are recorded.
type fakeSession struct {
	t   testing.TB
	dom *browser.StaticPage

	url, title string
	text       string
	textErr    error
	html       string
	htmlErr    error
	navErr     error
	wheelErr   error
	captureErr error
	capture    []byte
	tabErr     error
	results    bool
	// onNavigate swaps the document after a navigation.
	onNavigate func(url string)

	navigated []string
	clicks    []string
	clicksAt  [][2]float64
	cleared   []string
	typed     []string
	pressed   []string
	wheels    []float64
	shots     []string
	tabs      []string
}

var _ browser.Session = (*fakeSession)(nil)

func newFakeSession(t testing.TB, body string) *fakeSession {
	f := &fakeSession{t: t, url: "https://example.com", title: "Example", captureErr: errFake}
	f.setDOM(body)
	return f
}

func (f *fakeSession) setDOM(body string) {
	html := "<html><head><title>" + f.title + "</title></head><body>" + body + "</body></html>"
	dom, err := browser.NewStaticPageFromString(f.url, html)
	require.NoError(f.t, err)
	f.dom = dom
	if f.html == "" {
		f.html = html
	}
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	if f.navErr != nil {
		return f.navErr
	}
	f.url = url
	if f.onNavigate != nil {
		f.onNavigate(url)
	}
	return nil
}

func (f *fakeSession) Screenshot(_ context.Context, name string) (string, error) {
	f.shots = append(f.shots, name)
	return "/artifacts/" + name, nil
}

func (f *fakeSession) Capture(context.Context) ([]byte, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.capture, nil
}

func (f *fakeSession) Info(context.Context) (browser.PageInfo, error) {
	return browser.PageInfo{URL: f.url, Title: f.title, ContentLength: len(f.html)}, nil
}

func (f *fakeSession) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	els, err := f.dom.QueryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = &fakeElement{session: f, inner: el}
	}
	return out, nil
}

func (f *fakeSession) WaitVisible(context.Context, string, time.Duration) bool { return f.results }

func (f *fakeSession) ClickAt(_ context.Context, x, y float64) error {
	f.clicksAt = append(f.clicksAt, [2]float64{x, y})
	return nil
}

func (f *fakeSession) Type(_ context.Context, text string, _ time.Duration) error {
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeSession) Press(_ context.Context, key string) error {
	f.pressed = append(f.pressed, key)
	return nil
}

func (f *fakeSession) Wheel(_ context.Context, dy float64) error {
	f.wheels = append(f.wheels, dy)
	return f.wheelErr
}

func (f *fakeSession) Text(context.Context) (string, error) { return f.text, f.textErr }

func (f *fakeSession) HTML(context.Context) (string, error) { return f.html, f.htmlErr }

func (f *fakeSession) Viewport(context.Context) (int, int, error) { return 1280, 720, nil }

func (f *fakeSession) OpenTab(_ context.Context, url string) (browser.Page, error) {
	f.tabs = append(f.tabs, url)
	if f.tabErr != nil {
		return nil, f.tabErr
	}
	tab := newFakeSession(f.t, "")
	tab.url = url
	return tab, nil
}

func (f *fakeSession) Close() error { return nil }

type fakeElement struct {
	session *fakeSession
	inner   browser.Element
}

func (e *fakeElement) Key() string               { return e.inner.Key() }
func (e *fakeElement) Info() browser.ElementInfo { return e.inner.Info() }

func (e *fakeElement) Click(context.Context) error {
	e.session.clicks = append(e.session.clicks, describe(e.inner.Info()))
	return nil
}

func (e *fakeElement) Clear(context.Context) error {
	e.session.cleared = append(e.session.cleared, describe(e.inner.Info()))
	return nil
}

func describe(info browser.ElementInfo) string {
	var b strings.Builder
	b.WriteString(info.Tag)
	if info.ID != "" {
		b.WriteString("#" + info.ID)
	}
	if info.Text != "" {
		b.WriteString(":" + info.Text)
	}
	return b.String()
}
