package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// Options configures a Chrome session.
type Options struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	Width             int
	Height            int
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	// SettleDelay is slept after every successful navigation.
	SettleDelay time.Duration
	ArtifactDir string
	RecordVideo bool
	VideoDir    string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 15 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 30 * time.Second
	}
	if o.ArtifactDir == "" {
		o.ArtifactDir = "."
	}
	if o.VideoDir == "" {
		o.VideoDir = filepath.Join(o.ArtifactDir, "video")
	}
	return o
}

// Chrome is a Session backed by a chromedp-controlled Chrome process.
type Chrome struct {
	*chromePage

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabCancels    []context.CancelFunc
}

var _ Session = (*Chrome)(nil)

// NewChrome launches Chrome and returns a session owning its first tab.
func NewChrome(ctx context.Context, opts Options, logger *zap.Logger) (*Chrome, error) {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	c := &Chrome{
		chromePage:    &chromePage{ctx: browserCtx, opts: opts, logger: logger.Named("page")},
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	if opts.RecordVideo {
		if err := c.startRecording(); err != nil {
			logger.Warn("Screen recording unavailable", zap.Error(err))
		}
	}
	return c, nil
}

// OpenTab opens a new tab and navigates it to url.
func (c *Chrome) OpenTab(ctx context.Context, url string) (Page, error) {
	c.mu.Lock()
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	c.tabCancels = append(c.tabCancels, cancel)
	c.mu.Unlock()

	tab := &chromePage{ctx: tabCtx, opts: c.opts, logger: c.logger.Named("tab")}
	if err := tab.Navigate(ctx, url); err != nil {
		return nil, err
	}
	return tab, nil
}

// Close terminates all tabs and the Chrome process.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cancel := range c.tabCancels {
		cancel()
	}
	c.tabCancels = nil
	if c.browserCancel != nil {
		c.browserCancel()
		c.browserCancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	return nil
}

func (c *Chrome) startRecording() error {
	if err := os.MkdirAll(c.opts.VideoDir, 0o755); err != nil {
		return err
	}
	var frame atomic.Int64
	chromedp.ListenTarget(c.browserCtx, func(ev any) {
		e, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		go func() {
			data, err := base64.StdEncoding.DecodeString(e.Data)
			if err == nil {
				name := fmt.Sprintf("frame_%06d.jpg", frame.Add(1))
				_ = os.WriteFile(filepath.Join(c.opts.VideoDir, name), data, 0o644)
			}
			_ = chromedp.Run(c.browserCtx, page.ScreencastFrameAck(e.SessionID))
		}()
	})
	return chromedp.Run(c.browserCtx, page.StartScreencast().
		WithFormat(page.ScreencastFormatJpeg).
		WithQuality(60).
		WithEveryNthFrame(2))
}

// chromePage implements Page for one chromedp target.
type chromePage struct {
	ctx    context.Context
	opts   Options
	logger *zap.Logger
}

// bounded returns a context on the page's target that ends after timeout or
// when callCtx is done.
func (p *chromePage) bounded(callCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	stop := context.AfterFunc(callCtx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// run executes actions on the page's target, bounded by timeout and by the
// caller's context.
func (p *chromePage) run(callCtx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.bounded(callCtx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate waits for DOMContentLoaded and retries with a full load wait when
// that does not arrive in time. Network errors, browser error pages and HTTP
// error statuses fail the navigation.
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	url = NormalizeURL(url)
	if url == "" {
		return fmt.Errorf("navigate: empty url")
	}

	res, err := p.navigateDOM(ctx, url)
	if errors.Is(err, errDOMTimeout) {
		p.logger.Debug("DOMContentLoaded not reached, waiting for the load event", zap.String("url", url))
		res, err = p.navigateLoad(ctx, url)
	}
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if res.ErrorText == "" {
		if err := p.run(ctx, p.opts.ActionTimeout, chromedp.Location(&res.Href)); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	if p.opts.SettleDelay > 0 {
		_ = p.run(ctx, p.opts.SettleDelay+p.opts.ActionTimeout, chromedp.Sleep(p.opts.SettleDelay))
	}
	return nil
}

var errDOMTimeout = errors.New("DOMContentLoaded not reached")

func (p *chromePage) navigateDOM(ctx context.Context, url string) (loadResult, error) {
	runCtx, cancel := p.bounded(ctx, p.opts.NavigationTimeout)
	defer cancel()

	watch := newLoadWatch()
	chromedp.ListenTarget(runCtx, watch.Observe)

	var res loadResult
	var loader cdp.LoaderID
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		_, loader, res.ErrorText, _, err = page.Navigate(url).Do(c)
		return err
	}))
	switch {
	case ctx.Err() != nil:
		return loadResult{}, ctx.Err()
	case err != nil && runCtx.Err() != nil:
		return loadResult{}, errDOMTimeout
	case err != nil:
		return loadResult{}, err
	case res.ErrorText != "" || loader == "":
		// Failed loads and same-document navigations have nothing to wait for.
		return res, nil
	}

	status, ok := watch.Wait(runCtx, loader)
	if !ok {
		if ctx.Err() != nil {
			return loadResult{}, ctx.Err()
		}
		return loadResult{}, errDOMTimeout
	}
	res.Status = status
	return res, nil
}

func (p *chromePage) navigateLoad(ctx context.Context, url string) (loadResult, error) {
	runCtx, cancel := p.bounded(ctx, p.opts.NavigationTimeout)
	defer cancel()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return loadResult{}, err
	}
	var res loadResult
	if resp != nil {
		res.Status = resp.Status
	}
	return res, nil
}

func (p *chromePage) Screenshot(ctx context.Context, name string) (string, error) {
	var buf []byte
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	if err := os.MkdirAll(p.opts.ArtifactDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(p.opts.ArtifactDir, filepath.Base(name))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (p *chromePage) Capture(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return buf, nil
}

func (p *chromePage) Info(ctx context.Context) (PageInfo, error) {
	var info PageInfo
	var html string
	err := p.run(ctx, p.opts.ActionTimeout,
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return PageInfo{}, fmt.Errorf("page info: %w", err)
	}
	info.ContentLength = len(html)
	return info, nil
}

const queryScript = `(function(sel, needle) {
	const all = Array.prototype.slice.call(document.getElementsByTagName('*'));
	const out = [];
	let nodes;
	try { nodes = document.querySelectorAll(sel); } catch (e) { return out; }
	needle = (needle || '').toLowerCase();
	for (const el of nodes) {
		const text = ((el.innerText || el.textContent || '') + '').trim();
		if (needle && !text.toLowerCase().includes(needle) && !((el.value || '') + '').toLowerCase().includes(needle)) continue;
		const r = el.getBoundingClientRect();
		const s = window.getComputedStyle(el);
		out.push({
			index: all.indexOf(el),
			tag: el.tagName.toLowerCase(),
			text: text.slice(0, 200),
			id: el.id || '',
			class: typeof el.className === 'string' ? el.className : '',
			type: el.getAttribute('type') || '',
			x: r.left, y: r.top, width: r.width, height: r.height,
			visible: r.width > 0 && r.height > 0 && s.display !== 'none' && s.visibility !== 'hidden' && s.opacity !== '0',
			enabled: !el.disabled
		});
	}
	return out;
})(%s, %s)`

type queriedElement struct {
	Index   int     `json:"index"`
	Tag     string  `json:"tag"`
	Text    string  `json:"text"`
	ID      string  `json:"id"`
	Class   string  `json:"class"`
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Visible bool    `json:"visible"`
	Enabled bool    `json:"enabled"`
}

func (p *chromePage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	css, text := SplitSelector(selector)
	script := fmt.Sprintf(queryScript, jsString(css), jsString(text))

	var found []queriedElement
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	elements := make([]Element, 0, len(found))
	for _, q := range found {
		elements = append(elements, &chromeElement{
			page:  p,
			index: q.Index,
			info: ElementInfo{
				Tag: q.Tag, Text: q.Text, ID: q.ID, Class: q.Class, Type: q.Type,
				X: q.X, Y: q.Y, Width: q.Width, Height: q.Height,
				Visible: q.Visible, Enabled: q.Enabled,
			},
		})
	}
	return elements, nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	if _, text := SplitSelector(selector); text == "" {
		return p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)) == nil
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		elements, err := p.QueryAll(ctx, selector)
		if err == nil {
			for _, el := range elements {
				if el.Info().Visible {
					return true
				}
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(200 * time.Millisecond):
		}
	}
	return false
}

func (p *chromePage) ClickAt(ctx context.Context, x, y float64) error {
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.MouseClickXY(x, y)); err != nil {
		return fmt.Errorf("click at (%.0f, %.0f): %w", x, y, err)
	}
	return nil
}

func (p *chromePage) Type(ctx context.Context, text string, perKey time.Duration) error {
	tasks := chromedp.Tasks{}
	count := 0
	for _, r := range text {
		tasks = append(tasks, chromedp.KeyEvent(string(r)))
		if perKey > 0 {
			tasks = append(tasks, chromedp.Sleep(perKey))
		}
		count++
	}
	timeout := p.opts.ActionTimeout + time.Duration(count)*perKey
	if err := p.run(ctx, timeout, tasks); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

func (p *chromePage) Press(ctx context.Context, key string) error {
	switch strings.ToLower(key) {
	case "enter", "return":
		key = kb.Enter
	case "tab":
		key = kb.Tab
	case "escape", "esc":
		key = kb.Escape
	}
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.KeyEvent(key)); err != nil {
		return fmt.Errorf("press %q: %w", key, err)
	}
	return nil
}

func (p *chromePage) Wheel(ctx context.Context, deltaY float64) error {
	w, h, err := p.Viewport(ctx)
	if err != nil {
		return err
	}
	delta := func(params *input.DispatchMouseEventParams) *input.DispatchMouseEventParams {
		return params.WithDeltaX(0).WithDeltaY(deltaY)
	}
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.MouseEvent(input.MouseWheel, float64(w)/2, float64(h)/2, delta)); err != nil {
		return fmt.Errorf("wheel: %w", err)
	}
	return nil
}

func (p *chromePage) Text(ctx context.Context) (string, error) {
	var text string
	if err := p.run(ctx, p.opts.ActionTimeout,
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text)); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return text, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (p *chromePage) Viewport(ctx context.Context) (int, int, error) {
	var size []int
	if err := p.run(ctx, p.opts.ActionTimeout,
		chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &size)); err != nil || len(size) != 2 {
		return p.opts.Width, p.opts.Height, nil
	}
	return size[0], size[1], nil
}

// chromeElement addresses an element by its document-order index, which is
// stable for as long as the document is unchanged.
type chromeElement struct {
	page  *chromePage
	index int
	info  ElementInfo
}

func (e *chromeElement) Key() string       { return strconv.Itoa(e.index) }
func (e *chromeElement) Info() ElementInfo { return e.info }

func (e *chromeElement) Click(ctx context.Context) error {
	var pos struct {
		OK bool    `json:"ok"`
		X  float64 `json:"x"`
		Y  float64 `json:"y"`
	}
	script := fmt.Sprintf(`(function(i) {
		const el = document.getElementsByTagName('*')[i];
		if (!el) return {ok: false, x: 0, y: 0};
		el.scrollIntoView({block: 'center', inline: 'center'});
		const r = el.getBoundingClientRect();
		return {ok: true, x: r.left + r.width / 2, y: r.top + r.height / 2};
	})(%d)`, e.index)
	if err := e.page.run(ctx, e.page.opts.ActionTimeout, chromedp.Evaluate(script, &pos)); err != nil {
		return fmt.Errorf("locate element: %w", err)
	}
	if !pos.OK {
		return fmt.Errorf("element %d is detached", e.index)
	}
	return e.page.ClickAt(ctx, pos.X, pos.Y)
}

func (e *chromeElement) Clear(ctx context.Context) error {
	script := fmt.Sprintf(`(function(i) {
		const el = document.getElementsByTagName('*')[i];
		if (!el) return false;
		el.focus();
		if ('value' in el) {
			el.value = '';
			el.dispatchEvent(new Event('input', {bubbles: true}));
		}
		return true;
	})(%d)`, e.index)
	var ok bool
	if err := e.page.run(ctx, e.page.opts.ActionTimeout, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("clear element: %w", err)
	}
	if !ok {
		return fmt.Errorf("element %d is detached", e.index)
	}
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
