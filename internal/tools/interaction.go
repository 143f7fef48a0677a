package tools

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"math/rand/v2"
	"time"

	"github.com/rahul/webpilot/internal/browser"
	"github.com/rahul/webpilot/internal/resolver"
	"github.com/rahul/webpilot/internal/schemas"
	"go.uber.org/zap"
)

var (
	searchFieldSelectors = []string{
		`input[type="text"]`,
		`input[name="text"]`,
		`input[type="search"]`,
		`input.search3__input`,
		`input[class*="search"]`,
		`input[class*="input"]`,
		`textarea`,
		`input`,
	}
	submitSelectors = []string{
		`button[type="submit"]`,
		`button:has-text("Найти")`,
		`button:has-text("Найти вакансии")`,
		`button:has-text("Search")`,
	}
	clickSelectors = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`button[class*="search"]`,
		`button[class*="submit"]`,
		`input[value*="Найти"]`,
		`input[value*="Search"]`,
		`button:has-text("Найти")`,
		`button:has-text("Search")`,
		`button`,
		`a.button`,
	}
)

const previewRunes = 500

// InteractionExecutor types, clicks, scrolls and reads on the current page.
type InteractionExecutor struct {
	session   browser.Session
	resolver  *resolver.Resolver
	challenge *ChallengeHandler
	sites     Sites
	workspace *Workspace
	timing    Timing
	rand      *rand.Rand
	now       func() time.Time
	logger    *zap.Logger
}

var _ Executor = (*InteractionExecutor)(nil)

// InteractionOption customises an InteractionExecutor.
type InteractionOption func(*InteractionExecutor)

// WithRand fixes the scroll distance source.
func WithRand(r *rand.Rand) InteractionOption {
	return func(e *InteractionExecutor) { e.rand = r }
}

// WithClock replaces the clock used to name text artifacts.
func WithClock(now func() time.Time) InteractionOption {
	return func(e *InteractionExecutor) { e.now = now }
}

func NewInteractionExecutor(session browser.Session, res *resolver.Resolver, challenge *ChallengeHandler, sites Sites, workspace *Workspace, timing Timing, logger *zap.Logger, opts ...InteractionOption) *InteractionExecutor {
	e := &InteractionExecutor{
		session:   session,
		resolver:  res,
		challenge: challenge,
		sites:     sites,
		workspace: workspace,
		timing:    timing,
		rand:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:       time.Now,
		logger:    logger.Named("interactor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *InteractionExecutor) Capability() schemas.Capability { return schemas.CapabilityInteract }

func (e *InteractionExecutor) Execute(ctx context.Context, subtask schemas.Subtask) schemas.ActionOutcome {
	kind := ClassifyAction(subtask.Description)
	e.logger.Info("Interacting", zap.Int("subtask", subtask.ID), zap.String("action", kind))

	switch kind {
	case ActionType:
		return e.typeText(ctx, subtask)
	case ActionClick:
		return e.click(ctx, subtask)
	case ActionScroll:
		return e.scroll(ctx, subtask)
	case ActionRead:
		return e.read(ctx, subtask)
	default:
		return schemas.Fail(subtask.ID, ActionUnknown,
			schemas.NewFailure(schemas.ErrUnknownActionKind, "cannot tell which action %q asks for", subtask.Description))
	}
}

func (e *InteractionExecutor) typeText(ctx context.Context, subtask schemas.Subtask) schemas.ActionOutcome {
	site, query := ExtractTypeTarget(subtask.Description)
	if query == "" {
		return schemas.Fail(subtask.ID, ActionType,
			schemas.NewFailure(schemas.ErrEmptyInput, "no text to type in %q", subtask.Description))
	}

	profile, hasProfile := e.sites.ForHost(site)
	if site == "" {
		profile, hasProfile = e.sites.Match(subtask.Description)
	}
	if hasProfile && profile.DirectSearch {
		if out, ok := e.directSearch(ctx, subtask, profile, site, query); ok {
			return out
		}
	} else if site != "" {
		if err := e.session.Navigate(ctx, browser.NormalizeURL(site)); err != nil {
			e.logger.Warn("Could not open site, typing on current page", zap.String("site", site), zap.Error(err))
		}
	}

	details := map[string]any{"text_entered": query}
	if site != "" {
		details["site"] = site
	}

	var selectors []string
	if hasProfile {
		selectors = append(selectors, profile.InputSelectors...)
	}
	selectors = append(selectors, searchFieldSelectors...)

	field, sel, ok := resolver.FirstVisible(ctx, e.session, selectors)
	if !ok {
		// No field in the DOM: focus whatever the screenshot suggests and type.
		x, y := e.fieldPoint(ctx)
		if err := e.session.ClickAt(ctx, x, y); err != nil {
			e.logger.Debug("Focus click failed", zap.Error(err))
		}
		pause(ctx, e.timing.FocusDelay)
		if err := e.session.Type(ctx, query, 0); err != nil {
			return schemas.Fail(subtask.ID, ActionType,
				schemas.NewFailure(schemas.ErrUnresolvedElement, "no input field found and typing failed: %v", err))
		}
		details["field"] = "focused_point"
		details["results_shown"] = false
		details["screenshot"] = screenshot(ctx, e.session, fmt.Sprintf("step_%d_typing.png", subtask.ID), e.logger)
		return schemas.Succeed(subtask.ID, ActionType, details)
	}

	details["field"] = sel
	if err := field.Click(ctx); err != nil {
		e.logger.Debug("Field click failed", zap.String("selector", sel), zap.Error(err))
	}
	pause(ctx, e.timing.FocusDelay)
	if err := field.Clear(ctx); err != nil {
		e.logger.Debug("Field clear failed", zap.String("selector", sel), zap.Error(err))
	}
	if err := e.session.Type(ctx, query, e.timing.PerKey); err != nil {
		return schemas.Fail(subtask.ID, ActionType,
			schemas.NewFailure(schemas.ErrPageUnavailable, "typing into %s failed: %v", sel, err))
	}
	if err := e.session.Press(ctx, "Enter"); err != nil {
		e.logger.Debug("Enter failed", zap.Error(err))
	}

	results := e.resultsSelector(ctx)
	shown := e.session.WaitVisible(ctx, results, e.timing.ResultsWait)
	if !shown {
		shown = e.submitExplicitly(ctx, results)
	}
	pause(ctx, e.timing.AfterSubmit)
	details["results_shown"] = shown

	if !shown && e.challenge != nil && e.challenge.Detect(ctx, e.session) {
		e.logger.Warn("Challenge detected after search", zap.Int("subtask", subtask.ID))
		report := e.challenge.Handle(ctx, e.session, subtask.ID, query)
		for k, v := range report.Details() {
			details[k] = v
		}
		if report.Failure == nil {
			return schemas.Succeed(subtask.ID, ActionType, details)
		}
	}

	details["screenshot"] = screenshot(ctx, e.session, fmt.Sprintf("step_%d_typing.png", subtask.ID), e.logger)
	return schemas.Succeed(subtask.ID, ActionType, details)
}

// directSearch opens the profile's parametrised search URL. It reports false
// when the navigation failed and the caller should type instead.
func (e *InteractionExecutor) directSearch(ctx context.Context, subtask schemas.Subtask, profile SiteProfile, site, query string) (schemas.ActionOutcome, bool) {
	target := profile.SearchFor(query)
	e.logger.Info("Direct search", zap.String("site", profile.Name), zap.String("url", target))
	if err := e.session.Navigate(ctx, target); err != nil {
		e.logger.Warn("Direct search failed, falling back to typing", zap.String("url", target), zap.Error(err))
		return schemas.ActionOutcome{}, false
	}
	shown := profile.ResultsSelector != "" && e.session.WaitVisible(ctx, profile.ResultsSelector, e.timing.DirectResultsWait)

	details := map[string]any{
		"text_entered":  query,
		"results_shown": shown,
		"path":          "direct_search",
		"search_url":    target,
		"screenshot":    screenshot(ctx, e.session, fmt.Sprintf("step_%d_typing.png", subtask.ID), e.logger),
	}
	if site != "" {
		details["site"] = site
	}
	return schemas.Succeed(subtask.ID, ActionType, details), true
}

// submitExplicitly clicks the first visible submit button and waits for
// results again. It reports whether results appeared.
func (e *InteractionExecutor) submitExplicitly(ctx context.Context, results string) bool {
	for _, sel := range submitSelectors {
		btn, _, ok := resolver.FirstVisible(ctx, e.session, []string{sel})
		if !ok {
			continue
		}
		if err := btn.Click(ctx); err != nil {
			continue
		}
		pause(ctx, e.timing.SubmitSettle)
		if e.session.WaitVisible(ctx, results, e.timing.SubmitWait) {
			return true
		}
	}
	return false
}

func (e *InteractionExecutor) resultsSelector(ctx context.Context) string {
	if info, err := e.session.Info(ctx); err == nil {
		if p, ok := e.sites.ForHost(info.URL); ok && p.ResultsSelector != "" {
			return p.ResultsSelector
		}
	}
	return e.sites.ResultsSelector()
}

// fieldPoint picks a point to focus when no input is in the DOM: the
// topmost field-shaped box in a screenshot, else the viewport centre.
func (e *InteractionExecutor) fieldPoint(ctx context.Context) (float64, float64) {
	if shot, err := e.session.Capture(ctx); err == nil {
		if img, err := png.Decode(bytes.NewReader(shot)); err == nil {
			if res := resolver.ResolveImage(img, "поле ввода"); res.Found {
				return float64(res.Element.Center.X), float64(res.Element.Center.Y)
			}
		}
	}
	w, h := e.viewport(ctx)
	return float64(w / 2), float64(h / 2)
}

func (e *InteractionExecutor) click(ctx context.Context, subtask schemas.Subtask) schemas.ActionOutcome {
	details := map[string]any{"verified": false}

	if btn, sel, ok := resolver.FirstVisible(ctx, e.session, clickSelectors); ok && btn.Click(ctx) == nil {
		details["method"] = "selector"
		details["selector"] = sel
	} else if res := e.resolver.Resolve(ctx, e.session, subtask.Description); res.Found &&
		e.session.ClickAt(ctx, float64(res.Element.Center.X), float64(res.Element.Center.Y)) == nil {
		details["method"] = "resolver"
		details["layer"] = res.Layer
		details["confidence"] = res.Element.Confidence
		details["x"], details["y"] = res.Element.Center.X, res.Element.Center.Y
	} else {
		w, h := e.viewport(ctx)
		x, y := w/2, h-100
		if err := e.session.ClickAt(ctx, float64(x), float64(y)); err != nil {
			e.logger.Debug("Fallback click failed", zap.Error(err))
		}
		details["method"] = "coordinate"
		details["x"], details["y"] = x, y
	}
	e.logger.Info("Clicked", zap.Int("subtask", subtask.ID), zap.Any("method", details["method"]))

	pause(ctx, e.timing.ClickSettle)
	details["screenshot"] = screenshot(ctx, e.session, fmt.Sprintf("step_%d_click.png", subtask.ID), e.logger)
	return schemas.Succeed(subtask.ID, ActionClick, details)
}

func (e *InteractionExecutor) scroll(ctx context.Context, subtask schemas.Subtask) schemas.ActionOutcome {
	first := 500 + e.rand.IntN(1001)
	second := 300 + e.rand.IntN(501)

	if err := e.session.Wheel(ctx, float64(first)); err != nil {
		e.logger.Debug("Wheel failed", zap.Error(err))
	}
	pause(ctx, e.timing.ScrollPause)
	if err := e.session.Wheel(ctx, float64(second)); err != nil {
		e.logger.Debug("Wheel failed", zap.Error(err))
	}
	pause(ctx, e.timing.ScrollPause/2)

	return schemas.Succeed(subtask.ID, ActionScroll, map[string]any{
		"scroll_amounts": []int{first, second},
		"verified":       false,
		"screenshot":     screenshot(ctx, e.session, fmt.Sprintf("step_%d_scroll.png", subtask.ID), e.logger),
	})
}

func (e *InteractionExecutor) read(ctx context.Context, subtask schemas.Subtask) schemas.ActionOutcome {
	text, err := e.session.Text(ctx)
	if err != nil {
		html, htmlErr := e.session.HTML(ctx)
		if htmlErr != nil {
			return schemas.Fail(subtask.ID, ActionRead,
				schemas.NewFailure(schemas.ErrPageUnavailable, "page text unavailable: %v", err))
		}
		if text, err = TextFromHTML(html); err != nil {
			return schemas.Fail(subtask.ID, ActionRead,
				schemas.NewFailure(schemas.ErrPageUnavailable, "page text unavailable: %v", err))
		}
	}

	name := fmt.Sprintf("recipe_text_%s.txt", e.now().Format("20060102_150405"))
	saved, err := e.workspace.WriteFile(name, []byte(text))
	if err != nil {
		return schemas.Fail(subtask.ID, ActionRead,
			schemas.NewFailure(schemas.ErrPageUnavailable, "saving page text: %v", err))
	}

	details := map[string]any{
		"text_preview": preview(text, previewRunes),
		"characters":   len([]rune(text)),
		"file_saved":   saved,
	}
	if info, err := e.session.Info(ctx); err == nil {
		if html, err := e.session.HTML(ctx); err == nil {
			if article, err := ExtractArticle(html, info.URL); err == nil {
				details["title"] = article.Title
				details["excerpt"] = article.Excerpt
			}
		}
	}
	details["screenshot"] = screenshot(ctx, e.session, fmt.Sprintf("step_%d_read.png", subtask.ID), e.logger)
	e.logger.Info("Page text saved", zap.Int("subtask", subtask.ID), zap.String("file", saved))
	return schemas.Succeed(subtask.ID, ActionRead, details)
}

func (e *InteractionExecutor) viewport(ctx context.Context) (int, int) {
	w, h, err := e.session.Viewport(ctx)
	if err != nil || w <= 0 || h <= 0 {
		return 1280, 720
	}
	return w, h
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
