package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/webpilot/internal/browser"
	"github.com/rahul/webpilot/internal/observability"
	"github.com/rahul/webpilot/internal/resolver"
	"github.com/rahul/webpilot/internal/schemas"
	"go.uber.org/zap"
)

// MaxRemediationAttempts bounds local challenge fixes before the tab fallback.
const MaxRemediationAttempts = 2

// PathChallengeFallback is reported in outcome details when a search was
// moved to a fresh tab.
const PathChallengeFallback = "challenge_fallback"

var (
	challengeMarkers = []string{
		"captcha",
		"пройдите капчу",
		"введите текст с картинки",
		"подтвердите, что вы не робот",
		"текст с картинки",
		"i'm not a robot",
		"unusual traffic",
	}
	challengeSelectors = []string{
		`input[name*="captcha"]`,
		`input[id*="captcha"]`,
		`div.captcha`,
		`img.captcha`,
		`iframe[src*="captcha"]`,
	}
	challengeInputSelectors = []string{
		`input[name*="captcha"]`,
		`input[id*="captcha"]`,
		`input[placeholder*="капч"]`,
		`input`,
	}
)

// ChallengeReport describes one remediation-then-fallback sequence.
type ChallengeReport struct {
	Attempts    int
	Screenshots []string
	FallbackURL string
	// FallbackShot is the screenshot of the fallback tab.
	FallbackShot string
	// Failure is set when the fallback tab could not be opened.
	Failure *schemas.Failure
}

// Details renders the report for an ActionOutcome.
func (r ChallengeReport) Details() map[string]any {
	d := map[string]any{
		"challenge_detected":   true,
		"remediation_attempts": r.Attempts,
		"captcha_screenshots":  r.Screenshots,
	}
	if r.Failure != nil {
		d["fallback_error"] = r.Failure.Error()
		return d
	}
	d["path"] = PathChallengeFallback
	d["fallback_url"] = r.FallbackURL
	d["screenshot"] = r.FallbackShot
	return d
}

// ChallengeHandler detects anti-bot checkpoints and runs the bounded
// remediation sequence.
type ChallengeHandler struct {
	session  browser.Session
	fallback SiteProfile
	attempts int
	wait     time.Duration
	focus    time.Duration
	logger   *zap.Logger
}

// NewChallengeHandler returns a handler that falls back to the fallback
// profile's search page. attempts is clamped to [1, MaxRemediationAttempts].
func NewChallengeHandler(session browser.Session, fallback SiteProfile, attempts int, timing Timing, logger *zap.Logger) *ChallengeHandler {
	attempts = max(1, min(attempts, MaxRemediationAttempts))
	return &ChallengeHandler{
		session:  session,
		fallback: fallback,
		attempts: attempts,
		wait:     timing.RemediationWait,
		focus:    timing.FocusDelay,
		logger:   logger.Named("challenge"),
	}
}

// Detect reports whether page shows a challenge, either by its rendered text
// or by a known challenge element.
func (h *ChallengeHandler) Detect(ctx context.Context, page browser.Page) bool {
	body, err := page.Text(ctx)
	if err != nil {
		body, _ = page.HTML(ctx)
	}
	body = strings.ToLower(body)
	for _, m := range challengeMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	for _, sel := range challengeSelectors {
		if els, err := page.QueryAll(ctx, sel); err == nil && len(els) > 0 {
			return true
		}
	}
	return false
}

// Handle makes at most MaxRemediationAttempts local attempts on page and
// then opens the fallback search for query in a new tab. The new tab is left
// open for the session to close.
func (h *ChallengeHandler) Handle(ctx context.Context, page browser.Page, subtaskID int, query string) ChallengeReport {
	var report ChallengeReport
	for attempt := 1; attempt <= h.attempts; attempt++ {
		report.Attempts = attempt
		h.logger.Info("Challenge remediation attempt", zap.Int("subtask", subtaskID), zap.Int("attempt", attempt))

		name := fmt.Sprintf("captcha_attempt_%d_%d.png", subtaskID, attempt)
		if path := screenshot(ctx, page, name, h.logger); path != "" {
			report.Screenshots = append(report.Screenshots, path)
		}
		h.remediate(ctx, page)
	}

	report.FallbackURL = h.fallback.SearchFor(query)
	tab, err := h.session.OpenTab(ctx, report.FallbackURL)
	if err != nil {
		h.logger.Warn("Fallback tab failed", zap.String("url", report.FallbackURL), zap.Error(err))
		report.Failure = schemas.NewFailure(schemas.ErrChallengeUnresolved,
			"challenge persisted after %d attempts and fallback tab failed: %v", report.Attempts, err)
		return report
	}
	report.FallbackShot = screenshot(ctx, tab, fmt.Sprintf("step_%d_captcha_fallback.png", subtaskID), h.logger)
	observability.Audit(h.logger, observability.EventTypeChallenge, "search moved to fallback tab",
		zap.Int("subtask", subtaskID),
		zap.Int("attempts", report.Attempts),
		zap.String("url", report.FallbackURL),
	)
	return report
}

// remediate focuses the challenge input when one is visible, otherwise
// clicks the viewport centre, then waits.
func (h *ChallengeHandler) remediate(ctx context.Context, page browser.Page) {
	if el, _, ok := resolver.FirstVisible(ctx, page, challengeInputSelectors); ok {
		if err := el.Click(ctx); err != nil {
			h.logger.Debug("Challenge input click failed", zap.Error(err))
		}
		pause(ctx, h.focus)
	} else {
		w, hgt, err := page.Viewport(ctx)
		if err != nil {
			w, hgt = 1200, 800
		}
		if err := page.ClickAt(ctx, float64(w/2), float64(hgt/2)); err != nil {
			h.logger.Debug("Centre click failed", zap.Error(err))
		}
	}
	pause(ctx, h.wait)
}
