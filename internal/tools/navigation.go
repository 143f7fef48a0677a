package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahul/webpilot/internal/browser"
	"github.com/rahul/webpilot/internal/schemas"
	"go.uber.org/zap"
)

// NavigationExecutor opens the page a subtask describes.
type NavigationExecutor struct {
	page       browser.Page
	sites      Sites
	defaultURL string
	logger     *zap.Logger
}

var _ Executor = (*NavigationExecutor)(nil)

func NewNavigationExecutor(page browser.Page, sites Sites, defaultURL string, logger *zap.Logger) *NavigationExecutor {
	return &NavigationExecutor{
		page:       page,
		sites:      sites,
		defaultURL: defaultURL,
		logger:     logger.Named("navigator"),
	}
}

func (n *NavigationExecutor) Capability() schemas.Capability { return schemas.CapabilityNavigate }

func (n *NavigationExecutor) Execute(ctx context.Context, subtask schemas.Subtask) schemas.ActionOutcome {
	target, source := ExtractURL(subtask.Description, n.sites, n.defaultURL)
	if target == "" {
		return schemas.Fail(subtask.ID, ActionNavigate,
			schemas.NewFailure(schemas.ErrUnresolvedURL, "could not infer a URL from %q", subtask.Description))
	}
	target = browser.NormalizeURL(target)

	n.logger.Info("Navigating", zap.Int("subtask", subtask.ID), zap.String("url", target), zap.String("source", source))
	if err := n.page.Navigate(ctx, target); err != nil {
		kind := schemas.ErrPageUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			kind = schemas.ErrNavigationTimeout
		}
		n.logger.Warn("Navigation failed", zap.Int("subtask", subtask.ID), zap.String("url", target), zap.Error(err))
		return schemas.Fail(subtask.ID, ActionNavigate, schemas.NewFailure(kind, "failed to load %s: %v", target, err))
	}

	details := map[string]any{
		"url":        target,
		"url_source": source,
	}
	if info, err := n.page.Info(ctx); err == nil {
		details["url"] = info.URL
		details["title"] = info.Title
		details["content_length"] = info.ContentLength
	} else {
		n.logger.Debug("Page info unavailable", zap.Error(err))
	}
	details["screenshot"] = screenshot(ctx, n.page, fmt.Sprintf("step_%d_navigation.png", subtask.ID), n.logger)

	return schemas.Succeed(subtask.ID, ActionNavigate, details)
}

// screenshot captures the page and returns the artifact path, or "" when
// the capture failed. Screenshot failures never fail an action.
func screenshot(ctx context.Context, page browser.Page, name string, logger *zap.Logger) string {
	path, err := page.Screenshot(ctx, name)
	if err != nil {
		logger.Debug("Screenshot failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	return path
}
