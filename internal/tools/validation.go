package tools

import (
	"context"

	"github.com/rahul/webpilot/internal/browser"
	"github.com/rahul/webpilot/internal/schemas"
	"go.uber.org/zap"
)

// ValidationExecutor accepts validation subtasks and records the page they
// were checked against. No assertion is evaluated against SuccessCriteria.
type ValidationExecutor struct {
	page   browser.Page
	logger *zap.Logger
}

var _ Executor = (*ValidationExecutor)(nil)

func NewValidationExecutor(page browser.Page, logger *zap.Logger) *ValidationExecutor {
	return &ValidationExecutor{page: page, logger: logger.Named("validator")}
}

func (v *ValidationExecutor) Capability() schemas.Capability { return schemas.CapabilityValidate }

func (v *ValidationExecutor) Execute(ctx context.Context, subtask schemas.Subtask) schemas.ActionOutcome {
	details := map[string]any{
		"validated": true,
		"criteria":  subtask.SuccessCriteria,
	}
	if info, err := v.page.Info(ctx); err == nil {
		details["url"] = info.URL
		details["title"] = info.Title
	} else {
		v.logger.Debug("Page info unavailable", zap.Error(err))
	}
	return schemas.Succeed(subtask.ID, ActionValidate, details)
}
