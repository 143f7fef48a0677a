package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/webpilot/internal/governance"
	"github.com/rahul/webpilot/internal/observability"
	"github.com/rahul/webpilot/internal/schemas"
	"github.com/rahul/webpilot/internal/tools"
	"go.uber.org/zap"
)

// DefaultStepDelay separates consecutive subtasks.
const DefaultStepDelay = time.Second

// Runner executes a plan subtask by subtask. A failing subtask never stops
// the run: Run always returns one outcome per subtask, in plan order.
type Runner struct {
	Registry  *tools.Registry
	Policy    governance.PolicyEngine
	Confirmer governance.Confirmer
	Log       *ContextLog
	Delay     time.Duration
	// OnOutcome, when set, is called after each subtask.
	OnOutcome func(schemas.Subtask, schemas.ActionOutcome)

	logger *zap.Logger
}

func NewRunner(registry *tools.Registry, policy governance.PolicyEngine, confirmer governance.Confirmer, log *ContextLog, logger *zap.Logger) *Runner {
	if confirmer == nil {
		confirmer = governance.DenyAll{}
	}
	return &Runner{
		Registry:  registry,
		Policy:    policy,
		Confirmer: confirmer,
		Log:       log,
		Delay:     DefaultStepDelay,
		logger:    logger.Named("runner"),
	}
}

func (r *Runner) Run(ctx context.Context, plan schemas.Plan) []schemas.ActionOutcome {
	outcomes := make([]schemas.ActionOutcome, 0, len(plan.Subtasks))

	for i, st := range plan.Subtasks {
		r.logger.Info("executing subtask",
			zap.Int("id", st.ID),
			zap.Int("position", i+1),
			zap.Int("total", len(plan.Subtasks)),
			zap.String("capability", string(st.Capability)),
			zap.String("description", st.Description),
		)

		out := r.step(ctx, st)
		outcomes = append(outcomes, out)
		if r.Log != nil {
			r.Log.Append(ctx, st, out)
		}
		if r.OnOutcome != nil {
			r.OnOutcome(st, out)
		}

		if i < len(plan.Subtasks)-1 {
			r.wait(ctx)
		}
	}
	return outcomes
}

func (r *Runner) step(ctx context.Context, st schemas.Subtask) (out schemas.ActionOutcome) {
	kind := string(st.Capability)

	if f := r.gate(ctx, st); f != nil {
		return schemas.Fail(st.ID, kind, f)
	}

	exec, ok := r.Registry.Get(st.Capability)
	if !ok {
		return schemas.Fail(st.ID, kind, schemas.NewFailure(schemas.ErrUnknownActionKind, "no executor for capability %q", st.Capability))
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("executor panicked", zap.Int("id", st.ID), zap.Any("panic", p))
			out = schemas.Fail(st.ID, kind, schemas.NewFailure(schemas.ErrExecutorPanic, "%v", p))
		}
	}()

	out = exec.Execute(ctx, st)
	out.SubtaskID = st.ID
	if out.Details == nil {
		out.Details = map[string]any{}
	}
	return out
}

func (r *Runner) gate(ctx context.Context, st schemas.Subtask) *schemas.Failure {
	if r.Policy == nil {
		return nil
	}

	res, err := r.Policy.Evaluate(ctx, governance.Request{
		SubtaskID:   st.ID,
		Capability:  st.Capability,
		Description: st.Description,
	})
	if err != nil {
		return schemas.NewFailure(schemas.ErrPolicyDenied, "policy evaluation failed: %v", err)
	}
	observability.Audit(r.logger, observability.EventTypePolicyCheck, "policy evaluated",
		zap.Int("id", st.ID),
		zap.String("effect", string(res.Effect)),
		zap.String("reason", res.Reason),
		zap.Bool("confirmation", res.RequiresConfirmation),
	)

	if res.Effect == governance.EffectDeny {
		return schemas.NewFailure(schemas.ErrPolicyDenied, "%s", res.Reason)
	}
	if !res.RequiresConfirmation {
		return nil
	}

	ok, err := r.Confirmer.Confirm(ctx, fmt.Sprintf("%d. %s (%s)", st.ID, st.Description, res.Reason))
	if err != nil {
		return schemas.NewFailure(schemas.ErrDeclined, "confirmation failed: %v", err)
	}
	if !ok {
		return schemas.NewFailure(schemas.ErrDeclined, "operator declined subtask %d", st.ID)
	}
	return nil
}

func (r *Runner) wait(ctx context.Context) {
	if r.Delay <= 0 {
		return
	}
	t := time.NewTimer(r.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
