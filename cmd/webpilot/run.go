package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rahul/webpilot/internal/agent"
	"github.com/rahul/webpilot/internal/browser"
	"github.com/rahul/webpilot/internal/gateway"
	"github.com/rahul/webpilot/internal/governance"
	"github.com/rahul/webpilot/internal/observability"
	"github.com/rahul/webpilot/internal/resolver"
	"github.com/rahul/webpilot/internal/schemas"
	"github.com/rahul/webpilot/internal/store"
	"github.com/rahul/webpilot/internal/tools"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	task     string
	planFile string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Plan a task and execute it in the browser",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.v.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := a.v.BindPFlag("browser.record_video", cmd.Flags().Lookup("record-video")); err != nil {
				return err
			}
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.task == "" {
				opts.task = strings.Join(args, " ")
			}
			return a.run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.task, "task", "t", "", "task in natural language")
	cmd.Flags().StringVar(&opts.planFile, "plan", "", "execute a JSON plan file instead of asking the planner")
	cmd.Flags().Bool("headless", false, "run the browser without a window")
	cmd.Flags().Bool("record-video", false, "record screencast frames of the session")
	return cmd
}

func (a *app) run(ctx context.Context, opts runOptions, in io.Reader, out io.Writer) error {
	defer a.logger.Sync()
	observability.PrintBanner(out)

	interactive := observability.IsTerminal(os.Stdin)
	input := bufio.NewReader(in)
	task := strings.TrimSpace(opts.task)
	if task == "" && interactive {
		fmt.Fprint(out, "📝 Введите задачу: ")
		line, err := input.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read task: %w", err)
		}
		task = strings.TrimSpace(line)
	}
	if task == "" {
		return errors.New("no task given")
	}

	plan, err := a.plan(ctx, task, opts.planFile)
	if err != nil {
		return err
	}
	observability.PrintPlan(out, plan)

	session, err := browser.NewChrome(ctx, chromeOptions(a.cfg), a.logger.Named("browser"))
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			a.logger.Warn("browser close failed", zap.Error(err))
		}
	}()

	registry, err := a.executors(session)
	if err != nil {
		return err
	}

	policy, err := policyFromConfig(a.cfg.Policy)
	if err != nil {
		return err
	}
	var confirmer governance.Confirmer = governance.DenyAll{}
	if interactive {
		confirmer = governance.NewPromptConfirmer(input, out)
	}

	sinks := []agent.Sink{agent.LogSink{Logger: a.logger.Named("audit")}}
	if a.cfg.Store.Enabled {
		history, err := store.NewHistoryStore(a.cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer history.Close()
		sinks = append(sinks, history)
	}
	contextLog := agent.NewContextLog(a.logger, sinks...)

	runner := agent.NewRunner(registry, policy, confirmer, contextLog, a.logger)
	runner.Delay = a.cfg.Timing.StepDelay
	runner.OnOutcome = func(st schemas.Subtask, o schemas.ActionOutcome) {
		observability.PrintStep(out, st, o)
	}

	contextLog.Begin(ctx, task, plan)
	outcomes := runner.Run(ctx, plan)
	contextLog.End(context.WithoutCancel(ctx), outcomes)
	observability.PrintSummary(out, outcomes)

	a.notify(ctx, gateway.Report{SessionID: contextLog.SessionID, Task: task, Plan: plan, Outcomes: outcomes})
	return nil
}

func (a *app) plan(ctx context.Context, task, planFile string) (schemas.Plan, error) {
	if planFile != "" {
		data, err := os.ReadFile(planFile)
		if err != nil {
			return schemas.Plan{}, fmt.Errorf("read plan: %w", err)
		}
		plan, err := agent.ParsePlan(string(data), task)
		if err != nil {
			return schemas.Plan{}, fmt.Errorf("parse plan %s: %w", planFile, err)
		}
		return plan, nil
	}

	model, err := newModel(a.cfg.Planner)
	if err != nil {
		a.logger.Warn("planner unavailable, using fallback plan", zap.Error(err))
		return agent.FallbackPlan(task), nil
	}
	planner := agent.NewLLMPlanner(model, agent.NewPromptManager(a.cfg.Planner.PromptsDir), a.logger)
	planner.Temperature = a.cfg.Planner.Temperature
	planner.MaxTokens = a.cfg.Planner.MaxTokens
	return planner.CreatePlan(ctx, task), nil
}

func (a *app) executors(session browser.Session) (*tools.Registry, error) {
	sites := sitesFromConfig(a.cfg.Sites)
	fallback, ok := sites.Get(a.cfg.Browser.FallbackSite)
	if !ok {
		return nil, fmt.Errorf("fallback site %q is not a known site profile", a.cfg.Browser.FallbackSite)
	}

	timing := timingFromConfig(a.cfg.Timing)
	workspace := tools.NewWorkspace(a.cfg.Artifacts.Dir)
	challenge := tools.NewChallengeHandler(session, fallback, a.cfg.Browser.ChallengeAttempts, timing, a.logger)

	return tools.NewRegistry(
		tools.NewNavigationExecutor(session, sites, a.cfg.Browser.DefaultURL, a.logger),
		tools.NewInteractionExecutor(session, resolver.New(a.logger), challenge, sites, workspace, timing, a.logger),
		tools.NewValidationExecutor(session, a.logger),
	), nil
}

func (a *app) notify(ctx context.Context, report gateway.Report) {
	if !a.cfg.Telegram.Enabled {
		return
	}
	tg, err := gateway.NewTelegramNotifier(a.cfg.Telegram.Token, a.cfg.Telegram.ChatID, a.logger)
	if err != nil {
		a.logger.Warn("telegram unavailable", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := tg.Notify(ctx, report); err != nil {
		a.logger.Warn("telegram report failed", zap.Error(err))
	}
}
