package main

import (
	"fmt"

	"github.com/rahul/webpilot/internal/browser"
	"github.com/rahul/webpilot/internal/governance"
	"github.com/rahul/webpilot/internal/schemas"
	"github.com/rahul/webpilot/internal/tools"
	"github.com/rahul/webpilot/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

func newModel(cfg config.PlannerConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai planner: %w", err)
		}
		return llm, nil
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("ollama planner: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("provider %s not yet implemented", cfg.Provider)
	}
}

func sitesFromConfig(extra []config.SiteConfig) tools.Sites {
	profiles := make([]tools.SiteProfile, 0, len(extra))
	for _, s := range extra {
		profiles = append(profiles, tools.SiteProfile{
			Name:            s.Name,
			Domain:          s.Domain,
			Keywords:        s.Keywords,
			Home:            s.Home,
			SearchURL:       s.SearchURL,
			ResultsSelector: s.ResultsSelector,
			InputSelectors:  s.InputSelectors,
			DirectSearch:    s.DirectSearch,
		})
	}
	return tools.DefaultSites().With(profiles...)
}

func timingFromConfig(t config.TimingConfig) tools.Timing {
	return tools.Timing{
		PerKey:            t.PerKey,
		FocusDelay:        t.FocusDelay,
		ResultsWait:       t.ResultsWait,
		SubmitWait:        t.SubmitWait,
		DirectResultsWait: t.DirectResultsWait,
		SubmitSettle:      t.SubmitSettle,
		AfterSubmit:       t.AfterSubmit,
		ClickSettle:       t.ClickSettle,
		ScrollPause:       t.ScrollPause,
		RemediationWait:   t.RemediationWait,
	}
}

func policyFromConfig(p config.PolicyConfig) (*governance.DefaultPolicyEngine, error) {
	engine := governance.NewDefaultPolicyEngine()
	for _, name := range p.DenyCapabilities {
		c, err := schemas.LookupCapability(name)
		if err != nil {
			return nil, fmt.Errorf("policy deny capability: %w", err)
		}
		engine.DenyCapability(c)
	}
	for _, pattern := range p.DenyPatterns {
		if err := engine.DenyDescriptions(pattern); err != nil {
			return nil, fmt.Errorf("policy deny pattern %q: %w", pattern, err)
		}
	}
	for _, pattern := range p.ConfirmPatterns {
		if err := engine.ConfirmDescriptions(pattern); err != nil {
			return nil, fmt.Errorf("policy confirm pattern %q: %w", pattern, err)
		}
	}
	return engine, nil
}

func chromeOptions(cfg *config.Config) browser.Options {
	b := cfg.Browser
	return browser.Options{
		Headless:          b.Headless,
		ExecPath:          b.ExecPath,
		UserAgent:         b.UserAgent,
		Width:             b.Width,
		Height:            b.Height,
		NavigationTimeout: b.NavigationTimeout,
		ActionTimeout:     b.ActionTimeout,
		SettleDelay:       b.SettleDelay,
		ArtifactDir:       cfg.Artifacts.Dir,
		RecordVideo:       b.RecordVideo,
	}
}
