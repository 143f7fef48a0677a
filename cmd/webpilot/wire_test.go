package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rahul/webpilot/internal/governance"
	"github.com/rahul/webpilot/internal/schemas"
	"github.com/rahul/webpilot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSitesFromConfig(t *testing.T) {
	sites := sitesFromConfig([]config.SiteConfig{
		{Name: "avito", Domain: "avito.ru", SearchURL: "https://www.avito.ru/rossiya?q={query}", DirectSearch: true},
	})

	p, ok := sites.ForHost("avito.ru")
	require.True(t, ok)
	assert.True(t, p.DirectSearch)
	assert.Equal(t, "https://www.avito.ru/rossiya?q=iphone", p.SearchFor("iphone"))
	_, ok = sites.Get("yandex")
	assert.True(t, ok)
}

func TestTimingFromConfig(t *testing.T) {
	timing := timingFromConfig(config.Default().Timing)

	assert.Equal(t, 100*time.Millisecond, timing.PerKey)
	assert.Equal(t, 6*time.Second, timing.DirectResultsWait)
	assert.Equal(t, 2*time.Second, timing.RemediationWait)
}

func TestPolicyFromConfig(t *testing.T) {
	engine, err := policyFromConfig(config.PolicyConfig{
		DenyCapabilities: []string{"validator"},
		ConfirmPatterns:  []string{"(?i)купить"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	res, err := engine.Evaluate(ctx, governance.Request{Capability: schemas.CapabilityValidate})
	require.NoError(t, err)
	assert.Equal(t, governance.EffectDeny, res.Effect)

	res, err = engine.Evaluate(ctx, governance.Request{Capability: schemas.CapabilityInteract, Description: "Купить билет"})
	require.NoError(t, err)
	assert.True(t, res.RequiresConfirmation)

	_, err = policyFromConfig(config.PolicyConfig{DenyPatterns: []string{"("}})
	assert.Error(t, err)
}

func TestPolicyFromConfig_UnknownCapability(t *testing.T) {
	_, err := policyFromConfig(config.PolicyConfig{DenyCapabilities: []string{"interactr"}})
	assert.ErrorContains(t, err, `unknown capability "interactr"`)

	engine, err := policyFromConfig(config.PolicyConfig{DenyCapabilities: []string{"Navigator"}})
	require.NoError(t, err)
	res, err := engine.Evaluate(context.Background(), governance.Request{Capability: schemas.CapabilityInteract})
	require.NoError(t, err)
	assert.Equal(t, governance.EffectAllow, res.Effect)
}

func TestNewModel_UnknownProvider(t *testing.T) {
	_, err := newModel(config.PlannerConfig{Provider: "gemini"})
	assert.ErrorContains(t, err, "gemini")
}

func TestResolveCommand(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<form><input type="password" id="pw"></form>`), 0o644))
	t.Setenv("WEBPILOT_STORE_ENABLED", "false")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"resolve", "--html", page, "enter", "password"})
	require.NoError(t, cmd.Execute())

	var res schemas.Resolution
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.True(t, res.Found)
	assert.Equal(t, "pw", res.Element.Attributes.ID)
	assert.Equal(t, 0.7, res.Element.Confidence)
}

func TestConfigCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "fallback_site: yandex")
}
