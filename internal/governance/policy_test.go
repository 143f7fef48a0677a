package governance

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rahul/webpilot/internal/schemas"
	"pgregory.net/rapid"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	// Test Allow (Default)
	req1 := Request{SubtaskID: 1, Capability: schemas.CapabilityNavigate, Description: "open hh.ru"}
	res1, err := engine.Evaluate(ctx, req1)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res1.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s", res1.Effect)
	}
	if res1.RequiresConfirmation {
		t.Errorf("Default policy must not require confirmation")
	}

	// Test Deny
	engine.DenyCapability(schemas.CapabilityInteract)
	req2 := Request{SubtaskID: 2, Capability: schemas.CapabilityInteract, Description: "click"}
	res2, err := engine.Evaluate(ctx, req2)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res2.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res2.Effect)
	}
}

func TestDefaultPolicyEngine_Patterns(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	if err := engine.DenyDescriptions(`(?i)delete account`); err != nil {
		t.Fatalf("DenyDescriptions: %v", err)
	}
	if err := engine.ConfirmDescriptions(`(?i)оплат|pay`); err != nil {
		t.Fatalf("ConfirmDescriptions: %v", err)
	}
	if err := engine.DenyDescriptions(`(`); err == nil {
		t.Errorf("Expected error for invalid pattern")
	}

	ctx := context.Background()
	res, _ := engine.Evaluate(ctx, Request{Description: "Delete account now"})
	if res.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res.Effect)
	}

	res, _ = engine.Evaluate(ctx, Request{Description: "Нажать кнопку Оплатить"})
	if res.Effect != EffectAllow || !res.RequiresConfirmation {
		t.Errorf("Expected allow with confirmation, got %+v", res)
	}
}

func TestDefaultPolicyEngine_NeverRequiresConfirmationWithoutRules(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	caps := []schemas.Capability{schemas.CapabilityNavigate, schemas.CapabilityInteract, schemas.CapabilityValidate}

	rapid.Check(t, func(t *rapid.T) {
		req := Request{
			SubtaskID:   rapid.Int().Draw(t, "id"),
			Capability:  rapid.SampledFrom(caps).Draw(t, "capability"),
			Description: rapid.String().Draw(t, "description"),
		}
		res, err := engine.Evaluate(context.Background(), req)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if res.Effect != EffectAllow || res.RequiresConfirmation {
			t.Fatalf("unexpected result %+v for %+v", res, req)
		}
	})
}

func TestPromptConfirmer(t *testing.T) {
	cases := map[string]bool{"y\n": true, "да\n": true, "Yes\n": true, "n\n": false, "\n": false}
	for input, want := range cases {
		var out bytes.Buffer
		got, err := NewPromptConfirmer(bufio.NewReader(strings.NewReader(input)), &out).Confirm(context.Background(), "pay?")
		if err != nil {
			t.Fatalf("Confirm(%q) failed: %v", input, err)
		}
		if got != want {
			t.Errorf("Confirm(%q) = %v, want %v", input, got, want)
		}
		if !strings.Contains(out.String(), "pay?") {
			t.Errorf("prompt not written: %q", out.String())
		}
	}
}

func TestPromptConfirmer_SharedReader(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("найти котиков\ny\nn\n"))
	task, err := in.ReadString('\n')
	if err != nil || task != "найти котиков\n" {
		t.Fatalf("task line = %q, %v", task, err)
	}

	var out bytes.Buffer
	c := NewPromptConfirmer(in, &out)
	for i, want := range []bool{true, false} {
		got, err := c.Confirm(context.Background(), "pay?")
		if err != nil {
			t.Fatalf("Confirm #%d failed: %v", i+1, err)
		}
		if got != want {
			t.Errorf("Confirm #%d = %v, want %v", i+1, got, want)
		}
	}
}
