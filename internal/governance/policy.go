package governance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/rahul/webpilot/internal/schemas"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes the subtask about to be executed.
type Request struct {
	SubtaskID   int
	Capability  schemas.Capability
	Description string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect               Effect
	Reason               string
	RequiresConfirmation bool
}

// PolicyEngine evaluates subtasks against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine. With no
// rules configured it allows everything without confirmation.
type DefaultPolicyEngine struct {
	DeniedCapabilities map[schemas.Capability]bool
	DeniedRegex        []*regexp.Regexp
	ConfirmRegex       []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedCapabilities: make(map[schemas.Capability]bool),
		DeniedRegex:        make([]*regexp.Regexp, 0),
		ConfirmRegex:       make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyCapability(c schemas.Capability) {
	e.DeniedCapabilities[c] = true
}

// DenyDescriptions blocks subtasks whose description matches pattern.
func (e *DefaultPolicyEngine) DenyDescriptions(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

// ConfirmDescriptions requires operator confirmation for subtasks whose
// description matches pattern.
func (e *DefaultPolicyEngine) ConfirmDescriptions(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.ConfirmRegex = append(e.ConfirmRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedCapabilities[req.Capability] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Capability '%s' is restricted by system policy", req.Capability),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Description) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Description matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	for _, re := range e.ConfirmRegex {
		if re.MatchString(req.Description) {
			return Result{
				Effect:               EffectAllow,
				Reason:               fmt.Sprintf("Description matches sensitive pattern: %s", re.String()),
				RequiresConfirmation: true,
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

// Confirmer asks an operator to approve a sensitive subtask.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// PromptConfirmer asks on a terminal-like stream pair. The reader is shared
// with every other consumer of the same input so buffered lines are not lost.
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptConfirmer(in *bufio.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: in, out: out}
}

func (p *PromptConfirmer) Confirm(_ context.Context, message string) (bool, error) {
	fmt.Fprintf(p.out, "\n⚠️  Confirmation required: %s\n   Proceed? (y/n): ", message)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "да", "д":
		return true, nil
	}
	return false, nil
}

// DenyAll declines every confirmation; used when no operator is attached.
type DenyAll struct{}

func (DenyAll) Confirm(context.Context, string) (bool, error) { return false, nil }
