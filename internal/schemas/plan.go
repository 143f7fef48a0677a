package schemas

import (
	"fmt"
	"strings"
)

// Capability is the category of action an executor can perform.
type Capability string

const (
	CapabilityNavigate Capability = "navigate"
	CapabilityInteract Capability = "interact"
	CapabilityValidate Capability = "validate"
)

// ParseCapability maps planner output onto a Capability. Agent-style names
// ("navigator", "interactor", "validator") are accepted as well. Anything
// unrecognised is treated as navigation.
func ParseCapability(s string) Capability {
	if c, err := LookupCapability(s); err == nil {
		return c
	}
	return CapabilityNavigate
}

// LookupCapability is the strict form of ParseCapability: unknown names are
// an error.
func LookupCapability(s string) (Capability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "navigate", "navigator", "navigation":
		return CapabilityNavigate, nil
	case "interact", "interactor", "interaction":
		return CapabilityInteract, nil
	case "validate", "validator", "validation":
		return CapabilityValidate, nil
	default:
		return "", fmt.Errorf("unknown capability %q", s)
	}
}

// Subtask is one atomic unit of a Plan.
type Subtask struct {
	ID              int        `json:"id"`
	Description     string     `json:"description"`
	Capability      Capability `json:"capability"`
	SuccessCriteria string     `json:"success_criteria"`
	Risks           []string   `json:"risks"`
}

// Plan represents a sequence of subtasks to fulfill a user request.
// Subtasks are ordered by execution sequence; Dependencies is advisory text.
type Plan struct {
	Goal         string    `json:"goal"`
	Assumptions  []string  `json:"assumptions"`
	Subtasks     []Subtask `json:"subtasks"`
	Dependencies string    `json:"dependencies"`
}
