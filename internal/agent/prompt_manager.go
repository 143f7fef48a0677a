package agent

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed prompts/planner.md
var defaultPlannerPrompt string

const plannerFile = "planner.md"

// PromptManager loads planner prompts from a directory of markdown files.
// A missing directory or planner.md falls back to the embedded prompt.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetContextPrompt joins every markdown file except planner.md. Files named
// in the order table come first; the rest follow alphabetically.
func (pm *PromptManager) GetContextPrompt() (string, error) {
	if pm.Directory == "" {
		return "", nil
	}
	files, err := os.ReadDir(pm.Directory)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %w", err)
	}

	order := map[string]int{
		"identity.md": 1,
		"sites.md":    2,
		"rules.md":    3,
		"user.md":     4,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") || f.Name() == plannerFile {
			continue
		}
		data, err := os.ReadFile(filepath.Join(pm.Directory, f.Name()))
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file %s: %w", f.Name(), err)
		}
		contents = append(contents, strings.TrimSpace(string(data)))
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}

// GetPlannerPrompt returns the planner system prompt.
func (pm *PromptManager) GetPlannerPrompt() (string, error) {
	if pm.Directory == "" {
		return defaultPlannerPrompt, nil
	}
	data, err := os.ReadFile(filepath.Join(pm.Directory, plannerFile))
	if errors.Is(err, fs.ErrNotExist) {
		return defaultPlannerPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read planner prompt: %w", err)
	}
	return string(data), nil
}

// GetSystemPrompt is the planner prompt followed by any context files.
func (pm *PromptManager) GetSystemPrompt() (string, error) {
	planner, err := pm.GetPlannerPrompt()
	if err != nil {
		return "", err
	}
	extra, err := pm.GetContextPrompt()
	if err != nil {
		return "", err
	}
	if extra == "" {
		return planner, nil
	}
	return planner + "\n\n---\n\n" + extra, nil
}

// TaskPrompt is the user turn sent to the planner.
func TaskPrompt(task string) string {
	return fmt.Sprintf("ПОЛЬЗОВАТЕЛЬСКАЯ ЗАДАЧА: %s\n\nСоздай подробный план выполнения. Верни ТОЛЬКО JSON без пояснений.", task)
}
