package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is the directory that receives text artifacts.
type Workspace struct {
	Root string
}

func NewWorkspace(root string) *Workspace {
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return &Workspace{Root: absRoot}
}

// Path resolves name inside the workspace, refusing anything that escapes it.
func (w *Workspace) Path(name string) (string, error) {
	targetPath := filepath.Join(w.Root, name)

	rel, err := filepath.Rel(w.Root, targetPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return targetPath, nil
}

// WriteFile stores data under name and returns the full path.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	targetPath, err := w.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(targetPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return targetPath, nil
}
