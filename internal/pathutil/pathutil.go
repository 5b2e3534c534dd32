// Package pathutil resolves artifact and storage locations inside a project
// root and rejects anything that would escape it.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// WorkflowDir is the per-project directory holding approvals and specs.
const WorkflowDir = ".spec-workflow"

// ErrTraversal is returned when a relative path resolves outside its root.
var ErrTraversal = errors.New("path traversal detected")

var systemDirs = []string{"/etc", "/usr", "/bin", "/sbin", "/var", "/sys", "/proc"}

// SafeJoin joins rel onto root and returns an absolute path inside root.
func SafeJoin(root string, rel ...string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("invalid base path: empty")
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve base path %s: %w", root, err)
	}
	for _, segment := range rel {
		if strings.ContainsRune(segment, 0) {
			return "", fmt.Errorf("%w: invalid segment %q", ErrTraversal, segment)
		}
		if filepath.IsAbs(segment) || strings.HasPrefix(segment, "/") {
			return "", fmt.Errorf("%w: absolute segment %q", ErrTraversal, segment)
		}
	}
	joined := filepath.Join(append([]string{base}, rel...)...)
	relative, err := filepath.Rel(base, joined)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTraversal, err)
	}
	if relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes %s", ErrTraversal, filepath.Join(rel...), base)
	}
	return joined, nil
}

// ApprovalsDir returns <root>/.spec-workflow/approvals.
func ApprovalsDir(root string) (string, error) {
	return SafeJoin(root, WorkflowDir, "approvals")
}

// ValidateProjectPath checks that projectPath is an accessible directory
// outside well-known system locations and returns its absolute form.
func ValidateProjectPath(projectPath string) (string, error) {
	if strings.TrimSpace(projectPath) == "" {
		return "", fmt.Errorf("invalid project path: path must be a non-empty string")
	}
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return "", fmt.Errorf("resolve project path %s: %w", projectPath, err)
	}
	if runtime.GOOS != "windows" {
		for _, dir := range systemDirs {
			if abs == dir || strings.HasPrefix(abs, dir+"/") {
				return "", fmt.Errorf("access to system directory not allowed: %s", abs)
			}
		}
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("project path does not exist: %s", projectPath)
		}
		return "", fmt.Errorf("stat project path %s: %w", projectPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project path is not a directory: %s", abs)
	}
	return abs, nil
}
