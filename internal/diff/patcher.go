// Package diff exposes the file-system side of the accept_diff MCP
// tool: validating that a proposed write stays inside the session's
// workspace root, then applying either an envelope patch (see the
// patch subpackage) or a raw full-file replacement.
//
// Grounded on original_source/src/diff/mod.rs (validate_workspace_path)
// and internal/tools/patch (the teacher's apply_patch engine, adapted
// here as the envelope-hunk path).
package diff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/softwaresalt/agent-intercom/internal/diff/patch"
)

// Patcher applies an approved diff to a workspace. It is the interface
// the Request Broker's accept_diff flow depends on (accept interfaces,
// return structs), so tests can exercise the MCP tool handler without
// touching the real filesystem.
type Patcher interface {
	Apply(workspaceRoot, filePath, content string) (*patch.AffectedPaths, error)
}

// FilePatcher is the default, real-filesystem Patcher implementation.
type FilePatcher struct{}

// NewFilePatcher builds the default Patcher.
func NewFilePatcher() FilePatcher { return FilePatcher{} }

// Apply validates filePath against workspaceRoot and applies content,
// which is either an envelope patch (starting with "*** Begin Patch")
// applied hunk-by-hunk via the patch subpackage, or raw text written
// as the full new contents of filePath.
func (FilePatcher) Apply(workspaceRoot, filePath, content string) (*patch.AffectedPaths, error) {
	validated, err := ValidateWorkspacePath(workspaceRoot, filePath)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(strings.TrimSpace(content), "*** Begin Patch") {
		summary, err := patch.Apply(content, workspaceRoot)
		if err != nil {
			return nil, err
		}
		affected := &patch.AffectedPaths{}
		for _, line := range strings.Split(summary, "\n") {
			switch kind, path, _ := strings.Cut(line, " "); kind {
			case "A":
				affected.Added = append(affected.Added, path)
			case "M":
				affected.Modified = append(affected.Modified, path)
			case "D":
				affected.Deleted = append(affected.Deleted, path)
			}
		}
		return affected, nil
	}

	return writeFullFile(validated, filePath, content)
}

func writeFullFile(absPath, relPath, content string) (*patch.AffectedPaths, error) {
	_, statErr := os.Stat(absPath)
	existed := statErr == nil

	if dir := filepath.Dir(absPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create parent directories for %s: %w", relPath, err)
		}
	}
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file %s: %w", relPath, err)
	}

	affected := &patch.AffectedPaths{}
	if existed {
		affected.Modified = []string{relPath}
	} else {
		affected.Added = []string{relPath}
	}
	return affected, nil
}

// PathViolationError is returned when a candidate path would escape
// the workspace root.
type PathViolationError struct {
	Message string
}

func (e *PathViolationError) Error() string { return e.Message }

// ValidateWorkspacePath resolves candidate against workspaceRoot,
// rejecting any path whose ".." components would walk it outside the
// root, and returns the resulting absolute path. workspaceRoot need
// not exist on disk (tests run against temp directories that are
// created as part of the same operation), so no symlink-resolving
// canonicalization is performed — only lexical normalization.
func ValidateWorkspacePath(workspaceRoot, candidate string) (string, error) {
	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return "", &PathViolationError{Message: fmt.Sprintf("invalid workspace root: %v", err)}
	}

	joined := filepath.Join(root, candidate)
	cleanedRoot := filepath.Clean(root)
	if joined != cleanedRoot && !strings.HasPrefix(joined, cleanedRoot+string(filepath.Separator)) {
		return "", &PathViolationError{Message: fmt.Sprintf("path %q escapes workspace root", candidate)}
	}
	return joined, nil
}
