// Package checkpoint implements the Checkpoint Manager (spec 4.10):
// point-in-time snapshots of a session's workspace file hashes, and
// the divergence report produced when restoring one.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// Manager creates and restores Checkpoint records.
type Manager struct {
	store persistence.Store
}

// New builds a checkpoint Manager.
func New(store persistence.Store) *Manager {
	return &Manager{store: store}
}

// Create hashes every regular file directly under workspaceRoot (one
// level, non-recursive), serializes sess's current state, and
// persists the resulting Checkpoint.
func (m *Manager) Create(ctx context.Context, sess *models.Session, label *string) (*models.Checkpoint, error) {
	hashes, err := hashWorkspaceFiles(sess.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	state := map[string]any{
		"status":              sess.Status,
		"mode":                sess.Mode,
		"protocol_mode":       sess.ProtocolMode,
		"connectivity_status": sess.ConnectivityStatus,
		"nudge_count":         sess.NudgeCount,
		"stall_paused":        sess.StallPaused,
	}

	cp := models.NewCheckpoint(sess.ID, label, state, hashes, sess.WorkspaceRoot, sess.ProgressSnapshot)
	if err := m.store.Checkpoints().Create(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Restore fetches the most recent checkpoint for sessionID, recomputes
// the current workspace hash map, and returns the classified list of
// divergences since the checkpoint was taken, sorted by path.
func (m *Manager) Restore(ctx context.Context, sessionID string) (*models.Checkpoint, []models.Divergence, error) {
	cp, err := m.store.Checkpoints().GetMostRecentForSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	current, err := hashWorkspaceFiles(cp.WorkspaceRoot)
	if err != nil {
		return nil, nil, err
	}

	return cp, diverge(cp.FileHashes, current), nil
}

// diverge classifies every path mentioned in either hash map.
func diverge(at, now map[string]string) []models.Divergence {
	var result []models.Divergence
	for path, oldHash := range at {
		newHash, ok := now[path]
		switch {
		case !ok:
			result = append(result, models.Divergence{Path: path, Kind: models.DivergenceDeleted})
		case newHash != oldHash:
			result = append(result, models.Divergence{Path: path, Kind: models.DivergenceModified})
		}
	}
	for path := range now {
		if _, ok := at[path]; !ok {
			result = append(result, models.Divergence{Path: path, Kind: models.DivergenceAdded})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}

// hashWorkspaceFiles computes the SHA-256 hex digest of every regular
// file directly under root (one level, non-recursive).
func hashWorkspaceFiles(root string) (map[string]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace root %s: %w", root, err)
	}

	hashes := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}
		sum, err := hashFile(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, err
		}
		hashes[entry.Name()] = sum
	}
	return hashes, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
