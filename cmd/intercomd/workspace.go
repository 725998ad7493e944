package main

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/checkpoint"
	"github.com/softwaresalt/agent-intercom/internal/config"
	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
	"github.com/softwaresalt/agent-intercom/internal/policy"
	"github.com/softwaresalt/agent-intercom/internal/session"
	"github.com/softwaresalt/agent-intercom/internal/stall"
)

const workspaceSpawnPollInterval = 10 * time.Second

// resolveWorkspaceRoot turns a `[[workspace]]` mapping's workspace_id
// into a filesystem path. An absolute workspace_id is used as-is;
// a relative one is treated as a sibling directory name alongside the
// daemon's default workspace root (e.g. default_workspace_root =
// "/srv/workspaces/default" with workspace_id "ws1" resolves to
// "/srv/workspaces/ws1").
func resolveWorkspaceRoot(cfg *config.Config, workspaceID string) string {
	if filepath.IsAbs(workspaceID) {
		return workspaceID
	}
	return filepath.Join(filepath.Dir(cfg.DefaultWorkspaceRoot), workspaceID)
}

// spawnForWorkspace spawns one session for mapping if its channel has
// no active session bound to it yet. It is safe to call repeatedly:
// FindActiveByChannel makes every call but the first a no-op.
func spawnForWorkspace(
	ctx context.Context,
	cfg *config.Config,
	mapping config.WorkspaceMapping,
	mgr *session.Manager,
	store persistence.Store,
	policyCache *policy.Cache,
	checkpoints *checkpoint.Manager,
	stalls *stall.Registry,
	stallEvents chan<- stall.Event,
	ownerID string,
	backendURL string,
	logger *zap.Logger,
) {
	_, err := store.Sessions().FindActiveByChannel(ctx, mapping.ChannelID)
	if err == nil {
		return
	}
	if ierrors.CodeOf(err) != string(ierrors.CodeNotFound) {
		logger.Error("failed to check for an existing session on channel",
			zap.String("channel_id", mapping.ChannelID), zap.Error(err))
		return
	}

	root := resolveWorkspaceRoot(cfg, mapping.WorkspaceID)
	if err := policyCache.Register(root); err != nil {
		logger.Warn("failed to register workspace policy watcher",
			zap.String("workspace_root", root), zap.Error(err))
	}

	sess, err := mgr.Spawn(ctx, ownerID, root, nil, models.ModeRemote, backendURL)
	if err != nil {
		logger.Error("failed to spawn session for workspace mapping",
			zap.String("workspace_id", mapping.WorkspaceID), zap.String("channel_id", mapping.ChannelID), zap.Error(err))
		return
	}

	channelID := mapping.ChannelID
	sess.ChannelID = &channelID
	if err := store.Sessions().Update(ctx, sess); err != nil {
		logger.Error("failed to bind spawned session to its channel",
			zap.String("session_id", sess.ID), zap.String("channel_id", channelID), zap.Error(err))
	}

	if cfg.Stall.Enabled {
		handle := stall.Spawn(ctx, sess.ID,
			time.Duration(cfg.Stall.InactivityThresholdSeconds)*time.Second,
			time.Duration(cfg.Stall.EscalationThresholdSeconds)*time.Second,
			uint32(cfg.Stall.MaxRetries), stallEvents, logger)
		stalls.Add(handle)
	}

	label := "baseline"
	if _, err := checkpoints.Create(ctx, sess, &label); err != nil {
		logger.Warn("failed to create baseline checkpoint",
			zap.String("session_id", sess.ID), zap.Error(err))
	}

	logger.Info("spawned session for workspace mapping",
		zap.String("session_id", sess.ID), zap.String("workspace_id", mapping.WorkspaceID), zap.String("channel_id", mapping.ChannelID))
}

// runWorkspaceSpawnLoop polls the hot-reloadable `[[workspace]]` array
// and spawns a session for every mapping that doesn't already have one
// bound to its channel, until ctx is canceled. This is the only
// session-spawn trigger the daemon has: there is no chat command or
// IPC request that creates a session from scratch, by design — a
// session's lifetime is scoped to its workspace mapping's presence in
// the config file.
func runWorkspaceSpawnLoop(
	ctx context.Context,
	watcher *config.Watcher,
	mgr *session.Manager,
	store persistence.Store,
	policyCache *policy.Cache,
	checkpoints *checkpoint.Manager,
	stalls *stall.Registry,
	stallEvents chan<- stall.Event,
	ownerID string,
	backendURL string,
	logger *zap.Logger,
) {
	ticker := time.NewTicker(workspaceSpawnPollInterval)
	defer ticker.Stop()

	for {
		cfg := watcher.Current()
		for _, mapping := range cfg.Workspace {
			spawnForWorkspace(ctx, cfg, mapping, mgr, store, policyCache, checkpoints, stalls, stallEvents, ownerID, backendURL, logger)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
