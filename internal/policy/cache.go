package policy

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// policyDir is the workspace-relative directory fsnotify watches;
// SettingsFile lives inside it.
const policyDir = ".intercom"

// Cache is a workspace-root -> compiled-policy map guarded by a
// reader-writer lock, with an fsnotify watcher per registered
// workspace that invalidates and reloads the cached entry on change.
// Tool handlers consult the cache first, load from disk on miss, and
// back-fill — matching the cache-first contract of check_auto_approve.
type Cache struct {
	mu       sync.RWMutex
	policies map[string]models.WorkspacePolicy
	watchers map[string]*fsnotify.Watcher

	wmu    sync.Mutex
	logger *zap.Logger
}

// NewCache builds an empty policy Cache.
func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		policies: make(map[string]models.WorkspacePolicy),
		watchers: make(map[string]*fsnotify.Watcher),
		logger:   logger,
	}
}

// Get returns the policy for workspaceRoot, loading and back-filling
// it from disk on a cache miss.
func (c *Cache) Get(workspaceRoot string) models.WorkspacePolicy {
	c.mu.RLock()
	policy, ok := c.policies[workspaceRoot]
	c.mu.RUnlock()
	if ok {
		return policy
	}

	loaded := Load(workspaceRoot, c.logger)
	c.mu.Lock()
	c.policies[workspaceRoot] = loaded
	c.mu.Unlock()
	return loaded
}

// Register loads the initial policy for workspaceRoot and starts a
// watcher that reloads the cache entry whenever the settings file
// changes. Safe to call more than once for the same root; later calls
// are no-ops once a watcher is already installed.
func (c *Cache) Register(workspaceRoot string) error {
	c.Get(workspaceRoot) // prime the cache

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, exists := c.watchers[workspaceRoot]; exists {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watchDir := filepath.Join(workspaceRoot, policyDir)
	if err := watcher.Add(watchDir); err != nil {
		// The .intercom directory may not exist yet; the cached entry
		// is then the loader's deny-all fallback. The watcher is still
		// stored, so a later Register call is a no-op: a settings file
		// created after this point is not watched, and the cached entry
		// is not reloaded until Unregister drops it.
		c.logger.Info("policy directory does not exist yet, not watching for changes",
			zap.String("dir", watchDir))
	}

	go c.watchLoop(workspaceRoot, watcher)
	c.watchers[workspaceRoot] = watcher
	return nil
}

func (c *Cache) watchLoop(workspaceRoot string, watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != "settings.json" {
				continue
			}
			reloaded := Load(workspaceRoot, c.logger)
			c.mu.Lock()
			c.policies[workspaceRoot] = reloaded
			c.mu.Unlock()
			c.logger.Info("hot-reloaded workspace policy", zap.String("workspace", workspaceRoot))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("policy file watcher error", zap.Error(err))
		}
	}
}

// Unregister stops watching workspaceRoot and drops its cached entry.
func (c *Cache) Unregister(workspaceRoot string) {
	c.wmu.Lock()
	if w, ok := c.watchers[workspaceRoot]; ok {
		_ = w.Close()
		delete(c.watchers, workspaceRoot)
	}
	c.wmu.Unlock()

	c.mu.Lock()
	delete(c.policies, workspaceRoot)
	c.mu.Unlock()
}
