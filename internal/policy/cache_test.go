package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCache_Get_CachesAfterFirstLoad(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".intercom"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, SettingsFile), []byte(`{"enabled": true}`), 0o644))

	c := NewCache(zap.NewNop())
	first := c.Get(root)
	assert.True(t, first.Enabled)

	// Mutate the file on disk; Get should still return the cached value.
	require.NoError(t, os.WriteFile(filepath.Join(root, SettingsFile), []byte(`{"enabled": false}`), 0o644))
	second := c.Get(root)
	assert.True(t, second.Enabled)
}

func TestCache_Register_HotReloadsOnChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".intercom"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, SettingsFile), []byte(`{"enabled": true, "tools": ["read_file"]}`), 0o644))

	c := NewCache(zap.NewNop())
	require.NoError(t, c.Register(root))
	defer c.Unregister(root)

	policy := c.Get(root)
	require.True(t, policy.Enabled)

	require.NoError(t, os.WriteFile(filepath.Join(root, SettingsFile), []byte(`{"enabled": false}`), 0o644))

	require.Eventually(t, func() bool {
		return !c.Get(root).Enabled
	}, time.Second, 10*time.Millisecond)
}

func TestCache_Unregister_ClearsEntry(t *testing.T) {
	root := t.TempDir()
	c := NewCache(zap.NewNop())
	require.NoError(t, c.Register(root))
	c.Unregister(root)

	c.mu.RLock()
	_, ok := c.policies[root]
	c.mu.RUnlock()
	assert.False(t, ok)
}
