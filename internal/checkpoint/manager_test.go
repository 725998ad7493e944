package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence/memory"
)

func TestManager_CreateAndRestore_NoDivergence(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))

	store := memory.New()
	sess := models.NewSession("u1", root, nil, models.ModeLocal)
	require.NoError(t, store.Sessions().Create(ctx, sess))

	m := New(store)
	_, err := m.Create(ctx, sess, nil)
	require.NoError(t, err)

	_, divergences, err := m.Restore(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, divergences)
}

func TestManager_Restore_ClassifiesDivergences(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.go"), []byte("unchanged"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "doomed.go"), []byte("will be deleted"), 0o644))

	store := memory.New()
	sess := models.NewSession("u1", root, nil, models.ModeLocal)
	require.NoError(t, store.Sessions().Create(ctx, sess))

	m := New(store)
	_, err := m.Create(ctx, sess, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "doomed.go")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.go"), []byte("changed"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.go"), []byte("new file"), 0o644))

	_, divergences, err := m.Restore(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, divergences, 3)

	byPath := make(map[string]models.DivergenceKind)
	for _, d := range divergences {
		byPath[d.Path] = d.Kind
	}
	assert.Equal(t, models.DivergenceDeleted, byPath["doomed.go"])
	assert.Equal(t, models.DivergenceModified, byPath["keep.go"])
	assert.Equal(t, models.DivergenceAdded, byPath["new.go"])
}
