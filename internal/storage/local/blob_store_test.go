// Package local_test tests the local filesystem blob store.
package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newscrawler/internal/storage"
	"github.com/JakeFAU/newscrawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("CreatesMissingBaseDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.NotNil(t, store)
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{BaseDir: "  "})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutAndGetObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("NestedPath", func(t *testing.T) {
		path := "merolagani.com/abc123/result.md"
		uri, err := store.PutObject(ctx, path, "text/markdown", strings.NewReader("# Title"))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, path), uri)

		got, err := store.GetObject(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("# Title"), got)
	})

	t.Run("OverwriteLeavesNoTempFiles", func(t *testing.T) {
		path := "merolagani.com/def456/result.json"
		_, err := store.PutObject(ctx, path, "application/json", bytes.NewReader([]byte(`{"a":1}`)))
		require.NoError(t, err)
		_, err = store.PutObject(ctx, path, "application/json", bytes.NewReader([]byte(`{"a":2}`)))
		require.NoError(t, err)

		got, err := store.GetObject(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, `{"a":2}`, string(got))

		entries, err := os.ReadDir(filepath.Join(tempDir, "merolagani.com", "def456"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "result.json", entries[0].Name())
	})

	t.Run("MissingObject", func(t *testing.T) {
		_, err := store.GetObject(ctx, "merolagani.com/none/result.md")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, "", "text/plain", strings.NewReader("data"))
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../escape.txt", "text/plain", strings.NewReader("data"))
		require.Error(t, err)
		_, err = store.GetObject(ctx, "../../etc/passwd")
		require.Error(t, err)
		assert.NotErrorIs(t, err, storage.ErrNotFound)
	})
}
