package filestore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govchat-nl/policyscan/internal/filestore"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := filestore.New(filestore.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := filestore.New(filestore.Config{})
		assert.Error(t, err)
	})

	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "documents")
		store, err := filestore.New(filestore.Config{BaseDir: base})
		require.NoError(t, err)
		assert.NotNil(t, store)

		info, err := os.Stat(base)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "notadir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		_, err := filestore.New(filestore.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestSave(t *testing.T) {
	store, err := filestore.New(filestore.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	t.Run("WritesUnderSourceDirectory", func(t *testing.T) {
		path, err := store.Save("gemeenteblad", "abc123.pdf", []byte("content"))
		require.NoError(t, err)
		assert.Equal(t, store.Path("gemeenteblad", "abc123.pdf"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("content"), data)
		assert.True(t, store.Exists(path))
	})

	t.Run("MissingSourceID", func(t *testing.T) {
		_, err := store.Save("", "abc123.pdf", []byte("content"))
		assert.Error(t, err)
	})

	t.Run("MissingFilename", func(t *testing.T) {
		_, err := store.Save("gemeenteblad", "", []byte("content"))
		assert.Error(t, err)
	})

	t.Run("PathTraversalRejected", func(t *testing.T) {
		_, err := store.Save("..", "../escape.pdf", []byte("content"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes base directory")
	})
}

func TestExists(t *testing.T) {
	store, err := filestore.New(filestore.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	assert.False(t, store.Exists(store.Path("gemeenteblad", "missing.pdf")))
	assert.False(t, store.Exists(store.BaseDir()))
}
