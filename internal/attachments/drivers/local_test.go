package drivers

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/api/attachments/files")
	require.NoError(t, err)
	ctx := context.Background()

	key := "a1b2c3d4-leave-form.pdf"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("form contents"), "application/pdf"))

	// Content is fanned out into two-level subdirectories.
	_, statErr := os.Stat(filepath.Join(store.BaseDir, "a1", "b2", key))
	assert.NoError(t, statErr)

	reader, contentType, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "form contents", string(body))
	assert.Equal(t, "application/pdf", contentType)

	url, err := store.URL(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, "/api/attachments/files/"+key, url)

	require.NoError(t, store.Remove(ctx, key))
	_, _, err = store.Open(ctx, key)
	assert.Error(t, err)

	// Removing a missing key is not an error.
	assert.NoError(t, store.Remove(ctx, key))
}

func TestLocalStoreMissingMetaFallsBack(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	key := "deadbeef-note.txt"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("x"), "text/plain"))
	require.NoError(t, os.Remove(filepath.Join(store.BaseDir, "de", "ad", key+".meta")))

	reader, contentType, err := store.Open(ctx, key)
	require.NoError(t, err)
	reader.Close()
	assert.Equal(t, "application/octet-stream", contentType)
}
