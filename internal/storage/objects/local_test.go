package objects

import (
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	obj, err := store.Put(ctx, "7/1700000000000_42_resume.pdf", []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(obj.Path))
	require.Nil(t, obj.URL)
	require.Equal(t, int64(8), obj.Size)
	require.Equal(t, filepath.Join(store.Root(), "7", "1700000000000_42_resume.pdf"), obj.Path)

	ok, err := store.Exists(ctx, obj.Path)
	require.NoError(t, err)
	require.True(t, ok)

	rc, modTime, err := store.Open(obj.Path)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "%PDF-1.4", string(body))
	require.False(t, modTime.IsZero())

	require.NoError(t, store.Delete(ctx, obj.Path))
	require.NoError(t, store.Delete(ctx, obj.Path))

	ok, err = store.Exists(ctx, obj.Path)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = store.Open(obj.Path)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.pdf", []byte("x"), "application/pdf")
	require.Error(t, err)
}

func TestLocalStore_DirectoryIsNotAnObject(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ok, err := store.Exists(context.Background(), store.Root())
	require.NoError(t, err)
	require.False(t, ok)
}
