package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sidehustle-shop/internal/storage"
)

func TestStorePersistsAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cart.json")

	first := New(path)
	require.NoError(t, first.SetItem(ctx, "sidehustle_cart", `[{"id":"a"}]`))
	require.NoError(t, first.SetItem(ctx, "sidehustle_cart_version", "2"))

	second := New(path)
	got, err := second.GetItem(ctx, "sidehustle_cart")
	require.NoError(t, err)
	require.Equal(t, `[{"id":"a"}]`, got)

	require.NoError(t, second.RemoveItem(ctx, "sidehustle_cart"))
	require.NoError(t, second.RemoveItem(ctx, "sidehustle_cart"))

	_, err = first.GetItem(ctx, "sidehustle_cart")
	require.True(t, errors.Is(err, storage.ErrNotExist), "expected ErrNotExist, got %v", err)

	version, err := first.GetItem(ctx, "sidehustle_cart_version")
	require.NoError(t, err)
	require.Equal(t, "2", version)
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.json"))
	_, err := s.GetItem(context.Background(), "k")
	require.ErrorIs(t, err, storage.ErrNotExist)
	require.NoError(t, s.Ping(context.Background()))
}

func TestStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(path)
	_, err := s.GetItem(context.Background(), "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotExist)
}
