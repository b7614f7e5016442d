package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/storage"
	"sidehustle-shop/internal/storage/filestore"
)

func TestOpenMemory(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, config.StorageMemory, b.Driver)
	_, ok := b.Storage.(*storage.Memory)
	require.True(t, ok)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "storage.json")
	cfg := &config.Config{Storage: config.StorageConfig{Driver: config.StorageFile, FilePath: path}}

	b, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer b.Close()

	fs, ok := b.Storage.(*filestore.Store)
	require.True(t, ok)
	require.Equal(t, path, fs.Path())

	ctx := context.Background()
	require.NoError(t, b.Storage.SetItem(ctx, "k", "v"))
	got, err := b.Storage.GetItem(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "sqlite"}}
	_, err := Open(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestCloseRunsInReverse(t *testing.T) {
	var order []int
	b := &Backend{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	b.Close()
	b.Close()
	require.Equal(t, []int{2, 1}, order)
}
