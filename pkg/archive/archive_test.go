package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileArchive_ContentAddressed(t *testing.T) {
	ctx := context.Background()
	a, err := NewFileArchive(t.TempDir())
	require.NoError(t, err)

	blob := []byte(`{"bankBalance":1e9}`)
	ref1, err := a.Store(ctx, blob)
	require.NoError(t, err)
	ref2, err := a.Store(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2, "identical bytes share a reference")

	stored, err := os.ReadFile(filepath.Join(a.dir, ref1+".json"))
	require.NoError(t, err)
	assert.Equal(t, blob, stored)
}

func TestFileArchive_DistinctBlobs(t *testing.T) {
	ctx := context.Background()
	a, err := NewFileArchive(t.TempDir())
	require.NoError(t, err)

	ref1, err := a.Store(ctx, []byte(`{"a":1}`))
	require.NoError(t, err)
	ref2, err := a.Store(ctx, []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.NotEqual(t, ref1, ref2)
}

func TestFromEnv(t *testing.T) {
	ctx := context.Background()

	a, err := FromEnv(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, a, "archiving is optional")

	a, err = FromEnv(ctx, "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileArchive{}, a)

	_, err = FromEnv(ctx, "ftp://nope")
	assert.Error(t, err)
}
