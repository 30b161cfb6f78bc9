package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	info, err := s.Put(ctx, "exports/a/data.csv", strings.NewReader("AGE,Shh\nYoung,3\n"), PutOptions{ContentType: "text/csv", Metadata: map[string]string{"gene": "Shh"}})
	require.NoError(t, err)
	assert.Equal(t, int64(16), info.Size)
	assert.Equal(t, "text/csv", info.ContentType)

	_, err = s.Put(ctx, "exports/a/data.csv", strings.NewReader("x"), PutOptions{})
	assert.ErrorIs(t, err, ErrExists)

	got, rc, err := s.Get(ctx, "exports/a/data.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "AGE,Shh\nYoung,3\n", string(body))
	assert.Equal(t, "Shh", got.Metadata["gene"])

	_, err = s.Put(ctx, "exports/b/plot.png", strings.NewReader("png"), PutOptions{ContentType: "image/png"})
	require.NoError(t, err)
	_, err = s.Put(ctx, "other/c.txt", strings.NewReader("c"), PutOptions{})
	require.NoError(t, err)

	list, err := s.List(ctx, "exports/")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "exports/a/data.csv", list[0].Key)
	assert.Equal(t, "exports/b/plot.png", list[1].Key)

	ok, err := s.Delete(ctx, "exports/a/data.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, "exports/a/data.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Head(ctx, "exports/a/data.csv")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.PresignURL(ctx, "exports/b/plot.png", SignedURLOptions{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFilesystemStore(t *testing.T) {
	s, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)

	info, err := s.Put(context.Background(), "e/x.csv", strings.NewReader("abc"), PutOptions{})
	require.NoError(t, err)
	assert.Len(t, info.ETag, 64)
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	s, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"../escape", "/abs", " "} {
		_, err := s.Put(context.Background(), key, strings.NewReader("x"), PutOptions{})
		assert.Error(t, err, key)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: DriverMemory})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	s, err = Open(context.Background(), Config{FSRoot: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	_, err = Open(context.Background(), Config{Driver: DriverS3})
	assert.Error(t, err, "bucket is required")

	_, err = Open(context.Background(), Config{Driver: "ftp"})
	assert.Error(t, err)
}
