package localblob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "backups/a/1.json.enc", strings.NewReader("one"), "application/json"))
	require.NoError(t, s.Put(ctx, "backups/a/2.json.enc", strings.NewReader("two"), ""))
	require.NoError(t, s.Put(ctx, "other/x", strings.NewReader("x"), ""))

	rc, err := s.Get(ctx, "backups/a/2.json.enc")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))

	infos, err := s.List(ctx, "backups/a/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "backups/a/1.json.enc", infos[0].Path)
	assert.Equal(t, int64(3), infos[0].Size)

	ok, err := s.Exists(ctx, "other/x")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "other/x"))
	require.NoError(t, s.Delete(ctx, "other/x"))
	_, err = s.Get(ctx, "other/x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreStaysInRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "../../escape", strings.NewReader("x"), ""))
	infos, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "escape", infos[0].Path)
}
