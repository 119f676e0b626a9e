package backup

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	localblob "github.com/alanyoungcy/ppmclient/internal/blob/local"
	"github.com/alanyoungcy/ppmclient/internal/commitment"
	"github.com/alanyoungcy/ppmclient/internal/crypto"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/storage/memory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wallet   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	contract = common.HexToAddress("0x3BA8aCD0a7F5B281575bD86d65EA90a9b965A0dc")
)

func newService(t *testing.T, blobs domain.BlobStore) (*Service, *commitment.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := commitment.NewStore(memory.New(), commitment.Namespace(84532, contract), logger)
	return New(store, blobs, logger), store
}

func TestExportRestore(t *testing.T) {
	ctx := context.Background()
	blobs, err := localblob.New(t.TempDir())
	require.NoError(t, err)

	src, srcStore := newService(t, blobs)
	src.now = func() time.Time { return time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC) }
	require.NoError(t, srcStore.Save(ctx, wallet, 3, domain.VoteYes, commitment.Secret{0xaa}))
	require.NoError(t, srcStore.Save(ctx, wallet, 7, domain.VoteNo, commitment.Secret{0xbb}))

	path, n, err := src.Export(ctx, wallet, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "backups/ppm-84532-0x3BA8aCD0a7F5B281575bD86d65EA90a9b965A0dc/0x00000000000000000000000000000000000000a1/20260501T083000.000Z.json.enc", path)

	dst, dstStore := newService(t, blobs)
	_, err = dst.Restore(ctx, wallet, path, "wrong", false)
	require.ErrorIs(t, err, crypto.ErrWrongPassword)

	res, err := dst.Restore(ctx, wallet, "", "correct horse", false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Empty(t, res.Skipped)

	rec, ok := dstStore.Load(ctx, wallet, 7)
	require.True(t, ok)
	assert.Equal(t, domain.VoteNo, rec.Vote)
	assert.Equal(t, commitment.Secret{0xbb}, rec.Secret)
}

func TestRestoreKeepsNewerLocalSecret(t *testing.T) {
	ctx := context.Background()
	blobs, err := localblob.New(t.TempDir())
	require.NoError(t, err)
	svc, store := newService(t, blobs)

	require.NoError(t, store.Save(ctx, wallet, 3, domain.VoteYes, commitment.Secret{0xaa}))
	path, _, err := svc.Export(ctx, wallet, "pw")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, wallet, 3, domain.VoteYes, commitment.Secret{0xcc}))

	res, err := svc.Restore(ctx, wallet, path, "pw", false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Written)
	assert.Equal(t, []uint64{3}, res.Skipped)
	rec, ok := store.Load(ctx, wallet, 3)
	require.True(t, ok)
	assert.Equal(t, commitment.Secret{0xcc}, rec.Secret)

	res, err = svc.Restore(ctx, wallet, path, "pw", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	rec, ok = store.Load(ctx, wallet, 3)
	require.True(t, ok)
	assert.Equal(t, commitment.Secret{0xaa}, rec.Secret)
}

func TestRestoreRefusesOtherWallet(t *testing.T) {
	ctx := context.Background()
	blobs, err := localblob.New(t.TempDir())
	require.NoError(t, err)
	svc, store := newService(t, blobs)
	require.NoError(t, store.Save(ctx, wallet, 1, domain.VoteYes, commitment.Secret{1}))

	path, _, err := svc.Export(ctx, wallet, "pw")
	require.NoError(t, err)

	other := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	_, err = svc.Restore(ctx, other, path, "pw", false)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestExportEmpty(t *testing.T) {
	blobs, err := localblob.New(t.TempDir())
	require.NoError(t, err)
	svc, _ := newService(t, blobs)

	_, _, err = svc.Export(context.Background(), wallet, "pw")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = svc.Restore(context.Background(), wallet, "", "pw", false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
