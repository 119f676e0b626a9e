package commitment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/storage/memory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	walletA  = common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")
	walletB  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	contract = common.HexToAddress("0x3BA8aCD0a7F5B281575bD86d65EA90a9b965A0dc")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(kv domain.KVStore) *Store {
	s := NewStore(kv, Namespace(84532, contract), testLogger())
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return s
}

type brokenKV struct {
	getErr, putErr error
	data          []byte
}

func (b *brokenKV) Get(context.Context, string) ([]byte, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	if b.data == nil {
		return nil, domain.ErrNotFound
	}
	return b.data, nil
}
func (b *brokenKV) Put(context.Context, string, []byte) error      { return b.putErr }
func (b *brokenKV) Delete(context.Context, string) error           { return nil }
func (b *brokenKV) Keys(context.Context, string) ([]string, error) { return nil, b.getErr }

func TestKeyFormat(t *testing.T) {
	s := newTestStore(memory.New())
	assert.Equal(t,
		"ppm:84532:0x3BA8aCD0a7F5B281575bD86d65EA90a9b965A0dc:0xabcdef0123456789abcdef0123456789abcdef01:7",
		s.Key(walletA, 7))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := newTestStore(kv)
	secret := seqSecret()

	require.NoError(t, s.Save(ctx, walletA, 3, domain.VoteNo, secret))

	rec, ok := s.Load(ctx, walletA, 3)
	require.True(t, ok)
	assert.Equal(t, domain.VoteNo, rec.Vote)
	assert.Equal(t, secret, rec.Secret)
	assert.Equal(t, int64(1_700_000_000_000), rec.Timestamp)
	assert.Equal(t, Hash(domain.VoteNo, secret), rec.Commitment())

	raw, err := kv.Get(ctx, s.Key(walletA, 3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"vote":2,"secret":"`+secret.String()+`","timestamp":1700000000000}`, string(raw))

	_, ok = s.Load(ctx, walletB, 3)
	assert.False(t, ok, "records are per wallet")
	_, ok = s.Load(ctx, walletA, 4)
	assert.False(t, ok, "records are per market")
}

func TestSaveRejectsNoneVote(t *testing.T) {
	s := newTestStore(memory.New())
	err := s.Save(context.Background(), walletA, 1, domain.VoteNone, seqSecret())
	assert.ErrorIs(t, err, domain.ErrInvalidVote)
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(memory.New())

	first, err := GenerateSecret()
	require.NoError(t, err)
	second, err := GenerateSecret()
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, walletA, 1, domain.VoteYes, first))
	require.NoError(t, s.Save(ctx, walletA, 1, domain.VoteNo, second))

	rec, ok := s.Load(ctx, walletA, 1)
	require.True(t, ok)
	assert.Equal(t, domain.VoteNo, rec.Vote)
	assert.Equal(t, second, rec.Secret)
}

func TestLoadTreatsMalformedAsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := newTestStore(kv)
	key := s.Key(walletA, 9)

	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"vote":1}`,
		`{"vote":0,"secret":"0x` + "00" + `"}`,
		`{"vote":5,"secret":"` + seqSecret().String() + `","timestamp":1}`,
		`{"vote":1,"secret":"0x1234","timestamp":1}`,
		`{"vote":"yes","secret":"` + seqSecret().String() + `","timestamp":1}`,
	} {
		require.NoError(t, kv.Put(ctx, key, []byte(raw)))
		_, ok := s.Load(ctx, walletA, 9)
		assert.False(t, ok, raw)
	}
}

func TestLoadAcceptsSaltField(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := newTestStore(kv)

	raw := `{"vote":1,"salt":"` + seqSecret().String() + `","timestamp":1700000000000}`
	require.NoError(t, kv.Put(ctx, s.Key(walletA, 6), []byte(raw)))

	rec, ok := s.Load(ctx, walletA, 6)
	require.True(t, ok)
	assert.Equal(t, domain.VoteYes, rec.Vote)
	assert.Equal(t, seqSecret(), rec.Secret)
}

func TestLoadTreatsReadFailureAsAbsent(t *testing.T) {
	s := newTestStore(&brokenKV{getErr: errors.New("disk gone")})
	_, ok := s.Load(context.Background(), walletA, 1)
	assert.False(t, ok)
}

func TestSaveSurfacesStorageFailure(t *testing.T) {
	s := newTestStore(&brokenKV{putErr: errors.New("quota exceeded")})
	err := s.Save(context.Background(), walletA, 1, domain.VoteYes, seqSecret())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestClearListRestore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(memory.New())

	require.NoError(t, s.Save(ctx, walletA, 10, domain.VoteYes, seqSecret()))
	require.NoError(t, s.Save(ctx, walletA, 2, domain.VoteNo, Secret{1}))
	require.NoError(t, s.Save(ctx, walletB, 5, domain.VoteYes, Secret{2}))

	entries, err := s.List(ctx, walletA)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].MarketID)
	assert.Equal(t, uint64(10), entries[1].MarketID)

	require.NoError(t, s.Clear(ctx, walletA, 10))
	require.NoError(t, s.Clear(ctx, walletA, 10))
	_, ok := s.Load(ctx, walletA, 10)
	assert.False(t, ok)

	other := newTestStore(memory.New())
	res, err := other.Restore(ctx, walletA, entries, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Empty(t, res.Skipped)
	rec, ok := other.Load(ctx, walletA, 10)
	require.True(t, ok)
	assert.Equal(t, seqSecret(), rec.Secret)
}

func TestRestoreKeepsConflictingRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(memory.New())
	old := []Entry{
		{MarketID: 1, Record: Record{Vote: domain.VoteYes, Secret: Secret{0xaa}, Timestamp: 1000}},
		{MarketID: 2, Record: Record{Vote: domain.VoteNo, Secret: Secret{0xbb}, Timestamp: 1000}},
	}
	require.NoError(t, s.Save(ctx, walletA, 1, domain.VoteYes, Secret{0xcc}))

	res, err := s.Restore(ctx, walletA, old, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, []uint64{1}, res.Skipped)
	rec, ok := s.Load(ctx, walletA, 1)
	require.True(t, ok)
	assert.Equal(t, Secret{0xcc}, rec.Secret)

	// Same record again is not a conflict.
	res, err = s.Restore(ctx, walletA, old[1:], false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Empty(t, res.Skipped)

	res, err = s.Restore(ctx, walletA, old, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Empty(t, res.Skipped)
	rec, ok = s.Load(ctx, walletA, 1)
	require.True(t, ok)
	assert.Equal(t, Secret{0xaa}, rec.Secret)
	assert.Equal(t, int64(1000), rec.Timestamp)
}
