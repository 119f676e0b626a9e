package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contractAddr = common.HexToAddress("0x3BA8aCD0a7F5B281575bD86d65EA90a9b965A0dc")

type rpcDataError struct {
	msg  string
	data interface{}
}

func (e rpcDataError) Error() string          { return e.msg }
func (e rpcDataError) ErrorData() interface{} { return e.data }

type keySigner struct{}

var testKey, _ = crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")

func (s keySigner) Address() common.Address { return crypto.PubkeyToAddress(testKey.PublicKey) }
func (s keySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), testKey)
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestGateway(b *BackendMock, withSigner bool) *Gateway {
	var s Signer
	if withSigner {
		s = keySigner{}
	}
	return NewGateway(b, s, Config{
		Contract:       contractAddr,
		ReceiptPoll:    5 * time.Millisecond,
		ConfirmTimeout: time.Second,
	}, discardLogger())
}

// respond answers eth_call by method name with ABI-packed outputs.
func respond(t *testing.T, outputs map[string][]interface{}) func(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return func(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
		method, err := contractABI.MethodById(msg.Data[:4])
		require.NoError(t, err)
		vals, ok := outputs[method.Name]
		if !ok {
			return nil, errors.New("unexpected call " + method.Name)
		}
		if len(vals) == 1 {
			if err, ok := vals[0].(error); ok {
				return nil, err
			}
		}
		return method.Outputs.Pack(vals...)
	}
}

func TestReads(t *testing.T) {
	creator := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	voter := common.HexToAddress("0x00000000000000000000000000000000000000d1")

	b := &BackendMock{}
	b.CallContractFunc = respond(t, map[string][]interface{}{
		"marketCount": {big.NewInt(3)},
		"getMarket": {marketTuple{
			Creator:       creator,
			Description:   "Will it rain?",
			CommitEndTime: big.NewInt(1_700_000_300),
			RevealEndTime: big.NewInt(1_700_000_600),
			State:         1,
			Outcome:       false,
			IsResolved:    false,
			YesVotes:      big.NewInt(4),
			NoVotes:       big.NewInt(2),
		}},
		"getVoteCounts": {big.NewInt(4), big.NewInt(2)},
		"getRevealedVotes": {[]revealedVoteTuple{
			{Voter: voter, Vote: 2, Timestamp: big.NewInt(1_700_000_400)},
		}},
		"hasCommitted": {true},
		"hasRevealed":  {false},
	})
	g := newTestGateway(b, false)
	ctx := context.Background()

	n, err := g.MarketCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	m, err := g.GetMarket(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m.ID)
	assert.Equal(t, creator, m.Creator)
	assert.Equal(t, "Will it rain?", m.Description)
	assert.Equal(t, domain.MarketStateReveal, m.State)
	assert.Equal(t, time.Unix(1_700_000_300, 0), m.CommitEndTime)
	assert.Equal(t, uint64(4), m.YesVotes)

	counts, err := g.GetVoteCounts(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteCounts{Yes: 4, No: 2}, counts)

	votes, err := g.GetRevealedVotes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, voter, votes[0].Voter)
	assert.Equal(t, domain.VoteNo, votes[0].Vote)

	committed, err := g.HasCommitted(ctx, 2, voter)
	require.NoError(t, err)
	assert.True(t, committed)
	revealed, err := g.HasRevealed(ctx, 2, voter)
	require.NoError(t, err)
	assert.False(t, revealed)
}

func TestReadOnlyCreatorRevert(t *testing.T) {
	sel := contractABI.Errors["OnlyCreator"].ID
	b := &BackendMock{}
	b.CallContractFunc = respond(t, map[string][]interface{}{
		"getVoteCounts": {rpcDataError{msg: "execution reverted", data: "0x" + common.Bytes2Hex(sel[:4])}},
	})
	g := newTestGateway(b, false)

	_, err := g.GetVoteCounts(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrContractRejected)
	tag, ok := domain.ErrorTag(err)
	require.True(t, ok)
	assert.Equal(t, domain.TagOnlyCreator, tag)
}

func TestWriteWithoutSigner(t *testing.T) {
	g := newTestGateway(&BackendMock{}, false)
	_, err := g.CommitVote(context.Background(), 1, common.Hash{1})
	assert.ErrorIs(t, err, domain.ErrNoWallet)
}

func TestWriteRevertDuringEstimateIsNotSent(t *testing.T) {
	sel := contractABI.Errors["InvalidReveal"].ID
	b := &BackendMock{
		EstimateGasFunc: func(context.Context, ethereum.CallMsg) (uint64, error) {
			return 0, rpcDataError{msg: "execution reverted", data: "0x" + common.Bytes2Hex(sel[:4])}
		},
	}
	g := newTestGateway(b, true)

	_, err := g.RevealVote(context.Background(), 1, domain.VoteYes, [32]byte{9})
	require.Error(t, err)
	assert.Equal(t, "Vote or salt doesn't match your commitment.", domain.HumanMessage(err, "fallback"))
	assert.Equal(t, 0, b.SentCount())
}

func TestCreateMarketReadsIDFromLogs(t *testing.T) {
	creator := keySigner{}.Address()
	ev := contractABI.Events["MarketCreated"]
	data, err := ev.Inputs.NonIndexed().Pack("Will it rain?", big.NewInt(1_700_000_300), big.NewInt(1_700_000_600))
	require.NoError(t, err)

	b := &BackendMock{PendingNonceAtFunc: func(context.Context, common.Address) (uint64, error) { return 5, nil }}
	polls := 0
	b.TransactionReceiptFunc = func(_ context.Context, h common.Hash) (*types.Receipt, error) {
		polls++
		if polls < 3 {
			return nil, ethereum.NotFound
		}
		return &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      h,
			BlockNumber: big.NewInt(101),
			GasUsed:     90_000,
			Logs: []*types.Log{{
				Address: contractAddr,
				Topics: []common.Hash{
					ev.ID,
					common.BigToHash(big.NewInt(7)),
					common.BytesToHash(creator.Bytes()),
				},
				Data: data,
			}},
		}, nil
	}
	g := newTestGateway(b, true)

	res, id, err := g.CreateMarket(context.Background(), "Will it rain?", 5*time.Minute, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, uint64(101), res.BlockNumber)

	require.Equal(t, 1, b.SentCount())
	tx := b.Sent[0]
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, contractAddr, *tx.To())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(84532)), tx)
	require.NoError(t, err)
	assert.Equal(t, creator, from)

	args, err := contractABI.Methods["createMarket"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, "Will it rain?", args[0])
	assert.Equal(t, big.NewInt(300), args[1])
}

func TestNonceAdvancesLocally(t *testing.T) {
	b := &BackendMock{}
	b.TransactionReceiptFunc = func(_ context.Context, h common.Hash) (*types.Receipt, error) {
		return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: h, BlockNumber: big.NewInt(1)}, nil
	}
	g := newTestGateway(b, true)
	ctx := context.Background()

	_, err := g.TransitionToReveal(ctx, 1)
	require.NoError(t, err)
	_, err = g.TransitionToResolved(ctx, 1)
	require.NoError(t, err)

	require.Equal(t, 2, b.SentCount())
	assert.Equal(t, uint64(0), b.Sent[0].Nonce())
	assert.Equal(t, uint64(1), b.Sent[1].Nonce())
}

func TestPendingReceiptDoesNotBlockNextWrite(t *testing.T) {
	var (
		mu    sync.Mutex
		stuck common.Hash
	)
	b := &BackendMock{}
	b.SendTransactionFunc = func(_ context.Context, tx *types.Transaction) error {
		if tx.Nonce() == 0 {
			mu.Lock()
			stuck = tx.Hash()
			mu.Unlock()
		}
		return nil
	}
	b.TransactionReceiptFunc = func(_ context.Context, h common.Hash) (*types.Receipt, error) {
		mu.Lock()
		defer mu.Unlock()
		if h == stuck {
			return nil, ethereum.NotFound
		}
		return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: h, BlockNumber: big.NewInt(1)}, nil
	}
	g := newTestGateway(b, true)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := g.TransitionToReveal(ctx, 1)
		first <- err
	}()
	require.Eventually(t, func() bool { return b.SentCount() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	_, err := g.TransitionToReveal(ctx, 2)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.ErrorIs(t, <-first, context.DeadlineExceeded)
	require.Equal(t, 2, b.SentCount())
	assert.Equal(t, uint64(1), b.Sent[1].Nonce())
}

func TestFailedReceiptIsReplayed(t *testing.T) {
	sel := contractABI.Errors["MarketAlreadyResolved"].ID
	b := &BackendMock{}
	b.TransactionReceiptFunc = func(_ context.Context, h common.Hash) (*types.Receipt, error) {
		return &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: h, BlockNumber: big.NewInt(9)}, nil
	}
	b.CallContractFunc = func(_ context.Context, _ ethereum.CallMsg, block *big.Int) ([]byte, error) {
		assert.Equal(t, big.NewInt(9), block)
		return nil, rpcDataError{msg: "execution reverted", data: "0x" + common.Bytes2Hex(sel[:4])}
	}
	g := newTestGateway(b, true)

	_, err := g.ResolveMarket(context.Background(), 1, true)
	require.Error(t, err)
	tag, ok := domain.ErrorTag(err)
	require.True(t, ok)
	assert.Equal(t, domain.TagMarketAlreadyResolved, tag)
}

func TestFailedReceiptWithoutReason(t *testing.T) {
	b := &BackendMock{}
	b.TransactionReceiptFunc = func(_ context.Context, h common.Hash) (*types.Receipt, error) {
		return &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: h, BlockNumber: big.NewInt(9)}, nil
	}
	b.CallContractFunc = func(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
		return nil, nil
	}
	g := newTestGateway(b, true)

	_, err := g.CommitVote(context.Background(), 1, common.Hash{1})
	assert.ErrorIs(t, err, domain.ErrTxReverted)
}

func TestWaitMinedTimesOut(t *testing.T) {
	b := &BackendMock{}
	b.TransactionReceiptFunc = func(context.Context, common.Hash) (*types.Receipt, error) {
		return nil, ethereum.NotFound
	}
	g := NewGateway(b, keySigner{}, Config{
		Contract:       contractAddr,
		ReceiptPoll:    5 * time.Millisecond,
		ConfirmTimeout: 30 * time.Millisecond,
	}, discardLogger())

	_, err := g.CommitVote(context.Background(), 1, common.Hash{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
