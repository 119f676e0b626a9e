package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BackendMock is a hand-written Backend whose behaviour is set per test.
type BackendMock struct {
	CallContractFunc       func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGasFunc        func(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAtFunc     func(ctx context.Context, account common.Address) (uint64, error)
	SendTransactionFunc    func(ctx context.Context, tx *types.Transaction) error
	TransactionReceiptFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	mu   sync.Mutex
	Sent []*types.Transaction
}

func (m *BackendMock) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return m.CallContractFunc(ctx, msg, blockNumber)
}

func (m *BackendMock) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if m.EstimateGasFunc == nil {
		return 100_000, nil
	}
	return m.EstimateGasFunc(ctx, msg)
}

func (m *BackendMock) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if m.PendingNonceAtFunc == nil {
		return 0, nil
	}
	return m.PendingNonceAtFunc(ctx, account)
}

func (m *BackendMock) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *BackendMock) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (m *BackendMock) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: big.NewInt(10_000_000)}, nil
}

func (m *BackendMock) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(84532), nil
}

func (m *BackendMock) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, tx)
	m.mu.Unlock()
	if m.SendTransactionFunc == nil {
		return nil
	}
	return m.SendTransactionFunc(ctx, tx)
}

func (m *BackendMock) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return m.TransactionReceiptFunc(ctx, txHash)
}

func (m *BackendMock) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

var _ Backend = (*BackendMock)(nil)
