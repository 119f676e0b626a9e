package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer signs transactions on behalf of one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Config tunes the gateway.
type Config struct {
	Contract       common.Address
	ChainID        uint64 // 0 queries the node
	LegacyTx       bool
	GasMargin      float64 // multiplier over the estimate, e.g. 1.2
	ReceiptPoll    time.Duration
	ConfirmTimeout time.Duration
}

// Gateway reads and writes the prediction-market contract. Reads always hit
// the node; nothing is cached here.
type Gateway struct {
	backend Backend
	signer  Signer
	cfg     Config
	logger  *slog.Logger

	mu      sync.Mutex
	nonce   uint64
	chainID *big.Int
}

// NewGateway creates a Gateway. signer may be nil for read-only use; writes
// then fail with domain.ErrNoWallet.
func NewGateway(backend Backend, signer Signer, cfg Config, logger *slog.Logger) *Gateway {
	if cfg.GasMargin < 1 {
		cfg.GasMargin = 1.2
	}
	if cfg.ReceiptPoll <= 0 {
		cfg.ReceiptPoll = 2 * time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	g := &Gateway{
		backend: backend,
		signer:  signer,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "chain_gateway")),
	}
	if cfg.ChainID != 0 {
		g.chainID = new(big.Int).SetUint64(cfg.ChainID)
	}
	return g
}

// Contract returns the contract address.
func (g *Gateway) Contract() common.Address { return g.cfg.Contract }

// Account returns the signing address, or the zero address when read-only.
func (g *Gateway) Account() common.Address {
	if g.signer == nil {
		return common.Address{}
	}
	return g.signer.Address()
}

// ---- reads ----

func (g *Gateway) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{From: g.Account(), To: &g.cfg.Contract, Data: input}
	out, err := g.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", method, classify(err))
	}
	res, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return res, nil
}

// MarketCount returns how many markets exist. Ids run from 0 to count-1.
func (g *Gateway) MarketCount(ctx context.Context) (uint64, error) {
	res, err := g.call(ctx, "marketCount")
	if err != nil {
		return 0, err
	}
	return toUint64(res[0].(*big.Int))
}

type marketTuple struct {
	Creator       common.Address
	Description   string
	CommitEndTime *big.Int
	RevealEndTime *big.Int
	State         uint8
	Outcome       bool
	IsResolved    bool
	YesVotes      *big.Int
	NoVotes       *big.Int
}

// GetMarket reads one market.
func (g *Gateway) GetMarket(ctx context.Context, marketID uint64) (domain.Market, error) {
	res, err := g.call(ctx, "getMarket", new(big.Int).SetUint64(marketID))
	if err != nil {
		return domain.Market{}, fmt.Errorf("chain: get market %d: %w", marketID, err)
	}
	t := *abi.ConvertType(res[0], new(marketTuple)).(*marketTuple)

	yes, err := toUint64(t.YesVotes)
	if err != nil {
		return domain.Market{}, err
	}
	no, err := toUint64(t.NoVotes)
	if err != nil {
		return domain.Market{}, err
	}
	return domain.Market{
		ID:            marketID,
		Creator:       t.Creator,
		Description:   t.Description,
		CommitEndTime: unixTime(t.CommitEndTime),
		RevealEndTime: unixTime(t.RevealEndTime),
		State:         domain.MarketState(t.State),
		Outcome:       t.Outcome,
		IsResolved:    t.IsResolved,
		YesVotes:      yes,
		NoVotes:       no,
	}, nil
}

// GetVoteCounts reads revealed tallies. The contract may restrict this to the
// creator, in which case the error carries the OnlyCreator tag.
func (g *Gateway) GetVoteCounts(ctx context.Context, marketID uint64) (domain.VoteCounts, error) {
	res, err := g.call(ctx, "getVoteCounts", new(big.Int).SetUint64(marketID))
	if err != nil {
		return domain.VoteCounts{}, fmt.Errorf("chain: get vote counts %d: %w", marketID, err)
	}
	yes, err := toUint64(res[0].(*big.Int))
	if err != nil {
		return domain.VoteCounts{}, err
	}
	no, err := toUint64(res[1].(*big.Int))
	if err != nil {
		return domain.VoteCounts{}, err
	}
	return domain.VoteCounts{Yes: yes, No: no}, nil
}

type revealedVoteTuple struct {
	Voter     common.Address
	Vote      uint8
	Timestamp *big.Int
}

// GetRevealedVotes reads all revealed ballots of a market.
func (g *Gateway) GetRevealedVotes(ctx context.Context, marketID uint64) ([]domain.RevealedVote, error) {
	res, err := g.call(ctx, "getRevealedVotes", new(big.Int).SetUint64(marketID))
	if err != nil {
		return nil, fmt.Errorf("chain: get revealed votes %d: %w", marketID, err)
	}
	tuples := *abi.ConvertType(res[0], new([]revealedVoteTuple)).(*[]revealedVoteTuple)

	out := make([]domain.RevealedVote, 0, len(tuples))
	for _, t := range tuples {
		out = append(out, domain.RevealedVote{
			Voter:     t.Voter,
			Vote:      domain.Vote(t.Vote),
			Timestamp: unixTime(t.Timestamp),
		})
	}
	return out, nil
}

// HasCommitted reports whether voter has a commitment on marketID.
func (g *Gateway) HasCommitted(ctx context.Context, marketID uint64, voter common.Address) (bool, error) {
	res, err := g.call(ctx, "hasCommitted", new(big.Int).SetUint64(marketID), voter)
	if err != nil {
		return false, fmt.Errorf("chain: has committed %d: %w", marketID, err)
	}
	return res[0].(bool), nil
}

// HasRevealed reports whether voter has revealed on marketID.
func (g *Gateway) HasRevealed(ctx context.Context, marketID uint64, voter common.Address) (bool, error) {
	res, err := g.call(ctx, "hasRevealed", new(big.Int).SetUint64(marketID), voter)
	if err != nil {
		return false, fmt.Errorf("chain: has revealed %d: %w", marketID, err)
	}
	return res[0].(bool), nil
}

// ---- writes ----

// CreateMarket submits createMarket and returns the new market id, taken
// from the MarketCreated log of the receipt.
func (g *Gateway) CreateMarket(ctx context.Context, description string, commitDuration, revealDuration time.Duration) (domain.TxResult, uint64, error) {
	receipt, err := g.transact(ctx, "createMarket",
		description,
		big.NewInt(int64(commitDuration/time.Second)),
		big.NewInt(int64(revealDuration/time.Second)),
	)
	if err != nil {
		return domain.TxResult{}, 0, fmt.Errorf("chain: create market: %w", err)
	}
	res := txResult(receipt)
	for _, l := range receipt.Logs {
		ev, err := ParseEvent(*l)
		if err != nil {
			continue
		}
		if created, ok := ev.(MarketCreated); ok {
			return res, created.MarketID, nil
		}
	}
	return res, 0, fmt.Errorf("chain: create market: no MarketCreated log in %s", receipt.TxHash.Hex())
}

// CommitVote submits a commitment hash.
func (g *Gateway) CommitVote(ctx context.Context, marketID uint64, commitment common.Hash) (domain.TxResult, error) {
	receipt, err := g.transact(ctx, "commitVote", new(big.Int).SetUint64(marketID), [32]byte(commitment))
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("chain: commit vote %d: %w", marketID, err)
	}
	return txResult(receipt), nil
}

// RevealVote submits the vote and secret opening an earlier commitment.
func (g *Gateway) RevealVote(ctx context.Context, marketID uint64, vote domain.Vote, secret [32]byte) (domain.TxResult, error) {
	receipt, err := g.transact(ctx, "revealVote", new(big.Int).SetUint64(marketID), uint8(vote), secret)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("chain: reveal vote %d: %w", marketID, err)
	}
	return txResult(receipt), nil
}

// TransitionToReveal moves a market from Commit to Reveal.
func (g *Gateway) TransitionToReveal(ctx context.Context, marketID uint64) (domain.TxResult, error) {
	receipt, err := g.transact(ctx, "transitionToReveal", new(big.Int).SetUint64(marketID))
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("chain: transition to reveal %d: %w", marketID, err)
	}
	return txResult(receipt), nil
}

// TransitionToResolved moves a market from Reveal to Resolved.
func (g *Gateway) TransitionToResolved(ctx context.Context, marketID uint64) (domain.TxResult, error) {
	receipt, err := g.transact(ctx, "transitionToResolved", new(big.Int).SetUint64(marketID))
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("chain: transition to resolved %d: %w", marketID, err)
	}
	return txResult(receipt), nil
}

// ResolveMarket records the outcome. Only the creator may call it.
func (g *Gateway) ResolveMarket(ctx context.Context, marketID uint64, outcome bool) (domain.TxResult, error) {
	receipt, err := g.transact(ctx, "resolveMarket", new(big.Int).SetUint64(marketID), outcome)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("chain: resolve market %d: %w", marketID, err)
	}
	return txResult(receipt), nil
}

// transact packs, estimates, signs, sends and waits for method. Reverts
// detected during estimation are returned as *ContractError before anything
// is broadcast.
func (g *Gateway) transact(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	if g.signer == nil {
		return nil, domain.ErrNoWallet
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ConfirmTimeout)
	defer cancel()

	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	from := g.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &g.cfg.Contract, Data: input}

	gas, err := g.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, classify(err)
	}
	gas = uint64(float64(gas) * g.cfg.GasMargin)

	chainID, err := g.getChainID(ctx)
	if err != nil {
		return nil, err
	}

	signed, err := g.send(ctx, chainID, gas, input)
	if err != nil {
		return nil, err
	}
	g.logger.InfoContext(ctx, "transaction sent",
		slog.String("method", method),
		slog.String("tx", signed.Hash().Hex()),
		slog.Uint64("nonce", signed.Nonce()),
	)

	receipt, err := g.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, g.revertReason(ctx, msg, receipt)
	}
	return receipt, nil
}

// send assigns the next nonce, signs and broadcasts under g.mu. The lock is
// released before the receipt is awaited.
func (g *Gateway) send(ctx context.Context, chainID *big.Int, gas uint64, input []byte) (*types.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	nonce, err := g.nextNonce(ctx, g.signer.Address())
	if err != nil {
		return nil, err
	}
	tx, err := g.buildTx(ctx, chainID, nonce, gas, input)
	if err != nil {
		return nil, err
	}
	signed, err := g.signer.SignTx(tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send: %w", classify(err))
	}
	g.nonce = nonce + 1
	return signed, nil
}

func (g *Gateway) getChainID(ctx context.Context) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chainID != nil {
		return g.chainID, nil
	}
	id, err := g.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	g.chainID = id
	return id, nil
}

// nextNonce returns max(local, pending). Callers hold g.mu.
func (g *Gateway) nextNonce(ctx context.Context, from common.Address) (uint64, error) {
	pending, err := g.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("pending nonce: %w", err)
	}
	if g.nonce > pending {
		return g.nonce, nil
	}
	return pending, nil
}

func (g *Gateway) buildTx(ctx context.Context, chainID *big.Int, nonce, gas uint64, input []byte) (*types.Transaction, error) {
	to := g.cfg.Contract
	if g.cfg.LegacyTx {
		gasPrice, err := g.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Gas:      gas,
			GasPrice: gasPrice,
			Data:     input,
		}), nil
	}

	tip, err := g.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas tip: %w", err)
	}
	head, err := g.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		To:        &to,
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      input,
	}), nil
}

// waitMined polls for the receipt until it exists or ctx ends.
func (g *Gateway) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(g.cfg.ReceiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := g.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			g.logger.DebugContext(ctx, "receipt lookup failed",
				slog.String("tx", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// revertReason replays a failed transaction as a call at its block to
// recover the custom error.
func (g *Gateway) revertReason(ctx context.Context, msg ethereum.CallMsg, receipt *types.Receipt) error {
	_, err := g.backend.CallContract(ctx, msg, receipt.BlockNumber)
	if err != nil {
		if ce := classify(err); errors.Is(ce, domain.ErrContractRejected) {
			return ce
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrTxReverted, receipt.TxHash.Hex())
}

func txResult(r *types.Receipt) domain.TxResult {
	res := domain.TxResult{Hash: r.TxHash, GasUsed: r.GasUsed}
	if r.BlockNumber != nil {
		res.BlockNumber = r.BlockNumber.Uint64()
	}
	return res
}

func toUint64(v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("chain: value %s overflows uint64", v)
	}
	return v.Uint64(), nil
}

func unixTime(v *big.Int) time.Time {
	if v == nil || !v.IsInt64() {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0)
}
