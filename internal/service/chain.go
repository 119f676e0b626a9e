package service

import (
	"context"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Chain is the contract surface the services need. *chain.Gateway and
// chaintest.Account implement it.
type Chain interface {
	Account() common.Address

	MarketCount(ctx context.Context) (uint64, error)
	GetMarket(ctx context.Context, marketID uint64) (domain.Market, error)
	GetVoteCounts(ctx context.Context, marketID uint64) (domain.VoteCounts, error)
	GetRevealedVotes(ctx context.Context, marketID uint64) ([]domain.RevealedVote, error)
	HasCommitted(ctx context.Context, marketID uint64, voter common.Address) (bool, error)
	HasRevealed(ctx context.Context, marketID uint64, voter common.Address) (bool, error)

	CreateMarket(ctx context.Context, description string, commitDuration, revealDuration time.Duration) (domain.TxResult, uint64, error)
	CommitVote(ctx context.Context, marketID uint64, commitment common.Hash) (domain.TxResult, error)
	RevealVote(ctx context.Context, marketID uint64, vote domain.Vote, secret [32]byte) (domain.TxResult, error)
	TransitionToReveal(ctx context.Context, marketID uint64) (domain.TxResult, error)
	TransitionToResolved(ctx context.Context, marketID uint64) (domain.TxResult, error)
	ResolveMarket(ctx context.Context, marketID uint64, outcome bool) (domain.TxResult, error)
}
