package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/ppmclient/internal/commitment"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// CommitReceipt is the result of a committed vote.
type CommitReceipt struct {
	MarketID   uint64
	Vote       domain.Vote
	Secret     commitment.Secret
	Commitment common.Hash
	Tx         domain.TxResult
}

// RevealSource says where the reveal inputs came from.
type RevealSource string

const (
	SourceStored RevealSource = "stored"
	SourceManual RevealSource = "manual"
)

// ManualReveal carries a vote and secret typed in by the user, used when no
// stored record is available.
type ManualReveal struct {
	Vote   domain.Vote
	Secret string
}

// RevealReceipt is the result of a revealed vote.
type RevealReceipt struct {
	MarketID uint64
	Vote     domain.Vote
	Source   RevealSource
	Tx       domain.TxResult
}

// VotingService runs the commit and reveal workflows for the chain's
// account.
type VotingService struct {
	chain  Chain
	store  *commitment.Store
	logger *slog.Logger
}

// NewVotingService creates a VotingService.
func NewVotingService(chain Chain, store *commitment.Store, logger *slog.Logger) *VotingService {
	return &VotingService{
		chain:  chain,
		store:  store,
		logger: logger.With(slog.String("component", "voting_service")),
	}
}

func (s *VotingService) wallet() (common.Address, error) {
	w := s.chain.Account()
	if w == (common.Address{}) {
		return common.Address{}, domain.ErrNoWallet
	}
	return w, nil
}

// Commit generates a secret, stores it, then submits the commitment. The
// record is written before submission so a mined commitment always has a
// recoverable secret; if storing fails nothing is submitted.
func (s *VotingService) Commit(ctx context.Context, marketID uint64, vote domain.Vote) (CommitReceipt, error) {
	if !vote.Valid() {
		return CommitReceipt{}, &domain.InputError{Field: "vote", Message: "Choose YES or NO."}
	}
	wallet, err := s.wallet()
	if err != nil {
		return CommitReceipt{}, err
	}

	secret, err := commitment.GenerateSecret()
	if err != nil {
		return CommitReceipt{}, fmt.Errorf("voting_service: commit: %w", err)
	}
	hash := commitment.Hash(vote, secret)

	if err := s.store.Save(ctx, wallet, marketID, vote, secret); err != nil {
		return CommitReceipt{}, fmt.Errorf("voting_service: commit: %w", err)
	}

	tx, err := s.chain.CommitVote(ctx, marketID, hash)
	if err != nil {
		return CommitReceipt{}, fmt.Errorf("voting_service: commit: %w", err)
	}

	s.logger.InfoContext(ctx, "vote committed",
		slog.Uint64("market_id", marketID),
		slog.String("tx", tx.Hash.Hex()),
	)
	return CommitReceipt{MarketID: marketID, Vote: vote, Secret: secret, Commitment: hash, Tx: tx}, nil
}

// Reveal opens the wallet's commitment on marketID. With manual == nil the
// stored record is used; if there is none ErrSecretRequired is returned so
// the caller can ask for the secret. A failed reveal leaves the stored record
// untouched.
func (s *VotingService) Reveal(ctx context.Context, marketID uint64, manual *ManualReveal) (RevealReceipt, error) {
	wallet, err := s.wallet()
	if err != nil {
		return RevealReceipt{}, err
	}

	var (
		vote   domain.Vote
		secret commitment.Secret
		source RevealSource
	)
	if manual != nil && manual.Secret != "" {
		if !manual.Vote.Valid() {
			return RevealReceipt{}, &domain.InputError{Field: "vote", Message: "Choose YES or NO."}
		}
		parsed, err := commitment.ParseSecret(manual.Secret)
		if err != nil {
			return RevealReceipt{}, &domain.InputError{Field: "secret", Message: domain.HumanMessage(err, "")}
		}
		vote, secret, source = manual.Vote, parsed, SourceManual
	} else {
		rec, ok := s.store.Load(ctx, wallet, marketID)
		if !ok {
			return RevealReceipt{}, domain.ErrSecretRequired
		}
		vote, secret, source = rec.Vote, rec.Secret, SourceStored
	}

	tx, err := s.chain.RevealVote(ctx, marketID, vote, secret)
	if err != nil {
		return RevealReceipt{}, fmt.Errorf("voting_service: reveal: %w", err)
	}

	s.logger.InfoContext(ctx, "vote revealed",
		slog.Uint64("market_id", marketID),
		slog.String("source", string(source)),
		slog.String("tx", tx.Hash.Hex()),
	)
	return RevealReceipt{MarketID: marketID, Vote: vote, Source: source, Tx: tx}, nil
}

// StoredCommitment returns the wallet's record for marketID.
func (s *VotingService) StoredCommitment(ctx context.Context, marketID uint64) (commitment.Record, bool) {
	wallet, err := s.wallet()
	if err != nil {
		return commitment.Record{}, false
	}
	return s.store.Load(ctx, wallet, marketID)
}

// Commitments lists every stored record of the wallet.
func (s *VotingService) Commitments(ctx context.Context) ([]commitment.Entry, error) {
	wallet, err := s.wallet()
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, wallet)
}

// ClearCommitment deletes the wallet's record for marketID.
func (s *VotingService) ClearCommitment(ctx context.Context, marketID uint64) error {
	wallet, err := s.wallet()
	if err != nil {
		return err
	}
	return s.store.Clear(ctx, wallet, marketID)
}

// Prune deletes records the wallet no longer needs: already revealed on
// chain, or the market is past its reveal phase. Records whose market
// cannot be read are kept.
func (s *VotingService) Prune(ctx context.Context) ([]uint64, error) {
	wallet, err := s.wallet()
	if err != nil {
		return nil, err
	}
	entries, err := s.store.List(ctx, wallet)
	if err != nil {
		return nil, err
	}

	var pruned []uint64
	for _, e := range entries {
		done, err := s.settled(ctx, e.MarketID, wallet)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return pruned, err
			}
			s.logger.WarnContext(ctx, "prune: keeping record",
				slog.Uint64("market_id", e.MarketID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !done {
			continue
		}
		if err := s.store.Clear(ctx, wallet, e.MarketID); err != nil {
			return pruned, err
		}
		pruned = append(pruned, e.MarketID)
	}
	return pruned, nil
}

func (s *VotingService) settled(ctx context.Context, marketID uint64, wallet common.Address) (bool, error) {
	revealed, err := s.chain.HasRevealed(ctx, marketID, wallet)
	if err != nil {
		return false, err
	}
	if revealed {
		return true, nil
	}
	m, err := s.chain.GetMarket(ctx, marketID)
	if err != nil {
		return false, err
	}
	return m.State == domain.MarketStateResolved, nil
}
