// Package chaintest provides an in-memory stand-in for the prediction-market
// contract, following the same phase rules and error tags.
package chaintest

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/chain"
	"github.com/alanyoungcy/ppmclient/internal/commitment"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type market struct {
	domain.Market
	commitments map[common.Address]common.Hash
	revealed    map[common.Address]bool
	votes       []domain.RevealedVote
}

// Ledger holds contract state shared by every Account.
type Ledger struct {
	mu      sync.Mutex
	now     time.Time
	markets []*market
	txs     uint64

	// RestrictTallies makes vote counts and revealed votes creator-only.
	RestrictTallies bool
	// FailNext, when set, is returned by the next write instead of executing it.
	FailNext error
}

// NewLedger returns an empty ledger whose clock starts at start.
func NewLedger(start time.Time) *Ledger {
	return &Ledger{now: start, RestrictTallies: true}
}

// Now returns the ledger clock.
func (l *Ledger) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Advance moves the ledger clock forward.
func (l *Ledger) Advance(d time.Duration) {
	l.mu.Lock()
	l.now = l.now.Add(d)
	l.mu.Unlock()
}

// As returns a view of the ledger that sends transactions from addr.
func (l *Ledger) As(addr common.Address) *Account {
	return &Account{ledger: l, from: addr}
}

// Account is a Ledger seen from one sender.
type Account struct {
	ledger *Ledger
	from   common.Address
}

func reject(tag domain.ContractErrorTag) error { return chain.NewContractError(tag) }

// Account returns the sender address.
func (a *Account) Account() common.Address { return a.from }

func (l *Ledger) get(id uint64) (*market, error) {
	if id >= uint64(len(l.markets)) {
		return nil, domain.ErrNotFound
	}
	return l.markets[id], nil
}

// tx runs fn under the lock as one transaction.
func (l *Ledger) tx(fn func() error) (domain.TxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.FailNext; err != nil {
		l.FailNext = nil
		return domain.TxResult{}, err
	}
	if err := fn(); err != nil {
		return domain.TxResult{}, err
	}
	l.txs++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], l.txs)
	return domain.TxResult{Hash: crypto.Keccak256Hash(buf[:]), BlockNumber: l.txs, GasUsed: 50_000}, nil
}

func (a *Account) MarketCount(context.Context) (uint64, error) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	return uint64(len(a.ledger.markets)), nil
}

func (a *Account) GetMarket(_ context.Context, id uint64) (domain.Market, error) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	m, err := a.ledger.get(id)
	if err != nil {
		return domain.Market{}, err
	}
	return m.Market, nil
}

func (a *Account) GetVoteCounts(_ context.Context, id uint64) (domain.VoteCounts, error) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	m, err := a.ledger.get(id)
	if err != nil {
		return domain.VoteCounts{}, err
	}
	if a.ledger.RestrictTallies && m.Creator != a.from {
		return domain.VoteCounts{}, reject(domain.TagOnlyCreator)
	}
	return domain.VoteCounts{Yes: m.YesVotes, No: m.NoVotes}, nil
}

func (a *Account) GetRevealedVotes(_ context.Context, id uint64) ([]domain.RevealedVote, error) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	m, err := a.ledger.get(id)
	if err != nil {
		return nil, err
	}
	if a.ledger.RestrictTallies && m.Creator != a.from {
		return nil, reject(domain.TagOnlyCreator)
	}
	return append([]domain.RevealedVote(nil), m.votes...), nil
}

func (a *Account) HasCommitted(_ context.Context, id uint64, voter common.Address) (bool, error) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	m, err := a.ledger.get(id)
	if err != nil {
		return false, err
	}
	_, ok := m.commitments[voter]
	return ok, nil
}

func (a *Account) HasRevealed(_ context.Context, id uint64, voter common.Address) (bool, error) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	m, err := a.ledger.get(id)
	if err != nil {
		return false, err
	}
	return m.revealed[voter], nil
}

func (a *Account) CreateMarket(_ context.Context, description string, commitDuration, revealDuration time.Duration) (domain.TxResult, uint64, error) {
	var id uint64
	res, err := a.ledger.tx(func() error {
		if commitDuration < time.Second || revealDuration < time.Second {
			return reject(domain.TagInvalidTimeParameters)
		}
		l := a.ledger
		id = uint64(len(l.markets))
		commitEnd := l.now.Add(commitDuration).Truncate(time.Second)
		l.markets = append(l.markets, &market{
			Market: domain.Market{
				ID:            id,
				Creator:       a.from,
				Description:   description,
				CommitEndTime: commitEnd,
				RevealEndTime: commitEnd.Add(revealDuration).Truncate(time.Second),
				State:         domain.MarketStateCommit,
			},
			commitments: make(map[common.Address]common.Hash),
			revealed:    make(map[common.Address]bool),
		})
		return nil
	})
	return res, id, err
}

func (a *Account) CommitVote(_ context.Context, id uint64, c common.Hash) (domain.TxResult, error) {
	return a.ledger.tx(func() error {
		m, err := a.ledger.get(id)
		if err != nil {
			return err
		}
		if m.State != domain.MarketStateCommit || !a.ledger.now.Before(m.CommitEndTime) {
			return reject(domain.TagMarketNotInCommitPhase)
		}
		if _, ok := m.commitments[a.from]; ok {
			return reject(domain.TagAlreadyCommitted)
		}
		m.commitments[a.from] = c
		return nil
	})
}

func (a *Account) RevealVote(_ context.Context, id uint64, vote domain.Vote, secret [32]byte) (domain.TxResult, error) {
	return a.ledger.tx(func() error {
		m, err := a.ledger.get(id)
		if err != nil {
			return err
		}
		if m.State != domain.MarketStateReveal || !a.ledger.now.Before(m.RevealEndTime) {
			return reject(domain.TagMarketNotInRevealPhase)
		}
		c, ok := m.commitments[a.from]
		if !ok {
			return reject(domain.TagNotCommitted)
		}
		if m.revealed[a.from] {
			return reject(domain.TagAlreadyRevealed)
		}
		if !vote.Valid() || !commitment.Verify(vote, commitment.Secret(secret), c) {
			return reject(domain.TagInvalidReveal)
		}
		m.revealed[a.from] = true
		if vote == domain.VoteYes {
			m.YesVotes++
		} else {
			m.NoVotes++
		}
		m.votes = append(m.votes, domain.RevealedVote{Voter: a.from, Vote: vote, Timestamp: a.ledger.now})
		return nil
	})
}

func (a *Account) TransitionToReveal(_ context.Context, id uint64) (domain.TxResult, error) {
	return a.ledger.tx(func() error {
		m, err := a.ledger.get(id)
		if err != nil {
			return err
		}
		if m.State != domain.MarketStateCommit {
			return reject(domain.TagMarketNotInCommitPhase)
		}
		if a.ledger.now.Before(m.CommitEndTime) {
			return reject(domain.TagCommitPhaseNotEnded)
		}
		m.State = domain.MarketStateReveal
		return nil
	})
}

func (a *Account) TransitionToResolved(_ context.Context, id uint64) (domain.TxResult, error) {
	return a.ledger.tx(func() error {
		m, err := a.ledger.get(id)
		if err != nil {
			return err
		}
		if m.State != domain.MarketStateReveal {
			return reject(domain.TagMarketNotInRevealPhase)
		}
		if a.ledger.now.Before(m.RevealEndTime) {
			return reject(domain.TagRevealPhaseNotEnded)
		}
		m.State = domain.MarketStateResolved
		return nil
	})
}

func (a *Account) ResolveMarket(_ context.Context, id uint64, outcome bool) (domain.TxResult, error) {
	return a.ledger.tx(func() error {
		m, err := a.ledger.get(id)
		if err != nil {
			return err
		}
		if m.Creator != a.from {
			return reject(domain.TagOnlyCreator)
		}
		if m.IsResolved {
			return reject(domain.TagMarketAlreadyResolved)
		}
		if m.State != domain.MarketStateResolved {
			return reject(domain.TagMarketNotResolved)
		}
		m.Outcome = outcome
		m.IsResolved = true
		return nil
	})
}
