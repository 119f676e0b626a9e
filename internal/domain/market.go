package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Vote is the voter's choice as encoded on chain.
type Vote uint8

const (
	VoteNone Vote = 0
	VoteYes  Vote = 1
	VoteNo   Vote = 2
)

// Valid reports whether v is a vote a user may commit (YES or NO).
func (v Vote) Valid() bool {
	return v == VoteYes || v == VoteNo
}

func (v Vote) String() string {
	switch v {
	case VoteYes:
		return "YES"
	case VoteNo:
		return "NO"
	default:
		return "NONE"
	}
}

// ParseVote accepts "yes"/"no" (any case) or the numeric tags "1"/"2".
func ParseVote(s string) (Vote, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "1":
		return VoteYes, nil
	case "no", "n", "2":
		return VoteNo, nil
	}
	return VoteNone, fmt.Errorf("%w: %q", ErrInvalidVote, s)
}

// MarketState is the contract's phase for a market.
type MarketState uint8

const (
	MarketStateCommit   MarketState = 0
	MarketStateReveal   MarketState = 1
	MarketStateResolved MarketState = 2
)

func (s MarketState) String() string {
	switch s {
	case MarketStateCommit:
		return "commit"
	case MarketStateReveal:
		return "reveal"
	case MarketStateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Market is a point-in-time read of a market's on-chain state. It is never
// authoritative; the contract may have moved on by the time it is rendered.
type Market struct {
	ID            uint64         `json:"id"`
	Creator       common.Address `json:"creator"`
	Description   string         `json:"description"`
	CommitEndTime time.Time      `json:"commit_end_time"`
	RevealEndTime time.Time      `json:"reveal_end_time"`
	State         MarketState    `json:"state"`
	Outcome       bool           `json:"outcome"`
	IsResolved    bool           `json:"is_resolved"`
	YesVotes      uint64         `json:"yes_votes"`
	NoVotes       uint64         `json:"no_votes"`
}

// VoteCounts are the revealed tallies of a market.
type VoteCounts struct {
	Yes uint64 `json:"yes"`
	No  uint64 `json:"no"`
}

// RevealedVote is one revealed ballot.
type RevealedVote struct {
	Voter     common.Address `json:"voter"`
	Vote      Vote           `json:"vote"`
	Timestamp time.Time      `json:"timestamp"`
}

// UserStatus is a wallet's participation in one market.
type UserStatus struct {
	HasCommitted bool `json:"has_committed"`
	HasRevealed  bool `json:"has_revealed"`
}

// TxResult describes a mined transaction.
type TxResult struct {
	Hash        common.Hash `json:"hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
}
