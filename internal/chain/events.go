package chain

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var errUnknownEvent = errors.New("chain: unknown event")

// MarketCreated is emitted by createMarket.
type MarketCreated struct {
	MarketID      uint64
	Creator       common.Address
	Description   string
	CommitEndTime time.Time
	RevealEndTime time.Time
}

// VoteCommitted is emitted by commitVote.
type VoteCommitted struct {
	MarketID uint64
	Voter    common.Address
}

// VoteRevealed is emitted by revealVote.
type VoteRevealed struct {
	MarketID uint64
	Voter    common.Address
	Vote     domain.Vote
}

// MarketResolved is emitted by resolveMarket.
type MarketResolved struct {
	MarketID uint64
	Outcome  bool
}

// MarketStateChanged is emitted by the transition functions.
type MarketStateChanged struct {
	MarketID uint64
	NewState domain.MarketState
}

// ParseEvent decodes a contract log into one of the event types above.
func ParseEvent(l types.Log) (interface{}, error) {
	if len(l.Topics) == 0 {
		return nil, errUnknownEvent
	}
	ev, err := contractABI.EventByID(l.Topics[0])
	if err != nil {
		return nil, errUnknownEvent
	}
	if len(l.Topics) < 2 {
		return nil, fmt.Errorf("chain: %s: missing indexed market id", ev.Name)
	}
	marketID, err := toUint64(new(big.Int).SetBytes(l.Topics[1].Bytes()))
	if err != nil {
		return nil, err
	}

	data, err := contractABI.Unpack(ev.Name, l.Data)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", ev.Name, err)
	}

	switch ev.Name {
	case "MarketCreated":
		if len(l.Topics) < 3 || len(data) != 3 {
			return nil, fmt.Errorf("chain: malformed MarketCreated log")
		}
		return MarketCreated{
			MarketID:      marketID,
			Creator:       common.BytesToAddress(l.Topics[2].Bytes()),
			Description:   data[0].(string),
			CommitEndTime: unixTime(data[1].(*big.Int)),
			RevealEndTime: unixTime(data[2].(*big.Int)),
		}, nil
	case "VoteCommitted":
		if len(l.Topics) < 3 {
			return nil, fmt.Errorf("chain: malformed VoteCommitted log")
		}
		return VoteCommitted{MarketID: marketID, Voter: common.BytesToAddress(l.Topics[2].Bytes())}, nil
	case "VoteRevealed":
		if len(l.Topics) < 3 || len(data) != 1 {
			return nil, fmt.Errorf("chain: malformed VoteRevealed log")
		}
		return VoteRevealed{
			MarketID: marketID,
			Voter:    common.BytesToAddress(l.Topics[2].Bytes()),
			Vote:     domain.Vote(data[0].(uint8)),
		}, nil
	case "MarketResolved":
		if len(data) != 1 {
			return nil, fmt.Errorf("chain: malformed MarketResolved log")
		}
		return MarketResolved{MarketID: marketID, Outcome: data[0].(bool)}, nil
	case "MarketStateChanged":
		if len(data) != 1 {
			return nil, fmt.Errorf("chain: malformed MarketStateChanged log")
		}
		return MarketStateChanged{MarketID: marketID, NewState: domain.MarketState(data[0].(uint8))}, nil
	}
	return nil, errUnknownEvent
}
