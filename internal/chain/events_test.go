package chain

import (
	"math/big"
	"testing"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	voter := common.HexToAddress("0x00000000000000000000000000000000000000d1")

	revealed := contractABI.Events["VoteRevealed"]
	data, err := revealed.Inputs.NonIndexed().Pack(uint8(domain.VoteYes))
	require.NoError(t, err)
	ev, err := ParseEvent(types.Log{
		Topics: []common.Hash{revealed.ID, common.BigToHash(big.NewInt(4)), common.BytesToHash(voter.Bytes())},
		Data:   data,
	})
	require.NoError(t, err)
	assert.Equal(t, VoteRevealed{MarketID: 4, Voter: voter, Vote: domain.VoteYes}, ev)

	committed := contractABI.Events["VoteCommitted"]
	ev, err = ParseEvent(types.Log{
		Topics: []common.Hash{committed.ID, common.BigToHash(big.NewInt(4)), common.BytesToHash(voter.Bytes())},
	})
	require.NoError(t, err)
	assert.Equal(t, VoteCommitted{MarketID: 4, Voter: voter}, ev)

	changed := contractABI.Events["MarketStateChanged"]
	data, err = changed.Inputs.NonIndexed().Pack(uint8(domain.MarketStateResolved))
	require.NoError(t, err)
	ev, err = ParseEvent(types.Log{
		Topics: []common.Hash{changed.ID, common.BigToHash(big.NewInt(1))},
		Data:   data,
	})
	require.NoError(t, err)
	assert.Equal(t, MarketStateChanged{MarketID: 1, NewState: domain.MarketStateResolved}, ev)

	resolved := contractABI.Events["MarketResolved"]
	data, err = resolved.Inputs.NonIndexed().Pack(true)
	require.NoError(t, err)
	ev, err = ParseEvent(types.Log{
		Topics: []common.Hash{resolved.ID, common.BigToHash(big.NewInt(1))},
		Data:   data,
	})
	require.NoError(t, err)
	assert.Equal(t, MarketResolved{MarketID: 1, Outcome: true}, ev)

	_, err = ParseEvent(types.Log{Topics: []common.Hash{{0x01}}})
	assert.ErrorIs(t, err, errUnknownEvent)
	_, err = ParseEvent(types.Log{})
	assert.ErrorIs(t, err, errUnknownEvent)
}
