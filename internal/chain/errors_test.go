package chain

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllCustomErrorsDecode(t *testing.T) {
	require.Len(t, contractABI.Errors, 12)
	for name, e := range contractABI.Errors {
		ce := decodeRevert(e.ID[:4])
		require.NotNil(t, ce, name)
		assert.Equal(t, domain.ContractErrorTag(name), ce.Tag)
		assert.True(t, ce.Tag.Known(), name)
	}
}

func TestKnownSelector(t *testing.T) {
	// keccak256("InvalidReveal()")[:4]
	ce := decodeRevert(common.FromHex("0x9ea6d127"))
	require.NotNil(t, ce)
	assert.Equal(t, domain.TagInvalidReveal, ce.Tag)
}

func TestClassify(t *testing.T) {
	stringTy, _ := abi.NewType("string", "", nil)
	reason, err := abi.Arguments{{Type: stringTy}}.Pack("paused")
	require.NoError(t, err)
	data := append(common.FromHex("0x08c379a0"), reason...)

	err = classify(rpcDataError{msg: "execution reverted", data: common.Bytes2Hex(data)})
	// ErrorData without 0x prefix is not valid hexutil; falls through to the text match
	assert.ErrorIs(t, err, domain.ErrContractRejected)

	err = classify(rpcDataError{msg: "execution reverted", data: "0x" + common.Bytes2Hex(data)})
	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "paused", ce.Reason)
	assert.Empty(t, ce.Tag)

	err = classify(errors.New("execution reverted: AlreadyRevealed()"))
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.TagAlreadyRevealed, ce.Tag)

	err = classify(errors.New("execution reverted: paused"))
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "paused", ce.Reason)
	assert.Equal(t, "execution reverted: paused", ce.Error())

	err = classify(errors.New("execution reverted"))
	require.True(t, errors.As(err, &ce))
	assert.Empty(t, ce.Reason)
	assert.Equal(t, "execution reverted", ce.Error())

	plain := errors.New("dial tcp 127.0.0.1:8545: connection refused")
	assert.Same(t, plain, classify(plain))
}
