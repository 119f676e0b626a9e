package chain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertedPrefix = "execution reverted"

// ContractError is a revert decoded into the contract's error taxonomy.
type ContractError struct {
	Tag    domain.ContractErrorTag
	Reason string // set for Error(string) reverts
	cause  error
}

func (e *ContractError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("%s: %s()", revertedPrefix, e.Tag)
	}
	if e.Reason == "" {
		return revertedPrefix
	}
	return revertedPrefix + ": " + e.Reason
}

// ErrorTag returns the custom error name.
func (e *ContractError) ErrorTag() domain.ContractErrorTag { return e.Tag }

func (e *ContractError) Is(target error) bool { return target == domain.ErrContractRejected }

func (e *ContractError) Unwrap() error { return e.cause }

// classify turns a JSON-RPC error into a *ContractError when it carries
// revert data or names a known custom error. Anything else is returned
// unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *ContractError
	if errors.As(err, &ce) {
		return err
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if data, ok := revertData(de.ErrorData()); ok {
			if decoded := decodeRevert(data); decoded != nil {
				decoded.cause = err
				return decoded
			}
		}
	}

	if tag, ok := domain.ErrorTag(err); ok {
		return &ContractError{Tag: tag, cause: err}
	}
	if _, after, ok := strings.Cut(err.Error(), revertedPrefix); ok {
		return &ContractError{Reason: strings.TrimSpace(strings.TrimPrefix(after, ":")), cause: err}
	}
	return err
}

func revertData(v interface{}) ([]byte, bool) {
	switch d := v.(type) {
	case string:
		b, err := hexutil.Decode(d)
		return b, err == nil
	case []byte:
		return d, true
	}
	return nil, false
}

// decodeRevert matches data against the contract's custom error selectors,
// then the standard Error(string) encoding.
func decodeRevert(data []byte) *ContractError {
	if len(data) < 4 {
		return nil
	}
	for name, e := range contractABI.Errors {
		if bytes.Equal(e.ID[:4], data[:4]) {
			return &ContractError{Tag: domain.ContractErrorTag(name)}
		}
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return &ContractError{Reason: reason}
	}
	return nil
}

// NewContractError builds a ContractError for tag.
func NewContractError(tag domain.ContractErrorTag) *ContractError {
	return &ContractError{Tag: tag}
}
